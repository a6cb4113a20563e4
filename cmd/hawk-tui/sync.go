package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/RipKord42/Hawk-TUI/internal/sync"
)

func newSyncCmd(a *app) *cobra.Command {
	var folderName string

	cmd := &cobra.Command{
		Use:   "sync [account]",
		Short: "Synchronize accounts with their servers",
		Long: "Synchronize the named account, or every configured account when no\n" +
			"name is given. Pass --folder to limit the run to a single folder.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			accounts, err := a.accounts(name)
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			engine := a.newEngine(st)
			opts := sync.DefaultOptions(a.config)

			ctx, cancel := signalContext()
			defer cancel()

			var failed bool
			for _, account := range accounts {
				var res *sync.Result
				var err error
				if folderName != "" {
					res, err = engine.SyncFolder(ctx, account, folderName, opts)
				} else {
					res, err = engine.SyncAll(ctx, account, opts)
				}
				if err != nil {
					return err
				}
				printResult(account.Name, res)
				if res.Cancelled {
					return nil
				}
				if !res.Success {
					failed = true
				}
			}
			if failed {
				return errors.New("sync finished with errors")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&folderName, "folder", "", "sync only this folder")
	return cmd
}

func printResult(account string, res *sync.Result) {
	if res.Cancelled {
		fmt.Printf("%s: cancelled after %s\n", account, res.Duration.Round(time.Millisecond))
		return
	}
	fmt.Printf("%s: %d new, %d updated, %d deleted, %d spam moved in %s\n",
		account, res.NewMessages, res.UpdatedMessages, res.DeletedMessages,
		res.SpamMoved, res.Duration.Round(time.Millisecond))
	for _, msg := range res.Errors {
		fmt.Printf("  error: %s\n", msg)
	}
}
