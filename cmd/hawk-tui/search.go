package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RipKord42/Hawk-TUI/internal/store"
)

func newSearchCmd(a *app) *cobra.Command {
	var accountName, folderName string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <text>...",
		Short: "Full-text search over synced messages",
		Long: "Search subject, sender, and body text of every synced message.\n" +
			"Scope the search with --account and --folder.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if folderName != "" && accountName == "" {
				return errors.New("--folder requires --account")
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			query := store.SearchQuery{
				Text:  strings.Join(args, " "),
				Limit: limit,
			}
			if accountName != "" {
				account, err := a.account(accountName)
				if err != nil {
					return err
				}
				row, err := a.storedAccount(ctx, st, account)
				if err != nil {
					return err
				}
				query.AccountID = &row.ID
				if folderName != "" {
					folder, err := a.storedFolder(ctx, st, row.ID, folderName)
					if err != nil {
						return err
					}
					query.FolderID = &folder.ID
				}
			}

			msgs, err := st.Search(ctx, query)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, msg := range msgs {
				fmt.Printf("%s  %5d  %-30.30s  %s\n",
					msg.Date.Local().Format("2006-01-02"), msg.UID, msg.Sender, msg.Subject)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountName, "account", "", "restrict to one account")
	cmd.Flags().StringVar(&folderName, "folder", "", "restrict to one folder (needs --account)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of results")
	return cmd
}
