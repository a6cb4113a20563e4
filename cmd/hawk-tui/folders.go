package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFoldersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "folders [account]",
		Short: "List folders known from the last sync",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			account, err := a.account(name)
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			row, err := a.storedAccount(ctx, st, account)
			if err != nil {
				return err
			}
			folders, err := st.GetFolders(ctx, row.ID)
			if err != nil {
				return err
			}
			if len(folders) == 0 {
				fmt.Println(`no folders, run "hawk-tui sync" first`)
				return nil
			}
			fmt.Printf("%-35s %-8s %8s %8s  %s\n", "FOLDER", "TYPE", "TOTAL", "UNREAD", "LAST SYNC")
			for _, folder := range folders {
				last := "never"
				if !folder.LastSyncTime.IsZero() {
					last = folder.LastSyncTime.Local().Format("2006-01-02 15:04")
				}
				fmt.Printf("%-35s %-8s %8d %8d  %s\n",
					folder.Name, folder.Type, folder.TotalMessages, folder.UnreadCount, last)
			}
			return nil
		},
	}
}
