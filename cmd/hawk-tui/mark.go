package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RipKord42/Hawk-TUI/internal/imap"
	"github.com/RipKord42/Hawk-TUI/internal/model"
)

func newMarkCmd(a *app) *cobra.Command {
	var accountName string
	var seen, unseen, flagged, unflagged bool

	cmd := &cobra.Command{
		Use:   "mark <folder> <uid>...",
		Short: "Set or clear message flags on the server and locally",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var add, remove model.MessageFlags
			if seen {
				add = add.With(model.FlagSeen)
			}
			if unseen {
				remove = remove.With(model.FlagSeen)
			}
			if flagged {
				add = add.With(model.FlagFlagged)
			}
			if unflagged {
				remove = remove.With(model.FlagFlagged)
			}
			if add == model.FlagNone && remove == model.FlagNone {
				return errors.New("nothing to do, pass --seen, --unseen, --flagged, or --unflagged")
			}
			if add&remove != model.FlagNone {
				return errors.New("conflicting flag options")
			}

			uids, err := parseUIDs(args[1:])
			if err != nil {
				return err
			}
			return a.mark(accountName, args[0], uids, add, remove)
		},
	}

	cmd.Flags().StringVar(&accountName, "account", "", "account (default: the default account)")
	cmd.Flags().BoolVar(&seen, "seen", false, "mark as read")
	cmd.Flags().BoolVar(&unseen, "unseen", false, "mark as unread")
	cmd.Flags().BoolVar(&flagged, "flagged", false, "add the flagged marker")
	cmd.Flags().BoolVar(&unflagged, "unflagged", false, "remove the flagged marker")
	return cmd
}

func (a *app) mark(accountName, folderName string, uids []uint32, add, remove model.MessageFlags) error {
	account, err := a.account(accountName)
	if err != nil {
		return err
	}
	st, err := a.openStore()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	row, err := a.storedAccount(ctx, st, account)
	if err != nil {
		return err
	}
	folder, err := a.storedFolder(ctx, st, row.ID, folderName)
	if err != nil {
		return err
	}

	cli := imap.NewClient(account, a.logger)
	if n := a.config.Sync.UIDBatchSize; n > 0 {
		cli.SetFlagBatchSize(n)
	}
	if err := cli.Connect(ctx); err != nil {
		return err
	}
	defer cli.Close()

	if add != model.FlagNone {
		if err := cli.AddFlags(ctx, folder.Name, uids, add); err != nil {
			return err
		}
	}
	if remove != model.FlagNone {
		if err := cli.RemoveFlags(ctx, folder.Name, uids, remove); err != nil {
			return err
		}
	}

	local, err := st.LocalFlags(ctx, folder.ID)
	if err != nil {
		return err
	}
	updates := make(map[uint32]model.MessageFlags)
	for _, uid := range uids {
		have, ok := local[uid]
		if !ok {
			continue
		}
		next := have.With(add).Without(remove)
		if next != have {
			updates[uid] = next
		}
	}
	if len(updates) > 0 {
		if err := st.UpdateFlags(ctx, folder.ID, updates); err != nil {
			return err
		}
		if err := st.UpdateFolderCounts(ctx, folder.ID); err != nil {
			return err
		}
	}

	fmt.Printf("updated %d message(s) in %s\n", len(uids), folder.Name)
	return nil
}
