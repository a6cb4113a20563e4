package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RipKord42/Hawk-TUI/internal/imap"
	"github.com/RipKord42/Hawk-TUI/internal/model"
	"github.com/RipKord42/Hawk-TUI/internal/spam"
)

func newJunkCmd(a *app) *cobra.Command {
	var accountName string

	cmd := &cobra.Command{
		Use:   "junk <folder> <uid>...",
		Short: "Mark messages as junk and move them to the junk folder",
		Long: "Mark the given messages as junk. Trains the filter on their content\n" +
			"when train_on_move is enabled, then moves them to the junk folder on\n" +
			"the server and locally.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.reclassify(accountName, args[0], args[1:], true)
		},
	}
	cmd.Flags().StringVar(&accountName, "account", "", "account (default: the default account)")
	return cmd
}

func newNotJunkCmd(a *app) *cobra.Command {
	var accountName string

	cmd := &cobra.Command{
		Use:   "notjunk <folder> <uid>...",
		Short: "Rescue wrongly classified messages back to the inbox",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.reclassify(accountName, args[0], args[1:], false)
		},
	}
	cmd.Flags().StringVar(&accountName, "account", "", "account (default: the default account)")
	return cmd
}

// reclassify flips the spam state of the given messages: trains the
// classifier, stamps score and flag in the store, and moves the
// messages between the source folder and the junk folder or inbox.
func (a *app) reclassify(accountName, folderName string, uidArgs []string, asSpam bool) error {
	account, err := a.account(accountName)
	if err != nil {
		return err
	}
	uids, err := parseUIDs(uidArgs)
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
	src, err := a.storedFolder(ctx, st, row.ID, folderName)
	if err != nil {
		return err
	}

	dstType := model.FolderJunk
	if !asSpam {
		dstType = model.FolderInbox
	}
	dst, err := st.GetFolderByType(ctx, row.ID, dstType)
	if err != nil {
		return err
	}
	if dst == nil {
		return fmt.Errorf("account %q has no %s folder", account.Name, dstType)
	}
	if dst.ID == src.ID {
		return fmt.Errorf("messages are already in %s", dst.Name)
	}

	msgs := make([]model.Message, 0, len(uids))
	ids := make([]int64, 0, len(uids))
	for _, uid := range uids {
		msg, err := st.GetMessageByUID(ctx, src.ID, uid)
		if err != nil {
			return fmt.Errorf("uid %d in %s: %w", uid, src.Name, err)
		}
		msgs = append(msgs, *msg)
		ids = append(ids, msg.ID)
	}

	// Train on the stored bodies before touching the server, so a
	// failed move never loses the correction.
	if a.config.Spam.Enabled && a.config.Spam.TrainOnMove {
		cls := spam.NewClassifier(model.DefaultSpamModelPath(), a.logger)
		cls.Load()
		for i := range msgs {
			if asSpam {
				cls.Train(&msgs[i], true)
			} else {
				cls.Untrain(&msgs[i], true)
				cls.Train(&msgs[i], false)
			}
		}
		if err := cls.Save(); err != nil {
			return fmt.Errorf("saving classifier model: %w", err)
		}
	}

	score := 1.0
	if !asSpam {
		score = 0.0
	}
	if err := st.SetSpam(ctx, ids, score, asSpam); err != nil {
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

	if err := cli.MoveMessages(ctx, src.Name, dst.Name, uids); err != nil {
		return fmt.Errorf("moving messages on server: %w", err)
	}

	// Mirror the move locally. The server assigns fresh UIDs to the
	// copies, so these rows are provisional until the target folder's
	// next sync replaces them.
	for i := range msgs {
		if asSpam {
			msgs[i].Flags = msgs[i].Flags.With(model.FlagSpam)
		} else {
			msgs[i].Flags = msgs[i].Flags.Without(model.FlagSpam)
		}
		msgs[i].SpamScore = score
	}
	if err := st.DeleteMessagesByUIDs(ctx, src.ID, uids); err != nil {
		return err
	}
	if err := st.SaveMessages(ctx, dst.ID, msgs); err != nil {
		return err
	}
	if err := st.UpdateFolderCounts(ctx, src.ID); err != nil {
		return err
	}
	if err := st.UpdateFolderCounts(ctx, dst.ID); err != nil {
		return err
	}

	fmt.Printf("moved %d message(s) from %s to %s\n", len(msgs), src.Name, dst.Name)
	return nil
}
