package imap

import (
	"context"

	"github.com/emersion/go-imap/v2"
	"github.com/sirupsen/logrus"

	"github.com/RipKord42/Hawk-TUI/internal/model"
)

// AddFlags sets flags on the given UIDs. Local-only flags are
// silently dropped before hitting the wire.
func (c *Client) AddFlags(ctx context.Context, folder string, uids []uint32, flags model.MessageFlags) error {
	return c.storeFlags(ctx, folder, uids, imap.StoreFlagsAdd, flagsToIMAP(flags))
}

// RemoveFlags clears flags on the given UIDs.
func (c *Client) RemoveFlags(ctx context.Context, folder string, uids []uint32, flags model.MessageFlags) error {
	return c.storeFlags(ctx, folder, uids, imap.StoreFlagsDel, flagsToIMAP(flags))
}

func (c *Client) storeFlags(ctx context.Context, folder string, uids []uint32, op imap.StoreFlagsOp, flags []imap.Flag) error {
	if len(uids) == 0 || len(flags) == 0 {
		return nil
	}
	if _, err := c.SelectFolder(ctx, folder, false); err != nil {
		return err
	}

	for _, chunk := range chunkUIDs(uids, c.flagBatch) {
		if err := ctx.Err(); err != nil {
			return err
		}
		set := uidSetOf(chunk)
		err := c.withOpTimeout(ctx, opTimeout, func() error {
			return c.cli.Store(set, &imap.StoreFlags{
				Op:     op,
				Silent: true,
				Flags:  flags,
			}, nil).Close()
		})
		if err != nil {
			return c.fail("store flags in "+folder, err)
		}
	}
	return nil
}

// MoveMessages moves UIDs from src to dst, using the MOVE extension
// when the server has it and a copy, flag, expunge sequence otherwise.
// The fallback copies before deleting, so an interrupted move can leave
// a duplicate in dst but never loses the message.
func (c *Client) MoveMessages(ctx context.Context, src, dst string, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	if _, err := c.SelectFolder(ctx, src, false); err != nil {
		return err
	}
	useMove := c.hasCap(imap.CapMove)

	for _, chunk := range chunkUIDs(uids, c.flagBatch) {
		if err := ctx.Err(); err != nil {
			return err
		}
		set := uidSetOf(chunk)

		if useMove {
			err := c.withOpTimeout(ctx, opTimeout, func() error {
				_, err := c.cli.Move(set, dst).Wait()
				return err
			})
			if err != nil {
				return c.fail("move messages to "+dst, err)
			}
			continue
		}

		// No MOVE capability. Copy must succeed before anything in
		// src is marked for deletion.
		err := c.withOpTimeout(ctx, opTimeout, func() error {
			_, err := c.cli.Copy(set, dst).Wait()
			return err
		})
		if err != nil {
			return c.fail("copy messages to "+dst, err)
		}

		err = c.withOpTimeout(ctx, opTimeout, func() error {
			return c.cli.Store(set, &imap.StoreFlags{
				Op:     imap.StoreFlagsAdd,
				Silent: true,
				Flags:  []imap.Flag{imap.FlagDeleted},
			}, nil).Close()
		})
		if err != nil {
			return c.fail("flag copied messages in "+src, err)
		}

		err = c.withOpTimeout(ctx, opTimeout, func() error {
			_, err := c.cli.Expunge().Collect()
			return err
		})
		if err != nil {
			return c.fail("expunge "+src, err)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"account": c.account.Name,
		"from":    src,
		"to":      dst,
		"count":   len(uids),
	}).Info("moved messages")

	return nil
}

// DeleteMessages flags UIDs as deleted and expunges the folder. The
// expunge removes every message the server has flagged \Deleted, not
// only the ones named here.
func (c *Client) DeleteMessages(ctx context.Context, folder string, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	if err := c.storeFlags(ctx, folder, uids, imap.StoreFlagsAdd, []imap.Flag{imap.FlagDeleted}); err != nil {
		return err
	}

	err := c.withOpTimeout(ctx, opTimeout, func() error {
		_, err := c.cli.Expunge().Collect()
		return err
	})
	if err != nil {
		return c.fail("expunge "+folder, err)
	}

	c.logger.WithFields(logrus.Fields{
		"account": c.account.Name,
		"folder":  folder,
		"count":   len(uids),
	}).Info("deleted messages")

	return nil
}
