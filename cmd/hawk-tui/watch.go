package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/RipKord42/Hawk-TUI/internal/model"
	"github.com/RipKord42/Hawk-TUI/internal/sync"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep accounts in sync until interrupted",
		Long: "Run an initial sync of every account, then keep the local database\n" +
			"fresh through IDLE push notifications and the configured check\n" +
			"interval. Stops on ctrl-c.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.accounts("")
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

			for _, account := range accounts {
				if ctx.Err() != nil {
					return nil
				}
				runAccountSync(ctx, engine, account, opts, a.logger)
			}

			monitor := sync.NewMonitor(a.logger)
			if a.config.Sync.UseIdle {
				if err := monitor.Start(accounts); err != nil {
					return err
				}
				defer monitor.Stop()
			}

			var tick <-chan time.Time
			if interval := a.config.Sync.CheckIntervalMinutes; interval > 0 {
				ticker := time.NewTicker(time.Duration(interval) * time.Minute)
				defer ticker.Stop()
				tick = ticker.C
			}
			if tick == nil && !a.config.Sync.UseIdle {
				return errors.New("watch needs idle or a check interval, both are disabled in the config")
			}

			byName := make(map[string]model.Account, len(accounts))
			for _, account := range accounts {
				byName[account.Name] = account
			}

			fmt.Println("watching for changes, press ctrl-c to stop")
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev := <-monitor.Events():
					account, ok := byName[ev.Account]
					if !ok {
						continue
					}
					a.logger.WithFields(logrus.Fields{
						"account": ev.Account,
						"folder":  ev.Folder,
						"kind":    ev.Kind,
					}).Info("push notification")
					runFolderSync(ctx, engine, account, ev.Folder, opts, a.logger)
				case <-tick:
					for _, account := range accounts {
						if ctx.Err() != nil {
							return nil
						}
						runAccountSync(ctx, engine, account, opts, a.logger)
					}
				}
			}
		},
	}
}

func runAccountSync(ctx context.Context, engine *sync.Engine, account model.Account, opts sync.Options, logger *logrus.Logger) {
	res, err := engine.SyncAll(ctx, account, opts)
	reportSync(account, res, err, logger)
}

func runFolderSync(ctx context.Context, engine *sync.Engine, account model.Account, folder string, opts sync.Options, logger *logrus.Logger) {
	res, err := engine.SyncFolder(ctx, account, folder, opts)
	reportSync(account, res, err, logger)
}

func reportSync(account model.Account, res *sync.Result, err error, logger *logrus.Logger) {
	switch {
	case errors.Is(err, sync.ErrSyncInProgress):
		logger.WithField("account", account.Name).Debug("sync already running, trigger dropped")
	case err != nil:
		logger.WithError(err).WithField("account", account.Name).Error("sync failed")
	case res.Cancelled:
	default:
		printResult(account.Name, res)
	}
}
