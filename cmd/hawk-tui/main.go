// Command hawk-tui synchronizes IMAP accounts into a local SQLite
// database and keeps it fresh through scheduled and push-driven syncs.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/RipKord42/Hawk-TUI/internal/model"
	"github.com/RipKord42/Hawk-TUI/internal/spam"
	"github.com/RipKord42/Hawk-TUI/internal/store"
	"github.com/RipKord42/Hawk-TUI/internal/sync"
)

func main() {
	a := &app{}
	root := newRootCmd(a)
	err := root.Execute()
	a.shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the flag values and lazily opened resources shared by all
// subcommands.
type app struct {
	configPath string
	dbPath     string
	logLevel   string

	config *model.AppConfig
	logger *logrus.Logger
	store  *store.SQLiteStore
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "hawk-tui",
		Short: "Local-first IMAP mail synchronization",
		Long: "hawk-tui mirrors IMAP accounts into a local SQLite database:\n" +
			"full and incremental folder sync, push notifications via IDLE,\n" +
			"full-text search, and a trainable junk-mail filter.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", model.DefaultConfigPath(), "config file")
	root.PersistentFlags().StringVar(&a.dbPath, "db", model.DefaultDatabasePath(), "message database")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newSyncCmd(a),
		newWatchCmd(a),
		newFoldersCmd(a),
		newSearchCmd(a),
		newAccountCmd(a),
		newJunkCmd(a),
		newNotJunkCmd(a),
		newMarkCmd(a),
	)
	return root
}

func (a *app) init() error {
	level, err := logrus.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q", a.logLevel)
	}
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)
	a.logger = logger

	cfg, err := model.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.config = cfg
	return nil
}

func (a *app) shutdown() {
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) openStore() (*store.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	if dir := filepath.Dir(a.dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}
	st, err := store.NewSQLiteStore(a.dbPath)
	if err != nil {
		return nil, err
	}
	a.store = st
	return st, nil
}

// account resolves a single configured account: the named one, or the
// default when name is empty.
func (a *app) account(name string) (model.Account, error) {
	entry := a.config.AccountByName(name)
	if entry == nil {
		if name == "" {
			return model.Account{}, errors.New(`no accounts configured, run "hawk-tui account add" first`)
		}
		return model.Account{}, fmt.Errorf("account %q is not configured", name)
	}
	return entry.Account(), nil
}

// accounts resolves the accounts a command targets: the named one, or
// every configured account when name is empty.
func (a *app) accounts(name string) ([]model.Account, error) {
	if name != "" {
		account, err := a.account(name)
		if err != nil {
			return nil, err
		}
		return []model.Account{account}, nil
	}
	if len(a.config.Accounts) == 0 {
		return nil, errors.New(`no accounts configured, run "hawk-tui account add" first`)
	}
	out := make([]model.Account, 0, len(a.config.Accounts))
	for _, entry := range a.config.Accounts {
		out = append(out, entry.Account())
	}
	return out, nil
}

// newEngine builds a sync engine with the classifier attached when spam
// filtering is enabled.
func (a *app) newEngine(st *store.SQLiteStore) *sync.Engine {
	var cls sync.Classifier
	if a.config.Spam.Enabled {
		c := spam.NewClassifier(model.DefaultSpamModelPath(), a.logger)
		c.Load()
		cls = c
	}
	return sync.NewEngine(st, cls, a.config, a.logger)
}

// storedAccount looks up the store row created by a previous sync.
func (a *app) storedAccount(ctx context.Context, st *store.SQLiteStore, account model.Account) (*model.Account, error) {
	row, err := st.GetAccountByName(ctx, account.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %q has never been synced", account.Name)
		}
		return nil, err
	}
	return row, nil
}

func (a *app) storedFolder(ctx context.Context, st *store.SQLiteStore, accountID int64, name string) (*model.Folder, error) {
	folder, err := st.GetFolderByName(ctx, accountID, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("folder %q is not known locally, sync first", name)
		}
		return nil, err
	}
	return folder, nil
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseUIDs(args []string) ([]uint32, error) {
	uids := make([]uint32, 0, len(args))
	for _, arg := range args {
		n, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid uid %q", arg)
		}
		uids = append(uids, uint32(n))
	}
	return uids, nil
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
