package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// AccountConfig is the on-disk form of an account entry. The password is
// deliberately absent; it is stored in the system keyring.
type AccountConfig struct {
	Name         string `mapstructure:"name" toml:"name"`
	Email        string `mapstructure:"email" toml:"email"`
	IMAPHost     string `mapstructure:"imap_host" toml:"imap_host"`
	IMAPPort     int    `mapstructure:"imap_port" toml:"imap_port"`
	IMAPSecurity string `mapstructure:"imap_security" toml:"imap_security"`
	SMTPHost     string `mapstructure:"smtp_host" toml:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port" toml:"smtp_port"`
	SMTPSecurity string `mapstructure:"smtp_security" toml:"smtp_security"`
}

// Account converts the config entry into a domain Account (without ID).
func (c AccountConfig) Account() Account {
	return Account{
		Name:         c.Name,
		Email:        c.Email,
		IMAPHost:     c.IMAPHost,
		IMAPPort:     c.IMAPPort,
		IMAPSecurity: Security(c.IMAPSecurity),
		SMTPHost:     c.SMTPHost,
		SMTPPort:     c.SMTPPort,
		SMTPSecurity: Security(c.SMTPSecurity),
	}
}

// SpamConfig holds the spam filter settings.
type SpamConfig struct {
	// Enabled controls whether messages are classified at all.
	Enabled bool `mapstructure:"enabled" toml:"enabled"`

	// Threshold is the score at or above which a message counts as spam.
	Threshold float64 `mapstructure:"threshold" toml:"threshold"`

	// AutoMoveToJunk moves detected spam to the Junk folder on the server.
	AutoMoveToJunk bool `mapstructure:"auto_move_to_junk" toml:"auto_move_to_junk"`

	// TrainOnMove trains the classifier when the user moves messages
	// to or out of Junk.
	TrainOnMove bool `mapstructure:"train_on_move" toml:"train_on_move"`
}

// SyncConfig holds the synchronization settings.
type SyncConfig struct {
	// CheckIntervalMinutes is the periodic sync interval. Zero disables
	// scheduled syncs (manual and push-triggered only).
	CheckIntervalMinutes int `mapstructure:"check_interval_minutes" toml:"check_interval_minutes"`

	// UseIdle enables IMAP IDLE push monitoring where supported.
	UseIdle bool `mapstructure:"use_idle" toml:"use_idle"`

	// SyncDeleted enables the deletion reconciliation pass.
	SyncDeleted bool `mapstructure:"sync_deleted" toml:"sync_deleted"`

	// FetchBatchSize is the number of messages fetched per round trip.
	FetchBatchSize int `mapstructure:"fetch_batch_size" toml:"fetch_batch_size"`

	// UIDBatchSize is the number of UIDs per flag/move/delete round trip.
	UIDBatchSize int `mapstructure:"uid_batch_size" toml:"uid_batch_size"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// DefaultAccount is the account selected on startup.
	DefaultAccount string `mapstructure:"default_account" toml:"default_account"`

	Accounts []AccountConfig `mapstructure:"accounts" toml:"accounts"`
	Spam     SpamConfig      `mapstructure:"spam" toml:"spam"`
	Sync     SyncConfig      `mapstructure:"sync" toml:"sync"`
}

// AccountByName returns the named account entry, or the default/first
// entry when name is empty, or nil when no such account exists.
func (c *AppConfig) AccountByName(name string) *AccountConfig {
	if name == "" {
		name = c.DefaultAccount
	}
	if name == "" && len(c.Accounts) > 0 {
		return &c.Accounts[0]
	}
	for i := range c.Accounts {
		if c.Accounts[i].Name == name {
			return &c.Accounts[i]
		}
	}
	return nil
}

const appDirName = "hawk-tui"

// ConfigDir returns the configuration directory, honoring
// XDG_CONFIG_HOME when set.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", appDirName)
	}
	return filepath.Join(home, ".config", appDirName)
}

// DataDir returns the data directory (database, spam model), honoring
// XDG_DATA_HOME when set.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", appDirName)
	}
	return filepath.Join(home, ".local", "share", appDirName)
}

// DefaultConfigPath returns the default config.toml location.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultDatabasePath returns the default SQLite database location.
func DefaultDatabasePath() string {
	return filepath.Join(DataDir(), "hawk-tui.db")
}

// DefaultSpamModelPath returns the default classifier model location.
func DefaultSpamModelPath() string {
	return filepath.Join(DataDir(), "spam_model.json")
}

// defaultAppConfig returns the configuration used when no file exists.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Spam: SpamConfig{
			Enabled:        true,
			Threshold:      0.7,
			AutoMoveToJunk: true,
			TrainOnMove:    true,
		},
		Sync: SyncConfig{
			CheckIntervalMinutes: 5,
			UseIdle:              true,
			SyncDeleted:          false,
			FetchBatchSize:       50,
			UIDBatchSize:         100,
		},
	}
}

// LoadConfig reads configuration from the given TOML file path using
// Viper. A missing file yields the default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetDefault("spam.enabled", true)
	v.SetDefault("spam.threshold", 0.7)
	v.SetDefault("spam.auto_move_to_junk", true)
	v.SetDefault("spam.train_on_move", true)
	v.SetDefault("sync.check_interval_minutes", 5)
	v.SetDefault("sync.use_idle", true)
	v.SetDefault("sync.sync_deleted", false)
	v.SetDefault("sync.fetch_batch_size", 50)
	v.SetDefault("sync.uid_batch_size", 100)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Keep batch sizes sane even if the file zeroes them.
	if cfg.Sync.FetchBatchSize <= 0 {
		cfg.Sync.FetchBatchSize = 50
	}
	if cfg.Sync.UIDBatchSize <= 0 {
		cfg.Sync.UIDBatchSize = 100
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a TOML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.Set("default_account", cfg.DefaultAccount)
	v.Set("accounts", cfg.Accounts)
	v.Set("spam", cfg.Spam)
	v.Set("sync", cfg.Sync)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
