package model

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope", "config.toml"))
	if err != nil {
		t.Fatalf("LoadConfig on a missing file: %v", err)
	}
	if !cfg.Spam.Enabled || cfg.Spam.Threshold != 0.7 {
		t.Errorf("spam defaults = %+v", cfg.Spam)
	}
	if cfg.Sync.CheckIntervalMinutes != 5 || !cfg.Sync.UseIdle {
		t.Errorf("sync defaults = %+v", cfg.Sync)
	}
	if cfg.Sync.FetchBatchSize != 50 || cfg.Sync.UIDBatchSize != 100 {
		t.Errorf("batch defaults = %d/%d, want 50/100", cfg.Sync.FetchBatchSize, cfg.Sync.UIDBatchSize)
	}
	if len(cfg.Accounts) != 0 {
		t.Errorf("expected no accounts, got %d", len(cfg.Accounts))
	}
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	in := &AppConfig{
		DefaultAccount: "work",
		Accounts: []AccountConfig{
			{
				Name:         "work",
				Email:        "work@example.org",
				IMAPHost:     "imap.example.org",
				IMAPPort:     993,
				IMAPSecurity: "tls",
				SMTPHost:     "smtp.example.org",
				SMTPPort:     587,
				SMTPSecurity: "starttls",
			},
			{
				Name:         "home",
				Email:        "home@example.net",
				IMAPHost:     "mail.example.net",
				IMAPPort:     143,
				IMAPSecurity: "starttls",
			},
		},
		Spam: SpamConfig{
			Enabled:        true,
			Threshold:      0.9,
			AutoMoveToJunk: false,
			TrainOnMove:    true,
		},
		Sync: SyncConfig{
			CheckIntervalMinutes: 15,
			UseIdle:              false,
			SyncDeleted:          true,
			FetchBatchSize:       25,
			UIDBatchSize:         200,
		},
	}

	if err := SaveConfig(path, in); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	out, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if out.DefaultAccount != "work" {
		t.Errorf("DefaultAccount = %q, want work", out.DefaultAccount)
	}
	if len(out.Accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(out.Accounts))
	}
	if out.Accounts[0] != in.Accounts[0] {
		t.Errorf("account[0] = %+v, want %+v", out.Accounts[0], in.Accounts[0])
	}
	if out.Accounts[1].IMAPPort != 143 || out.Accounts[1].IMAPSecurity != "starttls" {
		t.Errorf("account[1] = %+v", out.Accounts[1])
	}
	if out.Spam != in.Spam {
		t.Errorf("spam = %+v, want %+v", out.Spam, in.Spam)
	}
	if out.Sync != in.Sync {
		t.Errorf("sync = %+v, want %+v", out.Sync, in.Sync)
	}
}

func TestLoadConfigClampsBatchSizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	raw := "[sync]\nfetch_batch_size = 0\nuid_batch_size = -5\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Sync.FetchBatchSize != 50 {
		t.Errorf("FetchBatchSize = %d, want clamped to 50", cfg.Sync.FetchBatchSize)
	}
	if cfg.Sync.UIDBatchSize != 100 {
		t.Errorf("UIDBatchSize = %d, want clamped to 100", cfg.Sync.UIDBatchSize)
	}
}

func TestAccountByName(t *testing.T) {
	cfg := &AppConfig{
		DefaultAccount: "home",
		Accounts: []AccountConfig{
			{Name: "work", Email: "work@example.org"},
			{Name: "home", Email: "home@example.net"},
		},
	}

	if got := cfg.AccountByName("work"); got == nil || got.Email != "work@example.org" {
		t.Errorf("AccountByName(work) = %+v", got)
	}
	if got := cfg.AccountByName(""); got == nil || got.Name != "home" {
		t.Errorf("empty name should resolve the default account, got %+v", got)
	}
	if got := cfg.AccountByName("nope"); got != nil {
		t.Errorf("AccountByName(nope) = %+v, want nil", got)
	}

	cfg.DefaultAccount = ""
	if got := cfg.AccountByName(""); got == nil || got.Name != "work" {
		t.Errorf("without a default the first account wins, got %+v", got)
	}

	empty := &AppConfig{}
	if got := empty.AccountByName(""); got != nil {
		t.Errorf("empty config should yield nil, got %+v", got)
	}
}
