package testutil

import (
	"context"
	"testing"

	"github.com/RipKord42/Hawk-TUI/internal/model"
	"github.com/RipKord42/Hawk-TUI/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedAccount stores a minimal account and returns it with its ID.
func SeedAccount(t *testing.T, s *store.SQLiteStore, name string) *model.Account {
	t.Helper()

	account, err := s.UpsertAccount(context.Background(), model.Account{
		Name:         name,
		Email:        name + "@example.org",
		IMAPHost:     "imap.example.org",
		IMAPPort:     993,
		IMAPSecurity: model.SecurityTLS,
	})
	if err != nil {
		t.Fatalf("seeding account %s: %v", name, err)
	}
	return account
}

// SeedFolder stores a folder for the account and returns it with its ID.
func SeedFolder(t *testing.T, s *store.SQLiteStore, accountID int64, name string, folderType model.FolderType) *model.Folder {
	t.Helper()

	folder, err := s.UpsertFolder(context.Background(), model.Folder{
		AccountID: accountID,
		Name:      name,
		Type:      folderType,
		Delimiter: "/",
	})
	if err != nil {
		t.Fatalf("seeding folder %s: %v", name, err)
	}
	return folder
}
