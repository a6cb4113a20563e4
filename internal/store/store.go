package store

import (
	"context"

	"github.com/RipKord42/Hawk-TUI/internal/model"
)

// MessageFilter controls filtering, sorting, and pagination for message
// queries. Flag filters use nil for "don't care".
type MessageFilter struct {
	AccountID *int64
	FolderID  *int64
	Seen      *bool
	Flagged   *bool
	Spam      *bool
	Query     *string // substring match on subject + sender
	SortBy    string  // "date", "subject", "sender", "uid", "size"
	SortDesc  bool
	Limit     int
	Offset    int
}

// SearchQuery is a full-text search request. Text goes through the
// FTS index over subject, sender, and body.
type SearchQuery struct {
	AccountID *int64
	FolderID  *int64
	Text      string
	Limit     int
}

// Store defines the persistence interface for accounts, folders,
// messages, and attachments.
type Store interface {
	// === Accounts ===

	UpsertAccount(ctx context.Context, account model.Account) (*model.Account, error)
	GetAccounts(ctx context.Context) ([]model.Account, error)
	GetAccountByName(ctx context.Context, name string) (*model.Account, error)
	DeleteAccount(ctx context.Context, id int64) error

	// === Folders ===

	UpsertFolder(ctx context.Context, folder model.Folder) (*model.Folder, error)
	GetFolders(ctx context.Context, accountID int64) ([]model.Folder, error)
	GetFolderByName(ctx context.Context, accountID int64, name string) (*model.Folder, error)
	// GetFolderByType returns nil, nil when the account has no folder
	// of the given type.
	GetFolderByType(ctx context.Context, accountID int64, folderType model.FolderType) (*model.Folder, error)
	SetFolderUIDValidity(ctx context.Context, folderID int64, uidValidity uint32) error
	UpdateFolderCounts(ctx context.Context, folderID int64) error
	DeleteFoldersExcept(ctx context.Context, accountID int64, keep []string) error

	// === Messages ===

	SaveMessages(ctx context.Context, folderID int64, messages []model.Message) error
	GetMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error)
	GetMessageByUID(ctx context.Context, folderID int64, uid uint32) (*model.Message, error)
	LocalUIDs(ctx context.Context, folderID int64) (map[uint32]bool, error)
	LocalFlags(ctx context.Context, folderID int64) (map[uint32]model.MessageFlags, error)
	UpdateFlags(ctx context.Context, folderID int64, flags map[uint32]model.MessageFlags) error
	SetSpam(ctx context.Context, messageIDs []int64, score float64, isSpam bool) error
	DeleteMessagesByUIDs(ctx context.Context, folderID int64, uids []uint32) error
	DeleteAllMessages(ctx context.Context, folderID int64) error

	// === Search ===

	Search(ctx context.Context, q SearchQuery) ([]model.Message, error)

	Close() error
}
