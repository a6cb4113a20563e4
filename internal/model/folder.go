package model

import (
	"strings"
	"time"
)

// FolderType classifies a folder by its semantic role.
type FolderType string

const (
	FolderInbox   FolderType = "inbox"
	FolderSent    FolderType = "sent"
	FolderDrafts  FolderType = "drafts"
	FolderTrash   FolderType = "trash"
	FolderJunk    FolderType = "junk"
	FolderArchive FolderType = "archive"
	FolderOther   FolderType = "other"
)

// folderNameAliases maps lowercase folder names to their type. Used as
// a fallback when the server does not advertise special-use attributes.
var folderNameAliases = map[string]FolderType{
	"inbox":             FolderInbox,
	"sent":              FolderSent,
	"sent mail":         FolderSent,
	"sent items":        FolderSent,
	"[gmail]/sent mail": FolderSent,
	"drafts":            FolderDrafts,
	"draft":             FolderDrafts,
	"[gmail]/drafts":    FolderDrafts,
	"trash":             FolderTrash,
	"deleted":           FolderTrash,
	"deleted items":     FolderTrash,
	"[gmail]/trash":     FolderTrash,
	"junk":              FolderJunk,
	"spam":              FolderJunk,
	"junk mail":         FolderJunk,
	"[gmail]/spam":      FolderJunk,
	"archive":           FolderArchive,
	"all mail":          FolderArchive,
	"[gmail]/all mail":  FolderArchive,
}

// DetectFolderType infers a folder's type from its name. The match is
// case-insensitive and also checked against the last path segment for
// hierarchical names ("INBOX.Sent"). Server special-use hints take
// precedence over this heuristic; callers check those first.
func DetectFolderType(name, delimiter string) FolderType {
	lower := strings.ToLower(name)
	if t, ok := folderNameAliases[lower]; ok {
		return t
	}
	if delimiter != "" {
		if i := strings.LastIndex(lower, delimiter); i >= 0 {
			if t, ok := folderNameAliases[lower[i+len(delimiter):]]; ok {
				return t
			}
		}
	}
	return FolderOther
}

// Folder is a named remote mailbox belonging to one account.
// (AccountID, Name) is unique.
type Folder struct {
	// ID is the local database identifier.
	ID int64 `json:"id"`

	// AccountID links the folder to its owning account.
	AccountID int64 `json:"account_id"`

	// Name is the full hierarchical folder name as known to the server.
	Name string `json:"name"`

	// Type is the inferred semantic role of the folder.
	Type FolderType `json:"type"`

	// Delimiter separates hierarchy levels in Name ("/" or ".").
	Delimiter string `json:"delimiter"`

	// UIDValidity is the folder's current UID epoch as reported by the
	// server. Zero means the folder has never been synced. If the server
	// reports a different value, every cached UID for this folder is
	// stale and the folder requires a full resync.
	UIDValidity uint32 `json:"uid_validity"`

	// TotalMessages is the cached message count from the last sync.
	TotalMessages int `json:"total_messages"`

	// UnreadCount is the cached unread count from the last sync.
	UnreadCount int `json:"unread_count"`

	// LastSyncTime is when this folder last completed a sync.
	LastSyncTime time.Time `json:"last_sync_time"`
}
