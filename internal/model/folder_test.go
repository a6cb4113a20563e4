package model

import "testing"

func TestDetectFolderType(t *testing.T) {
	tests := []struct {
		name      string
		delimiter string
		want      FolderType
	}{
		{"INBOX", "/", FolderInbox},
		{"inbox", "/", FolderInbox},
		{"Sent", "/", FolderSent},
		{"Sent Items", "/", FolderSent},
		{"Sent Mail", "/", FolderSent},
		{"Drafts", "/", FolderDrafts},
		{"Trash", "/", FolderTrash},
		{"Deleted Items", "/", FolderTrash},
		{"Junk", "/", FolderJunk},
		{"Spam", "/", FolderJunk},
		{"Archive", "/", FolderArchive},
		{"[Gmail]/Spam", "/", FolderJunk},
		{"[Gmail]/All Mail", "/", FolderArchive},
		{"[Gmail]/Sent Mail", "/", FolderSent},

		// Hierarchical names match on the last segment.
		{"INBOX.Sent", ".", FolderSent},
		{"INBOX/Junk", "/", FolderJunk},
		{"Mail/2019/Archive", "/", FolderArchive},

		// Without a delimiter only whole names match.
		{"INBOX.Sent", "", FolderOther},

		{"Newsletters", "/", FolderOther},
		{"Receipts", ".", FolderOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFolderType(tt.name, tt.delimiter); got != tt.want {
				t.Errorf("DetectFolderType(%q, %q) = %q, want %q", tt.name, tt.delimiter, got, tt.want)
			}
		})
	}
}
