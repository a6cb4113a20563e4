package model

import "strings"

// MessageFlags is a bit set of per-message flags. All flags except
// FlagSpam correspond to standard IMAP system flags; FlagSpam is
// local-only and is never written back to the server.
type MessageFlags uint32

const (
	FlagNone     MessageFlags = 0
	FlagSeen     MessageFlags = 1 << 0
	FlagAnswered MessageFlags = 1 << 1
	FlagFlagged  MessageFlags = 1 << 2
	FlagDeleted  MessageFlags = 1 << 3
	FlagDraft    MessageFlags = 1 << 4
	FlagSpam     MessageFlags = 1 << 5
)

// serverFlags are the flags that map to protocol-level flags.
const serverFlags = FlagSeen | FlagAnswered | FlagFlagged | FlagDeleted | FlagDraft

// Has reports whether all flags in f2 are set in f.
func (f MessageFlags) Has(f2 MessageFlags) bool {
	return f&f2 == f2
}

// With returns f with the flags in f2 added.
func (f MessageFlags) With(f2 MessageFlags) MessageFlags {
	return f | f2
}

// Without returns f with the flags in f2 removed.
func (f MessageFlags) Without(f2 MessageFlags) MessageFlags {
	return f &^ f2
}

// ServerPart returns f restricted to the flags that exist on the server,
// dropping local-only flags such as FlagSpam.
func (f MessageFlags) ServerPart() MessageFlags {
	return f & serverFlags
}

// MergeServer replaces the server-backed portion of f with the server
// value while preserving local-only flags. Used by flag reconciliation,
// where the server always wins for the flags it owns.
func (f MessageFlags) MergeServer(server MessageFlags) MessageFlags {
	return (f &^ serverFlags) | server.ServerPart()
}

// flagNames is ordered by bit position.
var flagNames = []struct {
	flag MessageFlags
	name string
}{
	{FlagSeen, "seen"},
	{FlagAnswered, "answered"},
	{FlagFlagged, "flagged"},
	{FlagDeleted, "deleted"},
	{FlagDraft, "draft"},
	{FlagSpam, "spam"},
}

// String returns a comma-separated list of set flag names, or "none".
func (f MessageFlags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
