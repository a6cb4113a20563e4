package imap

import (
	"github.com/emersion/go-imap/v2"

	"github.com/RipKord42/Hawk-TUI/internal/model"
)

// FolderInfo describes one folder as reported by the server.
type FolderInfo struct {
	// Name is the full hierarchical folder name.
	Name string

	// Delimiter separates hierarchy levels in Name.
	Delimiter string

	// Type is the folder's classification, from special-use attributes
	// when advertised and name heuristics otherwise.
	Type model.FolderType

	// Messages and Unseen are live counts from a STATUS query. They are
	// only meaningful when HasStatus is true; enrichment is best-effort
	// and skipped for folders whose STATUS fails.
	Messages  uint32
	Unseen    uint32
	HasStatus bool
}

// SelectInfo describes the state of a folder at selection time.
type SelectInfo struct {
	// NumMessages is the EXISTS count.
	NumMessages uint32

	// NumUnseen is the unseen count. Populated on the STATUS path
	// (re-selecting the current folder); zero after a fresh SELECT.
	NumUnseen uint32

	// UIDNext is the predicted next UID.
	UIDNext uint32

	// UIDValidity is the folder's current UID epoch.
	UIDValidity uint32
}

// FetchRequest selects which messages to fetch from one folder.
// Exactly one of UIDs, Limit, and SinceUID may be set.
type FetchRequest struct {
	// Folder is the folder to fetch from.
	Folder string

	// UIDs fetches exactly these identifiers.
	UIDs []uint32

	// Limit fetches the N most recent messages by mailbox position.
	// Positions are addressed by sequence number, not UID: UID space
	// can be sparse after deletions, so "the top N UIDs" would be wrong.
	Limit int

	// SinceUID fetches every message with UID greater than this value.
	SinceUID uint32

	// WithBody additionally retrieves and parses the full MIME body.
	WithBody bool
}

// flagMap pairs protocol flags with their local bit.
var flagMap = []struct {
	imap  imap.Flag
	local model.MessageFlags
}{
	{imap.FlagSeen, model.FlagSeen},
	{imap.FlagAnswered, model.FlagAnswered},
	{imap.FlagFlagged, model.FlagFlagged},
	{imap.FlagDeleted, model.FlagDeleted},
	{imap.FlagDraft, model.FlagDraft},
}

// flagsFromIMAP converts protocol flags to the local bit set. Unknown
// keywords are dropped.
func flagsFromIMAP(flags []imap.Flag) model.MessageFlags {
	var f model.MessageFlags
	for _, flag := range flags {
		for _, fm := range flagMap {
			if flag == fm.imap {
				f = f.With(fm.local)
				break
			}
		}
	}
	return f
}

// flagsToIMAP converts the server-backed portion of a local flag set to
// protocol flags. Local-only flags (spam) are never sent to the server.
func flagsToIMAP(f model.MessageFlags) []imap.Flag {
	var flags []imap.Flag
	for _, fm := range flagMap {
		if f.Has(fm.local) {
			flags = append(flags, fm.imap)
		}
	}
	return flags
}

// classifyFolder determines a folder's type. Special-use attributes win
// over name heuristics; the name check order is fixed for compatibility.
func classifyFolder(name string, delim string, attrs []imap.MailboxAttr) model.FolderType {
	for _, attr := range attrs {
		switch attr {
		case imap.MailboxAttrSent:
			return model.FolderSent
		case imap.MailboxAttrDrafts:
			return model.FolderDrafts
		case imap.MailboxAttrTrash:
			return model.FolderTrash
		case imap.MailboxAttrJunk:
			return model.FolderJunk
		case imap.MailboxAttrArchive, imap.MailboxAttrAll:
			return model.FolderArchive
		}
	}
	return model.DetectFolderType(name, delim)
}

// chunkUIDs splits uids into batches of at most size elements. The
// input order is preserved across batches.
func chunkUIDs(uids []uint32, size int) [][]uint32 {
	if size <= 0 || len(uids) == 0 {
		if len(uids) == 0 {
			return nil
		}
		return [][]uint32{uids}
	}
	var batches [][]uint32
	for start := 0; start < len(uids); start += size {
		end := start + size
		if end > len(uids) {
			end = len(uids)
		}
		batches = append(batches, uids[start:end])
	}
	return batches
}

// uidSetOf builds a protocol UID set from local uint32 identifiers.
func uidSetOf(uids []uint32) imap.UIDSet {
	set := make([]imap.UID, 0, len(uids))
	for _, uid := range uids {
		set = append(set, imap.UID(uid))
	}
	return imap.UIDSetNum(set...)
}

// seqWindow maps "the newest limit messages" onto a sequence-number
// range in a folder of total messages. ok is false when the folder is
// empty or limit is non-positive.
func seqWindow(total uint32, limit int) (start, end uint32, ok bool) {
	if total == 0 || limit <= 0 {
		return 0, 0, false
	}
	start = 1
	if uint32(limit) < total {
		start = total - uint32(limit) + 1
	}
	return start, total, true
}
