package imap

import (
	"context"
	"strings"
	"testing"

	"github.com/emersion/go-imap/v2"

	"github.com/RipKord42/Hawk-TUI/internal/model"
)

func TestClassifyFolder(t *testing.T) {
	tests := []struct {
		name   string
		folder string
		delim  string
		attrs  []imap.MailboxAttr
		want   model.FolderType
	}{
		{
			name:   "special-use attribute wins over name",
			folder: "Weird Name",
			attrs:  []imap.MailboxAttr{imap.MailboxAttrJunk},
			want:   model.FolderJunk,
		},
		{
			name:   "sent attribute",
			folder: "Gesendet",
			attrs:  []imap.MailboxAttr{imap.MailboxAttrSent},
			want:   model.FolderSent,
		},
		{
			name:   "inbox by name",
			folder: "INBOX",
			want:   model.FolderInbox,
		},
		{
			name:   "spam alias",
			folder: "Spam",
			want:   model.FolderJunk,
		},
		{
			name:   "nested folder matches on last segment",
			folder: "INBOX/Drafts",
			delim:  "/",
			want:   model.FolderDrafts,
		},
		{
			name:   "gmail style full name",
			folder: "[Gmail]/Trash",
			delim:  "/",
			want:   model.FolderTrash,
		},
		{
			name:   "unknown name",
			folder: "Receipts",
			want:   model.FolderOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyFolder(tt.folder, tt.delim, tt.attrs)
			if got != tt.want {
				t.Errorf("classifyFolder(%q) = %q, want %q", tt.folder, got, tt.want)
			}
		})
	}
}

func TestFlagConversion(t *testing.T) {
	got := flagsFromIMAP([]imap.Flag{imap.FlagSeen, imap.FlagFlagged, imap.Flag("\\Custom")})
	want := model.FlagSeen | model.FlagFlagged
	if got != want {
		t.Errorf("flagsFromIMAP = %v, want %v", got, want)
	}

	back := flagsToIMAP(model.FlagSeen | model.FlagAnswered | model.FlagSpam)
	if len(back) != 2 {
		t.Fatalf("flagsToIMAP returned %d flags, want 2 (spam is local-only)", len(back))
	}
	for _, f := range back {
		if f != imap.FlagSeen && f != imap.FlagAnswered {
			t.Errorf("flagsToIMAP produced unexpected flag %q", f)
		}
	}

	if flags := flagsToIMAP(model.FlagSpam); len(flags) != 0 {
		t.Errorf("flagsToIMAP(FlagSpam) = %v, want none", flags)
	}
}

func TestChunkUIDs(t *testing.T) {
	tests := []struct {
		name string
		uids []uint32
		size int
		want [][]uint32
	}{
		{
			name: "empty input",
			uids: nil,
			size: 3,
			want: nil,
		},
		{
			name: "single partial batch",
			uids: []uint32{1, 2},
			size: 3,
			want: [][]uint32{{1, 2}},
		},
		{
			name: "exact multiple",
			uids: []uint32{1, 2, 3, 4},
			size: 2,
			want: [][]uint32{{1, 2}, {3, 4}},
		},
		{
			name: "remainder batch",
			uids: []uint32{5, 6, 7, 8, 9},
			size: 2,
			want: [][]uint32{{5, 6}, {7, 8}, {9}},
		},
		{
			name: "non-positive size keeps one batch",
			uids: []uint32{1, 2, 3},
			size: 0,
			want: [][]uint32{{1, 2, 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunkUIDs(tt.uids, tt.size)
			if len(got) != len(tt.want) {
				t.Fatalf("chunkUIDs returned %d batches, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if len(got[i]) != len(tt.want[i]) {
					t.Fatalf("batch %d has %d uids, want %d", i, len(got[i]), len(tt.want[i]))
				}
				for j := range got[i] {
					if got[i][j] != tt.want[i][j] {
						t.Errorf("batch %d uid %d = %d, want %d", i, j, got[i][j], tt.want[i][j])
					}
				}
			}
		})
	}
}

func TestSeqWindow(t *testing.T) {
	tests := []struct {
		name      string
		total     uint32
		limit     int
		wantStart uint32
		wantEnd   uint32
		wantOK    bool
	}{
		{name: "window inside folder", total: 10, limit: 3, wantStart: 8, wantEnd: 10, wantOK: true},
		{name: "limit larger than folder", total: 2, limit: 5, wantStart: 1, wantEnd: 2, wantOK: true},
		{name: "limit equals folder", total: 4, limit: 4, wantStart: 1, wantEnd: 4, wantOK: true},
		{name: "empty folder", total: 0, limit: 5, wantOK: false},
		{name: "zero limit", total: 10, limit: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := seqWindow(tt.total, tt.limit)
			if ok != tt.wantOK {
				t.Fatalf("seqWindow(%d, %d) ok = %v, want %v", tt.total, tt.limit, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("seqWindow(%d, %d) = %d..%d, want %d..%d",
					tt.total, tt.limit, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestFormatAddress(t *testing.T) {
	withName := imap.Address{Name: "Ada Lovelace", Mailbox: "ada", Host: "example.org"}
	if got := formatAddress(withName); got != "Ada Lovelace <ada@example.org>" {
		t.Errorf("formatAddress = %q", got)
	}

	bare := imap.Address{Mailbox: "ops", Host: "example.org"}
	if got := formatAddress(bare); got != "ops@example.org" {
		t.Errorf("formatAddress = %q", got)
	}
}

func TestFetchRequestNeedsExactlyOneMode(t *testing.T) {
	c := NewClient(model.Account{Name: "test"}, nil)

	tests := []struct {
		name string
		req  FetchRequest
	}{
		{name: "no selector", req: FetchRequest{Folder: "INBOX"}},
		{name: "two selectors", req: FetchRequest{Folder: "INBOX", Limit: 5, SinceUID: 9}},
		{name: "all selectors", req: FetchRequest{Folder: "INBOX", UIDs: []uint32{1}, Limit: 5, SinceUID: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.FetchMessages(context.Background(), tt.req)
			if err == nil {
				t.Fatal("FetchMessages accepted an invalid request")
			}
			if !IsProtocolError(err) {
				t.Errorf("FetchMessages error = %v, want protocol error", err)
			}
		})
	}
}

func TestParseBodySinglePart(t *testing.T) {
	raw := strings.Join([]string{
		"From: Ada Lovelace <ada@example.org>",
		"To: ops@example.org",
		"Subject: engine notes",
		"Message-ID: <m1@example.org>",
		"In-Reply-To: <m0@example.org>",
		"References: <root@example.org> <m0@example.org>",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"The analytical engine weaves algebraic patterns.",
	}, "\r\n")

	var msg model.Message
	parseBody([]byte(raw), &msg)

	if !strings.Contains(msg.BodyText, "analytical engine") {
		t.Errorf("BodyText = %q, want the plain text body", msg.BodyText)
	}
	if msg.BodyHTML != "" {
		t.Errorf("BodyHTML = %q, want empty", msg.BodyHTML)
	}
	if msg.InReplyTo != "m0@example.org" {
		t.Errorf("InReplyTo = %q, want %q", msg.InReplyTo, "m0@example.org")
	}
	if !strings.Contains(msg.References, "root@example.org") {
		t.Errorf("References = %q, want the references header", msg.References)
	}
}

func TestParseBodyMultipartWithAttachment(t *testing.T) {
	raw := strings.Join([]string{
		"From: ada@example.org",
		"To: ops@example.org",
		"Subject: report",
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=frontier",
		"",
		"--frontier",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"See attached.",
		"--frontier",
		"Content-Type: application/pdf",
		"Content-Disposition: attachment; filename=report.pdf",
		"Content-Transfer-Encoding: base64",
		"",
		"JVBERi0xLjQ=",
		"--frontier--",
	}, "\r\n")

	var msg model.Message
	parseBody([]byte(raw), &msg)

	if !strings.Contains(msg.BodyText, "See attached.") {
		t.Errorf("BodyText = %q, want the inline part", msg.BodyText)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(msg.Attachments))
	}
	att := msg.Attachments[0]
	if att.Filename != "report.pdf" {
		t.Errorf("attachment filename = %q, want %q", att.Filename, "report.pdf")
	}
	if att.MIMEType != "application/pdf" {
		t.Errorf("attachment type = %q, want %q", att.MIMEType, "application/pdf")
	}
	if att.Inline {
		t.Error("attachment marked inline")
	}
	if att.Size == 0 {
		t.Error("attachment size is zero")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	authErr := &AuthError{Account: "work", Message: "bad credentials"}
	if !IsAuthError(authErr) {
		t.Error("IsAuthError missed an AuthError")
	}
	if IsConnError(authErr) {
		t.Error("IsConnError matched an AuthError")
	}

	connErr := &ConnError{Account: "work", Err: context.DeadlineExceeded}
	if !IsConnError(connErr) {
		t.Error("IsConnError missed a ConnError")
	}
	if IsAuthError(connErr) {
		t.Error("IsAuthError matched a ConnError")
	}
}
