package model

import "time"

// Message is one mail item inside exactly one folder. Its identity
// within the folder is (FolderID, UID); the UID is only meaningful
// relative to the folder's current UIDValidity.
type Message struct {
	// ID is the local database identifier.
	ID int64 `json:"id"`

	// FolderID links the message to its owning folder.
	FolderID int64 `json:"folder_id"`

	// UID is the server-assigned identifier within the folder.
	UID uint32 `json:"uid"`

	// MessageID is the RFC 5322 Message-ID header, used for threading.
	MessageID string `json:"message_id"`

	// InReplyTo and References carry the threading headers.
	InReplyTo  string `json:"in_reply_to"`
	References string `json:"references"`

	// Subject is the decoded subject line.
	Subject string `json:"subject"`

	// Sender is the From address ("Name <addr>" or bare address).
	Sender string `json:"sender"`

	// Recipients and Cc hold the To and Cc addresses.
	Recipients []string `json:"recipients"`
	Cc         []string `json:"cc"`

	// Date is the message date from the envelope.
	Date time.Time `json:"date"`

	// Flags is the message's flag bit set.
	Flags MessageFlags `json:"flags"`

	// SpamScore is the classifier's spam probability in [0,1].
	// Negative means the message has not been scored.
	SpamScore float64 `json:"spam_score"`

	// BodyText and BodyHTML hold the decoded body parts. Empty when the
	// message was fetched headers-only.
	BodyText string `json:"body_text"`
	BodyHTML string `json:"body_html"`

	// Size is the server-reported message size in bytes.
	Size int64 `json:"size"`

	// Attachments holds the message's attachments, if fetched.
	Attachments []Attachment `json:"attachments,omitempty"`
}

// HasAttachments reports whether the message carries any attachments.
func (m *Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// IsRead reports whether the seen flag is set.
func (m *Message) IsRead() bool {
	return m.Flags.Has(FlagSeen)
}

// Attachment is a binary payload owned by exactly one message. The
// attachment set is replaced wholesale whenever its message is resaved.
type Attachment struct {
	// ID is the local database identifier.
	ID int64 `json:"id"`

	// MessageID links the attachment to its owning message row.
	MessageID int64 `json:"message_id"`

	// Filename is the declared file name, possibly empty for inline parts.
	Filename string `json:"filename"`

	// MIMEType is the declared content type.
	MIMEType string `json:"mime_type"`

	// Size is the decoded payload size in bytes.
	Size int64 `json:"size"`

	// Content is the decoded payload.
	Content []byte `json:"-"`

	// Inline marks parts referenced from the message body (inline images)
	// as opposed to regular attachments.
	Inline bool `json:"inline"`
}
