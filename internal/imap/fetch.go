package imap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"github.com/RipKord42/Hawk-TUI/internal/model"
)

// FetchMessages downloads messages from a folder according to the
// request's single selection mode. Flags and envelope metadata are
// always fetched; bodies and attachments only when req.WithBody is
// set. Fetches use BODY.PEEK so reading never flips \Seen.
func (c *Client) FetchMessages(ctx context.Context, req FetchRequest) ([]model.Message, error) {
	modes := 0
	if len(req.UIDs) > 0 {
		modes++
	}
	if req.Limit > 0 {
		modes++
	}
	if req.SinceUID > 0 {
		modes++
	}
	if modes != 1 {
		return nil, &ProtocolError{
			Op:  "fetch messages",
			Err: errors.New("request needs exactly one of uids, limit, or since-uid"),
		}
	}

	info, err := c.SelectFolder(ctx, req.Folder, false)
	if err != nil {
		return nil, err
	}
	opCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	defer c.opGuard(opCtx)()

	var numSet imap.NumSet
	switch {
	case len(req.UIDs) > 0:
		numSet = uidSetOf(req.UIDs)
	case req.SinceUID > 0:
		var set imap.UIDSet
		set.AddRange(imap.UID(req.SinceUID+1), 0)
		numSet = set
	default:
		// Limit selects the newest messages by sequence position,
		// which is the only addressing that means "most recent"
		// without knowing any UIDs up front.
		start, end, ok := seqWindow(info.NumMessages, req.Limit)
		if !ok {
			return nil, nil
		}
		var set imap.SeqSet
		set.AddRange(start, end)
		numSet = set
	}

	var bodySection *imap.FetchItemBodySection
	fetchOpts := &imap.FetchOptions{
		Envelope:     true,
		Flags:        true,
		UID:          true,
		InternalDate: true,
		RFC822Size:   true,
	}
	if req.WithBody {
		bodySection = &imap.FetchItemBodySection{Peek: true}
		fetchOpts.BodySection = []*imap.FetchItemBodySection{bodySection}
	}

	fetchCmd := c.cli.Fetch(numSet, fetchOpts)

	var messages []model.Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		messages = append(messages, buildMessage(buf, bodySection))
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, c.fail("fetch messages in "+req.Folder, err)
	}

	c.logger.WithFields(logrus.Fields{
		"account": c.account.Name,
		"folder":  req.Folder,
		"count":   len(messages),
	}).Debug("fetched messages")

	return messages, nil
}

// FetchFlags returns the current server flags for the given UIDs,
// batched to keep each round trip small. UIDs absent on the server are
// simply missing from the result.
func (c *Client) FetchFlags(ctx context.Context, folder string, uids []uint32) (map[uint32]model.MessageFlags, error) {
	flags := make(map[uint32]model.MessageFlags, len(uids))
	if len(uids) == 0 {
		return flags, nil
	}

	if _, err := c.SelectFolder(ctx, folder, false); err != nil {
		return nil, err
	}

	for _, chunk := range chunkUIDs(uids, c.flagBatch) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := c.withOpTimeout(ctx, opTimeout, func() error {
			fetchCmd := c.cli.Fetch(uidSetOf(chunk), &imap.FetchOptions{
				UID:   true,
				Flags: true,
			})
			for {
				msg := fetchCmd.Next()
				if msg == nil {
					break
				}
				buf, err := msg.Collect()
				if err != nil {
					continue
				}
				flags[uint32(buf.UID)] = flagsFromIMAP(buf.Flags)
			}
			return fetchCmd.Close()
		})
		if err != nil {
			return nil, c.fail("fetch flags in "+folder, err)
		}
	}

	return flags, nil
}

// buildMessage converts a raw fetch buffer into the local message
// model. bodySection is nil for metadata-only fetches.
func buildMessage(buf *imapclient.FetchMessageBuffer, bodySection *imap.FetchItemBodySection) model.Message {
	msg := model.Message{
		UID:       uint32(buf.UID),
		Flags:     flagsFromIMAP(buf.Flags),
		Date:      buf.InternalDate,
		Size:      buf.RFC822Size,
		SpamScore: -1,
	}

	if buf.Envelope != nil {
		msg.MessageID = strings.Trim(buf.Envelope.MessageID, "<>")
		msg.Subject = buf.Envelope.Subject
		if !buf.Envelope.Date.IsZero() {
			msg.Date = buf.Envelope.Date
		}
		if len(buf.Envelope.From) > 0 {
			msg.Sender = formatAddress(buf.Envelope.From[0])
		}
		for _, to := range buf.Envelope.To {
			msg.Recipients = append(msg.Recipients, to.Addr())
		}
		for _, cc := range buf.Envelope.Cc {
			msg.Cc = append(msg.Cc, cc.Addr())
		}
	}

	if bodySection != nil {
		if raw := buf.FindBodySection(bodySection); raw != nil {
			parseBody(raw, &msg)
		}
	}

	return msg
}

// formatAddress renders an address as "Name <user@host>" or the bare
// address when no display name is present.
func formatAddress(a imap.Address) string {
	if a.Name != "" {
		return fmt.Sprintf("%s <%s>", a.Name, a.Addr())
	}
	return a.Addr()
}

// parseBody parses a raw RFC 2822 message, filling body text, HTML,
// threading headers, and attachments on msg.
func parseBody(raw []byte, msg *model.Message) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// If parsing fails, treat the whole thing as plain text
		msg.BodyText = string(raw)
		return
	}
	defer mr.Close()

	if v := mr.Header.Get("In-Reply-To"); v != "" {
		msg.InReplyTo = strings.Trim(strings.TrimSpace(v), "<>")
	}
	if v := mr.Header.Get("References"); v != "" {
		msg.References = strings.TrimSpace(v)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				if msg.BodyText == "" {
					msg.BodyText = string(body)
				}
			case strings.HasPrefix(contentType, "text/html"):
				if msg.BodyHTML == "" {
					msg.BodyHTML = string(body)
				}
			default:
				// Inline non-text part, usually an image the HTML
				// body references by Content-ID.
				msg.Attachments = append(msg.Attachments, model.Attachment{
					MIMEType: contentType,
					Size:     int64(len(body)),
					Content:  body,
					Inline:   true,
				})
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			msg.Attachments = append(msg.Attachments, model.Attachment{
				Filename: filename,
				MIMEType: contentType,
				Size:     int64(len(body)),
				Content:  body,
			})
		}
	}
}
