package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RipKord42/Hawk-TUI/internal/model"
)

// deleteChunk caps how many UIDs a single DELETE statement names, to
// stay under SQLite's bound-variable limit.
const deleteChunk = 500

// SaveMessages inserts or refreshes a batch of messages in one
// transaction. A message's identity is (folder, uid); resaving the
// same UID replaces its content, flags, and attachment set, so an
// interrupted and re-run sync converges instead of duplicating.
func (s *SQLiteStore) SaveMessages(
	ctx context.Context,
	folderID int64,
	messages []model.Message,
) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO messages (
			folder_id, uid, message_id, in_reply_to, references_list,
			subject, sender, recipients, cc, date,
			flags, spam_score, body_text, body_html, size
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?
		)
		ON CONFLICT(folder_id, uid) DO UPDATE SET
			message_id = excluded.message_id,
			in_reply_to = excluded.in_reply_to,
			references_list = excluded.references_list,
			subject = excluded.subject,
			sender = excluded.sender,
			recipients = excluded.recipients,
			cc = excluded.cc,
			date = excluded.date,
			flags = excluded.flags,
			spam_score = excluded.spam_score,
			body_text = excluded.body_text,
			body_html = excluded.body_html,
			size = excluded.size`

	stmt, err := tx.PreparexContext(ctx, upsert)
	if err != nil {
		return fmt.Errorf("preparing message upsert: %w", err)
	}
	defer stmt.Close()

	attStmt, err := tx.PreparexContext(ctx, `
		INSERT INTO attachments (message_id, filename, mime_type, size, content, inline)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing attachment insert: %w", err)
	}
	defer attStmt.Close()

	for _, m := range messages {
		recipients, err := json.Marshal(m.Recipients)
		if err != nil {
			return fmt.Errorf("marshaling recipients for uid %d: %w", m.UID, err)
		}
		cc, err := json.Marshal(m.Cc)
		if err != nil {
			return fmt.Errorf("marshaling cc for uid %d: %w", m.UID, err)
		}

		_, err = stmt.ExecContext(ctx,
			folderID, int64(m.UID), m.MessageID, m.InReplyTo, m.References,
			m.Subject, m.Sender, string(recipients), string(cc), m.Date.UTC(),
			int64(m.Flags), m.SpamScore, m.BodyText, m.BodyHTML, m.Size,
		)
		if err != nil {
			return fmt.Errorf("upserting message uid %d: %w", m.UID, err)
		}

		var msgID int64
		err = tx.GetContext(ctx, &msgID,
			"SELECT id FROM messages WHERE folder_id = ? AND uid = ?",
			folderID, int64(m.UID),
		)
		if err != nil {
			return fmt.Errorf("resolving message id for uid %d: %w", m.UID, err)
		}

		// Full replace keeps the attachment set in step with the
		// message content just written.
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM attachments WHERE message_id = ?", msgID,
		); err != nil {
			return fmt.Errorf("clearing attachments for uid %d: %w", m.UID, err)
		}
		for _, att := range m.Attachments {
			_, err := attStmt.ExecContext(ctx,
				msgID, att.Filename, att.MIMEType, att.Size,
				att.Content, boolToInt(att.Inline),
			)
			if err != nil {
				return fmt.Errorf("inserting attachment for uid %d: %w", m.UID, err)
			}
		}
	}

	return tx.Commit()
}

// GetMessages retrieves messages matching the provided filter options.
// Attachment metadata is included; attachment content is not.
func (s *SQLiteStore) GetMessages(
	ctx context.Context,
	filter MessageFilter,
) ([]model.Message, error) {
	var conditions []string
	var args []interface{}

	if filter.FolderID != nil {
		conditions = append(conditions, "folder_id = ?")
		args = append(args, *filter.FolderID)
	}
	if filter.AccountID != nil {
		conditions = append(conditions, "folder_id IN (SELECT id FROM folders WHERE account_id = ?)")
		args = append(args, *filter.AccountID)
	}
	for _, flagCond := range []struct {
		set  *bool
		mask model.MessageFlags
	}{
		{filter.Seen, model.FlagSeen},
		{filter.Flagged, model.FlagFlagged},
		{filter.Spam, model.FlagSpam},
	} {
		if flagCond.set == nil {
			continue
		}
		if *flagCond.set {
			conditions = append(conditions, "flags & ? != 0")
		} else {
			conditions = append(conditions, "flags & ? = 0")
		}
		args = append(args, int64(flagCond.mask))
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(subject LIKE ? OR sender LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := "SELECT * FROM messages"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	sortBy := "date"
	if filter.SortBy != "" {
		allowedSorts := map[string]bool{
			"date":    true,
			"subject": true,
			"sender":  true,
			"uid":     true,
			"size":    true,
		}
		if allowedSorts[filter.SortBy] {
			sortBy = filter.SortBy
		}
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, direction)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachMetadata(ctx, messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// GetMessageByUID retrieves a single message with its full attachment
// content.
func (s *SQLiteStore) GetMessageByUID(
	ctx context.Context,
	folderID int64,
	uid uint32,
) (*model.Message, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT * FROM messages WHERE folder_id = ? AND uid = ?",
		folderID, int64(uid),
	)

	msg, err := scanMessageRow(row)
	if err != nil {
		return nil, fmt.Errorf("getting message uid %d: %w", uid, err)
	}

	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM attachments WHERE message_id = ? ORDER BY id", msg.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		msg.Attachments = append(msg.Attachments, att)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &msg, nil
}

// LocalUIDs returns the set of UIDs currently cached for a folder.
func (s *SQLiteStore) LocalUIDs(
	ctx context.Context,
	folderID int64,
) (map[uint32]bool, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT uid FROM messages WHERE folder_id = ?", folderID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying local uids: %w", err)
	}
	defer rows.Close()

	uids := make(map[uint32]bool)
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scanning uid: %w", err)
		}
		uids[uint32(uid)] = true
	}

	return uids, rows.Err()
}

// LocalFlags returns the cached flags for every message in a folder,
// keyed by UID.
func (s *SQLiteStore) LocalFlags(
	ctx context.Context,
	folderID int64,
) (map[uint32]model.MessageFlags, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT uid, flags FROM messages WHERE folder_id = ?", folderID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying local flags: %w", err)
	}
	defer rows.Close()

	flags := make(map[uint32]model.MessageFlags)
	for rows.Next() {
		var uid, f int64
		if err := rows.Scan(&uid, &f); err != nil {
			return nil, fmt.Errorf("scanning flags: %w", err)
		}
		flags[uint32(uid)] = model.MessageFlags(f)
	}

	return flags, rows.Err()
}

// UpdateFlags writes new flag values for the given UIDs in one
// transaction. UIDs not present locally are ignored.
func (s *SQLiteStore) UpdateFlags(
	ctx context.Context,
	folderID int64,
	flags map[uint32]model.MessageFlags,
) error {
	if len(flags) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx,
		"UPDATE messages SET flags = ? WHERE folder_id = ? AND uid = ?",
	)
	if err != nil {
		return fmt.Errorf("preparing flag update: %w", err)
	}
	defer stmt.Close()

	for uid, f := range flags {
		if _, err := stmt.ExecContext(ctx, int64(f), folderID, int64(uid)); err != nil {
			return fmt.Errorf("updating flags for uid %d: %w", uid, err)
		}
	}

	return tx.Commit()
}

// SetSpam records a classifier score for the given messages and sets
// or clears their spam flag to match the verdict.
func (s *SQLiteStore) SetSpam(
	ctx context.Context,
	messageIDs []int64,
	score float64,
	isSpam bool,
) error {
	if len(messageIDs) == 0 {
		return nil
	}

	flagOp := "flags & ~?"
	if isSpam {
		flagOp = "flags | ?"
	}

	query, args, err := sqlx.In(
		"UPDATE messages SET spam_score = ?, flags = "+flagOp+" WHERE id IN (?)",
		score, int64(model.FlagSpam), messageIDs,
	)
	if err != nil {
		return fmt.Errorf("building spam update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("recording spam verdict: %w", err)
	}
	return nil
}

// DeleteMessagesByUIDs removes the named UIDs from a folder, cascading
// to their attachments.
func (s *SQLiteStore) DeleteMessagesByUIDs(
	ctx context.Context,
	folderID int64,
	uids []uint32,
) error {
	for start := 0; start < len(uids); start += deleteChunk {
		end := start + deleteChunk
		if end > len(uids) {
			end = len(uids)
		}
		chunk := make([]int64, 0, end-start)
		for _, uid := range uids[start:end] {
			chunk = append(chunk, int64(uid))
		}

		query, args, err := sqlx.In(
			"DELETE FROM messages WHERE folder_id = ? AND uid IN (?)",
			folderID, chunk,
		)
		if err != nil {
			return fmt.Errorf("building message delete query: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("deleting messages: %w", err)
		}
	}
	return nil
}

// DeleteAllMessages purges a folder's entire local cache. Used when
// the server's UIDVALIDITY changes and every cached UID is stale.
func (s *SQLiteStore) DeleteAllMessages(ctx context.Context, folderID int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE folder_id = ?", folderID,
	); err != nil {
		return fmt.Errorf("purging folder %d: %w", folderID, err)
	}
	return nil
}

// attachMetadata loads attachment rows minus content for a page of
// messages.
func (s *SQLiteStore) attachMetadata(ctx context.Context, messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(messages))
	byID := make(map[int64]*model.Message, len(messages))
	for i := range messages {
		ids = append(ids, messages[i].ID)
		byID[messages[i].ID] = &messages[i]
	}

	query, args, err := sqlx.In(`
		SELECT id, message_id, filename, mime_type, size, inline
		FROM attachments WHERE message_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("building attachment query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying attachment metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			att       model.Attachment
			inlineInt int
		)
		if err := rows.Scan(
			&att.ID, &att.MessageID, &att.Filename,
			&att.MIMEType, &att.Size, &inlineInt,
		); err != nil {
			return fmt.Errorf("scanning attachment metadata: %w", err)
		}
		att.Inline = inlineInt != 0
		if msg, ok := byID[att.MessageID]; ok {
			msg.Attachments = append(msg.Attachments, att)
		}
	}

	return rows.Err()
}

// scanMessage scans a message row from a sqlx.Rows result set.
func scanMessage(rows *sqlx.Rows) (model.Message, error) {
	var (
		msg        model.Message
		uid        int64
		recipients string
		cc         string
		date       time.Time
		flags      int64
	)

	err := rows.Scan(
		&msg.ID, &msg.FolderID, &uid,
		&msg.MessageID, &msg.InReplyTo, &msg.References,
		&msg.Subject, &msg.Sender, &recipients, &cc, &date,
		&flags, &msg.SpamScore, &msg.BodyText, &msg.BodyHTML, &msg.Size,
	)
	if err != nil {
		return model.Message{}, fmt.Errorf("scanning message row: %w", err)
	}

	msg.UID = uint32(uid)
	msg.Date = date
	msg.Flags = model.MessageFlags(flags)

	if recipients != "" {
		if err := json.Unmarshal([]byte(recipients), &msg.Recipients); err != nil {
			return model.Message{}, fmt.Errorf("unmarshaling recipients: %w", err)
		}
	}
	if cc != "" {
		if err := json.Unmarshal([]byte(cc), &msg.Cc); err != nil {
			return model.Message{}, fmt.Errorf("unmarshaling cc: %w", err)
		}
	}

	return msg, nil
}

// scanMessageRow scans a single message row from a sqlx.Row.
func scanMessageRow(row *sqlx.Row) (model.Message, error) {
	var (
		msg        model.Message
		uid        int64
		recipients string
		cc         string
		date       time.Time
		flags      int64
	)

	err := row.Scan(
		&msg.ID, &msg.FolderID, &uid,
		&msg.MessageID, &msg.InReplyTo, &msg.References,
		&msg.Subject, &msg.Sender, &recipients, &cc, &date,
		&flags, &msg.SpamScore, &msg.BodyText, &msg.BodyHTML, &msg.Size,
	)
	if err != nil {
		return model.Message{}, fmt.Errorf("scanning message row: %w", err)
	}

	msg.UID = uint32(uid)
	msg.Date = date
	msg.Flags = model.MessageFlags(flags)

	if recipients != "" {
		if err := json.Unmarshal([]byte(recipients), &msg.Recipients); err != nil {
			return model.Message{}, fmt.Errorf("unmarshaling recipients: %w", err)
		}
	}
	if cc != "" {
		if err := json.Unmarshal([]byte(cc), &msg.Cc); err != nil {
			return model.Message{}, fmt.Errorf("unmarshaling cc: %w", err)
		}
	}

	return msg, nil
}

// scanAttachment scans a full attachment row including content.
func scanAttachment(rows *sqlx.Rows) (model.Attachment, error) {
	var (
		att       model.Attachment
		inlineInt int
	)

	err := rows.Scan(
		&att.ID, &att.MessageID, &att.Filename,
		&att.MIMEType, &att.Size, &att.Content, &inlineInt,
	)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("scanning attachment row: %w", err)
	}

	att.Inline = inlineInt != 0
	return att, nil
}
