package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/RipKord42/Hawk-TUI/internal/model"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

// Search runs a full-text query over subject, sender, and body text,
// optionally scoped to one account or folder. Results come back newest
// first with attachment metadata but no attachment content.
func (s *SQLiteStore) Search(ctx context.Context, q SearchQuery) ([]model.Message, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("search text must not be empty")
	}

	// Escape special characters for FTS5.
	text = strings.ReplaceAll(text, "\"", "\"\"")
	text = strings.ReplaceAll(text, "'", "''")

	conditions := []string{
		"id IN (SELECT rowid FROM messages_fts WHERE messages_fts MATCH ?)",
	}
	args := []interface{}{text}

	if q.FolderID != nil {
		conditions = append(conditions, "folder_id = ?")
		args = append(args, *q.FolderID)
	}
	if q.AccountID != nil {
		conditions = append(conditions, "folder_id IN (SELECT id FROM folders WHERE account_id = ?)")
		args = append(args, *q.AccountID)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	query := "SELECT * FROM messages WHERE " + strings.Join(conditions, " AND ") +
		fmt.Sprintf(" ORDER BY date DESC LIMIT %d", limit)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
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
