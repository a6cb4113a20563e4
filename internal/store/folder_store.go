package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RipKord42/Hawk-TUI/internal/model"
)

// UpsertFolder inserts or updates a folder keyed by (account, name) and
// returns the stored row. On update only the classification and
// delimiter change; the UID epoch and cached counts survive, since
// those belong to the sync engine.
func (s *SQLiteStore) UpsertFolder(
	ctx context.Context,
	folder model.Folder,
) (*model.Folder, error) {
	if folder.Name == "" {
		return nil, fmt.Errorf("folder name must not be empty")
	}
	if folder.Type == "" {
		folder.Type = model.FolderOther
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (account_id, name, type, delimiter)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, name) DO UPDATE SET
			type = excluded.type,
			delimiter = excluded.delimiter`,
		folder.AccountID, folder.Name, string(folder.Type), folder.Delimiter,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting folder %s: %w", folder.Name, err)
	}

	return s.GetFolderByName(ctx, folder.AccountID, folder.Name)
}

// GetFolders retrieves all folders for an account ordered by name.
func (s *SQLiteStore) GetFolders(
	ctx context.Context,
	accountID int64,
) ([]model.Folder, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM folders WHERE account_id = ? ORDER BY name", accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying folders: %w", err)
	}
	defer rows.Close()

	var folders []model.Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}

	return folders, rows.Err()
}

// GetFolderByName retrieves a single folder by account and name.
func (s *SQLiteStore) GetFolderByName(
	ctx context.Context,
	accountID int64,
	name string,
) (*model.Folder, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT * FROM folders WHERE account_id = ? AND name = ?", accountID, name,
	)

	folder, err := scanFolderRow(row)
	if err != nil {
		return nil, fmt.Errorf("getting folder %s: %w", name, err)
	}

	return &folder, nil
}

// GetFolderByType retrieves the account's first folder of the given
// type, or nil when the account has none. Absence is an expected
// outcome here (not every provider exposes a Junk folder), so it is
// not an error.
func (s *SQLiteStore) GetFolderByType(
	ctx context.Context,
	accountID int64,
	folderType model.FolderType,
) (*model.Folder, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT * FROM folders WHERE account_id = ? AND type = ? ORDER BY name LIMIT 1",
		accountID, string(folderType),
	)

	folder, err := scanFolderRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting %s folder: %w", folderType, err)
	}

	return &folder, nil
}

// SetFolderUIDValidity records a folder's UID epoch after the local
// cache has been aligned with it.
func (s *SQLiteStore) SetFolderUIDValidity(
	ctx context.Context,
	folderID int64,
	uidValidity uint32,
) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE folders SET uidvalidity = ? WHERE id = ?",
		int64(uidValidity), folderID,
	)
	if err != nil {
		return fmt.Errorf("setting uidvalidity for folder %d: %w", folderID, err)
	}
	return nil
}

// UpdateFolderCounts recomputes the folder's cached totals from the
// messages actually present locally and stamps the sync time.
func (s *SQLiteStore) UpdateFolderCounts(ctx context.Context, folderID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE folders SET
			total_messages = (SELECT COUNT(*) FROM messages WHERE folder_id = ?),
			unread_count = (SELECT COUNT(*) FROM messages WHERE folder_id = ? AND flags & ? = 0),
			last_sync_time = ?
		WHERE id = ?`,
		folderID, folderID, int64(model.FlagSeen), time.Now().UTC(), folderID,
	)
	if err != nil {
		return fmt.Errorf("updating counts for folder %d: %w", folderID, err)
	}
	return nil
}

// DeleteFoldersExcept removes an account's folders whose names are not
// in keep, cascading to their messages. An empty keep list removes all
// of the account's folders.
func (s *SQLiteStore) DeleteFoldersExcept(
	ctx context.Context,
	accountID int64,
	keep []string,
) error {
	if len(keep) == 0 {
		_, err := s.db.ExecContext(ctx,
			"DELETE FROM folders WHERE account_id = ?", accountID,
		)
		if err != nil {
			return fmt.Errorf("deleting folders for account %d: %w", accountID, err)
		}
		return nil
	}

	query, args, err := sqlx.In(
		"DELETE FROM folders WHERE account_id = ? AND name NOT IN (?)",
		accountID, keep,
	)
	if err != nil {
		return fmt.Errorf("building folder delete query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting stale folders for account %d: %w", accountID, err)
	}
	return nil
}

// scanFolder scans a folder row from a sqlx.Rows result set.
func scanFolder(rows *sqlx.Rows) (model.Folder, error) {
	var (
		folder       model.Folder
		folderType   string
		uidValidity  int64
		lastSyncTime *time.Time
	)

	err := rows.Scan(
		&folder.ID, &folder.AccountID, &folder.Name, &folderType,
		&folder.Delimiter, &uidValidity,
		&folder.TotalMessages, &folder.UnreadCount, &lastSyncTime,
	)
	if err != nil {
		return model.Folder{}, fmt.Errorf("scanning folder row: %w", err)
	}

	folder.Type = model.FolderType(folderType)
	folder.UIDValidity = uint32(uidValidity)
	if lastSyncTime != nil {
		folder.LastSyncTime = *lastSyncTime
	}

	return folder, nil
}

// scanFolderRow scans a single folder row from a sqlx.Row.
func scanFolderRow(row *sqlx.Row) (model.Folder, error) {
	var (
		folder       model.Folder
		folderType   string
		uidValidity  int64
		lastSyncTime *time.Time
	)

	err := row.Scan(
		&folder.ID, &folder.AccountID, &folder.Name, &folderType,
		&folder.Delimiter, &uidValidity,
		&folder.TotalMessages, &folder.UnreadCount, &lastSyncTime,
	)
	if err != nil {
		return model.Folder{}, fmt.Errorf("scanning folder row: %w", err)
	}

	folder.Type = model.FolderType(folderType)
	folder.UIDValidity = uint32(uidValidity)
	if lastSyncTime != nil {
		folder.LastSyncTime = *lastSyncTime
	}

	return folder, nil
}
