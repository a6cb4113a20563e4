package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RipKord42/Hawk-TUI/internal/model"
)

// UpsertAccount inserts or updates an account keyed by its unique name
// and returns the stored row with its database ID.
func (s *SQLiteStore) UpsertAccount(
	ctx context.Context,
	account model.Account,
) (*model.Account, error) {
	if strings.TrimSpace(account.Name) == "" {
		return nil, fmt.Errorf("account name must not be empty")
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (
			name, email, imap_host, imap_port, imap_security,
			smtp_host, smtp_port, smtp_security, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			email = excluded.email,
			imap_host = excluded.imap_host,
			imap_port = excluded.imap_port,
			imap_security = excluded.imap_security,
			smtp_host = excluded.smtp_host,
			smtp_port = excluded.smtp_port,
			smtp_security = excluded.smtp_security`,
		account.Name, account.Email,
		account.IMAPHost, account.IMAPPort, string(account.IMAPSecurity),
		account.SMTPHost, account.SMTPPort, string(account.SMTPSecurity),
		account.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("upserting account %s: %w", account.Name, err)
	}

	return s.GetAccountByName(ctx, account.Name)
}

// GetAccounts retrieves all stored accounts ordered by name.
func (s *SQLiteStore) GetAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM accounts ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// GetAccountByName retrieves a single account by its unique name.
func (s *SQLiteStore) GetAccountByName(
	ctx context.Context,
	name string,
) (*model.Account, error) {
	row := s.db.QueryRowxContext(ctx, "SELECT * FROM accounts WHERE name = ?", name)

	account, err := scanAccountRow(row)
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", name, err)
	}

	return &account, nil
}

// DeleteAccount removes an account by ID. Cascades to folders,
// messages, and attachments.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("account %d not found", id)
	}
	return nil
}

// scanAccount scans an account row from a sqlx.Rows result set.
func scanAccount(rows *sqlx.Rows) (model.Account, error) {
	var (
		account      model.Account
		imapSecurity string
		smtpSecurity string
	)

	err := rows.Scan(
		&account.ID, &account.Name, &account.Email,
		&account.IMAPHost, &account.IMAPPort, &imapSecurity,
		&account.SMTPHost, &account.SMTPPort, &smtpSecurity,
		&account.CreatedAt,
	)
	if err != nil {
		return model.Account{}, fmt.Errorf("scanning account row: %w", err)
	}

	account.IMAPSecurity = model.Security(imapSecurity)
	account.SMTPSecurity = model.Security(smtpSecurity)

	return account, nil
}

// scanAccountRow scans a single account row from a sqlx.Row.
func scanAccountRow(row *sqlx.Row) (model.Account, error) {
	var (
		account      model.Account
		imapSecurity string
		smtpSecurity string
	)

	err := row.Scan(
		&account.ID, &account.Name, &account.Email,
		&account.IMAPHost, &account.IMAPPort, &imapSecurity,
		&account.SMTPHost, &account.SMTPPort, &smtpSecurity,
		&account.CreatedAt,
	)
	if err != nil {
		return model.Account{}, fmt.Errorf("scanning account row: %w", err)
	}

	account.IMAPSecurity = model.Security(imapSecurity)
	account.SMTPSecurity = model.Security(smtpSecurity)

	return account, nil
}
