// ABOUTME: SQLite-backed account registry using modernc.org/sqlite
// ABOUTME: Persists gateway user accounts with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// AccountStore persists user accounts in SQLite. Message history is
// deliberately memory-resident; only the account registry survives
// restarts.
type AccountStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAccountStore opens (or creates) the account database at the given
// path. Parent directories are created if needed.
func NewAccountStore(path string) (*AccountStore, error) {
	logger := slog.Default().With("component", "accounts")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &AccountStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.seedDefaultAdmin(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding default admin: %w", err)
	}

	logger.Info("account store initialized", "path", path)
	return s, nil
}

// defaultAdminHash is the bcrypt hash of "password", the initial
// credential for the seeded admin account.
const defaultAdminHash = "$2a$10$92IXUNpkjO0rOQ5byMi.Ye4oKoEa3Ro9llC/.og/at2.uheWG/igi"

// seedDefaultAdmin inserts the built-in admin account into an empty
// database so a fresh deployment has a working login. Databases that
// already hold any account are left alone.
func (s *AccountStore) seedDefaultAdmin(ctx context.Context) error {
	n, err := s.CountAccounts(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	admin := &Account{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: defaultAdminHash,
		Role:         "admin",
		CreatedAt:    time.Now(),
	}
	if err := s.CreateAccount(ctx, admin); err != nil {
		return err
	}
	s.logger.Warn("seeded default admin account; change its password",
		"username", admin.Username)
	return nil
}

// createSchema creates the accounts table if it doesn't exist
func (s *AccountStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			username TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			created_at DATETIME NOT NULL,
			last_login DATETIME
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateAccount inserts a new account. Returns ErrDuplicateAccount if the
// username is taken.
func (s *AccountStore) CreateAccount(ctx context.Context, account *Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (username, display_name, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		account.Username, account.DisplayName, account.PasswordHash,
		account.Role, account.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

// GetAccount looks up an account by username. Returns ErrNotFound if the
// account does not exist.
func (s *AccountStore) GetAccount(ctx context.Context, username string) (*Account, error) {
	var account Account
	var lastLogin sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT username, display_name, password_hash, role, created_at, last_login
		 FROM accounts WHERE username = ?`, username).
		Scan(&account.Username, &account.DisplayName, &account.PasswordHash,
			&account.Role, &account.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	if lastLogin.Valid {
		account.LastLogin = &lastLogin.Time
	}
	return &account, nil
}

// TouchLastLogin stamps the account's last login time.
func (s *AccountStore) TouchLastLogin(ctx context.Context, username string, t time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET last_login = ? WHERE username = ?`, t, username)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAccounts returns every registered account, oldest first.
func (s *AccountStore) ListAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, display_name, password_hash, role, created_at, last_login
		 FROM accounts ORDER BY created_at, username`)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		var account Account
		var lastLogin sql.NullTime
		if err := rows.Scan(&account.Username, &account.DisplayName, &account.PasswordHash,
			&account.Role, &account.CreatedAt, &lastLogin); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		if lastLogin.Valid {
			account.LastLogin = &lastLogin.Time
		}
		accounts = append(accounts, &account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return accounts, nil
}

// CountAccounts returns the number of registered accounts.
func (s *AccountStore) CountAccounts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *AccountStore) Close() error {
	return s.db.Close()
}
