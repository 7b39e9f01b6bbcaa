// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite or mattn/go-sqlite3
// ABOUTME: Provides message persistence, cursor lookups, and transactions with automatic migration

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open
const (
	DriverModernc = "sqlite"
	DriverCGO     = "sqlite3"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options configures Open
type Options struct {
	Path   string
	Driver string // DriverModernc when empty
	Logger *slog.Logger
}

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	q      querier
	logger *slog.Logger
}

// NewSQLiteStore opens the database at path with the default driver.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	return Open(ctx, Options{Path: path})
}

// Open creates or opens the SQLite database described by opts and migrates it
// to the latest schema version. Parent directories are created if needed.
func Open(ctx context.Context, opts Options) (*SQLiteStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	driver := opts.Driver
	if driver == "" {
		driver = DriverModernc
	}

	dsn, err := dataSourceName(driver, opts.Path)
	if err != nil {
		return nil, err
	}

	// Ensure parent directory exists
	dir := filepath.Dir(opts.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		q:      db,
		logger: logger,
	}

	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", opts.Path, "driver", driver)
	return s, nil
}

// dataSourceName builds a DSN that applies our pragmas on every new connection.
// The two drivers spell connection pragmas differently.
func dataSourceName(driver, path string) (string, error) {
	switch driver {
	case DriverModernc:
		return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	case DriverCGO:
		return "file:" + path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// WithTx runs fn inside a transaction. The Writer handed to fn is only valid
// until fn returns.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(w Writer) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	txStore := &SQLiteStore{db: s.db, q: tx, logger: s.logger}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rolling back transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// FindMessageByID retrieves a message by its upstream ID.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) FindMessageByID(ctx context.Context, id int64) (*Message, error) {
	query := `
		SELECT id, avatar_url, created_at, name, sender_id, sender_type,
		       source_guid, system, message_text, user_id
		FROM messages
		WHERE id = ?
	`

	var msg Message
	var avatarURL, text sql.NullString
	var createdAtStr, senderType string

	err := s.q.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&avatarURL,
		&createdAtStr,
		&msg.Name,
		&msg.SenderID,
		&senderType,
		&msg.SourceGUID,
		&msg.System,
		&text,
		&msg.UserID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}

	msg.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	msg.AvatarURL = avatarURL.String
	msg.Text = text.String
	msg.SenderType = SenderType(senderType)

	return &msg, nil
}

// SaveMessage inserts the message, or overwrites every stored field of an
// existing message with the same ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (
			id, avatar_url, created_at, name, sender_id,
			sender_type, source_guid, system, message_text, user_id
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			avatar_url = excluded.avatar_url,
			created_at = excluded.created_at,
			name = excluded.name,
			sender_id = excluded.sender_id,
			sender_type = excluded.sender_type,
			source_guid = excluded.source_guid,
			system = excluded.system,
			message_text = excluded.message_text,
			user_id = excluded.user_id
	`

	_, err := s.q.ExecContext(ctx, query,
		msg.ID,
		nullString(msg.AvatarURL),
		msg.CreatedAt.UTC().Format(time.RFC3339),
		msg.Name,
		msg.SenderID,
		string(msg.SenderType),
		msg.SourceGUID,
		msg.System,
		nullString(msg.Text),
		msg.UserID,
	)
	if err != nil {
		return fmt.Errorf("saving message %d: %w", msg.ID, err)
	}

	s.logger.Info("saved message", "id", msg.ID)
	return nil
}

// FindFirstID returns the smallest stored message ID, or ErrNotFound when empty.
func (s *SQLiteStore) FindFirstID(ctx context.Context) (int64, error) {
	return s.boundaryID(ctx, `SELECT MIN(id) FROM messages`)
}

// FindLastID returns the largest stored message ID, or ErrNotFound when empty.
func (s *SQLiteStore) FindLastID(ctx context.Context) (int64, error) {
	return s.boundaryID(ctx, `SELECT MAX(id) FROM messages`)
}

func (s *SQLiteStore) boundaryID(ctx context.Context, query string) (int64, error) {
	var id sql.NullInt64
	if err := s.q.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return 0, fmt.Errorf("querying message id bounds: %w", err)
	}
	if !id.Valid {
		return 0, ErrNotFound
	}
	return id.Int64, nil
}

// nullString returns nil for empty strings so optional columns stay NULL
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
