// Package store persists mirrored group messages in an embedded SQLite database.
//
// # Architecture
//
// SQLiteStore implements both interfaces:
//
//   - Writer: message upserts and attachment inserts, usable inside a transaction
//   - Store: Writer plus cursor lookups, transactions, schema version and stats
//
// The sync driver depends on Store; tests and the CLI use SQLiteStore directly.
//
// # Data Models
//
//   - Message: one group message keyed by its upstream numeric ID
//   - Image, File, Video, Mention, Emoji, Location, Event, AutokickedMember:
//     attachment rows keyed by (message_id, natural key columns)
//
// Attachment rows have no identity of their own. Each table carries a UNIQUE
// constraint over its full natural key and a foreign key to messages(id).
// Inserts are written as
//
//	INSERT OR IGNORE INTO images (message_id, url)
//	SELECT ?, ? WHERE EXISTS (SELECT 1 FROM messages WHERE id = ?)
//
// so adding a duplicate row, or a row for a message that was never saved,
// does nothing and returns nil.
//
// Location coordinates are stored as TEXT, exactly as the API sent them.
// AddLocation rejects text that is not a decimal number (ErrInvalidCoordinate)
// but never rewrites it, so "40.71280" keeps its trailing zero and "1e-3" keeps
// its exponent. A DECIMAL column would get NUMERIC affinity and SQLite would
// convert the value to a REAL. Location.Coordinates parses the text back into
// decimals.
//
// # SQLite Configuration
//
// Connections are opened with these pragmas applied through the DSN, so every
// pooled connection gets them:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Two drivers are supported: "sqlite" (modernc.org/sqlite, pure Go, default)
// and "sqlite3" (github.com/mattn/go-sqlite3, requires cgo).
//
// # Migrations
//
// Schema changes are numbered and forward-only. Open applies every migration
// above the current version, each in its own transaction together with its
// schema_versions row. See migrations.go.
//
// # Testing
//
// Tests open a real database under t.TempDir(). MockStore is an in-memory
// Store with the same idempotency rules and per-operation fault injection
// (FailOn), used where a test needs a write or lookup to fail.
package store
