// ABOUTME: Numbered, forward-only schema migrations recorded in schema_versions
// ABOUTME: Each migration and its version row commit together in one transaction

package store

import (
	"context"
	"fmt"
	"time"
)

// migration is one schema version. Statements must only add objects; a
// release never drops or rewrites a table that an older release created.
type migration struct {
	version    int
	name       string
	statements []string
}

// migrations is the ordered list of every schema version this release knows.
var migrations = []migration{
	{
		version: 1,
		name:    "base tables",
		statements: []string{
			`CREATE TABLE messages (
				id           INTEGER PRIMARY KEY,
				avatar_url   TEXT,
				created_at   TEXT NOT NULL,
				name         TEXT NOT NULL,
				sender_id    TEXT NOT NULL,
				sender_type  TEXT NOT NULL,
				source_guid  TEXT NOT NULL,
				system       INTEGER NOT NULL DEFAULT 0,
				message_text TEXT,
				user_id      TEXT NOT NULL
			)`,
			`CREATE TABLE images (
				message_id INTEGER NOT NULL REFERENCES messages(id),
				url        TEXT NOT NULL,
				UNIQUE (message_id, url)
			)`,
			`CREATE TABLE files (
				message_id INTEGER NOT NULL REFERENCES messages(id),
				file_id    TEXT NOT NULL,
				UNIQUE (message_id, file_id)
			)`,
			`CREATE TABLE videos (
				message_id  INTEGER NOT NULL REFERENCES messages(id),
				preview_url TEXT NOT NULL,
				url         TEXT NOT NULL,
				UNIQUE (message_id, preview_url, url)
			)`,
			`CREATE TABLE mentions (
				message_id INTEGER NOT NULL REFERENCES messages(id),
				user_id    INTEGER NOT NULL,
				location   INTEGER NOT NULL,
				length     INTEGER NOT NULL,
				UNIQUE (message_id, user_id, location, length)
			)`,
			`CREATE TABLE emoji (
				message_id  INTEGER NOT NULL REFERENCES messages(id),
				placeholder TEXT NOT NULL,
				pack_id     INTEGER NOT NULL,
				"offset"    INTEGER NOT NULL,
				UNIQUE (message_id, placeholder, pack_id, "offset")
			)`,
			`CREATE TABLE schema_versions (
				schema_version INTEGER NOT NULL,
				migration_date TEXT NOT NULL
			)`,
		},
	},
	{
		version: 2,
		name:    "autokicked members, events, locations",
		statements: []string{
			`CREATE TABLE autokicked_members (
				message_id INTEGER NOT NULL REFERENCES messages(id),
				user_id    TEXT NOT NULL,
				UNIQUE (message_id, user_id)
			)`,
			`CREATE TABLE events (
				message_id INTEGER NOT NULL REFERENCES messages(id),
				event_id   TEXT NOT NULL,
				"view"     TEXT NOT NULL,
				UNIQUE (message_id, event_id, "view")
			)`,
			// lat/lng are TEXT: DECIMAL affinity would store them as REAL
			`CREATE TABLE locations (
				message_id INTEGER NOT NULL REFERENCES messages(id),
				lat        TEXT NOT NULL,
				lng        TEXT NOT NULL,
				name       TEXT NOT NULL,
				UNIQUE (message_id, lat, lng, name)
			)`,
		},
	},
}

// LatestVersion is the schema version Migrate brings a database to
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}

// CurrentVersion returns the highest applied schema version, or 0 for a
// database that has never been migrated.
func (s *SQLiteStore) CurrentVersion(ctx context.Context) (int, error) {
	return currentVersion(ctx, s.q)
}

func currentVersion(ctx context.Context, q querier) (int, error) {
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_versions'`,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("checking for schema_versions: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var version int
	if err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(schema_version), 0) FROM schema_versions`,
	).Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// Migrate applies every known migration above the current version, in order.
// Safe to call repeatedly.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return s.applyMigrations(ctx, migrations)
}

func (s *SQLiteStore) applyMigrations(ctx context.Context, list []migration) error {
	current, err := currentVersion(ctx, s.db)
	if err != nil {
		return err
	}

	for _, m := range list {
		if m.version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migrating to version %d (%s): %w", m.version, m.name, err)
		}
		current = m.version
	}
	return nil
}

// applyMigration runs one migration's DDL and records its version atomically.
// SQLite DDL is transactional, so a failure leaves no trace of the attempt.
func (s *SQLiteStore) applyMigration(ctx context.Context, m migration) error {
	s.logger.Debug("migrating", "version", m.version, "name", m.name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_versions (schema_version, migration_date) VALUES (?, ?)`,
		m.version, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	s.logger.Info("applied migration", "version", m.version, "name", m.name)
	return nil
}
