// ABOUTME: Idempotent persistence of message attachments keyed by natural keys
// ABOUTME: Add* calls are no-ops for missing parents or rows that already exist

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// addChild inserts one attachment row unless the parent message is missing or
// the full natural key is already present. Both cases return nil.
func (s *SQLiteStore) addChild(ctx context.Context, table string, columns []string, messageID int64, values ...any) error {
	placeholders := strings.Repeat(", ?", len(columns))
	query := fmt.Sprintf(`
		INSERT OR IGNORE INTO %s (message_id, %s)
		SELECT ?%s
		WHERE EXISTS (SELECT 1 FROM messages WHERE id = ?)
	`, table, strings.Join(columns, ", "), placeholders)

	args := make([]any, 0, len(values)+2)
	args = append(args, messageID)
	args = append(args, values...)
	args = append(args, messageID)

	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}

	if n, err := result.RowsAffected(); err == nil && n > 0 {
		s.logger.Debug("added attachment", "table", table, "message_id", messageID)
	}
	return nil
}

// AddImage records an image URL for a message
func (s *SQLiteStore) AddImage(ctx context.Context, messageID int64, url string) error {
	return s.addChild(ctx, "images", []string{"url"}, messageID, url)
}

// AddFile records a file attachment for a message
func (s *SQLiteStore) AddFile(ctx context.Context, messageID int64, fileID string) error {
	return s.addChild(ctx, "files", []string{"file_id"}, messageID, fileID)
}

// AddVideo records a video attachment for a message
func (s *SQLiteStore) AddVideo(ctx context.Context, messageID int64, previewURL, url string) error {
	return s.addChild(ctx, "videos", []string{"preview_url", "url"}, messageID, previewURL, url)
}

// AddMention records one mentioned user and the span of text that mentions them
func (s *SQLiteStore) AddMention(ctx context.Context, messageID, userID int64, location, length int) error {
	return s.addChild(ctx, "mentions", []string{"user_id", "location", "length"}, messageID, userID, location, length)
}

// AddEmoji records one charmap entry of an emoji attachment
func (s *SQLiteStore) AddEmoji(ctx context.Context, messageID int64, placeholder string, packID, offset int) error {
	return s.addChild(ctx, "emoji", []string{"placeholder", "pack_id", `"offset"`}, messageID, placeholder, packID, offset)
}

// AddLocation records a location attachment. lat and lng must parse as
// decimals and are written byte-for-byte as given.
func (s *SQLiteStore) AddLocation(ctx context.Context, messageID int64, lat, lng, name string) error {
	if err := checkCoordinates(lat, lng); err != nil {
		return err
	}
	return s.addChild(ctx, "locations", []string{"lat", "lng", "name"}, messageID, lat, lng, name)
}

// AddEvent records an event attachment
func (s *SQLiteStore) AddEvent(ctx context.Context, messageID int64, eventID, view string) error {
	return s.addChild(ctx, "events", []string{"event_id", `"view"`}, messageID, eventID, view)
}

// AddAutokickedMember records a member removed by auto-kick
func (s *SQLiteStore) AddAutokickedMember(ctx context.Context, messageID int64, userID string) error {
	return s.addChild(ctx, "autokicked_members", []string{"user_id"}, messageID, userID)
}

// listChildren runs a per-message query and scans every row with scan
func listChildren[T any](ctx context.Context, q querier, query string, messageID int64, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("querying attachments: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning attachment row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attachment rows: %w", err)
	}
	return out, nil
}

// ListImages returns the images of a message in insertion order
func (s *SQLiteStore) ListImages(ctx context.Context, messageID int64) ([]Image, error) {
	return listChildren(ctx, s.q,
		`SELECT message_id, url FROM images WHERE message_id = ? ORDER BY rowid`,
		messageID, func(rows *sql.Rows) (Image, error) {
			var img Image
			err := rows.Scan(&img.MessageID, &img.URL)
			return img, err
		})
}

// ListFiles returns the files of a message in insertion order
func (s *SQLiteStore) ListFiles(ctx context.Context, messageID int64) ([]File, error) {
	return listChildren(ctx, s.q,
		`SELECT message_id, file_id FROM files WHERE message_id = ? ORDER BY rowid`,
		messageID, func(rows *sql.Rows) (File, error) {
			var f File
			err := rows.Scan(&f.MessageID, &f.FileID)
			return f, err
		})
}

// ListVideos returns the videos of a message in insertion order
func (s *SQLiteStore) ListVideos(ctx context.Context, messageID int64) ([]Video, error) {
	return listChildren(ctx, s.q,
		`SELECT message_id, preview_url, url FROM videos WHERE message_id = ? ORDER BY rowid`,
		messageID, func(rows *sql.Rows) (Video, error) {
			var v Video
			err := rows.Scan(&v.MessageID, &v.PreviewURL, &v.URL)
			return v, err
		})
}

// ListMentions returns the mentions of a message in insertion order
func (s *SQLiteStore) ListMentions(ctx context.Context, messageID int64) ([]Mention, error) {
	return listChildren(ctx, s.q,
		`SELECT message_id, user_id, location, length FROM mentions WHERE message_id = ? ORDER BY rowid`,
		messageID, func(rows *sql.Rows) (Mention, error) {
			var m Mention
			err := rows.Scan(&m.MessageID, &m.UserID, &m.Location, &m.Length)
			return m, err
		})
}

// ListEmoji returns the emoji charmap rows of a message in insertion order
func (s *SQLiteStore) ListEmoji(ctx context.Context, messageID int64) ([]Emoji, error) {
	return listChildren(ctx, s.q,
		`SELECT message_id, placeholder, pack_id, "offset" FROM emoji WHERE message_id = ? ORDER BY rowid`,
		messageID, func(rows *sql.Rows) (Emoji, error) {
			var e Emoji
			err := rows.Scan(&e.MessageID, &e.Placeholder, &e.PackID, &e.Offset)
			return e, err
		})
}

// ListLocations returns the locations of a message in insertion order
func (s *SQLiteStore) ListLocations(ctx context.Context, messageID int64) ([]Location, error) {
	return listChildren(ctx, s.q,
		`SELECT message_id, lat, lng, name FROM locations WHERE message_id = ? ORDER BY rowid`,
		messageID, func(rows *sql.Rows) (Location, error) {
			var loc Location
			err := rows.Scan(&loc.MessageID, &loc.Lat, &loc.Lng, &loc.Name)
			return loc, err
		})
}

// ListEvents returns the events of a message in insertion order
func (s *SQLiteStore) ListEvents(ctx context.Context, messageID int64) ([]Event, error) {
	return listChildren(ctx, s.q,
		`SELECT message_id, event_id, "view" FROM events WHERE message_id = ? ORDER BY rowid`,
		messageID, func(rows *sql.Rows) (Event, error) {
			var ev Event
			err := rows.Scan(&ev.MessageID, &ev.EventID, &ev.View)
			return ev, err
		})
}

// ListAutokickedMembers returns the auto-kick records of a message in insertion order
func (s *SQLiteStore) ListAutokickedMembers(ctx context.Context, messageID int64) ([]AutokickedMember, error) {
	return listChildren(ctx, s.q,
		`SELECT message_id, user_id FROM autokicked_members WHERE message_id = ? ORDER BY rowid`,
		messageID, func(rows *sql.Rows) (AutokickedMember, error) {
			var a AutokickedMember
			err := rows.Scan(&a.MessageID, &a.UserID)
			return a, err
		})
}
