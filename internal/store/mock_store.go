// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject failures per operation

package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
)

// MockStore is an in-memory Store implementation for testing. It follows the
// same natural-key and parent-exists rules as SQLiteStore.
type MockStore struct {
	mu       sync.Mutex
	messages map[int64]*Message
	children map[string]map[string]struct{} // table -> natural key
	failures map[string]error               // operation name -> error
	closed   bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		messages: make(map[int64]*Message),
		children: make(map[string]map[string]struct{}),
		failures: make(map[string]error),
	}
}

// FailOn makes every later call to the named operation (e.g. "SaveMessage",
// "FindLastID", "AddMention") return err. A nil err clears the failure.
func (m *MockStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

func (m *MockStore) fail(op string) error {
	if err, ok := m.failures[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindMessageByID returns a copy of the stored message.
func (m *MockStore) FindMessageByID(ctx context.Context, id int64) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("FindMessageByID"); err != nil {
		return nil, err
	}
	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *msg
	return &result, nil
}

// SaveMessage inserts or overwrites a message.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("SaveMessage"); err != nil {
		return err
	}
	stored := *msg
	stored.CreatedAt = stored.CreatedAt.UTC()
	m.messages[msg.ID] = &stored
	return nil
}

func (m *MockStore) addChild(op, table string, messageID int64, key ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(op); err != nil {
		return err
	}
	if _, ok := m.messages[messageID]; !ok {
		return nil
	}

	parts := make([]string, 0, len(key)+1)
	parts = append(parts, fmt.Sprint(messageID))
	for _, k := range key {
		parts = append(parts, fmt.Sprint(k))
	}

	rows, ok := m.children[table]
	if !ok {
		rows = make(map[string]struct{})
		m.children[table] = rows
	}
	rows[strings.Join(parts, "\x00")] = struct{}{}
	return nil
}

func (m *MockStore) AddImage(ctx context.Context, messageID int64, url string) error {
	return m.addChild("AddImage", "images", messageID, url)
}

func (m *MockStore) AddFile(ctx context.Context, messageID int64, fileID string) error {
	return m.addChild("AddFile", "files", messageID, fileID)
}

func (m *MockStore) AddVideo(ctx context.Context, messageID int64, previewURL, url string) error {
	return m.addChild("AddVideo", "videos", messageID, previewURL, url)
}

func (m *MockStore) AddMention(ctx context.Context, messageID, userID int64, location, length int) error {
	return m.addChild("AddMention", "mentions", messageID, userID, location, length)
}

func (m *MockStore) AddEmoji(ctx context.Context, messageID int64, placeholder string, packID, offset int) error {
	return m.addChild("AddEmoji", "emoji", messageID, placeholder, packID, offset)
}

func (m *MockStore) AddLocation(ctx context.Context, messageID int64, lat, lng, name string) error {
	if err := checkCoordinates(lat, lng); err != nil {
		return err
	}
	return m.addChild("AddLocation", "locations", messageID, lat, lng, name)
}

func (m *MockStore) AddEvent(ctx context.Context, messageID int64, eventID, view string) error {
	return m.addChild("AddEvent", "events", messageID, eventID, view)
}

func (m *MockStore) AddAutokickedMember(ctx context.Context, messageID int64, userID string) error {
	return m.addChild("AddAutokickedMember", "autokicked_members", messageID, userID)
}

// FindFirstID returns the smallest stored message ID.
func (m *MockStore) FindFirstID(ctx context.Context) (int64, error) {
	return m.boundary("FindFirstID", func(id, best int64) bool { return id < best })
}

// FindLastID returns the largest stored message ID.
func (m *MockStore) FindLastID(ctx context.Context) (int64, error) {
	return m.boundary("FindLastID", func(id, best int64) bool { return id > best })
}

func (m *MockStore) boundary(op string, better func(id, best int64) bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(op); err != nil {
		return 0, err
	}
	if len(m.messages) == 0 {
		return 0, ErrNotFound
	}

	first := true
	var best int64
	for id := range m.messages {
		if first || better(id, best) {
			best = id
			first = false
		}
	}
	return best, nil
}

// WithTx runs fn against the store and restores the previous contents if fn
// returns an error.
func (m *MockStore) WithTx(ctx context.Context, fn func(w Writer) error) error {
	m.mu.Lock()
	if err := m.fail("WithTx"); err != nil {
		m.mu.Unlock()
		return err
	}
	messages := maps.Clone(m.messages)
	children := make(map[string]map[string]struct{}, len(m.children))
	for table, rows := range m.children {
		children[table] = maps.Clone(rows)
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.messages = messages
		m.children = children
		m.mu.Unlock()
		return err
	}
	return nil
}

// CurrentVersion always reports the latest schema version.
func (m *MockStore) CurrentVersion(ctx context.Context) (int, error) {
	return LatestVersion(), nil
}

// Stats reports row counts in the same shape as SQLiteStore.
func (m *MockStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		SchemaVersion: LatestVersion(),
		Tables:        make(map[string]int64, len(Tables)),
	}

	m.mu.Lock()
	stats.Tables["messages"] = int64(len(m.messages))
	for table, rows := range m.children {
		stats.Tables[table] = int64(len(rows))
	}
	m.mu.Unlock()

	var err error
	if stats.FirstID, err = m.FindFirstID(ctx); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if stats.LastID, err = m.FindLastID(ctx); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return stats, nil
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockStore) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Compile-time interface checks
var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
