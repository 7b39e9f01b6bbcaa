// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers opening, message upserts, id bounds, and transactions

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{
		Path:   filepath.Join(t.TempDir(), "test.db"),
		Driver: "postgres",
	})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestOpen_CGODriver(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, Options{
		Path:   filepath.Join(t.TempDir(), "cgo.db"),
		Driver: DriverCGO,
	})
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED") {
			t.Skip("go-sqlite3 requires cgo")
		}
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	if err := st.SaveMessage(ctx, testMessage(42)); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}
	if err := st.AddMention(ctx, 42, 7, 0, 3); err != nil {
		t.Fatalf("AddMention failed: %v", err)
	}
	if err := st.AddMention(ctx, 42, 7, 0, 3); err != nil {
		t.Fatalf("AddMention failed: %v", err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.SchemaVersion != LatestVersion() {
		t.Errorf("SchemaVersion = %d, want %d", stats.SchemaVersion, LatestVersion())
	}
	if stats.Tables["mentions"] != 1 {
		t.Errorf("mentions = %d, want 1", stats.Tables["mentions"])
	}
}

func TestSaveAndFindMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	msg := testMessage(1001)
	if err := store.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	got, err := store.FindMessageByID(ctx, 1001)
	if err != nil {
		t.Fatalf("FindMessageByID failed: %v", err)
	}

	if got.ID != msg.ID {
		t.Errorf("ID mismatch: got %d, want %d", got.ID, msg.ID)
	}
	if got.Name != msg.Name {
		t.Errorf("Name mismatch: got %q, want %q", got.Name, msg.Name)
	}
	if got.SenderType != SenderTypeUser {
		t.Errorf("SenderType mismatch: got %q, want %q", got.SenderType, SenderTypeUser)
	}
	if got.SourceGUID != msg.SourceGUID {
		t.Errorf("SourceGUID mismatch: got %q, want %q", got.SourceGUID, msg.SourceGUID)
	}
	if got.Text != msg.Text {
		t.Errorf("Text mismatch: got %q, want %q", got.Text, msg.Text)
	}
	if got.AvatarURL != msg.AvatarURL {
		t.Errorf("AvatarURL mismatch: got %q, want %q", got.AvatarURL, msg.AvatarURL)
	}
	if !got.CreatedAt.Equal(msg.CreatedAt) {
		t.Errorf("CreatedAt mismatch: got %v, want %v", got.CreatedAt, msg.CreatedAt)
	}
	if got.System {
		t.Error("System should be false")
	}
}

func TestFindMessageByID_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindMessageByID(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveMessage_OverwritesAllFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveMessage(ctx, testMessage(7)); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	updated := &Message{
		ID:         7,
		CreatedAt:  time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		Name:       "GroupMe",
		SenderID:   "system",
		SenderType: SenderTypeSystem,
		SourceGUID: "guid-updated",
		System:     true,
		UserID:     "system",
	}
	if err := store.SaveMessage(ctx, updated); err != nil {
		t.Fatalf("SaveMessage (update) failed: %v", err)
	}

	got, err := store.FindMessageByID(ctx, 7)
	if err != nil {
		t.Fatalf("FindMessageByID failed: %v", err)
	}
	if got.Name != "GroupMe" || got.SenderType != SenderTypeSystem || !got.System {
		t.Errorf("fields not overwritten: %+v", got)
	}
	// Optional fields are overwritten too, not merged
	if got.Text != "" {
		t.Errorf("Text should be cleared, got %q", got.Text)
	}
	if got.AvatarURL != "" {
		t.Errorf("AvatarURL should be cleared, got %q", got.AvatarURL)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Tables["messages"] != 1 {
		t.Errorf("expected 1 message row, got %d", stats.Tables["messages"])
	}
}

func TestFindFirstAndLastID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.FindFirstID(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindFirstID on empty store: expected ErrNotFound, got %v", err)
	}
	if _, err := store.FindLastID(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindLastID on empty store: expected ErrNotFound, got %v", err)
	}

	for _, id := range []int64{500, 100, 900} {
		if err := store.SaveMessage(ctx, testMessage(id)); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}

	first, err := store.FindFirstID(ctx)
	if err != nil {
		t.Fatalf("FindFirstID failed: %v", err)
	}
	if first != 100 {
		t.Errorf("FindFirstID = %d, want 100", first)
	}

	last, err := store.FindLastID(ctx)
	if err != nil {
		t.Fatalf("FindLastID failed: %v", err)
	}
	if last != 900 {
		t.Errorf("FindLastID = %d, want 900", last)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(w Writer) error {
		if err := w.SaveMessage(ctx, testMessage(1)); err != nil {
			return err
		}
		if err := w.AddImage(ctx, 1, "https://i.groupme.com/a.png"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := store.FindMessageByID(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("message should have been rolled back, got %v", err)
	}
	images, err := store.ListImages(ctx, 1)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("expected no images after rollback, got %d", len(images))
	}
}

func TestWithTx_Commits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(w Writer) error {
		if err := w.SaveMessage(ctx, testMessage(2)); err != nil {
			return err
		}
		// Parent saved earlier in the same transaction is visible to the add
		return w.AddFile(ctx, 2, "file-abc")
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	files, err := store.ListFiles(ctx, 2)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 1 || files[0].FileID != "file-abc" {
		t.Errorf("unexpected files: %+v", files)
	}
}

// newTestStore creates a migrated store in a temp directory, closed on cleanup
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func testMessage(id int64) *Message {
	return &Message{
		ID:         id,
		AvatarURL:  "https://i.groupme.com/avatar",
		CreatedAt:  time.Unix(1700000000+id, 0).UTC(),
		Name:       "Alice",
		SenderID:   "12345",
		SenderType: SenderTypeUser,
		SourceGUID: "guid-" + time.Unix(id, 0).UTC().Format("150405"),
		Text:       "hello world",
		UserID:     "12345",
	}
}
