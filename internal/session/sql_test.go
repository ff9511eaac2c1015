package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMemoryStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLStore(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("NewSQLStore(:memory:) returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLStore(t *testing.T) {
	store := newMemoryStore(t)
	if store.db == nil {
		t.Fatal("NewSQLStore(:memory:) db field is nil")
	}
}

func TestNewSQLStore_UnsupportedDriver(t *testing.T) {
	_, err := NewSQLStore("mysql", "whatever")
	if err == nil {
		t.Fatal("expected error for unsupported driver, got nil")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q, want it to mention unsupported driver", err)
	}
}

func TestSQLStore_SaveAndLoad(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	doc := &Document{
		Key:   "chefriend-survey-storage",
		Value: json.RawMessage(`{"state":{"storeId":7,"foodItemId":42},"version":0}`),
	}
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if doc.ID == "" {
		t.Fatal("Save did not assign an ID")
	}

	loaded, err := store.Load(ctx, "chefriend-survey-storage")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil document")
	}
	if loaded.ID != doc.ID {
		t.Errorf("ID = %q, want %q", loaded.ID, doc.ID)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(loaded.Value, &got); err != nil {
		t.Fatalf("stored value is not JSON: %v", err)
	}
	state, ok := got["state"].(map[string]interface{})
	if !ok {
		t.Fatalf("state is %T, want object", got["state"])
	}
	if state["storeId"] != float64(7) {
		t.Errorf("storeId = %v, want 7", state["storeId"])
	}

	if loaded.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
	if loaded.UpdatedAt.IsZero() {
		t.Error("UpdatedAt is zero")
	}
}

func TestSQLStore_SaveOverwritesByKey(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	first := &Document{Key: "auth-storage", Value: json.RawMessage(`{"token":"a"}`)}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	// A fresh Document for the same key must not create a second row.
	second := &Document{Key: "auth-storage", Value: json.RawMessage(`{"token":"b"}`)}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second save ID = %q, want stored ID %q", second.ID, first.ID)
	}

	loaded, err := store.Load(ctx, "auth-storage")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if string(loaded.Value) != `{"token":"b"}` {
		t.Errorf("Value = %s, want the second write", loaded.Value)
	}

	summaries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(summaries) != 1 {
		t.Errorf("List returned %d documents, want 1", len(summaries))
	}
}

func TestSQLStore_SaveRequiresKey(t *testing.T) {
	store := newMemoryStore(t)
	if err := store.Save(context.Background(), &Document{}); err == nil {
		t.Fatal("expected error for empty key, got nil")
	}
}

func TestSQLStore_LoadNotFound(t *testing.T) {
	store := newMemoryStore(t)

	doc, err := store.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if doc != nil {
		t.Errorf("Load = %+v, want nil", doc)
	}
}

func TestSQLStore_List(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := store.Save(ctx, &Document{Key: key, Value: json.RawMessage(`{}`)}); err != nil {
			t.Fatalf("Save(%s) returned error: %v", key, err)
		}
	}

	summaries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("List returned %d summaries, want 3", len(summaries))
	}

	found := make(map[string]bool)
	for _, s := range summaries {
		found[s.Key] = true
		if s.UpdatedAt.IsZero() {
			t.Errorf("summary %s has zero UpdatedAt", s.Key)
		}
		if s.Size != 2 {
			t.Errorf("summary %s Size = %d, want 2", s.Key, s.Size)
		}
	}
	for _, key := range []string{"a", "b", "c"} {
		if !found[key] {
			t.Errorf("List missing document %q", key)
		}
	}
}

func TestSQLStore_Delete(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, &Document{Key: "gone", Value: json.RawMessage(`1`)}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	doc, err := store.Load(ctx, "gone")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if doc != nil {
		t.Error("document still present after Delete")
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Errorf("second Delete returned error: %v", err)
	}
}

func TestSQLStore_Cleanup(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, &Document{Key: "fresh", Value: json.RawMessage(`1`)}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	// Backdate a second document directly.
	old := time.Now().UTC().Add(-48 * time.Hour).Format(timeLayout)
	_, err := store.db.Exec(
		`INSERT INTO documents (id, doc_key, value_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		"old-id", "stale", "1", old, old,
	)
	if err != nil {
		t.Fatalf("insert stale row: %v", err)
	}

	deleted, err := store.Cleanup(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Cleanup deleted %d, want 1", deleted)
	}

	if doc, _ := store.Load(ctx, "fresh"); doc == nil {
		t.Error("Cleanup removed a fresh document")
	}
}

// --------------------------------------------------------------------------
// Error paths (sqlmock)
// --------------------------------------------------------------------------

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLStoreFromDB(sqlx.NewDb(db, "sqlmock")), mock
}

func TestSQLStore_LoadWrapsQueryError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("disk I/O error")
	mock.ExpectQuery("SELECT id, doc_key").WillReturnError(boom)

	_, err := store.Load(context.Background(), "k")
	if !errors.Is(err, boom) {
		t.Fatalf("Load error = %v, want wrapping %v", err, boom)
	}
	if !strings.HasPrefix(err.Error(), "session: load document") {
		t.Errorf("error = %q, want session prefix", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLStore_SaveWrapsExecError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("database is locked")
	mock.ExpectQuery("INSERT INTO documents").WillReturnError(boom)

	err := store.Save(context.Background(), &Document{Key: "k", Value: json.RawMessage(`{}`)})
	if !errors.Is(err, boom) {
		t.Fatalf("Save error = %v, want wrapping %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLStore_DeleteWrapsExecError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("read-only database")
	mock.ExpectExec("DELETE FROM documents").WillReturnError(boom)

	if err := store.Delete(context.Background(), "k"); !errors.Is(err, boom) {
		t.Fatalf("Delete error = %v, want wrapping %v", err, boom)
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2026-10-19T08:00:00.000000000Z", false},
		{"2026-10-19T08:00:00Z", false},
		{"2026-10-19 08:00:00", false},
		{"yesterday", true},
	}
	for _, tt := range tests {
		_, err := parseTime(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}
