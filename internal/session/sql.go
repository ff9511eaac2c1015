package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore implements Store on top of a SQL database. SQLite (pure Go, via
// modernc.org/sqlite) is the default; PostgreSQL is available for shared
// deployments such as in-store kiosks.
type SQLStore struct {
	db *sqlx.DB
}

// Compile-time check that SQLStore implements Store.
var _ Store = (*SQLStore)(nil)

// timeLayout is fixed-width so that text comparison orders timestamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		doc_key     TEXT NOT NULL UNIQUE,
		value_json  TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)
`

// NewSQLStore opens the database and ensures the schema exists.
// For SQLite, dsn is a file path; use ":memory:" for testing.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("session: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open database: %w", err)
	}

	// Every connection to ":memory:" is a distinct database, and a file
	// database only tolerates one writer anyway.
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: ping database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: create table: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// NewSQLStoreFromDB wraps an already opened database. The schema is assumed
// to exist.
func NewSQLStoreFromDB(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// documentRow mirrors the documents table.
type documentRow struct {
	ID        string `db:"id"`
	Key       string `db:"doc_key"`
	ValueJSON string `db:"value_json"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

// Save upserts a document by key. A new document gets a fresh UUID; saving
// over an existing key keeps the stored ID and creation time, which are
// copied back into doc.
func (s *SQLStore) Save(ctx context.Context, doc *Document) error {
	if doc.Key == "" {
		return errors.New("session: document key is required")
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	doc.UpdatedAt = now
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	value := string(doc.Value)
	if value == "" {
		value = "null"
	}

	query := s.db.Rebind(`
		INSERT INTO documents (id, doc_key, value_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET
			value_json = excluded.value_json,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`)

	var stored struct {
		ID        string `db:"id"`
		CreatedAt string `db:"created_at"`
	}
	err := s.db.GetContext(ctx, &stored, query,
		doc.ID,
		doc.Key,
		value,
		doc.CreatedAt.Format(timeLayout),
		doc.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("session: save document %q: %w", doc.Key, err)
	}

	doc.ID = stored.ID
	if t, err := parseTime(stored.CreatedAt); err == nil {
		doc.CreatedAt = t
	}
	return nil
}

// Load retrieves the document stored under key.
// Returns (nil, nil) if no document is found.
func (s *SQLStore) Load(ctx context.Context, key string) (*Document, error) {
	query := s.db.Rebind(`
		SELECT id, doc_key, value_json, created_at, updated_at
		FROM documents WHERE doc_key = ?
	`)

	var row documentRow
	if err := s.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: load document %q: %w", key, err)
	}

	return row.document()
}

// List returns a summary of all stored documents, most recently updated first.
func (s *SQLStore) List(ctx context.Context) ([]*DocumentSummary, error) {
	query := `SELECT id, doc_key, value_json, created_at, updated_at FROM documents ORDER BY updated_at DESC`

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("session: list documents: %w", err)
	}

	summaries := make([]*DocumentSummary, 0, len(rows))
	for _, row := range rows {
		updatedAt, err := parseTime(row.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("session: parse updated_at %q: %w", row.UpdatedAt, err)
		}
		summaries = append(summaries, &DocumentSummary{
			ID:        row.ID,
			Key:       row.Key,
			Size:      len(row.ValueJSON),
			UpdatedAt: updatedAt,
		})
	}
	return summaries, nil
}

// Delete removes the document stored under key. Deleting a missing key is
// not an error.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := s.db.Rebind(`DELETE FROM documents WHERE doc_key = ?`)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("session: delete document %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Cleanup removes documents whose updated_at is older than maxAge from now.
// It returns the number of deleted documents.
func (s *SQLStore) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(timeLayout)

	query := s.db.Rebind(`DELETE FROM documents WHERE updated_at < ?`)
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("session: cleanup documents: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session: rows affected: %w", err)
	}
	return deleted, nil
}

func (r documentRow) document() (*Document, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("session: parse created_at %q: %w", r.CreatedAt, err)
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("session: parse updated_at %q: %w", r.UpdatedAt, err)
	}
	return &Document{
		ID:        r.ID,
		Key:       r.Key,
		Value:     []byte(r.ValueJSON),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// parseTime accepts RFC 3339 (what Save writes) and falls back to the SQLite
// default timestamp format.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}
