// Package session provides durable document storage for client state, so
// an in-progress survey and the signed-in credentials survive restarts.
package session

import (
	"context"
	"encoding/json"
	"time"
)

// Document is one persisted value addressed by a stable key.
type Document struct {
	ID        string          `json:"id"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DocumentSummary is a lightweight document overview.
type DocumentSummary struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists and retrieves documents.
type Store interface {
	Save(ctx context.Context, doc *Document) error
	Load(ctx context.Context, key string) (*Document, error)
	List(ctx context.Context) ([]*DocumentSummary, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
