// Package blobstore provides content-addressable storage for ingested files.
package blobstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("blob not found")

// Record describes a stored file. Records are immutable once written;
// corrections are performed by delete and re-ingest.
type Record struct {
	ID          string            `json:"id"`
	Filename    string            `json:"filename"`
	ContentHash string            `json:"content_hash"`
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// PutRequest carries everything needed to store one file. Size, when known,
// lets backends stream the reader without buffering it; zero means unknown.
type PutRequest struct {
	Reader      io.Reader
	Filename    string
	ContentHash string
	ContentType string
	Size        int64
	Metadata    map[string]string
}

// Store represents the capabilities the ingestion pipeline expects from
// the underlying content store. Put, Delete and FindByHash are each atomic
// from the caller's point of view; the store does not serialize
// check-then-write sequences across callers.
type Store interface {
	// Put writes a new record and assigns its ID.
	Put(ctx context.Context, req PutRequest) (*Record, error)

	// Get returns the full content of a stored record.
	// Returns ErrNotFound if the id is unknown.
	Get(ctx context.Context, id string) ([]byte, error)

	// OpenReadStream opens the content of a stored record for streaming reads.
	OpenReadStream(ctx context.Context, id string) (io.ReadCloser, error)

	// Delete removes a record. Deleting an unknown id returns (false, nil).
	Delete(ctx context.Context, id string) (bool, error)

	// FindByHash looks up a record by content hash.
	// Returns (nil, nil) when no record carries the hash.
	FindByHash(ctx context.Context, hash string) (*Record, error)

	Close() error
}

// Opener returns a Store scoped to a storage prefix. Each upload route is
// configured with its own prefix.
type Opener interface {
	Open(prefix string) (Store, error)
}
