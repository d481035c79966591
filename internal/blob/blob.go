// Package blob stores raw uploaded document bytes. Documents are written once
// at upload, keyed by document ID, and read back by the processing task;
// duplicate content never reaches the store because uploads dedupe on the
// content hash first.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no object exists at the given key.
var ErrNotFound = errors.New("blob not found")

// Store reads and writes document payloads.
type Store interface {
	// Put writes data under key and returns the canonical URI of the object.
	// Writing an existing key overwrites it; identical content makes that a
	// no-op in practice.
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
