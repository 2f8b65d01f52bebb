// Package blob stores opaque archives under string keys.
package blob

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

// Store is where journal archives go before their events are pruned.
type Store interface {
	// Put writes content under key, replacing any previous blob.
	Put(ctx context.Context, key string, r io.Reader) error

	// Get opens the blob at key. Callers close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the keys below prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	Delete(ctx context.Context, key string) error
}
