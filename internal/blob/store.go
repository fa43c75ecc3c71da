package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("blob: object not found")

// Store is the durable object store the service persists session state in.
// Keys are opaque slash-separated paths; all objects belonging to one session
// live under the "<session_id>/" prefix.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}
