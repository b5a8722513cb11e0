package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Backend.Get when nothing is stored under the key.
var ErrNotFound = errors.New("store: key not found")

// Backend is a durable key/value substrate holding whole serialized values.
// Put must replace the previous value atomically.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
