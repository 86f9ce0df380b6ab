// Package store keeps the HTML content of host sessions between requests.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a session has no stored content.
var ErrNotFound = errors.New("session content not found")

// ContentStore holds the current content of each session, keyed by session ID.
// Implementations must be safe for concurrent use.
type ContentStore interface {
	Get(ctx context.Context, id string) (string, error)
	Put(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
	Close() error
}
