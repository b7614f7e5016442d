// Package storage models the string-valued key-value storage the cart lives in.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotExist is returned by GetItem when the key has no value.
	ErrNotExist = errors.New("storage: key does not exist")
	// ErrWatchUnsupported is returned by Watch when the backend cannot report changes.
	ErrWatchUnsupported = errors.New("storage: watch not supported")
)

// Storage mirrors the browser storage API: string keys, string values.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error
}

// Watcher is implemented by backends that can report writes made through other
// handles. Watch blocks until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, fn func(key string)) error
}

// Pinger is implemented by backends with a remote dependency worth health-checking.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks s when it supports it.
func Ping(ctx context.Context, s Storage) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
