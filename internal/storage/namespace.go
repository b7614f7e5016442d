package storage

import (
	"context"
	"strings"
)

type namespaced struct {
	inner  Storage
	prefix string
}

// Namespace scopes every key of s under prefix, so sessions sharing one backend
// never see each other's keys. An empty prefix returns s unchanged.
func Namespace(s Storage, prefix string) Storage {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return s
	}
	return &namespaced{inner: s, prefix: prefix + ":"}
}

func (n *namespaced) GetItem(ctx context.Context, key string) (string, error) {
	return n.inner.GetItem(ctx, n.prefix+key)
}

func (n *namespaced) SetItem(ctx context.Context, key, value string) error {
	return n.inner.SetItem(ctx, n.prefix+key, value)
}

func (n *namespaced) RemoveItem(ctx context.Context, key string) error {
	return n.inner.RemoveItem(ctx, n.prefix+key)
}

// Watch forwards changes to keys inside the namespace, with the prefix stripped.
func (n *namespaced) Watch(ctx context.Context, fn func(key string)) error {
	w, ok := n.inner.(Watcher)
	if !ok {
		return ErrWatchUnsupported
	}
	return w.Watch(ctx, func(key string) {
		if rest, ok := strings.CutPrefix(key, n.prefix); ok {
			fn(rest)
		}
	})
}

func (n *namespaced) Ping(ctx context.Context) error {
	return Ping(ctx, n.inner)
}

// ForSession is the namespace one visitor's keys live under.
func ForSession(s Storage, sessionID string) Storage {
	if strings.TrimSpace(sessionID) == "" {
		return s
	}
	return Namespace(s, "session:"+sessionID)
}
