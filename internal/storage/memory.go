package storage

import (
	"context"
	"sync"
	"sync/atomic"
)

var handleSeq atomic.Uint64

type memoryData struct {
	mu       sync.RWMutex
	items    map[string]string
	watchers map[uint64]memoryWatcher
	nextID   uint64
}

type memoryWatcher struct {
	origin uint64
	fn     func(key string)
}

// Memory is an in-process Storage. Handles created with Handle share data but
// behave like separate browser tabs: a watcher only hears about writes made
// through a different handle.
type Memory struct {
	data   *memoryData
	origin uint64
}

func NewMemory() *Memory {
	return &Memory{
		data: &memoryData{
			items:    make(map[string]string),
			watchers: make(map[uint64]memoryWatcher),
		},
		origin: handleSeq.Add(1),
	}
}

// Handle returns another view on the same data.
func (m *Memory) Handle() *Memory {
	return &Memory{data: m.data, origin: handleSeq.Add(1)}
}

func (m *Memory) GetItem(_ context.Context, key string) (string, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	v, ok := m.data.items[key]
	if !ok {
		return "", ErrNotExist
	}
	return v, nil
}

func (m *Memory) SetItem(_ context.Context, key, value string) error {
	m.data.mu.Lock()
	m.data.items[key] = value
	m.data.mu.Unlock()
	m.notify(key)
	return nil
}

func (m *Memory) RemoveItem(_ context.Context, key string) error {
	m.data.mu.Lock()
	_, existed := m.data.items[key]
	delete(m.data.items, key)
	m.data.mu.Unlock()
	if existed {
		m.notify(key)
	}
	return nil
}

func (m *Memory) Watch(ctx context.Context, fn func(key string)) error {
	m.data.mu.Lock()
	m.data.nextID++
	id := m.data.nextID
	m.data.watchers[id] = memoryWatcher{origin: m.origin, fn: fn}
	m.data.mu.Unlock()

	<-ctx.Done()

	m.data.mu.Lock()
	delete(m.data.watchers, id)
	m.data.mu.Unlock()
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

func (m *Memory) notify(key string) {
	m.data.mu.RLock()
	fns := make([]func(string), 0, len(m.data.watchers))
	for _, w := range m.data.watchers {
		if w.origin != m.origin {
			fns = append(fns, w.fn)
		}
	}
	m.data.mu.RUnlock()
	for _, fn := range fns {
		fn(key)
	}
}
