// Package pgstore keeps cart storage in the kv_store table.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sidehustle-shop/internal/logger"
	"sidehustle-shop/internal/storage"
)

const notifyChannel = "kv_store_changes"

// Store watchers share one LISTEN connection opened outside the pool, so open
// watches never hold pooled connections.
type Store struct {
	pool   *pgxpool.Pool
	origin string
	log    *logger.Logger

	mu       sync.Mutex
	listener *listener
	watchers map[int]func(key string)
	nextID   int
}

type listener struct {
	conn   *pgx.Conn
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

type changeNotice struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

func New(pool *pgxpool.Pool, logg *logger.Logger) *Store {
	if logg == nil {
		logg = logger.Discard()
	}
	return &Store{
		pool:     pool,
		origin:   uuid.NewString(),
		log:      logg,
		watchers: make(map[int]func(key string)),
	}
}

func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	const q = `SELECT value FROM kv_store WHERE key = $1`
	var value string
	if err := s.pool.QueryRow(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrNotExist
		}
		return "", err
	}
	return value, nil
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO kv_store (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`
	return s.writeAndNotify(ctx, key, q, key, value)
}

func (s *Store) RemoveItem(ctx context.Context, key string) error {
	const q = `DELETE FROM kv_store WHERE key = $1`
	return s.writeAndNotify(ctx, key, q, key)
}

func (s *Store) writeAndNotify(ctx context.Context, key, q string, args ...any) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		payload, _ := json.Marshal(changeNotice{Origin: s.origin, Key: key})
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload)); err != nil {
			return fmt.Errorf("notify change: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Watch listens for change notifications from other stores and blocks until
// ctx is done or the listen connection fails.
func (s *Store) Watch(ctx context.Context, fn func(key string)) error {
	l, id, err := s.subscribe(ctx, fn)
	if err != nil {
		return err
	}
	defer s.unsubscribe(l, id)

	select {
	case <-ctx.Done():
		return nil
	case <-l.done:
		return l.err
	}
}

func (s *Store) subscribe(ctx context.Context, fn func(key string)) (*listener, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		l, err := s.listen(ctx)
		if err != nil {
			return nil, 0, err
		}
		s.listener = l
	}
	s.nextID++
	s.watchers[s.nextID] = fn
	return s.listener, s.nextID, nil
}

func (s *Store) unsubscribe(l *listener, id int) {
	s.mu.Lock()
	delete(s.watchers, id)
	last := len(s.watchers) == 0 && s.listener == l
	if last {
		s.listener = nil
	}
	s.mu.Unlock()

	if last {
		l.cancel()
		<-l.done
	}
}

func (s *Store) listen(ctx context.Context) (*listener, error) {
	conn, err := pgx.ConnectConfig(ctx, s.pool.Config().ConnConfig)
	if err != nil {
		return nil, fmt.Errorf("connect listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen: %w", err)
	}
	lctx, cancel := context.WithCancel(context.Background())
	l := &listener{conn: conn, cancel: cancel, done: make(chan struct{})}
	go s.run(lctx, l)
	return l, nil
}

func (s *Store) run(ctx context.Context, l *listener) {
	defer close(l.done)
	defer func() {
		s.mu.Lock()
		if s.listener == l {
			s.listener = nil
		}
		s.mu.Unlock()
	}()
	defer l.conn.Close(context.Background())

	for {
		n, err := l.conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				l.err = fmt.Errorf("wait for notification: %w", err)
				s.log.Error(ctx, "pgstore: listener stopped", err)
			}
			return
		}
		var notice changeNotice
		if err := json.Unmarshal([]byte(n.Payload), &notice); err != nil {
			s.log.Warn(ctx, "pgstore: malformed change notice")
			continue
		}
		if notice.Origin == s.origin {
			continue
		}

		s.mu.Lock()
		fns := make([]func(string), 0, len(s.watchers))
		for _, fn := range s.watchers {
			fns = append(fns, fn)
		}
		s.mu.Unlock()
		for _, fn := range fns {
			fn(notice.Key)
		}
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
