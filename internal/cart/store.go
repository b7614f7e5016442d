// Package cart owns the persisted shopping cart of one session.
//
// The cart is a single JSON array under one storage key, guarded by a schema
// version marker under a second key. Storage failures never reach callers:
// unreadable or corrupt data reads as an empty cart and failed writes are
// dropped without notifying subscribers.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"sidehustle-shop/internal/domain"
	"sidehustle-shop/internal/events"
	"sidehustle-shop/internal/logger"
	"sidehustle-shop/internal/storage"
)

const (
	DefaultKey           = "sidehustle_cart"
	DefaultVersionKey    = "sidehustle_cart_version"
	DefaultSchemaVersion = 2
)

type Store struct {
	storage    storage.Storage
	bus        *events.Bus
	log        *logger.Logger
	key        string
	versionKey string
	version    int
	scope      string
	now        func() time.Time
}

type Option func(*Store)

// WithKeys overrides the cart and version storage keys. Empty values keep the defaults.
func WithKeys(cartKey, versionKey string) Option {
	return func(s *Store) {
		if cartKey != "" {
			s.key = cartKey
		}
		if versionKey != "" {
			s.versionKey = versionKey
		}
	}
}

func WithSchemaVersion(v int) Option {
	return func(s *Store) {
		if v > 0 {
			s.version = v
		}
	}
}

// WithScope tags published events with the owning session.
func WithScope(scope string) Option {
	return func(s *Store) { s.scope = scope }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Summary is the cart plus its derived totals, taken from one read.
type Summary struct {
	Items       []domain.LineItem `json:"items"`
	Count       int               `json:"count"`
	UniqueCount int               `json:"uniqueCount"`
	Total       int64             `json:"total"`
}

// Open builds a Store and runs the schema gate: when the stored version marker
// is missing or differs from the expected version, the cart is discarded and
// the marker rewritten.
func Open(ctx context.Context, st storage.Storage, bus *events.Bus, opts ...Option) *Store {
	s := &Store{
		storage:    st,
		bus:        bus,
		log:        logger.Discard(),
		key:        DefaultKey,
		versionKey: DefaultVersionKey,
		version:    DefaultSchemaVersion,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.migrate(ctx)
	return s
}

func (s *Store) migrate(ctx context.Context) {
	mu := s.lock()
	mu.Lock()
	defer mu.Unlock()

	want := strconv.Itoa(s.version)
	stored, err := s.storage.GetItem(ctx, s.versionKey)
	switch {
	case err == nil && strings.TrimSpace(stored) == want:
		return
	case err != nil && !errors.Is(err, storage.ErrNotExist):
		s.log.Error(ctx, "cart: read schema version", err)
		return
	}

	if err == nil {
		s.log.Info(s.log.WithFields(ctx, map[string]any{"stored_version": stored, "version": want}), "cart: schema version changed, discarding cart")
	}
	if err := s.storage.RemoveItem(ctx, s.key); err != nil {
		s.log.Error(ctx, "cart: discard outdated cart", err)
	}
	if err := s.storage.SetItem(ctx, s.versionKey, want); err != nil {
		s.log.Error(ctx, "cart: write schema version", err)
	}
}

// GetCart returns the persisted items in insertion order, or an empty slice.
func (s *Store) GetCart(ctx context.Context) []domain.LineItem {
	return s.load(ctx)
}

// AddItem merges spec into the line with the same configuration, or appends a
// new line. It returns the resulting line.
func (s *Store) AddItem(ctx context.Context, spec domain.AddSpec) domain.LineItem {
	qty := spec.Quantity
	if qty <= 0 {
		qty = 1
	}
	id := domain.LineItemID(spec.ProductID, spec.OptionID, spec.SubOption, spec.FrameColor)

	mu := s.lock()
	mu.Lock()
	items := s.load(ctx)
	var item domain.LineItem
	found := false
	for i := range items {
		if items[i].ID == id {
			items[i].Quantity += qty
			item = items[i]
			found = true
			break
		}
	}
	if !found {
		item = domain.LineItem{
			ID:              id,
			ProductID:       spec.ProductID,
			Slug:            spec.Slug,
			Title:           spec.Title,
			Type:            spec.Type,
			OptionID:        spec.OptionID,
			OptionLabel:     spec.OptionLabel,
			SubOption:       spec.SubOption,
			SubOptionLabel:  spec.SubOptionLabel,
			SizeNote:        spec.SizeNote,
			FrameColor:      spec.FrameColor,
			FrameColorLabel: spec.FrameColorLabel,
			Price:           spec.Price,
			Quantity:        qty,
			AddedAt:         s.now(),
		}
		items = append(items, item)
	}
	saved := s.save(ctx, items)
	mu.Unlock()

	if saved {
		s.emit(ctx, events.ItemAdded, &item, items)
		s.emit(ctx, events.Updated, nil, items)
	}
	return item
}

// RemoveItem deletes the line with id. It reports false when no such line
// exists or the write was dropped.
func (s *Store) RemoveItem(ctx context.Context, id string) bool {
	mu := s.lock()
	mu.Lock()
	items := s.load(ctx)
	idx := indexOf(items, id)
	if idx < 0 {
		mu.Unlock()
		return false
	}
	removed := items[idx]
	items = append(items[:idx], items[idx+1:]...)
	saved := s.save(ctx, items)
	mu.Unlock()

	if !saved {
		return false
	}
	s.emit(ctx, events.ItemRemoved, &removed, items)
	s.emit(ctx, events.Updated, nil, items)
	return true
}

// UpdateQuantity sets the quantity of line id. A quantity below 1 removes the
// line and returns nil; an unknown id returns nil.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) *domain.LineItem {
	if quantity < 1 {
		s.RemoveItem(ctx, id)
		return nil
	}

	mu := s.lock()
	mu.Lock()
	items := s.load(ctx)
	idx := indexOf(items, id)
	if idx < 0 {
		mu.Unlock()
		return nil
	}
	items[idx].Quantity = quantity
	item := items[idx]
	saved := s.save(ctx, items)
	mu.Unlock()

	if saved {
		s.emit(ctx, events.Updated, &item, items)
	}
	return &item
}

// ClearCart deletes the persisted cart.
func (s *Store) ClearCart(ctx context.Context) {
	mu := s.lock()
	mu.Lock()
	err := s.storage.RemoveItem(ctx, s.key)
	mu.Unlock()

	if err != nil {
		s.log.Error(ctx, "cart: clear", err)
		return
	}
	s.emit(ctx, events.Cleared, nil, nil)
	s.emit(ctx, events.Updated, nil, nil)
}

// CartTotal is the sum of price times quantity, in cents.
func (s *Store) CartTotal(ctx context.Context) int64 {
	return total(s.load(ctx))
}

// CartCount is the sum of quantities.
func (s *Store) CartCount(ctx context.Context) int {
	return count(s.load(ctx))
}

// UniqueItemCount is the number of lines.
func (s *Store) UniqueItemCount(ctx context.Context) int {
	return len(s.load(ctx))
}

// IsInCart reports whether any configuration of productID is in the cart.
func (s *Store) IsInCart(ctx context.Context, productID string) bool {
	for _, it := range s.load(ctx) {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

func (s *Store) ItemsByProduct(ctx context.Context, productID string) []domain.LineItem {
	out := []domain.LineItem{}
	for _, it := range s.load(ctx) {
		if it.ProductID == productID {
			out = append(out, it)
		}
	}
	return out
}

func (s *Store) Summary(ctx context.Context) Summary {
	items := s.load(ctx)
	return Summary{
		Items:       items,
		Count:       count(items),
		UniqueCount: len(items),
		Total:       total(items),
	}
}

// Subtotal is the line price of item in cents.
func (s *Store) Subtotal(item domain.LineItem) int64 {
	return item.Subtotal()
}

// Scope returns the session the store belongs to.
func (s *Store) Scope() string {
	return s.scope
}

// Watch re-publishes an updated event whenever the cart key is changed through
// another storage handle. It blocks until ctx is done and returns
// storage.ErrWatchUnsupported when the backend cannot report changes.
func (s *Store) Watch(ctx context.Context) error {
	w, ok := s.storage.(storage.Watcher)
	if !ok {
		return storage.ErrWatchUnsupported
	}
	return w.Watch(ctx, func(key string) {
		if key != s.key {
			return
		}
		s.emit(ctx, events.Updated, nil, s.load(ctx))
	})
}

func (s *Store) load(ctx context.Context) []domain.LineItem {
	raw, err := s.storage.GetItem(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotExist) {
			s.log.Error(ctx, "cart: read", err)
		}
		return []domain.LineItem{}
	}
	if strings.TrimSpace(raw) == "" {
		return []domain.LineItem{}
	}
	var items []domain.LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.log.Error(ctx, "cart: decode stored cart", err)
		return []domain.LineItem{}
	}
	if items == nil {
		items = []domain.LineItem{}
	}
	return items
}

func (s *Store) save(ctx context.Context, items []domain.LineItem) bool {
	data, err := json.Marshal(items)
	if err != nil {
		s.log.Error(ctx, "cart: encode", err)
		return false
	}
	if err := s.storage.SetItem(ctx, s.key, string(data)); err != nil {
		s.log.Error(ctx, "cart: write", err)
		return false
	}
	return true
}

func (s *Store) emit(ctx context.Context, kind events.Kind, item *domain.LineItem, items []domain.LineItem) {
	s.bus.Publish(ctx, events.Event{
		Kind:  kind,
		Scope: s.scope,
		Payload: events.Payload{
			Item:      item,
			CartCount: count(items),
			CartTotal: total(items),
		},
		At: s.now(),
	})
}

func indexOf(items []domain.LineItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func total(items []domain.LineItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.Subtotal()
	}
	return sum
}

func count(items []domain.LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// Read-modify-write sequences of one scope are serialized within the process.
// Separate processes still race on the whole blob and the last write wins.
const lockStripes = 64

var stripes [lockStripes]sync.Mutex

func (s *Store) lock() *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s.scope))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(s.key))
	return &stripes[h.Sum32()%lockStripes]
}
