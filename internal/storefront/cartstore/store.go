// internal/storefront/cartstore/store.go

// Package cartstore holds the shopper's optimistic cart. It is written
// before the server confirms anything and survives restarts through a
// storage slot; the server cart remains the record.
package cartstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/catalog"
	"github.com/your-org/storefront/internal/storefront/storage"
)

// ResolvedVariant is what the availability resolver hands the cart on add
type ResolvedVariant struct {
	ProductID uint
	VariantID *uint
	Bind      catalog.Bind
	Name      string
	UnitPrice int64
}

// Line is one cart line. Quantity is always at least one.
type Line struct {
	Key       string       `json:"key"`
	ProductID uint         `json:"product_id"`
	VariantID *uint        `json:"variant_id,omitempty"`
	Bind      catalog.Bind `json:"bind,omitempty"`
	Name      string       `json:"name"`
	UnitPrice int64        `json:"unit_price"`
	Quantity  int          `json:"quantity"`
	Total     int64        `json:"total"`
	Stock     int          `json:"stock"`
}

type snapshot struct {
	Lines   []Line `json:"lines"`
	Visible bool   `json:"visible"`
}

// LineKey names the line of a product variant
func LineKey(productID uint, variantID *uint) string {
	if variantID == nil {
		return fmt.Sprintf("%d", productID)
	}
	return fmt.Sprintf("%d:%d", productID, *variantID)
}

// Store is the optimistic cart
type Store struct {
	mu      sync.RWMutex
	lines   []Line
	visible bool

	storage storage.Storage
	log     logrus.FieldLogger
}

// New creates an empty store persisting to st
func New(st storage.Storage, log logrus.FieldLogger) *Store {
	return &Store{storage: st, log: log}
}

// Load replaces the in-memory cart with the persisted snapshot. A corrupt
// snapshot is discarded and the cart starts empty.
func (s *Store) Load(ctx context.Context) error {
	raw, ok, err := s.storage.Get(ctx, storage.SlotCart)
	if err != nil {
		return fmt.Errorf("failed to load cart snapshot: %w", err)
	}

	var snap snapshot
	if ok {
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			s.log.WithError(err).Warn("discarding corrupt cart snapshot")
			snap = snapshot{}
		}
	}

	lines := make([]Line, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		if l.Quantity < 1 || l.Key == "" {
			continue
		}
		l.Total = l.UnitPrice * int64(l.Quantity)
		lines = append(lines, l)
	}

	s.mu.Lock()
	s.lines = lines
	s.visible = snap.Visible
	s.mu.Unlock()
	return nil
}

// Add puts one unit of v in the cart. It refuses, returning false, when the
// line already holds stock units.
func (s *Store) Add(ctx context.Context, v ResolvedVariant, stock int) bool {
	key := LineKey(v.ProductID, v.VariantID)

	s.mu.Lock()
	idx := s.find(key)
	if idx >= 0 {
		l := &s.lines[idx]
		l.Stock = stock
		if l.Quantity >= stock {
			s.mu.Unlock()
			return false
		}
		l.Quantity++
		l.UnitPrice = v.UnitPrice
		l.Total = l.UnitPrice * int64(l.Quantity)
	} else {
		if stock < 1 {
			s.mu.Unlock()
			return false
		}
		s.lines = append(s.lines, Line{
			Key:       key,
			ProductID: v.ProductID,
			VariantID: v.VariantID,
			Bind:      v.Bind.Clone(),
			Name:      v.Name,
			UnitPrice: v.UnitPrice,
			Quantity:  1,
			Total:     v.UnitPrice,
			Stock:     stock,
		})
	}
	s.mu.Unlock()

	s.persist(ctx)
	return true
}

// Increment adds one unit to an existing line at unitPrice. It returns
// false when the line is missing or at its stock cap.
func (s *Store) Increment(ctx context.Context, key string, unitPrice int64) bool {
	s.mu.Lock()
	idx := s.find(key)
	if idx < 0 || s.lines[idx].Quantity >= s.lines[idx].Stock {
		s.mu.Unlock()
		return false
	}
	l := &s.lines[idx]
	l.Quantity++
	l.UnitPrice = unitPrice
	l.Total = unitPrice * int64(l.Quantity)
	s.mu.Unlock()

	s.persist(ctx)
	return true
}

// Decrement removes one unit; the last unit removes the line
func (s *Store) Decrement(ctx context.Context, key string, unitPrice int64) {
	s.mu.Lock()
	idx := s.find(key)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	l := &s.lines[idx]
	if l.Quantity <= 1 {
		s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	} else {
		l.Quantity--
		l.UnitPrice = unitPrice
		l.Total = unitPrice * int64(l.Quantity)
	}
	s.mu.Unlock()

	s.persist(ctx)
}

// Remove drops the line regardless of quantity
func (s *Store) Remove(ctx context.Context, key string) {
	s.mu.Lock()
	idx := s.find(key)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	s.mu.Unlock()

	s.persist(ctx)
}

// Clear empties the cart
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.lines = nil
	s.mu.Unlock()

	s.persist(ctx)
}

// SetVisible records whether the cart panel is open
func (s *Store) SetVisible(ctx context.Context, visible bool) {
	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()

	s.persist(ctx)
}

// Visible reports whether the cart panel is open
func (s *Store) Visible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible
}

// Lines returns a copy of the cart lines in insertion order
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Line, len(s.lines))
	for i, l := range s.lines {
		l.Bind = l.Bind.Clone()
		out[i] = l
	}
	return out
}

// Line returns the line with key
func (s *Store) Line(key string) (Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.find(key); idx >= 0 {
		l := s.lines[idx]
		l.Bind = l.Bind.Clone()
		return l, true
	}
	return Line{}, false
}

// Total is the sum of line totals
func (s *Store) Total() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, l := range s.lines {
		total += l.Total
	}
	return total
}

// Count is the sum of line quantities
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

func (s *Store) find(key string) int {
	for i := range s.lines {
		if s.lines[i].Key == key {
			return i
		}
	}
	return -1
}

// persist writes the snapshot. Failures are logged; the in-memory cart
// stays authoritative for this session.
func (s *Store) persist(ctx context.Context) {
	s.mu.RLock()
	snap := snapshot{Lines: s.lines, Visible: s.visible}
	if snap.Lines == nil {
		snap.Lines = []Line{}
	}
	data, err := json.Marshal(snap)
	s.mu.RUnlock()
	if err != nil {
		s.log.WithError(err).Error("failed to encode cart snapshot")
		return
	}

	if err := s.storage.Set(ctx, storage.SlotCart, string(data)); err != nil {
		s.log.WithError(err).Warn("failed to persist cart snapshot")
	}
}
