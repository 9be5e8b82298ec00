// internal/storefront/selection/state.go

// Package selection tracks the feature values a shopper has picked per
// product and tells subscribers when a product's selection changes.
package selection

import (
	"sync"

	"github.com/your-org/storefront/internal/domain/catalog"
)

// Listener is called with the product whose selection changed
type Listener func(productID uint)

// State is the productID -> (feature -> value) table. The last write to a
// feature wins; values are not checked against stock.
type State struct {
	mu         sync.RWMutex
	selections map[uint]catalog.Bind
	last       map[uint]string
	listeners  map[int]Listener
	nextID     int
}

// New creates an empty selection state
func New() *State {
	return &State{
		selections: map[uint]catalog.Bind{},
		last:       map[uint]string{},
		listeners:  map[int]Listener{},
	}
}

// Set picks value for feature on the product
func (s *State) Set(productID uint, feature, value string) {
	s.mu.Lock()
	sel, ok := s.selections[productID]
	if !ok {
		sel = catalog.Bind{}
		s.selections[productID] = sel
	}
	sel[feature] = value
	s.last[productID] = feature
	s.mu.Unlock()

	s.notify(productID)
}

// Unset clears the choice for one feature
func (s *State) Unset(productID uint, feature string) {
	s.mu.Lock()
	sel, ok := s.selections[productID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if _, ok := sel[feature]; !ok {
		s.mu.Unlock()
		return
	}
	delete(sel, feature)
	if len(sel) == 0 {
		delete(s.selections, productID)
	}
	s.last[productID] = feature
	s.mu.Unlock()

	s.notify(productID)
}

// Toggle selects value, or deselects it when it is already selected.
// It reports whether value is selected afterwards.
func (s *State) Toggle(productID uint, feature, value string) bool {
	s.mu.RLock()
	current := s.selections[productID][feature]
	s.mu.RUnlock()

	if current == value {
		s.Unset(productID, feature)
		return false
	}
	s.Set(productID, feature, value)
	return true
}

// Clear wipes every choice for the product
func (s *State) Clear(productID uint) {
	s.mu.Lock()
	_, had := s.selections[productID]
	delete(s.selections, productID)
	delete(s.last, productID)
	s.mu.Unlock()

	if had {
		s.notify(productID)
	}
}

// Snapshot returns a copy of the product's selection. It is never nil.
func (s *State) Snapshot(productID uint) catalog.Bind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sel, ok := s.selections[productID]; ok {
		return sel.Clone()
	}
	return catalog.Bind{}
}

// LastFeature returns the most recently changed feature of the product.
// It only hints which media to show.
func (s *State) LastFeature(productID uint) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last[productID]
}

// Subscribe registers fn for change notifications until cancel is called
func (s *State) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Reset drops every selection, keeping subscribers
func (s *State) Reset() {
	s.mu.Lock()
	products := make([]uint, 0, len(s.selections))
	for id := range s.selections {
		products = append(products, id)
	}
	s.selections = map[uint]catalog.Bind{}
	s.last = map[uint]string{}
	s.mu.Unlock()

	for _, id := range products {
		s.notify(id)
	}
}

func (s *State) notify(productID uint) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l(productID)
	}
}
