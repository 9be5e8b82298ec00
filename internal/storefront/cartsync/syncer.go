// internal/storefront/cartsync/syncer.go
package cartsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/catalog"
	"github.com/your-org/storefront/internal/storefront/api"
)

// CartAPI is the part of the server API the sync layer uses
type CartAPI interface {
	ViewCart(ctx context.Context, cred api.Credentials) (*cart.View, error)
	UpdateCart(ctx context.Context, cred api.Credentials, req *cart.UpdateRequest) (*cart.UpdateResult, error)
	MergeCart(ctx context.Context, token, guestCartID string) (*cart.View, error)
}

// Mutation is one cart update plus what the optimistic view needs to show
// a line the cached cart does not have yet
type Mutation struct {
	cart.UpdateRequest
	Name      string
	Bind      catalog.Bind
	UnitPrice int64
}

// Syncer sends cart mutations under the snapshot, apply, reconcile
// discipline: the cached cart is updated before the server answers and is
// rolled back to the exact previous value if the server refuses.
type Syncer struct {
	api          CartAPI
	identity     *Identity
	cache        *QueryCache
	log          logrus.FieldLogger
	refetchDelay time.Duration

	mu    sync.Mutex
	auth  Auth
	creds map[Key]api.Credentials
	locks map[Key]*sync.Mutex
}

// NewSyncer creates a syncer. refetchDelay is how long after a failed
// mutation the cart is read again.
func NewSyncer(client CartAPI, identity *Identity, refetchDelay time.Duration, log logrus.FieldLogger) *Syncer {
	s := &Syncer{
		api:          client,
		identity:     identity,
		log:          log,
		refetchDelay: refetchDelay,
		creds:        map[Key]api.Credentials{},
		locks:        map[Key]*sync.Mutex{},
	}
	s.cache = NewQueryCache(s.load, log)
	return s
}

// Cache exposes the query cache
func (s *Syncer) Cache() *QueryCache {
	return s.cache
}

// SetAuth switches the cart the syncer acts on
func (s *Syncer) SetAuth(auth Auth) {
	s.mu.Lock()
	s.auth = auth
	s.mu.Unlock()
}

// Key resolves the current cart key, creating a guest id if needed
func (s *Syncer) Key(ctx context.Context) (Key, error) {
	key, _, err := s.resolve(ctx)
	return key, err
}

// Cart returns the current server cart, from cache when fresh
func (s *Syncer) Cart(ctx context.Context) (*cart.View, error) {
	key, _, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return s.cache.Get(ctx, key)
}

// Refresh refetches the current cart
func (s *Syncer) Refresh(ctx context.Context) error {
	key, _, err := s.resolve(ctx)
	if err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, key)
}

// Update sends one mutation. Mutations on the same cart key run one at a
// time. On failure the cached cart is restored exactly, a refetch is
// scheduled, and the error is returned.
func (s *Syncer) Update(ctx context.Context, m Mutation) (*cart.UpdateResult, error) {
	if !m.Mode.Valid() {
		return nil, cart.ErrInvalidMode
	}
	key, cred, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}

	lock := s.lock(key)
	lock.Lock()
	defer lock.Unlock()

	s.cache.Cancel(key)
	snap := s.cache.Snapshot(key)

	if err := s.cache.Mutate(key, func(v *cart.View) { applyOptimistic(v, m) }); err != nil {
		s.log.WithError(err).WithField("cart_key", key).Warn("optimistic cart update skipped")
	}

	req := m.UpdateRequest
	result, err := s.api.UpdateCart(ctx, cred, &req)
	if err != nil {
		s.cache.Restore(key, snap)
		s.cache.ScheduleRefetch(key, s.refetchDelay)
		s.log.WithError(err).WithFields(logrus.Fields{
			"cart_key":   key,
			"mode":       m.Mode,
			"product_id": m.ProductID,
		}).Warn("cart mutation failed, rolled back")
		return nil, fmt.Errorf("cart %s: %w", m.Mode, err)
	}

	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.cache.ScheduleRefetch(key, s.refetchDelay)
	}
	return result, nil
}

// Reset forgets the auth state and every cached cart
func (s *Syncer) Reset() {
	s.mu.Lock()
	s.auth = Auth{}
	s.creds = map[Key]api.Credentials{}
	s.mu.Unlock()
	s.cache.Reset()
}

func (s *Syncer) resolve(ctx context.Context) (Key, api.Credentials, error) {
	s.mu.Lock()
	auth := s.auth
	s.mu.Unlock()

	key, cred, err := s.identity.Resolve(ctx, auth)
	if err != nil {
		return "", api.Credentials{}, err
	}
	s.remember(key, cred)
	return key, cred, nil
}

func (s *Syncer) remember(key Key, cred api.Credentials) {
	s.mu.Lock()
	s.creds[key] = cred
	s.mu.Unlock()
}

func (s *Syncer) load(ctx context.Context, key Key) (*cart.View, error) {
	s.mu.Lock()
	cred, ok := s.creds[key]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no credentials for cart %s", key)
	}
	return s.api.ViewCart(ctx, cred)
}

func (s *Syncer) lock(key Key) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// applyOptimistic mirrors the server's update rules on the cached cart so
// the view moves before the server answers. The server corrects it on the
// next read.
func applyOptimistic(v *cart.View, m Mutation) {
	idx := -1
	for i, l := range v.Lines {
		if l.ProductID == m.ProductID && sameVariant(l.VariantID, m.VariantID) {
			idx = i
			break
		}
	}

	current := 0
	if idx >= 0 {
		current = v.Lines[idx].Quantity
	}
	step := 1
	if m.Value != nil {
		step = *m.Value
	}

	next := current
	switch m.Mode {
	case cart.ModeIncrement:
		next = current + step
	case cart.ModeDecrement:
		next = current - step
	case cart.ModeSet:
		next = step
	case cart.ModeClear:
		next = 0
	case cart.ModeMax:
		if idx >= 0 && v.Lines[idx].Stock != nil {
			next = *v.Lines[idx].Stock
		}
	}
	if idx >= 0 && !m.IgnoreStock {
		if stock := v.Lines[idx].Stock; stock != nil && next > *stock {
			next = *stock
		}
	}

	switch {
	case next <= 0 && idx >= 0:
		v.Lines = append(v.Lines[:idx], v.Lines[idx+1:]...)
	case next <= 0:
	case idx >= 0:
		l := &v.Lines[idx]
		l.Quantity = next
		l.LinePrice = l.UnitPrice * int64(next)
	default:
		v.Lines = append(v.Lines, cart.Line{
			ProductID: m.ProductID,
			VariantID: m.VariantID,
			Name:      m.Name,
			Bind:      m.Bind,
			Quantity:  next,
			UnitPrice: m.UnitPrice,
			LinePrice: m.UnitPrice * int64(next),
		})
	}

	v.Totals = cart.Totals{ItemCount: len(v.Lines)}
	for _, l := range v.Lines {
		v.Totals.TotalQuantity += l.Quantity
		v.Totals.SubTotal += l.LinePrice
	}
	v.Totals.TotalAmount = v.Totals.SubTotal
}

func sameVariant(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
