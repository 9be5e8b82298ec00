// internal/storefront/session.go

// Package storefront wires the client-side cart engine for one shopper
// session: option loading, selection, the optimistic cart, server sync and
// the guest merge on sign-in.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/catalog"
	"github.com/your-org/storefront/internal/domain/user"
	"github.com/your-org/storefront/internal/storefront/api"
	"github.com/your-org/storefront/internal/storefront/cartstore"
	"github.com/your-org/storefront/internal/storefront/cartsync"
	"github.com/your-org/storefront/internal/storefront/selection"
	"github.com/your-org/storefront/internal/storefront/storage"
)

var (
	ErrOptionsNotLoaded    = errors.New("product options not loaded")
	ErrIncompleteSelection = errors.New("selection is incomplete")
	ErrStockLimit          = errors.New("no more stock for this variant")
)

// API is the server surface a session needs
type API interface {
	cartsync.CartAPI
	ProductOptions(ctx context.Context, productID uint) (*catalog.Options, error)
	Login(ctx context.Context, email, password string) (*user.AuthResponse, error)
}

type optionsEntry struct {
	opts *catalog.Options
	idx  *catalog.Index
	err  error
	done chan struct{}
}

// Session holds every client service for one shopper. Nothing is global;
// a new session starts from storage.
type Session struct {
	client API
	cfg    *config.Config
	log    logrus.FieldLogger

	selection *selection.State
	cart      *cartstore.Store
	syncer    *cartsync.Syncer
	merger    *cartsync.Merger

	mu      sync.Mutex
	options map[uint]*optionsEntry
}

// NewSession creates a session over client and st
func NewSession(client API, st storage.Storage, cfg *config.Config, log logrus.FieldLogger) *Session {
	syncer := cartsync.NewSyncer(client, cartsync.NewIdentity(st), cfg.Storefront.RefetchDelay, log)
	return &Session{
		client:    client,
		cfg:       cfg,
		log:       log,
		selection: selection.New(),
		cart:      cartstore.New(st, log),
		syncer:    syncer,
		merger:    cartsync.NewMerger(client, syncer, log),
		options:   map[uint]*optionsEntry{},
	}
}

// Start rehydrates the cart from storage
func (s *Session) Start(ctx context.Context) error {
	return s.cart.Load(ctx)
}

func (s *Session) Selection() *selection.State { return s.selection }
func (s *Session) Cart() *cartstore.Store      { return s.cart }
func (s *Session) Syncer() *cartsync.Syncer    { return s.syncer }
func (s *Session) Merger() *cartsync.Merger    { return s.merger }

// LoadOptions returns the options of a product, fetching them once.
// Concurrent callers share one request; a failed load is retried on the
// next call.
func (s *Session) LoadOptions(ctx context.Context, productID uint) (*catalog.Options, error) {
	s.mu.Lock()
	e, ok := s.options[productID]
	if ok {
		select {
		case <-e.done:
			if e.err == nil {
				s.mu.Unlock()
				return e.opts, nil
			}
			ok = false
		default:
		}
	}
	if !ok {
		e = &optionsEntry{done: make(chan struct{})}
		s.options[productID] = e
		s.mu.Unlock()

		opts, err := s.client.ProductOptions(ctx, productID)
		s.mu.Lock()
		if err != nil {
			e.err = fmt.Errorf("failed to load options for product %d: %w", productID, err)
			s.log.WithError(err).WithField("product_id", productID).Warn("product options unavailable")
		} else {
			e.opts = opts
			e.idx = opts.Index()
		}
		close(e.done)
		s.mu.Unlock()
		return e.opts, e.err
	}
	s.mu.Unlock()

	select {
	case <-e.done:
		return e.opts, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OptionsStatus reports whether the options of a product are loading and
// the error of the last load, if any
func (s *Session) OptionsStatus(productID uint) (pending bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.options[productID]
	if !ok {
		return false, nil
	}
	select {
	case <-e.done:
		return false, e.err
	default:
		return true, nil
	}
}

// Select sets feature to value for a product
func (s *Session) Select(productID uint, feature, value string) {
	s.selection.Set(productID, feature, value)
}

// Deselect removes feature from a product's selection
func (s *Session) Deselect(productID uint, feature string) {
	s.selection.Unset(productID, feature)
}

// Availability resolves every feature value of a product against the
// current selection. Until the variants are loaded every value is pending.
func (s *Session) Availability(productID uint) ([]catalog.FeatureAvailability, error) {
	opts, idx, err := s.loaded(productID)
	if err != nil {
		return nil, err
	}
	return catalog.ResolveAll(idx, opts.Features, s.selection.Snapshot(productID)), nil
}

// AddToCart adds one unit of the variant backing the current selection.
// It returns ErrStockLimit when the cart already holds all known stock.
// When the server refuses for lack of stock the optimistic unit is taken
// back; on transport or server failures it stays while the server cart is
// refetched.
func (s *Session) AddToCart(ctx context.Context, productID uint) (*cartstore.Line, error) {
	opts, idx, err := s.loaded(productID)
	if err != nil {
		return nil, err
	}

	sel := s.selection.Snapshot(productID)
	v := cartstore.ResolvedVariant{ProductID: productID, Name: opts.Product.Name}
	var stock *int

	if idx.Len() == 0 {
		v.UnitPrice = opts.UnitPrice(nil)
		stock = opts.Product.Stock
	} else {
		if missing := catalog.MissingRequired(opts.Features, sel); len(missing) > 0 {
			return nil, fmt.Errorf("%w: choose %s", ErrIncompleteSelection, strings.Join(missing, ", "))
		}
		g, err := catalog.SelectVariant(idx, sel)
		if err != nil {
			return nil, err
		}
		id := g.ID
		v.VariantID = &id
		v.Bind = g.Binding()
		v.UnitPrice = opts.UnitPrice(g)
		stock = g.Stock
	}

	available := 0
	if stock != nil {
		available = *stock
	}
	if !s.cart.Add(ctx, v, available) {
		return nil, ErrStockLimit
	}
	key := cartstore.LineKey(v.ProductID, v.VariantID)

	_, err = s.syncer.Update(ctx, cartsync.Mutation{
		UpdateRequest: cart.UpdateRequest{ProductID: v.ProductID, VariantID: v.VariantID, Mode: cart.ModeIncrement},
		Name:          v.Name,
		Bind:          v.Bind,
		UnitPrice:     v.UnitPrice,
	})
	if err != nil {
		if outOfStock(err) {
			s.cart.Decrement(ctx, key, v.UnitPrice)
		}
		return nil, err
	}

	s.selection.Clear(productID)
	s.cart.SetVisible(ctx, true)
	line, _ := s.cart.Line(key)
	return &line, nil
}

// ChangeQuantity applies mode to a cart line, locally first and then on
// the server. Errors are returned after the server cart has been rolled
// back. The local line keeps the change unless the server refused an
// increment for lack of stock.
func (s *Session) ChangeQuantity(ctx context.Context, key string, mode cart.Mode) error {
	line, ok := s.cart.Line(key)
	if !ok {
		return cart.ErrLineNotFound
	}

	switch mode {
	case cart.ModeIncrement:
		if !s.cart.Increment(ctx, key, line.UnitPrice) {
			return ErrStockLimit
		}
	case cart.ModeDecrement:
		s.cart.Decrement(ctx, key, line.UnitPrice)
	case cart.ModeClear:
		s.cart.Remove(ctx, key)
	default:
		return cart.ErrInvalidMode
	}

	_, err := s.syncer.Update(ctx, cartsync.Mutation{
		UpdateRequest: cart.UpdateRequest{ProductID: line.ProductID, VariantID: line.VariantID, Mode: mode},
		Name:          line.Name,
		Bind:          line.Bind,
		UnitPrice:     line.UnitPrice,
	})
	if err != nil && mode == cart.ModeIncrement && outOfStock(err) {
		s.cart.Decrement(ctx, key, line.UnitPrice)
	}
	return err
}

// ServerCart returns the server's view of the current cart
func (s *Session) ServerCart(ctx context.Context) (*cart.View, error) {
	return s.syncer.Cart(ctx)
}

// SignIn logs the shopper in and folds the guest cart into theirs
func (s *Session) SignIn(ctx context.Context, email, password string) (*user.AuthResponse, error) {
	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.Login(ctx, cartsync.Auth{UserID: resp.User.ID, Token: resp.AccessToken}); err != nil {
		s.log.WithError(err).WithField("user_id", resp.User.ID).Warn("signed in without merging guest cart")
	}
	return resp, nil
}

// Login switches the session to auth and runs the guest merge. A merge
// error does not undo the sign-in.
func (s *Session) Login(ctx context.Context, auth cartsync.Auth) error {
	s.syncer.SetAuth(auth)
	return s.merger.OnAuthenticated(ctx, auth)
}

// Logout resets the session to an anonymous shopper
func (s *Session) Logout(ctx context.Context) {
	s.merger.Reset()
	s.syncer.Reset()
	s.selection.Reset()
	s.cart.Clear(ctx)
	s.cart.SetVisible(ctx, false)
}

// Close stops background refetches
func (s *Session) Close() {
	s.syncer.Cache().Reset()
}

// outOfStock reports whether err is the server refusing for lack of stock
func outOfStock(err error) bool {
	var apiErr *api.Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

func (s *Session) loaded(productID uint) (*catalog.Options, *catalog.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.options[productID]
	if !ok {
		return nil, nil, ErrOptionsNotLoaded
	}
	select {
	case <-e.done:
	default:
		return nil, nil, ErrOptionsNotLoaded
	}
	if e.err != nil {
		return nil, nil, e.err
	}
	return e.opts, e.idx, nil
}
