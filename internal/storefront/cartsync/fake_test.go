package cartsync

import (
	"context"
	"sync"

	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/storefront/api"
)

// fakeAPI is an in-memory server keeping one cart per credential
type fakeAPI struct {
	mu        sync.Mutex
	carts     map[string]*cart.View
	views     int
	updates   []cart.UpdateRequest
	merged    []string
	updateErr error
	mergeErr  error
	onUpdate  func()
	onView    func(ctx context.Context)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{carts: map[string]*cart.View{}}
}

func credKey(cred api.Credentials) string {
	if cred.Token != "" {
		return "token:" + cred.Token
	}
	return "guest:" + cred.GuestCartID
}

func (f *fakeAPI) seed(cred api.Credentials, lines ...cart.Line) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := &cart.View{Key: credKey(cred), Lines: lines}
	for _, l := range lines {
		v.Totals.ItemCount++
		v.Totals.TotalQuantity += l.Quantity
		v.Totals.SubTotal += l.LinePrice
	}
	v.Totals.TotalAmount = v.Totals.SubTotal
	f.carts[credKey(cred)] = v
}

func (f *fakeAPI) viewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.views
}

func (f *fakeAPI) cartFor(cred api.Credentials) *cart.View {
	v, ok := f.carts[credKey(cred)]
	if !ok {
		v = &cart.View{Key: credKey(cred), Lines: []cart.Line{}}
		f.carts[credKey(cred)] = v
	}
	return v
}

func (f *fakeAPI) ViewCart(ctx context.Context, cred api.Credentials) (*cart.View, error) {
	if f.onView != nil {
		f.onView(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views++
	v := *f.cartFor(cred)
	v.Lines = append([]cart.Line{}, v.Lines...)
	return &v, nil
}

func (f *fakeAPI) UpdateCart(_ context.Context, cred api.Credentials, req *cart.UpdateRequest) (*cart.UpdateResult, error) {
	if f.onUpdate != nil {
		f.onUpdate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, *req)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	v := f.cartFor(cred)
	applyOptimistic(v, Mutation{UpdateRequest: *req, UnitPrice: 1000})
	return &cart.UpdateResult{Total: v.Totals.TotalAmount, Action: cart.ActionUpdated}, nil
}

func (f *fakeAPI) MergeCart(_ context.Context, token, guestCartID string) (*cart.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeErr != nil {
		return nil, f.mergeErr
	}
	f.merged = append(f.merged, guestCartID)

	user := f.cartFor(api.Credentials{Token: token})
	if guest, ok := f.carts[credKey(api.Credentials{GuestCartID: guestCartID})]; ok {
		for _, l := range guest.Lines {
			req := cart.UpdateRequest{ProductID: l.ProductID, VariantID: l.VariantID, Mode: cart.ModeIncrement, Value: &l.Quantity}
			applyOptimistic(user, Mutation{UpdateRequest: req, UnitPrice: l.UnitPrice})
		}
		delete(f.carts, credKey(api.Credentials{GuestCartID: guestCartID}))
	}
	v := *user
	return &v, nil
}
