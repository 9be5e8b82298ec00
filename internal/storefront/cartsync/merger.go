// internal/storefront/cartsync/merger.go
package cartsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/storefront/api"
)

// MergeState is where the guest merge is for the current sign-in
type MergeState int

const (
	MergeIdle MergeState = iota
	MergeMerging
	MergeMerged
	MergeFailed
)

func (s MergeState) String() string {
	switch s {
	case MergeIdle:
		return "idle"
	case MergeMerging:
		return "merging"
	case MergeMerged:
		return "merged"
	case MergeFailed:
		return "failed"
	}
	return fmt.Sprintf("MergeState(%d)", int(s))
}

// Merger folds the guest cart into the user cart once per sign-in
type Merger struct {
	api    CartAPI
	syncer *Syncer
	log    logrus.FieldLogger

	mu     sync.Mutex
	state  MergeState
	userID uint
}

// NewMerger creates a merger sharing the syncer's identity and cache
func NewMerger(client CartAPI, syncer *Syncer, log logrus.FieldLogger) *Merger {
	return &Merger{
		api:    client,
		syncer: syncer,
		log:    log,
	}
}

// State returns the current merge state
func (m *Merger) State() MergeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnAuthenticated runs the merge for auth. It does nothing when this user
// was already merged or a merge is running. A failed merge is retried on
// the next call. The returned error is informational; the guest cart id
// is kept so nothing is lost.
func (m *Merger) OnAuthenticated(ctx context.Context, auth Auth) error {
	if !auth.Authenticated() {
		return nil
	}

	m.mu.Lock()
	if m.userID == auth.UserID && (m.state == MergeMerged || m.state == MergeMerging) {
		m.mu.Unlock()
		return nil
	}
	m.state = MergeMerging
	m.userID = auth.UserID
	m.mu.Unlock()

	err := m.merge(ctx, auth)

	m.mu.Lock()
	if m.userID == auth.UserID && m.state == MergeMerging {
		if err != nil {
			m.state = MergeFailed
		} else {
			m.state = MergeMerged
		}
	}
	m.mu.Unlock()
	return err
}

func (m *Merger) merge(ctx context.Context, auth Auth) error {
	userKey := UserKey(auth.UserID)
	m.syncer.remember(userKey, api.Credentials{Token: auth.Token})
	identity, cache := m.syncer.identity, m.syncer.cache
	log := m.log.WithFields(logrus.Fields{"cart_key": userKey, "user_id": auth.UserID})

	guestID, ok, err := identity.GuestID(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to read guest cart id")
		return fmt.Errorf("failed to read guest cart id: %w", err)
	}
	if !ok {
		_ = cache.Invalidate(ctx, userKey)
		return nil
	}

	if _, err := m.api.MergeCart(ctx, auth.Token, guestID); err != nil {
		log.WithError(err).WithField("guest_cart_id", guestID).Warn("guest cart merge failed")
		return fmt.Errorf("failed to merge guest cart: %w", err)
	}

	if err := identity.ForgetGuest(ctx); err != nil {
		log.WithError(err).Warn("failed to forget guest cart id")
	}
	cache.Remove(GuestKey(guestID))
	_ = cache.Invalidate(ctx, userKey)

	log.WithField("guest_cart_id", guestID).Info("guest cart merged")
	return nil
}

// Reset returns to idle, for sign-out
func (m *Merger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = MergeIdle
	m.userID = 0
}
