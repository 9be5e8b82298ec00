// internal/storefront/cartsync/identity.go

// Package cartsync keeps the storefront's view of the server cart
// consistent with the optimistic cart, and folds guest carts into user
// carts after sign-in.
package cartsync

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/your-org/storefront/internal/storefront/api"
	"github.com/your-org/storefront/internal/storefront/storage"
)

// Key names a server cart: user:<id> or guest:<uuid>
type Key string

// UserKey is the cart key of an authenticated user
func UserKey(userID uint) Key {
	return Key(fmt.Sprintf("user:%d", userID))
}

// GuestKey is the cart key of a guest cart id
func GuestKey(guestID string) Key {
	return Key("guest:" + guestID)
}

// IsGuest reports whether k names a guest cart
func (k Key) IsGuest() bool {
	return strings.HasPrefix(string(k), "guest:")
}

// Auth is the authentication state the cart reads. The zero value is a guest.
type Auth struct {
	UserID uint
	Token  string
}

// Authenticated reports whether a user is signed in
func (a Auth) Authenticated() bool {
	return a.UserID != 0 && a.Token != ""
}

// Identity owns the guest cart id slot
type Identity struct {
	mu      sync.Mutex
	storage storage.Storage
}

// NewIdentity creates an identity over st
func NewIdentity(st storage.Storage) *Identity {
	return &Identity{storage: st}
}

// GuestID returns the stored guest cart id, if any
func (i *Identity) GuestID(ctx context.Context) (string, bool, error) {
	id, ok, err := i.storage.Get(ctx, storage.SlotGuestCartID)
	if err != nil {
		return "", false, err
	}
	return id, ok && id != "", nil
}

// EnsureGuestID returns the guest cart id, generating and storing one on
// first use
func (i *Identity) EnsureGuestID(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	id, ok, err := i.GuestID(ctx)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}

	id = uuid.NewString()
	if err := i.storage.Set(ctx, storage.SlotGuestCartID, id); err != nil {
		return "", err
	}
	return id, nil
}

// ForgetGuest deletes the guest cart id
func (i *Identity) ForgetGuest(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.storage.Delete(ctx, storage.SlotGuestCartID)
}

// Resolve returns the cart key and request credentials for auth
func (i *Identity) Resolve(ctx context.Context, auth Auth) (Key, api.Credentials, error) {
	if auth.Authenticated() {
		return UserKey(auth.UserID), api.Credentials{Token: auth.Token}, nil
	}

	id, err := i.EnsureGuestID(ctx)
	if err != nil {
		return "", api.Credentials{}, fmt.Errorf("failed to resolve guest cart id: %w", err)
	}
	return GuestKey(id), api.Credentials{GuestCartID: id}, nil
}
