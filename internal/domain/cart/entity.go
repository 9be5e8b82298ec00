// internal/domain/cart/entity.go
package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/your-org/storefront/internal/domain/catalog"
	"gorm.io/gorm"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrLineNotFound      = errors.New("item not found in cart")
	ErrInvalidMode       = errors.New("invalid update mode")
	ErrInvalidValue      = errors.New("invalid quantity value")
	ErrNoCartKey         = errors.New("cart key required")
	ErrUnboundedStock    = errors.New("variant has no known stock")
)

// Mode selects how an update changes a line's quantity
type Mode string

const (
	ModeIncrement Mode = "increment"
	ModeDecrement Mode = "decrement"
	ModeSet       Mode = "set"
	ModeClear     Mode = "clear"
	ModeMax       Mode = "max"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	switch m {
	case ModeIncrement, ModeDecrement, ModeSet, ModeClear, ModeMax:
		return true
	}
	return false
}

// Action tags what an update did to the line
type Action string

const (
	ActionAdded   Action = "added"
	ActionRemoved Action = "removed"
	ActionUpdated Action = "updated"
)

// Key identifies a server cart: the authenticated user or a guest cart id
type Key struct {
	UserID  *uint
	GuestID string
}

// String renders the key the same way the storefront names its cache entries
func (k Key) String() string {
	if k.UserID != nil {
		return fmt.Sprintf("user:%d", *k.UserID)
	}
	return "guest:" + k.GuestID
}

// Valid reports whether the key names a cart
func (k Key) Valid() bool {
	return k.UserID != nil || k.GuestID != ""
}

// CartItem is a cart line stored in the database for authenticated users
type CartItem struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	ProductID      uint           `gorm:"not null;index" json:"product_id"`
	GroupProductID *uint          `gorm:"index" json:"group_product_id"`
	Quantity       int            `gorm:"not null;default:1" json:"quantity"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// MergedGuestCart records a guest cart already folded into a user cart so
// repeated merge calls are harmless
type MergedGuestCart struct {
	GuestCartID string    `gorm:"primaryKey;size:64" json:"guest_cart_id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	MergedAt    time.Time `json:"merged_at"`
}

// TableName overrides
func (CartItem) TableName() string        { return "cart_items" }
func (MergedGuestCart) TableName() string { return "merged_guest_carts" }

// GuestCart is a cart for an anonymous shopper, stored in Redis
type GuestCart struct {
	ID        string      `json:"id"`
	Items     []GuestItem `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// GuestItem is a line of a guest cart
type GuestItem struct {
	ProductID      uint      `json:"product_id"`
	GroupProductID *uint     `json:"group_product_id,omitempty"`
	Quantity       int       `json:"quantity"`
	AddedAt        time.Time `json:"added_at"`
}

// item is the storage-independent shape of a cart line
type item struct {
	ProductID      uint
	GroupProductID *uint
	Quantity       int
	AddedAt        time.Time
}

func (i item) same(productID uint, variantID *uint) bool {
	if i.ProductID != productID {
		return false
	}
	if i.GroupProductID == nil || variantID == nil {
		return i.GroupProductID == nil && variantID == nil
	}
	return *i.GroupProductID == *variantID
}

// Line is a cart line as returned to the storefront
type Line struct {
	ProductID uint         `json:"product_id"`
	VariantID *uint        `json:"variant_id,omitempty"`
	Name      string       `json:"name"`
	Bind      catalog.Bind `json:"bind,omitempty"`
	Quantity  int          `json:"quantity"`
	UnitPrice int64        `json:"unit_price"`
	LinePrice int64        `json:"line_price"`
	Stock     *int         `json:"stock"`
	AddedAt   time.Time    `json:"added_at"`
}

// Totals represents calculated cart totals
type Totals struct {
	ItemCount     int   `json:"item_count"`     // Number of distinct lines
	TotalQuantity int   `json:"total_quantity"` // Sum of all quantities
	SubTotal      int64 `json:"sub_total"`
	TotalAmount   int64 `json:"total_amount"`
}

// View is the server's authoritative cart
type View struct {
	Key    string `json:"key"`
	Lines  []Line `json:"lines"`
	Totals Totals `json:"totals"`
}

// UpdateRequest is the body of POST /cart/update
type UpdateRequest struct {
	ProductID   uint  `json:"product_id" binding:"required"`
	VariantID   *uint `json:"variant_id"`
	Mode        Mode  `json:"mode" binding:"required"`
	Value       *int  `json:"value"`
	IgnoreStock bool  `json:"ignore_stock"`
}

// UpdateResult is the response of POST /cart/update
type UpdateResult struct {
	Line   *Line  `json:"line,omitempty"`
	Total  int64  `json:"total"`
	Action Action `json:"action"`
}

// MergeRequest is the body of POST /cart/merge
type MergeRequest struct {
	GuestCartID string `json:"guest_cart_id"`
}
