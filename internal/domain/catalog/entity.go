// internal/domain/catalog/entity.go
package catalog

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound = errors.New("product not found or inactive")
	ErrVariantNotFound = errors.New("product variant not found")
)

// FeatureKind describes how a feature's values are presented and entered
type FeatureKind string

const (
	KindText      FeatureKind = "text"
	KindColor     FeatureKind = "color"
	KindIcon      FeatureKind = "icon"
	KindIconText  FeatureKind = "icon_text"
	KindInput     FeatureKind = "input"
	KindDate      FeatureKind = "date"
	KindDateRange FeatureKind = "date_range"
	KindRange     FeatureKind = "range"
	KindLevel     FeatureKind = "level"
	KindFile      FeatureKind = "file"
)

// Product is the purchasable item a set of features configures
type Product struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	SKU       string         `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Name      string         `gorm:"not null;size:255" json:"name"`
	Slug      string         `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	Price     int64          `gorm:"not null" json:"price"` // Price in cents
	Stock     *int           `json:"stock"`                 // Used when the product has no group products
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Feature is a configurable dimension of a product (e.g. Color)
type Feature struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ProductID uint           `gorm:"not null;index" json:"product_id"`
	Name      string         `gorm:"not null;size:100" json:"name"`
	Kind      FeatureKind    `gorm:"not null;size:20;default:'text'" json:"kind"`
	Required  bool           `gorm:"default:true" json:"required"`
	SortOrder int            `gorm:"default:0" json:"sort_order"`
	Values    []FeatureValue `gorm:"foreignKey:FeatureID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"values"`
}

// FeatureValue is one selectable option within a feature
type FeatureValue struct {
	ID        uint                        `gorm:"primaryKey" json:"id"`
	FeatureID uint                        `gorm:"not null;index" json:"feature_id"`
	Text      string                      `gorm:"size:255" json:"text"`
	Swatch    string                      `gorm:"size:50" json:"swatch,omitempty"` // e.g. a color code
	Icon      string                      `gorm:"size:500" json:"icon,omitempty"`
	Media     datatypes.JSONSlice[string] `json:"media,omitempty"`
	SortOrder int                         `gorm:"default:0" json:"sort_order"`
}

// Selectable reports whether the value can be used as a matching token
func (v FeatureValue) Selectable() bool {
	return v.Text != ""
}

// GroupProduct is a concrete, independently stocked combination of
// feature values for a product
type GroupProduct struct {
	ID              uint                     `gorm:"primaryKey" json:"id"`
	ProductID       uint                     `gorm:"not null;index" json:"product_id"`
	Stock           *int                     `json:"stock"` // nil means unknown
	AdditionalPrice int64                    `gorm:"default:0" json:"additional_price"`
	Bind            datatypes.JSONType[Bind] `json:"bind"`
	SortOrder       int                      `gorm:"default:0" json:"sort_order"`
}

// Binding returns the feature-name to value-text mapping of the variant
func (g GroupProduct) Binding() Bind {
	return g.Bind.Data()
}

// InStock reports whether the variant has a known positive stock
func (g GroupProduct) InStock() bool {
	return g.Stock != nil && *g.Stock > 0
}

// Options is everything the storefront needs to configure one product
type Options struct {
	Product       Product        `json:"product"`
	Features      []Feature      `json:"features"`
	GroupProducts []GroupProduct `json:"group_products"`
}

// Index builds the variant index for these options
func (o *Options) Index() *Index {
	return NewIndex(o.GroupProducts)
}

// UnitPrice returns the price of one unit of the given variant
func (o *Options) UnitPrice(g *GroupProduct) int64 {
	if g == nil {
		return o.Product.Price
	}
	return o.Product.Price + g.AdditionalPrice
}

// TableName overrides
func (Product) TableName() string      { return "products" }
func (Feature) TableName() string      { return "product_features" }
func (FeatureValue) TableName() string { return "product_feature_values" }
func (GroupProduct) TableName() string { return "group_products" }
