package catalog

import (
	"context"
	"testing"

	"github.com/your-org/storefront/internal/pkg/logger"
	"github.com/your-org/storefront/internal/pkg/testutil"
	"gorm.io/gorm"
)

func seedShirt(t *testing.T, db *gorm.DB) {
	t.Helper()

	p := Product{ID: 1, SKU: "TEE", Name: "Tee", Slug: "tee", Price: 1500, IsActive: true}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	features := []Feature{
		{ID: 1, ProductID: 1, Name: "color", Kind: KindColor, Required: true, SortOrder: 0, Values: []FeatureValue{
			{Text: "red", Swatch: "#ff0000", SortOrder: 0},
			{Text: "blue", Swatch: "#0000ff", SortOrder: 1},
		}},
		{ID: 2, ProductID: 1, Name: "size", Kind: KindText, Required: true, SortOrder: 1, Values: []FeatureValue{
			{Text: "S", SortOrder: 0},
			{Text: "M", SortOrder: 1},
		}},
	}
	if err := db.Create(&features).Error; err != nil {
		t.Fatalf("seed features: %v", err)
	}
	groups := shirtGroups()
	for i := range groups {
		groups[i].SortOrder = i
	}
	if err := db.Create(&groups).Error; err != nil {
		t.Fatalf("seed groups: %v", err)
	}
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	db := testutil.DB(t, &Product{}, &Feature{}, &FeatureValue{}, &GroupProduct{})
	rdb, _ := testutil.Redis(t)
	seedShirt(t, db)
	return NewService(db, rdb, testutil.Config(), logger.Discard()), db
}

func TestServiceOptions(t *testing.T) {
	svc, _ := newTestService(t)

	opts, err := svc.Options(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opts.Features) != 2 || len(opts.Features[0].Values) != 2 {
		t.Fatalf("expected 2 features with 2 values, got %+v", opts.Features)
	}
	if opts.Features[0].Name != "color" || opts.Features[0].Values[1].Text != "blue" {
		t.Errorf("unexpected ordering: %+v", opts.Features)
	}
	if len(opts.GroupProducts) != 3 {
		t.Fatalf("expected 3 group products, got %d", len(opts.GroupProducts))
	}
	if got := opts.GroupProducts[1].Binding()["size"]; got != "M" {
		t.Errorf("expected bind to round-trip, got size %q", got)
	}
}

func TestServiceOptions_ServedFromCache(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Options(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Changing the row is invisible until the cache entry is dropped.
	db.Model(&Product{}).Where("id = ?", 1).Update("price", 9999)

	opts, err := svc.Options(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Product.Price != 1500 {
		t.Errorf("expected cached price 1500, got %d", opts.Product.Price)
	}

	if err := svc.Invalidate(ctx, 1); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	opts, _ = svc.Options(ctx, 1)
	if opts.Product.Price != 9999 {
		t.Errorf("expected fresh price 9999, got %d", opts.Product.Price)
	}
}

func TestServiceOptions_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Options(context.Background(), 42); err != ErrProductNotFound {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

func TestServiceAvailability(t *testing.T) {
	svc, _ := newTestService(t)

	table, err := svc.Availability(context.Background(), 1, Bind{"size": "M"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	red := table[0].Values[0]
	if !red.Disabled || red.Stock != 0 {
		t.Errorf("expected red/M disabled, got %+v", red)
	}
}

func TestServiceVariant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id := uint(3)
	opts, g, err := svc.Variant(ctx, 1, &id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.UnitPrice(g) != 1500 {
		t.Errorf("expected unit price 1500, got %d", opts.UnitPrice(g))
	}

	missing := uint(99)
	if _, _, err := svc.Variant(ctx, 1, &missing); err != ErrVariantNotFound {
		t.Errorf("expected ErrVariantNotFound, got %v", err)
	}

	delta := group(10, stock(1), 250, Bind{"color": "red"})
	if opts.UnitPrice(&delta) != 1750 {
		t.Errorf("expected unit price 1750, got %d", opts.UnitPrice(&delta))
	}
}
