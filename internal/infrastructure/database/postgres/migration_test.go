package postgres

import (
	"testing"

	"github.com/your-org/storefront/internal/domain/catalog"
	"github.com/your-org/storefront/internal/domain/user"
	"github.com/your-org/storefront/internal/pkg/logger"
	"github.com/your-org/storefront/internal/pkg/testutil"
)

func TestMigration_SeedIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	m := NewMigration(db, logger.Discard())

	if err := m.RunAutoMigrations(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := m.CreateIndexes(); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := m.SeedInitialData(); err != nil {
			t.Fatalf("seed run %d: %v", i, err)
		}
	}

	var products, groups, users int64
	db.Model(&catalog.Product{}).Count(&products)
	db.Model(&catalog.GroupProduct{}).Count(&groups)
	db.Model(&user.User{}).Count(&users)
	if products != 2 || groups != 5 || users != 1 {
		t.Errorf("expected 2 products, 5 groups, 1 user; got %d, %d, %d", products, groups, users)
	}

	var features []catalog.Feature
	db.Preload("Values").Find(&features)
	if len(features) != 2 || len(features[0].Values) != 3 {
		t.Errorf("expected 2 features with 3 values each, got %+v", features)
	}
}

func TestMigration_DropAllTables(t *testing.T) {
	db := testutil.DB(t)
	m := NewMigration(db, logger.Discard())
	if err := m.RunAutoMigrations(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := m.DropAllTables(); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if db.Migrator().HasTable(&catalog.Product{}) {
		t.Error("expected products table dropped")
	}
}
