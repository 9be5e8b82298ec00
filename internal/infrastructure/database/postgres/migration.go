// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/catalog"
	"github.com/your-org/storefront/internal/domain/user"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, log logrus.FieldLogger) *Migration {
	return &Migration{
		db:  db,
		log: log,
	}
}

// Models lists every persisted model in dependency order
func Models() []interface{} {
	return []interface{}{
		&user.User{},

		&catalog.Product{},
		&catalog.Feature{},
		&catalog.FeatureValue{},
		&catalog.GroupProduct{},

		&cart.CartItem{},
		&cart.MergedGuestCart{},
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.log.Info("running database auto-migrations")

	for _, model := range Models() {
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	m.log.Info("database auto-migrations completed")
	return nil
}

// CreateIndexes creates additional indexes
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_products_active ON products(is_active)",
		"CREATE INDEX IF NOT EXISTS idx_product_features_product_sort ON product_features(product_id, sort_order)",
		"CREATE INDEX IF NOT EXISTS idx_product_feature_values_feature_sort ON product_feature_values(feature_id, sort_order)",
		"CREATE INDEX IF NOT EXISTS idx_group_products_product_sort ON group_products(product_id, sort_order)",
		"CREATE INDEX IF NOT EXISTS idx_cart_items_user_product ON cart_items(user_id, product_id)",
		"CREATE INDEX IF NOT EXISTS idx_cart_items_user_variant ON cart_items(user_id, group_product_id)",
		"CREATE INDEX IF NOT EXISTS idx_merged_guest_carts_user ON merged_guest_carts(user_id)",
	}

	failCount := 0
	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.log.WithError(err).WithField("sql", indexSQL).Warn("failed to create index")
			failCount++
		}
	}

	m.log.WithFields(logrus.Fields{
		"created": len(indexes) - failCount,
		"failed":  failCount,
	}).Info("database indexes created")
	if failCount > 0 {
		return fmt.Errorf("%d of %d indexes failed", failCount, len(indexes))
	}
	return nil
}

// SeedInitialData inserts development data. Existing rows are left alone.
func (m *Migration) SeedInitialData() error {
	if err := m.seedTestUser(); err != nil {
		return fmt.Errorf("failed to seed test user: %w", err)
	}
	if err := m.seedTestProducts(); err != nil {
		return fmt.Errorf("failed to seed test products: %w", err)
	}

	m.log.Info("initial data seeded")
	return nil
}

func (m *Migration) seedTestUser() error {
	var existing user.User
	err := m.db.Where("email = ?", "test1@example.com").First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return m.db.Create(&user.User{
		Email:     "test1@example.com",
		Password:  string(hashed),
		FirstName: "Test",
		LastName:  "User",
		IsActive:  true,
	}).Error
}

func (m *Migration) seedTestProducts() error {
	var count int64
	if err := m.db.Model(&catalog.Product{}).Where("sku = ?", "TEE-CLASSIC").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	stock := func(n int) *int { return &n }
	bind := func(color, size string) datatypes.JSONType[catalog.Bind] {
		return datatypes.NewJSONType(catalog.Bind{"color": color, "size": size})
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		tee := catalog.Product{SKU: "TEE-CLASSIC", Name: "Classic Tee", Slug: "classic-tee", Price: 1999, IsActive: true}
		if err := tx.Create(&tee).Error; err != nil {
			return err
		}

		features := []catalog.Feature{
			{ProductID: tee.ID, Name: "color", Kind: catalog.KindColor, Required: true, SortOrder: 0, Values: []catalog.FeatureValue{
				{Text: "red", Swatch: "#c0392b", SortOrder: 0},
				{Text: "blue", Swatch: "#2c3e50", SortOrder: 1},
				{Text: "green", Swatch: "#27ae60", SortOrder: 2},
			}},
			{ProductID: tee.ID, Name: "size", Kind: catalog.KindText, Required: true, SortOrder: 1, Values: []catalog.FeatureValue{
				{Text: "S", SortOrder: 0},
				{Text: "M", SortOrder: 1},
				{Text: "L", SortOrder: 2},
			}},
		}
		if err := tx.Create(&features).Error; err != nil {
			return err
		}

		groups := []catalog.GroupProduct{
			{ProductID: tee.ID, Stock: stock(3), Bind: bind("red", "S"), SortOrder: 0},
			{ProductID: tee.ID, Stock: stock(0), AdditionalPrice: 200, Bind: bind("red", "M"), SortOrder: 1},
			{ProductID: tee.ID, Stock: stock(5), Bind: bind("blue", "S"), SortOrder: 2},
			{ProductID: tee.ID, Stock: stock(2), AdditionalPrice: 200, Bind: bind("blue", "L"), SortOrder: 3},
			{ProductID: tee.ID, Stock: nil, Bind: bind("green", "M"), SortOrder: 4},
		}
		if err := tx.Create(&groups).Error; err != nil {
			return err
		}

		mug := catalog.Product{SKU: "MUG-PLAIN", Name: "Plain Mug", Slug: "plain-mug", Price: 899, Stock: stock(25), IsActive: true}
		return tx.Create(&mug).Error
	})
}

// DropAllTables drops all tables
func (m *Migration) DropAllTables() error {
	m.log.Warn("dropping all database tables")

	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := m.db.Migrator().DropTable(models[i]); err != nil {
			return fmt.Errorf("failed to drop %T: %w", models[i], err)
		}
	}
	return nil
}
