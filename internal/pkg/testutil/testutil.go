// internal/pkg/testutil/testutil.go

// Package testutil provides throwaway SQLite and Redis backends for tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/your-org/storefront/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB opens an isolated in-memory SQLite database and migrates models into it
func DB(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}
	}
	return db
}

// Redis starts a miniredis server and returns a client connected to it
func Redis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// Config returns a configuration suitable for tests
func Config() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Name: "Storefront Test", Environment: "test"},
		Server: config.ServerConfig{Port: "0", RequestTimeout: 5 * time.Second},
		JWT: config.JWTConfig{
			Secret:            "test-secret-test-secret-test-secret!",
			AccessTokenExpiry: time.Hour,
		},
		Security: config.SecurityConfig{
			BcryptCost:         4,
			RateLimitPerMinute: 1000,
		},
		Cart: config.CartConfig{
			GuestTTL:        time.Hour,
			GuestHeader:     "X-Guest-Cart-ID",
			GuestCookie:     "guest_cart_id",
			CatalogCacheTTL: time.Minute,
		},
		Storefront: config.StorefrontConfig{
			RequestTimeout: 5 * time.Second,
			RefetchDelay:   time.Hour,
			StoragePrefix:  "test:",
		},
		Logging: config.LoggingConfig{Level: "debug", Format: "text"},
	}
}
