// internal/domain/catalog/service.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"gorm.io/gorm"
)

// Service serves read-only catalog data, cached per product id
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	config      *config.Config
	log         logrus.FieldLogger
}

// NewService creates a new catalog service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, log logrus.FieldLogger) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		config:      cfg,
		log:         log,
	}
}

// Options returns the product with its features and group products
func (s *Service) Options(ctx context.Context, productID uint) (*Options, error) {
	if opts, ok := s.cached(ctx, productID); ok {
		return opts, nil
	}

	var opts Options
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", productID, true).First(&opts.Product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	err = s.db.WithContext(ctx).
		Preload("Values", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Where("product_id = ?", productID).
		Order("sort_order, id").
		Find(&opts.Features).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load features: %w", err)
	}

	err = s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("sort_order, id").
		Find(&opts.GroupProducts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load group products: %w", err)
	}

	s.store(ctx, productID, &opts)
	return &opts, nil
}

// Availability resolves every feature value of the product against selection
func (s *Service) Availability(ctx context.Context, productID uint, selection Bind) ([]FeatureAvailability, error) {
	opts, err := s.Options(ctx, productID)
	if err != nil {
		return nil, err
	}
	return ResolveAll(opts.Index(), opts.Features, selection), nil
}

// Variant returns the product options and, when variantID is set, the
// group product it names
func (s *Service) Variant(ctx context.Context, productID uint, variantID *uint) (*Options, *GroupProduct, error) {
	opts, err := s.Options(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if variantID == nil {
		return opts, nil, nil
	}
	g, ok := opts.Index().ByID(*variantID)
	if !ok {
		return nil, nil, ErrVariantNotFound
	}
	return opts, g, nil
}

// Invalidate drops the cached options of a product
func (s *Service) Invalidate(ctx context.Context, productID uint) error {
	return s.redisClient.Del(ctx, cacheKey(productID)).Err()
}

func (s *Service) cached(ctx context.Context, productID uint) (*Options, bool) {
	data, err := s.redisClient.Get(ctx, cacheKey(productID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.WithError(err).WithField("product_id", productID).Warn("catalog cache read failed")
		}
		return nil, false
	}

	var opts Options
	if err := json.Unmarshal(data, &opts); err != nil {
		s.log.WithError(err).WithField("product_id", productID).Warn("discarding corrupt catalog cache entry")
		return nil, false
	}
	return &opts, true
}

func (s *Service) store(ctx context.Context, productID uint, opts *Options) {
	data, err := json.Marshal(opts)
	if err != nil {
		return
	}
	if err := s.redisClient.Set(ctx, cacheKey(productID), data, s.config.Cart.CatalogCacheTTL).Err(); err != nil {
		s.log.WithError(err).WithField("product_id", productID).Warn("catalog cache write failed")
	}
}

func cacheKey(productID uint) string {
	return fmt.Sprintf("catalog:options:%d", productID)
}
