// internal/domain/cart/service.go
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/catalog"
	"gorm.io/gorm"
)

// Service is the server of record for carts. User carts live in the
// database, guest carts in Redis with a TTL.
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	catalog     *catalog.Service
	config      *config.Config
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewService creates a new cart service
func NewService(db *gorm.DB, redisClient *redis.Client, catalogService *catalog.Service, cfg *config.Config, log logrus.FieldLogger) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		catalog:     catalogService,
		config:      cfg,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// View returns the cart with server-computed prices and totals
func (s *Service) View(ctx context.Context, key Key) (*View, error) {
	if !key.Valid() {
		return nil, ErrNoCartKey
	}

	items, err := s.load(ctx, s.db, key)
	if err != nil {
		return nil, err
	}

	view := &View{Key: key.String(), Lines: make([]Line, 0, len(items))}
	for _, it := range items {
		line, err := s.line(ctx, it)
		if err != nil {
			// Products withdrawn from the catalog drop out of the view.
			s.log.WithError(err).WithFields(logrus.Fields{
				"cart_key":   key.String(),
				"product_id": it.ProductID,
			}).Debug("skipping unavailable cart line")
			continue
		}
		view.Lines = append(view.Lines, *line)
	}
	view.Totals = calculateTotals(view.Lines)
	return view, nil
}

// Update applies one quantity change to a cart line
func (s *Service) Update(ctx context.Context, key Key, req *UpdateRequest) (*UpdateResult, error) {
	if !key.Valid() {
		return nil, ErrNoCartKey
	}
	if !req.Mode.Valid() {
		return nil, ErrInvalidMode
	}

	_, stock, err := s.priceAndStock(ctx, req.ProductID, req.VariantID)
	if err != nil {
		return nil, err
	}

	var (
		result  UpdateResult
		changed *item
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}

		next, it, action, err := applyUpdate(items, req, stock, s.now())
		if err != nil {
			return err
		}
		if err := s.save(ctx, tx, key, next); err != nil {
			return err
		}

		result.Action = action
		changed = it
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed != nil {
		line, err := s.line(ctx, *changed)
		if err != nil {
			return nil, err
		}
		result.Line = line
	}

	view, err := s.View(ctx, key)
	if err != nil {
		return nil, err
	}
	result.Total = view.Totals.TotalAmount

	s.log.WithFields(logrus.Fields{
		"cart_key":   key.String(),
		"product_id": req.ProductID,
		"mode":       req.Mode,
		"action":     result.Action,
	}).Info("cart updated")

	return &result, nil
}

// Clear removes all items from the cart
func (s *Service) Clear(ctx context.Context, key Key) error {
	if !key.Valid() {
		return ErrNoCartKey
	}
	if key.UserID != nil {
		return s.db.WithContext(ctx).Unscoped().Where("user_id = ?", *key.UserID).Delete(&CartItem{}).Error
	}
	return s.redisClient.Del(ctx, guestKey(key.GuestID)).Err()
}

// Merge folds a guest cart into the user's cart. Quantities of matching
// lines are summed and clamped to known stock. A guest cart already merged
// into this user only contributes items added after the last merge, so a
// replay never folds the same item twice.
func (s *Service) Merge(ctx context.Context, userID uint, guestID string) error {
	if guestID == "" {
		return nil
	}
	guest := Key{GuestID: guestID}
	user := Key{UserID: &userID}

	guestItems, err := s.load(ctx, s.db, guest)
	if err != nil {
		return err
	}
	stocks, err := s.stocks(ctx, guestItems)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ledger MergedGuestCart
		err := tx.Where("guest_cart_id = ?", guestID).First(&ledger).Error
		replay := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check merge ledger: %w", err)
		}

		items, itemStocks := guestItems, stocks
		if replay {
			items, itemStocks = addedAfter(guestItems, stocks, ledger.MergedAt)
			if len(items) == 0 {
				return nil
			}
		}

		userItems, err := s.load(ctx, tx, user)
		if err != nil {
			return err
		}
		if err := s.save(ctx, tx, user, fold(userItems, items, itemStocks)); err != nil {
			return err
		}

		if replay {
			return tx.Model(&MergedGuestCart{}).
				Where("guest_cart_id = ?", guestID).
				Update("merged_at", s.now()).Error
		}
		return tx.Create(&MergedGuestCart{
			GuestCartID: guestID,
			UserID:      userID,
			MergedAt:    s.now(),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to merge guest cart: %w", err)
	}

	// A failed delete leaves an orphan; the ledger keeps its items from
	// being folded again.
	if err := s.redisClient.Del(ctx, guestKey(guestID)).Err(); err != nil {
		s.log.WithError(err).WithField("guest_cart_id", guestID).Warn("failed to delete merged guest cart")
	}

	s.log.WithFields(logrus.Fields{
		"user_id":       userID,
		"guest_cart_id": guestID,
	}).Info("guest cart merged")
	return nil
}

// Count returns the total quantity in the cart
func (s *Service) Count(ctx context.Context, key Key) (int, error) {
	view, err := s.View(ctx, key)
	if err != nil {
		return 0, err
	}
	return view.Totals.TotalQuantity, nil
}

// Private helper methods

// stocks looks up the stock of every item's variant. Items whose product
// or variant left the catalog are absent from the result.
func (s *Service) stocks(ctx context.Context, items []item) (map[int]*int, error) {
	out := make(map[int]*int, len(items))
	for i, it := range items {
		_, stock, err := s.priceAndStock(ctx, it.ProductID, it.GroupProductID)
		if errors.Is(err, catalog.ErrProductNotFound) || errors.Is(err, catalog.ErrVariantNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[i] = stock
	}
	return out, nil
}

func (s *Service) priceAndStock(ctx context.Context, productID uint, variantID *uint) (int64, *int, error) {
	opts, g, err := s.catalog.Variant(ctx, productID, variantID)
	if err != nil {
		return 0, nil, err
	}
	if g == nil {
		return opts.Product.Price, opts.Product.Stock, nil
	}
	return opts.UnitPrice(g), g.Stock, nil
}

func (s *Service) line(ctx context.Context, it item) (*Line, error) {
	opts, g, err := s.catalog.Variant(ctx, it.ProductID, it.GroupProductID)
	if err != nil {
		return nil, err
	}

	line := &Line{
		ProductID: it.ProductID,
		VariantID: it.GroupProductID,
		Name:      opts.Product.Name,
		Quantity:  it.Quantity,
		UnitPrice: opts.UnitPrice(g),
		Stock:     opts.Product.Stock,
		AddedAt:   it.AddedAt,
	}
	if g != nil {
		line.Bind = g.Binding()
		line.Stock = g.Stock
	}
	line.LinePrice = line.UnitPrice * int64(line.Quantity)
	return line, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, key Key) ([]item, error) {
	if key.UserID != nil {
		var rows []CartItem
		err := db.WithContext(ctx).Where("user_id = ?", *key.UserID).Order("id").Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve user cart: %w", err)
		}
		items := make([]item, len(rows))
		for i, r := range rows {
			items[i] = item{ProductID: r.ProductID, GroupProductID: r.GroupProductID, Quantity: r.Quantity, AddedAt: r.CreatedAt}
		}
		return items, nil
	}

	guest, err := s.getGuestCart(ctx, key.GuestID)
	if err != nil {
		return nil, err
	}
	items := make([]item, len(guest.Items))
	for i, g := range guest.Items {
		items[i] = item{ProductID: g.ProductID, GroupProductID: g.GroupProductID, Quantity: g.Quantity, AddedAt: g.AddedAt}
	}
	return items, nil
}

func (s *Service) save(ctx context.Context, db *gorm.DB, key Key, items []item) error {
	if key.UserID != nil {
		userID := *key.UserID
		if err := db.WithContext(ctx).Unscoped().Where("user_id = ?", userID).Delete(&CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to save user cart: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		rows := make([]CartItem, len(items))
		for i, it := range items {
			rows[i] = CartItem{UserID: userID, ProductID: it.ProductID, GroupProductID: it.GroupProductID, Quantity: it.Quantity, CreatedAt: it.AddedAt}
		}
		if err := db.WithContext(ctx).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to save user cart: %w", err)
		}
		return nil
	}

	guest, err := s.getGuestCart(ctx, key.GuestID)
	if err != nil {
		return err
	}
	guest.Items = make([]GuestItem, len(items))
	for i, it := range items {
		guest.Items[i] = GuestItem{ProductID: it.ProductID, GroupProductID: it.GroupProductID, Quantity: it.Quantity, AddedAt: it.AddedAt}
	}
	guest.UpdatedAt = s.now()
	return s.saveGuestCart(ctx, guest)
}

func (s *Service) getGuestCart(ctx context.Context, guestID string) (*GuestCart, error) {
	data, err := s.redisClient.Get(ctx, guestKey(guestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		now := s.now()
		return &GuestCart{ID: guestID, Items: []GuestItem{}, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve guest cart: %w", err)
	}

	var guest GuestCart
	if err := json.Unmarshal(data, &guest); err != nil {
		return nil, fmt.Errorf("failed to decode guest cart: %w", err)
	}
	return &guest, nil
}

func (s *Service) saveGuestCart(ctx context.Context, guest *GuestCart) error {
	data, err := json.Marshal(guest)
	if err != nil {
		return err
	}
	return s.redisClient.Set(ctx, guestKey(guest.ID), data, s.config.Cart.GuestTTL).Err()
}

func guestKey(guestID string) string {
	return fmt.Sprintf("cart:guest:%s", guestID)
}

// fold adds the guest items into the user's items. stocks is indexed by
// guest item position; guest items without an entry are dropped.
func fold(into, from []item, stocks map[int]*int) []item {
	out := append([]item(nil), into...)
	for i, g := range from {
		stock, ok := stocks[i]
		if !ok {
			continue
		}

		idx := find(out, g.ProductID, g.GroupProductID)
		if idx < 0 {
			out = append(out, g)
			idx = len(out) - 1
		} else {
			out[idx].Quantity += g.Quantity
		}
		if stock != nil && out[idx].Quantity > *stock {
			out[idx].Quantity = *stock
		}
		if out[idx].Quantity <= 0 {
			out = append(out[:idx], out[idx+1:]...)
		}
	}
	return out
}

// addedAfter keeps the items added after t, re-indexing their stocks
func addedAfter(items []item, stocks map[int]*int, t time.Time) ([]item, map[int]*int) {
	var out []item
	outStocks := map[int]*int{}
	for i, it := range items {
		if !it.AddedAt.After(t) {
			continue
		}
		if stock, ok := stocks[i]; ok {
			outStocks[len(out)] = stock
		}
		out = append(out, it)
	}
	return out, outStocks
}

func find(items []item, productID uint, variantID *uint) int {
	for i := range items {
		if items[i].same(productID, variantID) {
			return i
		}
	}
	return -1
}

func calculateTotals(lines []Line) Totals {
	var totals Totals
	totals.ItemCount = len(lines)
	for _, l := range lines {
		totals.TotalQuantity += l.Quantity
		totals.SubTotal += l.LinePrice
	}
	totals.TotalAmount = totals.SubTotal
	return totals
}
