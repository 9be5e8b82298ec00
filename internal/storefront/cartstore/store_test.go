package cartstore

import (
	"context"
	"errors"
	"testing"

	"github.com/your-org/storefront/internal/domain/catalog"
	"github.com/your-org/storefront/internal/pkg/logger"
	"github.com/your-org/storefront/internal/storefront/storage"
)

func variantID(n uint) *uint { return &n }

func redS() ResolvedVariant {
	return ResolvedVariant{
		ProductID: 1,
		VariantID: variantID(11),
		Bind:      catalog.Bind{"color": "red", "size": "S"},
		Name:      "Tee",
		UnitPrice: 1500,
	}
}

func newStore() (*Store, *storage.Memory) {
	st := storage.NewMemory()
	return New(st, logger.Discard()), st
}

func assertNoEmptyLines(t *testing.T, s *Store) {
	t.Helper()
	for _, l := range s.Lines() {
		if l.Quantity < 1 {
			t.Fatalf("found line %s with quantity %d", l.Key, l.Quantity)
		}
	}
}

func TestAdd_CapsAtStock(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()

	added := 0
	for i := 0; i < 5; i++ {
		if s.Add(ctx, redS(), 3) {
			added++
		}
		assertNoEmptyLines(t, s)
	}

	if added != 3 {
		t.Errorf("expected 3 accepted adds, got %d", added)
	}
	l, ok := s.Line(LineKey(1, variantID(11)))
	if !ok || l.Quantity != 3 || l.Total != 4500 {
		t.Fatalf("expected quantity 3 total 4500, got %+v", l)
	}
	if s.Increment(ctx, l.Key, 1500) {
		t.Error("expected increment at cap to be refused")
	}
}

func TestAdd_OutOfStockRefused(t *testing.T) {
	s, _ := newStore()
	if s.Add(context.Background(), redS(), 0) {
		t.Error("expected add of out-of-stock variant to be refused")
	}
	if len(s.Lines()) != 0 {
		t.Errorf("expected no lines, got %+v", s.Lines())
	}
}

func TestAddThenDecrementIsEmptyState(t *testing.T) {
	ctx := context.Background()

	s, st := newStore()
	s.Add(ctx, redS(), 3)
	s.Decrement(ctx, LineKey(1, variantID(11)), 1500)

	fresh, freshSt := newStore()
	fresh.Clear(ctx)

	if len(s.Lines()) != 0 || s.Total() != 0 || s.Count() != 0 {
		t.Errorf("expected empty cart, got %+v", s.Lines())
	}
	got, _, _ := st.Get(ctx, storage.SlotCart)
	want, _, _ := freshSt.Get(ctx, storage.SlotCart)
	if got != want {
		t.Errorf("expected persisted state %s, got %s", want, got)
	}
}

func TestIncrementDecrementRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()
	key := LineKey(1, variantID(11))

	s.Add(ctx, redS(), 5)
	if !s.Increment(ctx, key, 1600) {
		t.Fatal("expected increment to succeed")
	}
	l, _ := s.Line(key)
	if l.Quantity != 2 || l.Total != 3200 {
		t.Errorf("expected repriced total 3200, got %+v", l)
	}

	s.Decrement(ctx, key, 1600)
	if l, _ := s.Line(key); l.Quantity != 1 {
		t.Errorf("expected quantity 1, got %d", l.Quantity)
	}

	other := ResolvedVariant{ProductID: 2, Name: "Mug", UnitPrice: 800}
	s.Add(ctx, other, 10)
	s.Add(ctx, other, 10)
	s.Remove(ctx, LineKey(2, nil))
	if _, ok := s.Line(LineKey(2, nil)); ok {
		t.Error("expected line removed regardless of quantity")
	}
	if s.Increment(ctx, "missing", 100) {
		t.Error("expected increment of missing line to fail")
	}
	s.Decrement(ctx, "missing", 100)
	assertNoEmptyLines(t, s)
}

func TestPersistAndLoad(t *testing.T) {
	ctx := context.Background()
	s, st := newStore()

	s.Add(ctx, redS(), 3)
	s.Add(ctx, redS(), 3)
	s.SetVisible(ctx, true)

	restored := New(st, logger.Discard())
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !restored.Visible() {
		t.Error("expected visibility restored")
	}
	lines := restored.Lines()
	if len(lines) != 1 || lines[0].Quantity != 2 || lines[0].Bind["size"] != "S" {
		t.Errorf("unexpected restored lines %+v", lines)
	}
}

func TestLoad_DiscardsCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	st.Set(ctx, storage.SlotCart, `{"lines":[{"key":"1","quantity":0},{"key":"2","quantity":2,"unit_price":5}]}`)

	s := New(st, logger.Discard())
	if err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if lines := s.Lines(); len(lines) != 1 || lines[0].Total != 10 {
		t.Errorf("expected zero-quantity line dropped and total recomputed, got %+v", lines)
	}

	st.Set(ctx, storage.SlotCart, `{not json`)
	if err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(s.Lines()) != 0 {
		t.Errorf("expected corrupt snapshot discarded, got %+v", s.Lines())
	}
}

type failingStorage struct{}

func (failingStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("storage offline")
}

func (failingStorage) Set(context.Context, string, string) error {
	return errors.New("storage offline")
}

func (failingStorage) Delete(context.Context, string) error {
	return errors.New("storage offline")
}

func TestStorageFailureKeepsInMemoryCart(t *testing.T) {
	ctx := context.Background()
	s := New(failingStorage{}, logger.Discard())

	if !s.Add(ctx, redS(), 2) {
		t.Fatal("expected add to succeed without storage")
	}
	if s.Count() != 1 {
		t.Errorf("expected 1 item, got %d", s.Count())
	}
	if err := s.Load(ctx); err == nil {
		t.Error("expected load error from storage")
	}
}
