package cartsync

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/pkg/logger"
)

func viewWith(quantity int) *cart.View {
	return &cart.View{
		Key:    "guest:g1",
		Lines:  []cart.Line{{ProductID: 1, Name: "Mug", Quantity: quantity, UnitPrice: 900, LinePrice: 900 * int64(quantity)}},
		Totals: cart.Totals{ItemCount: 1, TotalQuantity: quantity, SubTotal: 900 * int64(quantity), TotalAmount: 900 * int64(quantity)},
	}
}

func TestQueryCache_GetReadsOnce(t *testing.T) {
	var loads int32
	c := NewQueryCache(func(ctx context.Context, key Key) (*cart.View, error) {
		atomic.AddInt32(&loads, 1)
		return viewWith(1), nil
	}, logger.Discard())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		v, err := c.Get(ctx, "guest:g1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Totals.TotalQuantity != 1 {
			t.Errorf("expected quantity 1, got %d", v.Totals.TotalQuantity)
		}
	}
	if n := atomic.LoadInt32(&loads); n != 1 {
		t.Errorf("expected 1 load, got %d", n)
	}
	if c.Stale("guest:g1") {
		t.Error("expected fresh entry")
	}
}

func TestQueryCache_CancelledFetchIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32

	c := NewQueryCache(func(ctx context.Context, key Key) (*cart.View, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
			return viewWith(1), nil
		}
		return viewWith(2), nil
	}, logger.Discard())

	errc := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), "guest:g1")
		errc <- err
	}()

	<-started
	c.Cancel("guest:g1")
	close(release)

	if err := <-errc; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if _, ok := c.Peek("guest:g1"); ok {
		t.Fatal("cancelled fetch must not write the cache")
	}

	v, err := c.Get(context.Background(), "guest:g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Lines[0].Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", v.Lines[0].Quantity)
	}
}

func TestQueryCache_RestoreIsExact(t *testing.T) {
	c := NewQueryCache(func(ctx context.Context, key Key) (*cart.View, error) {
		return viewWith(2), nil
	}, logger.Discard())
	ctx := context.Background()

	if _, err := c.Get(ctx, "guest:g1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := c.Snapshot("guest:g1")
	if !snap.Present() {
		t.Fatal("expected snapshot of cached cart")
	}

	err := c.Mutate("guest:g1", func(v *cart.View) {
		v.Lines[0].Quantity = 9
		v.Totals.TotalQuantity = 9
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := c.Peek("guest:g1"); v.Lines[0].Quantity != 9 {
		t.Fatalf("expected mutated quantity 9, got %d", v.Lines[0].Quantity)
	}

	c.Restore("guest:g1", snap)
	if !bytes.Equal(c.Snapshot("guest:g1").Bytes(), snap.Bytes()) {
		t.Errorf("expected restored bytes %s, got %s", snap.Bytes(), c.Snapshot("guest:g1").Bytes())
	}
	if !c.Stale("guest:g1") {
		t.Error("expected restored entry to be stale")
	}
}

func TestQueryCache_RestoreAbsent(t *testing.T) {
	c := NewQueryCache(func(ctx context.Context, key Key) (*cart.View, error) {
		return viewWith(1), nil
	}, logger.Discard())

	snap := c.Snapshot("guest:g1")
	if snap.Present() {
		t.Fatal("expected empty snapshot")
	}
	if err := c.Mutate("guest:g1", func(v *cart.View) { t.Error("mutate called without cached cart") }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Restore("guest:g1", snap)
	if _, ok := c.Peek("guest:g1"); ok {
		t.Error("expected nothing cached")
	}
}

func TestQueryCache_ScheduleRefetch(t *testing.T) {
	var loads int32
	c := NewQueryCache(func(ctx context.Context, key Key) (*cart.View, error) {
		return viewWith(int(atomic.AddInt32(&loads, 1))), nil
	}, logger.Discard())
	defer c.Reset()

	if _, err := c.Get(context.Background(), "guest:g1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.ScheduleRefetch("guest:g1", 10*time.Millisecond)
	if !c.RefetchScheduled("guest:g1") {
		t.Fatal("expected refetch to be scheduled")
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&loads) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("scheduled refetch did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
	for c.RefetchScheduled("guest:g1") || c.Stale("guest:g1") {
		if time.Now().After(deadline) {
			t.Fatal("scheduled refetch did not settle")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if v, _ := c.Peek("guest:g1"); v.Lines[0].Quantity != 2 {
		t.Errorf("expected refetched quantity 2, got %d", v.Lines[0].Quantity)
	}
}

func TestQueryCache_RemoveStopsRefetch(t *testing.T) {
	var loads int32
	c := NewQueryCache(func(ctx context.Context, key Key) (*cart.View, error) {
		atomic.AddInt32(&loads, 1)
		return viewWith(1), nil
	}, logger.Discard())

	c.ScheduleRefetch("guest:g1", 20*time.Millisecond)
	c.Remove("guest:g1")
	time.Sleep(60 * time.Millisecond)

	if n := atomic.LoadInt32(&loads); n != 0 {
		t.Errorf("expected no loads after remove, got %d", n)
	}
	if c.RefetchScheduled("guest:g1") {
		t.Error("expected no scheduled refetch")
	}
}
