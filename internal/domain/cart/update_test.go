package cart

import (
	"errors"
	"testing"
	"time"
)

func intPtr(n int) *int    { return &n }
func uintPtr(n uint) *uint { return &n }

func TestApplyUpdate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := []item{{ProductID: 1, GroupProductID: uintPtr(3), Quantity: 2, AddedAt: now}}

	tests := []struct {
		name       string
		items      []item
		req        UpdateRequest
		stock      *int
		wantQty    int // 0 means removed
		wantAction Action
		wantErr    error
	}{
		{"increment new line", nil, UpdateRequest{ProductID: 1, VariantID: uintPtr(3), Mode: ModeIncrement}, intPtr(5), 1, ActionAdded, nil},
		{"increment existing", existing, UpdateRequest{ProductID: 1, VariantID: uintPtr(3), Mode: ModeIncrement, Value: intPtr(2)}, intPtr(5), 4, ActionUpdated, nil},
		{"increment past stock", existing, UpdateRequest{ProductID: 1, VariantID: uintPtr(3), Mode: ModeIncrement, Value: intPtr(4)}, intPtr(5), 0, "", ErrInsufficientStock},
		{"increment past stock ignored", existing, UpdateRequest{ProductID: 1, VariantID: uintPtr(3), Mode: ModeIncrement, Value: intPtr(4), IgnoreStock: true}, intPtr(5), 6, ActionUpdated, nil},
		{"increment unknown stock", nil, UpdateRequest{ProductID: 1, Mode: ModeIncrement}, nil, 0, "", ErrInsufficientStock},
		{"decrement", existing, UpdateRequest{ProductID: 1, VariantID: uintPtr(3), Mode: ModeDecrement}, intPtr(5), 1, ActionUpdated, nil},
		{"decrement to zero removes", existing, UpdateRequest{ProductID: 1, VariantID: uintPtr(3), Mode: ModeDecrement, Value: intPtr(2)}, intPtr(5), 0, ActionRemoved, nil},
		{"decrement missing line", nil, UpdateRequest{ProductID: 1, Mode: ModeDecrement}, intPtr(5), 0, "", ErrLineNotFound},
		{"set", existing, UpdateRequest{ProductID: 1, VariantID: uintPtr(3), Mode: ModeSet, Value: intPtr(5)}, intPtr(5), 5, ActionUpdated, nil},
		{"set zero removes", existing, UpdateRequest{ProductID: 1, VariantID: uintPtr(3), Mode: ModeSet, Value: intPtr(0)}, intPtr(5), 0, ActionRemoved, nil},
		{"set without value", existing, UpdateRequest{ProductID: 1, VariantID: uintPtr(3), Mode: ModeSet}, intPtr(5), 0, "", ErrInvalidValue},
		{"set lower than stock allowed when stock shrank", existing, UpdateRequest{ProductID: 1, VariantID: uintPtr(3), Mode: ModeSet, Value: intPtr(1)}, intPtr(0), 1, ActionUpdated, nil},
		{"clear", existing, UpdateRequest{ProductID: 1, VariantID: uintPtr(3), Mode: ModeClear}, intPtr(5), 0, ActionRemoved, nil},
		{"max", existing, UpdateRequest{ProductID: 1, VariantID: uintPtr(3), Mode: ModeMax}, intPtr(5), 5, ActionUpdated, nil},
		{"max unknown stock", existing, UpdateRequest{ProductID: 1, VariantID: uintPtr(3), Mode: ModeMax}, nil, 0, "", ErrUnboundedStock},
		{"other variant is another line", existing, UpdateRequest{ProductID: 1, VariantID: uintPtr(4), Mode: ModeIncrement}, intPtr(1), 1, ActionAdded, nil},
		{"bad mode", existing, UpdateRequest{ProductID: 1, Mode: "double"}, intPtr(5), 0, "", ErrInvalidMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed, action, err := applyUpdate(tt.items, &tt.req, tt.stock, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if action != tt.wantAction {
				t.Errorf("expected action %q, got %q", tt.wantAction, action)
			}
			idx := find(out, tt.req.ProductID, tt.req.VariantID)
			if tt.wantQty == 0 {
				if idx >= 0 || changed != nil {
					t.Errorf("expected line removed, got %+v", out)
				}
				return
			}
			if idx < 0 || out[idx].Quantity != tt.wantQty {
				t.Fatalf("expected quantity %d, got %+v", tt.wantQty, out)
			}
			if changed == nil || changed.Quantity != tt.wantQty {
				t.Errorf("expected changed item with quantity %d, got %+v", tt.wantQty, changed)
			}
			for _, it := range out {
				if it.Quantity < 1 {
					t.Errorf("found line with quantity %d", it.Quantity)
				}
			}
		})
	}
}

func TestApplyUpdate_DoesNotMutateInput(t *testing.T) {
	items := []item{{ProductID: 1, Quantity: 2}}
	_, _, _, err := applyUpdate(items, &UpdateRequest{ProductID: 1, Mode: ModeClear}, intPtr(5), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Errorf("expected input untouched, got %+v", items)
	}
}

func TestFold(t *testing.T) {
	user := []item{{ProductID: 1, GroupProductID: uintPtr(3), Quantity: 2}}
	guest := []item{
		{ProductID: 1, GroupProductID: uintPtr(3), Quantity: 4},
		{ProductID: 2, Quantity: 1},
		{ProductID: 9, Quantity: 1},
	}
	stocks := map[int]*int{0: intPtr(5), 1: nil}

	out := fold(user, guest, stocks)
	if len(out) != 2 {
		t.Fatalf("expected 2 lines, got %+v", out)
	}
	if out[0].Quantity != 5 {
		t.Errorf("expected clamped quantity 5, got %d", out[0].Quantity)
	}
	if out[1].ProductID != 2 || out[1].Quantity != 1 {
		t.Errorf("expected product 2 added, got %+v", out[1])
	}
}

func TestKeyString(t *testing.T) {
	if got := (Key{UserID: uintPtr(7)}).String(); got != "user:7" {
		t.Errorf("expected user:7, got %q", got)
	}
	if got := (Key{GuestID: "abc"}).String(); got != "guest:abc" {
		t.Errorf("expected guest:abc, got %q", got)
	}
	if (Key{}).Valid() {
		t.Error("expected empty key to be invalid")
	}
}
