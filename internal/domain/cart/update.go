// internal/domain/cart/update.go
package cart

import "time"

// applyUpdate computes the cart after one update. It returns the new item
// list, the changed item (nil when the line was removed), and the action.
// Quantity never drops below one on a kept line, and never rises above
// known stock unless the request ignores stock. Unknown stock allows no
// increase.
func applyUpdate(items []item, req *UpdateRequest, stock *int, now time.Time) ([]item, *item, Action, error) {
	idx := find(items, req.ProductID, req.VariantID)
	current := 0
	if idx >= 0 {
		current = items[idx].Quantity
	}

	step := 1
	if req.Value != nil {
		step = *req.Value
	}

	var next int
	switch req.Mode {
	case ModeIncrement:
		if step < 1 {
			return nil, nil, "", ErrInvalidValue
		}
		next = current + step
	case ModeDecrement:
		if idx < 0 {
			return nil, nil, "", ErrLineNotFound
		}
		if step < 1 {
			return nil, nil, "", ErrInvalidValue
		}
		next = current - step
	case ModeSet:
		if req.Value == nil || *req.Value < 0 {
			return nil, nil, "", ErrInvalidValue
		}
		next = *req.Value
	case ModeClear:
		if idx < 0 {
			return nil, nil, "", ErrLineNotFound
		}
		next = 0
	case ModeMax:
		if stock == nil {
			return nil, nil, "", ErrUnboundedStock
		}
		next = *stock
	default:
		return nil, nil, "", ErrInvalidMode
	}

	if next > current && !req.IgnoreStock {
		if stock == nil || next > *stock {
			return nil, nil, "", ErrInsufficientStock
		}
	}

	out := append([]item(nil), items...)
	if next <= 0 {
		if idx >= 0 {
			out = append(out[:idx], out[idx+1:]...)
		}
		return out, nil, ActionRemoved, nil
	}

	if idx >= 0 {
		out[idx].Quantity = next
		changed := out[idx]
		return out, &changed, ActionUpdated, nil
	}

	added := item{ProductID: req.ProductID, GroupProductID: req.VariantID, Quantity: next, AddedAt: now}
	out = append(out, added)
	return out, &added, ActionAdded, nil
}
