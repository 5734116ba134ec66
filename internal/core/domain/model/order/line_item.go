package order

import (
	"errors"

	"dispatch/internal/pkg/errs"
)

// LineItem is an immutable entry in an order's item list.
// The item list is fixed at order creation and never mutated afterwards.
type LineItem struct {
	name       string
	quantity   int
	priceCents int64
}

// NewLineItem creates a validated line item.
//
// Parameters:
//   - name: Item description (must be non-empty)
//   - quantity: Number of units (must be positive)
//   - priceCents: Unit price in cents (must not be negative)
func NewLineItem(name string, quantity int, priceCents int64) (LineItem, error) {
	var joined error
	if name == "" {
		joined = errors.Join(joined, errs.NewValueIsRequiredError("name"))
	}
	if quantity <= 0 {
		joined = errors.Join(joined, errs.NewValueIsOutOfRangeError("quantity", quantity, 1, int(^uint(0)>>1)))
	}
	if priceCents < 0 {
		joined = errors.Join(joined, errs.NewValueIsInvalidError("priceCents"))
	}
	if joined != nil {
		return LineItem{}, joined
	}

	return LineItem{name: name, quantity: quantity, priceCents: priceCents}, nil
}

// Name returns the item description.
func (li LineItem) Name() string {
	return li.name
}

// Quantity returns the number of units.
func (li LineItem) Quantity() int {
	return li.quantity
}

// PriceCents returns the unit price in cents.
func (li LineItem) PriceCents() int64 {
	return li.priceCents
}
