package cart

import "github.com/shopspring/decimal"

// Summary is the order summary shown before checkout.
type Summary struct {
	TotalItems int
	Subtotal   decimal.Decimal
	Shipping   decimal.Decimal
	Total      decimal.Decimal
}

// Summary prices the snapshot. Shipping is free.
func (s Snapshot) Summary() Summary {
	shipping := decimal.Zero
	return Summary{
		TotalItems: s.TotalItems,
		Subtotal:   s.TotalPrice,
		Shipping:   shipping,
		Total:      s.TotalPrice.Add(shipping),
	}
}
