// Package cart holds the in-memory shopping cart of a single browser session.
//
// A Store is not safe for concurrent use. Callers serialize access to it, the
// way the session registry does, and every mutation installs its next entry
// list in one assignment so a reader between two calls always sees a
// consistent cart.
//
// Carts are never persisted. Ending the session discards the cart.
package cart

import (
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// MaxQuantity is the most units of one product a cart line can hold.
// Larger adds and updates are capped at it.
const MaxQuantity = 999

// Entry pairs a product snapshot with a quantity. The product is copied at the
// time it is added; later catalog changes do not reach it.
type Entry struct {
	Product  domain.Product
	Quantity int
}

// LineTotal returns price * quantity for the entry.
func (e Entry) LineTotal() decimal.Decimal {
	return e.Product.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// Snapshot is a read-only view of a cart. Totals are computed from Entries.
type Snapshot struct {
	Entries    []Entry
	TotalItems int
	TotalPrice decimal.Decimal
}

// Store is the ordered list of cart entries, unique by product id.
type Store struct {
	entries []Entry
}

// NewStore returns an empty cart.
func NewStore() *Store {
	return &Store{entries: []Entry{}}
}

// AddToCart adds quantity units of product. A quantity below 1 is treated as 1.
// If the product is already in the cart its quantity grows by quantity and the
// entry keeps its position; otherwise a new entry is appended. A line never
// holds more than MaxQuantity units.
func (s *Store) AddToCart(product domain.Product, quantity int) {
	quantity = min(max(quantity, 1), MaxQuantity)

	next := make([]Entry, len(s.entries), len(s.entries)+1)
	copy(next, s.entries)

	if i := indexOf(next, product.ID); i >= 0 {
		// both operands are at most MaxQuantity, so the sum cannot overflow
		next[i].Quantity = min(next[i].Quantity+quantity, MaxQuantity)
	} else {
		next = append(next, Entry{Product: product, Quantity: quantity})
	}

	s.entries = next
}

// RemoveFromCart deletes the entry for productID. Unknown ids are ignored.
func (s *Store) RemoveFromCart(productID string) {
	i := indexOf(s.entries, productID)
	if i < 0 {
		return
	}
	s.entries = without(s.entries, i)
}

// UpdateQuantity sets the quantity of productID. A quantity of zero or less
// removes the entry; one above MaxQuantity is capped. Unknown ids are ignored.
func (s *Store) UpdateQuantity(productID string, quantity int) {
	i := indexOf(s.entries, productID)
	if i < 0 {
		return
	}

	if quantity <= 0 {
		s.entries = without(s.entries, i)
		return
	}

	next := make([]Entry, len(s.entries))
	copy(next, s.entries)
	next[i].Quantity = min(quantity, MaxQuantity)
	s.entries = next
}

// ClearCart removes every entry.
func (s *Store) ClearCart() {
	s.entries = []Entry{}
}

// Entries returns a copy of the entries in insertion order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// TotalItems is the sum of all quantities.
func (s *Store) TotalItems() int {
	return totalItems(s.entries)
}

// TotalPrice is the sum of price * quantity over all entries.
func (s *Store) TotalPrice() decimal.Decimal {
	return totalPrice(s.entries)
}

// Snapshot returns the entries and both totals derived from the same list.
func (s *Store) Snapshot() Snapshot {
	entries := s.entries
	out := make([]Entry, len(entries))
	copy(out, entries)
	return Snapshot{
		Entries:    out,
		TotalItems: totalItems(entries),
		TotalPrice: totalPrice(entries),
	}
}

// Len returns the number of distinct products in the cart.
func (s *Store) Len() int {
	return len(s.entries)
}

func indexOf(entries []Entry, productID string) int {
	for i := range entries {
		if entries[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// without returns a new slice with entries[i] dropped. The input is not modified.
func without(entries []Entry, i int) []Entry {
	next := make([]Entry, 0, len(entries)-1)
	next = append(next, entries[:i]...)
	return append(next, entries[i+1:]...)
}

func totalItems(entries []Entry) int {
	n := 0
	for _, e := range entries {
		n += e.Quantity
	}
	return n
}

func totalPrice(entries []Entry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.LineTotal())
	}
	return sum
}
