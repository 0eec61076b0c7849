package cart

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

var catalog = []domain.Product{
	product("p0", "0.99"),
	product("p1", "10.00"),
	product("p2", "5.50"),
	product("p3", "123.45"),
	product("p4", "0"),
}

// apply decodes n into one cart operation and runs it.
// kind: 0 add, 1 remove, 2 update, 3 clear (rarely, to keep carts non-trivial).
func apply(s *Store, n int) {
	p := catalog[(n/4)%len(catalog)]
	qty := (n/20)%9 - 3 // -3..5

	switch n % 4 {
	case 0:
		s.AddToCart(p, qty)
	case 1:
		s.RemoveFromCart(p.ID)
	case 2:
		s.UpdateQuantity(p.ID, qty)
	case 3:
		if n%7 == 0 {
			s.ClearCart()
		} else {
			s.AddToCart(p, qty)
		}
	}
}

func checkInvariants(s *Store) error {
	snap := s.Snapshot()
	seen := make(map[string]bool)
	items := 0
	price := decimal.Zero

	for _, e := range snap.Entries {
		if seen[e.Product.ID] {
			return fmt.Errorf("duplicate entry for %s", e.Product.ID)
		}
		seen[e.Product.ID] = true
		if e.Quantity < 1 {
			return fmt.Errorf("entry %s has quantity %d", e.Product.ID, e.Quantity)
		}
		items += e.Quantity
		price = price.Add(e.Product.Price.Mul(decimal.NewFromInt(int64(e.Quantity))))
	}

	if snap.TotalItems != items || s.TotalItems() != items {
		return fmt.Errorf("total items %d/%d, expected %d", snap.TotalItems, s.TotalItems(), items)
	}
	if !snap.TotalPrice.Equal(price) || !s.TotalPrice().Equal(price) {
		return fmt.Errorf("total price %s/%s, expected %s", snap.TotalPrice, s.TotalPrice(), price)
	}
	return nil
}

func TestProperty_TotalsMatchEntriesAfterEveryOperation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("totals are derived from entries in every reachable state", prop.ForAll(
		func(ops []int) bool {
			s := NewStore()
			for _, op := range ops {
				apply(s, op)
				if err := checkInvariants(s); err != nil {
					t.Logf("FAIL after op %d: %v", op, err)
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 9999)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_AddingTwiceMergesQuantities(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("re-adding a product sums quantities in a single entry", prop.ForAll(
		func(first int, second int) bool {
			s := NewStore()
			p := catalog[1]
			s.AddToCart(p, first)
			s.AddToCart(p, second)

			entries := s.Entries()
			return len(entries) == 1 && entries[0].Quantity == min(first+second, MaxQuantity)
		},
		gen.IntRange(1, MaxQuantity),
		gen.IntRange(1, MaxQuantity),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_QuantitiesStayWithinBounds(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("any add or update sequence keeps every line in 1..MaxQuantity", prop.ForAll(
		func(quantities []int64) bool {
			s := NewStore()
			for i, q := range quantities {
				p := catalog[i%2]
				if i%3 == 2 {
					s.UpdateQuantity(p.ID, int(q))
				} else {
					s.AddToCart(p, int(q))
				}

				if err := checkInvariants(s); err != nil {
					t.Logf("FAIL after quantity %d: %v", q, err)
					return false
				}
				for _, e := range s.Entries() {
					if e.Quantity > MaxQuantity {
						return false
					}
				}
				if s.TotalItems() < 0 || s.TotalPrice().IsNegative() {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_RemovingAbsentProductChangesNothing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("remove of an unknown id leaves entries and totals unchanged", prop.ForAll(
		func(ops []int, missing string) bool {
			s := NewStore()
			for _, op := range ops {
				apply(s, op)
			}
			before := s.Snapshot()

			s.RemoveFromCart("absent-" + missing)

			return reflect.DeepEqual(before, s.Snapshot())
		},
		gen.SliceOf(gen.IntRange(0, 9999)),
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ClearAlwaysEmpties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("clear yields an empty cart with zero totals", prop.ForAll(
		func(ops []int) bool {
			s := NewStore()
			for _, op := range ops {
				apply(s, op)
			}

			s.ClearCart()

			return len(s.Entries()) == 0 && s.TotalItems() == 0 && s.TotalPrice().IsZero()
		},
		gen.SliceOf(gen.IntRange(0, 9999)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_UpdateToNonPositiveRemoves(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("update with quantity <= 0 deletes the entry", prop.ForAll(
		func(initial int, update int) bool {
			s := NewStore()
			s.AddToCart(catalog[2], initial)
			s.AddToCart(catalog[3], 1)

			s.UpdateQuantity(catalog[2].ID, update)

			for _, e := range s.Entries() {
				if e.Product.ID == catalog[2].ID {
					return false
				}
			}
			return s.Len() == 1
		},
		gen.IntRange(1, 50),
		gen.IntRange(-50, 0),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
