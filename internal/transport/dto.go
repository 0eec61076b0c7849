package transport

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/cart"
	"storefront/internal/domain"
)

// Money is serialized as a string with exactly two decimals.
func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ProductResponse is the JSON form of a product
type ProductResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	ImageURL    string    `json:"imageUrl"`
	Category    string    `json:"category"`
	Featured    bool      `json:"featured"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       formatMoney(p.Price),
		ImageURL:    p.ImageURL,
		Category:    p.Category,
		Featured:    p.Featured,
		CreatedAt:   p.CreatedAt,
	}
}

func newProductListResponse(products []*domain.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, newProductResponse(p))
	}
	return out
}

// CartItemResponse is one cart line
type CartItemResponse struct {
	Product   ProductResponse `json:"product"`
	Quantity  int             `json:"quantity"`
	LineTotal string          `json:"lineTotal"`
}

// CartResponse is the JSON form of a cart snapshot
type CartResponse struct {
	Items      []CartItemResponse `json:"items"`
	TotalItems int                `json:"totalItems"`
	TotalPrice string             `json:"totalPrice"`
}

func newCartResponse(s cart.Snapshot) CartResponse {
	items := make([]CartItemResponse, 0, len(s.Entries))
	for _, e := range s.Entries {
		p := e.Product
		items = append(items, CartItemResponse{
			Product:   newProductResponse(&p),
			Quantity:  e.Quantity,
			LineTotal: formatMoney(e.LineTotal()),
		})
	}
	return CartResponse{
		Items:      items,
		TotalItems: s.TotalItems,
		TotalPrice: formatMoney(s.TotalPrice),
	}
}

// CheckoutResponse is the order summary returned by checkout
type CheckoutResponse struct {
	Items      []CartItemResponse `json:"items"`
	TotalItems int                `json:"totalItems"`
	Subtotal   string             `json:"subtotal"`
	Shipping   string             `json:"shipping"`
	Total      string             `json:"total"`
}

func newCheckoutResponse(s cart.Snapshot) CheckoutResponse {
	summary := s.Summary()
	return CheckoutResponse{
		Items:      newCartResponse(s).Items,
		TotalItems: summary.TotalItems,
		Subtotal:   formatMoney(summary.Subtotal),
		Shipping:   formatMoney(summary.Shipping),
		Total:      formatMoney(summary.Total),
	}
}

// UserProfile represents user profile data
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

func newUserProfile(u *domain.User) UserProfile {
	return UserProfile{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}

// ContactResponse is the JSON form of a stored contact message
type ContactResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func newContactResponse(m *domain.ContactMessage) ContactResponse {
	return ContactResponse{
		ID:        m.ID.String(),
		Name:      m.Name,
		Email:     m.Email,
		Subject:   m.Subject,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
	}
}
