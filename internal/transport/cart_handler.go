package transport

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/session"
)

// AddItemRequest adds a product to the cart. A missing or non-positive quantity adds one.
// The quantity bound matches cart.MaxQuantity.
type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"lte=999"`
}

// UpdateItemRequest sets a quantity. Zero or less removes the item.
type UpdateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=999"`
}

// CartHandler serves the session cart
type CartHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(productService service.ProductService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers the cart routes behind the session middleware
func (h *CartHandler) RegisterRoutes(r chi.Router, sessionMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(sessionMiddleware)

		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productId}", h.UpdateItem)
		r.Delete("/items/{productId}", h.RemoveItem)
		r.Post("/checkout", h.Checkout)
	})
}

// GetCart returns the cart snapshot
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newCartResponse(s.View()))
}

// AddItem adds a catalog product to the cart, merging with an existing line
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.productService.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to load product for cart", zap.Error(err), zap.String("product_id", req.ProductID))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to add item")
		return
	}

	snapshot := s.Update(func(c *cart.Store) {
		c.AddToCart(*product, req.Quantity)
	})

	h.logger.Debug("Cart item added",
		zap.String("session_id", s.ID),
		zap.String("product_id", product.ID),
		zap.Int("total_items", snapshot.TotalItems),
	)
	middleware.RespondWithJSON(w, http.StatusOK, newCartResponse(snapshot))
}

// UpdateItem sets the quantity of a cart line
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	productID := chi.URLParam(r, "productId")
	snapshot := s.Update(func(c *cart.Store) {
		c.UpdateQuantity(productID, *req.Quantity)
	})

	middleware.RespondWithJSON(w, http.StatusOK, newCartResponse(snapshot))
}

// RemoveItem deletes a cart line
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "productId")
	snapshot := s.Update(func(c *cart.Store) {
		c.RemoveFromCart(productID)
	})

	middleware.RespondWithJSON(w, http.StatusOK, newCartResponse(snapshot))
}

// ClearCart empties the cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	snapshot := s.Update(func(c *cart.Store) {
		c.ClearCart()
	})

	middleware.RespondWithJSON(w, http.StatusOK, newCartResponse(snapshot))
}

// Checkout prices the cart and empties it. There is no payment step.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var ordered cart.Snapshot
	s.Update(func(c *cart.Store) {
		ordered = c.Snapshot()
		if len(ordered.Entries) > 0 {
			c.ClearCart()
		}
	})

	if len(ordered.Entries) == 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "cart is empty")
		return
	}

	h.logger.Info("Checkout completed",
		zap.String("session_id", s.ID),
		zap.Int("total_items", ordered.TotalItems),
		zap.String("total", formatMoney(ordered.Summary().Total)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, newCheckoutResponse(ordered))
}

func (h *CartHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := middleware.GetSession(r.Context())
	if !ok {
		h.logger.Error("Session not found in context", zap.String("path", r.URL.Path))
		middleware.RespondWithError(w, http.StatusInternalServerError, "session unavailable")
		return nil, false
	}
	return s, true
}
