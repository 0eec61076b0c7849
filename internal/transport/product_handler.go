package transport

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/storage"
)

// productForm holds the text fields of a multipart product create
type productForm struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	Description string `json:"description" validate:"notblank,max=5000"`
	Price       string `json:"price" validate:"required"`
	Category    string `json:"category" validate:"notblank,max=50"`
	Featured    string `json:"featured" validate:"omitempty,oneof=true false on off 1 0"`
}

// productPatchForm holds the text fields present on a multipart update
type productPatchForm struct {
	Name        *string `json:"name" validate:"omitnil,notblank,max=200"`
	Description *string `json:"description" validate:"omitnil,notblank,max=5000"`
	Category    *string `json:"category" validate:"omitnil,notblank,max=50"`
}

// ProductHandler serves the catalog
type ProductHandler struct {
	productService service.ProductService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler. Multipart bodies larger than
// maxUploadBytes are rejected.
func NewProductHandler(productService service.ProductService, maxUploadBytes int64, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers the catalog routes. Writes require an admin.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/categories", h.ListCategories)
		r.Get("/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, adminMiddleware)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
	})
}

// ListProducts lists products, newest first. Supports ?category=, ?featured=true and ?q=.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ProductFilter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
	}
	if v := q.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "featured must be true or false")
			return
		}
		filter.FeaturedOnly = featured
	}

	products, err := h.productService.ListProducts(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductListResponse(products))
}

// ListCategories returns the categories the catalog offers
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.productService.Categories(r.Context())
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// GetProduct returns one product
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.productService.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondProductError(w, err, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

// CreateProduct handles a multipart create with an "image" file part
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := productForm{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Price:       r.FormValue("price"),
		Category:    r.FormValue("category"),
		Featured:    strings.ToLower(r.FormValue("featured")),
	}
	if err := middleware.ValidateRequest(form); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	price, ok := parsePrice(w, form.Price)
	if !ok {
		return
	}

	image, closeImage, ok := h.readImage(w, r)
	if !ok {
		return
	}
	defer closeImage()
	if image == nil {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "image", Message: "This field is required"},
		})
		return
	}

	product, err := h.productService.CreateProduct(r.Context(), service.ProductInput{
		Name:        form.Name,
		Description: form.Description,
		Price:       price,
		Category:    form.Category,
		Featured:    parseFormBool(form.Featured),
	}, image)
	if err != nil {
		h.respondProductError(w, err, "failed to create product")
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("category", product.Category),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, newProductResponse(product))
}

// UpdateProduct handles a multipart partial update. Absent fields keep their value.
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	values := r.MultipartForm.Value
	field := func(name string) *string {
		if v, ok := values[name]; ok && len(v) > 0 {
			return &v[0]
		}
		return nil
	}

	form := productPatchForm{
		Name:        field("name"),
		Description: field("description"),
		Category:    field("category"),
	}
	if err := middleware.ValidateRequest(form); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	patch := domain.ProductPatch{
		Name:        form.Name,
		Description: form.Description,
		Category:    form.Category,
	}
	if v := field("price"); v != nil {
		price, ok := parsePrice(w, *v)
		if !ok {
			return
		}
		patch.Price = &price
	}
	if v := field("featured"); v != nil {
		featured := parseFormBool(strings.ToLower(*v))
		patch.Featured = &featured
	}

	image, closeImage, ok := h.readImage(w, r)
	if !ok {
		return
	}
	defer closeImage()

	id := chi.URLParam(r, "id")
	product, err := h.productService.UpdateProduct(r.Context(), id, patch, image)
	if err != nil {
		h.respondProductError(w, err, "failed to update product")
		return
	}

	h.logger.Info("Product updated",
		zap.String("product_id", product.ID),
		zap.Bool("image_replaced", image != nil),
	)
	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

// DeleteProduct removes a product and its image
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.productService.DeleteProduct(r.Context(), id); err != nil {
		h.respondProductError(w, err, "failed to delete product")
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "expected a multipart form")
		return false
	}
	return true
}

// readImage returns the sniffed "image" part, or nil when the request has none
func (h *ProductHandler) readImage(w http.ResponseWriter, r *http.Request) (*storage.Image, func(), bool) {
	file, _, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, true
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid image upload")
		return nil, nil, false
	}

	image, err := storage.DetectImage(file)
	if err != nil {
		file.Close()
		if errors.Is(err, storage.ErrUnsupportedImage) {
			middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
				{Field: "image", Message: "Image must be JPEG, PNG, GIF or WebP"},
			})
			return nil, nil, false
		}
		h.logger.Error("Failed to read image upload", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid image upload")
		return nil, nil, false
	}

	return image, func() { closeFile(file) }, true
}

func (h *ProductHandler) respondProductError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrInvalidProduct), errors.Is(err, service.ErrImageRequired):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(msg, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, msg)
	}
}

func parsePrice(w http.ResponseWriter, s string) (decimal.Decimal, bool) {
	price, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "price", Message: "Price must be a decimal number"},
		})
		return decimal.Decimal{}, false
	}
	if price.GreaterThanOrEqual(service.MaxPrice) {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "price", Message: "Price must be less than " + service.MaxPrice.String()},
		})
		return decimal.Decimal{}, false
	}
	return price, true
}

func parseFormBool(s string) bool {
	switch s {
	case "true", "on", "1":
		return true
	}
	return false
}

func closeFile(f multipart.File) {
	_ = f.Close()
}
