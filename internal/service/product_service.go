package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/storage"
)

var (
	ErrInvalidProduct = errors.New("invalid product")
	ErrImageRequired  = errors.New("product image is required")
)

// ProductInput is the editable part of a product
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Featured    bool
}

// ProductService defines the catalog operations
type ProductService interface {
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, in ProductInput, image *storage.Image) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch, image *storage.Image) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	Categories(ctx context.Context) ([]string, error)
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	blobs        storage.BlobStore
	logger       *zap.Logger
	lookups      singleflight.Group
	now          func() time.Time
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	blobs storage.BlobStore,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		blobs:        blobs,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ListProducts returns products matching filter, newest first
func (s *productService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	products, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// GetProduct returns a product by id. Concurrent lookups of one id share a
// single repository call; each caller gets its own copy. The shared call
// ignores cancellation so one caller giving up does not fail the others.
func (s *productService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.lookups.Do(id, func() (interface{}, error) {
		return s.productRepo.FindByID(shared, id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	product := *v.(*domain.Product)
	return &product, nil
}

// CreateProduct uploads the image first, then stores the product with its URL
func (s *productService) CreateProduct(ctx context.Context, in ProductInput, image *storage.Image) (*domain.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)

	if err := validateProductInput(in); err != nil {
		return nil, err
	}
	if image == nil {
		return nil, ErrImageRequired
	}

	imageURL, err := s.blobs.Put(ctx, storage.NewImageKey(image.Extension), image.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload product image: %w", err)
	}

	product := &domain.Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    imageURL,
		Category:    in.Category,
		Featured:    in.Featured,
		CreatedAt:   s.now(),
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		s.discardImage(imageURL, "Failed to remove image of unsaved product")
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// UpdateProduct applies a partial update. A new image replaces the old one,
// which is deleted after the product row points at the new URL.
func (s *productService) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch, image *storage.Image) (*domain.Product, error) {
	if err := validateProductPatch(&patch); err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	oldImageURL := product.ImageURL
	if image != nil {
		newURL, err := s.blobs.Put(ctx, storage.NewImageKey(image.Extension), image.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to upload product image: %w", err)
		}
		patch.ImageURL = &newURL
	}

	patch.Apply(product)

	if err := s.productRepo.Update(ctx, product); err != nil {
		if patch.ImageURL != nil {
			s.discardImage(*patch.ImageURL, "Failed to remove image of failed update")
		}
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	if image != nil && oldImageURL != "" {
		s.discardImage(oldImageURL, "Failed to delete replaced product image")
	}

	return product, nil
}

// DeleteProduct removes the product, then its image
func (s *productService) DeleteProduct(ctx context.Context, id string) error {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("failed to load product: %w", err)
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if product.ImageURL != "" {
		s.discardImage(product.ImageURL, "Failed to delete product image")
	}
	return nil
}

// Categories returns the suggested categories followed by any other category in use
func (s *productService) Categories(ctx context.Context) ([]string, error) {
	inUse, err := s.categoryRepo.ListInUse(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	seen := make(map[string]bool, len(domain.SuggestedCategories))
	categories := make([]string, 0, len(domain.SuggestedCategories)+len(inUse))
	for _, c := range domain.SuggestedCategories {
		seen[c] = true
		categories = append(categories, c)
	}

	var extra []string
	for _, c := range inUse {
		if !seen[c] {
			seen[c] = true
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)

	return append(categories, extra...), nil
}

// discardImage deletes an image that is no longer referenced. Failures are
// logged and otherwise ignored; the product operation has already succeeded.
func (s *productService) discardImage(url, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.blobs.Delete(ctx, url); err != nil {
		s.logger.Warn(msg, zap.String("image_url", url), zap.Error(err))
	}
}

// Limits of the products table columns.
const (
	maxNameLen        = 200
	maxDescriptionLen = 5000
	maxCategoryLen    = 50
)

// MaxPrice is the first price NUMERIC(12,2) cannot hold.
var MaxPrice = decimal.New(1, 10)

func validateProductInput(in ProductInput) error {
	return validateProductPatch(&domain.ProductPatch{
		Name:        &in.Name,
		Description: &in.Description,
		Price:       &in.Price,
		Category:    &in.Category,
	})
}

func checkLength(field, v string, limit int) error {
	if utf8.RuneCountInString(v) > limit {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidProduct, field, limit)
	}
	return nil
}

func validateProductPatch(patch *domain.ProductPatch) error {
	trim := func(p *string) {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	trim(patch.Name)
	trim(patch.Description)
	trim(patch.Category)

	switch {
	case patch.Name != nil && *patch.Name == "":
		return fmt.Errorf("%w: product name is required", ErrInvalidProduct)
	case patch.Description != nil && *patch.Description == "":
		return fmt.Errorf("%w: product description is required", ErrInvalidProduct)
	case patch.Price != nil && !patch.Price.IsPositive():
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalidProduct)
	case patch.Price != nil && patch.Price.GreaterThanOrEqual(MaxPrice):
		return fmt.Errorf("%w: price must be less than %s", ErrInvalidProduct, MaxPrice)
	case patch.Category != nil && *patch.Category == "":
		return fmt.Errorf("%w: category is required", ErrInvalidProduct)
	}

	var errs []error
	if patch.Name != nil {
		errs = append(errs, checkLength("product name", *patch.Name, maxNameLen))
	}
	if patch.Description != nil {
		errs = append(errs, checkLength("product description", *patch.Description, maxDescriptionLen))
	}
	if patch.Category != nil {
		errs = append(errs, checkLength("category", *patch.Category, maxCategoryLen))
	}
	return errors.Join(errs...)
}
