package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SuggestedCategories is the category set offered by the admin form.
// Storage accepts any non-empty label.
var SuggestedCategories = []string{
	"jewelry",
	"pottery",
	"textiles",
	"woodwork",
	"glasswork",
	"leatherwork",
	"papercraft",
}

// Product represents a product in the catalog
type Product struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	ImageURL    string          `json:"imageUrl" db:"image_url"`
	Category    string          `json:"category" db:"category"`
	Featured    bool            `json:"featured" db:"featured"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

// ProductPatch carries the fields of a partial product update. Nil fields are left unchanged.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	Featured    *bool
	ImageURL    *string
}

// Apply copies the set fields of the patch onto p.
func (patch ProductPatch) Apply(p *Product) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Featured != nil {
		p.Featured = *patch.Featured
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}
}
