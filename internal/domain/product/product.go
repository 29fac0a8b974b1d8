package product

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/fault"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = fault.New(fault.NotFound, "product not found")

// Category groups products in the catalog.
type Category string

const (
	CategoryHoodies     Category = "HOODIES"
	CategoryTShirts     Category = "T-SHIRTS"
	CategoryPants       Category = "PANTS"
	CategoryAccessories Category = "ACCESSORIES"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryHoodies, CategoryTShirts, CategoryPants, CategoryAccessories}

// ParseCategory canonicalizes s and reports whether it names a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	return c, slices.Contains(Categories, c)
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    Category        `json:"category"`
	Colors      []string        `json:"colors"`
	Sizes       []string        `json:"sizes"`
	Images      []string        `json:"images"`
	SoldOut     bool            `json:"soldOut"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// HasColor reports whether color is one of the product's color variants.
func (p *Product) HasColor(color string) bool {
	return slices.Contains(p.Colors, color)
}

// HasSize reports whether size is one of the product's size variants.
func (p *Product) HasSize(size string) bool {
	return slices.Contains(p.Sizes, size)
}

// Filter narrows a catalog listing. Zero values disable the corresponding
// criterion.
type Filter struct {
	Category Category
	// Search is matched case-insensitively against name and description.
	Search  string
	SoldOut *bool
}

// Match reports whether p satisfies every criterion of f.
func (f Filter) Match(p *Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.SoldOut != nil && p.SoldOut != *f.SoldOut {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	return true
}

// Reader is the read side of the catalog consumed by the order pipeline.
type Reader interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// Repository defines persistence operations for the product catalog.
// List returns newest products first.
type Repository interface {
	Reader
	List(ctx context.Context, f Filter) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	SetSoldOut(ctx context.Context, id string, soldOut bool) (*Product, error)
}
