package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/fault"
)

// Input carries the admin-editable fields of a product.
type Input struct {
	Name        string
	Price       decimal.Decimal
	Description string
	Category    string
	Colors      []string
	Sizes       []string
	Images      []string
	SoldOut     bool
}

func (in Input) validate(requireImages bool) (Category, error) {
	if strings.TrimSpace(in.Name) == "" {
		return "", fault.New(fault.InvalidInput, "name is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return "", fault.New(fault.InvalidInput, "description is required")
	}
	if in.Price.IsNegative() {
		return "", fault.New(fault.InvalidInput, "price must not be negative")
	}
	cat, ok := ParseCategory(in.Category)
	if !ok {
		return "", fault.Errorf(fault.InvalidInput, "unknown category %q", in.Category)
	}
	if len(in.Colors) == 0 {
		return "", fault.New(fault.InvalidInput, "at least one color is required")
	}
	if len(in.Sizes) == 0 {
		return "", fault.New(fault.InvalidInput, "at least one size is required")
	}
	if requireImages && len(in.Images) == 0 {
		return "", fault.New(fault.InvalidInput, "at least one image is required")
	}
	return cat, nil
}

// Service implements catalog browsing and admin product management.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a catalog Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns products matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Product, error) {
	products, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates in and adds a new product to the catalog.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	cat, err := in.validate(true)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &Product{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price.Round(2),
		Description: strings.TrimSpace(in.Description),
		Category:    cat,
		Colors:      in.Colors,
		Sizes:       in.Sizes,
		Images:      in.Images,
		SoldOut:     in.SoldOut,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Update replaces the editable fields of product id. Images are kept when in
// carries none.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Product, error) {
	cat, err := in.validate(false)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(in.Name)
	p.Price = in.Price.Round(2)
	p.Description = strings.TrimSpace(in.Description)
	p.Category = cat
	p.Colors = in.Colors
	p.Sizes = in.Sizes
	p.SoldOut = in.SoldOut
	if len(in.Images) > 0 {
		p.Images = in.Images
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return p, nil
}

// Delete removes a product. Existing orders keep their snapshots.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// ToggleSoldOut flips the sold-out flag of product id.
func (s *Service) ToggleSoldOut(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.repo.SetSoldOut(ctx, id, !p.SoldOut)
}
