package promo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/fault"
)

// Preview is the outcome of validating a code against an order total.
type Preview struct {
	Code           string
	Percent        int
	DiscountAmount decimal.Decimal
	NewTotal       decimal.Decimal
	Message        string
}

// CreateInput holds the admin-supplied fields for a new code.
type CreateInput struct {
	Code      string
	Percent   int
	ValidDays int
	MaxUses   *int
}

// Listed pairs a code with its validity at listing time.
type Listed struct {
	Code
	Valid bool
}

// Service implements promo validation and admin management.
type Service struct {
	repo    Repository
	timeout time.Duration
	now     func() time.Time
}

// NewService creates a promo Service. Store calls made on behalf of
// customers are bounded by timeout.
func NewService(repo Repository, timeout time.Duration) *Service {
	return &Service{repo: repo, timeout: timeout, now: time.Now}
}

// Check returns the code if it can currently be redeemed. It never mutates
// the used count.
func (s *Service) Check(ctx context.Context, code string) (*Code, error) {
	canonical := Canonical(code)
	if canonical == "" {
		return nil, ErrInvalid
	}
	now := s.now()
	c, err := fault.Bounded(ctx, s.timeout, func(ctx context.Context) (*Code, error) {
		return s.repo.FindActive(ctx, canonical, now)
	})
	if err != nil {
		return nil, err
	}
	if !c.Active || c.Expired(now) {
		return nil, ErrInvalid
	}
	if c.Exhausted() {
		return nil, ErrUsageLimit
	}
	return c, nil
}

// Validate previews the discount code would give on orderTotal.
func (s *Service) Validate(ctx context.Context, code string, orderTotal decimal.Decimal) (*Preview, error) {
	if orderTotal.IsNegative() {
		return nil, fault.New(fault.InvalidInput, "order total must not be negative")
	}
	c, err := s.Check(ctx, code)
	if err != nil {
		return nil, err
	}
	amount := Discount(orderTotal, c.Percent)
	return &Preview{
		Code:           c.Code,
		Percent:        c.Percent,
		DiscountAmount: amount,
		NewTotal:       orderTotal.Sub(amount),
		Message:        fmt.Sprintf("%d%% discount applied!", c.Percent),
	}, nil
}

// List returns every code with its current validity, newest first.
func (s *Service) List(ctx context.Context) ([]Listed, error) {
	codes, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list promo codes")
	}
	now := s.now()
	out := make([]Listed, len(codes))
	for i, c := range codes {
		out[i] = Listed{Code: c, Valid: c.Valid(now)}
	}
	return out, nil
}

// Create registers a new code expiring ValidDays from now.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Code, error) {
	code := Canonical(in.Code)
	switch {
	case code == "":
		return nil, fault.New(fault.InvalidInput, "code is required")
	case in.Percent < 1 || in.Percent > 100:
		return nil, fault.New(fault.InvalidInput, "discount must be between 1 and 100")
	case in.ValidDays < 1:
		return nil, fault.New(fault.InvalidInput, "validDays must be at least 1")
	case in.MaxUses != nil && *in.MaxUses < 1:
		return nil, fault.New(fault.InvalidInput, "maxUses must be at least 1")
	}

	now := s.now().UTC()
	c := &Code{
		ID:        uuid.New().String(),
		Code:      code,
		Percent:   in.Percent,
		ExpiresAt: now.AddDate(0, 0, in.ValidDays),
		MaxUses:   in.MaxUses,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a code. Orders that used it keep the code string.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Toggle flips the active flag of code id.
func (s *Service) Toggle(ctx context.Context, id string) (*Code, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.repo.SetActive(ctx, id, !c.Active)
}
