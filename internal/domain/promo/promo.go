package promo

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/fault"
)

var (
	// ErrInvalid is returned for unknown codes. Inactive and expired codes
	// are reported the same way.
	ErrInvalid = fault.New(fault.InvalidInput, "invalid or expired promo code")
	// ErrUsageLimit is returned when a code has exhausted its usage cap.
	ErrUsageLimit = fault.New(fault.Conflict, "promo code usage limit exceeded")
	// ErrNotFound is returned by admin operations addressing an unknown id.
	ErrNotFound = fault.New(fault.NotFound, "promo code not found")
	// ErrDuplicate is returned when creating a code that already exists.
	ErrDuplicate = fault.New(fault.Conflict, "promo code already exists")
)

// Code is a percentage discount that customers can apply at checkout.
type Code struct {
	ID      string
	Code    string
	Percent int
	// ExpiresAt is exclusive: the code is unusable from this instant on.
	ExpiresAt time.Time
	// MaxUses is nil for codes without a cap.
	MaxUses   *int
	UsedCount int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Canonical returns the stored form of a user-supplied code.
func Canonical(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Expired reports whether the code is past its expiry at now.
func (c *Code) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Exhausted reports whether a capped code has no uses left.
func (c *Code) Exhausted() bool {
	return c.MaxUses != nil && c.UsedCount >= *c.MaxUses
}

// Valid reports whether the code can be redeemed at now.
func (c *Code) Valid(now time.Time) bool {
	return c.Active && !c.Expired(now) && !c.Exhausted()
}

// Discount returns percent of amount, rounded half-to-even to cents.
func Discount(amount decimal.Decimal, percent int) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(percent))).Shift(-2).RoundBank(2)
}

// Repository provides lookup and admin mutation of promo codes.
type Repository interface {
	// FindActive returns the active code whose expiry is after now, or
	// ErrInvalid.
	FindActive(ctx context.Context, code string, now time.Time) (*Code, error)
	GetByID(ctx context.Context, id string) (*Code, error)
	// List returns all codes, newest first.
	List(ctx context.Context) ([]Code, error)
	Create(ctx context.Context, c *Code) error
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) (*Code, error)
}

// Redeemer consumes one use of a code. Implementations must apply the
// increment only if the code is still active, unexpired and below its cap at
// write time, returning ErrInvalid or ErrUsageLimit otherwise.
type Redeemer interface {
	Redeem(ctx context.Context, code string, now time.Time) (*Code, error)
}
