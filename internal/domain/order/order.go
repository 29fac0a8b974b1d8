package order

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/fault"
	"github.com/xenking/storefront/internal/domain/promo"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = fault.New(fault.NotFound, "order not found")

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Customer holds the delivery details captured at checkout.
type Customer struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Phone2      *string `json:"phone2"`
	Address     string  `json:"address"`
	City        string  `json:"city"`
	Governorate string  `json:"governorate"`
}

// Item is a line item snapshot. It is copied from the product at order time
// and never follows later product edits.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
}

// LineTotal returns price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a placed customer order.
type Order struct {
	ID       string
	Customer Customer
	Items    []Item
	// Total is the amount due after Discount.
	Total     decimal.Decimal
	PromoCode *string
	Discount  decimal.Decimal
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subtotal returns the sum of all line totals.
func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// PlaceholderEmail derives the address stored for customers who did not
// supply one: the name lower-cased with all whitespace removed, at
// customer.com.
func PlaceholderEmail(name string) string {
	local := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
	return strings.ToLower(local) + "@customer.com"
}

// Filter narrows the admin order listing.
type Filter struct {
	Status Status
	Page   int
	Limit  int
}

// Page is one page of an order listing.
type Page struct {
	Orders      []Order
	Total       int
	TotalPages  int
	CurrentPage int
}

// Repository defines persistence operations for orders outside of checkout.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	// List returns orders matching f, newest first, and the total match count.
	List(ctx context.Context, f Filter) ([]Order, int, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)
}

// EventPlaced is the type of the event recorded when an order is created.
const EventPlaced = "order.placed"

// PlacedEvent is the payload of EventPlaced.
type PlacedEvent struct {
	OrderID   string          `json:"orderId"`
	Items     []Item          `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	PromoCode *string         `json:"promoCode,omitempty"`
	City      string          `json:"city"`
	PlacedAt  time.Time       `json:"placedAt"`
}

// NewPlacedEvent builds the EventPlaced payload for o.
func NewPlacedEvent(o *Order) PlacedEvent {
	return PlacedEvent{
		OrderID:   o.ID,
		Items:     o.Items,
		Subtotal:  o.Subtotal(),
		Discount:  o.Discount,
		Total:     o.Total,
		PromoCode: o.PromoCode,
		City:      o.Customer.City,
		PlacedAt:  o.CreatedAt,
	}
}

// UnitOfWork is the set of writes that commit together when an order is
// placed. Implementations also record an EventPlaced event for o.
type UnitOfWork interface {
	promo.Redeemer
	Create(ctx context.Context, o *Order) error
}

// TxManager runs fn atomically: either every write made through the unit of
// work commits, or none does.
type TxManager interface {
	Execute(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}
