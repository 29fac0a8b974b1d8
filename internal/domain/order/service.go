package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/fault"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promo"
)

var (
	// ErrSoldOut is returned when ordering a product flagged as sold out.
	ErrSoldOut = fault.New(fault.Conflict, "product is sold out")
	// ErrInvalidQuantity is returned for negative quantities.
	ErrInvalidQuantity = fault.New(fault.InvalidInput, "quantity must be at least 1")
	// ErrQuantityTooLarge is returned above MaxQuantity.
	ErrQuantityTooLarge = fault.New(fault.InvalidInput, "quantity must be at most 100")
	// ErrTotalTooLarge is returned when the subtotal does not fit the
	// stored NUMERIC(10,2) amounts.
	ErrTotalTooLarge = fault.New(fault.InvalidInput, "order total is too large")
	// ErrInvalidStatus is returned when setting an unknown status.
	ErrInvalidStatus = fault.New(fault.InvalidInput, "invalid order status")
)

// MaxQuantity is the largest quantity of one product per order.
const MaxQuantity = 100

// maxAmount is the largest amount an order can store.
var maxAmount = decimal.RequireFromString("99999999.99")

// PromoChecker looks up a code that can currently be redeemed.
type PromoChecker interface {
	Check(ctx context.Context, code string) (*promo.Code, error)
}

// PlaceRequest holds the checkout input for a single product.
type PlaceRequest struct {
	ProductID    string
	CustomerName string
	Address      string
	Phone1       string
	Phone2       string
	Color        string
	Size         string
	// Quantity defaults to 1 when zero.
	Quantity  int
	PromoCode string
}

// Summary is the price breakdown of a placed order.
type Summary struct {
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Total        decimal.Decimal
	PromoApplied bool
}

// Placed holds the output of a successfully placed order.
type Placed struct {
	Order   *Order
	Summary Summary
}

// ProductSummary is the display data of a product referenced by a line item.
type ProductSummary struct {
	ID     string
	Name   string
	Images []string
}

// Details is an order with the products its items still resolve to.
// Products has no entry for items whose product was deleted.
type Details struct {
	Order    *Order
	Products map[string]ProductSummary
}

// Config holds the order pipeline settings.
type Config struct {
	// StoreTimeout bounds every store call made while serving a request.
	StoreTimeout       time.Duration
	DefaultCity        string
	DefaultGovernorate string
}

// Option configures a Service.
type Option func(*Service)

// WithMeterProvider records order counters with mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// Service encapsulates order placement and order management logic.
type Service struct {
	products product.Reader
	promos   PromoChecker
	orders   Repository
	tx       TxManager
	cfg      Config
	now      func() time.Time

	meterProvider metric.MeterProvider
	placed        metric.Int64Counter
	redemptions   metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Reader,
	promos PromoChecker,
	orders Repository,
	tx TxManager,
	cfg Config,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		products:      products,
		promos:        promos,
		orders:        orders,
		tx:            tx,
		cfg:           cfg,
		now:           time.Now,
		meterProvider: noop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	meter := s.meterProvider.Meter("storefront/order")
	var err error
	if s.placed, err = meter.Int64Counter("storefront.orders.placed",
		metric.WithDescription("Orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	if s.redemptions, err = meter.Int64Counter("storefront.promo.redemptions",
		metric.WithDescription("Promo code uses consumed by orders"),
	); err != nil {
		return nil, errors.Wrap(err, "redemptions counter")
	}
	return s, nil
}

// PlaceOrder validates the request against the current catalog, prices it,
// consumes one use of the promo code if any, and persists the order. The
// redemption and the order insert commit together.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceRequest) (*Placed, error) {
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, ErrInvalidQuantity
	}
	if qty > MaxQuantity {
		return nil, ErrQuantityTooLarge
	}

	p, err := fault.Bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (*product.Product, error) {
		return s.products.GetByID(ctx, req.ProductID)
	})
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	// Sold-out takes precedence over variant errors.
	if p.SoldOut {
		return nil, ErrSoldOut
	}
	if err := required("selectedColor", req.Color, "selectedSize", req.Size); err != nil {
		return nil, err
	}
	if !p.HasColor(req.Color) {
		return nil, fault.Errorf(fault.InvalidInput, "color %s not available", req.Color)
	}
	if !p.HasSize(req.Size) {
		return nil, fault.Errorf(fault.InvalidInput, "size %s not available", req.Size)
	}

	if err := required("customerName", req.CustomerName, "address", req.Address, "phone1", req.Phone1); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o := &Order{
		ID:       uuid.New().String(),
		Customer: s.customer(req),
		Items: []Item{{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Color:     req.Color,
			Size:      req.Size,
			Quantity:  qty,
		}},
		Discount:  decimal.Zero,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	subtotal := o.Subtotal()
	if subtotal.GreaterThan(maxAmount) {
		return nil, ErrTotalTooLarge
	}

	var code *promo.Code
	if strings.TrimSpace(req.PromoCode) != "" {
		if code, err = s.promos.Check(ctx, req.PromoCode); err != nil {
			return nil, err
		}
	}

	_, err = fault.Bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.tx.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
			o.Discount = decimal.Zero
			o.PromoCode = nil
			if code != nil {
				redeemed, err := uow.Redeem(ctx, code.Code, now)
				if err != nil {
					return err
				}
				o.Discount = promo.Discount(subtotal, redeemed.Percent)
				o.PromoCode = &redeemed.Code
			}
			o.Total = subtotal.Sub(o.Discount)
			return uow.Create(ctx, o)
		})
	})
	if err != nil {
		if errors.Is(err, promo.ErrUsageLimit) {
			zctx.From(ctx).Warn("Promo redemption rejected at write time",
				zap.String("promo_code", code.Code),
			)
		}
		return nil, errors.Wrap(err, "persist order")
	}

	promoApplied := o.PromoCode != nil
	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("promo", promoApplied)))
	if promoApplied {
		s.redemptions.Add(ctx, 1, metric.WithAttributes(attribute.String("code", *o.PromoCode)))
	}
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("product_id", p.ID),
		zap.Int("quantity", qty),
		zap.Stringer("total", o.Total),
		zap.Bool("promo_applied", promoApplied),
	)

	return &Placed{
		Order: o,
		Summary: Summary{
			Subtotal:     subtotal,
			Discount:     o.Discount,
			Total:        o.Total,
			PromoApplied: promoApplied,
		},
	}, nil
}

// required takes name, value pairs and reports the first blank value.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fault.Errorf(fault.InvalidInput, "%s is required", pairs[i])
		}
	}
	return nil
}

func (s *Service) customer(req PlaceRequest) Customer {
	c := Customer{
		Name:        strings.TrimSpace(req.CustomerName),
		Email:       PlaceholderEmail(req.CustomerName),
		Phone:       req.Phone1,
		Address:     req.Address,
		City:        s.cfg.DefaultCity,
		Governorate: s.cfg.DefaultGovernorate,
	}
	if req.Phone2 != "" {
		phone2 := req.Phone2
		c.Phone2 = &phone2
	}
	return c
}

// GetOrder returns an order along with the current name and images of every
// product its items reference that still exists.
func (s *Service) GetOrder(ctx context.Context, id string) (*Details, error) {
	o, err := fault.Bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (*Order, error) {
		return s.orders.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := fault.Bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) ([]product.Product, error) {
		return s.products.GetByIDs(ctx, ids)
	})
	if err != nil {
		return nil, errors.Wrap(err, "get order products")
	}

	d := &Details{Order: o, Products: make(map[string]ProductSummary, len(products))}
	for _, p := range products {
		d.Products[p.ID] = ProductSummary{ID: p.ID, Name: p.Name, Images: p.Images}
	}
	return d, nil
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// List returns a page of orders, newest first.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultPageLimit
	case f.Limit > maxPageLimit:
		f.Limit = maxPageLimit
	}

	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return &Page{
		Orders:      orders,
		Total:       total,
		TotalPages:  (total + f.Limit - 1) / f.Limit,
		CurrentPage: f.Page,
	}, nil
}

// UpdateStatus sets the fulfilment status of order id.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	o, err := s.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Order status updated",
		zap.String("order_id", id),
		zap.String("status", string(status)),
	)
	return o, nil
}
