package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/contact"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promo"
)

// money renders a decimal as a JSON number with two fractional digits.
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

type productJSON struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       money     `json:"price"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Colors      []string  `json:"colors"`
	Sizes       []string  `json:"sizes"`
	Images      []string  `json:"images"`
	SoldOut     bool      `json:"soldOut"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (h *Handler) productJSON(p *product.Product) productJSON {
	return productJSON{
		ID:          p.ID,
		Name:        p.Name,
		Price:       money(p.Price),
		Description: p.Description,
		Category:    string(p.Category),
		Colors:      nonNil(p.Colors),
		Sizes:       nonNil(p.Sizes),
		Images:      h.imageURLs(p.Images),
		SoldOut:     p.SoldOut,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// imageURLs prefixes relative paths with the configured base URL.
func (h *Handler) imageURLs(images []string) []string {
	out := make([]string, len(images))
	for i, img := range images {
		if h.imageBaseURL != "" && !strings.Contains(img, "://") {
			img = h.imageBaseURL + "/" + strings.TrimLeft(img, "/")
		}
		out[i] = img
	}
	return out
}

type productRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description" validate:"required"`
	Category    string          `json:"category" validate:"required"`
	Colors      []string        `json:"colors" validate:"required,min=1,dive,required"`
	Sizes       []string        `json:"sizes" validate:"required,min=1,dive,required"`
	Images      []string        `json:"images" validate:"dive,required"`
	SoldOut     bool            `json:"soldOut"`
}

func (req productRequest) input() product.Input {
	return product.Input{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Category:    req.Category,
		Colors:      req.Colors,
		Sizes:       req.Sizes,
		Images:      req.Images,
		SoldOut:     req.SoldOut,
	}
}

// placeOrderRequest only checks shape here. Blank customer and variant
// fields are reported by the order service after the product checks.
type placeOrderRequest struct {
	ProductID     string `json:"productId" validate:"required"`
	CustomerName  string `json:"customerName" validate:"max=100"`
	Address       string `json:"address" validate:"max=500"`
	Phone1        string `json:"phone1" validate:"max=30"`
	Phone2        string `json:"phone2" validate:"max=30"`
	SelectedColor string `json:"selectedColor" validate:"max=50"`
	SelectedSize  string `json:"selectedSize" validate:"max=50"`
	Quantity      int    `json:"quantity" validate:"lte=100"`
	PromoCode     string `json:"promoCode"`
}

type orderItemJSON struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     money           `json:"price"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	Product   *productRefJSON `json:"product,omitempty"`
}

type productRefJSON struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Images []string `json:"images"`
}

type orderJSON struct {
	ID           string          `json:"id"`
	CustomerInfo order.Customer  `json:"customerInfo"`
	Items        []orderItemJSON `json:"items"`
	Total        money           `json:"total"`
	PromoCode    *string         `json:"promoCode"`
	Discount     money           `json:"discount"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// orderJSON renders o. Items whose product is in refs carry its current name
// and images.
func (h *Handler) orderJSON(o *order.Order, refs map[string]order.ProductSummary) orderJSON {
	items := make([]orderItemJSON, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemJSON{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     money(it.Price),
			Color:     it.Color,
			Size:      it.Size,
			Quantity:  it.Quantity,
		}
		if ref, ok := refs[it.ProductID]; ok {
			items[i].Product = &productRefJSON{ID: ref.ID, Name: ref.Name, Images: h.imageURLs(ref.Images)}
		}
	}
	return orderJSON{
		ID:           o.ID,
		CustomerInfo: o.Customer,
		Items:        items,
		Total:        money(o.Total),
		PromoCode:    o.PromoCode,
		Discount:     money(o.Discount),
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

type orderSummaryJSON struct {
	Subtotal         money `json:"subtotal"`
	Discount         money `json:"discount"`
	Total            money `json:"total"`
	PromoCodeApplied bool  `json:"promoCodeApplied"`
}

type placeOrderResponse struct {
	Message      string           `json:"message"`
	Order        orderJSON        `json:"order"`
	OrderSummary orderSummaryJSON `json:"orderSummary"`
}

type orderPageJSON struct {
	Orders      []orderJSON `json:"orders"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	Total       int         `json:"total"`
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type promoJSON struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Discount  int       `json:"discount"`
	ExpiresAt time.Time `json:"expiresAt"`
	MaxUses   *int      `json:"maxUses"`
	UsedCount int       `json:"usedCount"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	IsValid   *bool     `json:"isValid,omitempty"`
}

func newPromoJSON(c *promo.Code) promoJSON {
	return promoJSON{
		ID:        c.ID,
		Code:      c.Code,
		Discount:  c.Percent,
		ExpiresAt: c.ExpiresAt,
		MaxUses:   c.MaxUses,
		UsedCount: c.UsedCount,
		IsActive:  c.Active,
		CreatedAt: c.CreatedAt,
	}
}

type validatePromoRequest struct {
	Code       string          `json:"code" validate:"required"`
	OrderTotal decimal.Decimal `json:"orderTotal"`
}

type validatePromoResponse struct {
	Valid          bool   `json:"valid"`
	Code           string `json:"code"`
	Discount       int    `json:"discount"`
	DiscountAmount money  `json:"discountAmount"`
	NewTotal       money  `json:"newTotal"`
	Message        string `json:"message"`
}

type createPromoRequest struct {
	Code      string `json:"code" validate:"required,max=50"`
	Discount  int    `json:"discount" validate:"required"`
	ValidDays int    `json:"validDays" validate:"required"`
	MaxUses   *int   `json:"maxUses"`
}

type promoResponse struct {
	Message   string    `json:"message"`
	PromoCode promoJSON `json:"promoCode"`
}

type contactRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"max=30"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required,max=5000"`
}

type contactJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func newContactJSON(m *contact.Message) contactJSON {
	return contactJSON{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Subject:   string(m.Subject),
		Message:   m.Body,
		IsRead:    m.Read,
		CreatedAt: m.CreatedAt,
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type adminJSON struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

func newAdminJSON(a *admin.Admin) adminJSON {
	return adminJSON{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Role:      string(a.Role),
		LastLogin: a.LastLogin,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
