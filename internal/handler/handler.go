// Package handler exposes the storefront over HTTP.
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/contact"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promo"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
	// Guard wraps the endpoints that answer guesses: admin login and promo
	// validation. Optional.
	Guard httpmiddleware.Middleware
}

// Services are the domain services the handlers delegate to.
type Services struct {
	Products *product.Service
	Promos   *promo.Service
	Orders   *order.Service
	Contact  *contact.Service
	Admins   *admin.Service
}

// Handler serves the storefront API.
type Handler struct {
	products *product.Service
	promos   *promo.Service
	orders   *order.Service
	contact  *contact.Service
	admins   *admin.Service

	validate     *validator.Validate
	imageBaseURL string
	maxBody      int64
	guard        httpmiddleware.Middleware
}

// NewHandler constructs a Handler with the required domain services.
func NewHandler(cfg Config, svc Services) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.Guard == nil {
		cfg.Guard = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		products:     svc.Products,
		promos:       svc.Promos,
		orders:       svc.Orders,
		contact:      svc.Contact,
		admins:       svc.Admins,
		validate:     newValidator(),
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		maxBody:      cfg.MaxBodyBytes,
		guard:        cfg.Guard,
	}
}

// Routes mounts the API under /api on r.
func (h *Handler) Routes(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Post("/orders", h.placeOrder)
		r.Get("/orders/{id}", h.getOrder)
		r.With(h.guard).Post("/promocodes/validate", h.validatePromo)
		r.Post("/contact", h.submitContact)
		r.With(h.guard).Post("/admin/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)

			r.Get("/admin/me", h.me)
			r.Post("/admin/products", h.createProduct)
			r.Put("/admin/products/{id}", h.updateProduct)
			r.Delete("/admin/products/{id}", h.deleteProduct)
			r.Patch("/admin/products/{id}/toggle-sold-out", h.toggleSoldOut)
			r.Get("/admin/orders", h.listOrders)
			r.Patch("/admin/orders/{id}/status", h.updateOrderStatus)

			r.Get("/promocodes", h.listPromos)
			r.Post("/promocodes", h.createPromo)
			r.Delete("/promocodes/{id}", h.deletePromo)
			r.Patch("/promocodes/{id}/toggle", h.togglePromo)

			r.Get("/contact", h.listMessages)
			r.Patch("/contact/{id}/read", h.markMessageRead)
			r.Delete("/contact/{id}", h.deleteMessage)
		})
	})
}
