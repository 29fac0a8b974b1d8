package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/promo"
)

func (h *Handler) validatePromo(w http.ResponseWriter, r *http.Request) {
	var req validatePromoRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.promos.Validate(r.Context(), req.Code, req.OrderTotal)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validatePromoResponse{
		Valid:          true,
		Code:           p.Code,
		Discount:       p.Percent,
		DiscountAmount: money(p.DiscountAmount),
		NewTotal:       money(p.NewTotal),
		Message:        p.Message,
	})
}

func (h *Handler) listPromos(w http.ResponseWriter, r *http.Request) {
	codes, err := h.promos.List(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out := make([]promoJSON, len(codes))
	for i := range codes {
		out[i] = newPromoJSON(&codes[i].Code)
		valid := codes[i].Valid
		out[i].IsValid = &valid
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createPromo(w http.ResponseWriter, r *http.Request) {
	var req createPromoRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.promos.Create(r.Context(), promo.CreateInput{
		Code:      req.Code,
		Percent:   req.Discount,
		ValidDays: req.ValidDays,
		MaxUses:   req.MaxUses,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, promoResponse{
		Message:   "Promo code created successfully",
		PromoCode: newPromoJSON(c),
	})
}

func (h *Handler) deletePromo(w http.ResponseWriter, r *http.Request) {
	if err := h.promos.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Promo code deleted successfully"})
}

func (h *Handler) togglePromo(w http.ResponseWriter, r *http.Request) {
	c, err := h.promos.Toggle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	msg := "Promo code deactivated"
	if c.Active {
		msg = "Promo code activated"
	}
	writeJSON(w, http.StatusOK, promoResponse{Message: msg, PromoCode: newPromoJSON(c)})
}
