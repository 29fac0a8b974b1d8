package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/fault"
	"github.com/xenking/storefront/internal/domain/product"
)

type productResponse struct {
	Message string      `json:"message"`
	Product productJSON `json:"product"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	var f product.Filter
	if raw := queryFilter(r, "category"); raw != "" {
		c, ok := product.ParseCategory(raw)
		if !ok {
			writeErr(w, r, fault.Errorf(fault.InvalidInput, "unknown category %q", raw))
			return
		}
		f.Category = c
	}
	f.Search = r.URL.Query().Get("search")
	soldOut, err := queryBool(r, "soldOut")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	f.SoldOut = soldOut

	products, err := h.products.List(r.Context(), f)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out := make([]productJSON, len(products))
	for i := range products {
		out[i] = h.productJSON(&products[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.productJSON(p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.products.Create(r.Context(), req.input())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, productResponse{
		Message: "Product created successfully",
		Product: h.productJSON(p),
	})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productResponse{
		Message: "Product updated successfully",
		Product: h.productJSON(p),
	})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Product deleted successfully"})
}

func (h *Handler) toggleSoldOut(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.ToggleSoldOut(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	msg := "Product marked as available"
	if p.SoldOut {
		msg = "Product marked as sold out"
	}
	writeJSON(w, http.StatusOK, productResponse{Message: msg, Product: h.productJSON(p)})
}
