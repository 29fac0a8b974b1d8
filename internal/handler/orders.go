package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/order"
)

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	placed, err := h.orders.PlaceOrder(r.Context(), order.PlaceRequest{
		ProductID:    req.ProductID,
		CustomerName: req.CustomerName,
		Address:      req.Address,
		Phone1:       req.Phone1,
		Phone2:       req.Phone2,
		Color:        req.SelectedColor,
		Size:         req.SelectedSize,
		Quantity:     req.Quantity,
		PromoCode:    req.PromoCode,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, placeOrderResponse{
		Message: "Order created successfully",
		Order:   h.orderJSON(placed.Order, nil),
		OrderSummary: orderSummaryJSON{
			Subtotal:         money(placed.Summary.Subtotal),
			Discount:         money(placed.Summary.Discount),
			Total:            money(placed.Summary.Total),
			PromoCodeApplied: placed.Summary.PromoApplied,
		},
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	d, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orderJSON(d.Order, d.Products))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	res, err := h.orders.List(r.Context(), order.Filter{
		Status: order.Status(queryFilter(r, "status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out := orderPageJSON{
		Orders:      make([]orderJSON, len(res.Orders)),
		TotalPages:  res.TotalPages,
		CurrentPage: res.CurrentPage,
		Total:       res.Total,
	}
	for i := range res.Orders {
		out.Orders[i] = h.orderJSON(&res.Orders[i], nil)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req orderStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), order.Status(req.Status))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string    `json:"message"`
		Order   orderJSON `json:"order"`
	}{"Order status updated successfully", h.orderJSON(o, nil)})
}
