package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/contact"
)

func (h *Handler) submitContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.contact.Submit(r.Context(), contact.SubmitInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Subject: req.Subject,
		Body:    req.Message,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message   string `json:"message"`
		MessageID string `json:"messageId"`
	}{"Message sent successfully! We will get back to you soon.", m.ID})
}

type messagePageJSON struct {
	Messages    []contactJSON `json:"messages"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Total       int           `json:"total"`
	UnreadCount int           `json:"unreadCount"`
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	read, err := queryBool(r, "isRead")
	if err != nil {
		writeErr(w, r, err)
		return
	}
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
	res, err := h.contact.List(r.Context(), contact.Filter{
		Read:    read,
		Subject: contact.Subject(queryFilter(r, "subject")),
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out := messagePageJSON{
		Messages:    make([]contactJSON, len(res.Messages)),
		TotalPages:  res.TotalPages,
		CurrentPage: res.CurrentPage,
		Total:       res.Total,
		UnreadCount: res.UnreadCount,
	}
	for i := range res.Messages {
		out.Messages[i] = newContactJSON(&res.Messages[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) markMessageRead(w http.ResponseWriter, r *http.Request) {
	m, err := h.contact.MarkRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message        string      `json:"message"`
		ContactMessage contactJSON `json:"contactMessage"`
	}{"Message marked as read", newContactJSON(m)})
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.contact.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Message deleted successfully"})
}
