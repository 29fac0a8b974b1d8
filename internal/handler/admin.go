package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/admin"
)

type adminCtxKey struct{}

func adminFrom(ctx context.Context) *admin.Admin {
	a, _ := ctx.Value(adminCtxKey{}).(*admin.Admin)
	return a
}

// requireAdmin rejects requests without a valid Bearer token for an active
// admin account.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeErr(w, r, admin.ErrUnauthorized)
			return
		}
		a, err := h.admins.Authorize(r.Context(), strings.TrimSpace(token))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), adminCtxKey{}, a)
		ctx = zctx.Base(ctx, zctx.From(ctx).With(zap.String("admin_id", a.ID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.admins.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Admin logged in", zap.String("admin_id", s.Admin.ID))
	writeJSON(w, http.StatusOK, struct {
		Message string    `json:"message"`
		Token   string    `json:"token"`
		Admin   adminJSON `json:"admin"`
	}{"Login successful", s.Token, newAdminJSON(s.Admin)})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newAdminJSON(adminFrom(r.Context())))
}
