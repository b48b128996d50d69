package service

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/picturescaler/server/pkg/app/errors"
	apphttp "github.com/picturescaler/server/pkg/app/http"
	"github.com/picturescaler/server/pkg/identity"
	"github.com/picturescaler/server/pkg/userstore"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the user-facing profile endpoint on an
// authenticated router.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Get("/me", apphttp.HandleError(h.me))
}

// RegisterAdminRoutes registers the admin dashboard and moderation
// endpoints on an admin-guarded router.
func RegisterAdminRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Get("/admin/users", apphttp.HandleError(h.listUsers))
	r.Get("/admin/users/{id}", apphttp.HandleError(h.userDetail))
	r.Post("/admin/users/{id}/ban", apphttp.HandleError(h.setFlag("ban")))
	r.Post("/admin/users/{id}/unban", apphttp.HandleError(h.setFlag("unban")))
	r.Post("/admin/users/{id}/trust", apphttp.HandleError(h.setFlag("trust")))
	r.Post("/admin/users/{id}/untrust", apphttp.HandleError(h.setFlag("untrust")))
	r.Get("/admin/metrics", apphttp.HandleError(h.metrics))
}

// me handles HTTP requests
func (h *HTTP) me(w http.ResponseWriter, r *http.Request) error {
	usr, ok := identity.UserFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	resp, err := h.service.Me(r.Context(), usr.ID)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) listUsers(w http.ResponseWriter, r *http.Request) error {
	q := userstore.ListQuery{
		Filter: r.URL.Query().Get("filter"),
		Search: r.URL.Query().Get("search"),
		Sort:   r.URL.Query().Get("sort"),
	}

	resp, err := h.service.ListUsers(r.Context(), q)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) userDetail(w http.ResponseWriter, r *http.Request) error {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid user id")
	}

	resp, err := h.service.UserDetail(r.Context(), id)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) metrics(w http.ResponseWriter, r *http.Request) error {
	resp, err := h.service.Metrics(r.Context(), r.URL.Query().Get("range"))
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

// setFlag builds the handler for one moderation action.
func (h *HTTP) setFlag(action string) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			return apperrors.BadRequestError(err, "invalid user id")
		}

		switch action {
		case "ban":
			err = h.service.SetBanned(r.Context(), id, true)
		case "unban":
			err = h.service.SetBanned(r.Context(), id, false)
		case "trust":
			err = h.service.SetTrusted(r.Context(), id, true)
		case "untrust":
			err = h.service.SetTrusted(r.Context(), id, false)
		}
		if err != nil {
			return err
		}

		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return nil
	}
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
