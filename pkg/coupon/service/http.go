package service

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/picturescaler/server/pkg/app/errors"
	apphttp "github.com/picturescaler/server/pkg/app/http"
	"github.com/picturescaler/server/pkg/identity"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service  Service
	validate *validator.Validate
	logger   *zap.Logger
}

// RegisterRoutes registers the user-facing redemption endpoint on an
// authenticated router.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}

	r.Post("/coupons/redeem", apphttp.HandleError(h.redeem))
}

// RegisterAdminRoutes registers the coupon management endpoints on an
// admin-guarded router.
func RegisterAdminRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}

	r.Get("/admin/coupons", apphttp.HandleError(h.list))
	r.Post("/admin/coupons", apphttp.HandleError(h.create))
}

type redeemRequest struct {
	Code string `json:"code" validate:"required"`
}

// redeem handles HTTP requests
func (h *HTTP) redeem(w http.ResponseWriter, r *http.Request) error {
	usr, ok := identity.UserFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	var req redeemRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(&req); err != nil {
		return apperrors.BadRequestError(err, "coupon code is required")
	}

	resp, err := h.service.Redeem(r.Context(), usr.ID, req.Code)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) create(w http.ResponseWriter, r *http.Request) error {
	usr, ok := identity.UserFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	var req CreateRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid coupon request")
	}

	resp, err := h.service.Create(r.Context(), usr.ID, &req)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusCreated, resp)
	return nil
}

func (h *HTTP) list(w http.ResponseWriter, r *http.Request) error {
	resp, err := h.service.List(r.Context())
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) decode(r *http.Request, req any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
