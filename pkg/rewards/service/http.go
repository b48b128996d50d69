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
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the reward endpoints on an authenticated router.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post("/rewards/daily", apphttp.HandleError(h.claimDaily))
	r.Get("/rewards/daily/status", apphttp.HandleError(h.dailyStatus))
	r.Get("/rewards/tiers", apphttp.HandleError(h.tierOverview))
	r.Post("/rewards/tiers/{tier}", apphttp.HandleError(h.claimTier))
}

// claimDaily handles HTTP requests
func (h *HTTP) claimDaily(w http.ResponseWriter, r *http.Request) error {
	usr, ok := identity.UserFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	resp, err := h.service.ClaimDaily(r.Context(), usr.ID)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) dailyStatus(w http.ResponseWriter, r *http.Request) error {
	usr, ok := identity.UserFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	resp, err := h.service.DailyStatus(r.Context(), usr.ID)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) tierOverview(w http.ResponseWriter, r *http.Request) error {
	usr, ok := identity.UserFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	resp, err := h.service.TierOverview(r.Context(), usr.ID)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) claimTier(w http.ResponseWriter, r *http.Request) error {
	usr, ok := identity.UserFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	tier, err := strconv.ParseInt(chi.URLParam(r, "tier"), 10, 64)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid tier")
	}

	resp, err := h.service.ClaimTier(r.Context(), usr.ID, tier)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
