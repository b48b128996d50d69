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
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service  Service
	validate *validator.Validate
	logger   *zap.Logger
}

// RegisterRoutes registers the public auth endpoints. These sit behind
// the identity-aware gateway, which verifies the email before forwarding.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}

	r.Post("/auth/register", apphttp.HandleError(h.register))
	r.Post("/auth/login", apphttp.HandleError(h.login))
}

type authRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// register handles HTTP requests
func (h *HTTP) register(w http.ResponseWriter, r *http.Request) error {
	var req authRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(&req); err != nil {
		return apperrors.BadRequestError(err, "a valid email is required")
	}

	resp, err := h.service.Register(r.Context(), req.Email)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusCreated, resp)
	return nil
}

func (h *HTTP) login(w http.ResponseWriter, r *http.Request) error {
	var req authRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(&req); err != nil {
		return apperrors.BadRequestError(err, "a valid email is required")
	}

	resp, err := h.service.Login(r.Context(), req.Email)
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
