package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/picturescaler/server/pkg/app/errors"
	apphttp "github.com/picturescaler/server/pkg/app/http"
	"github.com/picturescaler/server/pkg/billing"
	"github.com/picturescaler/server/pkg/identity"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service  Service
	validate *validator.Validate
	logger   *zap.Logger
}

// RegisterWebhookRoutes registers the gateway-facing endpoint. The payment
// gateway authenticates at the transport layer (mTLS / allowlist); the
// payload itself names the paying user.
func RegisterWebhookRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}

	r.Post("/payments/webhook", apphttp.HandleError(h.webhook))
}

// RegisterRoutes registers the user-facing billing endpoints on an
// authenticated router.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}

	// Checkout return is a browser redirect, so the gateway may arrive
	// with either a GET query string or a POSTed body.
	r.Get("/payments/success", apphttp.HandleError(h.paymentSuccess))
	r.Post("/payments/success", apphttp.HandleError(h.paymentSuccess))
}

// webhook handles HTTP requests
func (h *HTTP) webhook(w http.ResponseWriter, r *http.Request) error {
	var req billing.GrantRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid grant request")
	}

	resp, err := h.service.GrantTokens(r.Context(), &req)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

// paymentSuccess handles the return leg of a checkout: same credit path
// as the webhook, but the user comes from the session token.
func (h *HTTP) paymentSuccess(w http.ResponseWriter, r *http.Request) error {
	usr, ok := identity.UserFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "authentication required")
	}

	var req billing.GrantRequest
	if r.Method == http.MethodGet {
		if err := decodeQuery(r, &req); err != nil {
			return err
		}
	} else if err := h.decode(r, &req); err != nil {
		return err
	}
	req.UserID = usr.ID
	if err := h.validate.Struct(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid grant request")
	}

	resp, err := h.service.GrantTokens(r.Context(), &req)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func decodeQuery(r *http.Request, req *billing.GrantRequest) error {
	q := r.URL.Query()

	tokens, err := strconv.ParseInt(q.Get("tokens"), 10, 64)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid token count")
	}
	req.Tokens = tokens
	req.Provider = q.Get("provider")
	req.Currency = q.Get("currency")
	req.OrderID = q.Get("order_id")
	req.TxnID = q.Get("txn_id")

	if raw := q.Get("amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return apperrors.BadRequestError(err, "invalid amount")
		}
		req.Amount = amount
	}
	return nil
}

func (h *HTTP) decode(r *http.Request, req *billing.GrantRequest) error {
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
