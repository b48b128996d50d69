// Package http provides HTTP utilities including chi-compatible error handling
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/picturescaler/server/internal/metrics"
	apperrors "github.com/picturescaler/server/pkg/app/errors"
)

// HandlerFunc defines a function that returns an error for clean error handling
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// HandleError wraps an error-returning HandlerFunc into a standard http.HandlerFunc
// This allows using clean error-returning handlers with any router (chi, http.ServeMux, etc.)
//
// Usage with chi:
//
//	r.Post("/coupons/redeem", http.HandleError(handler.redeem))
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			DefaultErrorHandler(w, err)
		}
	}
}

// DefaultErrorHandler handles errors returned from HTTP handlers
func DefaultErrorHandler(w http.ResponseWriter, err error) {
	var svcErr *apperrors.ServiceError

	type errorResponse struct {
		ErrMsg     string         `json:"error"`
		ErrMsgCode int            `json:"code"`
		Details    map[string]any `json:"details,omitempty"`
	}

	// Check if it's a ServiceError
	if errors.As(err, &svcErr) {
		// Insufficient-balance responses also expose the shortfall as
		// headers so non-JSON clients (upload forms) can read it.
		if svcErr.Category == apperrors.CategoryPaymentRequired {
			writeTokenHeaders(w, svcErr.Details)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(svcErr.StatusCode())
		_ = json.NewEncoder(w).Encode(&errorResponse{
			ErrMsg:     svcErr.Message,
			ErrMsgCode: svcErr.StatusCode(),
			Details:    svcErr.Details,
		})
		return
	}

	// Handle unknown errors
	metrics.ErrorsTotal.WithLabelValues("http", "unexpected").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(&errorResponse{
		ErrMsg:     "Unexpected Service Error",
		ErrMsgCode: http.StatusInternalServerError,
	})
}

func writeTokenHeaders(w http.ResponseWriter, details map[string]any) {
	if details == nil {
		return
	}
	if v, ok := details["required"]; ok {
		w.Header().Set("X-Required-Tokens", itoaAny(v))
	}
	if v, ok := details["available"]; ok {
		w.Header().Set("X-Tokens-Remaining", itoaAny(v))
	}
}

func itoaAny(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
