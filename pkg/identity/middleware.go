package identity

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/picturescaler/server/pkg/app/errors"
	apphttp "github.com/picturescaler/server/pkg/app/http"
)

// UserResolver loads the account behind a validated token.
type UserResolver interface {
	GetUserByID(ctx context.Context, id int64) (*User, error)
}

// Authenticator returns middleware that resolves the bearer token to a
// user and stores it on the request context. Banned accounts may still
// read their own state but every mutating method is rejected.
func Authenticator(validator *JWTValidator, users UserResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "missing bearer token"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid token"))
				return
			}

			userID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid token subject"))
				return
			}

			usr, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				logger.Warn("token resolved to unknown user",
					zap.Int64("user_id", userID),
					zap.Error(err))
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "unknown account"))
				return
			}

			if usr.IsBanned && mutating(r.Method) {
				apphttp.DefaultErrorHandler(w, apperrors.ForbiddenError(nil, "account suspended"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), usr)))
		})
	}
}

// RequireAdmin returns middleware that restricts the subtree to admin
// accounts. It must run after Authenticator.
func RequireAdmin(adminEmails []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			usr, ok := UserFromContext(r.Context())
			if !ok {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "authentication required"))
				return
			}
			if !usr.IsAdminFor(adminEmails) {
				apphttp.DefaultErrorHandler(w, apperrors.ForbiddenError(nil, "admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}
