package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/picturescaler/server/pkg/coupon"
	"github.com/picturescaler/server/pkg/identity"
)

// newCouponTestServer mounts the redemption routes behind a middleware
// that injects the given user, standing in for the real authenticator.
func newCouponTestServer(svc Service, usr *identity.User) http.Handler {
	r := chi.NewRouter()
	if usr != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(identity.WithUser(req.Context(), usr)))
			})
		})
	}
	RegisterRoutes(r, svc, zap.NewNop())
	RegisterAdminRoutes(r, svc, zap.NewNop())
	return r
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    int            `json:"code"`
	Details map[string]any `json:"details"`
}

func TestRedeemHTTP_Success(t *testing.T) {
	users := &mockUserStore{user: &identity.User{ID: 7, Tokens: 3}}
	svc := NewService(&mockDB{}, users, &mockCouponStore{coupon: tokenCoupon()}, &mockEventStore{}, zap.NewNop())
	handler := newCouponTestServer(svc, users.user)

	req := httptest.NewRequest(http.MethodPost, "/coupons/redeem", bytes.NewBufferString(`{"code":"welcome 50"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got coupon.RedeemResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "WELCOME50", got.Code)
	require.Equal(t, int64(50), got.TokensAdded)
	require.Equal(t, int64(53), got.Balance)
}

func TestRedeemHTTP_InvalidJSON(t *testing.T) {
	svc := NewService(&mockDB{}, &mockUserStore{}, &mockCouponStore{}, &mockEventStore{}, zap.NewNop())
	handler := newCouponTestServer(svc, &identity.User{ID: 7})

	req := httptest.NewRequest(http.MethodPost, "/coupons/redeem", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var got errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "invalid JSON", got.Error)
	require.Equal(t, http.StatusBadRequest, got.Code)
}

func TestRedeemHTTP_MissingCode(t *testing.T) {
	svc := NewService(&mockDB{}, &mockUserStore{}, &mockCouponStore{}, &mockEventStore{}, zap.NewNop())
	handler := newCouponTestServer(svc, &identity.User{ID: 7})

	req := httptest.NewRequest(http.MethodPost, "/coupons/redeem", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var got errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "coupon code is required", got.Error)
}

func TestRedeemHTTP_Unauthenticated(t *testing.T) {
	svc := NewService(&mockDB{}, &mockUserStore{}, &mockCouponStore{}, &mockEventStore{}, zap.NewNop())
	handler := newCouponTestServer(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/coupons/redeem", bytes.NewBufferString(`{"code":"X"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRedeemHTTP_UnknownCode(t *testing.T) {
	users := &mockUserStore{user: &identity.User{ID: 7}}
	svc := NewService(&mockDB{}, users, &mockCouponStore{}, &mockEventStore{}, zap.NewNop())
	handler := newCouponTestServer(svc, users.user)

	req := httptest.NewRequest(http.MethodPost, "/coupons/redeem", bytes.NewBufferString(`{"code":"NOPE"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var got errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, http.StatusNotFound, got.Code)
}

func TestCreateCouponHTTP(t *testing.T) {
	coupons := &mockCouponStore{}
	svc := NewService(&mockDB{}, &mockUserStore{}, coupons, &mockEventStore{}, zap.NewNop())
	handler := newCouponTestServer(svc, &identity.User{ID: 1, IsAdmin: true})

	body := `{"code":"SPRING24","type":"token","reward_tokens":25,"max_uses":10,"days":30}`
	req := httptest.NewRequest(http.MethodPost, "/admin/coupons", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got coupon.Coupon
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "SPRING24", got.Code)
	require.NotNil(t, coupons.created)
}
