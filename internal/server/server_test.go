package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/internal/config"
	"storefront-backend/internal/domain"
	"storefront-backend/internal/infrastructure/repo"
	"storefront-backend/internal/usecase"
)

type harness struct {
	t     *testing.T
	h     http.Handler
	store *repo.MemoryStore
	auth  *usecase.AuthService
	buyer string
	other string
	admin string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repo.NewMemoryStore()
	ctx := context.Background()
	for _, u := range []domain.User{
		{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleUser},
		{ID: "u2", Name: "Bob", Email: "bob@example.com", Role: domain.RoleUser},
		{ID: "root", Name: "Root", Email: "root@example.com", Role: domain.RoleAdmin},
	} {
		require.NoError(t, store.PutUser(ctx, &u))
	}
	require.NoError(t, store.CreateProduct(ctx, &domain.Product{
		ID: "p1", Name: "Mug", Price: decimal.NewFromInt(100), CreatedAt: time.Now().UTC(),
	}))

	auth := &usecase.AuthService{JWTSecret: "test-secret"}
	coupons := &usecase.CouponService{Repo: store}
	log, _ := test.NewNullLogger()
	svc := Services{
		Auth: auth,
		Orders: &usecase.OrderService{
			Store:     store,
			Inventory: &usecase.Inventory{Products: store},
			Coupons:   coupons,
			Log:       log,
		},
		Coupons:       coupons,
		Catalog:       &usecase.CatalogService{Products: store},
		Notifications: &usecase.NotificationService{Repo: store},
		Dashboard:     &usecase.DashboardService{Store: store},
	}
	cfg := config.Default()
	cfg.Env = "test"
	hs := &harness{t: t, h: New(cfg, svc, log).Handler(), store: store, auth: auth}
	hs.buyer = hs.token("u1", domain.RoleUser)
	hs.other = hs.token("u2", domain.RoleUser)
	hs.admin = hs.token("root", domain.RoleAdmin)
	return hs
}

func (hs *harness) token(id string, role domain.Role) string {
	tok, err := hs.auth.Issue(id, role)
	require.NoError(hs.t, err)
	return tok
}

func (hs *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(hs.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-1")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	hs.h.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func orderBody(method string) map[string]any {
	return map[string]any{
		"productId":     "p1",
		"quantity":      2,
		"paymentMethod": method,
		"shippingAddress": map[string]any{
			"name": "Ada", "street": "1 Main St", "city": "London", "zip": "N1",
			"country": "UK", "email": "ada@example.com", "phone": "1",
		},
	}
}

func TestHealthzIsPublic(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodGet, "/api/orders/mine", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "Unauthenticated", body.Error.Code)
	assert.Equal(t, "req-1", body.Error.RequestID)

	rec = hs.do(http.MethodGet, "/api/orders/mine", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodPost, "/api/orders", hs.buyer, orderBody("cod"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[domain.Order](t, rec)
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Equal(t, "200", o.FinalPrice.String())
	require.NotNil(t, o.Product)
	assert.Equal(t, "Mug", o.Product.Name)

	rec = hs.do(http.MethodPost, "/api/orders", hs.buyer, orderBody("cod"))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DuplicateOrder", decode[errorBody](t, rec).Error.Code)

	rec = hs.do(http.MethodGet, "/api/orders/"+o.ID, hs.other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = hs.do(http.MethodPatch, "/api/orders/"+o.ID, hs.buyer, map[string]any{
		"shippingAddress": map[string]any{"city": "Paris"},
		"status":          "delivered",
		"finalPrice":      "1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decode[domain.Order](t, rec)
	assert.Equal(t, "Paris", patched.ShippingAddress.City)
	assert.Equal(t, domain.OrderPending, patched.Status)
	assert.Equal(t, "200", patched.FinalPrice.String())

	rec = hs.do(http.MethodPatch, "/api/admin/orders/"+o.ID+"/status", hs.buyer, map[string]any{"status": "shipped"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = hs.do(http.MethodPatch, "/api/admin/orders/"+o.ID+"/status", hs.admin, map[string]any{"status": "lost"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidStatus", decode[errorBody](t, rec).Error.Code)

	rec = hs.do(http.MethodPatch, "/api/admin/orders/"+o.ID+"/status", hs.admin, map[string]any{"status": "delivered"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p, err := hs.store.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.SoldCount)

	rec = hs.do(http.MethodPost, "/api/orders/"+o.ID+"/cancel", hs.buyer, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidState", decode[errorBody](t, rec).Error.Code)

	rec = hs.do(http.MethodGet, "/api/orders/missing", hs.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = hs.do(http.MethodGet, "/api/admin/dashboard", hs.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[domain.DashboardStats](t, rec)
	assert.Equal(t, "200", stats.TotalRevenue.String())
	assert.Equal(t, 1, stats.OrdersByStatus[domain.OrderDelivered])

	rec = hs.do(http.MethodGet, "/api/admin/notifications?unread=true", hs.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decode[[]domain.Notification](t, rec)
	require.Len(t, notes, 2)

	rec = hs.do(http.MethodPatch, "/api/admin/notifications/"+notes[0].ID+"/read", hs.admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCouponFlowOverHTTP(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodPost, "/api/admin/coupons", hs.admin, map[string]any{
		"code":          "save10",
		"discountType":  "percentage",
		"discountValue": 10,
		"expiresAt":     time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = hs.do(http.MethodPost, "/api/coupons/apply", hs.buyer, map[string]any{"code": "SAVE10", "orderValue": "200"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	applied := decode[map[string]string](t, rec)
	assert.Equal(t, "20", applied["discount"])
	assert.Equal(t, "180", applied["finalValue"])

	body := orderBody("online")
	body["couponCode"] = "SAVE10"
	rec = hs.do(http.MethodPost, "/api/orders", hs.buyer, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[domain.Order](t, rec)
	assert.Equal(t, "180", o.FinalPrice.String())

	rec = hs.do(http.MethodPost, "/api/coupons/apply", hs.buyer, map[string]any{"code": "SAVE10", "orderValue": "200"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "AlreadyUsed", decode[errorBody](t, rec).Error.Code)

	rec = hs.do(http.MethodPost, "/api/coupons/apply", hs.buyer, map[string]any{"code": "NOPE", "orderValue": "200"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidCoupon", decode[errorBody](t, rec).Error.Code)

	rec = hs.do(http.MethodGet, "/api/admin/coupons", hs.buyer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateOrderValidation(t *testing.T) {
	hs := newHarness(t)

	body := orderBody("cod")
	body["quantity"] = 0
	rec := hs.do(http.MethodPost, "/api/orders", hs.buyer, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", decode[errorBody](t, rec).Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+hs.buyer)
	out := httptest.NewRecorder()
	hs.h.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)
}

func TestProductsOverHTTP(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodPost, "/api/admin/products", hs.admin, map[string]any{"name": "Lamp", "price": "35.5"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[domain.Product](t, rec)

	rec = hs.do(http.MethodGet, "/api/products/"+p.ID, hs.buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lamp", decode[domain.Product](t, rec).Name)

	rec = hs.do(http.MethodGet, "/api/products", hs.buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Product](t, rec), 2)

	rec = hs.do(http.MethodPost, "/api/admin/products", hs.buyer, map[string]any{"name": "Lamp", "price": "1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
