package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QiangXu1564/order-reserve-aid/internal/approvals"
	"github.com/QiangXu1564/order-reserve-aid/internal/aws/dynamotest"
	"github.com/QiangXu1564/order-reserve-aid/internal/idempotency"
	"github.com/QiangXu1564/order-reserve-aid/internal/middleware"
	"github.com/QiangXu1564/order-reserve-aid/internal/orders"
	"github.com/QiangXu1564/order-reserve-aid/internal/reservations"
)

var fixedNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type testAPI struct {
	engine       *gin.Engine
	db           *dynamotest.Fake
	orders       *orders.Store
	reservations *reservations.Store
	approvals    *approvals.Store
}

func newTestAPI(t *testing.T, tweak ...func(*HandlerConfig)) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dynamotest.New()
	api := &testAPI{
		db:           db,
		orders:       orders.NewStore(db, "orders"),
		reservations: reservations.NewStore(db, "reservations"),
		approvals:    approvals.NewStore(db, "reservation_approvals"),
	}
	cfg := HandlerConfig{
		Orders:       api.orders,
		Reservations: api.reservations,
		Approvals:    api.approvals,
		Checker:      reservations.NewChecker(api.reservations, reservations.DefaultPolicy()),
		Idempotency:  idempotency.NewStore(db, "idempotency", 48*time.Hour),
		Now:          func() time.Time { return fixedNow },
	}
	for _, f := range tweak {
		f(&cfg)
	}

	r := gin.New()
	r.Use(middleware.CORS())
	New(cfg).Register(r)
	api.engine = r
	return api
}

func (a *testAPI) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPut, "/orders", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", decode(t, rec)["error"])
}

func TestPreflight(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodOptions, "/create-order", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Body.String())
}

func TestInvalidJSONBody(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/orders", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON body", decode(t, rec)["error"])
}

func TestRateLimitedRoutes(t *testing.T) {
	api := newTestAPI(t, func(cfg *HandlerConfig) {
		cfg.Limiter = middleware.NewRateLimiter(0.001, 1, nil)
	})

	body := map[string]any{"customerName": "Ana", "customerPhone": "600 111 222", "products": []string{"Paella"}}
	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, "/create-order", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, api.do(http.MethodPost, "/create-order", body).Code)

	// dashboard reads are not limited
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/orders", nil).Code)
}
