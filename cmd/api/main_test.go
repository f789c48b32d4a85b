package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/aws/dynamotest"
	"github.com/QiangXu1564/order-reserve-aid/internal/config"
	"github.com/QiangXu1564/order-reserve-aid/internal/handlers"
	"github.com/QiangXu1564/order-reserve-aid/internal/orders"
	"github.com/QiangXu1564/order-reserve-aid/internal/realtime"
)

func TestSetupRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := handlers.New(handlers.HandlerConfig{Orders: orders.NewStore(dynamotest.New(), "orders")})

	local := setupRouter(h, zap.NewNop(), true)
	rec := httptest.NewRecorder()
	local.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	local.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	local.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "order_reserve_http_requests_total")

	lambdaRouter := setupRouter(h, zap.NewNop(), false)
	rec = httptest.NewRecorder()
	lambdaRouter.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChangeNotifier(t *testing.T) {
	cfg := &config.Config{}
	assert.Nil(t, changeNotifier(cfg, nil, nil))

	hub := realtime.NewHub(nil)
	assert.NotNil(t, changeNotifier(cfg, nil, hub))

	cfg.ChangeQueueURL = "https://sqs.example/queue"
	// no AWS clients: queue is skipped
	n := changeNotifier(cfg, nil, nil)
	assert.Nil(t, n)
}
