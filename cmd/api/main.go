package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/chat"
	"github.com/QiangXu1564/order-reserve-aid/internal/config"
	"github.com/QiangXu1564/order-reserve-aid/internal/handlers"
	"github.com/QiangXu1564/order-reserve-aid/internal/logging"
	"github.com/QiangXu1564/order-reserve-aid/internal/metrics"
	"github.com/QiangXu1564/order-reserve-aid/internal/middleware"
	"github.com/QiangXu1564/order-reserve-aid/internal/realtime"
	"github.com/QiangXu1564/order-reserve-aid/internal/reservations"
)

func setupRouter(h *handlers.Handlers, logger *zap.Logger, local bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(logger), metrics.Middleware(), middleware.CORS())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if local {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	h.Register(r)
	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the websocket change feed only exists on the long-running local server
	var hub *realtime.Hub
	if cfg.RunLocal {
		hub = realtime.NewHub(logger.Named("realtime"))
		defer hub.Close()
	}

	be, err := newBackend(ctx, cfg, hub, logger)
	if err != nil {
		logger.Fatal("failed to init store backend", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer be.Close()

	policy, err := cfg.Policy()
	if err != nil {
		logger.Fatal("invalid availability policy", zap.Error(err))
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger.Named("ratelimit"))
	limiter.StartCleanup(10*time.Minute, ctx.Done())

	hcfg := handlers.HandlerConfig{
		Orders:        be.orders,
		Reservations:  be.reservations,
		Approvals:     be.approvals,
		Checker:       reservations.NewChecker(be.reservations, policy),
		Idempotency:   be.idempotency,
		Hub:           hub,
		Limiter:       limiter,
		BufferStreams: !cfg.RunLocal,
		Logger:        logger.Named("api"),
	}
	if relay, err := chat.NewRelay(cfg.Relay()); err == nil {
		hcfg.Relay = relay
	} else {
		logger.Warn("chat relay disabled", zap.Error(err))
	}

	r := setupRouter(handlers.New(hcfg), logger.Named("http"), cfg.RunLocal)

	// if RUN_LOCAL=true, run a local HTTP server for development.
	if cfg.RunLocal {
		if be.listener != nil {
			go func() {
				if err := be.listener.Run(ctx); err != nil {
					logger.Error("postgres listener stopped", zap.Error(err))
				}
			}()
		}
		if err := serve(ctx, cfg.HTTPAddr, r, logger); err != nil {
			logger.Fatal("local server failed", zap.Error(err))
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.StartWithOptions(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	}, lambda.WithContext(ctx))
}

// serve runs the HTTP server until ctx is cancelled, then drains it.
func serve(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("running local server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
