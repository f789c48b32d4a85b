package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/aws"
	"github.com/QiangXu1564/order-reserve-aid/internal/config"
	"github.com/QiangXu1564/order-reserve-aid/internal/logging"
)

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
	logger = logger.Named("worker")

	clients, err := aws.NewClients(context.Background(), cfg.AWS())
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}
	p := NewProcessor(clients.CloudWatch, cfg.MetricsNamespace, logger)

	// RUN_LOCAL=true processes a single simulated message and exits.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"schema":"public","table":"orders","eventType":"INSERT","new":{"id":"local-order-1"},"commit_timestamp":"2026-01-01T00:00:00Z"}`
		}
		resp, err := p.Handle(context.Background(), events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		})
		if err != nil {
			logger.Fatal("local handler error", zap.Error(err))
		}
		logger.Info("local run finished", zap.Int("failures", len(resp.BatchItemFailures)))
		return
	}

	lambda.Start(p.Handle)
}
