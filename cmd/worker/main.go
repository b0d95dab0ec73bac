package main

import (
	"context"
	"log/slog"
	"os"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-orderlines/internal/app"
	"github.com/imrishuroy/go-orderlines/internal/config"
	"github.com/imrishuroy/go-orderlines/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel)

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to wire service", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	p := NewProcessor(a.Orders)

	// RUN_LOCAL=true processes a single message from LOCAL_SQS_BODY and exits.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"type":"order.reprice","order_number":1}`
		}
		event := lambdaevents.SQSEvent{
			Records: []lambdaevents.SQSMessage{{MessageId: "local-1", Body: body}},
		}
		resp, err := p.Handle(context.Background(), event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			slog.Error("local handler failed", "error", err, "failures", len(resp.BatchItemFailures))
			os.Exit(1)
		}
		return
	}

	lambda.Start(p.Handle)
}
