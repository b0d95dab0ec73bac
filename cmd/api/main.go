package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-orderlines/internal/app"
	"github.com/imrishuroy/go-orderlines/internal/config"
	"github.com/imrishuroy/go-orderlines/internal/handlers"
	"github.com/imrishuroy/go-orderlines/internal/logging"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestID(), handlers.AccessLog())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterOrdersRoutes(r, cfg)

	return r
}

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

	hcfg := handlers.HandlerConfig{
		Orders:  a.Orders,
		Details: a.Details,
	}
	// keep the interface nil rather than a typed nil
	if a.Idempotency != nil {
		hcfg.Idempotency = a.Idempotency
	}
	r := setupRouter(hcfg)

	// RUN_LOCAL=true runs a plain HTTP server for development.
	if cfg.RunLocal {
		slog.Info("running local server", "addr", cfg.HTTPAddr)
		if err := r.Run(cfg.HTTPAddr); err != nil {
			slog.Error("local server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
