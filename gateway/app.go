package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/saarportal/api-gateway/billing"
	"github.com/saarportal/api-gateway/engine"
	"github.com/saarportal/api-gateway/gateway/routes/api"
	"github.com/saarportal/api-gateway/gateway/routes/health"
	"github.com/saarportal/api-gateway/ratelimit"
	"github.com/saarportal/api-gateway/shared/config"
	"github.com/saarportal/api-gateway/shared/db"
	"github.com/saarportal/api-gateway/shared/email"
	"github.com/saarportal/api-gateway/shared/middleware"
	"github.com/saarportal/api-gateway/shared/tracer"
	"github.com/saarportal/api-gateway/upstream"
	"github.com/saarportal/api-gateway/usagelog"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize DB
	conn, err := db.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer conn.Close()

	store := db.NewStore(conn)

	if cfg.SeedDefaults {
		if err := store.SeedDefaultRules(context.Background()); err != nil {
			log.Fatalf("Failed to seed default rules: %v", err)
		}
	}

	// Initialize OpenTelemetry tracer
	tp := tracer.InitTracer()
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	// Background usage metering
	tracker := usagelog.NewTracker(store, &usagelog.WorkerConfig{
		WorkerCount: cfg.Usage.Workers,
		QueueSize:   cfg.Usage.QueueSize,
		MaxRetries:  cfg.Usage.MaxRetries,
		RetryDelay:  time.Duration(cfg.Usage.RetryDelaySeconds) * time.Second,
	})
	defer tracker.Stop()

	var notifier ratelimit.Notifier = ratelimit.LogNotifier{}
	if emailNotifier := email.NewNotifierFromEnv(); emailNotifier != nil {
		notifier = emailNotifier
	}
	limiter := ratelimit.NewLimiter(notifier)

	registry := upstream.NewRegistry()
	registry.Register("/chat", upstream.NewChatHandler(os.Getenv("OPENAI_API_KEY"), cfg.Chat.Model).Handle)
	registry.Register("/documents", upstream.NewDocumentsHandler().Handle)
	registry.Register("/workflows", upstream.NewWorkflowsHandler().Handle)

	gateway := engine.NewGateway(store, store, limiter, registry, billing.Calculator{}, tracker)

	// Setup Gin router
	r := gin.New()
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CustomLogger())
	r.Use(gin.Recovery())

	// Static health check
	r.GET("/health", health.Handler(conn))

	// Prometheus and tracing
	r.Use(middleware.PrometheusMiddleware())
	r.Use(middleware.TracingMiddleware())

	h := &api.Handler{
		Store:   store,
		Gateway: gateway,
		Tracker: tracker,
		Limiter: limiter,
	}
	grp := r.Group("/api/gateway")
	grp.POST("", h.Post)
	grp.GET("", h.Get)
	grp.PUT("/keys/:id", h.UpdateKey)
	grp.DELETE("/keys/:id", h.RevokeKey)

	// Catch-all for proxying
	r.NoRoute(h.Proxy)

	// Run server
	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = cfg.Server.Port
	}
	log.Printf("Starting Saarportal API gateway on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
