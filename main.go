package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shop-analyzer/audit"
	"shop-analyzer/config"
	"shop-analyzer/database"
	"shop-analyzer/gemini"
	"shop-analyzer/handlers"
	"shop-analyzer/llm"
	"shop-analyzer/metrics"
	"shop-analyzer/middleware"
	"shop-analyzer/openai"
	"shop-analyzer/rabbitmq"
	"shop-analyzer/service"
	"shop-analyzer/stubllm"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Pick the inference provider and validate its credentials
	client := newLLMClient(cfg)
	log.Infof("Analyzer LLM provider=%s", client.SourceName())

	// Initialize database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.CreateShopsTable(); err != nil {
		log.Fatalf("Failed to create shops table: %v", err)
	}

	// Initialize audit image storage
	auditWriter, err := audit.NewWriter(cfg.AuditDir)
	if err != nil {
		log.Fatalf("Failed to initialize audit storage: %v", err)
	}

	// Initialize submission event publisher (optional)
	var publisher handlers.SubmissionPublisher
	if cfg.AMQPURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.SubmissionExchange, cfg.SubmissionRoutingKey)
		if err != nil {
			log.Errorf("Failed to initialize RabbitMQ publisher: %v", err)
			// Continue without publisher - submissions will still work
		} else {
			defer p.Close()
			publisher = p
		}
	}

	// Initialize analyzer and handlers
	analyzer := service.NewAnalyzer(client, cfg.InferenceTimeout, cfg.MaxImageDimension)
	h := handlers.NewHandlers(analyzer, db, auditWriter, publisher)

	metrics.Register()

	// Setup HTTP server
	if mode := os.Getenv("GIN_MODE"); mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics())

	router.POST("/analyze-shop", h.AnalyzeShop)
	router.POST("/submit-shop", h.SubmitShop)
	router.GET("/health", h.HealthCheck)
	router.GET("/shops/:id", h.GetShop)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Infof("Starting shop analyzer service on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

// newLLMClient selects the inference provider from config.
func newLLMClient(cfg *config.Config) llm.Client {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatal("OPENAI_API_KEY environment variable is required")
		}
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "stub":
		log.Warn("Using stub LLM provider - no real inference will happen")
		return stubllm.NewClient()
	default:
		if cfg.GeminiAPIKey == "" {
			log.Fatal("GEMINI_API_KEY environment variable is required")
		}
		return gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
}
