// courseforge server - ingests course materials and orchestrates LLM
// providers to generate structured course outlines behind a multi-tenant API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/courseforge/courseforge/pkg/api"
	"github.com/courseforge/courseforge/pkg/architect"
	"github.com/courseforge/courseforge/pkg/auth"
	"github.com/courseforge/courseforge/pkg/catalog"
	"github.com/courseforge/courseforge/pkg/config"
	"github.com/courseforge/courseforge/pkg/database"
	"github.com/courseforge/courseforge/pkg/ingest"
	"github.com/courseforge/courseforge/pkg/ledger"
	"github.com/courseforge/courseforge/pkg/llm"
	"github.com/courseforge/courseforge/pkg/models"
	"github.com/courseforge/courseforge/pkg/objectstore"
	"github.com/courseforge/courseforge/pkg/queue"
	"github.com/courseforge/courseforge/pkg/ratelimit"
)

func main() {
	envFile := flag.String("env-file", ".env", "Path to .env file")
	bootstrapTenant := flag.String("bootstrap-tenant", "", "Create a tenant with a prep+check key, print the key once, and exit")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("Warning: could not load %s: %v", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.SetupLogging()

	if cfg.Environment == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	registry, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to load model catalog: %v", err)
	}
	slog.Info("Model catalog loaded",
		"models", registry.Stats().Models,
		"actions", registry.Stats().Actions)

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL, schema up to date")

	if *bootstrapTenant != "" {
		if err := bootstrap(ctx, dbClient, cfg, *bootstrapTenant); err != nil {
			log.Fatalf("Bootstrap failed: %v", err)
		}
		return
	}

	var store *objectstore.Store
	if cfg.ObjectStore.Endpoint != "" {
		store, err = objectstore.New(ctx, cfg.ObjectStore)
		if err != nil {
			log.Fatalf("Failed to connect to object storage: %v", err)
		}
		slog.Info("Connected to object storage", "bucket", cfg.ObjectStore.Bucket)
	} else {
		slog.Warn("S3_ENDPOINT not set, file uploads disabled")
	}

	providers := llm.BuildProviders(cfg.Providers)
	recorder := ledger.NewRecorder(dbClient.DB)
	router := llm.NewRouter(registry, providers, llm.WithRecordFunc(recorder.RecordFunc()))

	agent := architect.NewAgent(router, architect.WithPromptPath(cfg.PromptPath))

	processors := buildProcessors(router, providers)
	executor := queue.NewExecutor(dbClient.DB, store, processors)

	queueCfg, err := queue.Resolve(nil)
	if err != nil {
		log.Fatalf("Failed to resolve queue config: %v", err)
	}
	pool := queue.NewWorkerPool(dbClient.DB, queueCfg, executor)
	pool.Start(ctx)
	defer pool.Stop()

	limiter := ratelimit.NewSlidingWindow(5 * time.Minute)
	defer limiter.Stop()

	authSvc := auth.NewService(dbClient.DB)
	server := api.NewServer(cfg, registry, dbClient, store, authSvc, limiter, agent, router, pool)

	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := server.Start(":" + cfg.HTTPPort); err != nil {
			slog.Error("HTTP server stopped", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

// buildProcessors wires the ingestion processors from the available
// providers. Video uses the Gemini vision path as primary with the local
// transcription fallback.
func buildProcessors(router *llm.Router, providers map[string]llm.Provider) queue.ProcessorSet {
	whisper := ingest.NewWhisperVideoProcessor(
		os.Getenv("FFMPEG_BIN"),
		os.Getenv("WHISPER_BIN"),
		2,
	)

	var video ingest.Processor = whisper
	if p, ok := providers["gemini"]; ok {
		if gemini, ok := p.(*llm.GeminiProvider); ok {
			modelID := os.Getenv("GEMINI_VIDEO_MODEL")
			if modelID == "" {
				modelID = "gemini-2.0-flash"
			}
			primary := ingest.NewGeminiVideoProcessor(gemini, modelID)
			video = ingest.NewCompositeVideoProcessor(primary, whisper, true)
		}
	}

	return queue.ProcessorSet{
		Video:        video,
		Presentation: ingest.NewPresentationProcessor(router),
		Text:         ingest.NewTextProcessor(),
		Web:          ingest.NewWebProcessor(nil),
	}
}

// bootstrap creates a tenant with one prep+check key and prints the
// plaintext key exactly once.
func bootstrap(ctx context.Context, dbClient *database.Client, cfg *config.Config, tenantName string) error {
	plaintext, err := auth.GenerateKey(cfg.Environment)
	if err != nil {
		return err
	}
	keyHash, keyPrefix := auth.KeyParts(plaintext)

	tenant := models.Tenant{
		ID:        uuid.NewString(),
		Name:      tenantName,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	key := models.APIKey{
		ID:             uuid.NewString(),
		TenantID:       tenant.ID,
		KeyHash:        keyHash,
		KeyPrefix:      keyPrefix,
		Label:          "bootstrap",
		Scopes:         []models.Scope{models.ScopePrep, models.ScopeCheck},
		RateLimitPrep:  60,
		RateLimitCheck: 120,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}

	if err := dbClient.DB.WithContext(ctx).Create(&tenant).Error; err != nil {
		return fmt.Errorf("creating tenant: %w", err)
	}
	if err := dbClient.DB.WithContext(ctx).Create(&key).Error; err != nil {
		return fmt.Errorf("creating API key: %w", err)
	}

	fmt.Printf("Tenant %q created (id %s)\n", tenant.Name, tenant.ID)
	fmt.Printf("API key (shown once, store it now): %s\n", plaintext)
	return nil
}
