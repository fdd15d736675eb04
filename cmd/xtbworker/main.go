// Command xtbworker runs the Worker Pool: it polls FileStore for queued
// computations, drives the xTB Executor, and exposes a health endpoint.
// The submission/query HTTP API described in spec §6 lives outside this
// core (out of scope); this binary's only HTTP surface is its health check.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/quantum-forge/orchestrator-core/pkg/config"
	"github.com/quantum-forge/orchestrator-core/pkg/datastore"
	"github.com/quantum-forge/orchestrator-core/pkg/filestore"
	"github.com/quantum-forge/orchestrator-core/pkg/logging"
	"github.com/quantum-forge/orchestrator-core/pkg/queue"
	"github.com/quantum-forge/orchestrator-core/pkg/version"
	"github.com/quantum-forge/orchestrator-core/pkg/xtbexec"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables...")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "release"))

	podID := getEnv("POD_ID", "xtbworker-"+uuid.NewString()[:8])
	log.Printf("starting %s, pod_id=%s", version.Full(), podID)

	fsCfg, err := config.LoadFileStoreConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load filestore config: %v", err)
	}
	store, err := filestore.New(fsCfg)
	if err != nil {
		log.Fatalf("failed to initialize filestore: %v", err)
	}

	dsCfg, err := config.LoadDataStoreConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load datastore config: %v", err)
	}
	dsClient := datastore.New(dsCfg)
	emitter := logging.New(dsClient, dsCfg.Enabled, slog.Default())

	xtbCfg, err := config.LoadXTBConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load xtb config: %v", err)
	}
	executor := xtbexec.New(xtbCfg, emitter)

	workerCfg, err := config.LoadWorkerConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load worker config: %v", err)
	}

	overlayPath := filepath.Join(*configDir, "defaults.yaml")
	overlay, err := config.LoadOverlay(overlayPath)
	if err != nil {
		log.Fatalf("failed to load config overlay %s: %v", overlayPath, err)
	}
	if err := config.ApplyWorkerOverlay(&workerCfg, overlay); err != nil {
		log.Fatalf("failed to apply config overlay: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := queue.CleanupStartupOrphans(ctx, store, podID); err != nil {
		slog.Error("startup orphan cleanup failed", "error", err)
	}

	pool := queue.NewWorkerPool(podID, store, executor, workerCfg, xtbCfg)
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("failed to start worker pool: %v", err)
	}

	router := gin.Default()
	healthHandler := func(c *gin.Context) {
		health := pool.Health()
		status := http.StatusOK
		if !health.IsHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"version": version.Full(),
			"pool":    health,
		})
	}
	router.GET("/health", healthHandler)
	router.GET("/healthz", healthHandler)

	srv := &http.Server{
		Addr:    ":" + httpPort,
		Handler: router,
	}

	go func() {
		log.Printf("health server listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("health server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), workerCfg.GracefulShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("health server shutdown error: %v", err)
	}

	pool.Stop()
	log.Println("xtbworker stopped")
}
