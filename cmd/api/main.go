package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vdchat/infrastructure/config"
	"vdchat/infrastructure/di"
	"vdchat/interfaces/http/rest"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()

	router := rest.NewRouter(
		container.Orchestrator,
		container.CommandBus,
		container.QueryBus,
		container.Synthesizer,
		container.Completion,
		container.Health,
		container.Metrics,
		container.Tracer,
		rest.Options{
			EnableCORS:         cfg.EnableCORS,
			CORSOrigins:        cfg.CORSOrigins,
			EnableMetrics:      cfg.EnableMetrics,
			Debug:              cfg.IsDevelopment(),
			MaxAudioBytes:      container.DomainConfig.MaxAudioBytes,
			MaxSynthesisLength: container.DomainConfig.MaxSynthesisLength,
			DefaultUserID:      cfg.DefaultUserID,
			Limiter:            container.RateLimiter,
		},
		container.Logger,
	)

	// Turns call three providers in sequence, so writes get a long deadline.
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router.Setup(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		container.Logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("graph_backend", cfg.GraphBackend),
			zap.String("lock_backend", cfg.LockBackend),
			zap.String("cache_backend", cfg.CacheBackend),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Server shutdown error", zap.Error(err))
	}

	_ = container.Logger.Sync()
	log.Println("Server stopped")
}
