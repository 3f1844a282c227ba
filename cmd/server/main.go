package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"xray-analyzer/internal/agent"
	"xray-analyzer/internal/analysis"
	"xray-analyzer/internal/config"
	"xray-analyzer/internal/journal"
	"xray-analyzer/internal/platform/logger"
	mw "xray-analyzer/internal/platform/middleware"
	"xray-analyzer/internal/report"
	"xray-analyzer/internal/uploads"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Infrastructure
	store, err := uploads.NewStore(cfg.Uploads.Dir, log)
	if err != nil {
		return err
	}

	j, err := journal.Open(ctx, journal.Config{
		Driver:         cfg.Journal.Driver,
		DSN:            cfg.Journal.DSN,
		MigrationsPath: cfg.Journal.Migrations,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	// 2. Clients
	visionClient := agent.NewClient(agent.Config{
		APIKey:       cfg.Vision.APIKey,
		BaseURL:      cfg.Vision.BaseURL,
		PrimaryModel: cfg.Vision.PrimaryModel,
		BackupModel:  cfg.Vision.BackupModel,
		Timeout:      cfg.Vision.Timeout,
		MaxAttempts:  cfg.Vision.MaxAttempts,
		LoadingWait:  cfg.Vision.LoadingWait,
		RetryBackoff: cfg.Vision.RetryBackoff,
		RateLimit:    cfg.Vision.RateLimit,
	}, log)
	if !visionClient.Enabled() {
		log.WithField("require_credentials", cfg.Vision.RequireCredentials).
			Warn("HF_API_KEY is not set, images will be described without the vision service")
	}

	// 3. Services
	analysisSvc := analysis.NewService(visionClient, analysis.NewCaseRepository(), report.NewService(), j, log, analysis.Options{
		RequireCredentials: cfg.Vision.RequireCredentials,
		VisionTimeout:      cfg.Vision.TotalTimeout,
	})
	analysisHandler := analysis.NewHandler(analysisSvc, store, analysis.HandlerConfig{
		MaxFileSize: cfg.Uploads.MaxFileSize,
		Retention:   cfg.Uploads.Retention,
		Version:     version,
	}, log)

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.CORS(cfg.Server.CORSOrigins()))

	r.NotFound(analysisHandler.NotFound)
	r.MethodNotAllowed(analysisHandler.NotFound)

	r.Route("/api", func(r chi.Router) {
		analysis.RegisterRoutes(r, analysisHandler)
	})
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", store.FileServer()))

	go store.RunJanitor(ctx, cfg.Uploads.CleanupInterval, cfg.Uploads.Retention)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"port":         cfg.Server.Port,
			"uploads":      store.Dir(),
			"hugging_face": visionClient.Enabled(),
			"cors":         cfg.Server.CORSOrigin,
			"journal":      cfg.Journal.Driver,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
