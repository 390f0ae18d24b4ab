package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"polpipe/internal/acquisitions"
	"polpipe/internal/archive"
	"polpipe/internal/catalog"
	"polpipe/internal/clock"
	"polpipe/internal/config"
	"polpipe/internal/database"
	"polpipe/internal/handler"
	"polpipe/internal/ledger"
	"polpipe/internal/mw"
	"polpipe/internal/pipeline"
	"polpipe/internal/service"
	"polpipe/internal/templates"
	"polpipe/internal/worker"
)

func main() {
	cfg := config.New()

	db, err := database.NewDB(cfg.DatabaseURI)
	if err != nil {
		slog.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer database.CloseDB(context.Background(), db)

	if err := database.InitSchema(db); err != nil {
		slog.Error("failed to init DB schema", "error", err)
		os.Exit(1)
	}

	templateStore, err := templates.LoadStore(cfg.TemplateDir)
	if err != nil {
		slog.Error("failed to load POL templates", "dir", cfg.TemplateDir, "error", err)
		os.Exit(1)
	}

	// Services
	authSvc := service.NewAuthService(db)
	runSvc := service.NewRunService(db)

	// Pipeline collaborators
	resolver := catalog.NewResolver(catalog.NewClient(cfg.CatalogAddress))
	merger := templates.NewMerger(templateStore, clock.NewReal())
	acqClient := acquisitions.NewClient(cfg.AcquisitionsAddress, cfg.AcqTokenURL, cfg.AcqClientID, cfg.AcqClientSecret)
	submitter := acquisitions.NewSubmitter(acqClient, ledger.NewPostgres(db))
	pl := pipeline.New(resolver, merger, submitter, cfg.Workers)

	var archiver worker.Archiver
	if cfg.ArchiveEndpoint != "" {
		arch, err := archive.New(archive.Config{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			UseSSL:    cfg.ArchiveUseSSL,
		})
		if err != nil {
			slog.Error("failed to configure report archive", "error", err)
			os.Exit(1)
		}
		archiver = arch
	}

	// Worker
	runWorker := worker.NewRunWorker(runSvc, pl, archiver)

	// Router
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Post("/api/operators/register", handler.RegisterHandler(authSvc, cfg.JWTSecret))
	r.Post("/api/operators/login", handler.LoginHandler(authSvc, cfg.JWTSecret))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.JWTSecret))

		r.Post("/api/batches", handler.UploadBatchHandler(runSvc, templateStore))
		r.Get("/api/runs", handler.ListRunsHandler(runSvc))
		r.Get("/api/runs/{id}", handler.GetRunHandler(runSvc))
		r.Get("/api/runs/{id}/report", handler.RunReportHandler(runSvc))
		r.Get("/api/templates", handler.ListTemplatesHandler(templateStore))
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go runWorker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	cancel() // stop worker; in-flight submissions complete before it exits
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}
