package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/student-portal/api/swagger"
	"github.com/noah-isme/student-portal/internal/handler"
	internalmiddleware "github.com/noah-isme/student-portal/internal/middleware"
	"github.com/noah-isme/student-portal/internal/screen"
	"github.com/noah-isme/student-portal/internal/service"
	"github.com/noah-isme/student-portal/internal/store"
	"github.com/noah-isme/student-portal/pkg/config"
	"github.com/noah-isme/student-portal/pkg/jobs"
	"github.com/noah-isme/student-portal/pkg/logger"
	corsmiddleware "github.com/noah-isme/student-portal/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/student-portal/pkg/middleware/requestid"
	"github.com/noah-isme/student-portal/pkg/storage"
)

// @title Student Portal Gateway
// @version 1.0.0
// @description Screen sessions, optimistic mutations and exports for the student portal
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to open store", "driver", cfg.Store.Driver, "error", err)
	}
	defer backend.Close() //nolint:errcheck

	if cfg.Store.SeedFile != "" {
		fixture, err := store.LoadFixture(cfg.Store.SeedFile)
		if err != nil {
			logr.Sugar().Fatalw("failed to load seed file", "error", err)
		}
		n, err := store.Seed(ctx, backend.Store, fixture)
		if err != nil {
			logr.Sugar().Fatalw("failed to seed store", "error", err)
		}
		logr.Sugar().Infow("store seeded", "documents", n, "file", cfg.Store.SeedFile)
	}

	metrics := service.NewMetricsService()
	remote := store.Instrument(backend.Store, metrics, logr.Named("store"))

	writers := jobs.NewQueue("mutations", jobs.RunFunc, jobs.QueueConfig{
		Workers:    cfg.Mutations.Workers,
		BufferSize: cfg.Mutations.BufferSize,
		Logger:     logr.Named("jobs"),
	})
	writers.Start(context.Background())

	mutations := screen.NewMutationQueue(remote,
		screen.WithDispatcher(writers),
		screen.WithMutationTimeout(cfg.Portal.MutationTimeout),
		screen.WithMutationLogger(logr.Named("mutations")),
		screen.WithMutationObserver(metrics),
	)

	portal := service.NewPortalService(remote, mutations, service.PortalConfig{
		UserID:              cfg.Portal.UserID,
		ScreenLoadTimeout:   cfg.Portal.ScreenLoadTimeout,
		PersistMembership:   cfg.Portal.PersistMembership,
		PersistHelpRequests: cfg.Portal.PersistHelpRequests,
		SessionTTL:          cfg.Portal.SessionTTL,
	},
		service.WithPortalLogger(logr.Named("portal")),
		service.WithScreenLoadObserver(metrics),
		service.WithPortalObserver(metrics),
	)
	go portal.RunJanitor(ctx)

	checks := []handler.ReadinessCheck{{Name: "store", Check: backend.Ping}}
	routes := handler.Routes{
		Portal: handler.NewPortalHandler(portal),
		Watch:  handler.NewWatchHandler(portal, cfg.CORS.AllowedOrigins, logr.Named("watch")),
	}

	if cfg.Exports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Exports.Dir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "dir", cfg.Exports.Dir, "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SigningSecret, cfg.Exports.URLTTL)
		exports := service.NewExportService(portal, files, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.RetentionTTL,
		}, logr.Named("exports"))
		go exports.RunCleanup(ctx, cfg.Exports.RetentionTTL/4)

		routes.Exports = handler.NewExportHandler(exports)
		checks = append(checks, handler.ReadinessCheck{Name: "exports", Check: func(context.Context) error {
			_, err := os.Stat(cfg.Exports.Dir)
			return err
		}})
	}
	routes.Metrics = handler.NewMetricsHandler(metrics, checks...)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	routes.Register(r, r.Group(cfg.APIPrefix))

	if cfg.Docs.Enabled && cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "store", backend.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}
	portal.Close()
	// pending writes settle (and roll back if they fail) before the store closes
	writers.Stop()
}
