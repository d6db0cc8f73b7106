package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jmorand/crm-backend/internal/config"
	"github.com/jmorand/crm-backend/internal/events"
	"github.com/jmorand/crm-backend/internal/handlers"
	"github.com/jmorand/crm-backend/internal/httpserver"
	"github.com/jmorand/crm-backend/internal/logging"
	"github.com/jmorand/crm-backend/internal/manifest"
	authmw "github.com/jmorand/crm-backend/internal/middleware/auth"
	"github.com/jmorand/crm-backend/internal/models"
	"github.com/jmorand/crm-backend/internal/search"
	"github.com/jmorand/crm-backend/internal/store"
	"github.com/jmorand/crm-backend/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	authDB, err := config.OpenDB(cfg.AuthDatabaseURL, &models.User{})
	if err != nil {
		log.Fatalf("auth database: %v", err)
	}
	crmDB, err := config.OpenDB(cfg.CRMDatabaseURL, &models.Contact{})
	if err != nil {
		log.Fatalf("crm database: %v", err)
	}

	tokens, err := token.NewService(
		[]byte(cfg.SecretKey),
		cfg.Algorithm,
		time.Duration(cfg.TokenExpires)*time.Minute,
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	users := store.NewUserStore(authDB)
	contacts := store.NewContactStore(crmDB)
	manifestSvc := manifest.NewService(cfg.ClientDir, cfg.ConfigFile)

	var producer *events.Producer
	if cfg.KafkaAddress != "" {
		producer = events.NewProducer(cfg.KafkaAddress)
	}

	var searchSvc *search.Service
	if cfg.ESURL != "" {
		esClient, err := search.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		searchSvc = &search.Service{ES: esClient, Index: "contacts"}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(requestLogger(logger))

	guard := &authmw.Guard{Tokens: tokens, Users: users}
	httpserver.Register(e, &httpserver.Deps{
		Auth:     &handlers.AuthHandler{Users: users, Tokens: tokens},
		Users:    &handlers.UserHandler{Users: users, Producer: producer},
		Contacts: &handlers.ContactHandler{Contacts: contacts, Producer: producer, Search: searchSvc},
		Manifest: &handlers.ManifestHandler{Manifest: manifestSvc},
		Guard:    guard,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()
	logger.Info("server started", "addr", cfg.HTTPAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := authDB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("auth db close error", "error", err)
		}
	}
	if sqlDB, err := crmDB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("crm db close error", "error", err)
		}
	}
	if err := producer.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// requestLogger puts a request-scoped logger into the context so handlers
// and services can pull it back out with logging.FromContext.
func requestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			l := base.With("request_id", reqID)
			ctx := logging.IntoContext(c.Request().Context(), l)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
