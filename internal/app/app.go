package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Its-SuperNova/duchess-backend-sub000/internal/cache"
	"github.com/Its-SuperNova/duchess-backend-sub000/internal/config"
	"github.com/Its-SuperNova/duchess-backend-sub000/internal/database"
	"github.com/Its-SuperNova/duchess-backend-sub000/internal/http/handler"
	"github.com/Its-SuperNova/duchess-backend-sub000/internal/observability"
	"github.com/Its-SuperNova/duchess-backend-sub000/internal/session"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	Store  *session.TieredStore
	Server *http.Server
}

// New wires the whole service: configuration, logger, store clients, the
// tiered session store, and the HTTP server. Clients are constructed once
// here and injected; there is no package-level shared state.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	redisClient := cache.NewClient(cfg)
	db, err := database.Open(cfg)
	if err != nil {
		// A down database at boot is not fatal; the store falls back.
		logger.Warn("database unavailable at startup", "error", err)
		db = nil
	}
	if err := database.Migrate(db); err != nil {
		logger.Warn("database migration failed", "error", err)
		db = nil
	}

	var fast *session.RedisStore
	if redisClient != nil {
		fast = session.NewRedisStore(redisClient, cfg.SessionKeyPrefix, cfg.SessionTTL)
	}
	var durable *session.DBStore
	if db != nil {
		durable = session.NewDBStore(db, cfg.SessionTTL)
	}
	store := session.NewTieredStore(fast, durable, session.NewMemoryStore(cfg.SessionTTL), logger)

	sessions := handler.NewSessionHandler(store)
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Get("/healthz", sessions.Health)
	router.Route("/api/v1", sessions.Routes)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &App{Config: cfg, Logger: logger, Store: store, Server: server}, nil
}
