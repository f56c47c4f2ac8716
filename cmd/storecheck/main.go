// storecheck probes every session-store tier and prints the aggregate
// health as JSON. Exit code 1 when neither the fast nor the durable tier
// is reachable (the service would be running on the in-process fallback).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Its-SuperNova/duchess-backend-sub000/internal/cache"
	"github.com/Its-SuperNova/duchess-backend-sub000/internal/config"
	"github.com/Its-SuperNova/duchess-backend-sub000/internal/database"
	"github.com/Its-SuperNova/duchess-backend-sub000/internal/observability"
	"github.com/Its-SuperNova/duchess-backend-sub000/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := observability.NewLoggerWithWriter(os.Stderr, "error", cfg.LogFormat)

	var fast *session.RedisStore
	if client := cache.NewClient(cfg); client != nil {
		fast = session.NewRedisStore(client, cfg.SessionKeyPrefix, cfg.SessionTTL)
	}
	var durable *session.DBStore
	if db, err := database.Open(cfg); err == nil && db != nil {
		durable = session.NewDBStore(db, cfg.SessionTTL)
	}
	store := session.NewTieredStore(fast, durable, session.NewMemoryStore(cfg.SessionTTL), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health := store.HealthCheck(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(health)

	if !health.FastTier && !health.DurableTier {
		fmt.Fprintln(os.Stderr, "storecheck: only the in-process fallback tier is available")
		os.Exit(1)
	}
}
