package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Its-SuperNova/duchess-backend-sub000/internal/config"
)

// Open connects to the durable store, or returns nil when no DATABASE_URL
// is configured so the session store can run on its remaining tiers.
func Open(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	return gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
}
