package database

import (
	"gorm.io/gorm"

	"github.com/Its-SuperNova/duchess-backend-sub000/internal/domain"
)

func Migrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(&domain.CheckoutSession{})
}
