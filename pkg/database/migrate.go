package database

import (
	"errors"
	"strings"

	"github.com/go-gormigrate/gormigrate/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var movementTypeNames = map[MovementKind]string{
	KindInbound:             "Inbound",
	KindOutbound:            "Outbound",
	KindWaste:               "Waste",
	KindAdjustment:          "Adjustment",
	KindStocktakeAdjustment: "Stocktake adjustment",
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20240601_create_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&Company{},
					&Store{},
					&User{},
					&MaterialCategory{},
					&Material{},
					&MaterialStoreMinimum{},
					&MovementType{},
					&InventoryMovement{},
					&DailyReport{},
					&DailyReportOrder{},
					&StocktakeSession{},
					&StocktakeItem{},
					&StocktakeOrderItem{},
					&ActivityLog{},
				)
			},
		},
		{
			ID: "20240601_seed_movement_types",
			Migrate: func(tx *gorm.DB) error {
				for _, kind := range MovementKinds {
					var existing MovementType
					err := tx.Where("code = ?", kind).First(&existing).Error
					if err == nil {
						continue
					}
					if !errors.Is(err, gorm.ErrRecordNotFound) {
						return err
					}
					if err := tx.Create(&MovementType{Code: kind, Name: movementTypeNames[kind]}).Error; err != nil {
						return err
					}
				}
				return nil
			},
		},
	})

	return m.Migrate()
}

// SeedAdmin creates the initial admin account when no user with that email exists yet
func SeedAdmin(db *gorm.DB, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}

	var existing User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.Create(&User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         "Administrator",
		Role:         RoleAdmin,
		IsActive:     true,
	}).Error
}
