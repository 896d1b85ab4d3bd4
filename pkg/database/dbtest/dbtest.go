// Package dbtest provides an in-memory SQLite database migrated with the production migrations.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a fresh migrated database that lives as long as the test
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&_pragma=foreign_keys(1)", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// a single connection keeps the in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Store creates a store with the given name
func Store(t testing.TB, db *gorm.DB, name string) database.Store {
	t.Helper()
	s := database.Store{Name: name}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("create store: %v", err)
	}
	return s
}

// Material creates a material with an optional global minimum
func Material(t testing.TB, db *gorm.DB, name string, minimum *float64) database.Material {
	t.Helper()
	m := database.Material{Name: name, Unit: "pcs", MinimumStock: minimum}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("create material: %v", err)
	}
	return m
}

// StoreMinimum sets a per-store minimum override
func StoreMinimum(t testing.TB, db *gorm.DB, materialID, storeID uuid.UUID, minimum float64) {
	t.Helper()
	row := database.MaterialStoreMinimum{MaterialID: materialID, StoreID: storeID, MinimumStock: minimum}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create store minimum: %v", err)
	}
}

// Movement appends a ledger entry of the given kind
func Movement(t testing.TB, db *gorm.DB, storeID, materialID uuid.UUID, kind database.MovementKind, quantity float64) database.InventoryMovement {
	t.Helper()
	var mt database.MovementType
	if err := db.Where("code = ?", kind).First(&mt).Error; err != nil {
		t.Fatalf("movement type %s: %v", kind, err)
	}
	mv := database.InventoryMovement{
		StoreID:        storeID,
		MaterialID:     materialID,
		MovementTypeID: mt.ID,
		Quantity:       quantity,
		OccurredAt:     time.Now(),
	}
	if err := db.Create(&mv).Error; err != nil {
		t.Fatalf("create movement: %v", err)
	}
	return mv
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
