package material

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StoreMinimumInput struct {
	StoreID      uuid.UUID `json:"store_id"`
	MinimumStock *float64  `json:"minimum_stock"`
}

type MaterialInput struct {
	Name          string              `json:"name" binding:"required"`
	Unit          string              `json:"unit" binding:"required"`
	PricePerUnit  float64             `json:"price_per_unit"`
	MinimumStock  *float64            `json:"minimum_stock"`
	CategoryID    *uuid.UUID          `json:"category_id"`
	Memo          string              `json:"memo"`
	StoreMinimums []StoreMinimumInput `json:"store_minimums"`
}

func validMinimum(v *float64) bool {
	return v == nil || (!math.IsNaN(*v) && !math.IsInf(*v, 0) && *v >= 0)
}

func (in *MaterialInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.Name == "" || in.Unit == "" {
		return apperr.Validation("name and unit are required")
	}
	if in.PricePerUnit < 0 {
		return apperr.Validation("price_per_unit must not be negative")
	}
	if !validMinimum(in.MinimumStock) {
		return apperr.Validation("minimum_stock must be a non-negative number")
	}
	for _, sm := range in.StoreMinimums {
		if !validMinimum(sm.MinimumStock) {
			return apperr.Validation("store minimum_stock must be a non-negative number")
		}
	}
	return nil
}

// SaveMaterial creates a material, or updates it when id is non-nil, and replaces its store overrides.
// Overrides without a minimum are dropped.
func SaveMaterial(ctx context.Context, db *gorm.DB, id *uuid.UUID, in MaterialInput) (*database.Material, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var material database.Material
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.CategoryID != nil {
			var count int64
			if err := tx.Model(&database.MaterialCategory{}).Where("id = ?", *in.CategoryID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return apperr.Validation("category_id does not exist")
			}
		}

		fields := database.Material{
			Name:         in.Name,
			Unit:         in.Unit,
			PricePerUnit: in.PricePerUnit,
			MinimumStock: in.MinimumStock,
			CategoryID:   in.CategoryID,
			Memo:         in.Memo,
		}
		if id == nil {
			material = fields
			if err := tx.Omit(clause.Associations).Create(&material).Error; err != nil {
				return err
			}
		} else {
			if err := tx.First(&material, "id = ?", *id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("Material not found")
				}
				return err
			}
			if err := tx.Model(&material).
				Select("name", "unit", "price_per_unit", "minimum_stock", "category_id", "memo").
				Updates(&fields).Error; err != nil {
				return err
			}
			material.Name = fields.Name
			material.Unit = fields.Unit
			material.PricePerUnit = fields.PricePerUnit
			material.MinimumStock = fields.MinimumStock
			material.CategoryID = fields.CategoryID
			material.Memo = fields.Memo
		}

		return replaceStoreMinimums(tx, material.ID, in.StoreMinimums)
	})
	if err != nil {
		return nil, err
	}
	return &material, nil
}

func replaceStoreMinimums(tx *gorm.DB, materialID uuid.UUID, inputs []StoreMinimumInput) error {
	if err := tx.Where("material_id = ?", materialID).Delete(&database.MaterialStoreMinimum{}).Error; err != nil {
		return err
	}

	byStore := make(map[uuid.UUID]float64)
	var order []uuid.UUID
	for _, sm := range inputs {
		if sm.MinimumStock == nil {
			continue
		}
		if _, seen := byStore[sm.StoreID]; !seen {
			order = append(order, sm.StoreID)
		}
		byStore[sm.StoreID] = *sm.MinimumStock
	}
	if len(order) == 0 {
		return nil
	}

	var known int64
	if err := tx.Model(&database.Store{}).Where("id IN ?", order).Count(&known).Error; err != nil {
		return err
	}
	if int(known) != len(order) {
		return apperr.Validation("store_minimums reference an unknown store")
	}

	rows := make([]database.MaterialStoreMinimum, 0, len(order))
	for _, storeID := range order {
		rows = append(rows, database.MaterialStoreMinimum{
			MaterialID:   materialID,
			StoreID:      storeID,
			MinimumStock: byStore[storeID],
		})
	}
	return tx.Create(&rows).Error
}

// DeleteMaterial removes a material and its store overrides.
// A material referenced by the ledger, a count or an order line cannot be deleted.
func DeleteMaterial(ctx context.Context, db *gorm.DB, id uuid.UUID) (*database.Material, error) {
	var material database.Material
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&material, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("Material not found")
			}
			return err
		}

		for _, ref := range []interface{}{
			&database.InventoryMovement{},
			&database.StocktakeItem{},
			&database.StocktakeOrderItem{},
			&database.DailyReportOrder{},
		} {
			var count int64
			if err := tx.Model(ref).Where("material_id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return apperr.Conflict("Material %s is in use by stock records and cannot be deleted", material.Name)
			}
		}

		if err := tx.Where("material_id = ?", id).Delete(&database.MaterialStoreMinimum{}).Error; err != nil {
			return err
		}
		return tx.Delete(&material).Error
	})
	if database.IsForeignKeyViolation(err) {
		return nil, apperr.Wrap(apperr.KindConflict, err, fmt.Sprintf("Material %s is in use by stock records and cannot be deleted", material.Name))
	}
	if err != nil {
		return nil, err
	}
	return &material, nil
}

// StoreMinimums returns the overrides of a material
func StoreMinimums(ctx context.Context, db *gorm.DB, materialID uuid.UUID) ([]database.MaterialStoreMinimum, error) {
	var rows []database.MaterialStoreMinimum
	err := db.WithContext(ctx).Where("material_id = ?", materialID).Find(&rows).Error
	return rows, err
}
