package material

import (
	"context"

	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/internal/stock"
	"github.com/yuditriaji/zaiko-backend/internal/threshold"
	"github.com/yuditriaji/zaiko-backend/pkg/access"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"gorm.io/gorm"
)

// StoreStock is the stock of a material in one store
type StoreStock struct {
	StoreID  uuid.UUID        `json:"store_id"`
	Name     string           `json:"name"`
	Stock    float64          `json:"stock"`
	Minimum  *float64         `json:"minimum_stock"`
	Override bool             `json:"has_override"`
	Status   threshold.Status `json:"status"`
}

// Overview is a catalog entry with its current stock
type Overview struct {
	database.Material
	TotalStock float64          `json:"total_stock"`
	Status     threshold.Status `json:"status"`
	Stores     []StoreStock     `json:"stores"`
}

// OverviewFilter narrows the overview to one material and/or one store column
type OverviewFilter struct {
	MaterialID *uuid.UUID
	StoreID    *uuid.UUID
}

// BuildOverview computes total and per-store stock with their statuses.
// Admins see every store; staff see their own store only, and their total is that store's stock.
func BuildOverview(ctx context.Context, db *gorm.DB, agg *stock.Aggregator, p access.Principal, f OverviewFilter) ([]Overview, error) {
	db = db.WithContext(ctx)

	storeQuery := db.Order("name ASC")
	levelFilter := stock.Filter{MaterialID: f.MaterialID}
	if !p.IsAdmin() {
		storeID, err := p.ResolveStore(f.StoreID)
		if err != nil {
			return nil, err
		}
		storeQuery = storeQuery.Where("id = ?", storeID)
		levelFilter.StoreID = &storeID
	} else if f.StoreID != nil {
		storeQuery = storeQuery.Where("id = ?", *f.StoreID)
	}

	var stores []database.Store
	if err := storeQuery.Find(&stores).Error; err != nil {
		return nil, err
	}
	if f.StoreID != nil && len(stores) == 0 {
		return nil, apperr.NotFound("Store not found")
	}

	materialQuery := db.Preload("Category").Order("name ASC")
	overrideQuery := db.Model(&database.MaterialStoreMinimum{})
	if f.MaterialID != nil {
		materialQuery = materialQuery.Where("id = ?", *f.MaterialID)
		overrideQuery = overrideQuery.Where("material_id = ?", *f.MaterialID)
	}

	var materials []database.Material
	if err := materialQuery.Find(&materials).Error; err != nil {
		return nil, err
	}
	if f.MaterialID != nil && len(materials) == 0 {
		return nil, apperr.NotFound("Material not found")
	}
	var overrides []database.MaterialStoreMinimum
	if err := overrideQuery.Find(&overrides).Error; err != nil {
		return nil, err
	}

	levels, err := agg.Levels(ctx, levelFilter)
	if err != nil {
		return nil, err
	}

	minimums := threshold.NewMinimumTable(materials, overrides)
	out := make([]Overview, 0, len(materials))
	for _, m := range materials {
		// a store-scoped total is that store's stock, so its override applies
		total := levels.Total(m.ID)
		o := Overview{
			Material:   m,
			TotalStock: total,
			Status:     threshold.Classify(total, minimums.Applicable(m.ID, levelFilter.StoreID)),
			Stores:     make([]StoreStock, 0, len(stores)),
		}
		for _, s := range stores {
			qty := levels.Store(m.ID, s.ID)
			storeID := s.ID
			minimum := minimums.Applicable(m.ID, &storeID)
			_, override := minimums.Override(m.ID, s.ID)
			o.Stores = append(o.Stores, StoreStock{
				StoreID:  s.ID,
				Name:     s.Name,
				Stock:    qty,
				Minimum:  minimum,
				Override: override,
				Status:   threshold.Classify(qty, minimum),
			})
		}
		out = append(out, o)
	}
	return out, nil
}

// GetOverview returns the overview of a single material
func GetOverview(ctx context.Context, db *gorm.DB, agg *stock.Aggregator, p access.Principal, materialID uuid.UUID) (*Overview, error) {
	items, err := BuildOverview(ctx, db, agg, p, OverviewFilter{MaterialID: &materialID})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("Material not found")
	}
	return &items[0], nil
}

// LowStock returns overview entries with at least one store below its minimum
func LowStock(items []Overview) []Overview {
	var low []Overview
	for _, o := range items {
		for _, s := range o.Stores {
			if s.Status == threshold.StatusLow {
				low = append(low, o)
				break
			}
		}
	}
	return low
}
