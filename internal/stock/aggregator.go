// Package stock derives current stock levels from the movement ledger.
package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"gorm.io/gorm"
)

// Key identifies one (material, store) pair
type Key struct {
	MaterialID uuid.UUID
	StoreID    uuid.UUID
}

// Levels holds signed stock sums. Missing pairs read as zero.
type Levels struct {
	byPair     map[Key]float64
	byMaterial map[uuid.UUID]float64
}

func newLevels() Levels {
	return Levels{
		byPair:     make(map[Key]float64),
		byMaterial: make(map[uuid.UUID]float64),
	}
}

// Store returns the stock of a material in one store
func (l Levels) Store(materialID, storeID uuid.UUID) float64 {
	return l.byPair[Key{MaterialID: materialID, StoreID: storeID}]
}

// Total returns the stock of a material across the stores included in the read
func (l Levels) Total(materialID uuid.UUID) float64 {
	return l.byMaterial[materialID]
}

// Filter narrows a levels read. Zero values mean "all".
type Filter struct {
	StoreID    *uuid.UUID
	MaterialID *uuid.UUID
}

// Aggregator computes stock from inventory_movements
type Aggregator struct {
	db    *gorm.DB
	kinds *Registry
}

func NewAggregator(db *gorm.DB, kinds *Registry) *Aggregator {
	return &Aggregator{db: db, kinds: kinds}
}

// WithTx returns an aggregator reading through tx
func (a *Aggregator) WithTx(tx *gorm.DB) *Aggregator {
	return &Aggregator{db: tx, kinds: a.kinds}
}

type sumRow struct {
	MaterialID     uuid.UUID
	StoreID        uuid.UUID
	MovementTypeID uuid.UUID
	Quantity       float64
}

// Levels reads signed stock sums for every (material, store) pair matching f.
// The grouped sums come from a single statement so the result reflects one snapshot of the ledger.
func (a *Aggregator) Levels(ctx context.Context, f Filter) (Levels, error) {
	q := a.db.WithContext(ctx).Model(&database.InventoryMovement{}).
		Select("material_id, store_id, movement_type_id, COALESCE(SUM(quantity), 0) AS quantity")
	if f.StoreID != nil {
		q = q.Where("store_id = ?", *f.StoreID)
	}
	if f.MaterialID != nil {
		q = q.Where("material_id = ?", *f.MaterialID)
	}

	var rows []sumRow
	if err := q.Group("material_id, store_id, movement_type_id").Scan(&rows).Error; err != nil {
		return Levels{}, err
	}

	levels := newLevels()
	for _, r := range rows {
		signed := r.Quantity * a.kinds.Sign(r.MovementTypeID)
		levels.byPair[Key{MaterialID: r.MaterialID, StoreID: r.StoreID}] += signed
		levels.byMaterial[r.MaterialID] += signed
	}
	return levels, nil
}

// StockFor returns the stock of one material in storeID, or across all stores when storeID is nil.
// A material without movements has zero stock.
func (a *Aggregator) StockFor(ctx context.Context, materialID uuid.UUID, storeID *uuid.UUID) (float64, error) {
	levels, err := a.Levels(ctx, Filter{StoreID: storeID, MaterialID: &materialID})
	if err != nil {
		return 0, err
	}
	return levels.Total(materialID), nil
}
