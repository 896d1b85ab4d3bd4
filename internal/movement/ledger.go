// Package movement records manual entries in the inventory ledger.
package movement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/internal/stock"
	"github.com/yuditriaji/zaiko-backend/pkg/access"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultListLimit = 500

type Ledger struct {
	db    *gorm.DB
	kinds *stock.Registry
}

func NewLedger(db *gorm.DB, kinds *stock.Registry) *Ledger {
	return &Ledger{db: db, kinds: kinds}
}

type Input struct {
	StoreID    *uuid.UUID            `json:"store_id"`
	MaterialID uuid.UUID             `json:"material_id" binding:"required"`
	Kind       database.MovementKind `json:"movement_type" binding:"required"`
	Quantity   float64               `json:"quantity"`
	OccurredAt *time.Time            `json:"occurred_at"`
	Memo       string                `json:"memo"`
}

// checkQuantity enforces the manual entry rules of each kind
func checkQuantity(kind database.MovementKind, quantity float64) error {
	switch kind {
	case database.KindInbound, database.KindOutbound, database.KindWaste:
		if quantity <= 0 {
			return apperr.Validation("%s quantity must be positive", kind)
		}
	case database.KindAdjustment:
		if quantity == 0 {
			return apperr.Validation("adjustment quantity must not be zero")
		}
	case database.KindStocktakeAdjustment:
		return apperr.Validation("stocktake adjustments are created by confirming a stocktake")
	default:
		return apperr.Validation("unknown movement_type %q", kind)
	}
	return nil
}

func (l *Ledger) build(tx *gorm.DB, storeID uuid.UUID, in Input) (*database.InventoryMovement, error) {
	if err := checkQuantity(in.Kind, in.Quantity); err != nil {
		return nil, err
	}
	typeID, err := l.kinds.TypeID(in.Kind)
	if err != nil {
		return nil, err
	}

	for _, ref := range []struct {
		model interface{}
		id    uuid.UUID
		name  string
	}{
		{&database.Store{}, storeID, "store_id"},
		{&database.Material{}, in.MaterialID, "material_id"},
	} {
		var count int64
		if err := tx.Model(ref.model).Where("id = ?", ref.id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, apperr.Validation("%s does not exist", ref.name)
		}
	}

	occurredAt := time.Now()
	if in.OccurredAt != nil && !in.OccurredAt.IsZero() {
		occurredAt = *in.OccurredAt
	}
	return &database.InventoryMovement{
		StoreID:        storeID,
		MaterialID:     in.MaterialID,
		MovementTypeID: typeID,
		Quantity:       in.Quantity,
		OccurredAt:     occurredAt,
		Memo:           in.Memo,
	}, nil
}

// Create appends a manual movement for the principal's store
func (l *Ledger) Create(ctx context.Context, p access.Principal, in Input) (*database.InventoryMovement, error) {
	storeID, err := p.ResolveStore(in.StoreID)
	if err != nil {
		return nil, err
	}

	var mv *database.InventoryMovement
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		built, err := l.build(tx, storeID, in)
		if err != nil {
			return err
		}
		mv = built
		return tx.Omit(clause.Associations).Create(mv).Error
	})
	if err != nil {
		return nil, err
	}
	return mv, nil
}

func (l *Ledger) loadManual(tx *gorm.DB, p access.Principal, id uuid.UUID) (*database.InventoryMovement, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("Only admins can change recorded movements")
	}
	var mv database.InventoryMovement
	err := tx.First(&mv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Movement not found")
	}
	if err != nil {
		return nil, err
	}
	if mv.StocktakeSessionID != nil {
		return nil, apperr.Invariant("Movement %s was generated by a confirmed stocktake and cannot be changed", mv.ID)
	}
	return &mv, nil
}

// Update rewrites a manual movement. Admin only.
func (l *Ledger) Update(ctx context.Context, p access.Principal, id uuid.UUID, in Input) (old, updated *database.InventoryMovement, err error) {
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := l.loadManual(tx, p, id)
		if err != nil {
			return err
		}
		storeID := current.StoreID
		if in.StoreID != nil && *in.StoreID != uuid.Nil {
			storeID = *in.StoreID
		}
		next, err := l.build(tx, storeID, in)
		if err != nil {
			return err
		}
		before := *current
		if err := tx.Model(current).
			Select("store_id", "material_id", "movement_type_id", "quantity", "occurred_at", "memo").
			Updates(next).Error; err != nil {
			return err
		}
		next.ID = current.ID
		next.CreatedAt = current.CreatedAt
		old, updated = &before, next
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return old, updated, nil
}

// Delete removes a manual movement. Admin only.
func (l *Ledger) Delete(ctx context.Context, p access.Principal, id uuid.UUID) (*database.InventoryMovement, error) {
	var deleted *database.InventoryMovement
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mv, err := l.loadManual(tx, p, id)
		if err != nil {
			return err
		}
		deleted = mv
		return tx.Delete(mv).Error
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

type Filter struct {
	StoreID    *uuid.UUID
	MaterialID *uuid.UUID
	Kind       database.MovementKind
	From       *time.Time
	To         *time.Time
	Limit      int
}

// List returns movements newest first. Staff only see their store.
func (l *Ledger) List(ctx context.Context, p access.Principal, f Filter) ([]database.InventoryMovement, error) {
	q := l.db.WithContext(ctx).Preload("Store").Preload("Material").Preload("MovementType")

	if p.IsAdmin() {
		if f.StoreID != nil {
			q = q.Where("store_id = ?", *f.StoreID)
		}
	} else {
		storeID, err := p.ResolveStore(f.StoreID)
		if err != nil {
			return nil, err
		}
		q = q.Where("store_id = ?", storeID)
	}
	if f.MaterialID != nil {
		q = q.Where("material_id = ?", *f.MaterialID)
	}
	if f.Kind != "" {
		typeID, err := l.kinds.TypeID(f.Kind)
		if err != nil {
			return nil, apperr.Validation("unknown movement_type %q", f.Kind)
		}
		q = q.Where("movement_type_id = ?", typeID)
	}
	if f.From != nil {
		q = q.Where("occurred_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("occurred_at < ?", *f.To)
	}

	limit := f.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	var movements []database.InventoryMovement
	if err := q.Order("occurred_at DESC").Limit(limit).Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// Types returns the movement types staff may pick for manual entries
func (l *Ledger) Types() []database.MovementType {
	var out []database.MovementType
	for _, t := range l.kinds.Types() {
		if t.Code != database.KindStocktakeAdjustment {
			out = append(out, t)
		}
	}
	return out
}
