package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"gorm.io/gorm"
)

// Registry maps movement type rows to their kinds. It is loaded once at startup and never mutated.
type Registry struct {
	byID   map[uuid.UUID]database.MovementKind
	byKind map[database.MovementKind]uuid.UUID
	types  []database.MovementType
}

// LoadRegistry reads the movement_types reference table
func LoadRegistry(ctx context.Context, db *gorm.DB) (*Registry, error) {
	var types []database.MovementType
	if err := db.WithContext(ctx).Order("created_at ASC").Find(&types).Error; err != nil {
		return nil, err
	}

	r := &Registry{
		byID:   make(map[uuid.UUID]database.MovementKind, len(types)),
		byKind: make(map[database.MovementKind]uuid.UUID, len(types)),
		types:  types,
	}
	for _, t := range types {
		r.byID[t.ID] = t.Code
		r.byKind[t.Code] = t.ID
	}
	return r, nil
}

// Sign returns the multiplier applied to quantities of the given movement type.
// Unknown types add to stock.
func (r *Registry) Sign(typeID uuid.UUID) float64 {
	return r.byID[typeID].Sign()
}

// TypeID returns the reference row id of kind. A missing row is an invariant violation.
func (r *Registry) TypeID(kind database.MovementKind) (uuid.UUID, error) {
	id, ok := r.byKind[kind]
	if !ok {
		return uuid.Nil, apperr.Invariant("movement type %q is missing from reference data", kind)
	}
	return id, nil
}

// Types returns the movement type rows in creation order
func (r *Registry) Types() []database.MovementType {
	return r.types
}
