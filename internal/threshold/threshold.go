// Package threshold classifies stock quantities against reorder minimums.
package threshold

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
)

type Status string

const (
	StatusUnknown Status = "unknown"
	StatusLow     Status = "low"
	StatusOK      Status = "ok"
	StatusHigh    Status = "high"
)

// HighStockFactor is the multiple of the minimum above which stock counts as high
const HighStockFactor = 2

// Classify returns the status of quantity against minimum.
// A nil or non-finite minimum is unknown; a non-positive minimum never reports low or high.
func Classify(quantity float64, minimum *float64) Status {
	if minimum == nil || math.IsNaN(*minimum) || math.IsInf(*minimum, 0) {
		return StatusUnknown
	}
	m := *minimum
	if m < 0 {
		m = 0
	}
	if m > 0 && quantity < m {
		return StatusLow
	}
	if m > 0 && quantity > HighStockFactor*m {
		return StatusHigh
	}
	return StatusOK
}

// ParseMinimum parses a minimum from form or import input. Blank input means no minimum.
func ParseMinimum(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperr.Validation("minimum stock %q is not a number", raw)
	}
	if v < 0 {
		return nil, apperr.Validation("minimum stock must not be negative")
	}
	return &v, nil
}

type pairKey struct {
	material uuid.UUID
	store    uuid.UUID
}

// MinimumTable resolves the minimum that applies to a material, optionally in one store.
type MinimumTable struct {
	global    map[uuid.UUID]*float64
	overrides map[pairKey]float64
}

// NewMinimumTable builds the lookup from the catalog and its per-store overrides
func NewMinimumTable(materials []database.Material, overrides []database.MaterialStoreMinimum) *MinimumTable {
	t := &MinimumTable{
		global:    make(map[uuid.UUID]*float64, len(materials)),
		overrides: make(map[pairKey]float64, len(overrides)),
	}
	for _, m := range materials {
		t.global[m.ID] = m.MinimumStock
	}
	for _, o := range overrides {
		t.overrides[pairKey{material: o.MaterialID, store: o.StoreID}] = o.MinimumStock
	}
	return t
}

// Applicable returns the store override when present, else the material's global minimum.
// A nil store always yields the global minimum.
func (t *MinimumTable) Applicable(materialID uuid.UUID, storeID *uuid.UUID) *float64 {
	if storeID != nil {
		if v, ok := t.overrides[pairKey{material: materialID, store: *storeID}]; ok {
			return &v
		}
	}
	return t.global[materialID]
}

// Override returns the per-store override only
func (t *MinimumTable) Override(materialID, storeID uuid.UUID) (float64, bool) {
	v, ok := t.overrides[pairKey{material: materialID, store: storeID}]
	return v, ok
}
