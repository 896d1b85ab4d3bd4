package material

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/internal/stock"
	"github.com/yuditriaji/zaiko-backend/internal/threshold"
	"github.com/yuditriaji/zaiko-backend/pkg/access"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"github.com/yuditriaji/zaiko-backend/pkg/database/dbtest"
	"gorm.io/gorm"
)

func aggregator(t *testing.T, db *gorm.DB) *stock.Aggregator {
	t.Helper()
	kinds, err := stock.LoadRegistry(context.Background(), db)
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	return stock.NewAggregator(db, kinds)
}

func num(v float64) *float64 { return &v }

func TestOverviewScenario(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	agg := aggregator(t, db)

	s1 := dbtest.Store(t, db, "Store 1")
	s2 := dbtest.Store(t, db, "Store 2")
	s3 := dbtest.Store(t, db, "Store 3")
	x := dbtest.Material(t, db, "X", num(50))
	dbtest.StoreMinimum(t, db, x.ID, s2.ID, 80)
	dbtest.StoreMinimum(t, db, x.ID, s3.ID, 30)

	for _, s := range []database.Store{s1, s2, s3} {
		dbtest.Movement(t, db, s.ID, x.ID, database.KindInbound, 100)
		dbtest.Movement(t, db, s.ID, x.ID, database.KindOutbound, 30)
	}

	admin := access.Principal{UserID: uuid.New(), Role: database.RoleAdmin}
	items, err := BuildOverview(ctx, db, agg, admin, OverviewFilter{})
	if err != nil {
		t.Fatalf("BuildOverview() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	o := items[0]
	if o.TotalStock != 210 || o.Status != threshold.StatusHigh {
		t.Errorf("total = %v (%s), want 210 (high)", o.TotalStock, o.Status)
	}

	want := map[uuid.UUID]threshold.Status{
		s1.ID: threshold.StatusOK,
		s2.ID: threshold.StatusLow,
		s3.ID: threshold.StatusHigh,
	}
	for _, s := range o.Stores {
		if s.Stock != 70 {
			t.Errorf("%s stock = %v, want 70", s.Name, s.Stock)
		}
		if s.Status != want[s.StoreID] {
			t.Errorf("%s status = %s, want %s", s.Name, s.Status, want[s.StoreID])
		}
	}

	if low := LowStock(items); len(low) != 1 {
		t.Errorf("LowStock() = %d, want 1", len(low))
	}

	staff := access.Principal{UserID: uuid.New(), Role: database.RoleStaff, StoreID: &s3.ID}
	scoped, err := BuildOverview(ctx, db, agg, staff, OverviewFilter{})
	if err != nil {
		t.Fatalf("BuildOverview() staff error = %v", err)
	}
	if len(scoped[0].Stores) != 1 || scoped[0].TotalStock != 70 {
		t.Errorf("staff overview = %+v", scoped[0])
	}
	if scoped[0].Status != scoped[0].Stores[0].Status || scoped[0].Status != threshold.StatusHigh {
		t.Errorf("staff total status = %s, store status = %s, want both high", scoped[0].Status, scoped[0].Stores[0].Status)
	}

	lowStaff := access.Principal{UserID: uuid.New(), Role: database.RoleStaff, StoreID: &s2.ID}
	lowScoped, err := BuildOverview(ctx, db, agg, lowStaff, OverviewFilter{})
	if err != nil {
		t.Fatalf("BuildOverview() staff error = %v", err)
	}
	if lowScoped[0].Status != threshold.StatusLow {
		t.Errorf("store 2 staff total status = %s, want low", lowScoped[0].Status)
	}
	if _, err := BuildOverview(ctx, db, agg, staff, OverviewFilter{StoreID: &s1.ID}); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("staff overview of other store error = %v", err)
	}
}

func TestSaveMaterialReplacesOverrides(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	s1 := dbtest.Store(t, db, "Store 1")
	s2 := dbtest.Store(t, db, "Store 2")

	m, err := SaveMaterial(ctx, db, nil, MaterialInput{
		Name:         " Butter ",
		Unit:         "kg",
		MinimumStock: num(5),
		StoreMinimums: []StoreMinimumInput{
			{StoreID: s1.ID, MinimumStock: num(8)},
			{StoreID: s2.ID, MinimumStock: num(3)},
		},
	})
	if err != nil {
		t.Fatalf("create error = %v", err)
	}
	if m.Name != "Butter" {
		t.Errorf("name = %q, want trimmed", m.Name)
	}

	_, err = SaveMaterial(ctx, db, &m.ID, MaterialInput{
		Name: "Butter",
		Unit: "kg",
		StoreMinimums: []StoreMinimumInput{
			{StoreID: s2.ID, MinimumStock: num(4)},
			{StoreID: s1.ID},
		},
	})
	if err != nil {
		t.Fatalf("update error = %v", err)
	}

	rows, err := StoreMinimums(ctx, db, m.ID)
	if err != nil {
		t.Fatalf("StoreMinimums() error = %v", err)
	}
	if len(rows) != 1 || rows[0].StoreID != s2.ID || rows[0].MinimumStock != 4 {
		t.Errorf("overrides = %+v", rows)
	}

	var stored database.Material
	db.First(&stored, "id = ?", m.ID)
	if stored.MinimumStock != nil {
		t.Errorf("global minimum = %v, want cleared", *stored.MinimumStock)
	}
}

func TestSaveMaterialValidation(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	missing := uuid.New()

	tests := []struct {
		name string
		id   *uuid.UUID
		in   MaterialInput
		kind apperr.Kind
	}{
		{"blank name", nil, MaterialInput{Name: " ", Unit: "kg"}, apperr.KindValidation},
		{"negative minimum", nil, MaterialInput{Name: "A", Unit: "kg", MinimumStock: num(-1)}, apperr.KindValidation},
		{"negative price", nil, MaterialInput{Name: "A", Unit: "kg", PricePerUnit: -3}, apperr.KindValidation},
		{"unknown store", nil, MaterialInput{Name: "A", Unit: "kg", StoreMinimums: []StoreMinimumInput{{StoreID: uuid.New(), MinimumStock: num(1)}}}, apperr.KindValidation},
		{"unknown category", nil, MaterialInput{Name: "A", Unit: "kg", CategoryID: &missing}, apperr.KindValidation},
		{"unknown material", &missing, MaterialInput{Name: "A", Unit: "kg"}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SaveMaterial(ctx, db, tt.id, tt.in); !apperr.Is(err, tt.kind) {
				t.Errorf("SaveMaterial() error = %v, want kind %v", err, tt.kind)
			}
		})
	}
}

func TestDeleteMaterial(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	store := dbtest.Store(t, db, "Store 1")

	unused := dbtest.Material(t, db, "Unused", nil)
	dbtest.StoreMinimum(t, db, unused.ID, store.ID, 3)
	if _, err := DeleteMaterial(ctx, db, unused.ID); err != nil {
		t.Fatalf("DeleteMaterial() error = %v", err)
	}
	var overrides int64
	db.Model(&database.MaterialStoreMinimum{}).Where("material_id = ?", unused.ID).Count(&overrides)
	if overrides != 0 {
		t.Errorf("overrides = %d, want cascaded", overrides)
	}

	used := dbtest.Material(t, db, "Used", nil)
	dbtest.Movement(t, db, store.ID, used.ID, database.KindInbound, 1)
	if _, err := DeleteMaterial(ctx, db, used.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("DeleteMaterial(used) error = %v, want conflict", err)
	}
	if _, err := DeleteMaterial(ctx, db, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("DeleteMaterial(unknown) error = %v, want not found", err)
	}
}
