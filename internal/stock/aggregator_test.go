package stock

import (
	"context"
	"testing"

	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"github.com/yuditriaji/zaiko-backend/pkg/database/dbtest"
)

func TestStockFor(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	kinds, err := LoadRegistry(ctx, db)
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	agg := NewAggregator(db, kinds)

	storeA := dbtest.Store(t, db, "A")
	storeB := dbtest.Store(t, db, "B")
	flour := dbtest.Material(t, db, "Flour", nil)
	sugar := dbtest.Material(t, db, "Sugar", nil)

	dbtest.Movement(t, db, storeA.ID, flour.ID, database.KindInbound, 100)
	dbtest.Movement(t, db, storeA.ID, flour.ID, database.KindOutbound, 30)
	dbtest.Movement(t, db, storeB.ID, flour.ID, database.KindInbound, 10)
	dbtest.Movement(t, db, storeB.ID, flour.ID, database.KindWaste, 4)
	dbtest.Movement(t, db, storeB.ID, flour.ID, database.KindAdjustment, -1)
	dbtest.Movement(t, db, storeB.ID, flour.ID, database.KindStocktakeAdjustment, 2.5)

	tests := []struct {
		name     string
		material database.Material
		store    *database.Store
		want     float64
	}{
		{"inbound minus outbound", flour, &storeA, 70},
		{"waste and adjustments", flour, &storeB, 7.5},
		{"all stores", flour, nil, 77.5},
		{"no movements", sugar, &storeA, 0},
		{"no movements anywhere", sugar, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got float64
			var err error
			if tt.store != nil {
				got, err = agg.StockFor(ctx, tt.material.ID, &tt.store.ID)
			} else {
				got, err = agg.StockFor(ctx, tt.material.ID, nil)
			}
			if err != nil {
				t.Fatalf("StockFor() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("StockFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStockForIsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	entries := []struct {
		kind database.MovementKind
		qty  float64
	}{
		{database.KindInbound, 12},
		{database.KindWaste, 3},
		{database.KindOutbound, 5},
		{database.KindAdjustment, 2},
		{database.KindInbound, 1},
	}

	read := func(order []int) float64 {
		db := dbtest.Open(t)
		kinds, err := LoadRegistry(ctx, db)
		if err != nil {
			t.Fatalf("load registry: %v", err)
		}
		s := dbtest.Store(t, db, "A")
		m := dbtest.Material(t, db, "Milk", nil)
		for _, i := range order {
			dbtest.Movement(t, db, s.ID, m.ID, entries[i].kind, entries[i].qty)
		}
		got, err := NewAggregator(db, kinds).StockFor(ctx, m.ID, &s.ID)
		if err != nil {
			t.Fatalf("StockFor() error = %v", err)
		}
		return got
	}

	forward := read([]int{0, 1, 2, 3, 4})
	reverse := read([]int{4, 3, 2, 1, 0})
	if forward != reverse {
		t.Errorf("forward = %v, reverse = %v", forward, reverse)
	}
	if forward != 7 {
		t.Errorf("stock = %v, want 7", forward)
	}
}

func TestLevels(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	kinds, err := LoadRegistry(ctx, db)
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}

	a := dbtest.Store(t, db, "A")
	b := dbtest.Store(t, db, "B")
	m := dbtest.Material(t, db, "Eggs", nil)
	dbtest.Movement(t, db, a.ID, m.ID, database.KindInbound, 20)
	dbtest.Movement(t, db, b.ID, m.ID, database.KindInbound, 5)

	levels, err := NewAggregator(db, kinds).Levels(ctx, Filter{})
	if err != nil {
		t.Fatalf("Levels() error = %v", err)
	}
	if got := levels.Store(m.ID, a.ID); got != 20 {
		t.Errorf("Store(A) = %v, want 20", got)
	}
	if got := levels.Store(m.ID, b.ID); got != 5 {
		t.Errorf("Store(B) = %v, want 5", got)
	}
	if got := levels.Total(m.ID); got != 25 {
		t.Errorf("Total() = %v, want 25", got)
	}

	scoped, err := NewAggregator(db, kinds).Levels(ctx, Filter{StoreID: &b.ID})
	if err != nil {
		t.Fatalf("Levels() error = %v", err)
	}
	if got := scoped.Total(m.ID); got != 5 {
		t.Errorf("scoped Total() = %v, want 5", got)
	}
}

func TestRegistryTypeID(t *testing.T) {
	db := dbtest.Open(t)
	kinds, err := LoadRegistry(context.Background(), db)
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	for _, k := range database.MovementKinds {
		if _, err := kinds.TypeID(k); err != nil {
			t.Errorf("TypeID(%s) error = %v", k, err)
		}
	}
	if _, err := kinds.TypeID("transfer"); err == nil {
		t.Error("TypeID(transfer) expected error")
	}
}
