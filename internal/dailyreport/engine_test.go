package dailyreport

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/internal/stock"
	"github.com/yuditriaji/zaiko-backend/pkg/access"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"github.com/yuditriaji/zaiko-backend/pkg/database/dbtest"
	"github.com/yuditriaji/zaiko-backend/pkg/email"
	"gorm.io/gorm"
)

type fakeNotifier struct {
	calls int
	lines []email.LowStockLine
	err   error
}

func (f *fakeNotifier) SendLowStockAlert(ctx context.Context, to, storeName, date string, lines []email.LowStockLine) error {
	f.calls++
	f.lines = lines
	return f.err
}

func newEngine(t *testing.T, db *gorm.DB) *Engine {
	t.Helper()
	kinds, err := stock.LoadRegistry(context.Background(), db)
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	return NewEngine(db, stock.NewAggregator(db, kinds))
}

func staff(storeID uuid.UUID) access.Principal {
	return access.Principal{UserID: uuid.New(), Role: database.RoleStaff, StoreID: &storeID}
}

func TestSaveTwiceKeepsOneReport(t *testing.T) {
	db := dbtest.Open(t)
	e := newEngine(t, db)
	ctx := context.Background()
	store := dbtest.Store(t, db, "Store 1")
	flour := dbtest.Material(t, db, "Flour", nil)
	p := staff(store.ID)

	first, err := e.Save(ctx, p, Input{
		ReportDate: "2024-06-01",
		Sales:      100,
		Orders:     []OrderInput{{MaterialID: flour.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("first Save() error = %v", err)
	}

	second, err := e.Save(ctx, p, Input{ReportDate: "2024-06-01", Sales: 250, WorkingHours: 5})
	if err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second save id = %s, want %s", second.ID, first.ID)
	}

	var rows []database.DailyReport
	db.Where("store_id = ? AND report_date = ?", store.ID, "2024-06-01").Find(&rows)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Sales != 250 {
		t.Errorf("sales = %v, want 250", rows[0].Sales)
	}

	var orders int64
	db.Model(&database.DailyReportOrder{}).Where("report_id = ?", first.ID).Count(&orders)
	if orders != 0 {
		t.Errorf("orders = %d, want 0 after replace", orders)
	}
	if second.Metrics.RevenuePerHour == nil || *second.Metrics.RevenuePerHour != 50 {
		t.Errorf("RevenuePerHour = %v, want 50", second.Metrics.RevenuePerHour)
	}
}

func TestSaveFiltersOrders(t *testing.T) {
	db := dbtest.Open(t)
	e := newEngine(t, db)
	store := dbtest.Store(t, db, "Store 1")
	flour := dbtest.Material(t, db, "Flour", nil)
	sugar := dbtest.Material(t, db, "Sugar", nil)

	r, err := e.Save(context.Background(), staff(store.ID), Input{
		ReportDate: "2024-06-02",
		Orders: []OrderInput{
			{MaterialID: flour.ID, Quantity: 2},
			{MaterialID: sugar.ID, Quantity: 0},
			{MaterialID: sugar.ID, Quantity: -1},
			{MaterialID: uuid.New(), Quantity: 5},
			{MaterialID: flour.ID, Quantity: 4},
		},
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(r.Orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(r.Orders))
	}
	if r.Orders[0].MaterialID != flour.ID || r.Orders[0].Quantity != 4 {
		t.Errorf("order = %+v", r.Orders[0])
	}
}

func TestSaveValidation(t *testing.T) {
	db := dbtest.Open(t)
	e := newEngine(t, db)
	store := dbtest.Store(t, db, "Store 1")
	other := dbtest.Store(t, db, "Store 2")
	ctx := context.Background()
	admin := access.Principal{UserID: uuid.New(), Role: database.RoleAdmin}

	tests := []struct {
		name string
		p    access.Principal
		in   Input
		kind apperr.Kind
	}{
		{"bad date", staff(store.ID), Input{ReportDate: "01/06/2024"}, apperr.KindValidation},
		{"bad delivery date", staff(store.ID), Input{ReportDate: "2024-06-01", NextDeliveryDate: strPtr("soon")}, apperr.KindValidation},
		{"negative hours", staff(store.ID), Input{ReportDate: "2024-06-01", WorkingHours: -1}, apperr.KindValidation},
		{"other store", staff(store.ID), Input{ReportDate: "2024-06-01", StoreID: &other.ID}, apperr.KindForbidden},
		{"admin without store", admin, Input{ReportDate: "2024-06-01"}, apperr.KindValidation},
		{"unknown store", admin, Input{ReportDate: "2024-06-01", StoreID: uuidPtr(uuid.New())}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Save(ctx, tt.p, tt.in)
			if !apperr.Is(err, tt.kind) {
				t.Errorf("Save() error = %v, want kind %v", err, tt.kind)
			}
		})
	}
}

func TestSuggestions(t *testing.T) {
	db := dbtest.Open(t)
	e := newEngine(t, db)
	store := dbtest.Store(t, db, "Store 1")
	flour := dbtest.Material(t, db, "Flour", dbtest.Float(50))
	sugar := dbtest.Material(t, db, "Sugar", nil)
	dbtest.StoreMinimum(t, db, flour.ID, store.ID, 80)
	dbtest.Movement(t, db, store.ID, flour.ID, database.KindInbound, 100)
	dbtest.Movement(t, db, store.ID, flour.ID, database.KindOutbound, 30)

	got, err := e.Suggestions(context.Background(), staff(store.ID), nil)
	if err != nil {
		t.Fatalf("Suggestions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("suggestions = %d, want 2", len(got))
	}

	bySuggestion := map[uuid.UUID]Suggestion{}
	for _, s := range got {
		bySuggestion[s.Material.ID] = s
	}
	f := bySuggestion[flour.ID]
	if f.Stock != 70 || f.Recommended != 10 || !f.Low {
		t.Errorf("flour = %+v", f)
	}
	s := bySuggestion[sugar.ID]
	if s.Recommended != 0 || s.Low {
		t.Errorf("sugar = %+v", s)
	}
}

func TestSaveSendsLowStockAlert(t *testing.T) {
	db := dbtest.Open(t)
	e := newEngine(t, db)
	n := &fakeNotifier{err: errors.New("smtp down")}
	e.WithAlerts(n, "owner@example.com")

	store := dbtest.Store(t, db, "Store 1")
	dbtest.Material(t, db, "Flour", dbtest.Float(5))
	dbtest.Material(t, db, "Salt", nil)

	if _, err := e.Save(context.Background(), staff(store.ID), Input{ReportDate: "2024-06-03"}); err != nil {
		t.Fatalf("Save() error = %v, alert failures must not fail the save", err)
	}
	if n.calls != 1 {
		t.Fatalf("alerts = %d, want 1", n.calls)
	}
	if len(n.lines) != 1 || n.lines[0].Material != "Flour" || n.lines[0].Recommended != 5 {
		t.Errorf("lines = %+v", n.lines)
	}
}

func TestListGetDelete(t *testing.T) {
	db := dbtest.Open(t)
	e := newEngine(t, db)
	ctx := context.Background()
	store := dbtest.Store(t, db, "Store 1")
	other := dbtest.Store(t, db, "Store 2")
	p := staff(store.ID)

	for _, d := range []string{"2024-05-31", "2024-06-01", "2024-06-15"} {
		if _, err := e.Save(ctx, p, Input{ReportDate: d}); err != nil {
			t.Fatalf("Save(%s) error = %v", d, err)
		}
	}

	june, err := e.List(ctx, p, nil, "2024-06")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(june) != 2 || june[0].ReportDate != "2024-06-15" {
		t.Fatalf("june = %+v", june)
	}

	if _, err := e.Get(ctx, staff(other.ID), june[0].ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("Get() from other store error = %v", err)
	}
	if err := e.Delete(ctx, p, june[0].ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := e.Get(ctx, p, june[0].ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Get() after delete error = %v", err)
	}
}

func strPtr(s string) *string        { return &s }
func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }
