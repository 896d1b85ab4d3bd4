// Package dailyreport stores end-of-day store reports and computes reorder suggestions.
package dailyreport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/internal/stock"
	"github.com/yuditriaji/zaiko-backend/internal/threshold"
	"github.com/yuditriaji/zaiko-backend/pkg/access"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"github.com/yuditriaji/zaiko-backend/pkg/email"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier delivers low-stock alerts
type Notifier interface {
	SendLowStockAlert(ctx context.Context, toEmail, storeName, reportDate string, lines []email.LowStockLine) error
}

type Engine struct {
	db       *gorm.DB
	stock    *stock.Aggregator
	notifier Notifier
	alertTo  string
}

func NewEngine(db *gorm.DB, agg *stock.Aggregator) *Engine {
	return &Engine{db: db, stock: agg}
}

// WithAlerts makes Save mail low-stock materials to recipient after each successful save
func (e *Engine) WithAlerts(n Notifier, recipient string) *Engine {
	e.notifier = n
	e.alertTo = recipient
	return e
}

// Suggestion is the reorder proposal for one material in a store
type Suggestion struct {
	Material    database.Material `json:"material"`
	Stock       float64           `json:"stock"`
	Minimum     *float64          `json:"minimum_stock"`
	Status      threshold.Status  `json:"status"`
	Recommended float64           `json:"recommended"`
	Low         bool              `json:"low"`
}

// Suggestions computes the recommended reorder quantity of every catalog material in a store
func (e *Engine) Suggestions(ctx context.Context, p access.Principal, requested *uuid.UUID) ([]Suggestion, error) {
	storeID, err := p.ResolveStore(requested)
	if err != nil {
		return nil, err
	}
	return e.suggestions(ctx, e.db, e.stock, storeID)
}

func (e *Engine) suggestions(ctx context.Context, db *gorm.DB, agg *stock.Aggregator, storeID uuid.UUID) ([]Suggestion, error) {
	var materials []database.Material
	if err := db.WithContext(ctx).Order("name ASC").Find(&materials).Error; err != nil {
		return nil, err
	}
	var overrides []database.MaterialStoreMinimum
	if err := db.WithContext(ctx).Where("store_id = ?", storeID).Find(&overrides).Error; err != nil {
		return nil, err
	}
	levels, err := agg.Levels(ctx, stock.Filter{StoreID: &storeID})
	if err != nil {
		return nil, err
	}

	minimums := threshold.NewMinimumTable(materials, overrides)
	out := make([]Suggestion, 0, len(materials))
	for _, m := range materials {
		qty := levels.Store(m.ID, storeID)
		minimum := minimums.Applicable(m.ID, &storeID)
		rec := Recommend(qty, minimum)
		out = append(out, Suggestion{
			Material:    m,
			Stock:       qty,
			Minimum:     minimum,
			Status:      threshold.Classify(qty, minimum),
			Recommended: rec,
			Low:         rec > 0,
		})
	}
	return out, nil
}

type OrderInput struct {
	MaterialID uuid.UUID `json:"material_id"`
	Quantity   float64   `json:"quantity"`
}

type Input struct {
	StoreID          *uuid.UUID   `json:"store_id"`
	ReportDate       string       `json:"report_date" binding:"required"`
	Sales            float64      `json:"sales"`
	WasteCount       float64      `json:"waste_count"`
	ProductionSets   float64      `json:"production_sets"`
	WorkingHours     float64      `json:"working_hours"`
	NextDeliveryDate *string      `json:"next_delivery_date"`
	Remarks          string       `json:"remarks"`
	Orders           []OrderInput `json:"orders"`
}

func (in Input) validate() error {
	if _, err := time.Parse(database.DateLayout, in.ReportDate); err != nil {
		return apperr.Validation("report_date must be YYYY-MM-DD")
	}
	if in.NextDeliveryDate != nil && *in.NextDeliveryDate != "" {
		if _, err := time.Parse(database.DateLayout, *in.NextDeliveryDate); err != nil {
			return apperr.Validation("next_delivery_date must be YYYY-MM-DD")
		}
	}
	if in.Sales < 0 || in.WasteCount < 0 || in.ProductionSets < 0 || in.WorkingHours < 0 {
		return apperr.Validation("report figures must not be negative")
	}
	return nil
}

// Report is a stored report with its derived metrics
type Report struct {
	database.DailyReport
	Metrics Metrics `json:"metrics"`
}

func newReport(r database.DailyReport) *Report {
	return &Report{DailyReport: r, Metrics: ComputeMetrics(r)}
}

// Save upserts the report of (store, date) and replaces its order lines.
// Order lines with a non-positive quantity or an unknown material are dropped.
func (e *Engine) Save(ctx context.Context, p access.Principal, in Input) (*Report, error) {
	storeID, err := p.ResolveStore(in.StoreID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := e.storeExists(ctx, storeID); err != nil {
		return nil, err
	}

	var next *string
	if in.NextDeliveryDate != nil && *in.NextDeliveryDate != "" {
		next = in.NextDeliveryDate
	}

	var saved database.DailyReport
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := database.DailyReport{
			StoreID:          storeID,
			ReportDate:       in.ReportDate,
			Sales:            in.Sales,
			WasteCount:       in.WasteCount,
			ProductionSets:   in.ProductionSets,
			WorkingHours:     in.WorkingHours,
			NextDeliveryDate: next,
			Remarks:          in.Remarks,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "store_id"}, {Name: "report_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"sales", "waste_count", "production_sets", "working_hours",
				"next_delivery_date", "remarks", "updated_at",
			}),
		}).Omit(clause.Associations).Create(&row).Error; err != nil {
			return err
		}

		// the upsert may have kept an existing row, so read back the stored id
		if err := tx.Where("store_id = ? AND report_date = ?", storeID, in.ReportDate).
			First(&saved).Error; err != nil {
			return err
		}

		if err := tx.Where("report_id = ?", saved.ID).Delete(&database.DailyReportOrder{}).Error; err != nil {
			return err
		}
		orders, err := filterOrders(tx, saved.ID, in.Orders)
		if err != nil {
			return err
		}
		if len(orders) > 0 {
			if err := tx.Omit(clause.Associations).Create(&orders).Error; err != nil {
				return err
			}
		}
		saved.Orders = orders
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Wrap(apperr.KindConflict, err, fmt.Sprintf("A daily report for %s already exists", in.ReportDate))
		}
		return nil, err
	}

	e.alertLowStock(ctx, storeID, in.ReportDate)
	return newReport(saved), nil
}

// filterOrders keeps positive lines for known materials; a repeated material keeps its last line
func filterOrders(tx *gorm.DB, reportID uuid.UUID, lines []OrderInput) ([]database.DailyReportOrder, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if l.Quantity > 0 {
			ids = append(ids, l.MaterialID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var known []uuid.UUID
	if err := tx.Model(&database.Material{}).Where("id IN ?", ids).Pluck("id", &known).Error; err != nil {
		return nil, err
	}
	valid := make(map[uuid.UUID]bool, len(known))
	for _, id := range known {
		valid[id] = true
	}

	index := make(map[uuid.UUID]int)
	var orders []database.DailyReportOrder
	for _, l := range lines {
		if l.Quantity <= 0 || !valid[l.MaterialID] {
			continue
		}
		if i, ok := index[l.MaterialID]; ok {
			orders[i].Quantity = l.Quantity
			continue
		}
		index[l.MaterialID] = len(orders)
		orders = append(orders, database.DailyReportOrder{
			ReportID:   reportID,
			MaterialID: l.MaterialID,
			Quantity:   l.Quantity,
		})
	}
	return orders, nil
}

func (e *Engine) storeExists(ctx context.Context, storeID uuid.UUID) error {
	var count int64
	if err := e.db.WithContext(ctx).Model(&database.Store{}).Where("id = ?", storeID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.NotFound("Store not found")
	}
	return nil
}

func (e *Engine) alertLowStock(ctx context.Context, storeID uuid.UUID, reportDate string) {
	if e.notifier == nil || e.alertTo == "" {
		return
	}
	suggestions, err := e.suggestions(ctx, e.db, e.stock, storeID)
	if err != nil {
		log.Printf("low stock alert for store %s: %v", storeID, err)
		return
	}

	var lines []email.LowStockLine
	for _, s := range suggestions {
		if !s.Low {
			continue
		}
		lines = append(lines, email.LowStockLine{
			Material:    s.Material.Name,
			Unit:        s.Material.Unit,
			Stock:       s.Stock,
			Minimum:     *s.Minimum,
			Recommended: s.Recommended,
		})
	}
	if len(lines) == 0 {
		return
	}

	var store database.Store
	if err := e.db.WithContext(ctx).First(&store, "id = ?", storeID).Error; err != nil {
		log.Printf("low stock alert for store %s: %v", storeID, err)
		return
	}
	if err := e.notifier.SendLowStockAlert(ctx, e.alertTo, store.Name, reportDate, lines); err != nil {
		log.Printf("low stock alert for store %s: %v", storeID, err)
	}
}

// Get returns one report with its order lines
func (e *Engine) Get(ctx context.Context, p access.Principal, id uuid.UUID) (*Report, error) {
	var r database.DailyReport
	err := e.db.WithContext(ctx).Preload("Orders.Material").First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Daily report not found")
	}
	if err != nil {
		return nil, err
	}
	if err := p.Authorize(r.StoreID); err != nil {
		return nil, err
	}
	return newReport(r), nil
}

// List returns the reports of a store, newest first. month ("YYYY-MM") is optional.
func (e *Engine) List(ctx context.Context, p access.Principal, requested *uuid.UUID, month string) ([]Report, error) {
	storeID, err := p.ResolveStore(requested)
	if err != nil {
		return nil, err
	}

	q := e.db.WithContext(ctx).Preload("Orders").Where("store_id = ?", storeID)
	if month != "" {
		if _, err := time.Parse(database.MonthLayout, month); err != nil {
			return nil, apperr.Validation("month must be YYYY-MM")
		}
		q = q.Where("report_date LIKE ?", month+"-%")
	}

	var rows []database.DailyReport
	if err := q.Order("report_date DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Report, 0, len(rows))
	for _, r := range rows {
		out = append(out, *newReport(r))
	}
	return out, nil
}

// Delete removes a report and its order lines
func (e *Engine) Delete(ctx context.Context, p access.Principal, id uuid.UUID) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r database.DailyReport
		err := tx.First(&r, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Daily report not found")
		}
		if err != nil {
			return err
		}
		if err := p.Authorize(r.StoreID); err != nil {
			return err
		}
		if err := tx.Where("report_id = ?", r.ID).Delete(&database.DailyReportOrder{}).Error; err != nil {
			return err
		}
		return tx.Delete(&r).Error
	})
}
