// Package stocktake manages physical count sessions and reconciles them against the ledger.
package stocktake

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/internal/dailyreport"
	"github.com/yuditriaji/zaiko-backend/internal/stock"
	"github.com/yuditriaji/zaiko-backend/internal/threshold"
	"github.com/yuditriaji/zaiko-backend/pkg/access"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdjustmentTolerance is the smallest count difference that produces an adjustment movement
const AdjustmentTolerance = 1e-9

var errConfirmedConcurrently = errors.New("stocktake session confirmed concurrently")

type Engine struct {
	db    *gorm.DB
	stock *stock.Aggregator
	kinds *stock.Registry
}

func NewEngine(db *gorm.DB, agg *stock.Aggregator, kinds *stock.Registry) *Engine {
	return &Engine{db: db, stock: agg, kinds: kinds}
}

type CountInput struct {
	MaterialID      uuid.UUID `json:"material_id"`
	CountedQuantity *float64  `json:"counted_quantity"`
}

type OrderInput struct {
	MaterialID uuid.UUID `json:"material_id"`
	Quantity   float64   `json:"quantity"`
}

type Input struct {
	StoreID     *uuid.UUID   `json:"store_id"`
	CountDate   string       `json:"count_date" binding:"required"`
	SessionType string       `json:"session_type"`
	CountMonth  string       `json:"count_month"`
	Notes       string       `json:"notes"`
	Counts      []CountInput `json:"counts"`
	Orders      []OrderInput `json:"orders"`
}

// draft is a validated session ready to be written
type draft struct {
	countDate   string
	sessionType string
	countMonth  *string
	items       []database.StocktakeItem
	orders      []database.StocktakeOrderItem
}

func sessionType(raw string) (string, error) {
	switch raw {
	case "", database.SessionAdHoc:
		return database.SessionAdHoc, nil
	case database.SessionMonthly:
		return database.SessionMonthly, nil
	}
	return "", apperr.Validation("session_type must be %s or %s", database.SessionAdHoc, database.SessionMonthly)
}

// countMonth picks the month of a monthly session. An explicit month wins unless preferDate is set.
func countMonth(explicit, countDate string, preferDate bool) (string, error) {
	month := explicit
	if month == "" || preferDate {
		month = countDate[:len(database.MonthLayout)]
	}
	if _, err := time.Parse(database.MonthLayout, month); err != nil {
		return "", apperr.Validation("count_month must be YYYY-MM")
	}
	return month, nil
}

// prepare validates in against the catalog of storeID and builds the rows to store
func (e *Engine) prepare(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, in Input, preferDate bool) (*draft, error) {
	if _, err := time.Parse(database.DateLayout, in.CountDate); err != nil {
		return nil, apperr.Validation("count_date must be YYYY-MM-DD")
	}
	kind, err := sessionType(in.SessionType)
	if err != nil {
		return nil, err
	}

	d := &draft{countDate: in.CountDate, sessionType: kind}
	if kind == database.SessionMonthly {
		month, err := countMonth(in.CountMonth, in.CountDate, preferDate)
		if err != nil {
			return nil, err
		}
		d.countMonth = &month
	}

	var materials []database.Material
	if err := tx.WithContext(ctx).Order("name ASC").Find(&materials).Error; err != nil {
		return nil, err
	}
	var overrides []database.MaterialStoreMinimum
	if err := tx.WithContext(ctx).Where("store_id = ?", storeID).Find(&overrides).Error; err != nil {
		return nil, err
	}

	counted := make(map[uuid.UUID]float64, len(in.Counts))
	for _, c := range in.Counts {
		if c.CountedQuantity == nil {
			continue
		}
		q := *c.CountedQuantity
		if math.IsNaN(q) || math.IsInf(q, 0) || q < 0 {
			return nil, apperr.Validation("counted quantities must be non-negative numbers")
		}
		counted[c.MaterialID] = q
	}

	var missing []string
	for _, m := range materials {
		q, ok := counted[m.ID]
		if !ok {
			missing = append(missing, m.Name)
			continue
		}
		d.items = append(d.items, database.StocktakeItem{MaterialID: m.ID, CountedQuantity: q})
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("Missing counts for: %s", strings.Join(missing, ", "))
	}

	minimums := threshold.NewMinimumTable(materials, overrides)
	ordered := make(map[uuid.UUID]int)
	for _, o := range in.Orders {
		if o.Quantity <= 0 {
			continue
		}
		q, known := counted[o.MaterialID]
		if !known {
			continue
		}
		if i, ok := ordered[o.MaterialID]; ok {
			d.orders[i].Quantity = o.Quantity
			continue
		}
		ordered[o.MaterialID] = len(d.orders)
		d.orders = append(d.orders, database.StocktakeOrderItem{
			MaterialID:          o.MaterialID,
			RecommendedQuantity: dailyreport.Recommend(q, minimums.Applicable(o.MaterialID, &storeID)),
			Quantity:            o.Quantity,
		})
	}
	return d, nil
}

// checkMonth reports a conflict when another monthly session of the store covers month
func checkMonth(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, month *string, except uuid.UUID) error {
	if month == nil {
		return nil
	}
	var count int64
	if err := tx.WithContext(ctx).Model(&database.StocktakeSession{}).
		Where("store_id = ? AND count_month = ? AND id <> ?", storeID, *month, except).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return monthConflict(*month)
	}
	return nil
}

func monthConflict(month string) error {
	return apperr.Conflict("A monthly stocktake for %s already exists", month)
}

func writeLines(tx *gorm.DB, sessionID uuid.UUID, d *draft) error {
	for i := range d.items {
		d.items[i].SessionID = sessionID
	}
	for i := range d.orders {
		d.orders[i].SessionID = sessionID
	}
	if len(d.items) > 0 {
		if err := tx.Omit(clause.Associations).Create(&d.items).Error; err != nil {
			return err
		}
	}
	if len(d.orders) > 0 {
		if err := tx.Omit(clause.Associations).Create(&d.orders).Error; err != nil {
			return err
		}
	}
	return nil
}

func deleteLines(tx *gorm.DB, sessionID uuid.UUID) error {
	if err := tx.Where("session_id = ?", sessionID).Delete(&database.StocktakeItem{}).Error; err != nil {
		return err
	}
	return tx.Where("session_id = ?", sessionID).Delete(&database.StocktakeOrderItem{}).Error
}

// translate maps a duplicate (store, month) insert into a conflict
func translate(err error, month *string) error {
	if err != nil && month != nil && database.IsUniqueViolation(err) {
		return apperr.Wrap(apperr.KindConflict, err, fmt.Sprintf("A monthly stocktake for %s already exists", *month))
	}
	return err
}

// Create opens a draft session with a count for every catalog material
func (e *Engine) Create(ctx context.Context, p access.Principal, in Input) (*database.StocktakeSession, error) {
	storeID, err := p.ResolveStore(in.StoreID)
	if err != nil {
		return nil, err
	}

	var session database.StocktakeSession
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var store database.Store
		if err := tx.First(&store, "id = ?", storeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("Store not found")
			}
			return err
		}

		d, err := e.prepare(ctx, tx, storeID, in, false)
		if err != nil {
			return err
		}
		if err := checkMonth(ctx, tx, storeID, d.countMonth, uuid.Nil); err != nil {
			return err
		}

		session = database.StocktakeSession{
			StoreID:     storeID,
			CountDate:   d.countDate,
			SessionType: d.sessionType,
			CountMonth:  d.countMonth,
			Status:      database.StatusDraft,
			Notes:       in.Notes,
		}
		if err := tx.Omit(clause.Associations).Create(&session).Error; err != nil {
			return translate(err, d.countMonth)
		}
		if err := writeLines(tx, session.ID, d); err != nil {
			return err
		}
		session.Items = d.items
		session.OrderItems = d.orders
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// loadForWrite reads a session the principal may mutate while it is still a draft
func loadForWrite(tx *gorm.DB, p access.Principal, id uuid.UUID, action string) (*database.StocktakeSession, error) {
	var s database.StocktakeSession
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Stocktake session not found")
	}
	if err != nil {
		return nil, err
	}
	if err := p.Authorize(s.StoreID); err != nil {
		return nil, err
	}
	if action != "" && s.Status == database.StatusConfirmed {
		return nil, apperr.Invariant("Confirmed stocktake sessions cannot be %s", action)
	}
	return &s, nil
}

// Update replaces the header, counts and orders of a draft session
func (e *Engine) Update(ctx context.Context, p access.Principal, id uuid.UUID, in Input) (*database.StocktakeSession, error) {
	var session *database.StocktakeSession
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := loadForWrite(tx, p, id, "edited")
		if err != nil {
			return err
		}

		d, err := e.prepare(ctx, tx, s.StoreID, in, in.CountDate != s.CountDate)
		if err != nil {
			return err
		}
		if err := checkMonth(ctx, tx, s.StoreID, d.countMonth, s.ID); err != nil {
			return err
		}

		if err := tx.Model(s).Select("count_date", "session_type", "count_month", "notes").Updates(&database.StocktakeSession{
			CountDate:   d.countDate,
			SessionType: d.sessionType,
			CountMonth:  d.countMonth,
			Notes:       in.Notes,
		}).Error; err != nil {
			return translate(err, d.countMonth)
		}
		if err := deleteLines(tx, s.ID); err != nil {
			return err
		}
		if err := writeLines(tx, s.ID, d); err != nil {
			return err
		}

		s.CountDate = d.countDate
		s.SessionType = d.sessionType
		s.CountMonth = d.countMonth
		s.Notes = in.Notes
		s.Items = d.items
		s.OrderItems = d.orders
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Delete removes a draft session and its lines
func (e *Engine) Delete(ctx context.Context, p access.Principal, id uuid.UUID) (*database.StocktakeSession, error) {
	var session *database.StocktakeSession
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := loadForWrite(tx, p, id, "deleted")
		if err != nil {
			return err
		}
		if err := deleteLines(tx, s.ID); err != nil {
			return err
		}
		session = s
		return tx.Delete(s).Error
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ConfirmResult is the outcome of Confirm
type ConfirmResult struct {
	Session          database.StocktakeSession    `json:"session"`
	Adjustments      []database.InventoryMovement `json:"adjustments"`
	AlreadyConfirmed bool                         `json:"already_confirmed"`
}

// Confirm reconciles a draft session against the ledger and freezes it.
// Every counted material whose ledger stock differs gets one stocktake adjustment carrying the
// signed difference. Confirming a confirmed session changes nothing.
func (e *Engine) Confirm(ctx context.Context, p access.Principal, id uuid.UUID) (*ConfirmResult, error) {
	var result ConfirmResult
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := loadForWrite(tx, p, id, "")
		if err != nil {
			return err
		}
		if s.Status == database.StatusConfirmed {
			result = ConfirmResult{Session: *s, AlreadyConfirmed: true}
			return nil
		}

		typeID, err := e.kinds.TypeID(database.KindStocktakeAdjustment)
		if err != nil {
			return err
		}
		occurredAt, err := time.Parse(database.DateLayout, s.CountDate)
		if err != nil {
			return apperr.Invariant("stocktake session %s has an invalid count date %q", s.ID, s.CountDate)
		}

		var items []database.StocktakeItem
		if err := tx.Where("session_id = ?", s.ID).Find(&items).Error; err != nil {
			return err
		}
		levels, err := e.stock.WithTx(tx).Levels(ctx, stock.Filter{StoreID: &s.StoreID})
		if err != nil {
			return err
		}

		sessionID := s.ID
		var adjustments []database.InventoryMovement
		for _, item := range items {
			diff := item.CountedQuantity - levels.Store(item.MaterialID, s.StoreID)
			if math.Abs(diff) < AdjustmentTolerance {
				continue
			}
			adjustments = append(adjustments, database.InventoryMovement{
				StoreID:            s.StoreID,
				MaterialID:         item.MaterialID,
				MovementTypeID:     typeID,
				Quantity:           diff,
				OccurredAt:         occurredAt,
				Memo:               fmt.Sprintf("Stocktake adjustment (session %s)", s.ID),
				StocktakeSessionID: &sessionID,
			})
		}
		if len(adjustments) > 0 {
			if err := tx.Omit(clause.Associations).Create(&adjustments).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		res := tx.Model(&database.StocktakeSession{}).
			Where("id = ? AND status = ?", s.ID, database.StatusDraft).
			Updates(map[string]interface{}{
				"status":       database.StatusConfirmed,
				"confirmed_at": now,
				"confirmed_by": p.UserID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errConfirmedConcurrently
		}

		s.Status = database.StatusConfirmed
		s.ConfirmedAt = &now
		s.ConfirmedBy = &p.UserID
		s.Items = items
		result = ConfirmResult{Session: *s, Adjustments: adjustments}
		return nil
	})
	if errors.Is(err, errConfirmedConcurrently) {
		s, getErr := e.Get(ctx, p, id)
		if getErr != nil {
			return nil, getErr
		}
		return &ConfirmResult{Session: *s, AlreadyConfirmed: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Get returns a session with its counts and orders
func (e *Engine) Get(ctx context.Context, p access.Principal, id uuid.UUID) (*database.StocktakeSession, error) {
	var s database.StocktakeSession
	err := e.db.WithContext(ctx).
		Preload("Items.Material").
		Preload("OrderItems.Material").
		First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Stocktake session not found")
	}
	if err != nil {
		return nil, err
	}
	if err := p.Authorize(s.StoreID); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns the sessions of a store, newest count first
func (e *Engine) List(ctx context.Context, p access.Principal, requested *uuid.UUID, status string) ([]database.StocktakeSession, error) {
	storeID, err := p.ResolveStore(requested)
	if err != nil {
		return nil, err
	}
	q := e.db.WithContext(ctx).Where("store_id = ?", storeID)
	switch status {
	case "":
	case database.StatusDraft, database.StatusConfirmed:
		q = q.Where("status = ?", status)
	default:
		return nil, apperr.Validation("status must be %s or %s", database.StatusDraft, database.StatusConfirmed)
	}

	var sessions []database.StocktakeSession
	if err := q.Order("count_date DESC").Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// MatrixStore is one column of the monthly matrix
type MatrixStore struct {
	StoreID   uuid.UUID `json:"store_id"`
	Name      string    `json:"name"`
	SessionID uuid.UUID `json:"session_id"`
	Status    string    `json:"status"`
	CountDate string    `json:"count_date"`
}

// MatrixRow holds the counts of one material, aligned with Matrix.Stores. Nil means not counted.
type MatrixRow struct {
	MaterialID uuid.UUID  `json:"material_id"`
	Name       string     `json:"name"`
	Unit       string     `json:"unit"`
	Counts     []*float64 `json:"counts"`
	Total      float64    `json:"total"`
}

// Matrix is the store × material view of the monthly counts of one month
type Matrix struct {
	Month  string        `json:"month"`
	Stores []MatrixStore `json:"stores"`
	Rows   []MatrixRow   `json:"rows"`
}

func storeName(s database.StocktakeSession) string {
	if s.Store == nil {
		return ""
	}
	return s.Store.Name
}

// MonthlyMatrix joins the monthly sessions of month across stores. Store staff only see their own store.
func (e *Engine) MonthlyMatrix(ctx context.Context, p access.Principal, month string) (*Matrix, error) {
	if _, err := time.Parse(database.MonthLayout, month); err != nil {
		return nil, apperr.Validation("month must be YYYY-MM")
	}

	q := e.db.WithContext(ctx).Preload("Store").Preload("Items").
		Where("session_type = ? AND count_month = ?", database.SessionMonthly, month)
	if !p.IsAdmin() {
		if p.StoreID == nil {
			return nil, apperr.Forbidden("User is not assigned to a store")
		}
		q = q.Where("store_id = ?", *p.StoreID)
	}
	var sessions []database.StocktakeSession
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		return storeName(sessions[i]) < storeName(sessions[j])
	})

	var materials []database.Material
	if err := e.db.WithContext(ctx).Order("name ASC").Find(&materials).Error; err != nil {
		return nil, err
	}

	m := &Matrix{Month: month, Stores: make([]MatrixStore, 0, len(sessions)), Rows: make([]MatrixRow, 0, len(materials))}
	counts := make([]map[uuid.UUID]float64, len(sessions))
	for i, s := range sessions {
		m.Stores = append(m.Stores, MatrixStore{
			StoreID:   s.StoreID,
			Name:      storeName(s),
			SessionID: s.ID,
			Status:    s.Status,
			CountDate: s.CountDate,
		})
		counts[i] = make(map[uuid.UUID]float64, len(s.Items))
		for _, item := range s.Items {
			counts[i][item.MaterialID] = item.CountedQuantity
		}
	}

	for _, mat := range materials {
		row := MatrixRow{MaterialID: mat.ID, Name: mat.Name, Unit: mat.Unit, Counts: make([]*float64, len(sessions))}
		for i := range sessions {
			if q, ok := counts[i][mat.ID]; ok {
				row.Counts[i] = &q
				row.Total += q
			}
		}
		m.Rows = append(m.Rows, row)
	}
	return m, nil
}
