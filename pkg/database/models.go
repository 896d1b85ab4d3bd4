package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Date layouts shared by reports and stocktakes
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// Base model for all entities
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the id client side so the same models run on Postgres and SQLite.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Company groups stores of one tenant
type Company struct {
	BaseModel
	Name   string  `gorm:"not null" json:"name"`
	Stores []Store `gorm:"foreignKey:CompanyID" json:"stores,omitempty"`
}

// Store represents a shop location
type Store struct {
	BaseModel
	CompanyID *uuid.UUID `gorm:"type:uuid;index" json:"company_id"`
	Company   *Company   `gorm:"foreignKey:CompanyID" json:"-"`
	Name      string     `gorm:"not null" json:"name"`
}

// User roles
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User represents a system user
type User struct {
	BaseModel
	StoreID      *uuid.UUID `gorm:"type:uuid;index" json:"store_id"` // required for staff
	Store        *Store     `gorm:"foreignKey:StoreID" json:"store,omitempty"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	GoogleID     string     `gorm:"index" json:"-"`
	PasswordHash string     `json:"-"`
	Name         string     `gorm:"not null" json:"name"`
	Role         string     `gorm:"default:'staff'" json:"role"` // admin, staff
	IsActive     bool       `gorm:"default:true" json:"is_active"`
}

// MaterialCategory groups materials
type MaterialCategory struct {
	BaseModel
	Name         string `gorm:"not null" json:"name"`
	IsPerishable bool   `gorm:"default:false" json:"is_perishable"`
}

// Material represents a raw material tracked in the catalog
type Material struct {
	BaseModel
	Name         string            `gorm:"not null" json:"name"`
	Unit         string            `gorm:"not null" json:"unit"` // kg, liter, pcs, etc.
	PricePerUnit float64           `json:"price_per_unit"`
	MinimumStock *float64          `json:"minimum_stock"` // global reorder threshold, nil when unset
	CategoryID   *uuid.UUID        `gorm:"type:uuid;index" json:"category_id"`
	Category     *MaterialCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Memo         string            `json:"memo"`
}

// MaterialStoreMinimum overrides a material's minimum stock for one store
type MaterialStoreMinimum struct {
	BaseModel
	MaterialID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_material_store_minimum" json:"material_id"`
	StoreID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_material_store_minimum" json:"store_id"`
	MinimumStock float64   `gorm:"not null" json:"minimum_stock"`
}

// MovementKind is the closed set of ledger movement types
type MovementKind string

const (
	KindInbound             MovementKind = "inbound"
	KindOutbound            MovementKind = "outbound"
	KindWaste               MovementKind = "waste"
	KindAdjustment          MovementKind = "adjustment"
	KindStocktakeAdjustment MovementKind = "stocktake_adjustment"
)

// MovementKinds lists every kind in display order
var MovementKinds = []MovementKind{KindInbound, KindOutbound, KindWaste, KindAdjustment, KindStocktakeAdjustment}

// Sign returns -1 for kinds that take stock out of a store and +1 for everything else.
func (k MovementKind) Sign() float64 {
	switch k {
	case KindOutbound, KindWaste:
		return -1
	}
	return 1
}

// Valid reports whether k is a known kind
func (k MovementKind) Valid() bool {
	for _, known := range MovementKinds {
		if k == known {
			return true
		}
	}
	return false
}

// MovementType is the reference row for a MovementKind
type MovementType struct {
	BaseModel
	Code MovementKind `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	Name string       `gorm:"not null" json:"name"`
}

// InventoryMovement is one ledger entry. Quantity is stored as entered; the sign comes from the type.
type InventoryMovement struct {
	BaseModel
	StoreID            uuid.UUID     `gorm:"type:uuid;not null;index:idx_movement_material_store" json:"store_id"`
	Store              *Store        `gorm:"foreignKey:StoreID" json:"store,omitempty"`
	MaterialID         uuid.UUID     `gorm:"type:uuid;not null;index:idx_movement_material_store" json:"material_id"`
	Material           *Material     `gorm:"foreignKey:MaterialID" json:"material,omitempty"`
	MovementTypeID     uuid.UUID     `gorm:"type:uuid;not null;index" json:"movement_type_id"`
	MovementType       *MovementType `gorm:"foreignKey:MovementTypeID" json:"movement_type,omitempty"`
	Quantity           float64       `gorm:"not null" json:"quantity"`
	OccurredAt         time.Time     `gorm:"not null;index" json:"occurred_at"`
	Memo               string        `json:"memo"`
	StocktakeSessionID *uuid.UUID    `gorm:"type:uuid;index" json:"stocktake_session_id,omitempty"`
}

// DailyReport is the end-of-day report of one store
type DailyReport struct {
	BaseModel
	StoreID          uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_daily_report_store_date" json:"store_id"`
	ReportDate       string             `gorm:"type:varchar(10);not null;uniqueIndex:idx_daily_report_store_date" json:"report_date"` // YYYY-MM-DD
	Sales            float64            `gorm:"default:0" json:"sales"`
	WasteCount       float64            `gorm:"default:0" json:"waste_count"`
	ProductionSets   float64            `gorm:"default:0" json:"production_sets"`
	WorkingHours     float64            `gorm:"default:0" json:"working_hours"`
	NextDeliveryDate *string            `gorm:"type:varchar(10)" json:"next_delivery_date"`
	Remarks          string             `json:"remarks"`
	Orders           []DailyReportOrder `gorm:"foreignKey:ReportID" json:"orders"`
}

// DailyReportOrder is a reorder line on a daily report
type DailyReportOrder struct {
	BaseModel
	ReportID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_daily_report_order" json:"report_id"`
	MaterialID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_daily_report_order" json:"material_id"`
	Material   *Material `gorm:"foreignKey:MaterialID" json:"material,omitempty"`
	Quantity   float64   `gorm:"not null" json:"quantity"`
}

// Stocktake session types and statuses
const (
	SessionAdHoc   = "ad_hoc"
	SessionMonthly = "monthly"

	StatusDraft     = "draft"
	StatusConfirmed = "confirmed"
)

// StocktakeSession is one physical count of a store
type StocktakeSession struct {
	BaseModel
	StoreID     uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_stocktake_store_month" json:"store_id"`
	Store       *Store               `gorm:"foreignKey:StoreID" json:"store,omitempty"`
	CountDate   string               `gorm:"type:varchar(10);not null" json:"count_date"` // YYYY-MM-DD
	SessionType string               `gorm:"type:varchar(16);not null" json:"session_type"`
	CountMonth  *string              `gorm:"type:varchar(7);uniqueIndex:idx_stocktake_store_month" json:"count_month"` // YYYY-MM, monthly only
	Status      string               `gorm:"type:varchar(16);not null;default:'draft'" json:"status"`
	ConfirmedAt *time.Time           `json:"confirmed_at"`
	ConfirmedBy *uuid.UUID           `gorm:"type:uuid" json:"confirmed_by"`
	Notes       string               `json:"notes"`
	Items       []StocktakeItem      `gorm:"foreignKey:SessionID" json:"items"`
	OrderItems  []StocktakeOrderItem `gorm:"foreignKey:SessionID" json:"order_items"`
}

// StocktakeItem is the counted quantity of one material
type StocktakeItem struct {
	BaseModel
	SessionID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stocktake_item" json:"session_id"`
	MaterialID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stocktake_item" json:"material_id"`
	Material        *Material `gorm:"foreignKey:MaterialID" json:"material,omitempty"`
	CountedQuantity float64   `gorm:"not null" json:"counted_quantity"`
}

// StocktakeOrderItem is a reorder line chosen during a count
type StocktakeOrderItem struct {
	BaseModel
	SessionID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stocktake_order_item" json:"session_id"`
	MaterialID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stocktake_order_item" json:"material_id"`
	Material            *Material `gorm:"foreignKey:MaterialID" json:"material,omitempty"`
	RecommendedQuantity float64   `gorm:"default:0" json:"recommended_quantity"`
	Quantity            float64   `gorm:"not null" json:"quantity"`
}

// ActivityLog tracks user actions for audit trail
type ActivityLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	StoreID    *uuid.UUID `gorm:"type:uuid;index" json:"store_id"`
	Action     string     `gorm:"not null" json:"action"` // create, update, delete, confirm, login
	EntityType string     `json:"entity_type"`             // movement, material, stocktake_session, etc.
	EntityID   *uuid.UUID `gorm:"type:uuid" json:"entity_id"`
	Details    string     `gorm:"type:text" json:"details"` // JSON details
	IPAddress  string     `json:"ip_address"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (l *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
