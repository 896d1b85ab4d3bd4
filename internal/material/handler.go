package material

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/internal/stock"
	"github.com/yuditriaji/zaiko-backend/pkg/access"
	"github.com/yuditriaji/zaiko-backend/pkg/activitylog"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"gorm.io/gorm"
)

type Handler struct {
	db       *gorm.DB
	stock    *stock.Aggregator
	activity *activitylog.Logger
}

func NewHandler(db *gorm.DB, agg *stock.Aggregator, activity *activitylog.Logger) *Handler {
	return &Handler{db: db, stock: agg, activity: activity}
}

func materialID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Material not found", "code": "NOT_FOUND"})
		return uuid.Nil, false
	}
	return id, true
}

// List returns all materials with total and per-store stock
func (h *Handler) List(c *gin.Context) {
	storeID, err := access.ParseOptionalID(c.Query("store_id"), "store_id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	items, err := BuildOverview(c.Request.Context(), h.db, h.stock, access.FromContext(c), OverviewFilter{StoreID: storeID})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// GetAlerts returns materials below minimum in at least one store
func (h *Handler) GetAlerts(c *gin.Context) {
	items, err := BuildOverview(c.Request.Context(), h.db, h.stock, access.FromContext(c), OverviewFilter{})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": LowStock(items)})
}

// Get returns a single material with its stock and overrides
func (h *Handler) Get(c *gin.Context) {
	id, ok := materialID(c)
	if !ok {
		return
	}

	item, err := GetOverview(c.Request.Context(), h.db, h.stock, access.FromContext(c), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	minimums, err := StoreMinimums(c.Request.Context(), h.db, id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item, "store_minimums": minimums})
}

// Create adds a new material
func (h *Handler) Create(c *gin.Context) {
	var input MaterialInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	material, err := SaveMaterial(c.Request.Context(), h.db, nil, input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.activity.LogCreate(c, "material", material.ID, nil, input)
	c.JSON(http.StatusCreated, gin.H{"data": material})
}

// Update modifies a material and replaces its store minimums
func (h *Handler) Update(c *gin.Context) {
	id, ok := materialID(c)
	if !ok {
		return
	}

	var input MaterialInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	material, err := SaveMaterial(c.Request.Context(), h.db, &id, input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.activity.LogUpdate(c, "material", material.ID, nil, nil, input)
	c.JSON(http.StatusOK, gin.H{"data": material})
}

// Delete removes a material that has no stock history
func (h *Handler) Delete(c *gin.Context) {
	id, ok := materialID(c)
	if !ok {
		return
	}

	material, err := DeleteMaterial(c.Request.Context(), h.db, id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.activity.LogDelete(c, "material", material.ID, nil, material)
	c.JSON(http.StatusOK, gin.H{"message": "Material deleted"})
}

// === Categories ===

type CategoryInput struct {
	Name         string `json:"name" binding:"required"`
	IsPerishable bool   `json:"is_perishable"`
}

// ListCategories returns all material categories
func (h *Handler) ListCategories(c *gin.Context) {
	var categories []database.MaterialCategory
	if err := h.db.WithContext(c.Request.Context()).Order("name ASC").Find(&categories).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": categories})
}

// CreateCategory adds a material category
func (h *Handler) CreateCategory(c *gin.Context) {
	var input CategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		apperr.Respond(c, apperr.Validation("name is required"))
		return
	}

	category := database.MaterialCategory{Name: name, IsPerishable: input.IsPerishable}
	if err := h.db.WithContext(c.Request.Context()).Create(&category).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	h.activity.LogCreate(c, "material_category", category.ID, nil, category)
	c.JSON(http.StatusCreated, gin.H{"data": category})
}
