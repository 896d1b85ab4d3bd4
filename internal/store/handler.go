package store

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/access"
	"github.com/yuditriaji/zaiko-backend/pkg/activitylog"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	logger *activitylog.Logger
}

func NewHandler(db *gorm.DB, logger *activitylog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

type StoreInput struct {
	Name      string     `json:"name" binding:"required"`
	CompanyID *uuid.UUID `json:"company_id"`
}

// List returns the stores visible to the current user
func (h *Handler) List(c *gin.Context) {
	p := access.FromContext(c)

	q := h.db.WithContext(c.Request.Context()).Order("name ASC")
	if !p.IsAdmin() {
		if p.StoreID == nil {
			c.JSON(http.StatusOK, gin.H{"data": []database.Store{}})
			return
		}
		q = q.Where("id = ?", *p.StoreID)
	}

	var stores []database.Store
	if err := q.Find(&stores).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stores})
}

func (h *Handler) find(c *gin.Context) (*database.Store, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, apperr.NotFound("Store not found")
	}
	if err := access.FromContext(c).Authorize(id); err != nil {
		return nil, err
	}

	var store database.Store
	err = h.db.WithContext(c.Request.Context()).First(&store, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Store not found")
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// Get returns a single store
func (h *Handler) Get(c *gin.Context) {
	store, err := h.find(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": store})
}

func (h *Handler) checkCompany(c *gin.Context, companyID *uuid.UUID) error {
	if companyID == nil {
		return nil
	}
	var count int64
	if err := h.db.WithContext(c.Request.Context()).Model(&database.Company{}).Where("id = ?", *companyID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.Validation("company_id does not exist")
	}
	return nil
}

// Create adds a new store
func (h *Handler) Create(c *gin.Context) {
	var input StoreInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		apperr.Respond(c, apperr.Validation("name is required"))
		return
	}
	if err := h.checkCompany(c, input.CompanyID); err != nil {
		apperr.Respond(c, err)
		return
	}

	store := database.Store{Name: name, CompanyID: input.CompanyID}
	if err := h.db.WithContext(c.Request.Context()).Omit("Company").Create(&store).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogCreate(c, "store", store.ID, &store.ID, map[string]interface{}{
		"name": store.Name,
	})

	c.JSON(http.StatusCreated, gin.H{"data": store})
}

// Update renames a store or moves it to another company
func (h *Handler) Update(c *gin.Context) {
	store, err := h.find(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var input StoreInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		apperr.Respond(c, apperr.Validation("name is required"))
		return
	}
	if err := h.checkCompany(c, input.CompanyID); err != nil {
		apperr.Respond(c, err)
		return
	}

	old := *store
	if err := h.db.WithContext(c.Request.Context()).Model(store).
		Select("name", "company_id").
		Updates(&database.Store{Name: name, CompanyID: input.CompanyID}).Error; err != nil {
		apperr.Respond(c, err)
		return
	}
	store.Name = name
	store.CompanyID = input.CompanyID

	h.logger.LogUpdate(c, "store", store.ID, &store.ID, old, store)
	c.JSON(http.StatusOK, gin.H{"data": store})
}

type CompanyInput struct {
	Name string `json:"name" binding:"required"`
}

// ListCompanies returns all companies with their stores
func (h *Handler) ListCompanies(c *gin.Context) {
	var companies []database.Company
	if err := h.db.WithContext(c.Request.Context()).Preload("Stores").Order("name ASC").Find(&companies).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": companies})
}

// CreateCompany adds a company that groups stores
func (h *Handler) CreateCompany(c *gin.Context) {
	var input CompanyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	company := database.Company{Name: strings.TrimSpace(input.Name)}
	if err := h.db.WithContext(c.Request.Context()).Create(&company).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogCreate(c, "company", company.ID, nil, company)
	c.JSON(http.StatusCreated, gin.H{"data": company})
}
