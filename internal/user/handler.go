package user

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/activitylog"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	logger *activitylog.Logger
}

func NewHandler(db *gorm.DB, logger *activitylog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

type CreateUserInput struct {
	Name     string     `json:"name" binding:"required"`
	Email    string     `json:"email" binding:"required,email"`
	Password string     `json:"password" binding:"omitempty,min=8"` // optional for Google-only accounts
	Role     string     `json:"role" binding:"required,oneof=admin staff"`
	StoreID  *uuid.UUID `json:"store_id"`
}

type UpdateUserInput struct {
	Name     string     `json:"name"`
	Role     string     `json:"role" binding:"omitempty,oneof=admin staff"`
	StoreID  *uuid.UUID `json:"store_id"`
	Password string     `json:"password" binding:"omitempty,min=8"`
	IsActive *bool      `json:"is_active"`
}

// checkStore enforces that staff accounts belong to an existing store
func (h *Handler) checkStore(c *gin.Context, role string, storeID *uuid.UUID) error {
	if storeID == nil {
		if role == database.RoleStaff {
			return apperr.Validation("store_id is required for staff accounts")
		}
		return nil
	}
	var count int64
	if err := h.db.WithContext(c.Request.Context()).Model(&database.Store{}).Where("id = ?", *storeID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.Validation("store_id does not exist")
	}
	return nil
}

// ListUsers returns all accounts
func (h *Handler) ListUsers(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Preload("Store").Order("created_at DESC")
	if storeID := c.Query("store_id"); storeID != "" {
		q = q.Where("store_id = ?", storeID)
	}

	var users []database.User
	if err := q.Find(&users).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": users})
}

// CreateUser provisions an account
func (h *Handler) CreateUser(c *gin.Context) {
	var input CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.checkStore(c, input.Role, input.StoreID); err != nil {
		apperr.Respond(c, err)
		return
	}

	user := database.User{
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Name:     input.Name,
		Role:     input.Role,
		StoreID:  input.StoreID,
		IsActive: true,
	}
	if input.Password != "" {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		user.PasswordHash = string(hashedPassword)
	}

	if err := h.db.WithContext(c.Request.Context()).Omit("Store").Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			apperr.Respond(c, apperr.Conflict("Email already registered"))
			return
		}
		apperr.Respond(c, err)
		return
	}

	h.logger.LogCreate(c, "user", user.ID, user.StoreID, map[string]interface{}{
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
	})

	c.JSON(http.StatusCreated, gin.H{"data": user})
}

// UpdateUser changes role, store, password or active flag of an account
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperr.Respond(c, apperr.NotFound("User not found"))
		return
	}

	var user database.User
	err = h.db.WithContext(c.Request.Context()).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apperr.Respond(c, apperr.NotFound("User not found"))
		return
	}
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var input UpdateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	old := user
	if input.Name != "" {
		user.Name = input.Name
	}
	if input.Role != "" {
		user.Role = input.Role
	}
	if input.StoreID != nil {
		user.StoreID = input.StoreID
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if err := h.checkStore(c, user.Role, user.StoreID); err != nil {
		apperr.Respond(c, err)
		return
	}
	if input.Password != "" {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		user.PasswordHash = string(hashedPassword)
	}

	if err := h.db.WithContext(c.Request.Context()).Model(&user).
		Select("name", "role", "store_id", "is_active", "password_hash").
		Updates(&user).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	h.logger.LogUpdate(c, "user", user.ID, user.StoreID, map[string]interface{}{
		"role": old.Role, "store_id": old.StoreID, "is_active": old.IsActive,
	}, map[string]interface{}{
		"role": user.Role, "store_id": user.StoreID, "is_active": user.IsActive,
	})

	c.JSON(http.StatusOK, gin.H{"data": user})
}
