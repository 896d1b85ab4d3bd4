package activitylog

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/access"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"gorm.io/gorm"
)

// Logger writes the audit trail of ledger and stocktake mutations
type Logger struct {
	db *gorm.DB
}

// NewLogger creates a new activity logger
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// LogActivity creates an activity log entry for the current user.
// storeID names the store the entity belongs to; nil for catalog-wide entities.
func (l *Logger) LogActivity(c *gin.Context, action, entityType string, entityID, storeID *uuid.UUID, details interface{}) error {
	p := access.FromContext(c)

	detailsJSON := ""
	if details != nil {
		if jsonBytes, err := json.Marshal(details); err == nil {
			detailsJSON = string(jsonBytes)
		}
	}

	entry := database.ActivityLog{
		UserID:     p.UserID,
		StoreID:    storeID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    detailsJSON,
		IPAddress:  c.ClientIP(),
	}

	return l.db.WithContext(c.Request.Context()).Create(&entry).Error
}

// Record is LogActivity for callers that must not fail once the mutation is committed
func (l *Logger) Record(c *gin.Context, action, entityType string, entityID, storeID *uuid.UUID, details interface{}) {
	if err := l.LogActivity(c, action, entityType, entityID, storeID, details); err != nil {
		log.Printf("activity log %s %s: %v", action, entityType, err)
	}
}

// LogCreate logs a create action
func (l *Logger) LogCreate(c *gin.Context, entityType string, entityID uuid.UUID, storeID *uuid.UUID, newData interface{}) {
	l.Record(c, "create", entityType, &entityID, storeID, map[string]interface{}{
		"new": newData,
	})
}

// LogUpdate logs an update action with old and new values
func (l *Logger) LogUpdate(c *gin.Context, entityType string, entityID uuid.UUID, storeID *uuid.UUID, oldData, newData interface{}) {
	l.Record(c, "update", entityType, &entityID, storeID, map[string]interface{}{
		"old": oldData,
		"new": newData,
	})
}

// LogDelete logs a delete action
func (l *Logger) LogDelete(c *gin.Context, entityType string, entityID uuid.UUID, storeID *uuid.UUID, oldData interface{}) {
	l.Record(c, "delete", entityType, &entityID, storeID, map[string]interface{}{
		"deleted": oldData,
	})
}

// LogConfirm logs a stocktake confirmation with the number of adjustments it emitted
func (l *Logger) LogConfirm(c *gin.Context, sessionID, storeID uuid.UUID, adjustments int) {
	l.Record(c, "confirm", "stocktake_session", &sessionID, &storeID, map[string]interface{}{
		"adjustments": adjustments,
	})
}

// List returns the latest entries, newest first, optionally for one store
func (l *Logger) List(c *gin.Context, storeID *uuid.UUID, limit int) ([]database.ActivityLog, error) {
	q := l.db.WithContext(c.Request.Context()).Order("created_at DESC").Limit(limit)
	if storeID != nil {
		q = q.Where("store_id = ?", *storeID)
	}
	var logs []database.ActivityLog
	err := q.Find(&logs).Error
	return logs, err
}

// ListLogs serves the audit trail to admins. Query: store_id, limit (default 100, max 500).
func (l *Logger) ListLogs(c *gin.Context) {
	storeID, err := access.ParseOptionalID(c.Query("store_id"), "store_id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	logs, err := l.List(c, storeID, limit)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}
