package stocktake

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/access"
	"github.com/yuditriaji/zaiko-backend/pkg/activitylog"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
)

type Handler struct {
	engine   *Engine
	activity *activitylog.Logger
}

func NewHandler(engine *Engine, activity *activitylog.Logger) *Handler {
	return &Handler{engine: engine, activity: activity}
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stocktake session not found", "code": "NOT_FOUND"})
		return uuid.Nil, false
	}
	return id, true
}

// List returns the sessions of a store
func (h *Handler) List(c *gin.Context) {
	storeID, err := access.ParseOptionalID(c.Query("store_id"), "store_id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	sessions, err := h.engine.List(c.Request.Context(), access.FromContext(c), storeID, c.Query("status"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sessions})
}

// Get returns a session with its counts
func (h *Handler) Get(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	session, err := h.engine.Get(c.Request.Context(), access.FromContext(c), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}

// Create opens a new draft session
func (h *Handler) Create(c *gin.Context) {
	var input Input
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.engine.Create(c.Request.Context(), access.FromContext(c), input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.activity.LogCreate(c, "stocktake_session", session.ID, &session.StoreID, gin.H{
		"count_date":   session.CountDate,
		"session_type": session.SessionType,
		"count_month":  session.CountMonth,
		"items":        len(session.Items),
	})
	c.JSON(http.StatusCreated, gin.H{"data": session})
}

// Update replaces a draft session
func (h *Handler) Update(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var input Input
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.engine.Update(c.Request.Context(), access.FromContext(c), id, input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.activity.LogUpdate(c, "stocktake_session", session.ID, &session.StoreID, nil, gin.H{
		"count_date":  session.CountDate,
		"count_month": session.CountMonth,
		"items":       len(session.Items),
	})
	c.JSON(http.StatusOK, gin.H{"data": session})
}

// Delete removes a draft session
func (h *Handler) Delete(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	session, err := h.engine.Delete(c.Request.Context(), access.FromContext(c), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.activity.LogDelete(c, "stocktake_session", session.ID, &session.StoreID, gin.H{
		"count_date": session.CountDate,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Stocktake session deleted"})
}

// Confirm reconciles a draft session against the ledger
func (h *Handler) Confirm(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	result, err := h.engine.Confirm(c.Request.Context(), access.FromContext(c), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	if !result.AlreadyConfirmed {
		h.activity.LogConfirm(c, result.Session.ID, result.Session.StoreID, len(result.Adjustments))
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// Matrix returns the store × material counts of one month
func (h *Handler) Matrix(c *gin.Context) {
	m, err := h.engine.MonthlyMatrix(c.Request.Context(), access.FromContext(c), c.Query("month"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": m})
}

// ExportMatrix downloads the monthly matrix as .xlsx
func (h *Handler) ExportMatrix(c *gin.Context) {
	m, err := h.engine.MonthlyMatrix(c.Request.Context(), access.FromContext(c), c.Query("month"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	f, err := ExportMatrix(m)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=stocktake_%s.xlsx", m.Month))

	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate workbook"})
		return
	}
}
