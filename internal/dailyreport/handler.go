package dailyreport

import (
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

// Suggestions returns reorder suggestions for the report form
func (h *Handler) Suggestions(c *gin.Context) {
	storeID, err := access.ParseOptionalID(c.Query("store_id"), "store_id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	suggestions, err := h.engine.Suggestions(c.Request.Context(), access.FromContext(c), storeID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": suggestions})
}

// Save creates or replaces the report of a store for one day
func (h *Handler) Save(c *gin.Context) {
	var input Input
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.engine.Save(c.Request.Context(), access.FromContext(c), input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.activity.Record(c, "save", "daily_report", &report.ID, &report.StoreID, gin.H{
		"report_date": report.ReportDate,
		"orders":      len(report.Orders),
	})
	c.JSON(http.StatusOK, gin.H{"data": report})
}

// List returns reports of a store, optionally for one month
func (h *Handler) List(c *gin.Context) {
	storeID, err := access.ParseOptionalID(c.Query("store_id"), "store_id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	reports, err := h.engine.List(c.Request.Context(), access.FromContext(c), storeID, c.Query("month"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reports})
}

// Get returns a single report
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Daily report not found"})
		return
	}

	report, err := h.engine.Get(c.Request.Context(), access.FromContext(c), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

// Delete removes a report
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Daily report not found"})
		return
	}

	if err := h.engine.Delete(c.Request.Context(), access.FromContext(c), id); err != nil {
		apperr.Respond(c, err)
		return
	}

	h.activity.Record(c, "delete", "daily_report", &id, nil, nil)
	c.JSON(http.StatusOK, gin.H{"message": "Daily report deleted"})
}
