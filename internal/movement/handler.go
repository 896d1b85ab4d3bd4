package movement

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/access"
	"github.com/yuditriaji/zaiko-backend/pkg/activitylog"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
)

type Handler struct {
	ledger   *Ledger
	activity *activitylog.Logger
}

func NewHandler(ledger *Ledger, activity *activitylog.Logger) *Handler {
	return &Handler{ledger: ledger, activity: activity}
}

// ListTypes returns the movement types available for manual entries
func (h *Handler) ListTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.ledger.Types()})
}

func parseDay(raw, field string, next bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	day, err := time.Parse(database.DateLayout, raw)
	if err != nil {
		return nil, apperr.Validation("%s must be YYYY-MM-DD", field)
	}
	if next {
		day = day.AddDate(0, 0, 1)
	}
	return &day, nil
}

// List returns ledger entries. Query: store_id, material_id, movement_type, from, to (inclusive days), limit
func (h *Handler) List(c *gin.Context) {
	var f Filter
	var err error
	if f.StoreID, err = access.ParseOptionalID(c.Query("store_id"), "store_id"); err != nil {
		apperr.Respond(c, err)
		return
	}
	if f.MaterialID, err = access.ParseOptionalID(c.Query("material_id"), "material_id"); err != nil {
		apperr.Respond(c, err)
		return
	}
	if f.From, err = parseDay(c.Query("from"), "from", false); err != nil {
		apperr.Respond(c, err)
		return
	}
	if f.To, err = parseDay(c.Query("to"), "to", true); err != nil {
		apperr.Respond(c, err)
		return
	}
	f.Kind = database.MovementKind(c.Query("movement_type"))
	f.Limit, _ = strconv.Atoi(c.Query("limit"))

	movements, err := h.ledger.List(c.Request.Context(), access.FromContext(c), f)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": movements})
}

// Create records a manual movement
func (h *Handler) Create(c *gin.Context) {
	var input Input
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mv, err := h.ledger.Create(c.Request.Context(), access.FromContext(c), input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.activity.LogCreate(c, "movement", mv.ID, &mv.StoreID, input)
	c.JSON(http.StatusCreated, gin.H{"data": mv})
}

// Update rewrites a recorded movement
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Movement not found", "code": "NOT_FOUND"})
		return
	}

	var input Input
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	old, mv, err := h.ledger.Update(c.Request.Context(), access.FromContext(c), id, input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.activity.LogUpdate(c, "movement", mv.ID, &mv.StoreID, old, mv)
	c.JSON(http.StatusOK, gin.H{"data": mv})
}

// Delete removes a recorded movement
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Movement not found", "code": "NOT_FOUND"})
		return
	}

	mv, err := h.ledger.Delete(c.Request.Context(), access.FromContext(c), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	h.activity.LogDelete(c, "movement", mv.ID, &mv.StoreID, mv)
	c.JSON(http.StatusOK, gin.H{"message": "Movement deleted"})
}
