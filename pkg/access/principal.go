// Package access carries the authenticated user into service calls and enforces store scoping.
package access

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
)

// Principal is the current user as seen by the services
type Principal struct {
	UserID  uuid.UUID
	Role    string
	StoreID *uuid.UUID
}

// IsAdmin reports whether p may act on every store
func (p Principal) IsAdmin() bool {
	return p.Role == database.RoleAdmin
}

// CanAccess reports whether p may read or mutate data of storeID
func (p Principal) CanAccess(storeID uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	return p.StoreID != nil && *p.StoreID == storeID
}

// Authorize returns a forbidden error when p may not touch storeID
func (p Principal) Authorize(storeID uuid.UUID) error {
	if !p.CanAccess(storeID) {
		return apperr.Forbidden("You do not have access to this store")
	}
	return nil
}

// ResolveStore picks the store an operation targets. Staff are pinned to their own store;
// admins must name one explicitly.
func (p Principal) ResolveStore(requested *uuid.UUID) (uuid.UUID, error) {
	if p.IsAdmin() {
		if requested == nil || *requested == uuid.Nil {
			return uuid.Nil, apperr.Validation("store_id is required")
		}
		return *requested, nil
	}
	if p.StoreID == nil {
		return uuid.Nil, apperr.Forbidden("User is not assigned to a store")
	}
	if requested != nil && *requested != uuid.Nil && *requested != *p.StoreID {
		return uuid.Nil, apperr.Forbidden("You do not have access to this store")
	}
	return *p.StoreID, nil
}

// Context keys set by the auth middleware
const (
	ctxUserID  = "user_id"
	ctxRole    = "role"
	ctxStoreID = "store_id"
)

// Set stores p on the gin context
func Set(c *gin.Context, p Principal) {
	c.Set(ctxUserID, p.UserID.String())
	c.Set(ctxRole, p.Role)
	if p.StoreID != nil {
		c.Set(ctxStoreID, p.StoreID.String())
	}
}

// FromContext rebuilds the principal placed on c by the auth middleware
func FromContext(c *gin.Context) Principal {
	p := Principal{Role: c.GetString(ctxRole)}
	p.UserID, _ = uuid.Parse(c.GetString(ctxUserID))
	if raw := c.GetString(ctxStoreID); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			p.StoreID = &id
		}
	}
	return p
}

// ParseOptionalID parses an optional uuid query or form value
func ParseOptionalID(raw, field string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("%s must be a valid id", field)
	}
	return &id, nil
}
