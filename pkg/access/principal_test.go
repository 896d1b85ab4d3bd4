package access

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/apperr"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
)

func TestResolveStore(t *testing.T) {
	own := uuid.New()
	other := uuid.New()
	nilID := uuid.Nil

	tests := []struct {
		name      string
		principal Principal
		requested *uuid.UUID
		want      uuid.UUID
		wantKind  apperr.Kind
		wantErr   bool
	}{
		{"admin with store", Principal{Role: database.RoleAdmin}, &other, other, 0, false},
		{"admin without store", Principal{Role: database.RoleAdmin}, nil, uuid.Nil, apperr.KindValidation, true},
		{"admin with nil id", Principal{Role: database.RoleAdmin}, &nilID, uuid.Nil, apperr.KindValidation, true},
		{"staff defaults to own store", Principal{Role: database.RoleStaff, StoreID: &own}, nil, own, 0, false},
		{"staff naming own store", Principal{Role: database.RoleStaff, StoreID: &own}, &own, own, 0, false},
		{"staff naming other store", Principal{Role: database.RoleStaff, StoreID: &own}, &other, uuid.Nil, apperr.KindForbidden, true},
		{"staff without store", Principal{Role: database.RoleStaff}, nil, uuid.Nil, apperr.KindForbidden, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.principal.ResolveStore(tt.requested)
			if tt.wantErr {
				if !apperr.Is(err, tt.wantKind) {
					t.Fatalf("ResolveStore() error = %v, want kind %v", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveStore() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveStore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	own := uuid.New()
	staff := Principal{Role: database.RoleStaff, StoreID: &own}

	if err := staff.Authorize(own); err != nil {
		t.Errorf("staff should access own store: %v", err)
	}
	if err := staff.Authorize(uuid.New()); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("staff on other store: got %v, want forbidden", err)
	}
	if err := (Principal{Role: database.RoleAdmin}).Authorize(uuid.New()); err != nil {
		t.Errorf("admin should access every store: %v", err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	storeID := uuid.New()
	in := Principal{UserID: uuid.New(), Role: database.RoleStaff, StoreID: &storeID}
	Set(c, in)

	out := FromContext(c)
	if out.UserID != in.UserID || out.Role != in.Role {
		t.Fatalf("FromContext() = %+v, want %+v", out, in)
	}
	if out.StoreID == nil || *out.StoreID != storeID {
		t.Errorf("FromContext() store = %v, want %v", out.StoreID, storeID)
	}
}

func TestParseOptionalID(t *testing.T) {
	if id, err := ParseOptionalID("", "store_id"); id != nil || err != nil {
		t.Errorf("blank: got %v, %v", id, err)
	}
	if _, err := ParseOptionalID("not-a-uuid", "store_id"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("malformed: got %v, want validation error", err)
	}
	want := uuid.New()
	if id, err := ParseOptionalID(want.String(), "store_id"); err != nil || *id != want {
		t.Errorf("valid: got %v, %v", id, err)
	}
}
