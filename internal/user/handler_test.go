package user

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuditriaji/zaiko-backend/pkg/access"
	"github.com/yuditriaji/zaiko-backend/pkg/activitylog"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"github.com/yuditriaji/zaiko-backend/pkg/database/dbtest"
	"gorm.io/gorm"
)

func newRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.Open(t)
	h := NewHandler(db, activitylog.NewLogger(db))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		access.Set(c, access.Principal{UserID: uuid.New(), Role: database.RoleAdmin})
	})
	r.GET("/users", h.ListUsers)
	r.POST("/users", h.CreateUser)
	r.PUT("/users/:id", h.UpdateUser)
	return r, db
}

func send(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateUser(t *testing.T) {
	r, db := newRouter(t)
	store := dbtest.Store(t, db, "Store 1")
	missing := uuid.New()

	tests := []struct {
		name  string
		input CreateUserInput
		want  int
	}{
		{"staff with store", CreateUserInput{Name: "Aki", Email: "Aki@Example.com", Password: "password1", Role: database.RoleStaff, StoreID: &store.ID}, http.StatusCreated},
		{"duplicate email", CreateUserInput{Name: "Aki", Email: "aki@example.com", Password: "password1", Role: database.RoleStaff, StoreID: &store.ID}, http.StatusConflict},
		{"admin without store", CreateUserInput{Name: "Root", Email: "root@example.com", Password: "password1", Role: database.RoleAdmin}, http.StatusCreated},
		{"staff without store", CreateUserInput{Name: "Ken", Email: "ken@example.com", Password: "password1", Role: database.RoleStaff}, http.StatusBadRequest},
		{"unknown store", CreateUserInput{Name: "Ken", Email: "ken@example.com", Password: "password1", Role: database.RoleStaff, StoreID: &missing}, http.StatusBadRequest},
		{"unknown role", CreateUserInput{Name: "Ken", Email: "ken@example.com", Password: "password1", Role: "owner"}, http.StatusBadRequest},
		{"short password", CreateUserInput{Name: "Ken", Email: "ken@example.com", Password: "short", Role: database.RoleAdmin}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := send(r, http.MethodPost, "/users", tt.input)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}

	var saved database.User
	if err := db.First(&saved, "email = ?", "aki@example.com").Error; err != nil {
		t.Fatalf("email should be stored lowercased: %v", err)
	}
	if saved.PasswordHash == "" || saved.PasswordHash == "password1" {
		t.Errorf("password was not hashed: %q", saved.PasswordHash)
	}
}

func TestUpdateUserDeactivates(t *testing.T) {
	r, db := newRouter(t)
	store := dbtest.Store(t, db, "Store 1")

	w := send(r, http.MethodPost, "/users", CreateUserInput{
		Name: "Aki", Email: "aki@example.com", Password: "password1", Role: database.RoleStaff, StoreID: &store.ID,
	})
	var created struct {
		Data database.User `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	inactive := false
	w = send(r, http.MethodPut, "/users/"+created.Data.ID.String(), UpdateUserInput{IsActive: &inactive})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}

	var saved database.User
	db.First(&saved, "id = ?", created.Data.ID)
	if saved.IsActive {
		t.Error("user should be inactive")
	}
	if saved.StoreID == nil || *saved.StoreID != store.ID {
		t.Errorf("store changed to %v", saved.StoreID)
	}

	w = send(r, http.MethodPut, "/users/"+uuid.NewString(), UpdateUserInput{Name: "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want 404", w.Code)
	}
}
