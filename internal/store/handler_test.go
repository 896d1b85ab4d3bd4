package store

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

func newRouter(t *testing.T, db *gorm.DB, p access.Principal) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(db, activitylog.NewLogger(db))
	r := gin.New()
	r.Use(func(c *gin.Context) { access.Set(c, p) })
	r.GET("/stores", h.List)
	r.GET("/stores/:id", h.Get)
	r.POST("/stores", h.Create)
	r.PUT("/stores/:id", h.Update)
	r.POST("/companies", h.CreateCompany)
	return r
}

func send(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func admin() access.Principal {
	return access.Principal{UserID: uuid.New(), Role: database.RoleAdmin}
}

func TestCreateStore(t *testing.T) {
	db := dbtest.Open(t)
	r := newRouter(t, db, admin())
	company := database.Company{Name: "Zaiko"}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}
	missing := uuid.New()

	tests := []struct {
		name  string
		input StoreInput
		want  int
	}{
		{"without company", StoreInput{Name: "Shibuya"}, http.StatusCreated},
		{"with company", StoreInput{Name: "Ueno", CompanyID: &company.ID}, http.StatusCreated},
		{"unknown company", StoreInput{Name: "Ikebukuro", CompanyID: &missing}, http.StatusBadRequest},
		{"blank name", StoreInput{Name: "   "}, http.StatusBadRequest},
		{"missing name", StoreInput{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := send(r, http.MethodPost, "/stores", tt.input)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}

	var count int64
	db.Model(&database.Store{}).Count(&count)
	if count != 2 {
		t.Errorf("stores = %d, want 2", count)
	}
}

func TestUpdateStore(t *testing.T) {
	db := dbtest.Open(t)
	r := newRouter(t, db, admin())
	store := dbtest.Store(t, db, "Store 1")
	company := database.Company{Name: "Zaiko"}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}
	missing := uuid.New()

	tests := []struct {
		name  string
		path  string
		input StoreInput
		want  int
	}{
		{"unknown store", "/stores/" + uuid.NewString(), StoreInput{Name: "x"}, http.StatusNotFound},
		{"malformed id", "/stores/not-a-uuid", StoreInput{Name: "x"}, http.StatusNotFound},
		{"unknown company", "/stores/" + store.ID.String(), StoreInput{Name: "x", CompanyID: &missing}, http.StatusBadRequest},
		{"blank name", "/stores/" + store.ID.String(), StoreInput{Name: "  "}, http.StatusBadRequest},
		{"rename and assign company", "/stores/" + store.ID.String(), StoreInput{Name: " Asakusa ", CompanyID: &company.ID}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := send(r, http.MethodPut, tt.path, tt.input)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}

	var saved database.Store
	if err := db.First(&saved, "id = ?", store.ID).Error; err != nil {
		t.Fatalf("load store: %v", err)
	}
	if saved.Name != "Asakusa" || saved.CompanyID == nil || *saved.CompanyID != company.ID {
		t.Errorf("store = %+v, want Asakusa in company %s", saved, company.ID)
	}
}

func TestStaffSeesOwnStore(t *testing.T) {
	db := dbtest.Open(t)
	own := dbtest.Store(t, db, "Store 1")
	other := dbtest.Store(t, db, "Store 2")
	r := newRouter(t, db, access.Principal{UserID: uuid.New(), Role: database.RoleStaff, StoreID: &own.ID})

	w := send(r, http.MethodGet, "/stores", nil)
	var listed struct {
		Data []database.Store `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed.Data) != 1 || listed.Data[0].ID != own.ID {
		t.Errorf("listed = %+v, want only own store", listed.Data)
	}

	if w := send(r, http.MethodGet, "/stores/"+other.ID.String(), nil); w.Code != http.StatusForbidden {
		t.Errorf("other store status = %d, want 403", w.Code)
	}
	if w := send(r, http.MethodGet, "/stores/"+own.ID.String(), nil); w.Code != http.StatusOK {
		t.Errorf("own store status = %d, want 200", w.Code)
	}
}
