package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", Validation("bad %s", "input"), http.StatusBadRequest, "VALIDATION"},
		{"conflict", Conflict("duplicate"), http.StatusConflict, "ALREADY_EXISTS"},
		{"forbidden", Forbidden("no"), http.StatusForbidden, "FORBIDDEN"},
		{"not found", NotFound("missing"), http.StatusNotFound, "NOT_FOUND"},
		{"invariant", Invariant("confirmed"), http.StatusUnprocessableEntity, "INVARIANT_VIOLATION"},
		{"wrapped", fmt.Errorf("save: %w", Conflict("duplicate")), http.StatusConflict, "ALREADY_EXISTS"},
		{"foreign", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Status(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("Status() = %d %s, want %d %s", status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("unique constraint")
	err := Wrap(KindConflict, cause, "already exists")

	if !errors.Is(err, cause) {
		t.Error("Wrap() should keep the cause reachable")
	}
	if !Is(err, KindConflict) {
		t.Errorf("KindOf() = %v, want conflict", KindOf(err))
	}
}

func TestRespond(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"domain message is shown", NotFound("Material not found"), http.StatusNotFound, "Material not found"},
		{"internal detail is hidden", errors.New("dial tcp: refused"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			Respond(c, tt.err)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", body["error"], tt.wantError)
			}
		})
	}
}
