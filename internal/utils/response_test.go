package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nicolasparada/go-errs"
)

func TestServiceErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tt := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", errs.NotFoundError("session not found"), http.StatusNotFound, "NOT_FOUND"},
		{"invalid argument", errs.InvalidArgumentError("bad coordinates"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unauthenticated", errs.UnauthenticatedError("token expired"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"permission denied", errs.PermissionDeniedError("not a participant"), http.StatusForbidden, "FORBIDDEN"},
		{"conflict", errs.ConflictError("session already active"), http.StatusConflict, "CONFLICT"},
		{"untyped", errors.New("broken pipe"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)

			ServiceErrorResponse(c, tc.err)

			if recorder.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", recorder.Code, tc.wantStatus)
			}

			var response APIResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if response.Error == nil || response.Error.Code != tc.wantCode {
				t.Errorf("error = %+v, want code %s", response.Error, tc.wantCode)
			}

			// Typed messages surface verbatim; untyped internals stay masked.
			var typed errs.Error
			if errors.As(tc.err, &typed) {
				if response.Error.Message != typed.Error() {
					t.Errorf("message = %q, want %q", response.Error.Message, typed.Error())
				}
			} else if response.Error.Message == tc.err.Error() {
				t.Error("internal error message leaked to the client")
			}
		})
	}
}
