package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"folio/internal/auth"
	apperrors "folio/internal/errors"
)

func doGet(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "middleware-secret"

	r := gin.New()
	r.Use(AuthMiddleware(secret))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": c.GetString(UsernameKey)})
	})

	valid, _, err := auth.IssueToken([]byte(secret), "owner", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	expired, _, err := auth.IssueToken([]byte(secret), "owner", time.Hour, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	foreign, _, err := auth.IssueToken([]byte("other-secret"), "owner", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid_token", "Bearer " + valid, http.StatusOK},
		{"missing_header", "", http.StatusUnauthorized},
		{"wrong_scheme", "Basic " + valid, http.StatusUnauthorized},
		{"expired_token", "Bearer " + expired, http.StatusUnauthorized},
		{"foreign_secret", "Bearer " + foreign, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			rec := doGet(r, "/me", headers)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := parseBody(t, rec)
			if tt.wantStatus == http.StatusOK {
				if body["username"] != "owner" {
					t.Errorf("expected username owner, got %v", body["username"])
				}
				return
			}
			errObj, _ := body["error"].(map[string]interface{})
			if errObj["code"] != "UNAUTHORIZED" {
				t.Errorf("expected UNAUTHORIZED, got %v", errObj["code"])
			}
		})
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/app", func(c *gin.Context) { _ = c.Error(apperrors.ErrHoldingNotFound) })
	r.GET("/bind", func(c *gin.Context) { _ = c.Error(errors.New("bad field")).SetType(gin.ErrorTypeBind) })
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("disk on fire")) })

	tests := []struct {
		path       string
		wantStatus int
		wantCode   string
	}{
		{"/app", http.StatusNotFound, "HOLDING_NOT_FOUND"},
		{"/bind", http.StatusBadRequest, "INVALID_INPUT"},
		{"/boom", http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := doGet(r, tt.path, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			errObj, _ := parseBody(t, rec)["error"].(map[string]interface{})
			if errObj["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", errObj["code"], tt.wantCode)
			}
			if tt.path == "/boom" && errObj["message"] == "disk on fire" {
				t.Error("internal error message leaked")
			}
		})
	}
}

func TestRequestLogging_RequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	t.Run("generated", func(t *testing.T) {
		rec := doGet(r, "/ping", nil)
		id := rec.Header().Get("X-Request-ID")
		if id == "" || rec.Body.String() != id {
			t.Errorf("expected generated request id to be echoed, got header %q body %q", id, rec.Body.String())
		}
	})

	t.Run("propagated", func(t *testing.T) {
		const incoming = "01890a5d-ac96-774b-bcce-b302099a8057"
		rec := doGet(r, "/ping", map[string]string{"X-Request-ID": incoming})
		if rec.Header().Get("X-Request-ID") != incoming {
			t.Errorf("expected %s, got %s", incoming, rec.Header().Get("X-Request-ID"))
		}
	})

	t.Run("garbage_replaced", func(t *testing.T) {
		rec := doGet(r, "/ping", map[string]string{"X-Request-ID": "not-a-uuid"})
		if rec.Header().Get("X-Request-ID") == "not-a-uuid" {
			t.Error("expected invalid request id to be replaced")
		}
	})
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(0.001, 2))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		if rec := doGet(r, "/ping", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}
	rec := doGet(r, "/ping", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	errObj, _ := parseBody(t, rec)["error"].(map[string]interface{})
	if errObj["code"] != "RATE_LIMITED" {
		t.Errorf("code = %v, want RATE_LIMITED", errObj["code"])
	}
}
