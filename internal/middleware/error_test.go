package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"jadbank/internal/config"
	apperrors "jadbank/internal/errors"
	"jadbank/internal/logger"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"app_error", apperrors.ErrAccountNotFound, http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
		{"wrapped_app_error", apperrors.Wrap(apperrors.ErrStoreUnavailable, errors.New("dial tcp: refused")), http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{"unexpected_error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandler())
			r.GET("/fail", func(c *gin.Context) { _ = c.Error(tt.err) })

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", http.NoBody))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			errObj, _ := parseBody(t, rec)["error"].(map[string]interface{})
			if errObj["code"] != tt.wantErr {
				t.Errorf("error code = %v, want %s", errObj["code"], tt.wantErr)
			}
		})
	}
}

func TestRequestLoggingSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))

	id := rec.Header().Get("X-Request-ID")
	if id == "" {
		t.Fatal("expected X-Request-ID header")
	}
	if rec.Body.String() != id {
		t.Errorf("context request id = %q, header = %q", rec.Body.String(), id)
	}
}

func TestErrorHandlerKeepsWrittenResponse(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/fail", func(c *gin.Context) {
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{"code": "IDEMPOTENCY_IN_PROGRESS"}})
		_ = c.Error(apperrors.ErrInternalServer)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", http.NoBody))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	errObj, _ := parseBody(t, rec)["error"].(map[string]interface{})
	if errObj["code"] != "IDEMPOTENCY_IN_PROGRESS" {
		t.Errorf("error code = %v, want IDEMPOTENCY_IN_PROGRESS", errObj["code"])
	}
}

func TestRequestLoggingFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := logger.Replace(zap.New(core))
	defer restore()

	cfg := config.Defaults()
	cfg.JWTSecret = "test-secret"
	config.Set(cfg)
	token, err := IssueToken("alice", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	r := gin.New()
	r.Use(RequestLogging(), ErrorHandler(), AuthMiddleware())
	r.POST("/transfer", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(header string) {
		req := httptest.NewRequest(http.MethodPost, "/transfer", http.NoBody)
		req.Header.Set("Idempotency-Key", "key-1")
		req.Header.Set("X-Request-ID", "gw-42")
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	send("Bearer " + token)
	send("")

	entries := logs.FilterMessage("request").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 request lines, got %d", len(entries))
	}

	ok := entries[0].ContextMap()
	if ok["request_id"] != "gw-42" {
		t.Errorf("request_id = %v, want gw-42", ok["request_id"])
	}
	if ok["user_id"] != "alice" || ok["idempotency_key"] != "key-1" {
		t.Errorf("expected user and key on the line, got %v", ok)
	}
	if _, found := ok["error_code"]; found {
		t.Errorf("unexpected error_code on a successful request: %v", ok)
	}

	rejected := entries[1].ContextMap()
	if rejected["error_code"] != "UNAUTHORIZED" {
		t.Errorf("error_code = %v, want UNAUTHORIZED", rejected["error_code"])
	}
	if _, found := rejected["user_id"]; found {
		t.Errorf("unauthenticated request must not carry a user: %v", rejected)
	}
}
