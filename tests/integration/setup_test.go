package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"jadbank/internal/config"
	"jadbank/internal/currency"
	"jadbank/internal/logger"
	"jadbank/internal/middleware"
	"jadbank/internal/repository"
	"jadbank/internal/seed"
	"jadbank/internal/server"
	"jadbank/internal/store"
	"jadbank/internal/validator"
)

const operatorKey = "test-operator-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	App    *server.App
	Repo   *repository.Repository
	Router *gin.Engine
}

// keyCounter keeps idempotency keys unique across a test run.
var keyCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
	currency.Register()
}

// setupApp creates a full application stack over a fresh memory store
// seeded with the demo catalog.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	cfg := config.Defaults()
	cfg.JWTSecret = "integration-secret"
	cfg.OperatorAPIKey = operatorKey
	config.Set(cfg)

	repo := repository.New(store.NewMemoryStore())
	if err := seed.Demo(context.Background(), repo); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	app := server.NewApp(cfg, server.Deps{Repo: repo})
	router := server.NewRouter(app.Handlers, server.Options{OperatorAPIKey: operatorKey})

	return &testApp{App: app, Repo: repo, Router: router}
}

// tokenFor issues an access token for userID.
func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := middleware.IssueToken(userID, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

// newKey returns a fresh idempotency key.
func newKey() string {
	return fmt.Sprintf("itest-%d", keyCounter.Add(1))
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	return app.keyedRequest(method, path, body, token, "")
}

// keyedRequest is request with an Idempotency-Key header.
func (app *testApp) keyedRequest(method, path, body, token, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// operatorRequest calls an admin endpoint with the operator API key.
func (app *testApp) operatorRequest(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-API-Key", operatorKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// errorCode extracts error.code from an error response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := parseJSON(t, rec)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// balances returns the caller's balances keyed by account number.
func (app *testApp) balances(t *testing.T, token string) map[string]string {
	t.Helper()
	rec := app.request("GET", "/api/accounts", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("list accounts failed: %d %s", rec.Code, rec.Body.String())
	}
	out := make(map[string]string)
	for _, raw := range parseJSON(t, rec)["accounts"].([]interface{}) {
		acct := raw.(map[string]interface{})
		out[acct["account_number"].(string)] = acct["balance"].(string)
	}
	return out
}
