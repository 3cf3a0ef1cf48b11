package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"jadbank/internal/models"
	"jadbank/internal/pagination"
	"jadbank/internal/services"
	"jadbank/internal/validator"
)

// --- mock services ---

type mockLedgerService struct {
	transferFn  func(ctx context.Context, userID, key string, req services.TransferRequest) (*services.TransferResult, error)
	exchangeFn  func(ctx context.Context, userID, key string, req services.ExchangeRequest) (*services.ExchangeResult, error)
	issueLoanFn func(ctx context.Context, userID, key string, req services.LoanRequest) (*services.LoanResult, error)
	buyStockFn  func(ctx context.Context, userID, key string, req services.StockPurchaseRequest) (*services.StockPurchaseResult, error)
	payBillFn   func(ctx context.Context, userID, key string, req services.BillPaymentRequest) (*services.BillPaymentResult, error)
}

func (m *mockLedgerService) Transfer(ctx context.Context, userID, key string, req services.TransferRequest) (*services.TransferResult, error) {
	if m.transferFn != nil {
		return m.transferFn(ctx, userID, key, req)
	}
	return &services.TransferResult{}, nil
}

func (m *mockLedgerService) Exchange(ctx context.Context, userID, key string, req services.ExchangeRequest) (*services.ExchangeResult, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, userID, key, req)
	}
	return &services.ExchangeResult{}, nil
}

func (m *mockLedgerService) IssueLoan(ctx context.Context, userID, key string, req services.LoanRequest) (*services.LoanResult, error) {
	if m.issueLoanFn != nil {
		return m.issueLoanFn(ctx, userID, key, req)
	}
	return &services.LoanResult{}, nil
}

func (m *mockLedgerService) BuyStock(ctx context.Context, userID, key string, req services.StockPurchaseRequest) (*services.StockPurchaseResult, error) {
	if m.buyStockFn != nil {
		return m.buyStockFn(ctx, userID, key, req)
	}
	return &services.StockPurchaseResult{}, nil
}

func (m *mockLedgerService) PayBill(ctx context.Context, userID, key string, req services.BillPaymentRequest) (*services.BillPaymentResult, error) {
	if m.payBillFn != nil {
		return m.payBillFn(ctx, userID, key, req)
	}
	return &services.BillPaymentResult{}, nil
}

type mockAccountService struct {
	getUserAccountsFn     func(ctx context.Context, userID string) (*services.AccountsOverview, error)
	getUserTransactionsFn func(ctx context.Context, userID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
}

func (m *mockAccountService) GetUserAccounts(ctx context.Context, userID string) (*services.AccountsOverview, error) {
	if m.getUserAccountsFn != nil {
		return m.getUserAccountsFn(ctx, userID)
	}
	return &services.AccountsOverview{Accounts: []models.Account{}}, nil
}

func (m *mockAccountService) GetUserTransactions(ctx context.Context, userID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if m.getUserTransactionsFn != nil {
		return m.getUserTransactionsFn(ctx, userID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, pagination.DefaultPageSize, 0)
	return &resp, nil
}

type mockMarketService struct {
	getRatesFn     func(ctx context.Context) (*services.RateSnapshot, error)
	getStocksFn    func(ctx context.Context) ([]models.Stock, error)
	getPortfolioFn func(ctx context.Context, userID string) (*services.PortfolioSummary, error)
}

func (m *mockMarketService) GetRates(ctx context.Context) (*services.RateSnapshot, error) {
	if m.getRatesFn != nil {
		return m.getRatesFn(ctx)
	}
	return &services.RateSnapshot{}, nil
}

func (m *mockMarketService) GetStocks(ctx context.Context) ([]models.Stock, error) {
	if m.getStocksFn != nil {
		return m.getStocksFn(ctx)
	}
	return []models.Stock{}, nil
}

func (m *mockMarketService) GetPortfolio(ctx context.Context, userID string) (*services.PortfolioSummary, error) {
	if m.getPortfolioFn != nil {
		return m.getPortfolioFn(ctx, userID)
	}
	return &services.PortfolioSummary{Portfolio: []services.Holding{}}, nil
}

type mockLoanService struct {
	getUserLoansFn func(ctx context.Context, userID string) ([]models.Loan, error)
}

func (m *mockLoanService) GetUserLoans(ctx context.Context, userID string) ([]models.Loan, error) {
	if m.getUserLoansFn != nil {
		return m.getUserLoansFn(ctx, userID)
	}
	return []models.Loan{}, nil
}

type mockBillService struct {
	getPendingBillsFn func(ctx context.Context, userID string) ([]models.Bill, error)
}

func (m *mockBillService) GetPendingBills(ctx context.Context, userID string) ([]models.Bill, error) {
	if m.getPendingBillsFn != nil {
		return m.getPendingBillsFn(ctx, userID)
	}
	return []models.Bill{}, nil
}

type mockOperatorService struct {
	reconcileFn       func(ctx context.Context) (*services.ReconcileReport, error)
	listOpenFlagsFn   func(ctx context.Context) ([]models.AccountFlag, error)
	clearFlagFn       func(ctx context.Context, flagID string) (*models.AccountFlag, error)
	listOpenIntentsFn func(ctx context.Context) ([]models.Intent, error)
}

func (m *mockOperatorService) Reconcile(ctx context.Context) (*services.ReconcileReport, error) {
	if m.reconcileFn != nil {
		return m.reconcileFn(ctx)
	}
	return &services.ReconcileReport{}, nil
}

func (m *mockOperatorService) ListOpenFlags(ctx context.Context) ([]models.AccountFlag, error) {
	if m.listOpenFlagsFn != nil {
		return m.listOpenFlagsFn(ctx)
	}
	return []models.AccountFlag{}, nil
}

func (m *mockOperatorService) ClearFlag(ctx context.Context, flagID string) (*models.AccountFlag, error) {
	if m.clearFlagFn != nil {
		return m.clearFlagFn(ctx, flagID)
	}
	return &models.AccountFlag{ID: flagID}, nil
}

func (m *mockOperatorService) ListOpenIntents(ctx context.Context) ([]models.Intent, error) {
	if m.listOpenIntentsFn != nil {
		return m.listOpenIntentsFn(ctx)
	}
	return []models.Intent{}, nil
}

type auditEntry struct {
	userID, action, resourceType, resourceID string
	changes                                  map[string]any
}

// mockAuditService records entries so tests can assert on what was audited.
type mockAuditService struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (m *mockAuditService) Log(_ context.Context, userID, action, resourceType, resourceID, _ string, changes map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditEntry{userID, action, resourceType, resourceID, changes})
}

func (m *mockAuditService) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.action)
	}
	return out
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	return doKeyedRequest(r, method, path, body, "")
}

func doKeyedRequest(r *gin.Engine, method, path, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func assertSuccess(t *testing.T, result map[string]interface{}) {
	t.Helper()
	if result["success"] != true {
		t.Errorf("expected success=true, got %v", result["success"])
	}
}
