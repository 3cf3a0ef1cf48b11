package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"jadbank/internal/models"
	"jadbank/internal/pagination"
)

// TransferRequest moves money from one of the caller's accounts to any
// account, converting when the currencies differ.
type TransferRequest struct {
	FromAccount string          `json:"from_account"`
	ToAccount   string          `json:"to_account"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// TransferResult describes both sides of a completed transfer.
type TransferResult struct {
	TransactionID string          `json:"transaction_id"`
	FromAccount   string          `json:"from_account"`
	ToAccount     string          `json:"to_account"`
	Amount        decimal.Decimal `json:"amount"`
	FromCurrency  string          `json:"from_currency"`
	ToAmount      decimal.Decimal `json:"to_amount"`
	ToCurrency    string          `json:"to_currency"`
	Rate          decimal.Decimal `json:"rate"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Replayed      bool            `json:"-"`
}

// ExchangeRequest converts money between two of the caller's own accounts.
type ExchangeRequest struct {
	FromAccount string          `json:"from_account"`
	ToCurrency  string          `json:"to_currency"`
	Amount      decimal.Decimal `json:"amount"`
}

// ExchangeResult describes a completed exchange. Account is set when the
// destination account was opened by this exchange.
type ExchangeResult struct {
	TransactionID string          `json:"transaction_id"`
	FromAccount   string          `json:"from_account"`
	ToAccount     string          `json:"to_account"`
	FromAmount    decimal.Decimal `json:"from_amount"`
	FromCurrency  string          `json:"from_currency"`
	ToAmount      decimal.Decimal `json:"to_amount"`
	ToCurrency    string          `json:"to_currency"`
	Rate          decimal.Decimal `json:"rate"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Provisioned   bool            `json:"provisioned"`
	Account       *models.Account `json:"account,omitempty"`
	Replayed      bool            `json:"-"`
}

// LoanRequest disburses a loan into one of the caller's accounts.
type LoanRequest struct {
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TermMonths    int             `json:"term_months"`
}

// LoanResult holds the issued loan and the credited balance.
type LoanResult struct {
	TransactionID string          `json:"transaction_id"`
	Loan          models.Loan     `json:"loan"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Replayed      bool            `json:"-"`
}

// StockPurchaseRequest buys whole shares with one of the caller's accounts.
type StockPurchaseRequest struct {
	AccountNumber string `json:"account_number"`
	Symbol        string `json:"stock_symbol"`
	Quantity      int64  `json:"quantity"`
}

// StockPurchaseResult describes a completed purchase.
type StockPurchaseResult struct {
	TransactionID string          `json:"transaction_id"`
	Symbol        string          `json:"stock_symbol"`
	Stock         string          `json:"stock"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Replayed      bool            `json:"-"`
}

// BillPaymentRequest pays one of the caller's pending bills.
type BillPaymentRequest struct {
	BillID      string `json:"bill_id"`
	FromAccount string `json:"from_account"`
}

// BillPaymentResult describes a paid bill.
type BillPaymentResult struct {
	TransactionID string          `json:"transaction_id"`
	BillID        string          `json:"bill_id"`
	BillNumber    string          `json:"bill_number"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Provider      string          `json:"provider"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Replayed      bool            `json:"-"`
}

// LedgerServicer defines the money-moving operations. Every operation is
// all-or-nothing and runs at most once per idempotency key.
type LedgerServicer interface {
	Transfer(ctx context.Context, userID, idempotencyKey string, req TransferRequest) (*TransferResult, error)
	Exchange(ctx context.Context, userID, idempotencyKey string, req ExchangeRequest) (*ExchangeResult, error)
	IssueLoan(ctx context.Context, userID, idempotencyKey string, req LoanRequest) (*LoanResult, error)
	BuyStock(ctx context.Context, userID, idempotencyKey string, req StockPurchaseRequest) (*StockPurchaseResult, error)
	PayBill(ctx context.Context, userID, idempotencyKey string, req BillPaymentRequest) (*BillPaymentResult, error)
}

// AccountsOverview lists a user's accounts with their combined value in the
// report currency. Unconverted lists currencies with no rate to it.
type AccountsOverview struct {
	Accounts       []models.Account `json:"accounts"`
	TotalBalance   decimal.Decimal  `json:"total_balance"`
	ReportCurrency string           `json:"report_currency"`
	Unconverted    []string         `json:"unconverted,omitempty"`
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	Kind     *models.TransactionKind
	FromDate *time.Time
	ToDate   *time.Time
}

// AccountServicer defines the read side of accounts and history.
type AccountServicer interface {
	GetUserAccounts(ctx context.Context, userID string) (*AccountsOverview, error)
	GetUserTransactions(ctx context.Context, userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
}

// RateSnapshot is the public view of the rate table.
type RateSnapshot struct {
	Rates       map[string]map[string]decimal.Decimal `json:"rates"`
	LastUpdated time.Time                             `json:"last_updated"`
}

// Holding is one portfolio entry valued at the current catalog price.
type Holding struct {
	models.PortfolioEntry
	CompanyName   string          `json:"company_name"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Priced        bool            `json:"priced"`
	Value         decimal.Decimal `json:"value"`
	Invested      decimal.Decimal `json:"invested"`
	Profit        decimal.Decimal `json:"profit"`
	ProfitPercent decimal.Decimal `json:"profit_percent"`
}

// PortfolioSummary contains a user's holdings and their totals in the
// report currency.
type PortfolioSummary struct {
	Portfolio      []Holding       `json:"portfolio"`
	TotalValue     decimal.Decimal `json:"total_value"`
	TotalInvested  decimal.Decimal `json:"total_invested"`
	ReportCurrency string          `json:"report_currency"`
	Unconverted    []string        `json:"unconverted,omitempty"`
}

// MarketServicer defines the read side of rates, the stock catalog and
// portfolio valuation.
type MarketServicer interface {
	GetRates(ctx context.Context) (*RateSnapshot, error)
	GetStocks(ctx context.Context) ([]models.Stock, error)
	GetPortfolio(ctx context.Context, userID string) (*PortfolioSummary, error)
}

// LoanServicer lists a user's loans.
type LoanServicer interface {
	GetUserLoans(ctx context.Context, userID string) ([]models.Loan, error)
}

// BillServicer lists a user's bills awaiting payment.
type BillServicer interface {
	GetPendingBills(ctx context.Context, userID string) ([]models.Bill, error)
}

// OperatorServicer defines the manual-review surface.
type OperatorServicer interface {
	Reconcile(ctx context.Context) (*ReconcileReport, error)
	ListOpenFlags(ctx context.Context) ([]models.AccountFlag, error)
	ClearFlag(ctx context.Context, flagID string) (*models.AccountFlag, error)
	ListOpenIntents(ctx context.Context) ([]models.Intent, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
