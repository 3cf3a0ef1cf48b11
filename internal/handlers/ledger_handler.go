package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "jadbank/internal/errors"
	"jadbank/internal/services"
)

// LedgerHandler handles the money-moving endpoints.
type LedgerHandler struct {
	ledgerService services.LedgerServicer
	auditService  services.AuditServicer
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerService services.LedgerServicer, auditService services.AuditServicer) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService, auditService: auditService}
}

// TransferRequest represents the request payload for a transfer
type TransferRequest struct {
	FromAccount string      `json:"from_account" binding:"required,max=64"`
	ToAccount   string      `json:"to_account" binding:"required,max=64"`
	Amount      json.Number `json:"amount" binding:"required,decimal_amount" swaggertype:"string" example:"100.50"`
	Description string      `json:"description" binding:"max=255"`
}

// ExchangeRequest represents the request payload for a currency exchange
type ExchangeRequest struct {
	FromAccount string      `json:"from_account" binding:"required,max=64"`
	ToCurrency  string      `json:"to_currency" binding:"required,currency_code"`
	Amount      json.Number `json:"amount" binding:"required,decimal_amount" swaggertype:"string" example:"50"`
}

// LoanRequest represents the request payload for a loan application
type LoanRequest struct {
	AccountNumber string      `json:"account_number" binding:"required,max=64"`
	Amount        json.Number `json:"amount" binding:"required,decimal_amount" swaggertype:"string" example:"1000"`
	Currency      string      `json:"currency" binding:"required,currency_code"`
	TermMonths    int         `json:"term_months" binding:"required,min=1"`
}

// BuyStockRequest represents the request payload for a stock purchase
type BuyStockRequest struct {
	AccountNumber string `json:"account_number" binding:"required,max=64"`
	StockSymbol   string `json:"stock_symbol" binding:"required,stock_symbol"`
	Quantity      int64  `json:"quantity" binding:"required,min=1"`
}

// PayBillRequest represents the request payload for a bill payment
type PayBillRequest struct {
	BillID      string `json:"bill_id" binding:"required,max=64"`
	FromAccount string `json:"from_account" binding:"required,max=64"`
}

// TransferResponse is returned by a completed transfer.
type TransferResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*services.TransferResult
}

// ExchangeResponse is returned by a completed exchange.
type ExchangeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*services.ExchangeResult
}

// LoanResponse is returned by an approved loan.
type LoanResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*services.LoanResult
}

// BuyStockResponse is returned by a completed stock purchase.
type BuyStockResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*services.StockPurchaseResult
}

// PayBillResponse is returned by a paid bill.
type PayBillResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*services.BillPaymentResult
}

// Transfer handles a transfer between accounts
// @Summary     Transfer money
// @Description Move money from one of the caller's accounts to any account, converting at the current rate when currencies differ
// @Tags        ledger
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key header string true "Client-chosen key; retries with the same key replay the first outcome"
// @Param       request body TransferRequest true "Transfer details"
// @Success     200 {object} TransferResponse "Transfer completed"
// @Failure     400 {object} ErrorResponse "Invalid input or insufficient funds"
// @Failure     403 {object} ErrorResponse "Account belongs to another user"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     409 {object} ErrorResponse "Key in progress or account under reconciliation"
// @Failure     422 {object} ErrorResponse "Key reused with a different request"
// @Failure     502 {object} ErrorResponse "Outcome unknown, being reconciled"
// @Failure     503 {object} ErrorResponse "Store unavailable, nothing changed"
// @Router      /transfer [post]
func (h *LedgerHandler) Transfer(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	amount, err := parseAmount("amount", req.Amount.String())
	if err != nil {
		respondWithError(c, err)
		return
	}
	key, err := getIdempotencyKey(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.Transfer(c.Request.Context(), userID, key, services.TransferRequest{
		FromAccount: req.FromAccount,
		ToAccount:   req.ToAccount,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	if !result.Replayed {
		h.auditService.Log(c.Request.Context(), userID, "TRANSFER", "transaction", result.TransactionID, c.ClientIP(),
			map[string]any{"from": result.FromAccount, "to": result.ToAccount, "amount": result.Amount.String(), "currency": result.FromCurrency})
	}

	markReplayed(c, result.Replayed)
	c.JSON(http.StatusOK, TransferResponse{Success: true, Message: "Transfer completed", TransferResult: result})
}

// Exchange handles a currency exchange between the caller's own accounts
// @Summary     Exchange currency
// @Description Convert money into another currency, opening an account in that currency when the caller has none
// @Tags        ledger
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key header string true "Client-chosen key; retries with the same key replay the first outcome"
// @Param       request body ExchangeRequest true "Exchange details"
// @Success     200 {object} ExchangeResponse "Exchange completed"
// @Failure     400 {object} ErrorResponse "Invalid input, no rate, or insufficient funds"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     409 {object} ErrorResponse "Key in progress or account under reconciliation"
// @Failure     502 {object} ErrorResponse "Outcome unknown, being reconciled"
// @Failure     503 {object} ErrorResponse "Store unavailable, nothing changed"
// @Router      /exchange [post]
func (h *LedgerHandler) Exchange(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	amount, err := parseAmount("amount", req.Amount.String())
	if err != nil {
		respondWithError(c, err)
		return
	}
	key, err := getIdempotencyKey(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.Exchange(c.Request.Context(), userID, key, services.ExchangeRequest{
		FromAccount: req.FromAccount,
		ToCurrency:  req.ToCurrency,
		Amount:      amount,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	if !result.Replayed {
		h.auditService.Log(c.Request.Context(), userID, "EXCHANGE", "transaction", result.TransactionID, c.ClientIP(),
			map[string]any{"from": result.FromAccount, "to": result.ToAccount, "amount": result.FromAmount.String(), "provisioned": result.Provisioned})
	}

	markReplayed(c, result.Replayed)
	c.JSON(http.StatusOK, ExchangeResponse{Success: true, Message: "Exchange completed", ExchangeResult: result})
}

// IssueLoan handles a loan application
// @Summary     Take a loan
// @Description Disburse a loan into one of the caller's accounts in the account's currency
// @Tags        ledger
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key header string true "Client-chosen key; retries with the same key replay the first outcome"
// @Param       request body LoanRequest true "Loan details"
// @Success     201 {object} LoanResponse "Loan approved"
// @Failure     400 {object} ErrorResponse "Invalid input or currency mismatch"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     409 {object} ErrorResponse "Key in progress or account under reconciliation"
// @Failure     502 {object} ErrorResponse "Outcome unknown, being reconciled"
// @Failure     503 {object} ErrorResponse "Store unavailable, nothing changed"
// @Router      /loans [post]
func (h *LedgerHandler) IssueLoan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req LoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	amount, err := parseAmount("amount", req.Amount.String())
	if err != nil {
		respondWithError(c, err)
		return
	}
	key, err := getIdempotencyKey(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.IssueLoan(c.Request.Context(), userID, key, services.LoanRequest{
		AccountNumber: req.AccountNumber,
		Amount:        amount,
		Currency:      req.Currency,
		TermMonths:    req.TermMonths,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	if !result.Replayed {
		h.auditService.Log(c.Request.Context(), userID, "ISSUE_LOAN", "loan", result.Loan.ID, c.ClientIP(),
			map[string]any{"account": result.Loan.AccountNumber, "amount": result.Loan.Principal.String(), "term_months": result.Loan.TermMonths})
	}

	markReplayed(c, result.Replayed)
	c.JSON(http.StatusCreated, LoanResponse{Success: true, Message: "Loan approved", LoanResult: result})
}

// BuyStock handles a stock purchase
// @Summary     Buy stock
// @Description Buy whole shares priced in the paying account's currency
// @Tags        ledger
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key header string true "Client-chosen key; retries with the same key replay the first outcome"
// @Param       request body BuyStockRequest true "Purchase details"
// @Success     200 {object} BuyStockResponse "Purchase completed"
// @Failure     400 {object} ErrorResponse "Invalid input, unsupported currency, or insufficient funds"
// @Failure     404 {object} ErrorResponse "Account or stock not found"
// @Failure     409 {object} ErrorResponse "Key in progress or account under reconciliation"
// @Failure     502 {object} ErrorResponse "Outcome unknown, being reconciled"
// @Failure     503 {object} ErrorResponse "Store unavailable, nothing changed"
// @Router      /stocks/buy [post]
func (h *LedgerHandler) BuyStock(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BuyStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	key, err := getIdempotencyKey(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.BuyStock(c.Request.Context(), userID, key, services.StockPurchaseRequest{
		AccountNumber: req.AccountNumber,
		Symbol:        req.StockSymbol,
		Quantity:      req.Quantity,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	if !result.Replayed {
		h.auditService.Log(c.Request.Context(), userID, "BUY_STOCK", "transaction", result.TransactionID, c.ClientIP(),
			map[string]any{"symbol": result.Symbol, "quantity": result.Quantity, "total": result.Total.String()})
	}

	markReplayed(c, result.Replayed)
	c.JSON(http.StatusOK, BuyStockResponse{
		Success:             true,
		Message:             fmt.Sprintf("Bought %d shares of %s", result.Quantity, result.Symbol),
		StockPurchaseResult: result,
	})
}

// PayBill handles a bill payment
// @Summary     Pay a bill
// @Description Pay one of the caller's pending bills from an account in the bill's currency
// @Tags        ledger
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key header string true "Client-chosen key; retries with the same key replay the first outcome"
// @Param       request body PayBillRequest true "Payment details"
// @Success     200 {object} PayBillResponse "Bill paid"
// @Failure     400 {object} ErrorResponse "Invalid input, already paid, currency mismatch, or insufficient funds"
// @Failure     403 {object} ErrorResponse "Bill or account belongs to another user"
// @Failure     404 {object} ErrorResponse "Bill or account not found"
// @Failure     409 {object} ErrorResponse "Key in progress or account under reconciliation"
// @Failure     502 {object} ErrorResponse "Outcome unknown, being reconciled"
// @Failure     503 {object} ErrorResponse "Store unavailable, nothing changed"
// @Router      /bills/pay [post]
func (h *LedgerHandler) PayBill(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PayBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	key, err := getIdempotencyKey(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.PayBill(c.Request.Context(), userID, key, services.BillPaymentRequest{
		BillID:      req.BillID,
		FromAccount: req.FromAccount,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	if !result.Replayed {
		h.auditService.Log(c.Request.Context(), userID, "PAY_BILL", "bill", result.BillID, c.ClientIP(),
			map[string]any{"bill_number": result.BillNumber, "amount": result.Amount.String(), "provider": result.Provider})
	}

	markReplayed(c, result.Replayed)
	c.JSON(http.StatusOK, PayBillResponse{
		Success:           true,
		Message:           fmt.Sprintf("Bill %s paid", result.BillNumber),
		BillPaymentResult: result,
	})
}
