package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "jadbank/internal/errors"
	"jadbank/internal/models"
	"jadbank/internal/pagination"
	"jadbank/internal/services"
)

// AccountHandler handles account-related requests.
type AccountHandler struct {
	accountService services.AccountServicer
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService services.AccountServicer) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// AccountsResponse lists the caller's accounts.
type AccountsResponse struct {
	Success bool `json:"success"`
	*services.AccountsOverview
}

// TransactionsResponse is one page of the caller's history.
type TransactionsResponse struct {
	Success bool `json:"success"`
	pagination.PageResponse[models.Transaction]
}

// GetUserAccounts handles the retrieval of the caller's accounts
// @Summary     Get user accounts
// @Description List the caller's open accounts with their combined value in the report currency
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} AccountsResponse "Accounts"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Store unavailable"
// @Router      /accounts [get]
func (h *AccountHandler) GetUserAccounts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	overview, err := h.accountService.GetUserAccounts(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, AccountsResponse{Success: true, AccountsOverview: overview})
}

// GetUserTransactions handles the retrieval of the caller's transaction history
// @Summary     Get user transactions
// @Description Get a paginated list of transactions touching the caller's accounts, newest first
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 50, max 200)"
// @Param       type      query string false "Filter by kind (transfer, exchange, loan, stock_purchase, bill_payment)"
// @Param       from_date query string false "Filter by start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string false "Filter by end date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} TransactionsResponse "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Store unavailable"
// @Router      /transactions [get]
func (h *AccountHandler) GetUserTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.accountService.GetUserTransactions(c.Request.Context(), userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, TransactionsResponse{Success: true, PageResponse: *result})
}

func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var filter services.TransactionFilter

	if v := c.Query("from_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.FromDate = &t
	}

	if v := c.Query("to_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid to_date format, use RFC3339 or YYYY-MM-DD")
		}
		// A bare date covers the whole day.
		if len(v) == len("2006-01-02") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		filter.ToDate = &t
	}

	if v := c.Query("type"); v != "" {
		kind := models.TransactionKind(v)
		switch kind {
		case models.TransactionKindTransfer, models.TransactionKindExchange, models.TransactionKindLoan,
			models.TransactionKindStockPurchase, models.TransactionKindBillPayment:
			filter.Kind = &kind
		default:
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput,
				"invalid type, must be transfer, exchange, loan, stock_purchase, or bill_payment")
		}
	}

	return filter, nil
}

// parseFlexibleTime accepts RFC3339 or a bare YYYY-MM-DD date.
func parseFlexibleTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
