package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jadbank/internal/models"
	"jadbank/internal/services"
)

// LoanHandler lists loans and bills. Issuing a loan and paying a bill move
// money and live on LedgerHandler.
type LoanHandler struct {
	loanService services.LoanServicer
	billService services.BillServicer
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(loanService services.LoanServicer, billService services.BillServicer) *LoanHandler {
	return &LoanHandler{loanService: loanService, billService: billService}
}

// LoansResponse lists the caller's active loans.
type LoansResponse struct {
	Success bool          `json:"success"`
	Loans   []models.Loan `json:"loans"`
}

// BillsResponse lists the caller's pending bills.
type BillsResponse struct {
	Success bool          `json:"success"`
	Bills   []models.Bill `json:"bills"`
}

// GetUserLoans handles the caller's loans
// @Summary     Get loans
// @Description Active loans of the caller
// @Tags        loans
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} LoansResponse "Loans"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Store unavailable"
// @Router      /loans [get]
func (h *LoanHandler) GetUserLoans(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	loans, err := h.loanService.GetUserLoans(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, LoansResponse{Success: true, Loans: loans})
}

// GetPendingBills handles the caller's unpaid bills
// @Summary     Get bills
// @Description Bills of the caller awaiting payment
// @Tags        loans
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} BillsResponse "Bills"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Store unavailable"
// @Router      /bills [get]
func (h *LoanHandler) GetPendingBills(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	bills, err := h.billService.GetPendingBills(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, BillsResponse{Success: true, Bills: bills})
}
