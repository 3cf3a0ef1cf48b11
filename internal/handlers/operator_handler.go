package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jadbank/internal/models"
	"jadbank/internal/services"
)

// OperatorHandler serves the manual-review endpoints behind the operator key.
type OperatorHandler struct {
	operatorService services.OperatorServicer
	auditService    services.AuditServicer
}

// NewOperatorHandler creates a new OperatorHandler.
func NewOperatorHandler(operatorService services.OperatorServicer, auditService services.AuditServicer) *OperatorHandler {
	return &OperatorHandler{operatorService: operatorService, auditService: auditService}
}

const operatorActor = "operator"

// ReconcileResponse reports one sweep.
type ReconcileResponse struct {
	Success bool `json:"success"`
	*services.ReconcileReport
}

// FlagsResponse lists account flags.
type FlagsResponse struct {
	Success bool                 `json:"success"`
	Flags   []models.AccountFlag `json:"flags"`
}

// FlagResponse carries one account flag.
type FlagResponse struct {
	Success bool                `json:"success"`
	Flag    *models.AccountFlag `json:"flag"`
}

// IntentsResponse lists unfinished intents.
type IntentsResponse struct {
	Success bool            `json:"success"`
	Intents []models.Intent `json:"intents"`
}

// Reconcile runs a reconciliation sweep now
// @Summary     Run reconciliation
// @Description Resolve every unfinished intent now instead of waiting for the background sweep
// @Tags        admin
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} ReconcileResponse "Sweep report"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     503 {object} ErrorResponse "Store unavailable or operator key not configured"
// @Router      /admin/reconcile [post]
func (h *OperatorHandler) Reconcile(c *gin.Context) {
	report, err := h.operatorService.Reconcile(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), operatorActor, "RECONCILE", "intent", "", c.ClientIP(),
		map[string]any{"examined": report.Examined, "inconsistent": report.Inconsistent})
	c.JSON(http.StatusOK, ReconcileResponse{Success: true, ReconcileReport: report})
}

// ListFlags lists accounts locked for manual review
// @Summary     List open flags
// @Description Accounts frozen after an inconsistent intent
// @Tags        admin
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} FlagsResponse "Open flags"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     503 {object} ErrorResponse "Store unavailable or operator key not configured"
// @Router      /admin/flags [get]
func (h *OperatorHandler) ListFlags(c *gin.Context) {
	flags, err := h.operatorService.ListOpenFlags(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, FlagsResponse{Success: true, Flags: flags})
}

// ClearFlag unlocks an account after review
// @Summary     Clear a flag
// @Description Mark a flag reviewed so its account accepts operations again
// @Tags        admin
// @Produce     json
// @Security    ApiKeyAuth
// @Param       id path string true "Flag ID"
// @Success     200 {object} FlagResponse "Cleared flag"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     404 {object} ErrorResponse "Flag not found"
// @Failure     503 {object} ErrorResponse "Store unavailable or operator key not configured"
// @Router      /admin/flags/{id}/clear [post]
func (h *OperatorHandler) ClearFlag(c *gin.Context) {
	flag, err := h.operatorService.ClearFlag(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), operatorActor, "CLEAR_FLAG", "account_flag", flag.ID, c.ClientIP(),
		map[string]any{"account": flag.AccountNumber})
	c.JSON(http.StatusOK, FlagResponse{Success: true, Flag: flag})
}

// ListIntents lists unfinished intents
// @Summary     List open intents
// @Description Intents not yet committed, compensated or abandoned
// @Tags        admin
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} IntentsResponse "Open intents"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     503 {object} ErrorResponse "Store unavailable or operator key not configured"
// @Router      /admin/intents [get]
func (h *OperatorHandler) ListIntents(c *gin.Context) {
	intents, err := h.operatorService.ListOpenIntents(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, IntentsResponse{Success: true, Intents: intents})
}
