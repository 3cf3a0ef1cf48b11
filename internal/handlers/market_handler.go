package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jadbank/internal/models"
	"jadbank/internal/services"
)

// MarketHandler serves rates, the stock catalog and portfolios.
type MarketHandler struct {
	marketService services.MarketServicer
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketService services.MarketServicer) *MarketHandler {
	return &MarketHandler{marketService: marketService}
}

// RatesResponse is the public rate snapshot.
type RatesResponse struct {
	Success bool `json:"success"`
	*services.RateSnapshot
}

// StocksResponse is the stock catalog.
type StocksResponse struct {
	Success bool           `json:"success"`
	Stocks  []models.Stock `json:"stocks"`
}

// PortfolioResponse is the caller's valued portfolio.
type PortfolioResponse struct {
	Success bool `json:"success"`
	*services.PortfolioSummary
}

// GetRates handles the rate snapshot
// @Summary     Get exchange rates
// @Description Current conversion rates keyed by base then quote currency
// @Tags        market
// @Produce     json
// @Success     200 {object} RatesResponse "Rates"
// @Failure     503 {object} ErrorResponse "Store unavailable"
// @Router      /rates [get]
func (h *MarketHandler) GetRates(c *gin.Context) {
	snapshot, err := h.marketService.GetRates(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, RatesResponse{Success: true, RateSnapshot: snapshot})
}

// GetStocks handles the stock catalog
// @Summary     List stocks
// @Description Stocks available for purchase with their prices per currency
// @Tags        market
// @Produce     json
// @Success     200 {object} StocksResponse "Stocks"
// @Failure     503 {object} ErrorResponse "Store unavailable"
// @Router      /stocks [get]
func (h *MarketHandler) GetStocks(c *gin.Context) {
	stocks, err := h.marketService.GetStocks(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, StocksResponse{Success: true, Stocks: stocks})
}

// GetPortfolio handles the caller's portfolio
// @Summary     Get portfolio
// @Description Holdings valued at current prices with totals in the report currency
// @Tags        market
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} PortfolioResponse "Portfolio"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Store unavailable"
// @Router      /portfolio [get]
func (h *MarketHandler) GetPortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.marketService.GetPortfolio(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, PortfolioResponse{Success: true, PortfolioSummary: summary})
}
