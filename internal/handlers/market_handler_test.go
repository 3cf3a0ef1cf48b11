package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "jadbank/internal/errors"
	"jadbank/internal/models"
	"jadbank/internal/services"
)

func setupMarketRouter(svc *mockMarketService) *gin.Engine {
	h := NewMarketHandler(svc)
	r := gin.New()
	r.GET("/rates", h.GetRates)
	r.GET("/stocks", h.GetStocks)
	r.GET("/portfolio", injectUserID("alice"), h.GetPortfolio)
	return r
}

func TestMarketHandler_GetRates(t *testing.T) {
	svc := &mockMarketService{
		getRatesFn: func(_ context.Context) (*services.RateSnapshot, error) {
			return &services.RateSnapshot{
				Rates:       map[string]map[string]decimal.Decimal{"JDC": {"IO": decimal.NewFromInt(3)}},
				LastUpdated: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	rec := doRequest(setupMarketRouter(svc), http.MethodGet, "/rates", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	result := parseJSON(t, rec)
	assertSuccess(t, result)
	rates, _ := result["rates"].(map[string]interface{})
	jdc, _ := rates["JDC"].(map[string]interface{})
	if jdc["IO"] != "3" {
		t.Errorf("JDC->IO = %v, want \"3\"", jdc["IO"])
	}
	if result["last_updated"] != "2026-01-01T00:00:00Z" {
		t.Errorf("last_updated = %v", result["last_updated"])
	}
}

func TestMarketHandler_GetStocks(t *testing.T) {
	t.Run("returns catalog", func(t *testing.T) {
		svc := &mockMarketService{
			getStocksFn: func(_ context.Context) ([]models.Stock, error) {
				return []models.Stock{{Symbol: "JAD", CompanyName: "JAD Corp"}}, nil
			},
		}
		rec := doRequest(setupMarketRouter(svc), http.MethodGet, "/stocks", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		stocks, _ := parseJSON(t, rec)["stocks"].([]interface{})
		if len(stocks) != 1 {
			t.Errorf("expected 1 stock, got %d", len(stocks))
		}
	})

	t.Run("store failure returns 503", func(t *testing.T) {
		svc := &mockMarketService{
			getStocksFn: func(_ context.Context) ([]models.Stock, error) {
				return nil, apperrors.ErrStoreUnavailable
			},
		}
		rec := doRequest(setupMarketRouter(svc), http.MethodGet, "/stocks", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})
}

func TestMarketHandler_GetPortfolio(t *testing.T) {
	var gotUser string
	svc := &mockMarketService{
		getPortfolioFn: func(_ context.Context, userID string) (*services.PortfolioSummary, error) {
			gotUser = userID
			return &services.PortfolioSummary{
				Portfolio: []services.Holding{{
					PortfolioEntry: models.PortfolioEntry{Symbol: "JAD", Quantity: 5},
					CurrentPrice:   decimal.NewFromInt(12),
					Priced:         true,
					Value:          decimal.NewFromInt(60),
				}},
				TotalValue:     decimal.NewFromInt(60),
				TotalInvested:  decimal.NewFromInt(50),
				ReportCurrency: "JDC",
			}, nil
		},
	}
	rec := doRequest(setupMarketRouter(svc), http.MethodGet, "/portfolio", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotUser != "alice" {
		t.Errorf("userID = %q", gotUser)
	}
	result := parseJSON(t, rec)
	assertSuccess(t, result)
	if result["total_value"] != "60" || result["total_invested"] != "50" {
		t.Errorf("unexpected totals: %v", result)
	}
	holdings, _ := result["portfolio"].([]interface{})
	if len(holdings) != 1 {
		t.Fatalf("expected 1 holding, got %d", len(holdings))
	}
	if h, _ := holdings[0].(map[string]interface{}); h["value"] != "60" {
		t.Errorf("holding = %v", h)
	}
}
