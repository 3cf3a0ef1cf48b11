// Package server assembles the gin router from handlers and middleware.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "jadbank/internal/docs" // Import swagger docs
	"jadbank/internal/handlers"
	"jadbank/internal/middleware"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Ledger   *handlers.LedgerHandler
	Account  *handlers.AccountHandler
	Market   *handlers.MarketHandler
	Loan     *handlers.LoanHandler
	Operator *handlers.OperatorHandler
	Health   *handlers.HealthHandler
}

// Options configures the router.
type Options struct {
	OperatorAPIKey string
	// RequestLogging is off in tests to keep output quiet.
	RequestLogging bool
	Swagger        bool
}

// NewRouter builds the API router.
func NewRouter(h Handlers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.RequestLogging {
		router.Use(middleware.RequestLogging())
	}
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	if opts.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := router.Group("/api")
	api.GET("/health", h.Health.Health)

	// Public market data
	api.GET("/rates", h.Market.GetRates)
	api.GET("/stocks", h.Market.GetStocks)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// Money movement
	protected.POST("/transfer", h.Ledger.Transfer)
	protected.POST("/exchange", h.Ledger.Exchange)
	protected.POST("/loans", h.Ledger.IssueLoan)
	protected.POST("/stocks/buy", h.Ledger.BuyStock)
	protected.POST("/bills/pay", h.Ledger.PayBill)

	// Read side
	protected.GET("/accounts", h.Account.GetUserAccounts)
	protected.GET("/transactions", h.Account.GetUserTransactions)
	protected.GET("/loans", h.Loan.GetUserLoans)
	protected.GET("/bills", h.Loan.GetPendingBills)
	protected.GET("/portfolio", h.Market.GetPortfolio)

	admin := api.Group("/admin")
	admin.Use(middleware.OperatorAuthMiddleware(opts.OperatorAPIKey))
	admin.POST("/reconcile", h.Operator.Reconcile)
	admin.GET("/flags", h.Operator.ListFlags)
	admin.POST("/flags/:id/clear", h.Operator.ClearFlag)
	admin.GET("/intents", h.Operator.ListIntents)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key, X-API-Key")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Idempotent-Replayed, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
