package server

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"folio/internal/handlers"
	"folio/internal/middleware"
)

// Options configures the router's middleware.
type Options struct {
	JWTSecret      string
	PipelineAPIKey string

	// RateLimit is requests per second across all clients; zero disables it.
	RateLimit float64
}

// NewRouter builds the Gin engine with every folio route.
func NewRouter(svcs *Services, opts Options) *gin.Engine {
	authHandler := handlers.NewAuthHandler(svcs.Auth)
	transactionHandler := handlers.NewTransactionHandler(svcs.Transactions)
	portfolioHandler := handlers.NewPortfolioHandler(svcs.Portfolio, svcs.Snapshots)
	snapshotHandler := handlers.NewSnapshotHandler(svcs.Snapshots)
	priceHandler := handlers.NewPriceHandler(svcs.Prices, svcs.Fx, svcs.Refresher)
	instrumentHandler := handlers.NewInstrumentHandler(svcs.Instruments)
	journalHandler := handlers.NewJournalHandler(svcs.Journal)
	logHandler := handlers.NewSystemLogHandler(svcs.Logs)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	if opts.RateLimit > 0 {
		router.Use(middleware.RateLimit(opts.RateLimit, int(math.Ceil(opts.RateLimit*2))))
	}

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	v1.POST("/auth/login", authHandler.Login)

	// Pipeline routes, authenticated by API key
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(opts.PipelineAPIKey))
	pipeline.POST("/snapshots", snapshotHandler.PipelineRunSnapshot)
	pipeline.POST("/prices", priceHandler.RecordPrices)
	pipeline.POST("/prices/refresh", priceHandler.RefreshPrices)
	pipeline.POST("/fx-rates", priceHandler.RecordFxRate)
	pipeline.POST("/transactions/import", transactionHandler.ImportTransactions)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(opts.JWTSecret))

	protected.GET("/profile", authHandler.GetProfile)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.POST("/import", transactionHandler.ImportTransactions)
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	portfolio := protected.Group("/portfolio")
	portfolio.GET("", portfolioHandler.GetPortfolio)
	portfolio.GET("/positions", portfolioHandler.GetPositions)
	portfolio.GET("/holdings/:asset_id", portfolioHandler.GetHolding)
	portfolio.GET("/pnl", portfolioHandler.GetPnLSeries)

	snapshots := protected.Group("/snapshots")
	snapshots.POST("/run", snapshotHandler.RunSnapshot)
	snapshots.GET("", snapshotHandler.ListSnapshots)
	snapshots.GET("/runs", snapshotHandler.ListRuns)
	snapshots.GET("/:id", snapshotHandler.GetSnapshot)
	snapshots.DELETE("", snapshotHandler.DeleteAllSnapshots)

	prices := protected.Group("/prices")
	prices.POST("/refresh", priceHandler.RefreshPrices)
	prices.GET("/:asset_id", priceHandler.GetPriceHistory)

	fxRates := protected.Group("/fx-rates")
	fxRates.POST("", priceHandler.RecordFxRate)
	fxRates.GET("/:base/:quote", priceHandler.GetFxRate)

	instruments := protected.Group("/instruments")
	instruments.PUT("", instrumentHandler.UpsertInstrument)
	instruments.GET("", instrumentHandler.ListInstruments)
	instruments.GET("/:asset_id", instrumentHandler.GetInstrument)

	journal := protected.Group("/journal")
	journal.POST("", journalHandler.CreateTrade)
	journal.GET("", journalHandler.ListTrades)
	journal.GET("/:id", journalHandler.GetTrade)
	journal.PUT("/:id", journalHandler.UpdateTrade)
	journal.DELETE("/:id", journalHandler.DeleteTrade)

	protected.GET("/system-logs", logHandler.ListLogs)

	return router
}
