// Package server wires folio's services and exposes them over a Gin router.
package server

import (
	"gorm.io/gorm"

	"folio/internal/config"
	"folio/internal/costbasis"
	"folio/internal/provider"
	"folio/internal/services"
	"folio/internal/snapshot"
	"folio/internal/valuation"
)

// Services holds every service the HTTP layer, the scheduler and the CLI use.
type Services struct {
	Transactions services.TransactionServicer
	Portfolio    services.PortfolioServicer
	Snapshots    services.SnapshotServicer
	Prices       services.PriceServicer
	Fx           services.FxServicer
	Instruments  services.InstrumentServicer
	Journal      services.JournalServicer
	Logs         services.SystemLogServicer
	Auth         services.AuthServicer

	// Refresher is nil when no market-data provider is configured.
	Refresher services.PriceRefreshRunner
}

// NewServices builds the service graph over db. fetcher is the FX fallback
// and may be nil; providers may be empty.
func NewServices(db *gorm.DB, cfg *config.Config, fetcher services.RateFetcher, providers []provider.Provider) *Services {
	cache := services.NewPositionCache(cfg.PositionCacheTTL)
	transactions := services.NewTransactionService(db, cache)
	prices := services.NewPriceService(db)
	fx := services.NewFxService(db, fetcher)
	logs := services.NewSystemLogService(db)
	instruments := services.NewInstrumentService(db)

	engine := costbasis.NewEngine(cfg.SettlementCurrency, fx)
	aggregator := valuation.NewAggregator(prices, cfg.PriceMaxAge)
	portfolio := services.NewPortfolioService(transactions, engine, aggregator, cache)

	recomputer := snapshot.NewRecomputer(transactions, engine, aggregator, services.NewSnapshotStore(db))

	svcs := &Services{
		Transactions: transactions,
		Portfolio:    portfolio,
		Snapshots:    services.NewSnapshotService(db, recomputer, logs),
		Prices:       prices,
		Fx:           fx,
		Instruments:  instruments,
		Journal:      services.NewJournalService(db),
		Logs:         logs,
		Auth:         services.NewAuthService(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.JWTSecret, cfg.JWTExpirationDur),
	}
	if len(providers) > 0 {
		svcs.Refresher = services.NewPriceRefresher(portfolio, instruments, prices, fx, logs, providers, cfg.SettlementCurrency)
	}
	return svcs
}
