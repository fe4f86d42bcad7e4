package main

import (
	"fmt"
	"net/http"
	"time"

	"folio/internal/config"
	"folio/internal/database"
	"folio/internal/provider"
	"folio/internal/server"
)

// app is the service graph a command runs against.
type app struct {
	cfg  *config.Config
	db   *database.Manager
	svcs *server.Services
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	db, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return nil, err
	}

	client := provider.NewLimitedClient(&http.Client{Timeout: 15 * time.Second}, cfg.PriceRefreshRate, 1)
	providers := []provider.Provider{
		provider.NewYahooProvider(client),
		provider.NewCoinGeckoProvider(client, cfg.SettlementCurrency),
	}

	return &app{
		cfg:  cfg,
		db:   db,
		svcs: server.NewServices(db.DB(), cfg, provider.NewForexConverter(client), providers),
	}, nil
}

func (a *app) Close() {
	_ = a.db.Close()
}
