package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/costbasis"
	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/snapshot"
	"folio/internal/valuation"
)

// TransactionInput carries a new transaction as received at the boundary.
// Normalization (upper-casing, alias resolution, UTC, asset id) happens in
// the service.
type TransactionInput struct {
	Source        string
	PortfolioType string
	Operation     string
	Asset         string
	Symbol        string
	ISIN          string
	MIC           string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	Fee           decimal.Decimal
	FeeAsset      string
	FeeQuantity   decimal.Decimal
	FXRate        decimal.Decimal
	Total         decimal.Decimal
	TradedAt      time.Time
	Notes         string
	ExternalRef   *string
}

// TransactionUpdate is a partial update; nil fields are left unchanged.
type TransactionUpdate struct {
	Source        *string
	PortfolioType *string
	Operation     *string
	Asset         *string
	Symbol        *string
	ISIN          *string
	MIC           *string
	Quantity      *decimal.Decimal
	UnitPrice     *decimal.Decimal
	Fee           *decimal.Decimal
	FeeAsset      *string
	FeeQuantity   *decimal.Decimal
	FXRate        *decimal.Decimal
	Total         *decimal.Decimal
	TradedAt      *time.Time
	Notes         *string
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	AssetID       *string
	PortfolioType *string
	Operation     *string
	FromDate      *time.Time
	ToDate        *time.Time
}

// ImportError describes one rejected row of an import batch.
type ImportError struct {
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportResult summarizes an import batch.
type ImportResult struct {
	Inserted int           `json:"inserted"`
	Skipped  int           `json:"skipped"`
	Rejected []ImportError `json:"rejected"`
}

// TransactionServicer is the transaction store: the ingestion boundary for
// CRUD plus the ordered reads consumed by the replay engine.
type TransactionServicer interface {
	CreateTransaction(in TransactionInput) (*models.Transaction, error)
	UpdateTransaction(id string, upd TransactionUpdate) (*models.Transaction, error)
	DeleteTransaction(id string) error
	GetTransactionByID(id string) (*models.Transaction, error)
	ListTransactions(page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	ImportTransactions(inputs []TransactionInput) (*ImportResult, error)

	AssetIDs(ctx context.Context) ([]string, error)
	ListByAsset(ctx context.Context, assetID string) ([]costbasis.Transaction, error)
	ListAll(ctx context.Context) ([]costbasis.Transaction, error)
}

// HoldingDetail is a single asset's replayed position with its valuation.
// Valuation is nil for closed positions.
type HoldingDetail struct {
	Position  *costbasis.Position `json:"position"`
	Valuation *valuation.Holding  `json:"valuation,omitempty"`
}

// PortfolioServicer serves live positions from the position cache,
// replaying an asset only when its entry is missing or invalidated.
type PortfolioServicer interface {
	GetPositions(ctx context.Context) ([]*costbasis.Position, error)
	GetPortfolio(ctx context.Context) (*valuation.Portfolio, error)
	GetHolding(ctx context.Context, assetID string) (*HoldingDetail, error)
}

// PnLPoint is one entry of the P&L time series.
type PnLPoint struct {
	TakenAt    time.Time       `json:"taken_at"`
	TotalValue decimal.Decimal `json:"total_value"`
	TotalPnL   decimal.Decimal `json:"total_pnl"`
}

// SnapshotServicer runs and serves persisted snapshots.
type SnapshotServicer interface {
	RunSnapshot(ctx context.Context, at time.Time, trigger string) (*snapshot.Result, error)
	ListSnapshots(from, to *time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.Snapshot], error)
	GetSnapshotByID(id string) (*models.Snapshot, error)
	GetPnLSeries(from, to *time.Time) ([]PnLPoint, error)
	ListRuns(page pagination.PageRequest) (*pagination.PageResponse[models.SnapshotRun], error)
	DeleteAllSnapshots() (int64, error)
}

// PriceInput is a price to record, already in settlement currency.
type PriceInput struct {
	AssetID    string
	Price      decimal.Decimal
	RecordedAt time.Time
	Source     string
}

// PriceServicer stores market prices and serves point-in-time lookups.
type PriceServicer interface {
	valuation.PriceLookup
	RecordPrices(prices []PriceInput) (int, error)
	GetPriceHistory(assetID string, from, to time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.Price], error)
}

// PriceRefreshRunner runs one market-data refresh cycle.
type PriceRefreshRunner interface {
	Refresh(ctx context.Context) (*RefreshResult, error)
}

// FxServicer converts amounts between currencies using stored rates, with a
// market-data fallback.
type FxServicer interface {
	costbasis.Converter
	GetRate(ctx context.Context, base, quote string, asOf time.Time) (decimal.Decimal, error)
	RecordRate(base, quote string, rate decimal.Decimal, at time.Time, source string) (*models.FxRate, error)
}

// InstrumentServicer maps asset ids to market-data provider symbols.
type InstrumentServicer interface {
	UpsertInstrument(in models.Instrument) (*models.Instrument, error)
	GetInstrument(assetID string) (*models.Instrument, error)
	ListInstruments(page pagination.PageRequest) (*pagination.PageResponse[models.Instrument], error)
	InstrumentsFor(assetIDs []string) (map[string]models.Instrument, error)
}

// JournalTradeInput carries the editable fields of a journal trade.
type JournalTradeInput struct {
	Asset    *string
	Pair     *string
	Setup    *string
	Entry    *decimal.Decimal
	Stop     *decimal.Decimal
	Target   *decimal.Decimal
	RiskR    *decimal.Decimal
	ResultR  *decimal.Decimal
	Status   *string
	OpenedAt *time.Time
	ClosedAt *time.Time
	Notes    *string
}

// JournalServicer manages the trade journal.
type JournalServicer interface {
	CreateTrade(in JournalTradeInput) (*models.JournalTrade, error)
	UpdateTrade(id string, in JournalTradeInput) (*models.JournalTrade, error)
	DeleteTrade(id string) error
	GetTrade(id string) (*models.JournalTrade, error)
	ListTrades(status *string, page pagination.PageRequest) (*pagination.PageResponse[models.JournalTrade], error)
}

// SystemLogServicer records operational events. Record never fails the caller.
type SystemLogServicer interface {
	Record(level, component, message string, meta map[string]any)
	ListLogs(component *string, page pagination.PageRequest) (*pagination.PageResponse[models.SystemLog], error)
}

// AuthServicer authenticates the single portfolio owner.
type AuthServicer interface {
	Login(username, password string) (token string, expiresAt time.Time, err error)
}
