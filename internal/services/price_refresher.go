package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"folio/internal/costbasis"
	"folio/internal/logger"
	"folio/internal/models"
	"folio/internal/provider"
)

// RefreshResult contains the outcome of a price refresh.
type RefreshResult struct {
	Instruments    int                   `json:"instruments"`
	PricesFetched  int                   `json:"prices_fetched"`
	PricesRecorded int                   `json:"prices_recorded"`
	Errors         []provider.FetchError `json:"-"`
	ErrorMessages  []string              `json:"errors"`
	Duration       time.Duration         `json:"duration"`
}

// PriceRefresher fetches quotes for every open position from the market-data
// providers, converts them to the settlement currency and records them.
type PriceRefresher struct {
	portfolio   PortfolioServicer
	instruments InstrumentServicer
	prices      PriceServicer
	fx          FxServicer
	logs        SystemLogServicer
	providers   []provider.Provider
	currency    string
}

// NewPriceRefresher creates a new PriceRefresher.
func NewPriceRefresher(
	portfolio PortfolioServicer,
	instruments InstrumentServicer,
	prices PriceServicer,
	fx FxServicer,
	logs SystemLogServicer,
	providers []provider.Provider,
	settlementCurrency string,
) *PriceRefresher {
	return &PriceRefresher{
		portfolio:   portfolio,
		instruments: instruments,
		prices:      prices,
		fx:          fx,
		logs:        logs,
		providers:   providers,
		currency:    strings.ToUpper(settlementCurrency),
	}
}

// Refresh executes a single cycle: resolve instruments, fetch, convert, record.
func (r *PriceRefresher) Refresh(ctx context.Context) (*RefreshResult, error) {
	start := time.Now()
	result := &RefreshResult{ErrorMessages: []string{}}
	log := logger.Named("price_refresher")

	instruments, err := r.openInstruments(ctx)
	if err != nil {
		return nil, err
	}
	result.Instruments = len(instruments)
	if len(instruments) == 0 {
		log.Info("no open positions, nothing to refresh")
		result.Duration = time.Since(start)
		return result, nil
	}

	groups := make(map[int][]provider.Instrument)
	for _, inst := range instruments {
		idx := r.providerFor(inst)
		if idx < 0 {
			result.Errors = append(result.Errors, provider.FetchError{
				AssetID: inst.AssetID,
				Symbol:  inst.Symbol,
				Err:     fmt.Errorf("no provider supports %s", inst.Kind),
			})
			continue
		}
		groups[idx] = append(groups[idx], inst)
	}

	// Each provider writes only its own slot, so batches merge in provider order.
	batches := make([]fetchedBatch, len(r.providers))
	var g errgroup.Group
	for idx, batch := range groups {
		p := r.providers[idx]
		g.Go(func() error {
			log.Infow("fetching prices", "provider", p.Name(), "count", len(batch))
			fetched, fetchErrors := p.FetchPrices(ctx, batch)
			batches[idx] = fetchedBatch{source: p.Name(), quotes: fetched, errors: fetchErrors}
			return nil
		})
	}
	_ = g.Wait()

	var quotes []sourcedQuote
	for _, b := range batches {
		for _, q := range b.quotes {
			quotes = append(quotes, sourcedQuote{Quote: q, source: b.source})
		}
		result.Errors = append(result.Errors, b.errors...)
	}
	result.PricesFetched = len(quotes)

	inputs := make([]PriceInput, 0, len(quotes))
	for _, q := range quotes {
		price := q.Price
		if q.Currency != "" && q.Currency != r.currency {
			converted, err := r.fx.Convert(ctx, q.Price, q.Currency, r.currency, q.RecordedAt)
			if err != nil {
				result.Errors = append(result.Errors, provider.FetchError{AssetID: q.AssetID, Symbol: q.AssetID, Err: err})
				continue
			}
			price = converted
		}
		inputs = append(inputs, PriceInput{
			AssetID:    q.AssetID,
			Price:      price.Round(10),
			RecordedAt: q.RecordedAt,
			Source:     q.source,
		})
	}

	if len(inputs) > 0 {
		recorded, err := r.prices.RecordPrices(inputs)
		if err != nil {
			return nil, err
		}
		result.PricesRecorded = recorded
	}

	for _, fe := range result.Errors {
		result.ErrorMessages = append(result.ErrorMessages, fe.Error())
	}
	result.Duration = time.Since(start)

	level := models.LogLevelInfo
	if len(result.Errors) > 0 {
		level = models.LogLevelWarning
	}
	log.Infow("price refresh finished",
		"instruments", result.Instruments,
		"recorded", result.PricesRecorded,
		"errors", len(result.Errors),
		"duration", result.Duration,
	)
	r.logs.Record(level, "prices", "Price refresh finished", map[string]any{
		"instruments": result.Instruments,
		"recorded":    result.PricesRecorded,
		"errors":      result.ErrorMessages,
	})
	return result, nil
}

type fetchedBatch struct {
	source string
	quotes []provider.Quote
	errors []provider.FetchError
}

type sourcedQuote struct {
	provider.Quote
	source string
}

// openInstruments builds provider instruments for every open position,
// preferring an explicit instrument mapping when one exists.
func (r *PriceRefresher) openInstruments(ctx context.Context) ([]provider.Instrument, error) {
	positions, err := r.portfolio.GetPositions(ctx)
	if err != nil {
		return nil, err
	}

	var open []*costbasis.Position
	ids := make([]string, 0, len(positions))
	for _, pos := range positions {
		if pos.IsOpen() {
			open = append(open, pos)
			ids = append(ids, pos.AssetID)
		}
	}

	mapped, err := r.instruments.InstrumentsFor(ids)
	if err != nil {
		return nil, err
	}

	out := make([]provider.Instrument, 0, len(open))
	for _, pos := range open {
		inst := provider.Instrument{
			AssetID: pos.AssetID,
			Symbol:  firstNonEmpty(pos.Symbol, pos.Asset),
			ISIN:    pos.ISIN,
			Kind:    provider.KindEquity,
		}
		if pos.PortfolioType == models.PortfolioCrypto {
			inst.Kind = provider.KindCrypto
			inst.Symbol = firstNonEmpty(pos.Asset, pos.Symbol)
		}
		if m, ok := mapped[pos.AssetID]; ok {
			inst.ProviderSymbol = m.ProviderSymbol
			inst.Exchange = m.Exchange
			inst.Currency = m.Currency
			if m.Provider == ProviderCoinGecko {
				inst.Kind = provider.KindCrypto
			} else {
				inst.Kind = provider.KindEquity
			}
		}
		out = append(out, inst)
	}
	return out, nil
}

func (r *PriceRefresher) providerFor(inst provider.Instrument) int {
	for i, p := range r.providers {
		if p.Supports(inst.Kind) {
			return i
		}
	}
	return -1
}
