package services

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"folio/internal/costbasis"
	apperrors "folio/internal/errors"
	"folio/internal/valuation"
)

// PositionSource is the slice of the transaction store the portfolio
// service replays from.
type PositionSource interface {
	AssetIDs(ctx context.Context) ([]string, error)
	ListByAsset(ctx context.Context, assetID string) ([]costbasis.Transaction, error)
}

// portfolioService serves live positions and valuations.
type portfolioService struct {
	source     PositionSource
	engine     *costbasis.Engine
	aggregator *valuation.Aggregator
	cache      *PositionCache
	flight     singleflight.Group
	now        func() time.Time
}

// NewPortfolioService creates a new PortfolioServicer.
func NewPortfolioService(source PositionSource, engine *costbasis.Engine, aggregator *valuation.Aggregator, cache *PositionCache) PortfolioServicer {
	return &portfolioService{
		source:     source,
		engine:     engine,
		aggregator: aggregator,
		cache:      cache,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetPositions returns every asset's replayed position, closed ones
// included, ordered by asset id.
func (s *portfolioService) GetPositions(ctx context.Context) ([]*costbasis.Position, error) {
	ids, err := s.source.AssetIDs(ctx)
	if err != nil {
		return nil, err
	}

	positions := make([]*costbasis.Position, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pos, err := s.position(ctx, id)
		if err != nil {
			return nil, err
		}
		if pos.TransactionCount > 0 {
			positions = append(positions, pos)
		}
	}
	return positions, nil
}

// GetPortfolio values all positions at the current instant.
func (s *portfolioService) GetPortfolio(ctx context.Context) (*valuation.Portfolio, error) {
	positions, err := s.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Value(ctx, positions, s.now()), nil
}

// GetHolding returns one asset's position and, when it is open, its
// valuation. A bare symbol or ISIN resolves when it matches exactly one asset.
func (s *portfolioService) GetHolding(ctx context.Context, assetID string) (*HoldingDetail, error) {
	id, err := s.resolve(ctx, assetID)
	if err != nil {
		return nil, err
	}

	pos, err := s.position(ctx, id)
	if err != nil {
		return nil, err
	}
	if pos.TransactionCount == 0 {
		return nil, apperrors.ErrHoldingNotFound
	}

	detail := &HoldingDetail{Position: pos}
	if pos.IsOpen() {
		p := s.aggregator.Value(ctx, []*costbasis.Position{pos}, s.now())
		if len(p.Holdings) == 1 {
			detail.Valuation = &p.Holdings[0]
		}
	}
	return detail, nil
}

func (s *portfolioService) resolve(ctx context.Context, assetID string) (string, error) {
	key := strings.ToUpper(strings.TrimSpace(assetID))
	if key == "" {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Asset id is required")
	}
	if strings.Contains(key, ":") {
		return key, nil
	}

	ids, err := s.source.AssetIDs(ctx)
	if err != nil {
		return "", err
	}
	var match string
	for _, id := range ids {
		if strings.HasSuffix(id, ":"+key) {
			if match != "" {
				return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Identifier matches several assets, use the full asset id")
			}
			match = id
		}
	}
	if match == "" {
		return "", apperrors.ErrHoldingNotFound
	}
	return match, nil
}

// position returns the cached position or replays it. Concurrent misses on
// the same generation share one replay.
func (s *portfolioService) position(ctx context.Context, assetID string) (*costbasis.Position, error) {
	if pos, ok := s.cache.Get(assetID); ok {
		return pos, nil
	}

	gen := s.cache.Generation(assetID)
	v, err, _ := s.flight.Do(gen.Key(assetID), func() (interface{}, error) {
		replayCtx := context.WithoutCancel(ctx)
		txs, err := s.source.ListByAsset(replayCtx, assetID)
		if err != nil {
			return nil, err
		}
		pos := s.engine.Replay(replayCtx, assetID, txs, time.Time{})
		s.cache.StoreIfCurrent(assetID, gen, pos)
		return pos, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*costbasis.Position), nil
}
