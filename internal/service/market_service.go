package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/view"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

const readConcurrency = 8

// MarketService reads markets and a wallet's participation in them.
type MarketService struct {
	chain  Chain
	cache  domain.MarketCache
	logger *slog.Logger
	now    func() time.Time
}

// NewMarketService creates a MarketService. cache may be nil.
func NewMarketService(chain Chain, cache domain.MarketCache, logger *slog.Logger) *MarketService {
	return &MarketService{
		chain:  chain,
		cache:  cache,
		logger: logger.With(slog.String("component", "market_service")),
		now:    time.Now,
	}
}

// SetClock overrides the wall clock used for view gating.
func (s *MarketService) SetClock(now func() time.Time) { s.now = now }

// ListMarkets reads every market, ids 0..count-1.
func (s *MarketService) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	count, err := s.chain.MarketCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service: count: %w", err)
	}

	markets := make([]domain.Market, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i := uint64(0); i < count; i++ {
		g.Go(func() error {
			m, err := s.chain.GetMarket(gctx, i)
			if err != nil {
				return err
			}
			markets[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("market_service: list: %w", err)
	}

	s.backfill(ctx, markets)
	return markets, nil
}

// GetMarket reads one market.
func (s *MarketService) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	m, err := s.chain.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %d: %w", id, err)
	}
	s.backfill(ctx, []domain.Market{m})
	return m, nil
}

// CachedMarket returns the last snapshot stored by a poll, if any.
func (s *MarketService) CachedMarket(ctx context.Context, id uint64) (domain.Market, error) {
	if s.cache == nil {
		return domain.Market{}, domain.ErrNotFound
	}
	return s.cache.Get(ctx, id)
}

func (s *MarketService) backfill(ctx context.Context, markets []domain.Market) {
	if s.cache == nil {
		return
	}
	for _, m := range markets {
		if err := s.cache.Set(ctx, m); err != nil {
			s.logger.WarnContext(ctx, "cache set failed",
				slog.Uint64("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}

// UserStatus reads hasCommitted and hasRevealed in parallel. Without a
// wallet both are false and no call is made.
func (s *MarketService) UserStatus(ctx context.Context, id uint64, wallet common.Address) (domain.UserStatus, error) {
	if wallet == (common.Address{}) {
		return domain.UserStatus{}, nil
	}

	var st domain.UserStatus
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := s.chain.HasCommitted(gctx, id, wallet)
		st.HasCommitted = ok
		return err
	})
	g.Go(func() error {
		ok, err := s.chain.HasRevealed(gctx, id, wallet)
		st.HasRevealed = ok
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.UserStatus{}, fmt.Errorf("market_service: user status %d: %w", id, err)
	}
	return st, nil
}

// Card renders one market for wallet.
func (s *MarketService) Card(ctx context.Context, id uint64, wallet common.Address) (view.MarketCard, error) {
	m, err := s.GetMarket(ctx, id)
	if err != nil {
		return view.MarketCard{}, err
	}
	status := s.statusOrNil(ctx, id, wallet)
	return view.NewMarketCard(m, status, wallet, s.now()), nil
}

// Cards renders every market for wallet.
func (s *MarketService) Cards(ctx context.Context, wallet common.Address) ([]view.MarketCard, error) {
	markets, err := s.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make([]*domain.UserStatus, len(markets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, m := range markets {
		g.Go(func() error {
			statuses[i] = s.statusOrNil(gctx, m.ID, wallet)
			return nil
		})
	}
	_ = g.Wait()

	now := s.now()
	cards := make([]view.MarketCard, len(markets))
	for i, m := range markets {
		cards[i] = view.NewMarketCard(m, statuses[i], wallet, now)
	}
	return cards, nil
}

// statusOrNil returns nil when the status cannot be read; the card then
// renders with unknown participation.
func (s *MarketService) statusOrNil(ctx context.Context, id uint64, wallet common.Address) *domain.UserStatus {
	if wallet == (common.Address{}) {
		return nil
	}
	st, err := s.UserStatus(ctx, id, wallet)
	if err != nil {
		s.logger.WarnContext(ctx, "user status unavailable",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return &st
}

// CreatorPanel renders the creator panel for wallet. Counts and revealed
// votes the contract withholds with OnlyCreator are left empty.
func (s *MarketService) CreatorPanel(ctx context.Context, id uint64, wallet common.Address) (view.CreatorPanel, error) {
	m, err := s.GetMarket(ctx, id)
	if err != nil {
		return view.CreatorPanel{}, err
	}
	if !view.SameAddress(m.Creator, wallet) {
		return view.NewCreatorPanel(m, wallet, nil, nil, s.now()), nil
	}

	var (
		counts   *domain.VoteCounts
		revealed []domain.RevealedVote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.chain.GetVoteCounts(gctx, id)
		if err != nil {
			return tolerateOnlyCreator(err)
		}
		counts = &c
		return nil
	})
	g.Go(func() error {
		r, err := s.chain.GetRevealedVotes(gctx, id)
		if err != nil {
			return tolerateOnlyCreator(err)
		}
		revealed = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return view.CreatorPanel{}, fmt.Errorf("market_service: creator panel %d: %w", id, err)
	}
	return view.NewCreatorPanel(m, wallet, counts, revealed, s.now()), nil
}

func tolerateOnlyCreator(err error) error {
	if tag, ok := domain.ErrorTag(err); ok && tag == domain.TagOnlyCreator {
		return nil
	}
	return err
}
