// Package watcher polls market state on a fixed cadence, keeps the cache and
// the signal bus fresh, and raises notifications when a market the wallet
// cares about changes phase.
package watcher

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/commitment"
	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/ui"
	"github.com/alanyoungcy/ppmclient/internal/view"
	"github.com/ethereum/go-ethereum/common"
)

// Default poll intervals.
const (
	DefaultMarketsInterval = 10 * time.Second
	DefaultStatusInterval  = 5 * time.Second
)

// Notification event types.
const (
	EventRevealOpen     = "reveal_open"
	EventRevealReminder = "reveal_reminder"
	EventResolved       = "market_resolved"
)

// dedupTTL is how long a sent notification suppresses duplicates from other
// watcher processes.
const dedupTTL = 24 * time.Hour

// MarketReader is the read side the watcher polls.
type MarketReader interface {
	ListMarkets(ctx context.Context) ([]domain.Market, error)
	UserStatus(ctx context.Context, id uint64, wallet common.Address) (domain.UserStatus, error)
}

// CommitmentLister returns the wallet's stored commitments.
type CommitmentLister interface {
	Commitments(ctx context.Context) ([]commitment.Entry, error)
}

// Notifier delivers a notification for an event type.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the watcher's cadence.
type Config struct {
	MarketsInterval time.Duration
	StatusInterval  time.Duration
}

// Update is published on domain.ChannelMarkets after every poll.
type Update struct {
	Type     string                       `json:"type"`
	Markets  []domain.Market              `json:"markets,omitempty"`
	Statuses map[string]domain.UserStatus `json:"statuses,omitempty"`
	At       time.Time                    `json:"at"`
}

// Watcher polls markets and the wallet's status. The bus, notifier, lock
// manager and UI store are optional.
type Watcher struct {
	markets     MarketReader
	commitments CommitmentLister
	wallet      common.Address
	bus         domain.SignalBus
	notifier    Notifier
	locks       domain.LockManager
	ui          *ui.Store
	cfg         Config
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	seen     bool
	states   map[uint64]domain.Market
	statuses map[uint64]domain.UserStatus
	reminded map[uint64]bool
}

// Option configures optional collaborators.
type Option func(*Watcher)

func WithBus(bus domain.SignalBus) Option { return func(w *Watcher) { w.bus = bus } }
func WithNotifier(n Notifier) Option { return func(w *Watcher) { w.notifier = n } }
func WithLocks(l domain.LockManager) Option { return func(w *Watcher) { w.locks = l } }
func WithUI(s *ui.Store) Option { return func(w *Watcher) { w.ui = s } }
func WithClock(now func() time.Time) Option { return func(w *Watcher) { w.now = now } }

// New creates a Watcher for wallet. A zero wallet disables status polling.
func New(markets MarketReader, commitments CommitmentLister, wallet common.Address, cfg Config, logger *slog.Logger, opts ...Option) *Watcher {
	if cfg.MarketsInterval <= 0 {
		cfg.MarketsInterval = DefaultMarketsInterval
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}
	w := &Watcher{
		markets:     markets,
		commitments: commitments,
		wallet:      wallet,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "watcher")),
		now:         time.Now,
		states:      make(map[uint64]domain.Market),
		statuses:    make(map[uint64]domain.UserStatus),
		reminded:    make(map[uint64]bool),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// PollMarkets reads every market once, publishes the snapshot and notifies
// about phase changes since the previous poll. The first poll only records
// state.
func (w *Watcher) PollMarkets(ctx context.Context) error {
	markets, err := w.markets.ListMarkets(ctx)
	if err != nil {
		return fmt.Errorf("watcher: poll markets: %w", err)
	}

	w.mu.Lock()
	first := !w.seen
	w.seen = true
	var changed []change
	for _, m := range markets {
		prev, ok := w.states[m.ID]
		w.states[m.ID] = m
		if first || !ok {
			continue
		}
		if prev.State != m.State || prev.IsResolved != m.IsResolved {
			changed = append(changed, change{prev: prev, cur: m})
		}
	}
	w.mu.Unlock()

	w.publish(ctx, Update{Type: "markets", Markets: markets, At: w.now()})
	for _, c := range changed {
		w.onChange(ctx, c)
	}
	return nil
}

type change struct {
	prev, cur domain.Market
}

func (w *Watcher) onChange(ctx context.Context, c change) {
	m := c.cur
	w.logger.InfoContext(ctx, "market changed",
		slog.Uint64("market_id", m.ID),
		slog.String("from", c.prev.State.String()),
		slog.String("to", m.State.String()),
	)
	switch {
	case m.IsResolved && !c.prev.IsResolved:
		w.notify(ctx, EventResolved, m.ID,
			fmt.Sprintf("Market #%d resolved", m.ID),
			fmt.Sprintf("%q resolved %s.", m.Description, view.OutcomeLabel(m.Outcome)))
	case m.State == domain.MarketStateReveal && c.prev.State == domain.MarketStateCommit:
		w.notify(ctx, EventRevealOpen, m.ID,
			fmt.Sprintf("Market #%d is in the Reveal phase", m.ID),
			fmt.Sprintf("%q: reveal ends in %s.", m.Description, view.TimeRemaining(m.RevealEndTime, w.now())))
	}
}

// PollStatus refreshes the wallet's status on every market it holds a
// stored commitment for, and reminds about unrevealed votes once the reveal
// phase is open.
func (w *Watcher) PollStatus(ctx context.Context) error {
	if w.wallet == (common.Address{}) || w.commitments == nil {
		return nil
	}
	entries, err := w.commitments.Commitments(ctx)
	if err != nil {
		return fmt.Errorf("watcher: poll status: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	statuses := make(map[string]domain.UserStatus, len(entries))
	for _, e := range entries {
		st, err := w.markets.UserStatus(ctx, e.MarketID, w.wallet)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.logger.WarnContext(ctx, "status unavailable",
				slog.Uint64("market_id", e.MarketID),
				slog.String("error", err.Error()),
			)
			continue
		}
		statuses[strconv.FormatUint(e.MarketID, 10)] = st

		w.mu.Lock()
		w.statuses[e.MarketID] = st
		m, known := w.states[e.MarketID]
		remind := known && st.HasCommitted && !st.HasRevealed && !w.reminded[e.MarketID] &&
			view.CanReveal(m, &st, w.now())
		if remind {
			w.reminded[e.MarketID] = true
		}
		w.mu.Unlock()

		if remind {
			msg := fmt.Sprintf("Reveal your vote on market #%d before %s.", m.ID, view.Timestamp(m.RevealEndTime))
			if w.ui != nil {
				w.ui.AddToast(msg, ui.ToastInfo)
			}
			w.notify(ctx, EventRevealReminder, m.ID, "Reveal your vote", msg)
		}
	}

	w.publish(ctx, Update{Type: "status", Statuses: statuses, At: w.now()})
	return nil
}

// Status returns the last polled status for marketID.
func (w *Watcher) Status(marketID uint64) (domain.UserStatus, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.statuses[marketID]
	return st, ok
}

// Latest returns the markets seen by the last poll, ordered by id.
func (w *Watcher) Latest() []domain.Market {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.Market, 0, len(w.states))
	for _, m := range w.states {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b domain.Market) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (w *Watcher) publish(ctx context.Context, u Update) {
	if w.bus == nil {
		return
	}
	payload, err := json.Marshal(u)
	if err != nil {
		w.logger.ErrorContext(ctx, "marshal update", slog.String("error", err.Error()))
		return
	}
	if err := w.bus.Publish(ctx, domain.ChannelMarkets, payload); err != nil {
		w.logger.WarnContext(ctx, "publish update", slog.String("error", err.Error()))
	}
}

// notify sends once per event and market across every watcher sharing the
// lock manager.
func (w *Watcher) notify(ctx context.Context, event string, marketID uint64, title, message string) {
	if w.notifier == nil {
		return
	}
	if w.locks != nil {
		key := "notify:" + event + ":" + strconv.FormatUint(marketID, 10)
		if _, err := w.locks.Acquire(ctx, key, dedupTTL); err != nil {
			if !errors.Is(err, domain.ErrLockHeld) {
				w.logger.WarnContext(ctx, "notify dedup", slog.String("error", err.Error()))
			}
			return
		}
	}
	if err := w.notifier.Notify(ctx, event, title, message); err != nil {
		w.logger.WarnContext(ctx, "notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// Run polls until ctx is cancelled. Both polls run once immediately.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "watcher started",
		slog.Duration("markets_interval", w.cfg.MarketsInterval),
		slog.Duration("status_interval", w.cfg.StatusInterval),
	)
	w.tickMarkets(ctx)
	w.tickStatus(ctx)

	markets := time.NewTicker(w.cfg.MarketsInterval)
	defer markets.Stop()
	status := time.NewTicker(w.cfg.StatusInterval)
	defer status.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return ctx.Err()
		case <-markets.C:
			w.tickMarkets(ctx)
		case <-status.C:
			w.tickStatus(ctx)
		}
	}
}

func (w *Watcher) tickMarkets(ctx context.Context) {
	if err := w.PollMarkets(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("market poll failed", slog.String("error", err.Error()))
	}
}

func (w *Watcher) tickStatus(ctx context.Context) {
	if err := w.PollStatus(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("status poll failed", slog.String("error", err.Error()))
	}
}
