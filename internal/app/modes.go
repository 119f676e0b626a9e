package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/server"
	"github.com/alanyoungcy/ppmclient/internal/server/handler"
	"github.com/alanyoungcy/ppmclient/internal/server/ws"
	"github.com/alanyoungcy/ppmclient/internal/watcher"
	"github.com/ethereum/go-ethereum/common"
)

// NewWatcher builds the watcher for deps' wallet, notifying through the
// configured senders when there are any.
func (a *App) NewWatcher(deps *Dependencies) *watcher.Watcher {
	opts := []watcher.Option{
		watcher.WithBus(deps.SignalBus),
		watcher.WithLocks(deps.LockManager),
		watcher.WithUI(deps.UI),
	}
	if deps.Notifier.Enabled() {
		opts = append(opts, watcher.WithNotifier(deps.Notifier))
	}
	return watcher.New(deps.Markets, deps.Voting, deps.Wallet, watcher.Config{
		MarketsInterval: a.cfg.Poll.MarketsInterval.Duration,
		StatusInterval:  a.cfg.Poll.StatusInterval.Duration,
	}, a.logger, opts...)
}

// ServeMode runs the HTTP API, the WebSocket hub and the watcher until ctx
// is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode",
		slog.String("addr", a.cfg.Server.Addr),
		slog.String("wallet", deps.Wallet.Hex()),
	)

	g, ctx := errgroup.WithContext(ctx)

	w := a.NewWatcher(deps)
	g.Go(func() error { return w.Run(ctx) })

	hub := ws.NewHub(deps.SignalBus, a.snapshot(deps, w), a.logger)
	g.Go(func() error { return hub.Run(ctx) })

	srv := server.NewServer(server.Config{
		Addr:        a.cfg.Server.Addr,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
		Limiter:     deps.RateLimiter,
	}, a.handlers(deps), hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return ignoreCanceled(g.Wait())
}

// WatchMode only polls and notifies.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	if !deps.Notifier.Enabled() {
		a.logger.WarnContext(ctx, "watch mode without notification senders; only the bus will see changes")
	}
	return ignoreCanceled(a.NewWatcher(deps).Run(ctx))
}

func (a *App) handlers(deps *Dependencies) server.Handlers {
	return server.Handlers{
		Health: handler.NewHealthHandler(handler.Info{
			ChainID:  deps.ChainID,
			Contract: deps.Contract.Hex(),
			Wallet:   walletHex(deps),
		}, deps.Checks, a.logger),
		Markets:  handler.NewMarketHandler(deps.Markets, deps.Wallet, a.logger),
		Actions:  handler.NewActionHandler(deps.Actions, deps.Voting, a.logger),
		UI:       handler.NewUIHandler(deps.UI),
		Activity: handler.NewActivityHandler(deps.Activity, deps.SignalBus, deps.Wallet, a.logger),
	}
}

// snapshot feeds a newly connected WebSocket client the current UI state
// and the watcher's last market list.
func (a *App) snapshot(deps *Dependencies, w *watcher.Watcher) ws.SnapshotFunc {
	return func(_ context.Context, channel string) (any, error) {
		switch channel {
		case domain.ChannelUI:
			return deps.UI.Snapshot(), nil
		case domain.ChannelMarkets:
			markets := w.Latest()
			if len(markets) == 0 {
				return nil, nil
			}
			return watcher.Update{Type: "snapshot", Markets: markets, At: time.Now().UTC()}, nil
		}
		return nil, nil
	}
}

func walletHex(deps *Dependencies) string {
	if deps.Wallet == (common.Address{}) {
		return ""
	}
	return deps.Wallet.Hex()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
