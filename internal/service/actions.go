package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/ui"
	"github.com/alanyoungcy/ppmclient/internal/view"
	"github.com/google/uuid"
)

// Fallback messages for failures outside the contract's error taxonomy.
const (
	FallbackCreate     = "Failed to create market. Please try again."
	FallbackCommit     = "Failed to commit vote. Please try again."
	FallbackReveal     = "Failed to reveal vote. Please try again."
	FallbackTransition = "Failed to transition. Please try again."
	FallbackResolve    = "Failed to resolve. Please try again."
)

// Outcome is what an action reports back to the caller.
type Outcome struct {
	Action   string `json:"action"`
	Message  string `json:"message"`
	MarketID uint64 `json:"market_id"`
	TxHash   string `json:"tx_hash,omitempty"`
	// Secret is only set on commit so the user can write it down.
	Secret string `json:"secret,omitempty"`
	// NeedsSecret is set when a reveal has no stored secret.
	NeedsSecret bool `json:"needs_secret,omitempty"`
}

// Actions is the boundary between user intent and the services. Every
// action validates locally, guards against duplicate submissions, always
// clears the pending flag, and turns failures into toasts.
type Actions struct {
	markets  *MarketService
	voting   *VotingService
	creator  *CreatorService
	ui       *ui.Store
	activity domain.ActivityStore
	bus      domain.SignalBus
	logger   *slog.Logger
}

// NewActions wires the action boundary. activity and bus may be nil.
func NewActions(
	markets *MarketService,
	voting *VotingService,
	creator *CreatorService,
	store *ui.Store,
	activity domain.ActivityStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *Actions {
	return &Actions{
		markets:  markets,
		voting:   voting,
		creator:  creator,
		ui:       store,
		activity: activity,
		bus:      bus,
		logger:   logger.With(slog.String("component", "actions")),
	}
}

// UI returns the UI store the actions report into.
func (a *Actions) UI() *ui.Store { return a.ui }

// Markets returns the read service.
func (a *Actions) Markets() *MarketService { return a.markets }

// Voting returns the voting service.
func (a *Actions) Voting() *VotingService { return a.voting }

// CreateMarket submits the create-market form.
func (a *Actions) CreateMarket(ctx context.Context, in CreateMarketInput) (Outcome, error) {
	if err := a.creator.Validate(&in); err != nil {
		return a.reject("create_market", 0, err)
	}
	out, err := a.run(ctx, "create_market", 0, FallbackCreate, func(ctx context.Context) (Outcome, error) {
		tx, id, err := a.creator.CreateMarket(ctx, in)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Message: "Market created successfully!", MarketID: id, TxHash: tx.Hash.Hex()}, nil
	})
	if err == nil {
		a.ui.CloseCreateMarket()
	}
	return out, err
}

// Commit commits vote on marketID.
func (a *Actions) Commit(ctx context.Context, marketID uint64, vote domain.Vote) (Outcome, error) {
	if !vote.Valid() {
		return a.reject("commit", marketID, &domain.InputError{Field: "vote", Message: "Choose YES or NO."})
	}
	out, err := a.run(ctx, "commit", marketID, FallbackCommit, func(ctx context.Context) (Outcome, error) {
		r, err := a.voting.Commit(ctx, marketID, vote)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Message: "Vote committed: " + view.VoteLabel(vote) + ". Reveal it once the commit phase ends.",
			TxHash:  r.Tx.Hash.Hex(),
			Secret:  r.Secret.String(),
		}, nil
	})
	if err == nil {
		a.ui.CloseTrade()
	}
	return out, err
}

// Reveal reveals the wallet's vote on marketID. manual may be nil.
func (a *Actions) Reveal(ctx context.Context, marketID uint64, manual *ManualReveal) (Outcome, error) {
	out, err := a.run(ctx, "reveal", marketID, FallbackReveal, func(ctx context.Context) (Outcome, error) {
		r, err := a.voting.Reveal(ctx, marketID, manual)
		if err != nil {
			return Outcome{NeedsSecret: errors.Is(err, domain.ErrSecretRequired)}, err
		}
		return Outcome{Message: "Vote revealed: " + view.VoteLabel(r.Vote), TxHash: r.Tx.Hash.Hex()}, nil
	})
	if err == nil {
		a.ui.CloseTrade()
	}
	return out, err
}

// TransitionToReveal closes the commit phase.
func (a *Actions) TransitionToReveal(ctx context.Context, marketID uint64) (Outcome, error) {
	return a.run(ctx, "transition_to_reveal", marketID, FallbackTransition, func(ctx context.Context) (Outcome, error) {
		tx, err := a.creator.TransitionToReveal(ctx, marketID)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Message: "Market transitioned to Reveal phase", TxHash: tx.Hash.Hex()}, nil
	})
}

// TransitionToResolved closes the reveal phase.
func (a *Actions) TransitionToResolved(ctx context.Context, marketID uint64) (Outcome, error) {
	return a.run(ctx, "transition_to_resolved", marketID, FallbackTransition, func(ctx context.Context) (Outcome, error) {
		tx, err := a.creator.TransitionToResolved(ctx, marketID)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Message: "Market transitioned to Resolved state", TxHash: tx.Hash.Hex()}, nil
	})
}

// Resolve records the outcome of marketID.
func (a *Actions) Resolve(ctx context.Context, marketID uint64, outcome *bool) (Outcome, error) {
	if outcome == nil {
		return a.reject("resolve", marketID, &domain.InputError{Field: "outcome", Message: "Please select an outcome"})
	}
	out, err := a.run(ctx, "resolve", marketID, FallbackResolve, func(ctx context.Context) (Outcome, error) {
		tx, err := a.creator.Resolve(ctx, marketID, outcome)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Message: "Market resolved: " + view.OutcomeLabel(*outcome), TxHash: tx.Hash.Hex()}, nil
	})
	if err == nil {
		a.ui.CloseCreatorPanel()
	}
	return out, err
}

// reject reports a local validation failure without touching the pending
// flag or the network.
func (a *Actions) reject(action string, marketID uint64, err error) (Outcome, error) {
	msg := domain.HumanMessage(err, err.Error())
	a.ui.AddToast(msg, ui.ToastError)
	return Outcome{Action: action, Message: msg, MarketID: marketID}, err
}

func (a *Actions) run(ctx context.Context, action string, marketID uint64, fallback string, fn func(context.Context) (Outcome, error)) (Outcome, error) {
	if !a.ui.BeginTx() {
		return a.reject(action, marketID, domain.ErrTxPending)
	}
	defer a.ui.SetPendingTx(false)

	out, err := fn(ctx)
	out.Action = action
	if out.MarketID == 0 {
		out.MarketID = marketID
	}

	if err != nil {
		out.Message = domain.HumanMessage(err, fallback)
		a.ui.AddToast(out.Message, ui.ToastError)
		a.logger.WarnContext(ctx, "action failed",
			slog.String("action", action),
			slog.Uint64("market_id", out.MarketID),
			slog.String("error", err.Error()),
		)
	} else {
		a.ui.AddToast(out.Message, ui.ToastSuccess)
		a.logger.InfoContext(ctx, "action confirmed",
			slog.String("action", action),
			slog.Uint64("market_id", out.MarketID),
			slog.String("tx", out.TxHash),
		)
	}

	a.record(ctx, out, err)
	return out, err
}

// record writes the activity log, publishes it and appends it to the
// activity stream. All best-effort.
func (a *Actions) record(ctx context.Context, out Outcome, actionErr error) {
	act := domain.Activity{
		ID:        uuid.NewString(),
		Wallet:    a.voting.chain.Account(),
		Action:    out.Action,
		Status:    domain.ActivityConfirmed,
		TxHash:    out.TxHash,
		Message:   out.Message,
		CreatedAt: time.Now().UTC(),
	}
	id := out.MarketID
	act.MarketID = &id
	if actionErr != nil {
		act.Status = domain.ActivityFailed
		if tag, ok := domain.ErrorTag(actionErr); ok {
			act.ErrorTag = string(tag)
		}
	}

	// Detach from the request so a cancelled caller still gets logged.
	ctx = context.WithoutCancel(ctx)
	if a.activity != nil {
		if err := a.activity.Record(ctx, act); err != nil {
			a.logger.WarnContext(ctx, "activity record failed", slog.String("error", err.Error()))
		}
	}
	if a.bus != nil {
		payload, err := json.Marshal(act)
		if err != nil {
			return
		}
		if err := a.bus.Publish(ctx, domain.ChannelActivity, payload); err != nil {
			a.logger.WarnContext(ctx, "activity publish failed", slog.String("error", err.Error()))
		}
		if err := a.bus.StreamAppend(ctx, domain.StreamActivity, payload); err != nil {
			a.logger.WarnContext(ctx, "activity stream append failed", slog.String("error", err.Error()))
		}
	}
}
