package handler

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/commitment"
	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/service"
)

// Actions is the write boundary the action endpoints call.
type Actions interface {
	CreateMarket(ctx context.Context, in service.CreateMarketInput) (service.Outcome, error)
	Commit(ctx context.Context, marketID uint64, vote domain.Vote) (service.Outcome, error)
	Reveal(ctx context.Context, marketID uint64, manual *service.ManualReveal) (service.Outcome, error)
	TransitionToReveal(ctx context.Context, marketID uint64) (service.Outcome, error)
	TransitionToResolved(ctx context.Context, marketID uint64) (service.Outcome, error)
	Resolve(ctx context.Context, marketID uint64, outcome *bool) (service.Outcome, error)
}

// Commitments is the local commitment record surface.
type Commitments interface {
	StoredCommitment(ctx context.Context, marketID uint64) (commitment.Record, bool)
	Commitments(ctx context.Context) ([]commitment.Entry, error)
	ClearCommitment(ctx context.Context, marketID uint64) error
	Prune(ctx context.Context) ([]uint64, error)
}

// ActionHandler serves the transaction endpoints and the local commitment
// records.
type ActionHandler struct {
	actions     Actions
	commitments Commitments
	logger      *slog.Logger
}

// NewActionHandler creates an ActionHandler.
func NewActionHandler(actions Actions, commitments Commitments, logger *slog.Logger) *ActionHandler {
	return &ActionHandler{actions: actions, commitments: commitments, logger: logger}
}

// writeOutcome writes out on success, or the failure with out.Message as
// the error text.
func writeOutcome(w http.ResponseWriter, out service.Outcome, err error) {
	if err != nil {
		writeDomainError(w, err, out.Message)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type createMarketRequest struct {
	Description           string `json:"description"`
	CommitDurationSeconds *int64 `json:"commit_duration_seconds"`
	RevealDurationSeconds *int64 `json:"reveal_duration_seconds"`
}

// CreateMarket creates a market. Missing durations default to 300s.
// POST /api/markets
func (h *ActionHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err, "")
		return
	}
	commit, err := seconds("commit_duration_seconds", req.CommitDurationSeconds, service.DefaultCommitDuration)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	reveal, err := seconds("reveal_duration_seconds", req.RevealDurationSeconds, service.DefaultRevealDuration)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	in := service.CreateMarketInput{
		Description:    req.Description,
		CommitDuration: commit,
		RevealDuration: reveal,
	}
	out, err := h.actions.CreateMarket(r.Context(), in)
	if err == nil {
		writeJSON(w, http.StatusCreated, out)
		return
	}
	writeOutcome(w, out, err)
}

const maxSeconds = math.MaxInt64 / int64(time.Second)

func seconds(field string, v *int64, def time.Duration) (time.Duration, error) {
	if v == nil {
		return def, nil
	}
	if *v > maxSeconds || *v < -maxSeconds {
		return 0, &domain.InputError{Field: field, Message: field + " is out of range"}
	}
	return time.Duration(*v) * time.Second, nil
}

type commitRequest struct {
	Vote string `json:"vote"`
}

// Commit commits a vote. The response carries the generated secret.
// POST /api/markets/{id}/commit
func (h *ActionHandler) Commit(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	var req commitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err, "")
		return
	}
	vote, err := domain.ParseVote(req.Vote)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	out, err := h.actions.Commit(r.Context(), id, vote)
	writeOutcome(w, out, err)
}

type revealRequest struct {
	Vote   string `json:"vote,omitempty"`
	Secret string `json:"secret,omitempty"`
}

// Reveal reveals the stored vote, or the vote and secret in the body.
// POST /api/markets/{id}/reveal
func (h *ActionHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	var req revealRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err, "")
		return
	}
	var manual *service.ManualReveal
	if strings.TrimSpace(req.Secret) != "" {
		vote, err := domain.ParseVote(req.Vote)
		if err != nil {
			writeDomainError(w, err, "")
			return
		}
		manual = &service.ManualReveal{Vote: vote, Secret: req.Secret}
	}
	out, err := h.actions.Reveal(r.Context(), id, manual)
	writeOutcome(w, out, err)
}

type transitionRequest struct {
	To string `json:"to"`
}

// Transition moves the market to "reveal" or "resolved".
// POST /api/markets/{id}/transition
func (h *ActionHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err, "")
		return
	}
	var out service.Outcome
	switch strings.ToLower(req.To) {
	case "reveal":
		out, err = h.actions.TransitionToReveal(r.Context(), id)
	case "resolved":
		out, err = h.actions.TransitionToResolved(r.Context(), id)
	default:
		err = &domain.InputError{Field: "to", Message: `"to" must be "reveal" or "resolved"`}
	}
	writeOutcome(w, out, err)
}

type resolveRequest struct {
	Outcome *bool `json:"outcome"`
}

// Resolve records the outcome.
// POST /api/markets/{id}/resolve
func (h *ActionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err, "")
		return
	}
	out, err := h.actions.Resolve(r.Context(), id, req.Outcome)
	writeOutcome(w, out, err)
}

// GetCommitment returns the stored record for the market.
// GET /api/markets/{id}/commitment
func (h *ActionHandler) GetCommitment(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	rec, ok := h.commitments.StoredCommitment(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "No saved secret for this market.")
		return
	}
	writeJSON(w, http.StatusOK, commitment.Entry{MarketID: id, Record: rec})
}

// ClearCommitment deletes the stored record for the market.
// DELETE /api/markets/{id}/commitment
func (h *ActionHandler) ClearCommitment(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	if err := h.commitments.ClearCommitment(r.Context(), id); err != nil {
		writeDomainError(w, err, "Failed to clear commitment.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCommitments returns every stored record of the wallet.
// GET /api/commitments
func (h *ActionHandler) ListCommitments(w http.ResponseWriter, r *http.Request) {
	entries, err := h.commitments.Commitments(r.Context())
	if err != nil {
		writeDomainError(w, err, "Failed to list commitments.")
		return
	}
	if entries == nil {
		entries = []commitment.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"commitments": entries})
}

// PruneCommitments drops records of revealed or resolved markets.
// POST /api/commitments/prune
func (h *ActionHandler) PruneCommitments(w http.ResponseWriter, r *http.Request) {
	pruned, err := h.commitments.Prune(r.Context())
	if err != nil {
		writeDomainError(w, err, "Failed to prune commitments.")
		return
	}
	if pruned == nil {
		pruned = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pruned": pruned})
}
