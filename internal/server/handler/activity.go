package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultFeedCount = 50
	maxFeedCount     = 500
)

// ActivityHandler serves the action log of a wallet and the activity stream.
type ActivityHandler struct {
	store  domain.ActivityStore
	bus    domain.SignalBus
	wallet common.Address
	logger *slog.Logger
}

// NewActivityHandler creates an ActivityHandler. bus may be nil, which
// disables the feed.
func NewActivityHandler(store domain.ActivityStore, bus domain.SignalBus, wallet common.Address, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{store: store, bus: bus, wallet: wallet, logger: logger}
}

// ListActivity returns the wallet's actions, newest first.
// GET /api/activity?wallet=&since=&until=&limit=&offset=
func (h *ActivityHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	wallet := h.wallet
	if v := q.Get("wallet"); v != "" {
		if !common.IsHexAddress(v) {
			writeDomainError(w, &domain.InputError{Field: "wallet", Message: "Invalid wallet address"}, "")
			return
		}
		wallet = common.HexToAddress(v)
	}
	if wallet == (common.Address{}) {
		writeDomainError(w, domain.ErrNoWallet, "")
		return
	}

	opts := parseListOpts(r)
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &opts.Since}, {"until", &opts.Until}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeDomainError(w, &domain.InputError{Field: p.name, Message: "Expected an RFC 3339 time"}, "")
			return
		}
		*p.dst = &t
	}

	items, err := h.store.ListByWallet(r.Context(), wallet, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list activity failed",
			slog.String("wallet", wallet.Hex()),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "Failed to load activity.")
		return
	}
	if items == nil {
		items = []domain.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": items, "total": len(items)})
}

type feedEntry struct {
	ID       string          `json:"id"`
	Activity json.RawMessage `json:"activity"`
}

// Feed returns activity stream entries after a cursor, oldest first, so a
// reconnecting WebSocket client can catch up on what it missed. Pass the
// returned cursor as after on the next call.
// GET /api/activity/feed?after=&count=
func (h *ActivityHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeError(w, http.StatusNotFound, "Activity feed is not enabled.")
		return
	}
	q := r.URL.Query()
	after := q.Get("after")
	if after == "" {
		after = "0"
	}
	count := defaultFeedCount
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeDomainError(w, &domain.InputError{Field: "count", Message: "count must be a positive integer"}, "")
			return
		}
		count = min(n, maxFeedCount)
	}

	msgs, err := h.bus.StreamRead(r.Context(), domain.StreamActivity, after, count)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: read activity feed failed",
			slog.String("after", after),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "Failed to load activity.")
		return
	}

	entries := make([]feedEntry, 0, len(msgs))
	cursor := after
	for _, m := range msgs {
		cursor = m.ID
		if !json.Valid(m.Payload) {
			continue
		}
		entries = append(entries, feedEntry{ID: m.ID, Activity: m.Payload})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "cursor": cursor})
}
