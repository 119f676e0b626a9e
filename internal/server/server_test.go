package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cachemem "github.com/alanyoungcy/ppmclient/internal/cache/memory"
	"github.com/alanyoungcy/ppmclient/internal/chain/chaintest"
	"github.com/alanyoungcy/ppmclient/internal/commitment"
	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/server/handler"
	"github.com/alanyoungcy/ppmclient/internal/service"
	"github.com/alanyoungcy/ppmclient/internal/storage/memory"
	"github.com/alanyoungcy/ppmclient/internal/store/local"
	"github.com/alanyoungcy/ppmclient/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wallet = common.HexToAddress("0x00000000000000000000000000000000000000c1")

type testAPI struct {
	t      *testing.T
	ledger *chaintest.Ledger
	ui     *ui.Store
	h      http.Handler
}

func newTestAPI(t *testing.T, cfg Config) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := chaintest.NewLedger(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	acct := ledger.As(wallet)
	kv := memory.New()

	markets := service.NewMarketService(acct, nil, logger)
	markets.SetClock(ledger.Now)
	voting := service.NewVotingService(acct, commitment.NewStore(kv, "ppm:test", logger), logger)
	creator := service.NewCreatorService(acct, logger)
	store := ui.NewStore(ui.WithToastTTL(time.Hour))
	t.Cleanup(store.Close)
	activity := local.NewActivityStore(kv)
	bus := cachemem.NewSignalBus(100)
	actions := service.NewActions(markets, voting, creator, store, activity, bus, logger)

	h := Handler(cfg, Handlers{
		Health:   handler.NewHealthHandler(handler.Info{ChainID: 31337}, nil, logger),
		Markets:  handler.NewMarketHandler(markets, wallet, logger),
		Actions:  handler.NewActionHandler(actions, voting, logger),
		UI:       handler.NewUIHandler(store),
		Activity: handler.NewActivityHandler(activity, bus, wallet, logger),
	}, nil, logger)
	return &testAPI{t: t, ledger: ledger, ui: store, h: h}
}

func (a *testAPI) do(method, path string, body any) (int, map[string]any) {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, httptest.NewRequest(method, path, r))

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestAPI_MarketLifecycle(t *testing.T) {
	api := newTestAPI(t, Config{})

	code, body := api.do(http.MethodPost, "/api/markets", map[string]any{"description": "Will it snow in March?"})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "Market created successfully!", body["message"])

	code, body = api.do(http.MethodGet, "/api/markets", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["total"])

	code, body = api.do(http.MethodPost, "/api/markets/0/commit", map[string]any{"vote": "yes"})
	require.Equal(t, http.StatusOK, code, body)
	assert.NotEmpty(t, body["secret"])

	code, _ = api.do(http.MethodGet, "/api/markets/0/commitment", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body = api.do(http.MethodGet, "/api/markets/0/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["has_committed"])

	// Reveal before the phase changes is rejected by the contract.
	code, body = api.do(http.MethodPost, "/api/markets/0/reveal", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, string(domain.TagMarketNotInRevealPhase), body["tag"])

	code, body = api.do(http.MethodPost, "/api/markets/0/transition", map[string]any{"to": "reveal"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "Phase hasn't ended yet.", body["error"])

	api.ledger.Advance(service.DefaultCommitDuration + time.Second)
	code, body = api.do(http.MethodPost, "/api/markets/0/transition", map[string]any{"to": "reveal"})
	require.Equal(t, http.StatusOK, code, body)

	code, body = api.do(http.MethodPost, "/api/markets/0/reveal", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Vote revealed: YES", body["message"])

	api.ledger.Advance(service.DefaultRevealDuration + time.Second)
	code, body = api.do(http.MethodPost, "/api/markets/0/transition", map[string]any{"to": "resolved"})
	require.Equal(t, http.StatusOK, code, body)

	code, body = api.do(http.MethodPost, "/api/markets/0/resolve", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Please select an outcome", body["error"])

	code, body = api.do(http.MethodPost, "/api/markets/0/resolve", map[string]any{"outcome": true})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Market resolved: YES", body["message"])

	code, body = api.do(http.MethodGet, "/api/markets/0", nil)
	require.Equal(t, http.StatusOK, code)
	m := body["market"].(map[string]any)
	assert.Equal(t, true, m["is_resolved"])
	assert.EqualValues(t, 1, m["yes_votes"])

	code, body = api.do(http.MethodPost, "/api/commitments/prune", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{float64(0)}, body["pruned"])

	code, body = api.do(http.MethodGet, "/api/activity", nil)
	require.Equal(t, http.StatusOK, code)
	// create, commit, failed reveal, failed transition, transition, reveal,
	// transition, rejected resolve is not logged, resolve.
	assert.EqualValues(t, 8, body["total"])
}

func TestAPI_BadRequests(t *testing.T) {
	api := newTestAPI(t, Config{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad id", http.MethodGet, "/api/markets/abc", nil, http.StatusBadRequest},
		{"unknown market", http.MethodGet, "/api/markets/7", nil, http.StatusNotFound},
		{"bad vote", http.MethodPost, "/api/markets/0/commit", map[string]any{"vote": "maybe"}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/markets", map[string]any{"title": "x"}, http.StatusBadRequest},
		{"blank description", http.MethodPost, "/api/markets", map[string]any{"description": "  "}, http.StatusBadRequest},
		{"commit duration overflow", http.MethodPost, "/api/markets",
			map[string]any{"description": "x", "commit_duration_seconds": int64(10_000_000_000)}, http.StatusBadRequest},
		{"reveal duration overflow", http.MethodPost, "/api/markets",
			map[string]any{"description": "x", "reveal_duration_seconds": int64(-10_000_000_000)}, http.StatusBadRequest},
		{"bad transition", http.MethodPost, "/api/markets/0/transition", map[string]any{"to": "done"}, http.StatusBadRequest},
		{"no commitment", http.MethodGet, "/api/markets/0/commitment", nil, http.StatusNotFound},
		{"bad wallet", http.MethodGet, "/api/activity?wallet=nope", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api.t = t
			code, body := api.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code, body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAPI_ManualRevealNeedsSecret(t *testing.T) {
	api := newTestAPI(t, Config{})
	code, _ := api.do(http.MethodPost, "/api/markets", map[string]any{"description": "Q"})
	require.Equal(t, http.StatusCreated, code)
	code, body := api.do(http.MethodPost, "/api/markets/0/commit", map[string]any{"vote": "no"})
	require.Equal(t, http.StatusOK, code)
	secret := body["secret"].(string)

	code, _ = api.do(http.MethodDelete, "/api/markets/0/commitment", nil)
	require.Equal(t, http.StatusNoContent, code)

	api.ledger.Advance(service.DefaultCommitDuration + time.Second)
	code, _ = api.do(http.MethodPost, "/api/markets/0/transition", map[string]any{"to": "reveal"})
	require.Equal(t, http.StatusOK, code)

	code, body = api.do(http.MethodPost, "/api/markets/0/reveal", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, true, body["needs_secret"])

	code, body = api.do(http.MethodPost, "/api/markets/0/reveal", map[string]any{"vote": "no", "secret": secret})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Vote revealed: NO", body["message"])
}

func TestAPI_UIActions(t *testing.T) {
	api := newTestAPI(t, Config{})

	code, body := api.do(http.MethodPost, "/api/ui/open-trade", map[string]any{"market_id": 3, "mode": "commit"})
	require.Equal(t, http.StatusOK, code, body)
	trade := body["trade"].(map[string]any)
	assert.EqualValues(t, 3, trade["market_id"])

	code, body = api.do(http.MethodPost, "/api/ui/toast", map[string]any{"message": "hello"})
	require.Equal(t, http.StatusOK, code)
	toasts := body["toasts"].([]any)
	require.Len(t, toasts, 1)
	id := toasts[0].(map[string]any)["id"].(string)

	code, _ = api.do(http.MethodDelete, "/api/ui/toasts/"+id, nil)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Empty(t, api.ui.Snapshot().Toasts)

	code, _ = api.do(http.MethodPost, "/api/ui/dance", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_AuthKeepsHealthOpen(t *testing.T) {
	api := newTestAPI(t, Config{APIKey: "k"})

	code, body := api.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, _ = api.do(http.MethodGet, "/api/markets", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAPI_ActivityFeed(t *testing.T) {
	api := newTestAPI(t, Config{})

	code, body := api.do(http.MethodPost, "/api/markets", map[string]any{"description": "Will it snow in March?"})
	require.Equal(t, http.StatusCreated, code, body)
	code, body = api.do(http.MethodPost, "/api/markets/0/commit", map[string]any{"vote": "no"})
	require.Equal(t, http.StatusOK, code, body)

	code, body = api.do(http.MethodGet, "/api/activity/feed", nil)
	require.Equal(t, http.StatusOK, code, body)
	entries := body["entries"].([]any)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]any)["activity"].(map[string]any)
	assert.Equal(t, "create_market", first["action"])
	last := entries[1].(map[string]any)
	assert.Equal(t, "commit", last["activity"].(map[string]any)["action"])
	assert.Equal(t, last["id"], body["cursor"])

	cursor := body["cursor"].(string)
	code, body = api.do(http.MethodGet, "/api/activity/feed?after="+cursor, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Empty(t, body["entries"])
	assert.Equal(t, cursor, body["cursor"])

	code, _ = api.do(http.MethodGet, "/api/activity/feed?count=0", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
