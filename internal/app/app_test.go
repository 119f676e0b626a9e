package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/config"
	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/store/local"
	"github.com/alanyoungcy/ppmclient/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Defaults()
	cfg.Chain.RPCURL = "http://127.0.0.1:1" // never dialled eagerly
	cfg.Storage.Backend = "memory"
	cfg.Backup.Dir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return &cfg
}

func TestWire_LocalOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, cleanup, err := Wire(ctx, testConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, common.Address{}, deps.Wallet)
	assert.Equal(t, uint64(84532), deps.ChainID)
	assert.Nil(t, deps.RateLimiter)
	assert.IsType(t, &local.ActivityStore{}, deps.Activity)
	assert.Contains(t, deps.Checks, "chain")
	assert.False(t, deps.Notifier.Enabled())
	assert.Equal(t, "ppm:84532:"+deps.Contract.Hex(), deps.Commitments.Namespace())

	updates, err := deps.SignalBus.Subscribe(ctx, domain.ChannelUI)
	require.NoError(t, err)
	deps.UI.OpenLogin()

	select {
	case raw := <-updates:
		var st ui.State
		require.NoError(t, json.Unmarshal(raw, &st))
		assert.True(t, st.LoginOpen)
	case <-time.After(time.Second):
		t.Fatal("ui change not published")
	}
}

func TestWire_WalletFromKey(t *testing.T) {
	cfg := testConfig(t)
	// Well-known development key #0.
	cfg.Wallet.PrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	deps, cleanup, err := Wire(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", deps.Wallet.Hex())
}

func TestRun_UnknownMode(t *testing.T) {
	a := New(testConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer a.Close()
	err := a.Run(context.Background(), "trade")
	assert.ErrorContains(t, err, `unsupported mode "trade"`)
}
