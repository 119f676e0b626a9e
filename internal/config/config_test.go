package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0x3BA8aCD0a7F5B281575bD86d65EA90a9b965A0dc", cfg.ContractAddress().Hex())
	assert.False(t, cfg.HasWallet())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ppm.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[chain]
rpc_url = "http://127.0.0.1:8545"
chain_id = 31337

[poll]
markets_interval = "30s"

[notify]
events = ["market_resolved"]
`), 0o600))

	t.Setenv("PPM_POLL_STATUS_INTERVAL", "7s")
	t.Setenv("PPM_SERVER_CORS_ORIGINS", " http://a , ,http://b")
	t.Setenv("PPM_CHAIN_CHAIN_ID", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.Chain.RPCURL)
	assert.Equal(t, uint64(31337), cfg.Chain.ChainID, "unparsable override is ignored")
	assert.Equal(t, 30*time.Second, cfg.Poll.MarketsInterval.Duration)
	assert.Equal(t, 7*time.Second, cfg.Poll.StatusInterval.Duration)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.CORSOrigins)
	assert.Equal(t, []string{"market_resolved"}, cfg.Notify.Events)
	// Untouched sections keep their defaults.
	assert.Equal(t, "leveldb", cfg.Storage.Backend)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Chain.Contract = "0x123"
	cfg.Storage.Backend = "redis"
	cfg.Backup.Backend = "ftp"
	cfg.Wallet.EncryptedKeyPath = "key.json"
	cfg.Notify.TelegramToken = "t"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown log_level "loud"`,
		"chain: contract",
		"storage: the redis backend needs redis.enabled",
		`backup: unknown backend "ftp"`,
		"wallet: key_password is required",
		"notify: telegram_token and telegram_chat_id",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Backup.Passphrase = "hunter2"
	cfg.Server.APIKey = "k"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.Backup.Passphrase)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Empty(t, out.Redis.Password)
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)

	out.Server.CORSOrigins[0] = "changed"
	assert.Equal(t, "http://localhost:3000", cfg.Server.CORSOrigins[0])
}
