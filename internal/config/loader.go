package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PPM_* environment variable overrides, and
// returns the final Config. A missing file is not an error when path is the
// default "ppm.toml". The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !(path == DefaultPath && errors.Is(err, fs.ErrNotExist)) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "ppm.toml"

// applyEnvOverrides overwrites fields whose PPM_* variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "PPM_CHAIN_RPC_URL")
	setUint64(&cfg.Chain.ChainID, "PPM_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.Contract, "PPM_CHAIN_CONTRACT")
	setBool(&cfg.Chain.LegacyTx, "PPM_CHAIN_LEGACY_TX")
	setFloat64(&cfg.Chain.GasMargin, "PPM_CHAIN_GAS_MARGIN")
	setDuration(&cfg.Chain.ConfirmTimeout, "PPM_CHAIN_CONFIRM_TIMEOUT")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "PPM_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "PPM_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "PPM_WALLET_KEY_PASSWORD")

	// ── Storage ──
	setStr(&cfg.Storage.Backend, "PPM_STORAGE_BACKEND")
	setStr(&cfg.Storage.Path, "PPM_STORAGE_PATH")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PPM_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PPM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PPM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PPM_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "PPM_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "PPM_REDIS_KEY_PREFIX")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "PPM_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "PPM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PPM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PPM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PPM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PPM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PPM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PPM_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "PPM_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PPM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PPM_S3_REGION")
	setStr(&cfg.S3.Bucket, "PPM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PPM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PPM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PPM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PPM_S3_FORCE_PATH_STYLE")

	// ── Backup ──
	setStr(&cfg.Backup.Backend, "PPM_BACKUP_BACKEND")
	setStr(&cfg.Backup.Dir, "PPM_BACKUP_DIR")
	setStr(&cfg.Backup.Passphrase, "PPM_BACKUP_PASSPHRASE")

	// ── Poll ──
	setDuration(&cfg.Poll.MarketsInterval, "PPM_POLL_MARKETS_INTERVAL")
	setDuration(&cfg.Poll.StatusInterval, "PPM_POLL_STATUS_INTERVAL")

	// ── Server ──
	setStr(&cfg.Server.Addr, "PPM_SERVER_ADDR")
	setStringSlice(&cfg.Server.CORSOrigins, "PPM_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PPM_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "PPM_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PPM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PPM_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PPM_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PPM_NOTIFY_EVENTS")

	setStr(&cfg.LogLevel, "PPM_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
