// Package config defines the client's configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PPM_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Wallet   WalletConfig   `toml:"wallet"`
	Storage  StorageConfig  `toml:"storage"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Backup   BackupConfig   `toml:"backup"`
	Poll     PollConfig     `toml:"poll"`
	UI       UIConfig       `toml:"ui"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig locates the RPC endpoint and the deployed contract.
type ChainConfig struct {
	RPCURL         string   `toml:"rpc_url"`
	ChainID        uint64   `toml:"chain_id"`
	Contract       string   `toml:"contract"`
	LegacyTx       bool     `toml:"legacy_tx"`
	GasMargin      float64  `toml:"gas_margin"`
	ReceiptPoll    duration `toml:"receipt_poll"`
	ConfirmTimeout duration `toml:"confirm_timeout"`
}

// WalletConfig holds the signing key. Leave both empty for read-only use.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// StorageConfig picks where commitment records live.
type StorageConfig struct {
	// Backend is "leveldb", "memory" or "redis".
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	MarketTTL  duration `toml:"market_ttl"`
}

// PostgresConfig holds the activity log's connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// BackupConfig selects the blob backend for commitment backups.
type BackupConfig struct {
	// Backend is "local" or "s3".
	Backend    string `toml:"backend"`
	Dir        string `toml:"dir"`
	Passphrase string `toml:"passphrase"`
}

// PollConfig sets the watcher's polling cadence.
type PollConfig struct {
	MarketsInterval duration `toml:"markets_interval"`
	StatusInterval  duration `toml:"status_interval"`
}

// UIConfig tunes the interaction state store.
type UIConfig struct {
	ToastTTL duration `toml:"toast_ttl"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Addr        string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit applies to write requests and needs Redis.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config for the public Base Sepolia deployment.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:         "https://sepolia.base.org",
			ChainID:        84532,
			Contract:       "0x3BA8aCD0a7F5B281575bD86d65EA90a9b965A0dc",
			GasMargin:      1.2,
			ReceiptPoll:    duration{2 * time.Second},
			ConfirmTimeout: duration{2 * time.Minute},
		},
		Storage: StorageConfig{
			Backend: "leveldb",
			Path:    "data/commitments",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "ppm",
			MarketTTL:  duration{5 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "ppm-backups",
			ForcePathStyle: true,
		},
		Backup: BackupConfig{
			Backend: "local",
			Dir:     "data/backups",
		},
		Poll: PollConfig{
			MarketsInterval: duration{10 * time.Second},
			StatusInterval:  duration{5 * time.Second},
		},
		UI: UIConfig{
			ToastTTL: duration{5 * time.Second},
		},
		Server: ServerConfig{
			Addr:        ":8000",
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   30,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"reveal_open", "reveal_reminder", "market_resolved"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ContractAddress parses Chain.Contract. Call after Validate.
func (c *Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Chain.Contract)
}

// HasWallet reports whether a signing key is configured.
func (c *Config) HasWallet() bool {
	return c.Wallet.PrivateKey != "" || c.Wallet.EncryptedKeyPath != ""
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if !common.IsHexAddress(c.Chain.Contract) {
		errs = append(errs, fmt.Sprintf("chain: contract %q is not an address", c.Chain.Contract))
	}
	if c.Chain.GasMargin != 0 && c.Chain.GasMargin < 1 {
		errs = append(errs, "chain: gas_margin must be >= 1")
	}
	if c.Chain.ConfirmTimeout.Duration < 0 || c.Chain.ReceiptPoll.Duration < 0 {
		errs = append(errs, "chain: receipt_poll and confirm_timeout must not be negative")
	}

	// Wallet
	if c.Wallet.PrivateKey != "" && c.Wallet.EncryptedKeyPath != "" {
		errs = append(errs, "wallet: set private_key or encrypted_key_path, not both")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Storage
	switch c.Storage.Backend {
	case "leveldb":
		if c.Storage.Path == "" {
			errs = append(errs, "storage: path must not be empty for the leveldb backend")
		}
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			errs = append(errs, "storage: the redis backend needs redis.enabled = true")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown backend %q (valid: leveldb, memory, redis)", c.Storage.Backend))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Backup
	switch c.Backup.Backend {
	case "local":
		if c.Backup.Dir == "" {
			errs = append(errs, "backup: dir must not be empty for the local backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	default:
		errs = append(errs, fmt.Sprintf("backup: unknown backend %q (valid: local, s3)", c.Backup.Backend))
	}

	// Poll
	if c.Poll.MarketsInterval.Duration < time.Second {
		errs = append(errs, "poll: markets_interval must be >= 1s")
	}
	if c.Poll.StatusInterval.Duration < time.Second {
		errs = append(errs, "poll: status_interval must be >= 1s")
	}

	if c.UI.ToastTTL.Duration <= 0 {
		errs = append(errs, "ui: toast_ttl must be > 0")
	}

	// Server
	if c.Server.Addr == "" {
		errs = append(errs, "server: addr must not be empty")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must not be negative")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
