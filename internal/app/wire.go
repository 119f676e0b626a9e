package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	localblob "github.com/alanyoungcy/ppmclient/internal/blob/local"
	s3blob "github.com/alanyoungcy/ppmclient/internal/blob/s3"
	"github.com/alanyoungcy/ppmclient/internal/backup"
	"github.com/alanyoungcy/ppmclient/internal/cache/memory"
	"github.com/alanyoungcy/ppmclient/internal/cache/redis"
	"github.com/alanyoungcy/ppmclient/internal/chain"
	"github.com/alanyoungcy/ppmclient/internal/commitment"
	"github.com/alanyoungcy/ppmclient/internal/config"
	"github.com/alanyoungcy/ppmclient/internal/crypto"
	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/notify"
	"github.com/alanyoungcy/ppmclient/internal/server/handler"
	"github.com/alanyoungcy/ppmclient/internal/service"
	"github.com/alanyoungcy/ppmclient/internal/storage/leveldb"
	memkv "github.com/alanyoungcy/ppmclient/internal/storage/memory"
	"github.com/alanyoungcy/ppmclient/internal/store/local"
	"github.com/alanyoungcy/ppmclient/internal/store/postgres"
	"github.com/alanyoungcy/ppmclient/internal/ui"
	"github.com/ethereum/go-ethereum/common"
)

// Dependencies bundles everything the commands and modes operate on. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Wallet   common.Address
	Contract common.Address
	ChainID  uint64

	// Storage
	KV          domain.KVStore
	Commitments *commitment.Store
	Activity    domain.ActivityStore

	// Caches and bus. RateLimiter is nil without Redis.
	MarketCache domain.MarketCache
	SignalBus   domain.SignalBus
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter

	// Blob storage and backups
	Blobs  domain.BlobStore
	Backup *backup.Service

	UI       *ui.Store
	Markets  *service.MarketService
	Voting   *service.VotingService
	Creator  *service.CreatorService
	Actions  *service.Actions
	Notifier *notify.Notifier

	// Checks are pinged by the health endpoint.
	Checks map[string]handler.Pinger
}

// pingFunc adapts a check function to handler.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(stage string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", stage, err)
	}

	deps := &Dependencies{
		Contract: cfg.ContractAddress(),
		ChainID:  cfg.Chain.ChainID,
		Checks:   make(map[string]handler.Pinger),
	}

	// --- Chain ---
	eth, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fail("chain", err)
	}
	closers = append(closers, eth.Close)
	if deps.ChainID == 0 {
		id, err := eth.ChainID(ctx)
		if err != nil {
			return fail("chain id", err)
		}
		deps.ChainID = id.Uint64()
	}
	deps.Checks["chain"] = pingFunc(func(ctx context.Context) error {
		_, err := eth.BlockNumber(ctx)
		return err
	})

	var signer chain.Signer
	if cfg.HasWallet() {
		w, err := crypto.LoadWallet(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return fail("wallet", err)
		}
		signer = w
		deps.Wallet = w.Address()
	}
	gateway := chain.NewGateway(eth, signer, chain.Config{
		Contract:       deps.Contract,
		ChainID:        deps.ChainID,
		LegacyTx:       cfg.Chain.LegacyTx,
		GasMargin:      cfg.Chain.GasMargin,
		ReceiptPoll:    cfg.Chain.ReceiptPoll.Duration,
		ConfirmTimeout: cfg.Chain.ConfirmTimeout.Duration,
	}, logger)

	// --- Redis (optional) ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Checks["redis"] = redisClient

		deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Redis.MarketTTL.Duration)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	} else {
		deps.MarketCache = memory.NewMarketCache()
		deps.SignalBus = memory.NewSignalBus(0)
		deps.LockManager = memory.NewLockManager()
	}

	// --- Commitment storage ---
	switch cfg.Storage.Backend {
	case "leveldb":
		db, err := leveldb.Open(cfg.Storage.Path)
		if err != nil {
			return fail("storage", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		deps.KV = db
	case "redis":
		deps.KV = redis.NewKVStore(redisClient)
	default:
		deps.KV = memkv.New()
	}
	deps.Commitments = commitment.NewStore(deps.KV, commitment.Namespace(deps.ChainID, deps.Contract), logger)

	// --- Activity log ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)
		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		deps.Checks["postgres"] = pgClient
		deps.Activity = postgres.NewActivityStore(pgClient.Pool())
	} else {
		deps.Activity = local.NewActivityStore(deps.KV)
	}

	// --- Backups ---
	switch cfg.Backup.Backend {
	case "s3":
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.Checks["s3"] = pingFunc(s3Client.Health)
		deps.Blobs = s3Client
	default:
		dir, err := localblob.New(cfg.Backup.Dir)
		if err != nil {
			return fail("backup dir", err)
		}
		deps.Blobs = dir
	}
	deps.Backup = backup.New(deps.Commitments, deps.Blobs, logger)

	// --- UI state, pushed to the bus on every change ---
	deps.UI = ui.NewStore(ui.WithToastTTL(cfg.UI.ToastTTL.Duration))
	bus := deps.SignalBus
	unsubscribe := deps.UI.Subscribe(func(st ui.State) {
		data, err := json.Marshal(st)
		if err != nil {
			return
		}
		if err := bus.Publish(context.Background(), domain.ChannelUI, data); err != nil {
			logger.Debug("wire: ui publish failed", slog.String("error", err.Error()))
		}
	})
	closers = append(closers, unsubscribe, deps.UI.Close)

	// --- Services ---
	deps.Markets = service.NewMarketService(gateway, deps.MarketCache, logger)
	deps.Voting = service.NewVotingService(gateway, deps.Commitments, logger)
	deps.Creator = service.NewCreatorService(gateway, logger)
	deps.Actions = service.NewActions(deps.Markets, deps.Voting, deps.Creator, deps.UI, deps.Activity, deps.SignalBus, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
