package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/anthroposcity/actgate/internal/auth"
	"github.com/anthroposcity/actgate/internal/blockchain"
	"github.com/anthroposcity/actgate/internal/config"
	"github.com/anthroposcity/actgate/internal/gatekeeper"
	"github.com/anthroposcity/actgate/internal/http_api"
	"github.com/anthroposcity/actgate/internal/models"
	"github.com/anthroposcity/actgate/internal/notificator"
	"github.com/anthroposcity/actgate/internal/price"
	"github.com/anthroposcity/actgate/internal/repository"
	"github.com/anthroposcity/actgate/internal/signature"
	"github.com/anthroposcity/actgate/internal/verification"
	"github.com/anthroposcity/actgate/internal/whop"
	"github.com/anthroposcity/actgate/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "actgate",
		Usage: "actgate promotes community members to Publisher once they prove they hold enough ACT on Arbitrum",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.StringFlag{Name: "redis-url", Aliases: []string{"r"}, Usage: "Redis URL for the price cache and rate limiting"},
			&cli.StringFlag{Name: "arbitrum-rpc-url", Aliases: []string{"b"}, Usage: "Arbitrum JSON-RPC URL"},
			&cli.StringFlag{Name: "act-token-address", Aliases: []string{"s"}, Usage: "ACT token contract address"},
			&cli.Float64Flag{Name: "min-usd-threshold", Aliases: []string{"m"}, Usage: "Minimum USD value of ACT for Publisher"},
			&cli.StringFlag{Name: "price-strategy", Usage: "Price source: aggregator or onchain"},
			&cli.IntFlag{Name: "api-port", Usage: "HTTP API port"},
			&cli.StringSliceFlag{Name: "trusted-proxies", Usage: "Proxy IPs or CIDRs allowed to set X-Forwarded-For"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("redis-url") {
		cfg.RedisURL = c.String("redis-url")
	}
	if c.IsSet("arbitrum-rpc-url") {
		cfg.ArbitrumRPCURL = c.String("arbitrum-rpc-url")
	}
	if c.IsSet("act-token-address") {
		cfg.ACTTokenAddress = c.String("act-token-address")
	}
	if c.IsSet("min-usd-threshold") {
		cfg.MinUSDThreshold = c.Float64("min-usd-threshold")
	}
	if c.IsSet("price-strategy") {
		cfg.PriceStrategy = c.String("price-strategy")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("trusted-proxies") {
		cfg.TrustedProxies = c.StringSlice("trusted-proxies")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := openRepository(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis is optional
	cache, err := openRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	// Initialize blockchain service
	chain, err := openChain(cfg, log)
	if err != nil {
		return err
	}
	defer chain.Close()

	prices := newPriceResolver(cfg, chain, cache, log)

	engine := verification.NewEngine(
		signature.NewVerifier(cfg.VerificationMessage),
		chain,
		prices,
		common.HexToAddress(cfg.ACTTokenAddress),
		uint8(cfg.ACTTokenDecimals),
		cfg.MinUSDThreshold,
		log.With("component", "engine"),
	)

	// Initialize identity provider
	var tokens *whop.TokenVerifier
	if cfg.WhopPublicKey != "" {
		tokens, err = whop.NewTokenVerifier(cfg.WhopPublicKey, cfg.WhopAppID)
		if err != nil {
			return err
		}
	} else {
		log.Warn("WHOP_PUBLIC_KEY is not set, every user token will be rejected")
	}
	whopClient := whop.NewClient(cfg.WhopAPIURL, cfg.WhopAPIKey, tokens, log.With("component", "whop"))

	// Initialize notificator
	notif, err := newNotificator(ctx, cfg, log)
	if err != nil {
		return err
	}

	gk := gatekeeper.NewGatekeeper(
		db,
		auth.NewAuthenticator(whopClient, log),
		whopClient,
		engine,
		prices,
		notif,
		log.With("component", "gatekeeper"),
		cfg,
	)
	if cfg.SimulationEnabled() {
		log.Warn("Development status simulation is active", "status", cfg.DevSimulateStatus)
	}

	// Initialize API server
	httpServer, err := http_api.NewHTTPServer(gk, cache, cfg.VerifyRateLimitPerMin, cfg.TrustedProxies, cfg.APIPort, log)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %v", err)
	}
	var apiServer models.APIServer = httpServer
	go apiServer.Start()

	<-ctx.Done()
	log.Info("Shutdown signal received")
	return apiServer.Shutdown()
}

func openRepository(cfg *config.Config, log *logger.Logger) (models.Repository, error) {
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
	if err == nil {
		return db, nil
	}
	if !cfg.Development {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}
	log.Warn("Postgres unavailable, using in-memory verification store", "error", err)
	return repository.NewMemoryDB(), nil
}

func openRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL is not set, using in-process price cache and no rate limiting")
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}
	log.Info("Connected to Redis", "addr", opts.Addr)
	return client, nil
}

func openChain(cfg *config.Config, log *logger.Logger) (models.BlockchainService, error) {
	arbitrum := blockchain.NewArbitrum(cfg.ArbitrumRPCURL, log.With("component", "arbitrum"))
	if err := arbitrum.Run(); err != nil {
		return nil, err
	}
	return arbitrum, nil
}

func newPriceResolver(cfg *config.Config, chain models.PoolReader, cache *redis.Client, log *logger.Logger) models.PriceResolver {
	if cfg.PriceStrategy == config.PriceStrategyOnChain {
		log.Info("Using on-chain ACT price", "act_weth_pool", cfg.ACTWETHPoolAddress, "weth_usdc_pool", cfg.WETHUSDCPoolAddress)
		return price.NewOnChain(
			chain,
			common.HexToAddress(cfg.ACTTokenAddress),
			common.HexToAddress(cfg.ACTWETHPoolAddress),
			common.HexToAddress(cfg.WETHUSDCPoolAddress),
			log.With("component", "price"),
		)
	}

	var store price.Cache = price.NewMemoryCache()
	if cache != nil {
		store = price.NewRedisCache(cache)
	}
	log.Info("Using aggregator ACT price", "url", cfg.PriceAggregatorURL, "ttl", cfg.PriceCacheTTL)
	return price.NewAggregator(cfg.PriceAggregatorURL, cfg.PriceCacheTTL, store, log.With("component", "price"))
}

func newNotificator(ctx context.Context, cfg *config.Config, log *logger.Logger) (*notificator.Notificator, error) {
	var telegram *notificator.TelegramNotificator
	if cfg.TelegramBotToken != "" {
		t, err := notificator.NewTelegramNotificator(ctx, log, cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		telegram = t
	}

	var email *notificator.EmailNotificator
	if cfg.SMTPHost != "" && cfg.NotifyEmail != "" {
		email = notificator.NewEmailNotificator(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender, cfg.NotifyEmail)
	}

	return notificator.NewNotificator(log, telegram, email), nil
}
