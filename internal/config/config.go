package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

const (
	// PriceStrategyAggregator reads the token price from the cached statistics endpoint
	PriceStrategyAggregator = "aggregator"
	// PriceStrategyOnChain derives the token price from two pool slot0 reads
	PriceStrategyOnChain = "onchain"

	// DefaultVerificationMessage is the fixed challenge a wallet signs
	DefaultVerificationMessage = "I am verifying ownership of this wallet to gain Publisher access in AnthropoCity."
)

type Config struct {
	Development bool
	// API configuration
	APIPort               int
	VerifyRateLimitPerMin int
	// TrustedProxies may set X-Forwarded-For; empty means the peer address is the client
	TrustedProxies []string
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	// Redis is optional: price cache and rate limiting fall back to in-process / disabled
	RedisURL string

	// Blockchain configuration
	ArbitrumRPCURL      string
	ACTTokenAddress     string
	ACTTokenDecimals    int // 0 means read decimals() from the contract
	ACTWETHPoolAddress  string
	WETHUSDCPoolAddress string

	// Gating rules
	MinUSDThreshold     float64
	VerificationMessage string

	// Price configuration
	PriceStrategy      string
	PriceAggregatorURL string
	PriceCacheTTL      time.Duration

	// Identity provider configuration
	WhopAPIURL             string
	WhopAPIKey             string
	WhopAppID              string
	WhopPublicKey          string
	WhopPublisherProductID string
	WhopGrantPublisher     bool
	DefaultExperienceID    string
	EntitledOnNotFound     bool

	// Development simulation, honoured only when Development is set
	DevSimulateStatus string

	// Notification configuration
	TelegramBotToken string
	TelegramChatID   string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string
	NotifyEmail  string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:           getEnvAsBool("DEVELOPMENT", false),
		APIPort:               getEnvAsInt("API_PORT", 6540),
		VerifyRateLimitPerMin: getEnvAsInt("VERIFY_RATE_LIMIT_PER_MIN", 10),
		TrustedProxies:        getEnvAsSlice("TRUSTED_PROXIES"),
		PostgresUser:          getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:      getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:          getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:          getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:            getEnv("POSTGRES_DB", "actgate"),
		RedisURL:              getEnv("REDIS_URL", ""),

		ArbitrumRPCURL:      getEnv("ARBITRUM_RPC_URL", "https://arb1.arbitrum.io/rpc"),
		ACTTokenAddress:     getEnv("ACT_TOKEN_ADDRESS", "0xa84e264117442bea8e93f3981124695b693f0d77"),
		ACTTokenDecimals:    getEnvAsInt("ACT_TOKEN_DECIMALS", 18),
		ACTWETHPoolAddress:  getEnv("ACT_WETH_POOL_ADDRESS", ""),
		WETHUSDCPoolAddress: getEnv("WETH_USDC_POOL_ADDRESS", "0xC6962004f452bE9203591991D15f6b388e09E8D0"),

		MinUSDThreshold:     getEnvAsFloat("MIN_USD_THRESHOLD", 10),
		VerificationMessage: getEnv("VERIFICATION_MESSAGE", DefaultVerificationMessage),

		PriceStrategy:      getEnv("PRICE_STRATEGY", PriceStrategyAggregator),
		PriceAggregatorURL: getEnv("PRICE_AGGREGATOR_URL", "https://anthroposcity-tokens.anthroposcityworkers.workers.dev/dextoolsStats"),
		PriceCacheTTL:      getEnvAsDuration("PRICE_CACHE_TTL", 60*time.Second),

		WhopAPIURL:             getEnv("WHOP_API_URL", "https://api.whop.com/api/v5"),
		WhopAPIKey:             getEnv("WHOP_API_KEY", ""),
		WhopAppID:              getEnv("WHOP_APP_ID", ""),
		WhopPublicKey:          getEnv("WHOP_PUBLIC_KEY", ""),
		WhopPublisherProductID: getEnv("WHOP_PUBLISHER_PRODUCT_ID", "prod_Umyij3nzsTJ3h"),
		WhopGrantPublisher:     getEnvAsBool("WHOP_GRANT_PUBLISHER", false),
		DefaultExperienceID:    getEnv("DEFAULT_EXPERIENCE_ID", "exp_default"),
		EntitledOnNotFound:     getEnvAsBool("ENTITLED_ON_NOT_FOUND", true),

		DevSimulateStatus: getEnv("DEV_SIMULATE_STATUS", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SMTPSender:       getEnv("SMTP_SENDER", ""),
		NotifyEmail:      getEnv("NOTIFY_EMAIL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.ACTTokenAddress) {
		return fmt.Errorf("invalid ACT_TOKEN_ADDRESS format: %q", c.ACTTokenAddress)
	}

	if c.ACTTokenDecimals < 0 || c.ACTTokenDecimals > 36 {
		return fmt.Errorf("ACT_TOKEN_DECIMALS out of range: %d", c.ACTTokenDecimals)
	}

	if c.ArbitrumRPCURL == "" {
		return fmt.Errorf("ARBITRUM_RPC_URL is required")
	}

	if c.MinUSDThreshold <= 0 {
		return fmt.Errorf("MIN_USD_THRESHOLD must be positive")
	}

	if c.VerificationMessage == "" {
		return fmt.Errorf("VERIFICATION_MESSAGE is required")
	}

	switch c.PriceStrategy {
	case PriceStrategyAggregator:
		if c.PriceAggregatorURL == "" {
			return fmt.Errorf("PRICE_AGGREGATOR_URL is required for the aggregator price strategy")
		}
	case PriceStrategyOnChain:
		if !common.IsHexAddress(c.ACTWETHPoolAddress) {
			return fmt.Errorf("invalid ACT_WETH_POOL_ADDRESS format: %q", c.ACTWETHPoolAddress)
		}
		if !common.IsHexAddress(c.WETHUSDCPoolAddress) {
			return fmt.Errorf("invalid WETH_USDC_POOL_ADDRESS format: %q", c.WETHUSDCPoolAddress)
		}
	default:
		return fmt.Errorf("unknown PRICE_STRATEGY %q", c.PriceStrategy)
	}

	if c.WhopAPIURL == "" {
		return fmt.Errorf("WHOP_API_URL is required")
	}

	if c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}

	switch c.DevSimulateStatus {
	case "", "Member", "Publisher":
	default:
		return fmt.Errorf("DEV_SIMULATE_STATUS must be Member or Publisher, got %q", c.DevSimulateStatus)
	}

	return nil
}

// SimulationEnabled reports whether the development status simulation is active
func (c *Config) SimulationEnabled() bool {
	return c.Development && c.DevSimulateStatus != ""
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsFloat(name string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

// getEnvAsSlice reads a comma separated list, dropping empty items
func getEnvAsSlice(name string) []string {
	var values []string
	for _, v := range strings.Split(getEnv(name, ""), ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
