// Package config defines all configuration for the market-making bot.
// Config is loaded from a YAML file with sensitive fields overridable via
// POLY_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun  bool          `mapstructure:"dry_run"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
	API     APIConfig     `mapstructure:"api"`
	Market  MarketConfig  `mapstructure:"market"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Quote   QuoteConfig   `mapstructure:"quote"`
	Loop    LoopConfig    `mapstructure:"loop"`
	Redeem  RedeemConfig  `mapstructure:"redeem"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys. FunderAddress
// is the on-chain address that funds orders (may differ from signer if
// using a proxy wallet).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds the venue's REST and WebSocket base URLs, plus optional
// pre-derived L2 credentials. If ApiKey/Secret/Passphrase are empty, the
// bot derives them via L1 auth on startup.
type APIConfig struct {
	BaseURL    string `mapstructure:"polymarket_api_url"`
	WSURL      string `mapstructure:"polymarket_ws_url"`
	ApiKey     string `mapstructure:"api_key"`
	Secret     string `mapstructure:"api_secret"`
	Passphrase string `mapstructure:"passphrase"`
}

// MarketConfig selects the single market this process trades.
type MarketConfig struct {
	MarketID           string `mapstructure:"market_id"`
	DiscoveryEnabled   bool   `mapstructure:"market_discovery_enabled"`
}

// RiskConfig bounds the InventoryLedger/RiskGate exposure checks.
type RiskConfig struct {
	MaxExposureUSD         decimal.Decimal `mapstructure:"max_exposure_usd"`
	MinExposureUSD         decimal.Decimal `mapstructure:"min_exposure_usd"`
	TargetInventoryBalance decimal.Decimal `mapstructure:"target_inventory_balance"`
}

// QuoteConfig tunes the imbalance/skew quoting algorithm (SPEC_FULL.md §4.4).
type QuoteConfig struct {
	BaseSize        decimal.Decimal `mapstructure:"base_size"`
	MinSize         decimal.Decimal `mapstructure:"min_size"`
	MaxSize         decimal.Decimal `mapstructure:"max_size"`
	MinHalfSpread   decimal.Decimal `mapstructure:"min_half_spread"`
	WidenFactor     decimal.Decimal `mapstructure:"widen_factor"`
	SkewCoefficient decimal.Decimal `mapstructure:"skew_coefficient"`
}

// LoopConfig drives the cancel-replace cadence and order aging.
type LoopConfig struct {
	QuoteRefreshRateMs      int64 `mapstructure:"quote_refresh_rate_ms"`
	CancelReplaceIntervalMs int64 `mapstructure:"cancel_replace_interval_ms"`
	OrderLifetimeMs         int64 `mapstructure:"order_lifetime_ms"`
}

func (l LoopConfig) QuoteRefreshRate() time.Duration {
	return time.Duration(l.QuoteRefreshRateMs) * time.Millisecond
}

func (l LoopConfig) CancelReplaceInterval() time.Duration {
	return time.Duration(l.CancelReplaceIntervalMs) * time.Millisecond
}

func (l LoopConfig) OrderLifetime() time.Duration {
	return time.Duration(l.OrderLifetimeMs) * time.Millisecond
}

// RedeemConfig controls the peripheral position-redemption sweeper.
type RedeemConfig struct {
	Enabled        bool            `mapstructure:"auto_redeem_enabled"`
	ThresholdUSD   decimal.Decimal `mapstructure:"redeem_threshold_usd"`
	SweepInterval  time.Duration   `mapstructure:"sweep_interval"`
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Host string `mapstructure:"metrics_host"`
	Port int    `mapstructure:"metrics_port"`
}

// LoggingConfig selects log verbosity and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"log_level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: POLY_PRIVATE_KEY, POLY_API_KEY,
// POLY_API_SECRET, POLY_PASSPHRASE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("POLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("POLY_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("POLY_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("POLY_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("POLY_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if os.Getenv("POLY_DRY_RUN") == "true" || os.Getenv("POLY_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("loop.quote_refresh_rate_ms", 1000)
	v.SetDefault("loop.cancel_replace_interval_ms", 2000)
	v.SetDefault("loop.order_lifetime_ms", 60000)
	v.SetDefault("redeem.sweep_interval", 5*time.Minute)
	v.SetDefault("metrics.metrics_host", "0.0.0.0")
	v.SetDefault("metrics.metrics_port", 9090)
	v.SetDefault("logging.log_level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set POLY_PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		return fmt.Errorf("wallet.chain_id is required (137 for mainnet)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.polymarket_api_url is required")
	}
	if c.API.WSURL == "" {
		return fmt.Errorf("api.polymarket_ws_url is required")
	}
	if c.Market.MarketID == "" && !c.Market.DiscoveryEnabled {
		return fmt.Errorf("market.market_id is required unless market_discovery_enabled is set")
	}
	if c.Risk.MaxExposureUSD.Sign() <= 0 {
		return fmt.Errorf("risk.max_exposure_usd must be > 0")
	}
	if c.Quote.BaseSize.Sign() <= 0 {
		return fmt.Errorf("quote.base_size must be > 0")
	}
	if c.Quote.MinSize.Sign() < 0 || c.Quote.MaxSize.LessThan(c.Quote.MinSize) {
		return fmt.Errorf("quote.min_size/max_size are invalid")
	}
	if c.Quote.MinHalfSpread.Sign() < 0 {
		return fmt.Errorf("quote.min_half_spread must be >= 0")
	}
	if c.Loop.QuoteRefreshRateMs <= 0 {
		return fmt.Errorf("loop.quote_refresh_rate_ms must be > 0")
	}
	return nil
}
