// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/fd1az/flashloan-arb/internal/asset"
)

// Execution modes.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// Venue kinds as written in configuration.
const (
	KindConstantProduct = "constant_product"
	KindRouted          = "routed"
)

// Price sources for the monitor.
const (
	SourceDirect     = "direct"
	SourceSimulation = "simulation"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Loan      LoanConfig      `mapstructure:"loan"`
	Fees      FeesConfig      `mapstructure:"fees"`
	Venues    []VenueConfig   `mapstructure:"venues"`
	Pairs     []PairConfig    `mapstructure:"pairs"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Paper     PaperConfig     `mapstructure:"paper"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	HealthPort  int    `mapstructure:"health_port"`
	TUIMode     bool   `mapstructure:"-"` // set at runtime
}

// EthereumConfig holds node and signer settings. Only used in live mode.
type EthereumConfig struct {
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	PrivateKey     string        `mapstructure:"private_key"` // env only
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ReceiptTimeout time.Duration `mapstructure:"receipt_timeout"`
	ReceiptPoll    time.Duration `mapstructure:"receipt_poll"`
}

// ExecutionConfig drives the orchestrator.
type ExecutionConfig struct {
	Mode              string        `mapstructure:"mode"`
	DryRun            bool          `mapstructure:"dry_run"`
	SettlementAsset   string        `mapstructure:"settlement_asset"`
	Account           string        `mapstructure:"account"`
	ProfitDestination string        `mapstructure:"profit_destination"`
	SlippageBps       uint64        `mapstructure:"slippage_bps"`
	StepTimeout       time.Duration `mapstructure:"step_timeout"`
	TransferRetries   int           `mapstructure:"transfer_retries"`
	ProgramAddress    string        `mapstructure:"program_address"`
}

// LoanConfig selects the flash-loan venue.
type LoanConfig struct {
	Venue       string `mapstructure:"venue"` // paper | aave
	PoolAddress string `mapstructure:"pool_address"`
	FeeBps      uint64 `mapstructure:"fee_bps"`
}

// FeesConfig holds cost model inputs that are not per venue.
type FeesConfig struct {
	ConversionFeeBps uint64 `mapstructure:"conversion_fee_bps"`
	GasEstimate      string `mapstructure:"gas_estimate"` // settlement asset, decimal
	GasLimit         uint64 `mapstructure:"gas_limit"`
	DynamicGas       bool   `mapstructure:"dynamic_gas"`
	MinProfitBps     uint64 `mapstructure:"min_profit_bps"`

	// Dynamic gas only.
	MaxGasPriceGwei uint64        `mapstructure:"max_gas_price_gwei"`
	GasPriceTTL     time.Duration `mapstructure:"gas_price_ttl"`
}

// VenueConfig describes one liquidity venue.
type VenueConfig struct {
	ID                string  `mapstructure:"id"`
	Kind              string  `mapstructure:"kind"`
	FeeBps            uint64  `mapstructure:"fee_bps"`
	Factory           string  `mapstructure:"factory"`
	Router            string  `mapstructure:"router"`
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	MaxSlippageBps    uint64  `mapstructure:"max_slippage_bps"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// PairConfig is one watch-list entry. Amounts are decimal strings in the
// pair's input asset (trade) and the settlement asset (loan).
type PairConfig struct {
	Input           string `mapstructure:"input"`
	Output          string `mapstructure:"output"`
	TradeAmount     string `mapstructure:"trade_amount"`
	LoanAmount      string `mapstructure:"loan_amount"`
	VenueA          string `mapstructure:"venue_a"`
	VenueB          string `mapstructure:"venue_b"`
	ConversionVenue string `mapstructure:"conversion_venue"`
	GasFeedSymbol   string `mapstructure:"gas_feed_symbol"`
}

// MonitorConfig drives the polling loop.
type MonitorConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	QuoteTimeout  time.Duration `mapstructure:"quote_timeout"`
	PriceSource   string        `mapstructure:"price_source"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	FeedTTL       time.Duration `mapstructure:"feed_ttl"`
	Lock          string        `mapstructure:"lock"` // local | redis
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
}

// FeedConfig configures the settlement price feed.
type FeedConfig struct {
	Provider          string        `mapstructure:"provider"` // binance | paper
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// RedisConfig configures the distributed pair lock.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PostgresConfig configures execution outcome persistence. Empty DSN disables it.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// Enabled reports whether outcomes are persisted.
func (c PostgresConfig) Enabled() bool { return c.DSN != "" }

// PaperConfig seeds the in-process environment.
type PaperConfig struct {
	Pools         []PaperPoolConfig `mapstructure:"pools"`
	Rates         []PaperRateConfig `mapstructure:"rates"`
	LoanLiquidity string            `mapstructure:"loan_liquidity"`
	DeskBalances  map[string]string `mapstructure:"desk_balances"`
	FeedPrices    map[string]string `mapstructure:"feed_prices"`
}

// PaperPoolConfig seeds a constant-product pool. Reserves are decimal strings.
type PaperPoolConfig struct {
	Venue    string `mapstructure:"venue"`
	AssetX   string `mapstructure:"asset_x"`
	AssetY   string `mapstructure:"asset_y"`
	ReserveX string `mapstructure:"reserve_x"`
	ReserveY string `mapstructure:"reserve_y"`
}

// PaperRateConfig is one directed rate of a routed desk.
type PaperRateConfig struct {
	Venue string `mapstructure:"venue"`
	From  string `mapstructure:"from"`
	To    string `mapstructure:"to"`
	Rate  string `mapstructure:"rate"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	Exporter       string `mapstructure:"exporter"` // zipkin | otlp | stdout
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	ZipkinEndpoint string `mapstructure:"zipkin_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	_ = v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	_ = v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	_ = v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	_ = v.BindEnv("ethereum.http_url", "ARB_ETH_HTTP_URL", "ETH_HTTP_URL")
	_ = v.BindEnv("ethereum.chain_id", "ARB_ETH_CHAIN_ID", "ETH_CHAIN_ID")
	_ = v.BindEnv("ethereum.private_key", "ARB_PRIVATE_KEY", "PRIVATE_KEY")

	// Execution
	_ = v.BindEnv("execution.mode", "ARB_MODE")
	_ = v.BindEnv("execution.dry_run", "ARB_DRY_RUN")
	_ = v.BindEnv("execution.profit_destination", "ARB_PROFIT_DESTINATION")
	_ = v.BindEnv("execution.program_address", "ARB_PROGRAM_ADDRESS")

	// Infra
	_ = v.BindEnv("redis.addr", "ARB_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "ARB_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("postgres.dsn", "ARB_POSTGRES_DSN", "DATABASE_URL")

	// Telemetry
	_ = v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "flasharb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.health_port", 8081)

	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.request_timeout", "10s")
	v.SetDefault("ethereum.receipt_timeout", "2m")
	v.SetDefault("ethereum.receipt_poll", "2s")

	v.SetDefault("execution.mode", ModePaper)
	v.SetDefault("execution.settlement_asset", "WETH")
	v.SetDefault("execution.account", "arb-executor")
	v.SetDefault("execution.profit_destination", "treasury")
	v.SetDefault("execution.slippage_bps", 50)
	v.SetDefault("execution.step_timeout", "30s")
	v.SetDefault("execution.transfer_retries", 3)

	v.SetDefault("loan.venue", "paper")
	v.SetDefault("loan.pool_address", "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2") // Aave V3 Pool
	v.SetDefault("loan.fee_bps", 20)

	v.SetDefault("fees.conversion_fee_bps", 60)
	v.SetDefault("fees.gas_estimate", "0.000005")
	v.SetDefault("fees.gas_limit", 450_000)
	v.SetDefault("fees.min_profit_bps", 0)
	v.SetDefault("fees.max_gas_price_gwei", 500)
	v.SetDefault("fees.gas_price_ttl", 12*time.Second)

	v.SetDefault("monitor.interval", "1s")
	v.SetDefault("monitor.quote_timeout", "3s")
	v.SetDefault("monitor.price_source", SourceDirect)
	v.SetDefault("monitor.max_concurrent", 4)
	v.SetDefault("monitor.feed_ttl", "10s")
	v.SetDefault("monitor.lock", "local")
	v.SetDefault("monitor.lock_ttl", "2m")

	v.SetDefault("feed.provider", "paper")
	v.SetDefault("feed.base_url", "https://api.binance.com")
	v.SetDefault("feed.timeout", "5s")
	v.SetDefault("feed.requests_per_second", 5)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("postgres.max_conns", 4)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "flasharb")
	v.SetDefault("telemetry.exporter", "zipkin")
	v.SetDefault("telemetry.zipkin_endpoint", "http://localhost:9411/api/v2/spans")
	v.SetDefault("telemetry.prometheus_port", 9090)

	setPaperDefaults(v)
}

// setPaperDefaults wires a self-contained environment: a USDC/USDT pool and a
// desk that misprices USDC/USDT, funded by a WETH loan converted on the desk.
func setPaperDefaults(v *viper.Viper) {
	v.SetDefault("venues", []map[string]any{
		{"id": "pool", "kind": KindConstantProduct, "fee_bps": 25},
		{"id": "desk", "kind": KindRouted, "fee_bps": 0, "max_slippage_bps": 300},
	})
	v.SetDefault("pairs", []map[string]any{
		{
			"input":            "USDC",
			"output":           "USDT",
			"trade_amount":     "1000",
			"loan_amount":      "0.4",
			"venue_a":          "desk",
			"venue_b":          "pool",
			"conversion_venue": "desk",
			"gas_feed_symbol":  "ETHUSDC",
		},
	})
	v.SetDefault("paper.pools", []map[string]any{
		{"venue": "pool", "asset_x": "USDC", "asset_y": "USDT", "reserve_x": "1000000", "reserve_y": "1010000"},
	})
	v.SetDefault("paper.rates", []map[string]any{
		{"venue": "desk", "from": "USDC", "to": "USDT", "rate": "1.02"},
		{"venue": "desk", "from": "USDT", "to": "USDC", "rate": "1.005"},
		{"venue": "desk", "from": "WETH", "to": "USDC", "rate": "2500"},
		{"venue": "desk", "from": "USDC", "to": "WETH", "rate": "0.0004"},
	})
	v.SetDefault("paper.loan_liquidity", "10")
	v.SetDefault("paper.desk_balances", map[string]string{
		"USDC": "5000000",
		"USDT": "5000000",
		"WETH": "10",
	})
	v.SetDefault("paper.feed_prices", map[string]string{
		"ETHUSDC": "2500",
		"ETHUSDT": "2500",
	})
}

// Venue returns the venue config with id.
func (c *Config) Venue(id string) (VenueConfig, bool) {
	for _, vc := range c.Venues {
		if vc.ID == id {
			return vc, true
		}
	}
	return VenueConfig{}, false
}

// IsPaper reports whether the engine runs against the in-process environment.
func (c *Config) IsPaper() bool { return c.Execution.Mode == ModePaper }

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Execution.Mode {
	case ModePaper:
		if c.Loan.Venue != "paper" {
			return fmt.Errorf("paper mode requires loan.venue paper")
		}
	case ModeLive:
		if c.Loan.Venue != "aave" {
			return fmt.Errorf("live mode requires loan.venue aave")
		}
		if c.Ethereum.HTTPURL == "" {
			return fmt.Errorf("ethereum.http_url is required in live mode")
		}
		if c.Ethereum.PrivateKey == "" && !c.Execution.DryRun {
			return fmt.Errorf("ethereum.private_key is required in live mode")
		}
		if !common.IsHexAddress(c.Loan.PoolAddress) {
			return fmt.Errorf("invalid loan.pool_address: %s", c.Loan.PoolAddress)
		}
		if c.Monitor.PriceSource == SourceSimulation && !common.IsHexAddress(c.Execution.ProgramAddress) {
			return fmt.Errorf("execution.program_address is required for simulation price source")
		}
	default:
		return fmt.Errorf("unknown execution.mode %q", c.Execution.Mode)
	}

	if c.Execution.SlippageBps >= 10_000 {
		return fmt.Errorf("execution.slippage_bps must be below 10000")
	}
	if c.Loan.FeeBps >= 10_000 {
		return fmt.Errorf("loan.fee_bps must be below 10000")
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}
	if c.Monitor.PriceSource != SourceDirect && c.Monitor.PriceSource != SourceSimulation {
		return fmt.Errorf("unknown monitor.price_source %q", c.Monitor.PriceSource)
	}
	if c.Monitor.Lock != "local" && c.Monitor.Lock != "redis" {
		return fmt.Errorf("unknown monitor.lock %q", c.Monitor.Lock)
	}

	if len(c.Venues) == 0 {
		return fmt.Errorf("venues cannot be empty")
	}
	seen := make(map[string]struct{}, len(c.Venues))
	for _, vc := range c.Venues {
		if vc.ID == "" {
			return fmt.Errorf("venue id is required")
		}
		if _, dup := seen[vc.ID]; dup {
			return fmt.Errorf("duplicate venue %q", vc.ID)
		}
		seen[vc.ID] = struct{}{}
		if vc.Kind != KindConstantProduct && vc.Kind != KindRouted {
			return fmt.Errorf("venue %s: unknown kind %q", vc.ID, vc.Kind)
		}
		if vc.FeeBps >= 10_000 {
			return fmt.Errorf("venue %s: fee_bps must be below 10000", vc.ID)
		}
	}

	if len(c.Pairs) == 0 {
		return fmt.Errorf("pairs cannot be empty")
	}
	for i, p := range c.Pairs {
		if p.Input == "" || p.Output == "" {
			return fmt.Errorf("pairs[%d]: input and output are required", i)
		}
		if p.VenueA == p.VenueB {
			return fmt.Errorf("pairs[%d]: venue_a and venue_b must differ", i)
		}
		for _, id := range []string{p.VenueA, p.VenueB} {
			if _, ok := seen[id]; !ok {
				return fmt.Errorf("pairs[%d]: unknown venue %q", i, id)
			}
		}
		if p.ConversionVenue != "" {
			vc, ok := c.Venue(p.ConversionVenue)
			if !ok {
				return fmt.Errorf("pairs[%d]: unknown conversion venue %q", i, p.ConversionVenue)
			}
			if vc.Kind != KindRouted {
				return fmt.Errorf("pairs[%d]: conversion venue %q must be routed", i, p.ConversionVenue)
			}
		}
	}

	if c.IsPaper() {
		return c.validatePaperAmounts(asset.DefaultRegistry())
	}
	return nil
}

// validatePaperAmounts parses every paper-mode amount against its asset so a
// value outside the uint64 amount model fails here instead of at wiring.
func (c *Config) validatePaperAmounts(reg *asset.Registry) error {
	chainID := c.Ethereum.ChainID
	check := func(field, symbol, value string) error {
		a, err := reg.Resolve(symbol, chainID)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		if _, err := asset.ParseString(a, value); err != nil {
			return fmt.Errorf("%s %q: %w", field, value, err)
		}
		return nil
	}

	settlement := c.Execution.SettlementAsset
	if _, err := reg.Resolve(settlement, chainID); err != nil {
		return fmt.Errorf("execution.settlement_asset: %w", err)
	}
	if err := check("paper.loan_liquidity", settlement, c.Paper.LoanLiquidity); err != nil {
		return err
	}
	symbols := make([]string, 0, len(c.Paper.DeskBalances))
	for symbol := range c.Paper.DeskBalances {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		if err := check("paper.desk_balances."+symbol, symbol, c.Paper.DeskBalances[symbol]); err != nil {
			return err
		}
	}
	for i, pc := range c.Paper.Pools {
		if err := check(fmt.Sprintf("paper.pools[%d].reserve_x", i), pc.AssetX, pc.ReserveX); err != nil {
			return err
		}
		if err := check(fmt.Sprintf("paper.pools[%d].reserve_y", i), pc.AssetY, pc.ReserveY); err != nil {
			return err
		}
	}
	for i, p := range c.Pairs {
		if err := check(fmt.Sprintf("pairs[%d].trade_amount", i), p.Input, p.TradeAmount); err != nil {
			return err
		}
		if err := check(fmt.Sprintf("pairs[%d].loan_amount", i), settlement, p.LoanAmount); err != nil {
			return err
		}
	}
	return nil
}
