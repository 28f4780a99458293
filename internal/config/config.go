// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	License            string `mapstructure:"license"`
	KeygenAccountID    string `mapstructure:"keygen_account_id"`
	KeygenProductToken string `mapstructure:"keygen_product_token"`
	KeygenProductID    string `mapstructure:"keygen_product_id"`

	RPCList []string `mapstructure:"rpc_list"`
	// RPCRate ограничивает запросы к RPC в секунду, 0 без лимита.
	RPCRate     float64 `mapstructure:"rpc_rate"`
	SubmitRetry int     `mapstructure:"submit_retry_ms"`

	AggregatorURL string `mapstructure:"aggregator_url"`
	PriceURL      string `mapstructure:"price_url"`
	HTTPTimeout   int    `mapstructure:"http_timeout_ms"`
	RetryWindow   int    `mapstructure:"retry_window_ms"`
	SlippageBps   uint16 `mapstructure:"slippage_bps"`

	QuoteDebounce int     `mapstructure:"quote_debounce_ms"`
	QuoteTTL      int     `mapstructure:"quote_ttl_ms"`
	PriceTTL      int     `mapstructure:"price_ttl_ms"`
	BalancePoll   int     `mapstructure:"balance_poll_ms"`
	BalanceRate   float64 `mapstructure:"balance_rate"`
	BalanceBurst  int     `mapstructure:"balance_burst"`

	ConfirmTimeout  int `mapstructure:"confirm_timeout_ms"`
	SigningTimeout  int `mapstructure:"signing_timeout_ms"`
	SigningReminder int `mapstructure:"signing_reminder_ms"`

	FeeRate        string `mapstructure:"fee_rate"`
	FeeDestination string `mapstructure:"fee_destination"`
	MinFeeLamports uint64 `mapstructure:"min_fee_lamports"`
	GasReserve     string `mapstructure:"gas_reserve"`
	MinFeeReserve  string `mapstructure:"min_fee_reserve"`

	WalletsFile   string `mapstructure:"wallets_file"`
	Wallet        string `mapstructure:"wallet"`
	ReconcileFile string `mapstructure:"reconcile_file"`
	LogFile       string `mapstructure:"log_file"`
	DebugLogging  bool   `mapstructure:"debug_logging"`
	MetricsAddr   string `mapstructure:"metrics_addr"`

	feeRate       decimal.Decimal
	gasReserve    decimal.Decimal
	minFeeReserve decimal.Decimal
}

const (
	EnvPrefix = "MEMESWAP"

	// MinQuoteDebounce нижняя граница debounce для котировок.
	MinQuoteDebounce = 400

	DefaultAggregatorURL   = "https://lite-api.jup.ag/swap/v1"
	DefaultPriceURL        = "https://lite-api.jup.ag/price/v2"
	DefaultHTTPTimeout     = 10000
	DefaultRetryWindow     = 5000
	DefaultSubmitRetry     = 3000
	DefaultSlippageBps     = 100
	DefaultQuoteDebounce   = 500
	DefaultQuoteTTL        = 15000
	DefaultPriceTTL        = 30000
	DefaultBalancePoll     = 10000
	DefaultBalanceRate     = 2.0
	DefaultBalanceBurst    = 2
	DefaultConfirmTimeout  = 60000
	DefaultSigningReminder = 5000
	DefaultFeeRate         = "0.005"
	DefaultMinFeeLamports  = 5000
	DefaultGasReserve      = "0.002"
	DefaultMinFeeReserve   = "0.001"
	DefaultWalletsFile     = "configs/wallets.csv"
	DefaultReconcileFile   = "logs/fee_reconcile.csv"
	DefaultLogFile         = "logs/memeswap.log"
)

var defaults = map[string]interface{}{
	"license":              "",
	"keygen_account_id":    "",
	"keygen_product_token": "",
	"keygen_product_id":    "",
	"rpc_list":             []string{},
	"rpc_rate":             0.0,
	"submit_retry_ms":      DefaultSubmitRetry,
	"aggregator_url":       DefaultAggregatorURL,
	"price_url":            DefaultPriceURL,
	"http_timeout_ms":      DefaultHTTPTimeout,
	"retry_window_ms":      DefaultRetryWindow,
	"slippage_bps":         DefaultSlippageBps,
	"quote_debounce_ms":    DefaultQuoteDebounce,
	"quote_ttl_ms":         DefaultQuoteTTL,
	"price_ttl_ms":         DefaultPriceTTL,
	"balance_poll_ms":      DefaultBalancePoll,
	"balance_rate":         DefaultBalanceRate,
	"balance_burst":        DefaultBalanceBurst,
	"confirm_timeout_ms":   DefaultConfirmTimeout,
	"signing_timeout_ms":   0,
	"signing_reminder_ms":  DefaultSigningReminder,
	"fee_rate":             DefaultFeeRate,
	"fee_destination":      "",
	"min_fee_lamports":     DefaultMinFeeLamports,
	"gas_reserve":          DefaultGasReserve,
	"min_fee_reserve":      DefaultMinFeeReserve,
	"wallets_file":         DefaultWalletsFile,
	"wallet":               "",
	"reconcile_file":       DefaultReconcileFile,
	"log_file":             DefaultLogFile,
	"debug_logging":        false,
	"metrics_addr":         "",
}

// LoadConfig читает файл конфигурации (если path не пуст) и переменные
// окружения с префиксом MEMESWAP_.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	loadRPCList(v, &cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadRPCList разбирает MEMESWAP_RPC_LIST вида "url1, url2".
func loadRPCList(v *viper.Viper, cfg *Config) {
	raw, ok := v.Get("rpc_list").(string)
	if !ok || raw == "" {
		return
	}
	var clean []string
	for _, rpc := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(rpc); s != "" {
			clean = append(clean, s)
		}
	}
	cfg.RPCList = clean
}

// Validate проверяет значения и разбирает десятичные поля. Debounce ниже
// MinQuoteDebounce поднимается до минимума.
func (c *Config) Validate() error {
	if len(c.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range c.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if err := validateURLWithCache(c.AggregatorURL, "http"); err != nil {
		return fmt.Errorf("invalid aggregator_url: %w", err)
	}
	if err := validateURLWithCache(c.PriceURL, "http"); err != nil {
		return fmt.Errorf("invalid price_url: %w", err)
	}
	if err := c.validateNumericParams(); err != nil {
		return err
	}
	if c.FeeDestination != "" {
		if _, err := solana.PublicKeyFromBase58(c.FeeDestination); err != nil {
			return fmt.Errorf("invalid fee_destination: %w", err)
		}
	}
	return c.parseDecimals()
}

func (c *Config) validateNumericParams() error {
	if c.RPCRate < 0 {
		return errors.New("invalid rpc_rate")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("invalid http_timeout_ms")
	}
	if c.RetryWindow < 0 || c.SubmitRetry < 0 {
		return errors.New("invalid retry window")
	}
	if c.SlippageBps == 0 || c.SlippageBps > 10000 {
		return errors.New("slippage_bps must be in (0, 10000]")
	}
	if c.QuoteDebounce < MinQuoteDebounce {
		c.QuoteDebounce = MinQuoteDebounce
	}
	if c.QuoteTTL < 0 || c.PriceTTL < 0 {
		return errors.New("invalid cache ttl")
	}
	if c.BalancePoll <= 0 {
		return errors.New("invalid balance_poll_ms")
	}
	if c.BalanceRate < 0 || c.BalanceBurst < 0 {
		return errors.New("invalid balance rate limit")
	}
	if c.ConfirmTimeout <= 0 {
		return errors.New("invalid confirm_timeout_ms")
	}
	if c.SigningTimeout < 0 || c.SigningReminder < 0 {
		return errors.New("invalid signing timings")
	}
	return nil
}

func (c *Config) parseDecimals() error {
	var err error
	if c.feeRate, err = decimal.NewFromString(c.FeeRate); err != nil {
		return fmt.Errorf("invalid fee_rate: %w", err)
	}
	if c.feeRate.IsNegative() || c.feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("fee_rate must be in [0, 1)")
	}
	if c.gasReserve, err = decimal.NewFromString(c.GasReserve); err != nil || c.gasReserve.IsNegative() {
		return fmt.Errorf("invalid gas_reserve %q", c.GasReserve)
	}
	if c.minFeeReserve, err = decimal.NewFromString(c.MinFeeReserve); err != nil || c.minFeeReserve.IsNegative() {
		return fmt.Errorf("invalid min_fee_reserve %q", c.MinFeeReserve)
	}
	return nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (c *Config) HTTPTimeoutDuration() time.Duration     { return ms(c.HTTPTimeout) }
func (c *Config) RetryWindowDuration() time.Duration     { return ms(c.RetryWindow) }
func (c *Config) SubmitRetryDuration() time.Duration     { return ms(c.SubmitRetry) }
func (c *Config) QuoteDebounceDuration() time.Duration   { return ms(c.QuoteDebounce) }
func (c *Config) QuoteTTLDuration() time.Duration        { return ms(c.QuoteTTL) }
func (c *Config) PriceTTLDuration() time.Duration        { return ms(c.PriceTTL) }
func (c *Config) BalancePollDuration() time.Duration     { return ms(c.BalancePoll) }
func (c *Config) ConfirmTimeoutDuration() time.Duration  { return ms(c.ConfirmTimeout) }
func (c *Config) SigningTimeoutDuration() time.Duration  { return ms(c.SigningTimeout) }
func (c *Config) SigningReminderDuration() time.Duration { return ms(c.SigningReminder) }

// FeeRateDecimal, GasReserveSOL и MinFeeReserveSOL доступны после Validate.
func (c *Config) FeeRateDecimal() decimal.Decimal   { return c.feeRate }
func (c *Config) GasReserveSOL() decimal.Decimal    { return c.gasReserve }
func (c *Config) MinFeeReserveSOL() decimal.Decimal { return c.minFeeReserve }

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}
