// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validConfigJSON = `{
    "rpc_list": [
        "https://api.mainnet-beta.solana.com",
        "https://solana-api.projectserum.com"
    ],
    "quote_debounce_ms": 600,
    "confirm_timeout_ms": 45000,
    "fee_rate": "0.0085",
    "fee_destination": "11111111111111111111111111111111",
    "gas_reserve": "0.003",
    "debug_logging": true
}`

func setupTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name:    "Valid config",
			content: validConfigJSON,
			check: func(t *testing.T, cfg *Config) {
				assert.Len(t, cfg.RPCList, 2)
				assert.Equal(t, 600*time.Millisecond, cfg.QuoteDebounceDuration())
				assert.Equal(t, 45*time.Second, cfg.ConfirmTimeoutDuration())
				assert.True(t, cfg.FeeRateDecimal().Equal(decimal.RequireFromString("0.0085")))
				assert.True(t, cfg.GasReserveSOL().Equal(decimal.RequireFromString("0.003")))
				assert.True(t, cfg.MinFeeReserveSOL().Equal(decimal.RequireFromString(DefaultMinFeeReserve)))
				assert.Equal(t, DefaultAggregatorURL, cfg.AggregatorURL)
				assert.EqualValues(t, DefaultSlippageBps, cfg.SlippageBps)
				assert.True(t, cfg.DebugLogging)
			},
		},
		{
			name:    "Debounce clamped",
			content: `{"rpc_list": ["https://rpc.test"], "quote_debounce_ms": 50}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, MinQuoteDebounce, cfg.QuoteDebounce)
			},
		},
		{
			name:    "Empty rpc list",
			content: `{"rpc_list": []}`,
			wantErr: true,
		},
		{
			name:    "Fee rate out of range",
			content: `{"rpc_list": ["https://rpc.test"], "fee_rate": "1"}`,
			wantErr: true,
		},
		{
			name:    "Bad fee destination",
			content: `{"rpc_list": ["https://rpc.test"], "fee_destination": "not-a-key"}`,
			wantErr: true,
		},
		{
			name:    "Invalid JSON syntax",
			content: "{invalid json",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(setupTestConfig(t, tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("MEMESWAP_RPC_LIST", "https://a.test, https://b.test,")
	t.Setenv("MEMESWAP_CONFIRM_TIMEOUT_MS", "30000")
	t.Setenv("MEMESWAP_FEE_RATE", "0.02")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.RPCList)
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeoutDuration())
	assert.True(t, cfg.FeeRateDecimal().Equal(decimal.RequireFromString("0.02")))
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("MEMESWAP_SLIPPAGE_BPS", "250")
	cfg, err := LoadConfig(setupTestConfig(t, validConfigJSON))
	require.NoError(t, err)
	assert.EqualValues(t, 250, cfg.SlippageBps)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RPCList:        []string{"https://rpc.test"},
			AggregatorURL:  DefaultAggregatorURL,
			PriceURL:       DefaultPriceURL,
			HTTPTimeout:    1000,
			SlippageBps:    50,
			QuoteDebounce:  500,
			BalancePoll:    1000,
			ConfirmTimeout: 1000,
			FeeRate:        "0.01",
			GasReserve:     "0",
			MinFeeReserve:  "0",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "Valid configuration", mutate: func(*Config) {}},
		{name: "Websocket RPC", mutate: func(c *Config) { c.RPCList = []string{"wss://rpc.test"} }, wantErr: true},
		{name: "Bad aggregator", mutate: func(c *Config) { c.AggregatorURL = "ftp://x" }, wantErr: true},
		{name: "Zero slippage", mutate: func(c *Config) { c.SlippageBps = 0 }, wantErr: true},
		{name: "Zero confirm timeout", mutate: func(c *Config) { c.ConfirmTimeout = 0 }, wantErr: true},
		{name: "Negative signing timeout", mutate: func(c *Config) { c.SigningTimeout = -1 }, wantErr: true},
		{name: "Negative gas reserve", mutate: func(c *Config) { c.GasReserve = "-0.1" }, wantErr: true},
		{name: "Garbage fee rate", mutate: func(c *Config) { c.FeeRate = "abc" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
