package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/memeswap/internal/config"
	"github.com/rovshanmuradov/memeswap/internal/swap"
)

func testConfig(t *testing.T, walletNames ...string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	csv := "name,private_key\n"
	for _, name := range walletNames {
		csv += fmt.Sprintf("%s,%s\n", name, solana.NewWallet().PrivateKey.String())
	}
	walletsFile := filepath.Join(dir, "wallets.csv")
	require.NoError(t, os.WriteFile(walletsFile, []byte(csv), 0600))

	cfgFile := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgFile, []byte(fmt.Sprintf(`{
		"rpc_list": ["http://127.0.0.1:1"],
		"wallets_file": %q,
		"reconcile_file": %q
	}`, walletsFile, filepath.Join(dir, "reconcile.csv"))), 0600))

	cfg, err := config.LoadConfig(cfgFile)
	require.NoError(t, err)
	return cfg
}

func TestNewRunner(t *testing.T) {
	cfg := testConfig(t, "main")
	r, err := NewRunner(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NotEmpty(t, r.Wallet().PublicKey())
	assert.NotNil(t, r.Aggregator())
	assert.NotNil(t, r.Metrics())

	deps := r.Deps(nil)
	assert.NotNil(t, deps.Quotes)
	assert.NotNil(t, deps.Builder)
	assert.NotNil(t, deps.FeeBuilder)
	assert.NotNil(t, deps.Balances)
	assert.NotNil(t, deps.Network)
	assert.NotNil(t, deps.Signer)
	assert.NotNil(t, deps.Reconciler)
	assert.Equal(t, r.Wallet().PublicKey(), deps.Signer.PublicKey())

	assert.FileExists(t, cfg.ReconcileFile)
	require.NoError(t, r.Close(context.Background()))
}

func TestNewRunnerWalletSelection(t *testing.T) {
	cfg := testConfig(t, "a", "b")
	_, err := NewRunner(cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "wallet name required")

	cfg.Wallet = "b"
	r, err := NewRunner(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, r.Close(context.Background()))
}

func TestResolveNativeAsset(t *testing.T) {
	r, err := NewRunner(testConfig(t, "main"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer r.Close(context.Background())

	for _, mint := range []string{"", "SOL", swap.NativeMint} {
		asset, err := r.ResolveAsset(context.Background(), mint, "")
		require.NoError(t, err)
		assert.True(t, asset.IsNative())
	}
}

func TestShutdownOrder(t *testing.T) {
	r, err := NewRunner(testConfig(t, "main"), zaptest.NewLogger(t))
	require.NoError(t, err)

	var order []string
	r.OnShutdown("first", func() error { order = append(order, "first"); return nil })
	r.OnShutdown("second", func() error { order = append(order, "second"); return nil })
	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, []string{"second", "first"}, order)
}
