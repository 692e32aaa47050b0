package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://payment-api-app.variocube.com", cfg.Backend.LiveURL)
	assert.Equal(t, 2*time.Second, cfg.Checkout.SettleDelay)
	assert.Equal(t, 5*time.Second, cfg.Checkout.PollInterval)
	assert.Equal(t, 10, cfg.Wallet.LoadAttempts)
	assert.Equal(t, time.Second, cfg.Redirect.ProbeInterval)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	file := filepath.Join(dir, "checkout.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  port: 9090
checkout:
  poll_interval: 1s
policy:
  renewal_rules:
    - id: wallee_stalled
      expression: "provider == 'Wallee' && status == 'Processing'"
      priority: 1
`), 0o644))
	t.Setenv("CHECKOUT_REDIS_ADDR", "localhost:6379")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Checkout.PollInterval)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Len(t, cfg.Policy.RenewalRules, 1)
	assert.Equal(t, "wallee_stalled", cfg.Policy.RenewalRules[0].ID)
}

func TestLoad_MissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load("does-not-exist.yaml")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Backend:  BackendConfig{DevURL: "d", LiveURL: "l"},
		Checkout: CheckoutConfig{PollInterval: time.Second},
		Wallet:   WalletConfig{LoadAttempts: 1},
	}
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Checkout.PollInterval = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Policy.RenewalRules = []RenewalRule{{Expression: "true"}}
	assert.Error(t, bad.Validate())
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
