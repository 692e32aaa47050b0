// Package config loads checkout settings from defaults, an optional config
// file, a .env file and CHECKOUT_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// RenewalRule is a configured renewal-eligibility expression.
type RenewalRule struct {
	ID         string `mapstructure:"id"`
	Expression string `mapstructure:"expression"`
	Priority   int    `mapstructure:"priority"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type BackendConfig struct {
	DevURL  string        `mapstructure:"dev_url"`
	LiveURL string        `mapstructure:"live_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CheckoutConfig struct {
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	SelectionLock   time.Duration `mapstructure:"selection_lock"`
	DefaultLanguage string        `mapstructure:"default_language"`
	ReturnURL       string        `mapstructure:"return_url"`
}

type WalletConfig struct {
	SDKURL       string        `mapstructure:"sdk_url"`
	LoadAttempts int           `mapstructure:"load_attempts"`
	LoadInterval time.Duration `mapstructure:"load_interval"`
}

type RedirectConfig struct {
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

type StripeConfig struct {
	// APIURL overrides the card processor endpoint, mainly for test doubles.
	APIURL string `mapstructure:"api_url"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type PolicyConfig struct {
	RenewalRules []RenewalRule `mapstructure:"renewal_rules"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the complete process configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Redirect RedirectConfig `mapstructure:"redirect"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("backend.dev_url", "https://payment-api-dev.variocube.com")
	v.SetDefault("backend.live_url", "https://payment-api-app.variocube.com")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("checkout.settle_delay", 2*time.Second)
	v.SetDefault("checkout.poll_interval", 5*time.Second)
	v.SetDefault("checkout.selection_lock", 3*time.Second)
	v.SetDefault("checkout.default_language", "de")
	v.SetDefault("checkout.return_url", "")
	v.SetDefault("wallet.sdk_url", "https://www.paypal.com/sdk/js")
	v.SetDefault("wallet.load_attempts", 10)
	v.SetDefault("wallet.load_interval", time.Second)
	v.SetDefault("redirect.probe_interval", time.Second)
	v.SetDefault("stripe.api_url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Minute)
	v.SetDefault("log.development", false)
	v.SetDefault("tracing.enabled", true)
}

// Load reads the configuration. path may be empty; a missing .env file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("CHECKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the process relies on.
func (c Config) Validate() error {
	if c.Backend.DevURL == "" || c.Backend.LiveURL == "" {
		return fmt.Errorf("backend urls must be set for both stages")
	}
	if c.Checkout.PollInterval <= 0 {
		return fmt.Errorf("checkout.poll_interval must be positive, got %s", c.Checkout.PollInterval)
	}
	if c.Checkout.SettleDelay < 0 {
		return fmt.Errorf("checkout.settle_delay must not be negative, got %s", c.Checkout.SettleDelay)
	}
	if c.Wallet.LoadAttempts <= 0 {
		return fmt.Errorf("wallet.load_attempts must be positive, got %d", c.Wallet.LoadAttempts)
	}
	for _, r := range c.Policy.RenewalRules {
		if r.ID == "" {
			return fmt.Errorf("renewal rule with expression %q has no id", r.Expression)
		}
	}
	return nil
}
