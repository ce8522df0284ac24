package exchange

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the venue-agnostic record every Constructor receives. It maps
// directly to a YAML file structure the same way the teacher's
// config.Config does, generalized from one venue's fixed wallet/API shape
// to credentials that vary in kind (HMAC triple, EIP-712 key, Ed25519 key)
// per venue.
type Config struct {
	Venue   string        `mapstructure:"venue"`
	Testnet bool          `mapstructure:"testnet"`
	Debug   bool          `mapstructure:"debug"`
	Timeout time.Duration `mapstructure:"timeout"`

	// HMAC-style credentials.
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	Passphrase string `mapstructure:"passphrase"`

	// EIP-712 / on-chain credentials.
	PrivateKeyHex string `mapstructure:"private_key"`
	WalletAddress string `mapstructure:"wallet_address"`
	ChainID       int64  `mapstructure:"chain_id"`

	// Ed25519 credentials.
	Base58PrivateKey string `mapstructure:"ed25519_private_key"`

	RPCEndpoint  string `mapstructure:"rpc_endpoint"`
	BuilderCode  string `mapstructure:"builder_code"`
	ReferralCode string `mapstructure:"referral_code"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig mirrors ratelimit.Config's shape for YAML/env loading.
type RateLimitConfig struct {
	MaxTokens int   `mapstructure:"max_tokens"`
	WindowMs  int64 `mapstructure:"window_ms"`
}

// envPrefix env vars override sensitive fields: UNIFIED_<VENUE>_API_KEY etc.
const envPrefix = "UNIFIED"

// LoadConfig reads one venue's configuration from a YAML file with env var
// overrides, following the teacher's config.Load shape.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	prefix := envPrefix + "_" + strings.ToUpper(cfg.Venue) + "_"
	if v := os.Getenv(prefix + "API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(prefix + "API_SECRET"); v != "" {
		cfg.APISecret = v
	}
	if v := os.Getenv(prefix + "PASSPHRASE"); v != "" {
		cfg.Passphrase = v
	}
	if v := os.Getenv(prefix + "PRIVATE_KEY"); v != "" {
		cfg.PrivateKeyHex = v
	}
	if v := os.Getenv(prefix + "ED25519_PRIVATE_KEY"); v != "" {
		cfg.Base58PrivateKey = v
	}
}

// Validate checks the fields every Constructor needs regardless of which
// credential kind the venue expects.
func (c *Config) Validate() error {
	if c.Venue == "" {
		return fmt.Errorf("venue is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	return nil
}
