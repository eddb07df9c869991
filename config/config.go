// Package config loads service settings from flags, an optional YAML file and the environment.
package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	envAPIKey    = "BINANCE_API_KEY"
	envAPISecret = "BINANCE_API_SECRET"
)

// Config service settings. Credentials come from the environment only.
type Config struct {
	Addr                  string
	APIKey                string
	APISecret             string
	SpotBaseURL           string
	FuturesBaseURL        string
	CoinFuturesBaseURL    string
	RequestTimeout        time.Duration
	CycleTimeout          time.Duration
	RecvWindow            time.Duration
	MaxRetries            int
	RetryInterval         time.Duration
	SubAccountConcurrency int
	ExtraStablecoins      []string
	TLSDomains            []string
	TLSCacheDir           string
	// Once runs one aggregation cycle, prints it and exits.
	Once  bool
	Debug bool
}

// ConfigTmp raw YAML shape; zero values fall back to defaults.
type ConfigTmp struct {
	Addr                  string        `yaml:"addr"`
	SpotBaseURL           string        `yaml:"spot_base_url"`
	FuturesBaseURL        string        `yaml:"futures_base_url"`
	CoinFuturesBaseURL    string        `yaml:"coin_futures_base_url"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`
	CycleTimeout          time.Duration `yaml:"cycle_timeout"`
	RecvWindow            time.Duration `yaml:"recv_window"`
	MaxRetries            *int          `yaml:"max_retries,omitempty"`
	RetryInterval         time.Duration `yaml:"retry_interval"`
	SubAccountConcurrency int           `yaml:"sub_account_concurrency"`
	ExtraStablecoins      []string      `yaml:"extra_stablecoins"`
	TLSDomains            []string      `yaml:"tls_domains"`
	TLSCacheDir           string        `yaml:"tls_cache_dir"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Addr:                  ":8080",
		SpotBaseURL:           "https://api.binance.com",
		FuturesBaseURL:        "https://fapi.binance.com",
		CoinFuturesBaseURL:    "https://dapi.binance.com",
		RequestTimeout:        10 * time.Second,
		CycleTimeout:          60 * time.Second,
		RecvWindow:            5 * time.Second,
		MaxRetries:            2,
		RetryInterval:         500 * time.Millisecond,
		SubAccountConcurrency: 4,
		TLSCacheDir:           "cert-cache",
	}
}

// Get loads the configuration from process flags and environment.
func Get() (Config, error) {
	return Load(os.Args[1:], os.Getenv)
}

// Load parses args, reads the YAML file given by --config and takes credentials from getenv.
func Load(args []string, getenv func(string) string) (Config, error) {
	fs := flag.NewFlagSet("holdings", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to yaml config")
	addr := fs.String("addr", "", "http listen address, example: :8080")
	once := fs.Bool("once", false, "print one portfolio snapshot as JSON and exit")
	debug := fs.Bool("debug", false, "development logging")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if *configPath != "" {
		if err := applyYaml(&cfg, *configPath); err != nil {
			return Config{}, err
		}
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	cfg.Once = *once
	cfg.Debug = *debug
	cfg.APIKey = strings.TrimSpace(getenv(envAPIKey))
	cfg.APISecret = strings.TrimSpace(getenv(envAPISecret))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyYaml(cfg *Config, path string) error {
	f, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read yaml config")
	}
	var c ConfigTmp
	if err := yaml.Unmarshal(f, &c); err != nil {
		return errors.Wrap(err, "parse yaml config")
	}

	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if c.SpotBaseURL != "" {
		cfg.SpotBaseURL = c.SpotBaseURL
	}
	if c.FuturesBaseURL != "" {
		cfg.FuturesBaseURL = c.FuturesBaseURL
	}
	if c.CoinFuturesBaseURL != "" {
		cfg.CoinFuturesBaseURL = c.CoinFuturesBaseURL
	}
	if c.RequestTimeout != 0 {
		cfg.RequestTimeout = c.RequestTimeout
	}
	if c.CycleTimeout != 0 {
		cfg.CycleTimeout = c.CycleTimeout
	}
	if c.RecvWindow != 0 {
		cfg.RecvWindow = c.RecvWindow
	}
	if c.MaxRetries != nil {
		cfg.MaxRetries = *c.MaxRetries
	}
	if c.RetryInterval != 0 {
		cfg.RetryInterval = c.RetryInterval
	}
	if c.SubAccountConcurrency != 0 {
		cfg.SubAccountConcurrency = c.SubAccountConcurrency
	}
	if c.TLSCacheDir != "" {
		cfg.TLSCacheDir = c.TLSCacheDir
	}
	cfg.ExtraStablecoins = c.ExtraStablecoins
	cfg.TLSDomains = c.TLSDomains
	return nil
}

// Validate checks ranges and URLs. Missing credentials are not an error here:
// the service still serves prices and reports the problem per request.
func (c Config) Validate() error {
	for name, raw := range map[string]string{
		"spot_base_url":         c.SpotBaseURL,
		"futures_base_url":      c.FuturesBaseURL,
		"coin_futures_base_url": c.CoinFuturesBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("incorrect '%s' param: %q", name, raw)
		}
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("incorrect 'request_timeout' param, must be positive: %s", c.RequestTimeout)
	}
	if c.CycleTimeout <= 0 {
		return fmt.Errorf("incorrect 'cycle_timeout' param, must be positive: %s", c.CycleTimeout)
	}
	if c.RecvWindow < 0 || c.RecvWindow > time.Minute {
		return fmt.Errorf("incorrect 'recv_window' param, must be within 0..60s: %s", c.RecvWindow)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("incorrect 'max_retries' param, must not be negative: %d", c.MaxRetries)
	}
	if c.SubAccountConcurrency <= 0 {
		return fmt.Errorf("incorrect 'sub_account_concurrency' param, must be positive: %d", c.SubAccountConcurrency)
	}
	return nil
}

// HasCredentials reports whether both API key and secret are set.
func (c Config) HasCredentials() bool {
	return c.APIKey != "" && c.APISecret != ""
}
