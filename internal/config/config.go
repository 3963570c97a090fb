package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"airouter/internal/crypto"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the application configuration
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Routing   RoutingConfig    `yaml:"routing"`
	Redis     RedisConfig      `yaml:"redis"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port        int             `yaml:"port"`
	MetricsPath string          `yaml:"metricsPath"`
	RateLimit   RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig throttles inbound requests. RequestsPerSecond <= 0 disables throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// RoutingConfig holds the failover engine's tunables.
type RoutingConfig struct {
	MaxRetries   int      `yaml:"maxRetries"`
	Backoff      Duration `yaml:"backoff"`
	HealthTTL    Duration `yaml:"healthTTL"`
	ProbeTimeout Duration `yaml:"probeTimeout"`
}

// RedisConfig enables the shared health-record cache when Addr is set.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// ProviderConfig describes one text-generation backend.
// Order in the providers list is the default routing priority.
type ProviderConfig struct {
	ID        string   `yaml:"id"`
	Family    string   `yaml:"family"`
	Model     string   `yaml:"model"`
	APIKey    string   `yaml:"apiKey"`
	BaseURL   string   `yaml:"baseUrl"`
	Timeout   Duration `yaml:"timeout"`
	MaxTokens int      `yaml:"maxTokens"`
	Quality   string   `yaml:"quality"`
	Cost      string   `yaml:"cost"`
	// Enabled defaults to true. Set it to false to keep an entry in the file without routing to it.
	Enabled *bool `yaml:"enabled"`
}

// Families lists the provider families the router can build.
var Families = []string{"anthropic", "gemini", "groq", "mock", "ollama", "openai", "openrouter", "perplexity"}

var (
	qualityTiers = []string{"highest", "high", "medium", "low"}
	costTiers    = []string{"free", "low", "medium", "high"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}

// keylessFamilies run without a credential (local or fake backends).
var keylessFamilies = map[string]bool{
	"ollama": true,
	"mock":   true,
}

// NeedsCredential reports whether the provider's family requires an API key.
func (p ProviderConfig) NeedsCredential() bool {
	return !keylessFamilies[p.Family]
}

// Configured reports whether the provider should appear in the routing table:
// it is enabled and, when its family needs one, carries a credential.
func (p ProviderConfig) Configured() bool {
	if p.Enabled != nil && !*p.Enabled {
		return false
	}
	return !p.NeedsCredential() || p.APIKey != ""
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8081,
			MetricsPath: "/metrics",
			RateLimit:   RateLimitConfig{RequestsPerSecond: 20, Burst: 40},
		},
		Routing: RoutingConfig{
			MaxRetries:   3,
			Backoff:      Duration(time.Second),
			HealthTTL:    Duration(5 * time.Minute),
			ProbeTimeout: Duration(3 * time.Second),
		},
		Redis: RedisConfig{KeyPrefix: "airouter:"},
	}
}

// LoadConfig loads the configuration from a YAML file, applies environment
// overrides, opens sealed credentials and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Running on defaults plus environment is allowed.
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.openCredentials(); err != nil {
		return nil, err
	}
	cfg.applyProviderDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills empty credentials from <FAMILY>_API_KEY and overrides the Redis address.
func (c *Config) applyEnv() {
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.APIKey != "" || !p.NeedsCredential() {
			continue
		}
		p.APIKey = os.Getenv(strings.ToUpper(p.Family) + "_API_KEY")
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
}

func (c *Config) openCredentials() error {
	var keyring *crypto.Keyring
	for i := range c.Providers {
		p := &c.Providers[i]
		if !crypto.IsSealed(p.APIKey) {
			continue
		}
		if keyring == nil {
			k, err := crypto.KeyringFromEnv()
			if err != nil {
				return fmt.Errorf("config: provider %q has a sealed apiKey: %w", p.ID, err)
			}
			keyring = k
		}
		key, err := keyring.Open(p.APIKey)
		if err != nil {
			return fmt.Errorf("config: provider %q: %w", p.ID, err)
		}
		p.APIKey = key
	}
	return nil
}

func (c *Config) applyProviderDefaults() {
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.ID == "" {
			p.ID = p.Family
		}
		if p.Timeout == 0 {
			p.Timeout = Duration(30 * time.Second)
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = 4096
		}
		if p.Quality == "" {
			p.Quality = "medium"
		}
		if p.Cost == "" {
			p.Cost = "medium"
		}
	}
}

// Validate checks the values the router relies on. Disabled providers are
// checked too, so a typo surfaces before the entry is switched on.
func (c *Config) Validate() error {
	if c.Routing.MaxRetries < 1 {
		return fmt.Errorf("config: routing.maxRetries must be >= 1, got %d", c.Routing.MaxRetries)
	}
	if c.Routing.ProbeTimeout <= 0 {
		return fmt.Errorf("config: routing.probeTimeout must be positive")
	}
	if c.Routing.Backoff < 0 {
		return fmt.Errorf("config: routing.backoff must not be negative")
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Family == "" {
			return fmt.Errorf("config: provider %q has no family", p.ID)
		}
		if !slices.Contains(Families, p.Family) {
			return fmt.Errorf("config: provider %q has unknown family %q; supported: %s",
				p.ID, p.Family, strings.Join(Families, ", "))
		}
		if !oneOf(p.Quality, qualityTiers) {
			return fmt.Errorf("config: provider %q has unknown quality tier %q", p.ID, p.Quality)
		}
		if !oneOf(p.Cost, costTiers) {
			return fmt.Errorf("config: provider %q has unknown cost tier %q", p.ID, p.Cost)
		}
		if seen[p.ID] {
			return fmt.Errorf("config: duplicate provider id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Timeout <= 0 {
			return fmt.Errorf("config: provider %q timeout must be positive", p.ID)
		}
		if p.MaxTokens < 1 {
			return fmt.Errorf("config: provider %q maxTokens must be positive", p.ID)
		}
	}
	return nil
}
