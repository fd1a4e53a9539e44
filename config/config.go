package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonwraymond/latexbot/secret"
)

// EnvPrefix prefixes environment overrides, e.g. LATEXBOT_CACHE_DIR.
const EnvPrefix = "LATEXBOT"

// Config is the resolved configuration.
type Config struct {
	Cache    CacheConfig    `mapstructure:"cache"`
	Render   RenderConfig   `mapstructure:"render"`
	Paste    PasteConfig    `mapstructure:"paste"`
	Template TemplateConfig `mapstructure:"template"`
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type CacheConfig struct {
	Dir  string `mapstructure:"dir"`
	Hash string `mapstructure:"hash"`
}

type RenderConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	Format        string        `mapstructure:"format"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`
	Rate          float64       `mapstructure:"rate"`
	Burst         int           `mapstructure:"burst"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueWait     time.Duration `mapstructure:"queue_wait"`
	Retry         RetryConfig   `mapstructure:"retry"`
	Circuit       CircuitConfig `mapstructure:"circuit"`
}

type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

type CircuitConfig struct {
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

type PasteConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type TemplateConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxQueryBytes   int64         `mapstructure:"max_query_bytes"`
}

type AuthConfig struct {
	Enabled bool      `mapstructure:"enabled"`
	APIKeys []string  `mapstructure:"api_keys"`
	JWT     JWTConfig `mapstructure:"jwt"`
}

type JWTConfig struct {
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

type SecretsConfig struct {
	Strict    bool     `mapstructure:"strict"`
	Providers []string `mapstructure:"providers"`
	FileRoot  string   `mapstructure:"file_root"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type TracingConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Exporter  string  `mapstructure:"exporter"`
	SamplePct float64 `mapstructure:"sample_pct"`
}

type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"`
}

// applyDefaults seeds v with the defaults from Options.
func applyDefaults(v *viper.Viper) {
	for _, o := range Options() {
		v.SetDefault(o.Key, o.Default)
	}
}

// Load resolves configuration with precedence defaults < file < env < flags
// bound on v, resolves secret references, and validates the result.
//
// If v has no config file set, latexbot.{toml,yaml,json} is searched in the
// user config directory and the working directory. A missing file is not an
// error; an unreadable or invalid one is.
func Load(ctx context.Context, v *viper.Viper) (*Config, error) {
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("latexbot")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "latexbot"))
		}
		v.AddConfigPath(".")
	}

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.resolveSecrets(ctx); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveSecrets expands ${ENV} and secretref: references in the values that
// may carry credentials or deployment-specific locations.
func (c *Config) resolveSecrets(ctx context.Context) error {
	r, err := secret.NewResolverFromRegistry(secret.NewDefaultRegistry(), c.Secrets.Strict, c.Secrets.Providers,
		map[string]any{"root": c.Secrets.FileRoot})
	if err != nil {
		return fmt.Errorf("config: secrets: %w", err)
	}
	defer func() { _ = r.Close() }()

	fields := []struct {
		key string
		val *string
	}{
		{"cache.dir", &c.Cache.Dir},
		{"render.endpoint", &c.Render.Endpoint},
		{"paste.endpoint", &c.Paste.Endpoint},
		{"template.path", &c.Template.Path},
		{"auth.jwt.secret", &c.Auth.JWT.Secret},
	}
	for _, f := range fields {
		if *f.val == "" {
			continue
		}
		out, err := r.ResolveValue(ctx, *f.val)
		if err != nil {
			return fmt.Errorf("config: %s: %w", f.key, err)
		}
		*f.val = out
	}

	keys, err := r.ResolveSlice(ctx, c.Auth.APIKeys)
	if err != nil {
		return fmt.Errorf("config: auth.api_keys: %w", err)
	}
	c.Auth.APIKeys = keys
	return nil
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Cache.Dir) == "" {
		fail("cache.dir is required")
	}
	switch strings.ToLower(c.Cache.Hash) {
	case "md5", "sha256":
	default:
		fail("cache.hash must be md5 or sha256, got %q", c.Cache.Hash)
	}
	if strings.TrimSpace(c.Render.Endpoint) == "" {
		fail("render.endpoint is required")
	}
	if c.Render.Rate <= 0 {
		fail("render.rate must be greater than 0")
	}
	if c.Render.Burst <= 0 {
		fail("render.burst must be greater than 0")
	}
	if c.Render.MaxConcurrent <= 0 {
		fail("render.max_concurrent must be greater than 0")
	}
	if c.Render.Retry.MaxAttempts < 1 {
		fail("render.retry.max_attempts must be at least 1")
	}
	if c.Render.Circuit.MaxFailures < 1 {
		fail("render.circuit.max_failures must be at least 1")
	}
	if c.Render.Timeout < 0 || c.Paste.Timeout < 0 {
		fail("timeouts must not be negative")
	}
	if c.Paste.Enabled && strings.TrimSpace(c.Paste.Endpoint) == "" {
		fail("paste.endpoint is required when paste.enabled is true")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		fail("server.addr is required")
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 && c.Auth.JWT.Secret == "" {
		fail("auth.enabled requires auth.api_keys or auth.jwt.secret")
	}
	if c.Tracing.SamplePct < 0 || c.Tracing.SamplePct > 100 {
		fail("tracing.sample_pct must be between 0 and 100")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
}
