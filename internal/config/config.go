// Package config loads process-wide settings from the config file and the
// environment. Settings are read once at start-up.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/spigell/resume-optimizer/internal/catalog"
	"github.com/spigell/resume-optimizer/internal/secrets"
)

type Config struct {
	Providers Providers `mapstructure:"providers"`
	Budget    Budget    `mapstructure:"budget"`
	Thinking  Thinking  `mapstructure:"thinking"`
	Defaults  Defaults  `mapstructure:"defaults"`
	Breakers  Breakers  `mapstructure:"circuit-breaker"`
	Reports   Reports   `mapstructure:"reports"`
	Invoke    Invoke    `mapstructure:"invoke"`
	Admission Admission `mapstructure:"admission"`
}

type Providers struct {
	Anthropic Provider `mapstructure:"anthropic"`
	OpenAI    Provider `mapstructure:"openai"`
	Google    Provider `mapstructure:"google"`
}

type Provider struct {
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

// Budget limits in dollars. Zero disables a limit.
type Budget struct {
	Daily      float64 `mapstructure:"daily" validate:"gte=0"`
	Monthly    float64 `mapstructure:"monthly" validate:"gte=0"`
	PerRequest float64 `mapstructure:"per-request" validate:"gte=0"`
}

type Thinking struct {
	Enabled bool `mapstructure:"enabled"`
	Min     int  `mapstructure:"min" validate:"gte=0,ltefield=Max"`
	Max     int  `mapstructure:"max" validate:"gt=0"`
}

type Defaults struct {
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `mapstructure:"max-tokens" validate:"gt=0"`
}

type Breakers struct {
	Model     Breaker `mapstructure:"model"`
	Admission Breaker `mapstructure:"admission"`
}

type Breaker struct {
	FailureThreshold int           `mapstructure:"failure-threshold" validate:"gt=0"`
	RecoveryTime     time.Duration `mapstructure:"recovery-time" validate:"gt=0"`
}

type Reports struct {
	Dir string `mapstructure:"dir"`
	// Restore loads the newest snapshot from Dir at start-up.
	Restore bool `mapstructure:"restore"`
}

type Invoke struct {
	MaxRetries int           `mapstructure:"max-retries" validate:"gte=0"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type Admission struct {
	TTL             time.Duration `mapstructure:"ttl" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup-interval" validate:"gt=0"`
}

var envBindings = map[string]string{
	"providers.anthropic.api-key":      "ANTHROPIC_API_KEY",
	"providers.anthropic.api-key-file": "ANTHROPIC_API_KEY_FILE",
	"providers.openai.api-key":         "OPENAI_API_KEY",
	"providers.openai.api-key-file":    "OPENAI_API_KEY_FILE",
	"providers.google.api-key":         "GOOGLE_API_KEY",
	"providers.google.api-key-file":    "GOOGLE_API_KEY_FILE",
	"budget.daily":                     "DAILY_BUDGET_LIMIT",
	"budget.monthly":                   "MONTHLY_BUDGET_LIMIT",
	"budget.per-request":               "PER_REQUEST_LIMIT",
	"thinking.enabled":                 "THINKING_ENABLED",
	"defaults.temperature":             "DEFAULT_TEMPERATURE",
	"defaults.max-tokens":              "DEFAULT_MAX_TOKENS",
	"reports.dir":                      "COST_REPORTS_DIR",
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) error {
	v.SetDefault("budget.daily", 10.0)
	v.SetDefault("budget.monthly", 200.0)
	v.SetDefault("budget.per-request", 1.0)
	v.SetDefault("thinking.enabled", true)
	v.SetDefault("thinking.min", 0)
	v.SetDefault("thinking.max", 30000)
	v.SetDefault("defaults.temperature", 0.7)
	v.SetDefault("defaults.max-tokens", 4096)
	v.SetDefault("circuit-breaker.model.failure-threshold", 3)
	v.SetDefault("circuit-breaker.model.recovery-time", 300*time.Second)
	v.SetDefault("circuit-breaker.admission.failure-threshold", 5)
	v.SetDefault("circuit-breaker.admission.recovery-time", 60*time.Second)
	v.SetDefault("reports.dir", "cost_reports")
	v.SetDefault("reports.restore", true)
	v.SetDefault("invoke.max-retries", 3)
	v.SetDefault("invoke.timeout", 2*time.Minute)
	v.SetDefault("admission.ttl", 10*time.Minute)
	v.SetDefault("admission.cleanup-interval", time.Minute)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s environment variable: %w", env, err)
		}
	}
	return nil
}

// Load decodes and validates the configuration held by v. SetDefaults must
// have been called on v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (p Providers) sources() map[catalog.Provider]secrets.Source {
	return map[catalog.Provider]secrets.Source{
		catalog.ProviderAnthropic: {Name: "anthropic api key", Value: p.Anthropic.APIKey, File: p.Anthropic.APIKeyFile},
		catalog.ProviderOpenAI:    {Name: "openai api key", Value: p.OpenAI.APIKey, File: p.OpenAI.APIKeyFile},
		catalog.ProviderGoogle:    {Name: "google api key", Value: p.Google.APIKey, File: p.Google.APIKeyFile},
	}
}

// Keys resolves the API key of every configured provider. Providers without
// any key are absent from the result; a key file that cannot be read is an
// error.
func (p Providers) Keys() (map[catalog.Provider]string, error) {
	keys := make(map[catalog.Provider]string)
	for provider, src := range p.sources() {
		key, err := secrets.Load(src)
		if errors.Is(err, secrets.ErrNotConfigured) {
			continue
		}
		if err != nil {
			return nil, err
		}
		keys[provider] = key
	}
	return keys, nil
}

// Credentials turns resolved keys into the presence flags of the catalog.
func Credentials(keys map[catalog.Provider]string) catalog.Credentials {
	creds := make(catalog.Credentials, len(keys))
	for p, k := range keys {
		creds[p] = k != ""
	}
	return creds
}
