package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/hypermind/internal/generate"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	LLM      LLMConfig         `yaml:"llm"`
	Session  SessionConfig     `yaml:"session"`
	Limits   LimitsConfig      `yaml:"limits"`
	Settings SettingsConfig    `yaml:"settings"`
	Exports  ExportsConfig     `yaml:"exports"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.SQLite, &c.Auth, &c.LLM, &c.Session, &c.Limits, &c.Settings, &c.Exports,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// LLMConfig selects and configures the generation backend.
//
// Service and Model are the defaults written to a fresh settings file.
// "offline" uses the built-in heuristic generator; any other service is sent
// to the OpenAI-compatible endpoint at BaseURL.
type LLMConfig struct {
	Service string        `yaml:"service"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	remote := c.Service != generate.ServiceOffline
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Service, validation.Required),
		validation.Field(&c.Model, validation.When(remote, validation.Required)),
		validation.Field(&c.BaseURL, validation.When(remote, validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	return c.Breaker.Validate()
}

// BreakerConfig holds circuit breaker thresholds for the remote backend.
type BreakerConfig struct {
	FailureRatio float64       `yaml:"failure_ratio"`
	MinRequests  uint32        `yaml:"min_requests"`
	Interval     time.Duration `yaml:"interval"`
	OpenTimeout  time.Duration `yaml:"open_timeout"`
}

// Validate validates the breaker configuration.
func (c *BreakerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.FailureRatio, validation.Required, validation.Min(0.01), validation.Max(1.0)),
		validation.Field(&c.MinRequests, validation.Required),
		validation.Field(&c.OpenTimeout, validation.Required),
	)
}

// Generator returns the breaker settings for the named backend.
func (c *BreakerConfig) Generator(name string) generate.BreakerConfig {
	cfg := generate.DefaultBreakerConfig(name)
	cfg.FailureThreshold = c.FailureRatio
	cfg.MinRequests = c.MinRequests
	cfg.Interval = c.Interval
	cfg.Timeout = c.OpenTimeout
	return cfg
}

// SessionConfig tunes headless sessions run from the CLI.
type SessionConfig struct {
	HideLabelsThreshold int           `yaml:"hide_labels_threshold"`
	RefreshDebounce     time.Duration `yaml:"refresh_debounce"`
	ZoomSettle          time.Duration `yaml:"zoom_settle"`
	CollisionThreshold  float64       `yaml:"collision_threshold"`
	ShotTick            time.Duration `yaml:"shot_tick"`
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.HideLabelsThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.RefreshDebounce, validation.Required),
		validation.Field(&c.ZoomSettle, validation.Required),
		validation.Field(&c.CollisionThreshold, validation.Required, validation.Min(0.0)),
		validation.Field(&c.ShotTick, validation.Required),
	)
}

// LimitsConfig throttles the streaming endpoints.
type LimitsConfig struct {
	GeneratePerMinute int `yaml:"generate_per_minute"`
	Burst             int `yaml:"burst"`
}

// Validate validates the limits configuration.
func (c *LimitsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GeneratePerMinute, validation.Min(0)),
		validation.Field(&c.Burst, validation.When(c.GeneratePerMinute > 0, validation.Required, validation.Min(1))),
	)
}

// SettingsConfig locates the LLM settings file.
type SettingsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the settings configuration.
func (c *SettingsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ExportsConfig locates saved CSV exports.
type ExportsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the exports configuration.
func (c *ExportsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./hypermind.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		LLM: LLMConfig{
			Service: generate.ServiceOffline,
			Timeout: 2 * time.Minute,
			Breaker: BreakerConfig{
				FailureRatio: 0.6,
				MinRequests:  3,
				Interval:     time.Minute,
				OpenTimeout:  30 * time.Second,
			},
		},
		Session: SessionConfig{
			HideLabelsThreshold: 1000,
			RefreshDebounce:     time.Second,
			ZoomSettle:          250 * time.Millisecond,
			CollisionThreshold:  40,
			ShotTick:            10 * time.Millisecond,
		},
		Limits: LimitsConfig{
			GeneratePerMinute: 30,
			Burst:             5,
		},
		Settings: SettingsConfig{
			Path: "settings.yaml",
		},
		Exports: ExportsConfig{
			Path: "./data",
		},
	}
}
