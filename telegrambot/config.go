package telegrambot

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for a Client, its Poller and its webhook.
// Use DefaultConfig() to get sensible defaults.
type Config struct {
	BotToken    string        `koanf:"bot_token" validate:"required,bottoken"`
	APIBaseURL  string        `koanf:"api_base_url" validate:"required,url"`
	LogLevel    string        `koanf:"log_level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	LogFilePath string        `koanf:"log_file_path"`
	CallTimeout time.Duration `koanf:"call_timeout" validate:"gte=0"`

	Polling   PollingConfig   `koanf:"polling"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Webhook   WebhookConfig   `koanf:"webhook"`

	// Programmatic only. A nil Logger is built from LogLevel and LogFilePath.
	Logger     *slog.Logger `koanf:"-" validate:"-"`
	Transport  Transport    `koanf:"-" validate:"-"`
	HTTPClient HTTPClient   `koanf:"-" validate:"-"`
}

// PollingConfig controls the getUpdates loop.
type PollingConfig struct {
	// Timeout is the long-poll timeout in seconds sent to Telegram.
	Timeout int `koanf:"timeout" validate:"gte=0,lte=60"`
	// Limit caps the number of updates per batch.
	Limit int `koanf:"limit" validate:"gte=1,lte=100"`
	// Interval is the pause after a failed poll.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
	// RequestTimeout bounds each call. Zero means Timeout + 60s.
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gte=0"`
	// LastNUpdates starts from the last N pending updates instead of all of them.
	LastNUpdates   int      `koanf:"last_n_updates" validate:"gte=0"`
	AllowedUpdates []string `koanf:"allowed_updates"`
	// MaxErrors marks the poller unhealthy after that many consecutive
	// failures. Zero disables the check.
	MaxErrors int `koanf:"max_errors" validate:"gte=0"`
}

// RateLimitConfig is used for outbound calls and for inbound webhook requests.
// Zero requests disables outbound throttling.
type RateLimitConfig struct {
	Requests float64 `koanf:"requests" validate:"gte=0"`
	Burst    int     `koanf:"burst" validate:"gte=0"`
}

// BreakerConfig configures the circuit breakers.
type BreakerConfig struct {
	MaxRequests uint32        `koanf:"max_requests"`
	Interval    time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout     time.Duration `koanf:"timeout" validate:"gte=0"`
}

// WebhookConfig configures the webhook server and handler.
type WebhookConfig struct {
	Port          int    `koanf:"port" validate:"gte=1,lte=65535"`
	Secret        string `koanf:"secret" validate:"omitempty,max=256"`
	URL           string `koanf:"url" validate:"omitempty,url"`
	AllowedDomain string `koanf:"allowed_domain"`
	TLSCertPath   string `koanf:"tls_cert_path"`
	TLSKeyPath    string `koanf:"tls_key_path"`
	MaxBodySize   int64  `koanf:"max_body_size" validate:"gte=0"`

	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		APIBaseURL:  DefaultAPIBaseURL,
		LogLevel:    "info",
		CallTimeout: 60 * time.Second,
		Polling: PollingConfig{
			Timeout:   30,
			Limit:     100,
			Interval:  25 * time.Millisecond,
			MaxErrors: 10,
		},
		RateLimit: RateLimitConfig{
			Requests: 30,
			Burst:    30,
		},
		Breaker: BreakerConfig{
			MaxRequests: defaultBreakerMaxRequests,
			Interval:    defaultBreakerInterval,
			Timeout:     defaultBreakerTimeout,
		},
		Webhook: WebhookConfig{
			Port:              8443,
			MaxBodySize:       1 << 20,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
	}
}

// LoadConfig loads configuration from file, env vars, and applies options.
// Configuration precedence (highest to lowest):
//  1. Programmatic options (opts...)
//  2. Environment variables (TELEGRAM_*, "__" separates nested keys)
//  3. Config file (if path provided and present)
//  4. Default values
func LoadConfig(configPath string, opts ...Option) (*Config, error) {
	defaults := DefaultConfig()
	k := koanf.New(".")

	// 1. DEFAULTS (lowest priority)
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// 2. CONFIG FILE (if exists)
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		}
	}

	// 3. ENVIRONMENT VARIABLES (TELEGRAM_*)
	if err := k.Load(env.Provider("TELEGRAM_", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// 4. PROGRAMMATIC OPTIONS (highest priority)
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps TELEGRAM_BOT_TOKEN to bot_token and
// TELEGRAM_POLLING__TIMEOUT to polling.timeout.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "TELEGRAM_"))
	return strings.ReplaceAll(key, "__", ".")
}

// Validate checks the configuration and returns user-friendly errors.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("bot_token: %w (set via TELEGRAM_BOT_TOKEN env var)", ErrBotTokenRequired)
	}
	if err := ValidateBotToken(SecretToken(c.BotToken)); err != nil {
		return fmt.Errorf("bot_token: %w (format: 123456789:ABCdefGHI...)", err)
	}
	if err := validateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// EffectiveRequestTimeout returns the per-call bound of getUpdates.
func (p PollingConfig) EffectiveRequestTimeout() time.Duration {
	if p.RequestTimeout > 0 {
		return p.RequestTimeout
	}
	return time.Duration(p.Timeout)*time.Second + 60*time.Second
}
