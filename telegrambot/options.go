package telegrambot

import (
	"log/slog"
	"time"
)

// Option configures a Client. Use With* functions to create options.
// This interface-based approach prevents misuse and enables type safety.
type Option interface {
	apply(*Config)
}

// optionFunc wraps a function to implement Option interface.
type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

// WithBotToken overrides the token loaded by LoadConfig.
func WithBotToken(token string) Option {
	return optionFunc(func(c *Config) {
		c.BotToken = token
	})
}

// WithAPIBaseURL points the client at another Bot API server.
func WithAPIBaseURL(url string) Option {
	return optionFunc(func(c *Config) { c.APIBaseURL = url })
}

// WithCallTimeout bounds calls whose context has no deadline. Zero disables it.
func WithCallTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) { c.CallTimeout = d })
}

// WithPolling configures the long-poll timeout (seconds) and batch size.
func WithPolling(timeout, limit int) Option {
	return optionFunc(func(c *Config) {
		c.Polling.Timeout = timeout
		c.Polling.Limit = limit
	})
}

// WithPollingInterval sets the pause after a failed poll.
func WithPollingInterval(d time.Duration) Option {
	return optionFunc(func(c *Config) { c.Polling.Interval = d })
}

// WithRequestTimeout bounds each getUpdates and setup call.
func WithRequestTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) { c.Polling.RequestTimeout = d })
}

// WithLastNUpdates makes the poller skip all but the last n pending updates.
func WithLastNUpdates(n int) Option {
	return optionFunc(func(c *Config) { c.Polling.LastNUpdates = n })
}

// WithAllowedUpdates filters which update kinds Telegram sends.
func WithAllowedUpdates(kinds ...string) Option {
	return optionFunc(func(c *Config) { c.Polling.AllowedUpdates = kinds })
}

// WithPollingMaxErrors sets how many consecutive failures make the poller
// unhealthy. Set to 0 to disable.
func WithPollingMaxErrors(max int) Option {
	return optionFunc(func(c *Config) { c.Polling.MaxErrors = max })
}

// WithRateLimit sets rate limiting parameters.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return optionFunc(func(c *Config) {
		c.RateLimit.Requests = requestsPerSecond
		c.RateLimit.Burst = burst
	})
}

// WithBreakerConfig configures the circuit breaker.
func WithBreakerConfig(maxRequests uint32, interval, timeout time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.Breaker.MaxRequests = maxRequests
		c.Breaker.Interval = interval
		c.Breaker.Timeout = timeout
	})
}

// WithWebhook configures the webhook port and secret token.
func WithWebhook(port int, secret string) Option {
	return optionFunc(func(c *Config) {
		c.Webhook.Port = port
		c.Webhook.Secret = secret
	})
}

// WithWebhookTLS sets TLS certificate paths for the webhook server.
func WithWebhookTLS(certPath, keyPath string) Option {
	return optionFunc(func(c *Config) {
		c.Webhook.TLSCertPath = certPath
		c.Webhook.TLSKeyPath = keyPath
	})
}

// WithWebhookURL sets the public URL registered with setWebhook.
func WithWebhookURL(url string) Option {
	return optionFunc(func(c *Config) { c.Webhook.URL = url })
}

// WithAllowedDomain restricts webhook requests to a specific domain.
func WithAllowedDomain(domain string) Option {
	return optionFunc(func(c *Config) { c.Webhook.AllowedDomain = domain })
}

// WithMaxBodySize sets the maximum webhook request body size.
func WithMaxBodySize(size int64) Option {
	return optionFunc(func(c *Config) { c.Webhook.MaxBodySize = size })
}

// WithLogger sets a custom slog.Logger.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(c *Config) { c.Logger = logger })
}

// WithLogLevel sets the level used when the client builds its own logger.
func WithLogLevel(level string) Option {
	return optionFunc(func(c *Config) { c.LogLevel = level })
}

// WithLogFile sets the log file path.
func WithLogFile(path string) Option {
	return optionFunc(func(c *Config) { c.LogFilePath = path })
}

// WithTransport replaces the HTTP transport, e.g. with a decorated or fake one.
func WithTransport(t Transport) Option {
	return optionFunc(func(c *Config) { c.Transport = t })
}

// WithHTTPClientOption sets the HTTP client of the default transport.
func WithHTTPClientOption(client HTTPClient) Option {
	return optionFunc(func(c *Config) { c.HTTPClient = client })
}

// Presets for common configurations

// ProductionPreset returns options suitable for production environments.
func ProductionPreset() Option {
	return optionFunc(func(c *Config) {
		c.Polling.MaxErrors = 10
		c.Polling.Interval = time.Second
		c.Breaker.MaxRequests = 5
		c.Webhook.ShutdownTimeout = 30 * time.Second
	})
}

// DevelopmentPreset returns options suitable for development.
func DevelopmentPreset() Option {
	return optionFunc(func(c *Config) {
		c.LogLevel = "debug"
		c.Polling.MaxErrors = 3
		c.Polling.Interval = 25 * time.Millisecond
		c.Breaker.MaxRequests = 2
		c.Webhook.ShutdownTimeout = 5 * time.Second
	})
}
