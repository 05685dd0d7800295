package telegrambot

import (
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

// Client holds the bot credential and the transport every Bot API call goes
// through. Use New() or NewFromConfig() to create a Client. A Client is safe
// for concurrent use.
type Client struct {
	token     SecretToken
	config    Config
	transport Transport
	logger    *slog.Logger
}

// New creates a new Client with the given bot token and options.
// This is the recommended way to create a Client programmatically.
//
// Example:
//
//	client, err := telegrambot.New(os.Getenv("TELEGRAM_BOT_TOKEN"),
//	    telegrambot.WithPolling(30, 100),
//	    telegrambot.WithLogger(logger),
//	)
func New(botToken string, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.BotToken = botToken

	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newClient(cfg)
}

// NewFromConfig creates a Client by loading configuration from multiple
// sources. See LoadConfig for the precedence rules.
//
// Example:
//
//	client, err := telegrambot.NewFromConfig("config.yaml",
//	    telegrambot.WithLogger(logger),  // Override from config
//	)
func NewFromConfig(configPath string, opts ...Option) (*Client, error) {
	cfg, err := LoadConfig(configPath, opts...)
	if err != nil {
		return nil, err
	}
	return newClient(*cfg)
}

// newClient creates the client from validated config.
func newClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		level, err := ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		logger, err = NewLogger(level, cfg.LogFilePath)
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
		cfg.Logger = logger
	}

	transport := cfg.Transport
	if transport == nil {
		transport = NewHTTPTransport(transportOptions(cfg, logger)...)
	}

	return &Client{
		token:     SecretToken(cfg.BotToken),
		config:    cfg,
		transport: transport,
		logger:    logger,
	}, nil
}

func transportOptions(cfg Config, logger *slog.Logger) []TransportOption {
	opts := []TransportOption{
		WithBaseURL(cfg.APIBaseURL),
		WithTransportLogger(logger),
		WithCircuitBreaker(NewBreaker("telegram-api",
			cfg.Breaker.MaxRequests,
			cfg.Breaker.Interval,
			cfg.Breaker.Timeout,
			logger,
		)),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.RateLimit.Requests > 0 {
		burst := max(cfg.RateLimit.Burst, 1)
		opts = append(opts, WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimit.Requests), burst)))
	}
	return opts
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// Logger returns the client logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Transport returns the transport calls go through.
func (c *Client) Transport() Transport {
	return c.transport
}
