package telegrambot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// DefaultAPIBaseURL is the public Bot API endpoint.
const DefaultAPIBaseURL = "https://api.telegram.org"

// Request is one outbound Bot API call as seen by a Transport.
type Request struct {
	Token  SecretToken
	Method string
	Body   []byte
	// Boundary is empty for JSON bodies.
	Boundary string
}

// ContentType returns the header value matching the body encoding.
func (r Request) ContentType() string {
	if r.Boundary == "" {
		return "application/json"
	}
	return "multipart/form-data; boundary=" + r.Boundary
}

// Transport sends an encoded request to a named Bot API method and returns
// the raw response body. Implementations do not retry.
type Transport interface {
	Send(ctx context.Context, req Request) ([]byte, error)
}

// FileDownloader is implemented by transports that can fetch files from the
// Bot API file storage.
type FileDownloader interface {
	Download(ctx context.Context, token SecretToken, filePath string) ([]byte, error)
}

// Ensure HTTPTransport implements Transport and FileDownloader at compile time.
var (
	_ Transport      = (*HTTPTransport)(nil)
	_ FileDownloader = (*HTTPTransport)(nil)
)

// HTTPTransport is the default Transport. Every call goes through an optional
// rate limiter and a circuit breaker.
type HTTPTransport struct {
	baseURL string
	client  HTTPClient
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
	logger  *slog.Logger
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithBaseURL points the transport at another Bot API server, e.g. a local
// telegram-bot-api instance or a test server.
func WithBaseURL(baseURL string) TransportOption {
	return func(t *HTTPTransport) {
		t.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client for the transport.
func WithHTTPClient(client HTTPClient) TransportOption {
	return func(t *HTTPTransport) {
		t.client = client
	}
}

// WithCircuitBreaker replaces the default circuit breaker.
func WithCircuitBreaker(breaker *gobreaker.CircuitBreaker[[]byte]) TransportOption {
	return func(t *HTTPTransport) {
		t.breaker = breaker
	}
}

// WithRateLimiter throttles outbound calls. A nil limiter disables throttling.
func WithRateLimiter(limiter *rate.Limiter) TransportOption {
	return func(t *HTTPTransport) {
		t.limiter = limiter
	}
}

// WithTransportLogger sets the logger used for breaker state changes.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// NewHTTPTransport creates a transport with the default HTTP client and a
// circuit breaker using the default settings.
func NewHTTPTransport(opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL: DefaultAPIBaseURL,
		client:  defaultHTTPClient(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.breaker == nil {
		t.breaker = NewBreaker("telegram-api", defaultBreakerMaxRequests, defaultBreakerInterval, defaultBreakerTimeout, t.logger)
	}
	return t
}

// Default circuit breaker settings.
const (
	defaultBreakerMaxRequests = 5
	defaultBreakerInterval    = 2 * time.Minute
	defaultBreakerTimeout     = 60 * time.Second
)

// NewBreaker builds the circuit breaker used around Bot API calls. It trips
// once at least 3 requests were seen and 60% of them failed.
func NewBreaker(name string, maxRequests uint32, interval, timeout time.Duration, logger *slog.Logger) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not a sign of an unhealthy API.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// defaultHTTPClient creates an HTTP client suitable for long polling. There is
// no overall client timeout: every call is bounded by its context instead.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

// upstreamStatusError marks a 5xx answer. The breaker counts it as a
// failure, but the body is still handed to the envelope decoder.
type upstreamStatusError struct {
	code int
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

// Send POSTs the body to <base>/bot<token>/<method>. Any HTTP status yields
// the body; only failures to obtain one are returned as *NetworkError.
func (t *HTTPTransport) Send(ctx context.Context, req Request) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Method: req.Method, Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, req.Token.Value(), req.Method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &NetworkError{Method: req.Method, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", req.ContentType())

	body, err := t.breaker.Execute(func() ([]byte, error) {
		return t.do(httpReq)
	})

	var statusErr *upstreamStatusError
	if errors.As(err, &statusErr) {
		return body, nil
	}
	if err != nil {
		return nil, &NetworkError{Method: req.Method, Err: err}
	}
	return body, nil
}

// Download fetches <base>/file/bot<token>/<path>.
func (t *HTTPTransport) Download(ctx context.Context, token SecretToken, filePath string) ([]byte, error) {
	url := fmt.Sprintf("%s/file/bot%s/%s", t.baseURL, token.Value(), strings.TrimLeft(filePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{Method: "download", Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: "download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{Method: "download", Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: "download", Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}

func (t *HTTPTransport) do(req *http.Request) ([]byte, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Always drain remaining body for connection reuse
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return body, &upstreamStatusError{code: resp.StatusCode}
	}
	return body, nil
}
