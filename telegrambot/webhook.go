package telegrambot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// SecretTokenHeader carries the webhook secret set with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

/* ---------- types ---------- */

// WebhookHandler receives pushed updates, decodes them with DecodeUpdate and
// hands them to a Dispatcher.
type WebhookHandler struct {
	logger        *slog.Logger
	webhookSecret SecretToken
	allowedDomain string

	dispatcher  Dispatcher
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[Update]
	bufferPool  sync.Pool
	maxBodySize int64
	metrics     PollMetrics
}

/* ---------- constructor ---------- */

// NewWebhookHandler creates a webhook handler with all tunables injected.
// Most callers use Client.WebhookHandler instead.
func NewWebhookHandler(
	logger *slog.Logger,
	webhookSecret SecretToken,
	allowedDomain string,
	dispatcher Dispatcher,

	rateLimitReq float64,
	rateLimitBurst int,
	maxBodySize int64,

	breakerMaxReq uint32,
	breakerInterval time.Duration,
	breakerTimeout time.Duration,
) *WebhookHandler {
	if f, ok := dispatcher.(interface{ Freeze() }); ok {
		f.Freeze()
	}

	cbSettings := gobreaker.Settings{
		Name:        "WebhookCircuitBreaker",
		MaxRequests: breakerMaxReq,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		IsSuccessful: func(err error) bool {
			// Client errors do not count as failures.
			var whErr *WebhookError
			return err == nil || (errors.As(err, &whErr) && whErr.Code < http.StatusInternalServerError)
		},
	}

	if maxBodySize <= 0 {
		maxBodySize = 1 << 20
	}

	limit := rate.Limit(rateLimitReq)
	if rateLimitReq <= 0 {
		limit = rate.Inf
	}

	return &WebhookHandler{
		logger:        logger,
		webhookSecret: webhookSecret,
		allowedDomain: allowedDomain,
		dispatcher:    dispatcher,
		limiter:       rate.NewLimiter(limit, max(rateLimitBurst, 1)),
		breaker:       gobreaker.NewCircuitBreaker[Update](cbSettings),
		maxBodySize:   maxBodySize,
		metrics:       noopMetrics{},
		bufferPool: sync.Pool{
			New: func() interface{} {
				b := make([]byte, maxBodySize)
				return &b // store pointer to avoid SA6002 allocation warning
			},
		},
	}
}

// WebhookHandler builds a handler from the client's webhook, rate limit and
// breaker configuration.
func (c *Client) WebhookHandler(d Dispatcher) *WebhookHandler {
	cfg := c.config
	return NewWebhookHandler(
		c.logger,
		SecretToken(cfg.Webhook.Secret),
		cfg.Webhook.AllowedDomain,
		d,
		cfg.RateLimit.Requests,
		cfg.RateLimit.Burst,
		cfg.Webhook.MaxBodySize,
		cfg.Breaker.MaxRequests,
		cfg.Breaker.Interval,
		cfg.Breaker.Timeout,
	)
}

// SetMetrics installs a metrics sink for received and undecodable updates.
func (wh *WebhookHandler) SetMetrics(m PollMetrics) {
	wh.metrics = m
}

/* ---------- HTTP handler ---------- */

func (wh *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	/* rate-limit check */
	if !wh.limiter.Allow() {
		wh.fail(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	/* everything else (wrapped by circuit-breaker) */
	update, err := wh.breaker.Execute(func() (Update, error) {
		/* domain + secret + method validation */
		if wh.allowedDomain != "" && r.Host != wh.allowedDomain {
			return nil, ErrForbidden
		}
		if wh.webhookSecret != "" &&
			subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretTokenHeader)), []byte(wh.webhookSecret.Value())) != 1 {
			return nil, ErrUnauthorized
		}
		if r.Method != http.MethodPost {
			return nil, ErrMethodNotAllowed
		}

		/* pooled buffer */
		bufPtr := wh.bufferPool.Get().(*[]byte)
		buffer := *bufPtr
		defer wh.bufferPool.Put(bufPtr)

		r.Body = http.MaxBytesReader(w, r.Body, wh.maxBodySize)
		defer r.Body.Close()
		n, err := io.ReadFull(r.Body, buffer)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, &WebhookError{Code: http.StatusRequestEntityTooLarge, Message: "request body too large", Err: err}
			}
			return nil, &WebhookError{Code: http.StatusInternalServerError, Message: "failed to read request body", Err: err}
		}
		if n == len(buffer) {
			if _, err := r.Body.Read(make([]byte, 1)); err != nil && !errors.Is(err, io.EOF) {
				return nil, &WebhookError{Code: http.StatusRequestEntityTooLarge, Message: "request body too large", Err: err}
			}
		}

		body := buffer[:n]
		if !json.Valid(body) {
			return nil, ErrInvalidJSON
		}

		upd, err := DecodeUpdate(append(json.RawMessage(nil), body...))
		if err != nil {
			// Undecodable updates are acknowledged and dropped.
			var decErr *DecodeError
			errors.As(err, &decErr)
			wh.metrics.DecodeFailed(r.Context(), decErr.Kind)
			wh.logger.Warn("skipping undecodable update",
				"update_id", decErr.UpdateID,
				"kind", decErr.Kind,
				"error", err,
			)
			return nil, nil
		}
		return upd, nil
	})

	if err != nil {
		var whErr *WebhookError
		if errors.As(err, &whErr) {
			wh.fail(w, whErr.Message, whErr.Code)
		} else {
			wh.fail(w, err.Error(), http.StatusServiceUnavailable)
		}
		return
	}

	if update != nil {
		wh.metrics.UpdateReceived(r.Context(), update.Kind())
		wh.logger.Debug("update received",
			"update_id", update.UpdateID(),
			"kind", update.Kind(),
		)
		// Handlers outlive the request.
		wh.dispatcher.Dispatch(context.WithoutCancel(r.Context()), update)
	}
	w.WriteHeader(http.StatusOK)
}

func (wh *WebhookHandler) fail(w http.ResponseWriter, msg string, code int) {
	wh.logger.Error(msg, "status", code)
	http.Error(w, msg, code)
}
