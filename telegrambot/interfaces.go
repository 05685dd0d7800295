package telegrambot

import (
	"context"
	"net/http"
)

// Receiver defines the interface for receiving Telegram updates.
// This interface allows for easy mocking in tests.
type Receiver interface {
	// Start begins receiving updates from Telegram.
	Start(ctx context.Context) error
	// Stop gracefully stops receiving updates.
	Stop()
	// IsHealthy returns health status for Kubernetes probes.
	IsHealthy() bool
}

// Ensure Poller implements Receiver at compile time.
var _ Receiver = (*Poller)(nil)

// HTTPClient is an interface for HTTP client operations.
// This allows for mocking HTTP calls in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Ensure http.Client implements HTTPClient.
var _ HTTPClient = (*http.Client)(nil)

// WebhookProcessor defines the interface for webhook HTTP handlers.
type WebhookProcessor interface {
	http.Handler
}

// Ensure WebhookHandler implements WebhookProcessor.
var _ WebhookProcessor = (*WebhookHandler)(nil)

// Dispatcher receives every decoded update exactly once, in arrival order.
// Implementations must not block for long and must not panic back into the
// caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, update Update)
}

// Ensure Router implements Dispatcher.
var _ Dispatcher = (*Router)(nil)

// Handler processes one update.
type Handler interface {
	HandleUpdate(ctx context.Context, update Update) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, update Update) error

// HandleUpdate calls f(ctx, update).
func (f HandlerFunc) HandleUpdate(ctx context.Context, update Update) error {
	return f(ctx, update)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, update Update)

// Dispatch calls f(ctx, update).
func (f DispatcherFunc) Dispatch(ctx context.Context, update Update) {
	f(ctx, update)
}
