package telegrambot

import (
	"errors"
	"fmt"
	"time"
)

// WebhookError represents an error with an associated HTTP status code.
type WebhookError struct {
	Code    int
	Message string
	Err     error
}

func (e *WebhookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *WebhookError) Unwrap() error {
	return e.Err
}

// Sentinel errors for webhook handler.
var (
	ErrForbidden        = &WebhookError{Code: 403, Message: "forbidden"}
	ErrUnauthorized     = &WebhookError{Code: 401, Message: "unauthorized"}
	ErrMethodNotAllowed = &WebhookError{Code: 405, Message: "method not allowed"}
	ErrBodyReadFailed   = &WebhookError{Code: 500, Message: "failed to read request body"}
	ErrInvalidJSON      = &WebhookError{Code: 400, Message: "invalid JSON payload"}
)

// Sentinel errors for configuration.
var (
	ErrBotTokenRequired = errors.New("bot token is required")
	ErrInvalidBotToken  = errors.New("bot token has an invalid format")
)

// Sentinel errors for the polling engine.
var (
	ErrPollingAlreadyRunning = errors.New("poller is already running")
	ErrRouterFrozen          = errors.New("router is frozen, handlers must be registered before start")
)

// Sentinel errors wrapped by DecodeError.
var (
	ErrMissingUpdateID  = errors.New("update_id is missing or not an integer")
	ErrNoPayload        = errors.New("update carries no payload field")
	ErrMultiplePayloads = errors.New("update carries more than one payload field")
	ErrUnknownKind      = errors.New("update carries an unknown payload field")
)

// NetworkError is returned when the request never produced a response body:
// connection, TLS or timeout failures, an open circuit breaker, or a
// cancelled rate-limiter wait.
type NetworkError struct {
	Method string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("telegram %s: network error: %v", e.Method, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// OutOfServiceError is returned when the Bot API answered with something that
// is not a JSON object, which happens while it is down for maintenance.
type OutOfServiceError struct {
	Method   string
	Response []byte
}

func (e *OutOfServiceError) Error() string {
	return fmt.Sprintf("telegram %s: bot API is out of service", e.Method)
}

// ParseError is returned when the response could not be decoded into the
// expected shape. It usually means the local types lag behind the Bot API.
type ParseError struct {
	Method   string
	Response []byte
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("telegram %s: failed to parse response: %v", e.Method, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// RequestError represents an error response from the Telegram Bot API.
type RequestError struct {
	Method      string
	Code        int
	Description string

	// MigrateToChatID is set when the group was upgraded to a supergroup.
	MigrateToChatID *int64
	// RetryAfter is set when flood control was exceeded, in seconds.
	RetryAfter *int
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("telegram %s: API error [%d]: %s", e.Method, e.Code, e.Description)
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(" (retry after %ds)", *e.RetryAfter)
	}
	if e.MigrateToChatID != nil {
		msg += fmt.Sprintf(" (migrated to chat %d)", *e.MigrateToChatID)
	}
	return msg
}

// RetryAfter reports the flood-control delay carried by err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.RetryAfter != nil {
		return time.Duration(*reqErr.RetryAfter) * time.Second, true
	}
	return 0, false
}

// ValidationError is returned when a request fails local validation and was
// never sent.
type ValidationError struct {
	Method string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("telegram %s: invalid request: %v", e.Method, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DecodeError reports one inbound update that could not be mapped to an
// Update variant. It is always recoverable: the update is skipped.
type DecodeError struct {
	UpdateID int64
	HasID    bool // UpdateID was parsed from the payload
	Kind     string
	Raw      []byte
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("decode update %d (%s): %v", e.UpdateID, e.Kind, e.Err)
	}
	return fmt.Sprintf("decode update %d: %v", e.UpdateID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Setup steps reported by SetupError.
const (
	StepDeleteWebhook = "deleteWebhook"
	StepSetMyCommands = "setMyCommands"
)

// SetupError is returned by the poller when one of its one-time setup calls
// fails. It is the only fatal poller error.
type SetupError struct {
	Step    string
	Timeout bool
	Err     error
}

func (e *SetupError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("polling setup: %s timed out: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("polling setup: %s failed: %v", e.Step, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// PollingError is passed to the poller's error handler for every failed tick.
type PollingError struct {
	Offset  int64
	Timeout bool
	Err     error
}

func (e *PollingError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("getUpdates timed out at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("getUpdates failed at offset %d: %v", e.Offset, e.Err)
}

func (e *PollingError) Unwrap() error {
	return e.Err
}
