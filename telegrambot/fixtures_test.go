package telegrambot

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
)

// testToken has a valid shape; nothing is ever sent to Telegram.
const testToken = "123456789:ABCdefGHIjklMNOpqrSTUvwxYZ0123456789"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// fakeCall is one request seen by fakeTransport.
type fakeCall struct {
	Method   string
	Body     []byte
	Boundary string
}

// fakeTransport records calls and answers them with respond.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []fakeCall
	respond func(ctx context.Context, call fakeCall) ([]byte, error)
}

func (f *fakeTransport) Send(ctx context.Context, req Request) ([]byte, error) {
	call := fakeCall{Method: req.Method, Body: req.Body, Boundary: req.Boundary}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.respond == nil {
		return okResult(true), nil
	}
	return f.respond(ctx, call)
}

// Calls returns the recorded calls to method, or all calls for "".
func (f *fakeTransport) Calls(method string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func okResult(v any) []byte {
	b, _ := json.Marshal(map[string]any{"ok": true, "result": v})
	return b
}

func apiError(code int, description string, params map[string]any) []byte {
	env := map[string]any{"ok": false, "error_code": code, "description": description}
	if params != nil {
		env["parameters"] = params
	}
	b, _ := json.Marshal(env)
	return b
}

func newTestClient(t *testing.T, tr Transport, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(newTestLogger()), WithTransport(tr)}, opts...)
	c, err := New(testToken, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func textMessage(updateID, messageID int64, text string) map[string]any {
	return map[string]any{
		"update_id": updateID,
		"message": map[string]any{
			"message_id": messageID,
			"text":       text,
			"chat":       map[string]any{"id": 123, "type": "private"},
			"from":       map[string]any{"id": 456, "first_name": "Test"},
			"date":       1234567890,
		},
	}
}

// recordingDispatcher collects dispatched updates.
type recordingDispatcher struct {
	ch chan Update
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{ch: make(chan Update, 64)}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, u Update) {
	d.ch <- u
}
