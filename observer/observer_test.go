package observer

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/prilive-com/telegrambot/telegrambot"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

type mockTransport struct {
	body []byte
	err  error
	got  telegrambot.Request
}

func (m *mockTransport) Send(_ context.Context, req telegrambot.Request) ([]byte, error) {
	m.got = req
	return m.body, m.err
}

type mockDownloader struct {
	mockTransport
	data []byte
}

func (m *mockDownloader) Download(_ context.Context, _ telegrambot.SecretToken, _ string) ([]byte, error) {
	return m.data, m.err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type testEnv struct {
	inst   *Instruments
	reader *sdkmetric.ManualReader
	spans  *tracetest.SpanRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	inst, err := NewInstruments(tp, mp)
	if err != nil {
		t.Fatalf("NewInstruments: %v", err)
	}
	return &testEnv{inst: inst, reader: reader, spans: spans}
}

// counter sums the data points of an int64 counter whose attributes include
// every pair in attrs.
func (e *testEnv) counter(t *testing.T, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := e.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is %T, want Sum[int64]", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if hasAttrs(dp.Attributes, attrs) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

// histogramCount returns the number of recordings of a float64 histogram.
func (e *testEnv) histogramCount(t *testing.T, name string) uint64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := e.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var count uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if h, ok := m.Data.(metricdata.Histogram[float64]); ok && m.Name == name {
				for _, dp := range h.DataPoints {
					count += dp.Count
				}
			}
		}
	}
	return count
}

func hasAttrs(set attribute.Set, want []attribute.KeyValue) bool {
	for _, kv := range want {
		v, ok := set.Value(kv.Key)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}

func spanAttr(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNewInstrumentsWithGlobalProviders(t *testing.T) {
	inst, err := NewInstruments(otel.GetTracerProvider(), otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewInstruments: %v", err)
	}
	if inst.Tracer == nil || inst.APIRequests == nil || inst.UpdatesUndecoded == nil {
		t.Fatal("instruments not initialised")
	}
}

func TestObservedTransportStatus(t *testing.T) {
	tests := []struct {
		name      string
		body      []byte
		err       error
		status    string
		errorCode int64
		spanError bool
	}{
		{name: "ok", body: []byte(`{"ok":true,"result":true}`), status: StatusOK},
		{name: "api error", body: []byte(`{"ok":false,"error_code":400,"description":"Bad Request"}`), status: StatusAPIError, errorCode: 400, spanError: true},
		{name: "html", body: []byte(`<html>502 Bad Gateway</html>`), status: StatusOutOfService, spanError: true},
		{name: "missing ok", body: []byte(`{"result":1}`), status: StatusOutOfService, spanError: true},
		{name: "network", err: errors.New("connection refused"), status: StatusNetworkError, spanError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			inner := &mockTransport{body: tt.body, err: tt.err}
			tr := WrapTransport(inner, env.inst)

			body, err := tr.Send(context.Background(), telegrambot.Request{
				Token:  "123:secret",
				Method: "sendMessage",
				Body:   []byte(`{"chat_id":1,"text":"hi"}`),
			})
			if !errors.Is(err, tt.err) {
				t.Fatalf("Send error = %v, want %v", err, tt.err)
			}
			if string(body) != string(tt.body) {
				t.Errorf("body = %q, want %q", body, tt.body)
			}
			if inner.got.Method != "sendMessage" {
				t.Errorf("inner method = %q", inner.got.Method)
			}

			got := env.counter(t, "telegram.api.requests",
				AttrMethod.String("sendMessage"), AttrStatus.String(tt.status))
			if got != 1 {
				t.Errorf("telegram.api.requests{status=%s} = %d, want 1", tt.status, got)
			}
			if n := env.histogramCount(t, "telegram.api.duration"); n != 1 {
				t.Errorf("duration recordings = %d, want 1", n)
			}

			ended := env.spans.Ended()
			if len(ended) != 1 {
				t.Fatalf("spans = %d, want 1", len(ended))
			}
			span := ended[0]
			if span.Name() != "telegram.call" {
				t.Errorf("span name = %q", span.Name())
			}
			if v, _ := spanAttr(span.Attributes(), AttrStatus); v.AsString() != tt.status {
				t.Errorf("span status attr = %q, want %q", v.AsString(), tt.status)
			}
			v, ok := spanAttr(span.Attributes(), AttrErrorCode)
			if tt.errorCode != 0 && (!ok || v.AsInt64() != tt.errorCode) {
				t.Errorf("error_code attr = %v, want %d", v.AsInt64(), tt.errorCode)
			}
			if tt.errorCode == 0 && ok {
				t.Errorf("unexpected error_code attr %v", v.AsInt64())
			}
			if (span.Status().Code == codes.Error) != tt.spanError {
				t.Errorf("span status = %v, want error=%v", span.Status().Code, tt.spanError)
			}
		})
	}
}

func TestObservedTransportDoesNotRecordToken(t *testing.T) {
	env := newTestEnv(t)
	tr := WrapTransport(&mockTransport{body: []byte(`{"ok":true,"result":true}`)}, env.inst)

	_, _ = tr.Send(context.Background(), telegrambot.Request{
		Token:    "123:very-secret",
		Method:   "sendPhoto",
		Body:     []byte("--b\r\n"),
		Boundary: "b",
	})

	span := env.spans.Ended()[0]
	for _, kv := range span.Attributes() {
		if kv.Value.Emit() == "123:very-secret" {
			t.Fatalf("token recorded in attribute %s", kv.Key)
		}
	}
	if v, _ := spanAttr(span.Attributes(), AttrMultipart); !v.AsBool() {
		t.Error("multipart attribute not set")
	}
}

func TestObservedTransportDownload(t *testing.T) {
	env := newTestEnv(t)

	tr := WrapTransport(&mockDownloader{data: []byte("file")}, env.inst)
	data, err := tr.Download(context.Background(), "123:x", "photos/file_1.jpg")
	if err != nil || string(data) != "file" {
		t.Fatalf("Download = %q, %v", data, err)
	}
	ended := env.spans.Ended()
	if len(ended) != 1 || ended[0].Name() != "telegram.download" {
		t.Fatalf("spans = %v", ended)
	}

	plain := WrapTransport(&mockTransport{}, env.inst)
	if _, err := plain.Download(context.Background(), "123:x", "a"); !errors.Is(err, errNoDownload) {
		t.Errorf("Download on plain transport = %v, want errNoDownload", err)
	}
}

func TestPollMetrics(t *testing.T) {
	env := newTestEnv(t)
	m := NewPollMetrics(env.inst)
	ctx := context.Background()

	m.PollSucceeded(ctx, 2, 150*time.Millisecond)
	m.PollSucceeded(ctx, 0, time.Second)
	m.PollFailed(ctx, true)
	m.PollFailed(ctx, false)
	m.UpdateReceived(ctx, "message")
	m.UpdateReceived(ctx, "message")
	m.UpdateReceived(ctx, "callback_query")
	m.DecodeFailed(ctx, "")
	m.DecodeFailed(ctx, "message")

	checks := []struct {
		name  string
		attrs []attribute.KeyValue
		want  int64
	}{
		{"telegram.poll.requests", []attribute.KeyValue{AttrStatus.String(StatusOK)}, 2},
		{"telegram.poll.requests", []attribute.KeyValue{AttrStatus.String("error")}, 2},
		{"telegram.poll.requests", []attribute.KeyValue{AttrPollTimeout.Bool(true)}, 1},
		{"telegram.updates.received", []attribute.KeyValue{AttrUpdateKind.String("message")}, 2},
		{"telegram.updates.received", []attribute.KeyValue{AttrUpdateKind.String("callback_query")}, 1},
		{"telegram.updates.undecodable", []attribute.KeyValue{AttrUpdateKind.String("unknown")}, 1},
		{"telegram.updates.undecodable", nil, 2},
	}
	for _, c := range checks {
		if got := env.counter(t, c.name, c.attrs...); got != c.want {
			t.Errorf("%s%v = %d, want %d", c.name, c.attrs, got, c.want)
		}
	}
	if n := env.histogramCount(t, "telegram.poll.duration"); n != 2 {
		t.Errorf("poll duration recordings = %d, want 2", n)
	}
}
