package observer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/prilive-com/telegrambot/telegrambot"
)

// Compile-time interface checks.
var (
	_ telegrambot.Transport      = (*ObservedTransport)(nil)
	_ telegrambot.FileDownloader = (*ObservedTransport)(nil)
)

// errNoDownload is returned by Download when the wrapped transport cannot
// fetch files.
var errNoDownload = errors.New("observer: wrapped transport does not download files")

// ObservedTransport wraps a telegrambot.Transport with a span and metrics per
// Bot API call. Install it with telegrambot.WithTransport.
type ObservedTransport struct {
	inner telegrambot.Transport
	inst  *Instruments
}

// WrapTransport returns an ObservedTransport that delegates to inner.
func WrapTransport(inner telegrambot.Transport, inst *Instruments) *ObservedTransport {
	return &ObservedTransport{inner: inner, inst: inst}
}

// Send delegates to the wrapped transport. The status attribute comes from
// the response envelope, so API errors are counted even though Send itself
// succeeds for them.
func (t *ObservedTransport) Send(ctx context.Context, req telegrambot.Request) ([]byte, error) {
	multipart := req.Boundary != ""
	ctx, span := t.inst.Tracer.Start(ctx, "telegram.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrMethod.String(req.Method),
			AttrMultipart.Bool(multipart),
			AttrBodySize.Int(len(req.Body)),
		))
	defer span.End()

	start := time.Now()
	body, err := t.inner.Send(ctx, req)
	durationMs := float64(time.Since(start).Milliseconds())

	status, code := classify(body, err)
	span.SetAttributes(AttrStatus.String(status))
	if code != 0 {
		span.SetAttributes(AttrErrorCode.Int(code))
	}
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case status != StatusOK:
		span.SetStatus(codes.Error, status)
	}

	methodAttr := AttrMethod.String(req.Method)
	t.inst.APIRequests.Add(ctx, 1, metric.WithAttributes(methodAttr, AttrStatus.String(status)))
	t.inst.APIDuration.Record(ctx, durationMs, metric.WithAttributes(methodAttr))
	t.inst.APIPayload.Record(ctx, int64(len(req.Body)), metric.WithAttributes(methodAttr, AttrMultipart.Bool(multipart)))

	return body, err
}

// Download delegates to the wrapped transport when it implements
// telegrambot.FileDownloader.
func (t *ObservedTransport) Download(ctx context.Context, token telegrambot.SecretToken, filePath string) ([]byte, error) {
	d, ok := t.inner.(telegrambot.FileDownloader)
	if !ok {
		return nil, errNoDownload
	}

	ctx, span := t.inst.Tracer.Start(ctx, "telegram.download",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrFilePath.String(filePath)))
	defer span.End()

	data, err := d.Download(ctx, token, filePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("telegram.file.size", len(data)))
	return data, nil
}

// classify maps a transport result onto a call status and the Bot API error
// code, if any.
func classify(body []byte, err error) (string, int) {
	if err != nil {
		return StatusNetworkError, 0
	}
	var env struct {
		OK        *bool `json:"ok"`
		ErrorCode int   `json:"error_code"`
	}
	if json.Unmarshal(body, &env) != nil || env.OK == nil {
		return StatusOutOfService, 0
	}
	if !*env.OK {
		return StatusAPIError, env.ErrorCode
	}
	return StatusOK, 0
}
