package observer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/prilive-com/telegrambot/telegrambot"
)

var _ telegrambot.PollMetrics = (*PollMetrics)(nil)

// PollMetrics implements telegrambot.PollMetrics. Pass it to
// telegrambot.WithPollMetrics or WebhookHandler.SetMetrics.
type PollMetrics struct {
	inst *Instruments
}

// NewPollMetrics returns a poll metrics sink backed by inst.
func NewPollMetrics(inst *Instruments) *PollMetrics {
	return &PollMetrics{inst: inst}
}

func (m *PollMetrics) PollSucceeded(ctx context.Context, updates int, elapsed time.Duration) {
	m.inst.PollRequests.Add(ctx, 1, metric.WithAttributes(AttrStatus.String(StatusOK)))
	m.inst.PollDuration.Record(ctx, float64(elapsed.Milliseconds()),
		metric.WithAttributes(AttrPollUpdates.Bool(updates > 0)))
}

func (m *PollMetrics) PollFailed(ctx context.Context, timeout bool) {
	m.inst.PollRequests.Add(ctx, 1, metric.WithAttributes(
		AttrStatus.String("error"),
		AttrPollTimeout.Bool(timeout),
	))
}

func (m *PollMetrics) UpdateReceived(ctx context.Context, kind string) {
	m.inst.UpdatesReceived.Add(ctx, 1, metric.WithAttributes(AttrUpdateKind.String(kind)))
}

func (m *PollMetrics) DecodeFailed(ctx context.Context, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.inst.UpdatesUndecoded.Add(ctx, 1, metric.WithAttributes(AttrUpdateKind.String(kind)))
}
