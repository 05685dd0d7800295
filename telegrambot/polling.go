package telegrambot

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// PollMetrics receives poll loop events. The observer package implements it
// with OpenTelemetry instruments.
type PollMetrics interface {
	PollSucceeded(ctx context.Context, updates int, elapsed time.Duration)
	PollFailed(ctx context.Context, timeout bool)
	UpdateReceived(ctx context.Context, kind string)
	DecodeFailed(ctx context.Context, kind string)
}

type noopMetrics struct{}

func (noopMetrics) PollSucceeded(context.Context, int, time.Duration) {}
func (noopMetrics) PollFailed(context.Context, bool)                  {}
func (noopMetrics) UpdateReceived(context.Context, string)            {}
func (noopMetrics) DecodeFailed(context.Context, string)              {}

// Poller receives updates with getUpdates and hands them to a Dispatcher.
//
// On start it deletes any webhook and publishes the dispatcher's commands
// with setMyCommands; a failure there is a *SetupError and polling never
// begins. After that the loop only stops on context cancellation or Stop:
// failed polls are reported to the error handler. Consecutive getUpdates
// calls are at least the poll interval apart; a flood-control delay sent by
// Telegram replaces the interval for that tick.
//
// A stopped Poller can be started again; it resumes from its last offset.
type Poller struct {
	client     *Client
	dispatcher Dispatcher
	logger     *slog.Logger

	// Polling configuration
	timeout        int
	limit          int
	interval       time.Duration
	requestTimeout time.Duration
	lastN          int
	allowedUpdates []string
	maxErrors      int // Unhealthy after this many consecutive errors (0 = never)

	commands     []BotCommand
	errorHandler func(error)
	metrics      PollMetrics
	after        func(time.Duration) <-chan time.Time

	// State management
	running           atomic.Bool
	offset            atomic.Int64
	hasOffset         bool          // Owned by the loop goroutine
	consecutiveErrors atomic.Int32  // Exposed for health checks
	mu                sync.Mutex    // Guards stopCh
	stopCh            chan struct{} // Replaced on every start
	wg                sync.WaitGroup
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithErrorHandler receives a *PollingError for every failed poll. The
// default logs it.
func WithErrorHandler(fn func(error)) PollerOption {
	return func(p *Poller) {
		p.errorHandler = fn
	}
}

// WithPollMetrics installs a metrics sink.
func WithPollMetrics(m PollMetrics) PollerOption {
	return func(p *Poller) {
		p.metrics = m
	}
}

// WithCommands sets the command menu published on setup. By default it is
// taken from the dispatcher when it has a Commands method, like Router.
func WithCommands(commands []BotCommand) PollerOption {
	return func(p *Poller) {
		p.commands = commands
	}
}

// NewPoller creates a poller using the client's polling configuration.
func (c *Client) NewPoller(d Dispatcher, opts ...PollerOption) *Poller {
	cfg := c.config.Polling
	p := &Poller{
		client:         c,
		dispatcher:     d,
		logger:         c.logger,
		timeout:        cfg.Timeout,
		limit:          cfg.Limit,
		interval:       cfg.Interval,
		requestTimeout: cfg.EffectiveRequestTimeout(),
		lastN:          cfg.LastNUpdates,
		allowedUpdates: cfg.AllowedUpdates,
		maxErrors:      cfg.MaxErrors,
		metrics:        noopMetrics{},
		after:          time.After,
	}
	if src, ok := d.(interface{ Commands() []BotCommand }); ok {
		p.commands = src.Commands()
	}
	p.errorHandler = func(err error) {
		p.logger.Error("failed to fetch updates",
			"error", err,
			"consecutive_errors", p.consecutiveErrors.Load(),
		)
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.lastN > 0 {
		p.offset.Store(-int64(p.lastN))
		p.hasOffset = true
	}
	return p
}

// Run sets up and polls until ctx is cancelled or Stop is called. It returns
// a *SetupError, ErrPollingAlreadyRunning, or the cancellation cause; never
// nil.
func (p *Poller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrPollingAlreadyRunning
	}
	stop := p.begin()
	defer p.wg.Done()
	defer p.running.Store(false)

	ctx, cancel := withStop(ctx, stop)
	defer cancel()

	if err := p.setup(ctx); err != nil {
		return err
	}
	p.pollLoop(ctx)

	if err := ctx.Err(); err != nil {
		return err
	}
	return context.Canceled
}

// Start runs setup synchronously and polls in a background goroutine.
// Returns ErrPollingAlreadyRunning if the poller is already running.
func (p *Poller) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrPollingAlreadyRunning
	}
	stop := p.begin()

	ctx, cancel := withStop(ctx, stop)
	if err := p.setup(ctx); err != nil {
		cancel()
		p.running.Store(false)
		p.wg.Done()
		return err
	}

	go func() {
		defer p.wg.Done()
		defer p.running.Store(false)
		defer cancel()
		p.pollLoop(ctx)
	}()
	return nil
}

// begin registers a run with the wait group and hands it a fresh stop
// channel.
func (p *Poller) begin() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wg.Add(1)
	p.stopCh = make(chan struct{})
	return p.stopCh
}

// withStop derives a context that is also cancelled by Stop, so an
// in-flight long poll returns right away.
func withStop(parent context.Context, stop <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Stop gracefully stops the poller.
// It blocks until the polling goroutine has finished.
// Safe to call multiple times, and before the poller was ever started.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopCh != nil {
		select {
		case <-p.stopCh:
		default:
			close(p.stopCh)
		}
	}
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Info("long polling stopped")
}

func (p *Poller) setup(ctx context.Context) error {
	if f, ok := p.dispatcher.(interface{ Freeze() }); ok {
		f.Freeze()
	}

	p.logger.Info("deleting webhook before starting long polling")
	if err := p.setupStep(ctx, StepDeleteWebhook, func(ctx context.Context) error {
		return p.client.DeleteWebhook(ctx, false)
	}); err != nil {
		return err
	}

	if err := p.setupStep(ctx, StepSetMyCommands, func(ctx context.Context) error {
		return p.client.SetMyCommands(ctx, &SetMyCommandsRequest{Commands: p.commands})
	}); err != nil {
		return err
	}

	p.logger.Info("long polling started",
		"timeout", p.timeout,
		"limit", p.limit,
		"commands", len(p.commands),
	)
	return nil
}

func (p *Poller) setupStep(ctx context.Context, step string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	if err := fn(callCtx); err != nil {
		return &SetupError{Step: step, Timeout: timedOut(ctx, callCtx), Err: err}
	}
	return nil
}

// timedOut reports whether callCtx hit its own deadline while the parent
// was still live.
func timedOut(parent, callCtx context.Context) bool {
	return errors.Is(callCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil
}

// pollLoop is the main polling loop. Stop cancels ctx through withStop.
func (p *Poller) pollLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("polling stopped", "cause", context.Cause(ctx))
			return
		}

		// The interval runs while getUpdates is in flight.
		next := p.after(p.interval)
		if delay, ok := p.poll(ctx); ok {
			next = p.after(delay)
		}

		select {
		case <-ctx.Done():
		case <-next:
		}
	}
}

// poll runs one getUpdates call. It returns the flood-control delay and true
// when Telegram asked the bot to back off.
func (p *Poller) poll(ctx context.Context) (time.Duration, bool) {
	req := &GetUpdatesRequest{
		Limit:          p.limit,
		Timeout:        p.timeout,
		AllowedUpdates: p.allowedUpdates,
	}
	if p.hasOffset {
		req.Offset = p.offset.Load()
	}

	callCtx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	start := time.Now()
	raws, err := p.client.GetUpdates(callCtx, req)
	timeout := timedOut(ctx, callCtx)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return 0, false
		}
		errCount := p.consecutiveErrors.Add(1)
		p.metrics.PollFailed(ctx, timeout)

		// The back-off is decided before the handler sees the error.
		delay, retry := RetryAfter(err)
		if retry {
			p.logger.Warn("flood control exceeded, backing off",
				"retry_after", delay,
				"consecutive_errors", errCount,
			)
		}
		p.errorHandler(&PollingError{Offset: req.Offset, Timeout: timeout, Err: err})
		return delay, retry
	}

	p.consecutiveErrors.Store(0)
	p.metrics.PollSucceeded(ctx, len(raws), time.Since(start))
	p.process(ctx, raws)
	return 0, false
}

// process advances the offset past the whole batch, then dispatches every
// decodable update in order.
func (p *Poller) process(ctx context.Context, raws []json.RawMessage) {
	if len(raws) == 0 {
		return
	}

	updates := make([]Update, 0, len(raws))
	next := p.offset.Load()
	advance := func(id int64) {
		if !p.hasOffset || id+1 > next {
			next = id + 1
			p.hasOffset = true
		}
	}

	for _, raw := range raws {
		u, err := DecodeUpdate(raw)
		if err != nil {
			decErr := &DecodeError{Err: err}
			errors.As(err, &decErr)
			if decErr.HasID {
				advance(decErr.UpdateID)
			}
			p.metrics.DecodeFailed(ctx, decErr.Kind)
			p.logger.Warn("skipping undecodable update",
				"update_id", decErr.UpdateID,
				"kind", decErr.Kind,
				"error", err,
			)
			continue
		}
		advance(u.UpdateID())
		updates = append(updates, u)
	}

	// The offset moves before any handler runs.
	p.offset.Store(next)

	for _, u := range updates {
		p.metrics.UpdateReceived(ctx, u.Kind())
		p.logger.Debug("dispatching update",
			"update_id", u.UpdateID(),
			"kind", u.Kind(),
		)
		p.dispatcher.Dispatch(ctx, u)
	}
}

// Running returns true if the poller is currently running.
func (p *Poller) Running() bool {
	return p.running.Load()
}

// IsHealthy returns health status for K8s probes.
// Returns false if not running or too many consecutive errors.
func (p *Poller) IsHealthy() bool {
	if p.maxErrors == 0 {
		return p.running.Load()
	}
	return p.running.Load() && int(p.consecutiveErrors.Load()) < p.maxErrors
}

// ConsecutiveErrors returns the current consecutive error count.
func (p *Poller) ConsecutiveErrors() int32 {
	return p.consecutiveErrors.Load()
}

// Offset returns the next update offset, zero while none was set.
func (p *Poller) Offset() int64 {
	return p.offset.Load()
}
