// Package notify delivers registration events to recipients' inboxes on a
// best-effort basis.
package notify

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/advisor-match/internal/logger"
	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

// Appender persists a notification. Appending the same event id twice must
// not create two notifications.
type Appender interface {
	Append(ctx context.Context, ev *model.NotificationEvent) error
}

// Options bounds delivery work.
type Options struct {
	AttemptTimeout time.Duration
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	MaxInFlight    int
}

// DefaultOptions returns the delivery settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		AttemptTimeout: 5 * time.Second,
		MaxAttempts:    5,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       30 * time.Second,
		MaxInFlight:    64,
	}
}

// Dispatcher appends events and retries failures in the background. A
// failed delivery is logged and never reported to the caller.
type Dispatcher struct {
	store Appender
	log   *logger.Logger
	opts  Options

	slots   chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	closing chan struct{}
}

// New builds a Dispatcher. Zero option fields take their defaults.
func New(store Appender, log *logger.Logger, opts Options) *Dispatcher {
	def := DefaultOptions()
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = def.AttemptTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = def.BaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = def.MaxDelay
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = def.MaxInFlight
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		store:   store,
		log:     log.With("component", "notify"),
		opts:    opts,
		slots:   make(chan struct{}, opts.MaxInFlight),
		closing: make(chan struct{}),
	}
}

// Dispatch tries one append right away. On failure the event is handed to a
// background retry unless the retry pool is full or the dispatcher is closed.
// The caller's cancellation does not abort the append.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.NotificationEvent) {
	base := context.WithoutCancel(ctx)
	err := d.attempt(base, &ev)
	if err == nil {
		return
	}
	d.log.Warn("notification append failed, scheduling retry",
		"event_id", ev.ID, "recipient_id", ev.RecipientID, "kind", ev.Kind, "error", err)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.log.Error("dispatcher closed, dropping notification", "event_id", ev.ID)
		return
	}
	select {
	case d.slots <- struct{}{}:
	default:
		d.log.Error("notification retry pool full, dropping notification", "event_id", ev.ID)
		return
	}
	d.wg.Add(1)
	go d.retry(base, ev)
}

func (d *Dispatcher) attempt(ctx context.Context, ev *model.NotificationEvent) error {
	ctx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
	defer cancel()
	return d.store.Append(ctx, ev)
}

func (d *Dispatcher) retry(ctx context.Context, ev model.NotificationEvent) {
	defer func() {
		<-d.slots
		d.wg.Done()
	}()

	delay := d.opts.BaseDelay
	for attempt := 2; attempt <= d.opts.MaxAttempts; attempt++ {
		if !d.wait(jitter(delay)) {
			// shutting down: one last try, then give up
			attempt = d.opts.MaxAttempts
		}
		err := d.attempt(ctx, &ev)
		if err == nil {
			d.log.Info("notification delivered after retry", "event_id", ev.ID, "attempt", attempt)
			return
		}
		d.log.Warn("notification retry failed", "event_id", ev.ID, "attempt", attempt, "error", err)
		delay *= 2
		if delay > d.opts.MaxDelay {
			delay = d.opts.MaxDelay
		}
	}
	d.log.Error("notification dropped after retries",
		"event_id", ev.ID, "recipient_id", ev.RecipientID, "attempts", d.opts.MaxAttempts)
}

// wait sleeps for delay and reports false if the dispatcher started closing.
func (d *Dispatcher) wait(delay time.Duration) bool {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.closing:
		return false
	}
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
}

// Close stops accepting retries, cuts pending backoffs short and waits for
// in-flight retries until ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.closing)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
