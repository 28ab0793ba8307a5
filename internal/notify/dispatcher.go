package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/folio/backend/internal/events"
	"github.com/folio/backend/internal/logging"
	"github.com/folio/backend/internal/metrics"
	"github.com/folio/backend/internal/model"
)

const (
	kindConfirmation = "confirmation"
	kindAlert        = "alert"
	kindEvent        = "event"
)

// DispatcherConfig controls queueing and delivery of notifications.
type DispatcherConfig struct {
	// OwnerAddress receives alerts. Empty disables alerts.
	OwnerAddress string
	Workers      int
	QueueSize    int
	SendTimeout  time.Duration
	// MaxAttempts bounds delivery attempts per email, including the first.
	MaxAttempts int
	// RetryBackoff is the delay before the second attempt; it doubles after that.
	RetryBackoff time.Duration
	Publisher    events.Publisher
	Metrics      *metrics.Metrics
}

func (c *DispatcherConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
}

// Dispatcher sends the confirmation and alert for each stored contact on a
// bounded worker pool and publishes a contact.submitted event. Failures are
// logged and counted, never returned to the submitter.
type Dispatcher struct {
	mailer    Mailer
	renderer  *Renderer
	publisher events.Publisher
	metrics   *metrics.Metrics
	cfg       DispatcherConfig
	enabled   bool

	jobs   chan *model.Contact
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewDispatcher wires a dispatcher. Call Start before Notify.
func NewDispatcher(mailer Mailer, renderer *Renderer, cfg DispatcherConfig) *Dispatcher {
	cfg.applyDefaults()
	if mailer == nil {
		mailer = NoopMailer{}
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NewNoopPublisher(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		mailer:    mailer,
		renderer:  renderer,
		publisher: publisher,
		metrics:   cfg.Metrics,
		cfg:       cfg,
		enabled:   mailer.Configured() && renderer != nil,
		jobs:      make(chan *model.Contact, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
	if !d.enabled {
		slog.Warn("mail delivery disabled: mailer not configured")
	} else if cfg.OwnerAddress == "" {
		slog.Warn("owner alerts disabled: no owner address configured")
	}
	return d
}

// Enabled reports whether emails are sent at all.
func (d *Dispatcher) Enabled() bool { return d.enabled }

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	slog.Info("notification dispatcher started",
		"workers", d.cfg.Workers,
		"queue_size", d.cfg.QueueSize,
		"mail_enabled", d.enabled,
	)
}

// Notify queues c without blocking. A full or closed queue drops the job.
func (d *Dispatcher) Notify(c *model.Contact) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		slog.Error("notification dropped: dispatcher closed", "contact_id", c.ID)
		d.metrics.IncNotificationDropped()
		return
	}
	select {
	case d.jobs <- c:
	default:
		slog.Error("notification dropped: queue full", "contact_id", c.ID, "queue_size", d.cfg.QueueSize)
		d.metrics.IncNotificationDropped()
	}
}

// Close stops accepting jobs and waits for queued ones to finish. If ctx
// expires first, in-flight sends are cancelled and ctx.Err is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	started := d.started
	d.mu.Unlock()

	if !started {
		d.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		slog.Info("notification dispatcher drained")
		return nil
	case <-ctx.Done():
		d.cancel()
		slog.Warn("notification dispatcher close timed out", "pending", len(d.jobs))
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for c := range d.jobs {
		d.process(d.ctx, c)
	}
}

// process runs the deliveries for one contact. Each branch reports its own
// failure so one never prevents the others.
func (d *Dispatcher) process(ctx context.Context, c *model.Contact) {
	var g errgroup.Group
	if d.enabled {
		g.Go(func() error {
			e, err := d.renderer.Confirmation(c)
			d.deliver(ctx, c.ID, kindConfirmation, e, err)
			return nil
		})
		if d.cfg.OwnerAddress != "" {
			g.Go(func() error {
				e, err := d.renderer.Alert(c, d.cfg.OwnerAddress)
				d.deliver(ctx, c.ID, kindAlert, e, err)
				return nil
			})
		}
	}
	g.Go(func() error {
		d.publish(ctx, c)
		return nil
	})
	_ = g.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, contactID, kind string, e Email, renderErr error) {
	if renderErr != nil {
		slog.Error("notification render failed", "contact_id", contactID, "kind", kind, "error", renderErr)
		d.metrics.IncNotification(kind, "failed")
		return
	}

	start := time.Now()
	var err error
	attempts := 0
	for attempts < d.cfg.MaxAttempts {
		if attempts > 0 {
			if werr := wait(ctx, d.cfg.RetryBackoff<<(attempts-1)); werr != nil {
				err = errors.Join(err, werr)
				break
			}
		}
		attempts++

		sctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		err = d.mailer.Send(sctx, e)
		cancel()
		if err == nil || isBreakerOpen(err) {
			break
		}
		slog.Warn("notification attempt failed",
			"contact_id", contactID,
			"kind", kind,
			"attempt", attempts,
			"error", err,
		)
	}

	duration := time.Since(start)
	switch {
	case err == nil:
		d.metrics.IncNotification(kind, "sent")
		slog.Info("notification sent",
			"contact_id", contactID,
			"kind", kind,
			"to", logging.RedactEmail(e.To),
			"attempts", attempts,
			"duration_ms", duration.Milliseconds(),
		)
	case isBreakerOpen(err):
		d.metrics.IncNotification(kind, "breaker_open")
		slog.Error("notification skipped: mailer circuit open",
			"contact_id", contactID,
			"kind", kind,
			"attempts", attempts,
		)
	default:
		d.metrics.IncNotification(kind, "failed")
		slog.Error("notification failed",
			"contact_id", contactID,
			"kind", kind,
			"attempts", attempts,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
	}
}

func (d *Dispatcher) publish(ctx context.Context, c *model.Contact) {
	pctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	if err := events.PublishContactSubmitted(pctx, d.publisher, c); err != nil {
		d.metrics.IncNotification(kindEvent, "failed")
		slog.Error("contact event publish failed", "contact_id", c.ID, "error", err)
		return
	}
	d.metrics.IncNotification(kindEvent, "sent")
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
