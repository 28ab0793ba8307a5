package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/backend/internal/events"
	"github.com/folio/backend/internal/metrics"
	"github.com/folio/backend/internal/model"
)

type fakeMailer struct {
	mu         sync.Mutex
	sent       []Email
	calls      map[string]int
	sendFunc   func(ctx context.Context, e Email) error
	configured bool
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{configured: true, calls: map[string]int{}}
}

func (m *fakeMailer) Send(ctx context.Context, e Email) error {
	m.mu.Lock()
	m.calls[e.To]++
	m.mu.Unlock()
	if m.sendFunc != nil {
		if err := m.sendFunc(ctx, e); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.sent = append(m.sent, e)
	m.mu.Unlock()
	return nil
}

func (m *fakeMailer) Configured() bool { return m.configured }

func (m *fakeMailer) sentTo(addr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.sent {
		if e.To == addr {
			return true
		}
	}
	return false
}

func (m *fakeMailer) callsTo(addr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[addr]
}

type countingPublisher struct {
	n   atomic.Int32
	err error
}

func (p *countingPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.n.Add(1)
	return p.err
}

func (p *countingPublisher) Close() error { return nil }

var _ events.Publisher = (*countingPublisher)(nil)

func testContact() *model.Contact {
	return &model.Contact{
		ID:       "c-1",
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Subject:  "Collaboration opportunity",
		Message:  "I'd like to discuss a freelance project, it's urgent.",
		Priority: model.PriorityUrgent,
		Tags:     []string{"collaboration", "freelance", "urgent"},
		Source:   model.SourceWebsite,
	}
}

func newTestDispatcher(t *testing.T, m Mailer, cfg DispatcherConfig) (*Dispatcher, *metrics.Metrics) {
	t.Helper()
	r, err := NewRenderer("Folio")
	require.NoError(t, err)
	met := metrics.New(prometheus.NewRegistry())
	cfg.Metrics = met
	if cfg.OwnerAddress == "" {
		cfg.OwnerAddress = "owner@example.com"
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	return NewDispatcher(m, r, cfg), met
}

func drain(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

func TestDispatcher_SendsBothAndPublishes(t *testing.T) {
	m := newFakeMailer()
	pub := &countingPublisher{}
	d, met := newTestDispatcher(t, m, DispatcherConfig{Publisher: pub})
	d.Start()

	d.Notify(testContact())
	drain(t, d)

	assert.True(t, m.sentTo("ada@example.com"), "confirmation not sent")
	assert.True(t, m.sentTo("owner@example.com"), "alert not sent")
	assert.Equal(t, int32(1), pub.n.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Notifications.WithLabelValues(kindConfirmation, "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Notifications.WithLabelValues(kindAlert, "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Notifications.WithLabelValues(kindEvent, "sent")))
}

func TestDispatcher_FailuresAreIndependent(t *testing.T) {
	m := newFakeMailer()
	m.sendFunc = func(ctx context.Context, e Email) error {
		if e.To == "ada@example.com" {
			return errors.New("mailbox unavailable")
		}
		return nil
	}
	d, met := newTestDispatcher(t, m, DispatcherConfig{MaxAttempts: 2})
	d.Start()

	d.Notify(testContact())
	drain(t, d)

	assert.True(t, m.sentTo("owner@example.com"), "alert must be sent even when confirmation fails")
	assert.Equal(t, 2, m.callsTo("ada@example.com"))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Notifications.WithLabelValues(kindConfirmation, "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Notifications.WithLabelValues(kindAlert, "sent")))
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32
	m := newFakeMailer()
	m.sendFunc = func(ctx context.Context, e Email) error {
		if e.To == "owner@example.com" && attempts.Add(1) < 3 {
			return errors.New("throttled")
		}
		return nil
	}
	d, met := newTestDispatcher(t, m, DispatcherConfig{MaxAttempts: 3})
	d.Start()

	d.Notify(testContact())
	drain(t, d)

	assert.Equal(t, 3, m.callsTo("owner@example.com"))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Notifications.WithLabelValues(kindAlert, "sent")))
}

func TestDispatcher_SendTimeout(t *testing.T) {
	m := newFakeMailer()
	m.sendFunc = func(ctx context.Context, e Email) error {
		<-ctx.Done()
		return ctx.Err()
	}
	d, met := newTestDispatcher(t, m, DispatcherConfig{MaxAttempts: 1, SendTimeout: 10 * time.Millisecond})
	d.Start()

	d.Notify(testContact())
	drain(t, d)

	assert.Equal(t, 1.0, testutil.ToFloat64(met.Notifications.WithLabelValues(kindConfirmation, "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Notifications.WithLabelValues(kindAlert, "failed")))
}

func TestDispatcher_OpenBreakerFailsFast(t *testing.T) {
	inner := newFakeMailer()
	inner.sendFunc = func(ctx context.Context, e Email) error { return errors.New("smtp down") }
	bm := NewBreakerMailer(inner, BreakerSettings{FailureThreshold: 1, OpenTimeout: time.Hour})

	// Trip the breaker.
	require.Error(t, bm.Send(context.Background(), Email{To: "first@example.com"}))
	require.Equal(t, "open", bm.State())

	d, met := newTestDispatcher(t, bm, DispatcherConfig{MaxAttempts: 3})
	d.Start()
	d.Notify(testContact())
	drain(t, d)

	assert.Equal(t, 0, inner.callsTo("ada@example.com"))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Notifications.WithLabelValues(kindConfirmation, "breaker_open")))
}

func TestDispatcher_QueueFullDrops(t *testing.T) {
	m := newFakeMailer()
	d, met := newTestDispatcher(t, m, DispatcherConfig{QueueSize: 1})

	// Workers not started: the second job cannot be queued.
	d.Notify(testContact())
	d.Notify(testContact())

	assert.Equal(t, 1.0, testutil.ToFloat64(met.NotificationsDropped))
	drain(t, d)
}

func TestDispatcher_DisabledMailerStillPublishes(t *testing.T) {
	m := newFakeMailer()
	m.configured = false
	pub := &countingPublisher{}
	d, _ := newTestDispatcher(t, m, DispatcherConfig{Publisher: pub})
	assert.False(t, d.Enabled())
	d.Start()

	d.Notify(testContact())
	drain(t, d)

	assert.Equal(t, 0, m.callsTo("ada@example.com"))
	assert.Equal(t, 0, m.callsTo("owner@example.com"))
	assert.Equal(t, int32(1), pub.n.Load())
}

func TestDispatcher_PublishFailureDoesNotBlockMail(t *testing.T) {
	m := newFakeMailer()
	pub := &countingPublisher{err: errors.New("broker down")}
	d, met := newTestDispatcher(t, m, DispatcherConfig{Publisher: pub})
	d.Start()

	d.Notify(testContact())
	drain(t, d)

	assert.True(t, m.sentTo("ada@example.com"))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Notifications.WithLabelValues(kindEvent, "failed")))
}

func TestDispatcher_CloseDrainsAndRejects(t *testing.T) {
	m := newFakeMailer()
	d, met := newTestDispatcher(t, m, DispatcherConfig{Workers: 1, QueueSize: 10})
	d.Start()

	for i := 0; i < 5; i++ {
		d.Notify(testContact())
	}
	drain(t, d)
	assert.Equal(t, 5, m.callsTo("ada@example.com"))

	d.Notify(testContact())
	assert.Equal(t, 1.0, testutil.ToFloat64(met.NotificationsDropped))
	assert.NoError(t, d.Close(context.Background()), "second close is a no-op")
}

func TestDispatcher_CloseTimeoutCancelsSends(t *testing.T) {
	m := newFakeMailer()
	m.sendFunc = func(ctx context.Context, e Email) error {
		<-ctx.Done()
		return ctx.Err()
	}
	d, _ := newTestDispatcher(t, m, DispatcherConfig{MaxAttempts: 1, SendTimeout: time.Hour})
	d.Start()
	d.Notify(testContact())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
}

func TestDispatcher_NoOwnerSkipsAlert(t *testing.T) {
	m := newFakeMailer()
	r, err := NewRenderer("Folio")
	require.NoError(t, err)
	d := NewDispatcher(m, r, DispatcherConfig{RetryBackoff: time.Millisecond})
	d.Start()

	d.Notify(testContact())
	drain(t, d)

	assert.True(t, m.sentTo("ada@example.com"))
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.sent, 1)
}
