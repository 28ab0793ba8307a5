package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// ArchivePurger deletes archived contacts older than a retention period.
type ArchivePurger interface {
	PurgeArchived(ctx context.Context, retention time.Duration) (int64, error)
}

// Purger periodically removes archived contacts. With a Redis lock, only
// one replica purges per interval.
type Purger struct {
	store     ArchivePurger
	lock      Lock
	retention time.Duration
	interval  time.Duration
}

// NewPurger creates a Purger. A nil lock runs every tick unconditionally.
func NewPurger(store ArchivePurger, lock Lock, retention, interval time.Duration) *Purger {
	if lock == nil {
		lock = localLock{}
	}
	return &Purger{store: store, lock: lock, retention: retention, interval: interval}
}

// RunOnce purges if the lock can be taken. It reports whether a purge ran.
func (p *Purger) RunOnce(ctx context.Context) (int64, bool, error) {
	ok, err := p.lock.Acquire(ctx)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		slog.Debug("purge skipped: lock held elsewhere")
		return 0, false, nil
	}
	defer func() {
		if err := p.lock.Release(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("purge lock release failed", "error", err)
		}
	}()

	n, err := p.store.PurgeArchived(ctx, p.retention)
	if err != nil {
		return 0, true, err
	}
	return n, true, nil
}

// Run purges immediately and then every interval until ctx is done.
func (p *Purger) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	slog.Info("archive purger started", "interval", p.interval.String(), "retention", p.retention.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if _, _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Error("archive purge failed", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("archive purger stopped")
			return
		case <-ticker.C:
		}
	}
}
