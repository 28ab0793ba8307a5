package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/folio/backend/internal/classifier"
	"github.com/folio/backend/internal/logging"
	"github.com/folio/backend/internal/metrics"
	"github.com/folio/backend/internal/model"
	"github.com/folio/backend/internal/repository"
)

const defaultStoreTimeout = 5 * time.Second

// ContactServiceConfig carries the optional collaborators of the contact service.
type ContactServiceConfig struct {
	// StoreTimeout bounds every repository call. Zero means 5s.
	StoreTimeout time.Duration
	Metrics      *metrics.Metrics
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// contactServiceImpl is the production implementation of ContactService.
type contactServiceImpl struct {
	repo         repository.ContactRepository
	classifier   *classifier.Classifier
	notifier     Notifier
	storeTimeout time.Duration
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewContactService creates a ContactService backed by the given repository.
// A nil notifier disables notifications.
func NewContactService(repo repository.ContactRepository, cls *classifier.Classifier, notifier Notifier, cfg ContactServiceConfig) ContactService {
	if cls == nil {
		cls = classifier.Default()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &contactServiceImpl{
		repo:         repo,
		classifier:   cls,
		notifier:     notifier,
		storeTimeout: cfg.StoreTimeout,
		metrics:      cfg.Metrics,
		now:          cfg.Now,
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(*model.Contact) {}

func (s *contactServiceImpl) Submit(ctx context.Context, in SubmitInput, rc RequestContext) (*SubmitResult, error) {
	in = normalizeInput(in)
	if err := validateInput(in); err != nil {
		s.metrics.IncSubmission("invalid")
		return nil, err
	}

	source := model.SourceWebsite
	if in.Source != "" {
		source = model.Source(in.Source)
	}

	result := s.classifier.Classify(in.Subject, in.Message)

	c := &model.Contact{
		Name:              in.Name,
		Email:             in.Email,
		Subject:           in.Subject,
		Message:           in.Message,
		Priority:          result.Priority,
		Tags:              result.Tags,
		Source:            source,
		IPAddress:         truncateRunes(rc.IPAddress, ipAddressMax),
		UserAgent:         truncateRunes(rc.UserAgent, userAgentMax),
		ClassifierVersion: result.Version,
		Metadata: model.ContactMetadata{
			SubmittedAt: s.now().UTC(),
			Language:    rc.Language,
			Secure:      rc.Secure,
			RequestID:   rc.RequestID,
		},
	}

	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	err := s.repo.Create(sctx, c)
	cancel()
	s.metrics.ObserveStore("create", time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.metrics.IncSubmission("duplicate")
			slog.Info("duplicate contact submission rejected",
				"email", logging.RedactEmail(c.Email),
				"request_id", rc.RequestID,
			)
			return nil, err
		}
		s.metrics.IncSubmission("error")
		slog.Error("contact create failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", rc.RequestID,
		)
		return nil, fmt.Errorf("create contact: %w", err)
	}

	s.metrics.IncSubmission("accepted")
	s.metrics.IncClassified(string(c.Priority))
	slog.Info("contact submitted",
		"contact_id", c.ID,
		"priority", c.Priority,
		"tags", c.Tags,
		"source", c.Source,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	s.notifier.Notify(c.Clone())

	return &SubmitResult{Contact: c, EstimatedResponse: c.Priority.EstimatedResponse()}, nil
}

func (s *contactServiceImpl) Get(ctx context.Context, id string) (*model.Contact, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	defer s.observe("find", time.Now())
	return s.repo.FindByID(ctx, id)
}

// List runs the page query and both dashboard counts concurrently.
func (s *contactServiceImpl) List(ctx context.Context, q model.ContactQuery) (*model.ContactPage, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	q = q.Normalize()

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	defer s.observe("query", time.Now())

	var (
		items               []*model.Contact
		total, urgent, news int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, total, err = s.repo.Query(gctx, q)
		return err
	})
	if f, ok := narrowFilter(q.Filter, "", model.PriorityUrgent); ok {
		g.Go(func() error {
			var err error
			urgent, err = s.repo.Count(gctx, f)
			return err
		})
	}
	if f, ok := narrowFilter(q.Filter, model.StatusNew, ""); ok {
		g.Go(func() error {
			var err error
			news, err = s.repo.Count(gctx, f)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	page := model.NewContactPage(items, total, q)
	page.UrgentCount = urgent
	page.NewCount = news
	return page, nil
}

// narrowFilter adds a status or priority constraint to f. It reports false
// when f already pins a different value, in which case the count is zero.
func narrowFilter(f model.ContactFilter, status model.ContactStatus, priority model.Priority) (model.ContactFilter, bool) {
	if status != "" {
		if f.Status != "" && f.Status != status {
			return f, false
		}
		f.Status = status
	}
	if priority != "" {
		if f.Priority != "" && f.Priority != priority {
			return f, false
		}
		f.Priority = priority
	}
	return f, true
}

func (s *contactServiceImpl) UpdateStatus(ctx context.Context, id string, status model.ContactStatus, reply *model.ReplyInput) (*model.Contact, error) {
	if !status.Valid() {
		verr := &ValidationError{}
		verr.add("status", "must be one of new, read, replied, archived")
		return nil, verr
	}
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	defer s.observe("update_status", time.Now())

	c, err := s.repo.UpdateStatus(ctx, id, status, reply)
	if err != nil {
		return nil, err
	}
	slog.Info("contact status updated", "contact_id", c.ID, "status", c.Status)
	return c, nil
}

func (s *contactServiceImpl) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	defer s.observe("delete", time.Now())

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("contact deleted", "contact_id", id)
	return nil
}

func (s *contactServiceImpl) Stats(ctx context.Context) (*model.ContactStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	start := time.Now()
	stats, err := s.repo.Aggregate(ctx, s.now().UTC())
	s.metrics.ObserveStore("aggregate", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("aggregate contacts: %w", err)
	}
	slog.Debug("contact stats computed", "total", stats.Total, "duration_ms", time.Since(start).Milliseconds())
	return stats, nil
}

func (s *contactServiceImpl) PurgeArchived(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-retention)

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	defer s.observe("purge", time.Now())

	n, err := s.repo.DeleteArchivedOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge archived contacts: %w", err)
	}
	s.metrics.AddPurged(n)
	slog.Info("archived contacts purged", "count", n, "cutoff", cutoff)
	return n, nil
}

func (s *contactServiceImpl) Reclassify(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	version := s.classifier.Version()
	updated := 0
	for {
		stale, err := s.listStale(ctx, version, batch)
		if err != nil {
			return updated, fmt.Errorf("list stale contacts: %w", err)
		}
		if len(stale) == 0 {
			break
		}
		for _, c := range stale {
			r := s.classifier.Classify(c.Subject, c.Message)
			if err := s.updateClassification(ctx, c.ID, r); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					slog.Debug("reclassify skipped deleted contact", "contact_id", c.ID)
					continue
				}
				return updated, fmt.Errorf("reclassify contact %s: %w", c.ID, err)
			}
			updated++
		}
	}
	slog.Info("contacts reclassified", "count", updated, "classifier_version", version)
	return updated, nil
}

func (s *contactServiceImpl) listStale(ctx context.Context, version, batch int) ([]*model.Contact, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.repo.ListStale(ctx, version, batch)
}

func (s *contactServiceImpl) updateClassification(ctx context.Context, id string, r classifier.Result) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.repo.UpdateClassification(ctx, id, r.Tags, r.Priority, r.Version)
}

func (s *contactServiceImpl) observe(op string, start time.Time) {
	s.metrics.ObserveStore(op, time.Since(start))
}
