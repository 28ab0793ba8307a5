package repository

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/folio/backend/internal/model"
)

// MemoryContactRepository is an in-process ContactRepository used for local
// development (STORE_DRIVER=memory) and tests. The mutex gives each single
// contact write the same atomicity a database row update has.
type MemoryContactRepository struct {
	mu       sync.RWMutex
	contacts map[string]*model.Contact
	now      func() time.Time
}

// NewMemoryContactRepository creates an empty in-memory store.
func NewMemoryContactRepository() *MemoryContactRepository {
	return &MemoryContactRepository{
		contacts: make(map[string]*model.Contact),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ensure MemoryContactRepository implements ContactRepository at compile time.
var _ ContactRepository = (*MemoryContactRepository)(nil)

// WithClock overrides the timestamp source. Intended for tests.
func (r *MemoryContactRepository) WithClock(now func() time.Time) *MemoryContactRepository {
	r.now = now
	return r
}

// Ping always succeeds.
func (r *MemoryContactRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *MemoryContactRepository) Create(ctx context.Context, c *model.Contact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c.ID = uuid.NewString()
	c.Status = model.StatusNew
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Tags == nil {
		c.Tags = []string{}
	}
	r.contacts[c.ID] = c.Clone()
	return nil
}

func (r *MemoryContactRepository) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryContactRepository) UpdateStatus(ctx context.Context, id string, status model.ContactStatus, reply *model.ReplyInput) (*model.Contact, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := r.now()
	c.Status = status
	c.UpdatedAt = now
	if status == model.StatusReplied && c.Response == nil {
		c.Response = &model.ContactResponse{RepliedAt: now}
		if reply != nil {
			c.Response.RepliedBy = reply.RepliedBy
			c.Response.ResponseMessage = reply.ResponseMessage
		}
	}
	return c.Clone(), nil
}

func (r *MemoryContactRepository) Delete(ctx context.Context, id string) error {
	id, err := ParseID(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contacts[id]; !ok {
		return ErrNotFound
	}
	delete(r.contacts, id)
	return nil
}

func (r *MemoryContactRepository) Query(ctx context.Context, q model.ContactQuery) ([]*model.Contact, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	q = q.Normalize()

	matched := r.filter(q.Filter)
	sortContacts(matched, q.SortBy, q.SortDesc)

	total := len(matched)
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *MemoryContactRepository) Count(ctx context.Context, f model.ContactFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(r.filter(f)), nil
}

// Aggregate computes every facet from a single snapshot of the store.
func (r *MemoryContactRepository) Aggregate(ctx context.Context, now time.Time) (*model.ContactStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return computeStats(r.snapshot(), now), nil
}

func (r *MemoryContactRepository) DeleteArchivedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, c := range r.contacts {
		if c.Status == model.StatusArchived && c.CreatedAt.Before(cutoff) {
			delete(r.contacts, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryContactRepository) ListStale(ctx context.Context, version, limit int) ([]*model.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var stale []*model.Contact
	for _, c := range r.snapshot() {
		if c.ClassifierVersion != version {
			stale = append(stale, c)
		}
	}
	sortContacts(stale, model.SortCreatedAt, false)
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (r *MemoryContactRepository) UpdateClassification(ctx context.Context, id string, tags []string, priority model.Priority, version int) error {
	id, err := ParseID(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contacts[id]
	if !ok {
		return ErrNotFound
	}
	c.Tags = append([]string{}, tags...)
	c.Priority = priority
	c.ClassifierVersion = version
	c.UpdatedAt = r.now()
	return nil
}

// snapshot copies every contact under one read lock.
func (r *MemoryContactRepository) snapshot() []*model.Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Contact, 0, len(r.contacts))
	for _, c := range r.contacts {
		out = append(out, c.Clone())
	}
	return out
}

func (r *MemoryContactRepository) filter(f model.ContactFilter) []*model.Contact {
	all := r.snapshot()
	out := all[:0]
	for _, c := range all {
		if matchesFilter(c, f) {
			out = append(out, c)
		}
	}
	return out
}

func matchesFilter(c *model.Contact, f model.ContactFilter) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Priority != "" && c.Priority != f.Priority {
		return false
	}
	if f.Source != "" && c.Source != f.Source {
		return false
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	if search == "" {
		return true
	}
	for _, field := range []string{c.Name, c.Email, c.Subject, c.Message} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	for _, tag := range c.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	return false
}

func sortContacts(items []*model.Contact, field model.SortField, desc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		cmp := compareContacts(a, b, field)
		if cmp == 0 {
			cmp = compareTime(a.CreatedAt, b.CreatedAt)
		}
		if cmp == 0 {
			cmp = strings.Compare(a.ID, b.ID)
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareContacts(a, b *model.Contact, field model.SortField) int {
	switch field {
	case model.SortUpdatedAt:
		return compareTime(a.UpdatedAt, b.UpdatedAt)
	case model.SortName:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case model.SortEmail:
		return strings.Compare(a.Email, b.Email)
	case model.SortSubject:
		return strings.Compare(strings.ToLower(a.Subject), strings.ToLower(b.Subject))
	case model.SortStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case model.SortPriority:
		return a.Priority.Rank() - b.Priority.Rank()
	case model.SortSource:
		return strings.Compare(string(a.Source), string(b.Source))
	default:
		return compareTime(a.CreatedAt, b.CreatedAt)
	}
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func computeStats(contacts []*model.Contact, now time.Time) *model.ContactStats {
	stats := model.NewContactStats(now)
	windowStart := model.StatsWindowStart(now)
	daily := make(map[string]int)
	tags := make(map[string]int)

	var sumHours float64
	rt := &stats.ResponseTime
	for _, c := range contacts {
		stats.Total++
		stats.ByStatus[c.Status]++
		stats.ByPriority[c.Priority]++
		stats.BySource[c.Source]++

		if !c.CreatedAt.Before(windowStart) {
			daily[c.CreatedAt.UTC().Format("2006-01-02")]++
		}
		for _, t := range c.Tags {
			tags[t]++
		}

		if c.Status == model.StatusReplied && c.Response != nil {
			h := c.Response.RepliedAt.Sub(c.CreatedAt).Hours()
			if rt.Count == 0 || h < rt.MinHours {
				rt.MinHours = h
			}
			if rt.Count == 0 || h > rt.MaxHours {
				rt.MaxHours = h
			}
			sumHours += h
			rt.Count++
		}
	}

	for day, n := range daily {
		stats.Daily = append(stats.Daily, model.DailyCount{Date: day, Count: n})
	}
	sort.Slice(stats.Daily, func(i, j int) bool { return stats.Daily[i].Date > stats.Daily[j].Date })

	for tag, n := range tags {
		stats.TopTags = append(stats.TopTags, model.TagCount{Tag: tag, Count: n})
	}
	sortTagCounts(stats.TopTags)
	if len(stats.TopTags) > model.TopTagsLimit {
		stats.TopTags = stats.TopTags[:model.TopTagsLimit]
	}

	if rt.Count > 0 {
		rt.AverageHours = roundHours(sumHours / float64(rt.Count))
		rt.MinHours = roundHours(rt.MinHours)
		rt.MaxHours = roundHours(rt.MaxHours)
	}
	return stats
}

func sortTagCounts(tc []model.TagCount) {
	sort.Slice(tc, func(i, j int) bool {
		if tc[i].Count != tc[j].Count {
			return tc[i].Count > tc[j].Count
		}
		return tc[i].Tag < tc[j].Tag
	})
}

func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}
