package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/backend/internal/model"
)

// fakeClock advances one minute on every call so timestamps are strictly ordered.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newTestStore(start time.Time) (*MemoryContactRepository, *fakeClock) {
	clock := &fakeClock{t: start}
	return NewMemoryContactRepository().WithClock(clock.Now), clock
}

func seed(t *testing.T, repo ContactRepository, c *model.Contact) *model.Contact {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func contactWith(name string, priority model.Priority, source model.Source, tags ...string) *model.Contact {
	return &model.Contact{
		Name:     name,
		Email:    fmt.Sprintf("%s@example.com", name),
		Subject:  "Subject for " + name,
		Message:  "Message body from " + name,
		Priority: priority,
		Source:   source,
		Tags:     tags,
	}
}

func TestMemoryStore_CreateAssignsIdentity(t *testing.T) {
	repo, _ := newTestStore(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := seed(t, repo, contactWith("ada", model.PriorityNormal, model.SourceWebsite))

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, model.StatusNew, c.Status)
	assert.False(t, c.CreatedAt.IsZero())
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)

	got, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	repo, _ := newTestStore(time.Now())
	c := seed(t, repo, contactWith("ada", model.PriorityNormal, model.SourceWebsite, "job"))

	got, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	got.Tags[0] = "mutated"
	got.Name = "mutated"

	again, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", again.Name)
	assert.Equal(t, []string{"job"}, again.Tags)
}

func TestMemoryStore_InvalidAndMissingIDs(t *testing.T) {
	repo, _ := newTestStore(time.Now())
	ctx := context.Background()

	_, err := repo.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = repo.FindByID(ctx, "6f1d9a4e-8f57-4c2b-9a59-0f3c1f0b7a11")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "6f1d9a4e-8f57-4c2b-9a59-0f3c1f0b7a11"), ErrNotFound)
	_, err = repo.UpdateStatus(ctx, "xyz", model.StatusRead, nil)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestMemoryStore_RepliedAtSetOnce(t *testing.T) {
	repo, _ := newTestStore(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	c := seed(t, repo, contactWith("ada", model.PriorityNormal, model.SourceWebsite))

	read, err := repo.UpdateStatus(ctx, c.ID, model.StatusRead, nil)
	require.NoError(t, err)
	assert.Nil(t, read.Response)

	replied, err := repo.UpdateStatus(ctx, c.ID, model.StatusReplied, &model.ReplyInput{RepliedBy: "Admin"})
	require.NoError(t, err)
	require.NotNil(t, replied.Response)
	assert.Equal(t, "Admin", replied.Response.RepliedBy)
	assert.False(t, replied.Response.RepliedAt.Before(c.CreatedAt))
	first := replied.Response.RepliedAt

	again, err := repo.UpdateStatus(ctx, c.ID, model.StatusReplied, &model.ReplyInput{RepliedBy: "Someone else"})
	require.NoError(t, err)
	assert.Equal(t, first, again.Response.RepliedAt)
	assert.Equal(t, "Admin", again.Response.RepliedBy)

	archived, err := repo.UpdateStatus(ctx, c.ID, model.StatusArchived, nil)
	require.NoError(t, err)
	require.NotNil(t, archived.Response)
	assert.Equal(t, first, archived.Response.RepliedAt)
}

func TestMemoryStore_QueryFilters(t *testing.T) {
	repo, _ := newTestStore(time.Now())
	ctx := context.Background()
	seed(t, repo, contactWith("alice", model.PriorityUrgent, model.SourceWebsite, "frontend"))
	seed(t, repo, contactWith("bob", model.PriorityNormal, model.SourceMobile, "backend"))
	carol := seed(t, repo, contactWith("carol", model.PriorityUrgent, model.SourceAPI, "job"))
	_, err := repo.UpdateStatus(ctx, carol.ID, model.StatusRead, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter model.ContactFilter
		want   int
	}{
		{"no filter", model.ContactFilter{}, 3},
		{"priority", model.ContactFilter{Priority: model.PriorityUrgent}, 2},
		{"status", model.ContactFilter{Status: model.StatusNew}, 2},
		{"source", model.ContactFilter{Source: model.SourceMobile}, 1},
		{"search name case-insensitive", model.ContactFilter{Search: "ALICE"}, 1},
		{"search tag", model.ContactFilter{Search: "backend"}, 1},
		{"search email domain", model.ContactFilter{Search: "example.com"}, 3},
		{"combined", model.ContactFilter{Priority: model.PriorityUrgent, Status: model.StatusNew}, 1},
		{"no match", model.ContactFilter{Search: "zzz"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := repo.Query(ctx, model.ContactQuery{Filter: tt.filter})
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
			assert.Len(t, items, tt.want)

			n, err := repo.Count(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestMemoryStore_QuerySorting(t *testing.T) {
	repo, _ := newTestStore(time.Now())
	ctx := context.Background()
	seed(t, repo, contactWith("bob", model.PriorityHigh, model.SourceWebsite))
	seed(t, repo, contactWith("alice", model.PriorityLow, model.SourceWebsite))
	seed(t, repo, contactWith("carol", model.PriorityUrgent, model.SourceWebsite))

	items, _, err := repo.Query(ctx, model.ContactQuery{SortDesc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "alice", "bob"}, names(items), "createdAt is the default field")

	items, _, err = repo.Query(ctx, model.ContactQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice", "carol"}, names(items), "ascending createdAt without a field")

	items, _, err = repo.Query(ctx, model.ContactQuery{SortBy: model.SortName})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, names(items))

	items, _, err = repo.Query(ctx, model.ContactQuery{SortBy: model.SortPriority, SortDesc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "bob", "alice"}, names(items))
}

func TestMemoryStore_QueryPagination(t *testing.T) {
	repo, _ := newTestStore(time.Now())
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		seed(t, repo, contactWith(fmt.Sprintf("user%d", i), model.PriorityNormal, model.SourceWebsite))
	}

	for _, size := range []int{1, 2, 3, 5, 7, 10} {
		q := model.ContactQuery{PageSize: size}.Normalize()
		wantPages := (7 + size - 1) / size
		seen := 0
		for page := 1; page <= wantPages; page++ {
			q.Page = page
			items, total, err := repo.Query(ctx, q)
			require.NoError(t, err)
			p := model.NewContactPage(items, total, q)
			assert.Equal(t, wantPages, p.Pages)
			assert.Equal(t, page < wantPages, p.HasNext)
			assert.Equal(t, page > 1, p.HasPrev)
			seen += len(items)
		}
		assert.Equal(t, 7, seen, "page size %d", size)
	}

	items, total, err := repo.Query(ctx, model.ContactQuery{Page: 99, PageSize: 5})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 7, total)
}

func TestMemoryStore_AggregateStatusDistribution(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	repo, _ := newTestStore(now.Add(-time.Hour))
	ctx := context.Background()

	var created []*model.Contact
	for i := 0; i < 6; i++ {
		created = append(created, seed(t, repo, contactWith(fmt.Sprintf("user%d", i), model.PriorityNormal, model.SourceWebsite)))
	}
	for _, c := range created[3:5] {
		_, err := repo.UpdateStatus(ctx, c.ID, model.StatusReplied, &model.ReplyInput{RepliedBy: "Admin"})
		require.NoError(t, err)
	}
	_, err := repo.UpdateStatus(ctx, created[5].ID, model.StatusArchived, nil)
	require.NoError(t, err)

	stats, err := repo.Aggregate(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, map[model.ContactStatus]int{
		model.StatusNew:      3,
		model.StatusRead:     0,
		model.StatusReplied:  2,
		model.StatusArchived: 1,
	}, stats.ByStatus)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 6, stats.ByPriority[model.PriorityNormal])
	assert.Equal(t, 6, stats.BySource[model.SourceWebsite])
	assert.Equal(t, 2, stats.ResponseTime.Count)
	assert.Greater(t, stats.ResponseTime.AverageHours, 0.0)
	assert.LessOrEqual(t, stats.ResponseTime.MinHours, stats.ResponseTime.MaxHours)
}

func TestMemoryStore_AggregateDailyAndTags(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{}
	repo := NewMemoryContactRepository().WithClock(clock.Now)

	at := func(daysAgo int) {
		clock.t = now.AddDate(0, 0, -daysAgo).Add(-time.Minute)
	}
	at(0)
	seed(t, repo, contactWith("a", model.PriorityNormal, model.SourceWebsite, "job", "backend"))
	seed(t, repo, contactWith("b", model.PriorityNormal, model.SourceWebsite, "job"))
	at(2)
	seed(t, repo, contactWith("c", model.PriorityNormal, model.SourceWebsite, "design"))
	at(45)
	seed(t, repo, contactWith("d", model.PriorityNormal, model.SourceWebsite, "job"))

	stats, err := repo.Aggregate(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, []model.DailyCount{
		{Date: "2026-05-10", Count: 2},
		{Date: "2026-05-08", Count: 1},
	}, stats.Daily)
	assert.Equal(t, []model.TagCount{
		{Tag: "job", Count: 3},
		{Tag: "backend", Count: 1},
		{Tag: "design", Count: 1},
	}, stats.TopTags)
}

func TestMemoryStore_AggregateTopTagsCapped(t *testing.T) {
	repo, _ := newTestStore(time.Now())
	tags := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		tags = append(tags, fmt.Sprintf("tag%02d", i))
	}
	seed(t, repo, contactWith("a", model.PriorityNormal, model.SourceWebsite, tags...))

	stats, err := repo.Aggregate(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Len(t, stats.TopTags, model.TopTagsLimit)
}

func TestMemoryStore_DeleteArchivedOlderThan(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo, clock := newTestStore(start)
	ctx := context.Background()

	oldArchived := seed(t, repo, contactWith("old", model.PriorityNormal, model.SourceWebsite))
	oldNew := seed(t, repo, contactWith("oldnew", model.PriorityNormal, model.SourceWebsite))
	_, err := repo.UpdateStatus(ctx, oldArchived.ID, model.StatusArchived, nil)
	require.NoError(t, err)

	clock.t = start.AddDate(1, 6, 0)
	recent := seed(t, repo, contactWith("recent", model.PriorityNormal, model.SourceWebsite))
	_, err = repo.UpdateStatus(ctx, recent.ID, model.StatusArchived, nil)
	require.NoError(t, err)

	n, err := repo.DeleteArchivedOlderThan(ctx, clock.t.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.FindByID(ctx, oldArchived.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindByID(ctx, oldNew.ID)
	assert.NoError(t, err)
	_, err = repo.FindByID(ctx, recent.ID)
	assert.NoError(t, err)
}

func TestMemoryStore_Reclassification(t *testing.T) {
	repo, _ := newTestStore(time.Now())
	ctx := context.Background()
	a := contactWith("a", model.PriorityNormal, model.SourceWebsite)
	a.ClassifierVersion = 1
	seed(t, repo, a)
	b := contactWith("b", model.PriorityNormal, model.SourceWebsite)
	b.ClassifierVersion = 2
	seed(t, repo, b)

	stale, err := repo.ListStale(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, a.ID, stale[0].ID)

	require.NoError(t, repo.UpdateClassification(ctx, a.ID, []string{"job"}, model.PriorityHigh, 2))

	stale, err = repo.ListStale(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	got, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"job"}, got.Tags)
	assert.Equal(t, model.PriorityHigh, got.Priority)
}

func names(items []*model.Contact) []string {
	out := make([]string, 0, len(items))
	for _, c := range items {
		out = append(out, c.Name)
	}
	return out
}
