package model

import "time"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SortField names a sortable contact column.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
	SortName      SortField = "name"
	SortEmail     SortField = "email"
	SortSubject   SortField = "subject"
	SortStatus    SortField = "status"
	SortPriority  SortField = "priority"
	SortSource    SortField = "source"
)

// SortFields lists the accepted sort fields.
var SortFields = []SortField{
	SortCreatedAt, SortUpdatedAt, SortName, SortEmail,
	SortSubject, SortStatus, SortPriority, SortSource,
}

// Valid reports whether f is an accepted sort field.
func (f SortField) Valid() bool {
	for _, v := range SortFields {
		if f == v {
			return true
		}
	}
	return false
}

// ContactFilter narrows a listing. Empty fields do not filter.
type ContactFilter struct {
	Status   ContactStatus
	Priority Priority
	Source   Source
	// Search matches case-insensitively against name, email, subject, message and tags.
	Search string
}

// ContactQuery carries filter, pagination and sort parameters for listing contacts.
type ContactQuery struct {
	Filter   ContactFilter
	Page     int // 1-indexed
	PageSize int
	SortBy   SortField
	SortDesc bool
}

// Normalize fills defaults: page 1, size 20 (max 100), sort by createdAt.
// Direction is always the caller's SortDesc.
func (q ContactQuery) Normalize() ContactQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.SortBy == "" {
		q.SortBy = SortCreatedAt
	}
	return q
}

// Offset returns the number of rows skipped before the current page.
func (q ContactQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// ContactPage is one page of a listing plus dashboard counters over the whole filter.
type ContactPage struct {
	Items       []*Contact `json:"items"`
	Total       int        `json:"total"`
	Page        int        `json:"page"`
	PageSize    int        `json:"page_size"`
	Pages       int        `json:"pages"`
	HasNext     bool       `json:"has_next"`
	HasPrev     bool       `json:"has_prev"`
	UrgentCount int        `json:"urgent_count"`
	NewCount    int        `json:"new_count"`
}

// NewContactPage derives page counters from total and the normalized query.
func NewContactPage(items []*Contact, total int, q ContactQuery) *ContactPage {
	pages := 0
	if q.PageSize > 0 {
		pages = (total + q.PageSize - 1) / q.PageSize
	}
	if items == nil {
		items = []*Contact{}
	}
	return &ContactPage{
		Items:    items,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
		Pages:    pages,
		HasNext:  q.Page < pages,
		HasPrev:  q.Page > 1,
	}
}

// StatsWindowDays is the number of recent days covered by ContactStats.Daily.
const StatsWindowDays = 30

// TopTagsLimit caps ContactStats.TopTags.
const TopTagsLimit = 10

// DailyCount is the number of submissions on one UTC calendar day.
type DailyCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// TagCount is the frequency of one tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// ResponseTimeStats summarizes RepliedAt - CreatedAt over replied contacts, in hours.
type ResponseTimeStats struct {
	Count        int     `json:"count"`
	AverageHours float64 `json:"average_hours"`
	MinHours     float64 `json:"min_hours"`
	MaxHours     float64 `json:"max_hours"`
}

// ContactStats is the operator dashboard report.
type ContactStats struct {
	Total        int                   `json:"total"`
	ByStatus     map[ContactStatus]int `json:"by_status"`
	ByPriority   map[Priority]int      `json:"by_priority"`
	BySource     map[Source]int        `json:"by_source"`
	Daily        []DailyCount          `json:"daily"`
	TopTags      []TagCount            `json:"top_tags"`
	ResponseTime ResponseTimeStats     `json:"response_time"`
	GeneratedAt  time.Time             `json:"generated_at"`
}

// NewContactStats returns a report with every enum key present at zero.
func NewContactStats(now time.Time) *ContactStats {
	s := &ContactStats{
		ByStatus:    make(map[ContactStatus]int, len(ContactStatuses)),
		ByPriority:  make(map[Priority]int, len(Priorities)),
		BySource:    make(map[Source]int, len(Sources)),
		Daily:       []DailyCount{},
		TopTags:     []TagCount{},
		GeneratedAt: now,
	}
	for _, v := range ContactStatuses {
		s.ByStatus[v] = 0
	}
	for _, v := range Priorities {
		s.ByPriority[v] = 0
	}
	for _, v := range Sources {
		s.BySource[v] = 0
	}
	return s
}

// StatsWindowStart returns the first UTC day included in the daily facet.
func StatsWindowStart(now time.Time) time.Time {
	d := now.UTC().Truncate(24 * time.Hour)
	return d.AddDate(0, 0, -(StatsWindowDays - 1))
}
