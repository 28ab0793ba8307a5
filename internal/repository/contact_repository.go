package repository

import (
	"context"
	"time"

	"github.com/folio/backend/internal/model"
)

// ContactRepository defines the persistence interface for contacts.
// It is defined here (in repository) to avoid an import cycle with service.
//
// Implementations return copies; callers never hold a reference into store state.
type ContactRepository interface {
	// Create persists c and populates ID, Status (new), CreatedAt and UpdatedAt.
	Create(ctx context.Context, c *model.Contact) error
	FindByID(ctx context.Context, id string) (*model.Contact, error)
	// UpdateStatus sets status and, the first time status becomes replied,
	// records the response from reply. Last write wins.
	UpdateStatus(ctx context.Context, id string, status model.ContactStatus, reply *model.ReplyInput) (*model.Contact, error)
	Delete(ctx context.Context, id string) error
	// Query returns one page of the filtered, sorted listing and the total match count.
	Query(ctx context.Context, q model.ContactQuery) ([]*model.Contact, int, error)
	Count(ctx context.Context, f model.ContactFilter) (int, error)
	Aggregate(ctx context.Context, now time.Time) (*model.ContactStats, error)
	DeleteArchivedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// ListStale returns up to limit contacts classified by a version other than version.
	ListStale(ctx context.Context, version, limit int) ([]*model.Contact, error)
	UpdateClassification(ctx context.Context, id string, tags []string, priority model.Priority, version int) error
}

// DB reports database liveness.
type DB interface {
	Ping(ctx context.Context) error
}
