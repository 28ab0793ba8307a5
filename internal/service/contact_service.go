package service

import (
	"context"
	"time"

	"github.com/folio/backend/internal/model"
)

// SubmitInput is the raw contact form payload.
type SubmitInput struct {
	Name    string
	Email   string
	Subject string
	Message string
	// Source defaults to "website" when empty.
	Source string
}

// RequestContext is the provenance the HTTP layer captured for a submission.
type RequestContext struct {
	IPAddress string
	UserAgent string
	Language  string
	Secure    bool
	RequestID string
}

// SubmitResult is returned to the submitter.
type SubmitResult struct {
	Contact *model.Contact
	// EstimatedResponse is an informational hint, not a commitment.
	EstimatedResponse string
}

// Notifier schedules notifications for a saved contact without blocking.
type Notifier interface {
	Notify(c *model.Contact)
}

// ContactService defines the business logic for contact form submissions
// and the operator listing.
type ContactService interface {
	// Submit validates, classifies and stores a submission, then schedules
	// notifications. It returns as soon as the contact is persisted.
	Submit(ctx context.Context, in SubmitInput, rc RequestContext) (*SubmitResult, error)

	Get(ctx context.Context, id string) (*model.Contact, error)

	// List returns one page of contacts plus urgent/new counts for the same filter.
	List(ctx context.Context, q model.ContactQuery) (*model.ContactPage, error)

	UpdateStatus(ctx context.Context, id string, status model.ContactStatus, reply *model.ReplyInput) (*model.Contact, error)

	Delete(ctx context.Context, id string) error

	Stats(ctx context.Context) (*model.ContactStats, error)

	// PurgeArchived deletes archived contacts created more than retention ago.
	PurgeArchived(ctx context.Context, retention time.Duration) (int64, error)

	// Reclassify recomputes tags and priority for contacts classified by an
	// older rule set, batch rows at a time. It returns the number updated.
	Reclassify(ctx context.Context, batch int) (int, error)
}
