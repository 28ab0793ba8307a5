package model

import "time"

// ContactStatus is the operator-facing lifecycle state of a contact.
type ContactStatus string

const (
	StatusNew      ContactStatus = "new"
	StatusRead     ContactStatus = "read"
	StatusReplied  ContactStatus = "replied"
	StatusArchived ContactStatus = "archived"
)

// ContactStatuses lists every status in lifecycle order.
var ContactStatuses = []ContactStatus{StatusNew, StatusRead, StatusReplied, StatusArchived}

// Valid reports whether s is a known status.
func (s ContactStatus) Valid() bool {
	for _, v := range ContactStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Priority is derived from the message text by the classifier.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// Rank orders priorities for sorting: low=0 ... urgent=3, unknown=-1.
func (p Priority) Rank() int {
	for i, v := range Priorities {
		if p == v {
			return i
		}
	}
	return -1
}

// EstimatedResponse is the reply-time hint shown to the submitter.
func (p Priority) EstimatedResponse() string {
	switch p {
	case PriorityUrgent:
		return "within a few hours"
	case PriorityHigh:
		return "within 24 hours"
	default:
		return "within 2-3 business days"
	}
}

// Source identifies the channel a contact was submitted through.
type Source string

const (
	SourceWebsite Source = "website"
	SourceMobile  Source = "mobile"
	SourceAPI     Source = "api"
	SourceAdmin   Source = "admin"
)

// Sources lists every submission source.
var Sources = []Source{SourceWebsite, SourceMobile, SourceAPI, SourceAdmin}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	for _, v := range Sources {
		if s == v {
			return true
		}
	}
	return false
}

// Contact represents a message submitted via the contact form.
//
// Tags and Priority are a cache of the classifier output at submission time;
// ClassifierVersion records which rule set produced them.
type Contact struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Email             string           `json:"email"`
	Subject           string           `json:"subject"`
	Message           string           `json:"message"`
	Status            ContactStatus    `json:"status"`
	Priority          Priority         `json:"priority"`
	Tags              []string         `json:"tags"`
	Source            Source           `json:"source"`
	IPAddress         string           `json:"ip_address,omitempty"`
	UserAgent         string           `json:"user_agent,omitempty"`
	Response          *ContactResponse `json:"response,omitempty"`
	Metadata          ContactMetadata  `json:"metadata"`
	ClassifierVersion int              `json:"classifier_version"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// ContactResponse is populated once, the first time a contact is marked replied.
type ContactResponse struct {
	RepliedAt       time.Time `json:"replied_at"`
	RepliedBy       string    `json:"replied_by,omitempty"`
	ResponseMessage string    `json:"response_message,omitempty"`
}

// ContactMetadata is the submission context captured by the HTTP layer.
type ContactMetadata struct {
	SubmittedAt time.Time `json:"submitted_at"`
	Language    string    `json:"language,omitempty"`
	Secure      bool      `json:"secure"`
	RequestID   string    `json:"request_id,omitempty"`
}

// ReplyInput carries the optional response fields of a status update.
type ReplyInput struct {
	RepliedBy       string
	ResponseMessage string
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	out := *c
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	if c.Response != nil {
		r := *c.Response
		out.Response = &r
	}
	return &out
}
