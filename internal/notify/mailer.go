// Package notify delivers contact notifications by email and publishes
// contact events.
package notify

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by mailers that have no credentials.
var ErrNotConfigured = errors.New("mailer not configured")

// Email is one rendered outbound message.
type Email struct {
	To      string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends a single email.
type Mailer interface {
	Send(ctx context.Context, e Email) error
	// Configured reports whether the mailer can deliver at all.
	Configured() bool
}

// NoopMailer is used when no mail transport is configured.
type NoopMailer struct{}

func (NoopMailer) Send(context.Context, Email) error { return ErrNotConfigured }

func (NoopMailer) Configured() bool { return false }
