package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/folio/backend/internal/model"
)

// Field length limits, counted in runes after trimming.
const (
	nameMin    = 2
	nameMax    = 50
	subjectMin = 5
	subjectMax = 100
	messageMin = 10
	messageMax = 1000
	emailMax   = 254

	ipAddressMax = 45
	userAgentMax = 500
)

var (
	namePattern  = regexp.MustCompile(`^[\p{L} '’-]+$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	scriptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*script\b`),
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)<[^>]*\son[a-z]+\s*=`),
		regexp.MustCompile(`(?i)\bon(?:click|dblclick|load|unload|error|focus|blur|submit|change|input|mouse[a-z]*|key[a-z]*|pointer[a-z]*)\s*=`),
	}
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every field that failed validation. Callers must
// correct the input and resubmit.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// normalizeInput trims every text field and lower-cases the email.
func normalizeInput(in SubmitInput) SubmitInput {
	return SubmitInput{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Subject: strings.TrimSpace(in.Subject),
		Message: strings.TrimSpace(in.Message),
		Source:  strings.ToLower(strings.TrimSpace(in.Source)),
	}
}

// validateInput checks normalized input and collects every violation.
func validateInput(in SubmitInput) error {
	verr := &ValidationError{}

	switch n := utf8.RuneCountInString(in.Name); {
	case n == 0:
		verr.add("name", "is required")
	case n < nameMin || n > nameMax:
		verr.add("name", "must be between %d and %d characters", nameMin, nameMax)
	case !namePattern.MatchString(in.Name):
		verr.add("name", "may only contain letters, spaces, hyphens and apostrophes")
	}

	switch {
	case in.Email == "":
		verr.add("email", "is required")
	case len(in.Email) > emailMax || !emailPattern.MatchString(in.Email):
		verr.add("email", "must be a valid email address")
	}

	validateText(verr, "subject", in.Subject, subjectMin, subjectMax)
	validateText(verr, "message", in.Message, messageMin, messageMax)

	if in.Source != "" && !model.Source(in.Source).Valid() {
		verr.add("source", "must be one of website, mobile, api, admin")
	}

	return verr.orNil()
}

func validateText(verr *ValidationError, field, value string, min, max int) {
	n := utf8.RuneCountInString(value)
	switch {
	case n == 0:
		verr.add(field, "is required")
	case n < min || n > max:
		verr.add(field, "must be between %d and %d characters", min, max)
	case containsScript(value):
		verr.add(field, "contains disallowed content")
	}
}

func containsScript(s string) bool {
	for _, p := range scriptPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// validateQuery rejects unknown enum values in a listing query.
func validateQuery(q model.ContactQuery) error {
	verr := &ValidationError{}
	if q.Filter.Status != "" && !q.Filter.Status.Valid() {
		verr.add("status", "unknown status %q", q.Filter.Status)
	}
	if q.Filter.Priority != "" && !q.Filter.Priority.Valid() {
		verr.add("priority", "unknown priority %q", q.Filter.Priority)
	}
	if q.Filter.Source != "" && !q.Filter.Source.Valid() {
		verr.add("source", "unknown source %q", q.Filter.Source)
	}
	if q.SortBy != "" && !q.SortBy.Valid() {
		verr.add("sort", "unknown sort field %q", q.SortBy)
	}
	return verr.orNil()
}

// truncateRunes caps s at max runes.
func truncateRunes(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
