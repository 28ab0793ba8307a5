// Package classifier derives tags and a priority from the text of a contact.
//
// Classification is a pure function of (subject, message): the same input
// always yields the same tags and priority for a given rule set. Contacts
// store the rule set Version that classified them so rows can be recomputed
// after the dictionary changes.
package classifier

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/folio/backend/internal/model"
)

// Rules is the keyword dictionary behind a Classifier.
type Rules struct {
	Version int                 `yaml:"version"`
	Tags    map[string][]string `yaml:"tags"`
	Urgent  []string            `yaml:"urgent"`
	High    []string            `yaml:"high"`
}

// DefaultRules is the built-in dictionary (version 1).
func DefaultRules() Rules {
	return Rules{
		Version: 1,
		Tags: map[string][]string{
			"frontend":      {"frontend", "front-end", "react", "vue", "angular", "css", "html", "javascript", "typescript"},
			"backend":       {"backend", "back-end", "server", "database", "golang", "node.js", "python", "microservice"},
			"mobile":        {"mobile", "ios", "android", "flutter", "react native"},
			"design":        {"design", "figma", "user experience", "branding"},
			"urgent":        {"urgent", "asap", "emergency", "immediately"},
			"freelance":     {"freelance", "contract", "project", "gig"},
			"job":           {"job", "hiring", "position", "full-time", "part-time", "career", "recruit"},
			"collaboration": {"collaboration", "collaborate", "partnership", "partner", "team up"},
			"consulting":    {"consulting", "consultation", "advice", "audit", "review"},
			"question":      {"question", "wondering", "curious", "could you explain"},
		},
		Urgent: []string{"urgent", "asap", "emergency", "immediately", "critical"},
		High:   []string{"important", "deadline", "hiring", "job offer", "collaboration"},
	}
}

// Result is the output of Classify.
type Result struct {
	Tags     []string
	Priority model.Priority
	Version  int
}

// Classifier applies a fixed rule set. It holds no mutable state and is safe
// for concurrent use.
type Classifier struct {
	version int
	tags    []tagRule
	urgent  []string
	high    []string
}

type tagRule struct {
	tag      string
	keywords []string
}

// New builds a Classifier from rules. Keywords are lower-cased; tag names are
// lower-cased and trimmed.
func New(rules Rules) (*Classifier, error) {
	if rules.Version < 1 {
		return nil, fmt.Errorf("classifier rules: version must be >= 1, got %d", rules.Version)
	}
	c := &Classifier{
		version: rules.Version,
		urgent:  lowerAll(rules.Urgent),
		high:    lowerAll(rules.High),
	}
	for tag, keywords := range rules.Tags {
		name := strings.ToLower(strings.TrimSpace(tag))
		if name == "" {
			return nil, fmt.Errorf("classifier rules: empty tag name")
		}
		c.tags = append(c.tags, tagRule{tag: name, keywords: lowerAll(keywords)})
	}
	sort.Slice(c.tags, func(i, j int) bool { return c.tags[i].tag < c.tags[j].tag })
	return c, nil
}

// Default returns the Classifier for DefaultRules.
func Default() *Classifier {
	c, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a YAML rules file. An empty path returns Default().
func Load(path string) (*Classifier, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier rules: %w", err)
	}
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse classifier rules: %w", err)
	}
	return New(rules)
}

// Version identifies the rule set.
func (c *Classifier) Version() int {
	return c.version
}

// Classify derives tags and priority from subject and message.
// Tags are returned sorted; urgent keywords always win over high ones.
func (c *Classifier) Classify(subject, message string) Result {
	content := strings.ToLower(subject + " " + message)

	tags := []string{}
	for _, rule := range c.tags {
		if containsAny(content, rule.keywords) {
			tags = append(tags, rule.tag)
		}
	}

	priority := model.PriorityNormal
	switch {
	case containsAny(content, c.urgent):
		priority = model.PriorityUrgent
	case containsAny(content, c.high):
		priority = model.PriorityHigh
	}

	return Result{Tags: tags, Priority: priority, Version: c.version}
}

func containsAny(content string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
