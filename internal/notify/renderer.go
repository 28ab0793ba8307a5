package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/osteele/liquid"

	"github.com/folio/backend/internal/model"
)

const (
	confirmationSubject = `Thanks for reaching out, {{ contact.name }}`
	confirmationHTML    = `<p>Hi {{ contact.name | escape }},</p>
<p>Thanks for your message about <strong>{{ contact.subject | escape }}</strong>. I usually reply {{ estimate }}.</p>
<blockquote>{{ contact.message | nl2br }}</blockquote>
<p>{{ site_name | escape }}</p>`
	confirmationText = `Hi {{ contact.name }},

Thanks for your message about "{{ contact.subject }}". I usually reply {{ estimate }}.

{{ site_name }}`

	alertSubject = `[{{ contact.priority | upcase }}] New contact: {{ contact.subject }}`
	alertHTML    = `<h2>New contact from {{ contact.name | escape }}</h2>
<ul>
<li>Email: {{ contact.email | escape }}</li>
<li>Priority: {{ contact.priority }}</li>
<li>Tags: {% if contact.tags.size > 0 %}{{ contact.tags | join: ", " | escape }}{% else %}none{% endif %}</li>
<li>Source: {{ contact.source }}</li>
<li>ID: {{ contact.id }}</li>
</ul>
<blockquote>{{ contact.message | nl2br }}</blockquote>`
	alertText = `New contact from {{ contact.name }} <{{ contact.email }}>
Priority: {{ contact.priority }}
Tags: {{ contact.tags | join: ", " }}
Source: {{ contact.source }}
ID: {{ contact.id }}

{{ contact.message }}`
)

type messageTemplates struct {
	subject, html, text *liquid.Template
}

// Renderer turns a contact into confirmation and alert emails.
type Renderer struct {
	siteName     string
	confirmation messageTemplates
	alert        messageTemplates
}

// NewRenderer parses the built-in templates.
func NewRenderer(siteName string) (*Renderer, error) {
	engine := liquid.NewEngine()
	// Escape first, then keep the submitter's line breaks.
	engine.RegisterFilter("nl2br", func(s string) string {
		return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>\n")
	})

	r := &Renderer{siteName: siteName}
	var err error
	if r.confirmation, err = parseTemplates(engine, confirmationSubject, confirmationHTML, confirmationText); err != nil {
		return nil, fmt.Errorf("parse confirmation templates: %w", err)
	}
	if r.alert, err = parseTemplates(engine, alertSubject, alertHTML, alertText); err != nil {
		return nil, fmt.Errorf("parse alert templates: %w", err)
	}
	return r, nil
}

func parseTemplates(engine *liquid.Engine, subject, htmlSrc, text string) (messageTemplates, error) {
	var t messageTemplates
	for _, p := range []struct {
		dst **liquid.Template
		src string
	}{{&t.subject, subject}, {&t.html, htmlSrc}, {&t.text, text}} {
		tpl, err := engine.ParseString(p.src)
		if err != nil {
			return t, err
		}
		*p.dst = tpl
	}
	return t, nil
}

// Confirmation renders the acknowledgement sent to the submitter.
func (r *Renderer) Confirmation(c *model.Contact) (Email, error) {
	e, err := r.render(r.confirmation, c)
	if err != nil {
		return Email{}, fmt.Errorf("render confirmation: %w", err)
	}
	e.To = c.Email
	return e, nil
}

// Alert renders the operator notification. Replies go to the submitter.
func (r *Renderer) Alert(c *model.Contact, owner string) (Email, error) {
	e, err := r.render(r.alert, c)
	if err != nil {
		return Email{}, fmt.Errorf("render alert: %w", err)
	}
	e.To = owner
	e.ReplyTo = c.Email
	return e, nil
}

func (r *Renderer) render(t messageTemplates, c *model.Contact) (Email, error) {
	b := r.bindings(c)
	subject, err := t.subject.RenderString(b)
	if err != nil {
		return Email{}, err
	}
	htmlBody, err := t.html.RenderString(b)
	if err != nil {
		return Email{}, err
	}
	text, err := t.text.RenderString(b)
	if err != nil {
		return Email{}, err
	}
	return Email{
		Subject: strings.Join(strings.Fields(subject), " "),
		HTML:    htmlBody,
		Text:    text,
	}, nil
}

func (r *Renderer) bindings(c *model.Contact) liquid.Bindings {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return liquid.Bindings{
		"site_name": r.siteName,
		"estimate":  c.Priority.EstimatedResponse(),
		"contact": map[string]any{
			"id":       c.ID,
			"name":     c.Name,
			"email":    c.Email,
			"subject":  c.Subject,
			"message":  c.Message,
			"priority": string(c.Priority),
			"source":   string(c.Source),
			"tags":     tags,
		},
	}
}
