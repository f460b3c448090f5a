package notify

import (
	"bytes"
	"errors"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"price-monitor/internal/classify"
	"price-monitor/internal/domain"
)

// ErrNoTemplate is returned for event kinds that are never mailed.
var ErrNoTemplate = errors.New("no template for event kind")

// templateData is what every template sees.
type templateData struct {
	Title         string
	URL           string
	ImageURL      string
	Currency      string
	CurrentPrice  string
	PreviousPrice string
	LowestPrice   string
	HighestPrice  string
	AveragePrice  string
	DropPercent   string
}

type templateSet struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// Renderer turns a Notification into a Message using one template set per event kind.
type Renderer struct {
	sets map[domain.EventKind]templateSet
}

// NewRenderer parses the built-in templates.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{sets: make(map[domain.EventKind]templateSet, len(builtinTemplates))}
	for kind, src := range builtinTemplates {
		set, err := parseSet(string(kind), src)
		if err != nil {
			return nil, err
		}
		r.sets[kind] = set
	}
	return r, nil
}

// MustNewRenderer is NewRenderer that panics on a template error.
func MustNewRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

func parseSet(name string, src templateSource) (templateSet, error) {
	subject, err := texttemplate.New(name + ".subject").Parse(src.subject)
	if err != nil {
		return templateSet{}, fmt.Errorf("parse %s subject: %w", name, err)
	}
	text, err := texttemplate.New(name + ".txt").Parse(src.text)
	if err != nil {
		return templateSet{}, fmt.Errorf("parse %s text: %w", name, err)
	}
	html, err := htmltemplate.New(name + ".html").Parse(src.html)
	if err != nil {
		return templateSet{}, fmt.Errorf("parse %s html: %w", name, err)
	}
	return templateSet{subject: subject, text: text, html: html}, nil
}

// Render builds the message for n. Kinds without a template return ErrNoTemplate.
func (r *Renderer) Render(n Notification) (Message, error) {
	if n.Product == nil {
		return Message{}, fmt.Errorf("render %s: nil product", n.Kind)
	}
	set, ok := r.sets[n.Kind]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrNoTemplate, n.Kind)
	}

	p := n.Product
	data := templateData{
		Title:         p.Title,
		URL:           p.SourceURL,
		ImageURL:      p.ImageURL,
		Currency:      p.Currency,
		CurrentPrice:  p.CurrentPrice.StringFixed(2),
		PreviousPrice: n.PreviousPrice.StringFixed(2),
		LowestPrice:   p.LowestPrice.StringFixed(2),
		HighestPrice:  p.HighestPrice.StringFixed(2),
		AveragePrice:  p.AveragePrice.StringFixed(2),
		DropPercent:   classify.DropPercent(n.PreviousPrice, p.CurrentPrice).String(),
	}
	if data.Title == "" {
		data.Title = p.SourceURL
	}

	var subject, text, html bytes.Buffer
	if err := set.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", n.Kind, err)
	}
	if err := set.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", n.Kind, err)
	}
	if err := set.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", n.Kind, err)
	}

	return Message{
		Subject:  subject.String(),
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}
