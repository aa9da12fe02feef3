// Package render turns chat message text into safe HTML: markdown,
// sanitising, mention substitution, source link badges and link attributes.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Renderer converts message text to HTML. It is safe for concurrent use.
type Renderer struct {
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	resolver EntityResolver
	hosts    []SourceHost
	loc      *time.Location
	now      func() time.Time
	log      logrus.FieldLogger
}

// Option configures a Renderer
type Option func(*Renderer)

// WithSourceHosts replaces the hosts whose links become badges
func WithSourceHosts(hosts []SourceHost) Option {
	return func(r *Renderer) {
		r.hosts = hosts
	}
}

// WithLocation sets the timezone timestamps are displayed in
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		r.loc = loc
	}
}

// WithClock replaces time.Now for relative timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		r.now = now
	}
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Renderer) {
		r.log = log
	}
}

// NewRenderer creates a renderer. A nil resolver renders every mention with
// its fallback label.
func NewRenderer(resolver EntityResolver, opts ...Option) *Renderer {
	r := &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
		policy:   bluemonday.UGCPolicy(),
		resolver: resolver,
		hosts:    DefaultSourceHosts,
		loc:      time.UTC,
		now:      time.Now,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render converts raw message text to sanitized, enriched HTML. Mentions
// across the whole message are resolved in one concurrent batch.
func (r *Renderer) Render(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	clean := r.policy.SanitizeReader(&buf)

	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(clean, container)
	if err != nil {
		return "", fmt.Errorf("failed to parse sanitized html: %w", err)
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}

	found := collectTokens(container)
	if len(found) > 0 {
		labels := r.resolveEntities(ctx, found)
		r.substituteTokens(found, labels)
	}
	rewriteBadges(container, r.hosts)
	decorateLinks(container)

	var out bytes.Buffer
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&out, c); err != nil {
			return "", fmt.Errorf("failed to render html: %w", err)
		}
	}
	return strings.TrimSpace(out.String()), nil
}

// Preview truncates text to maxWords before rendering it
func (r *Renderer) Preview(ctx context.Context, text string, maxWords int) (string, error) {
	return r.Render(ctx, SmartTruncate(text, maxWords))
}
