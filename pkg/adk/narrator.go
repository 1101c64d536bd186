package adk

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/user/leadscope/pkg/engine"
	"github.com/user/leadscope/pkg/probe"
)

// Fixed texts used when no narrative backend answers.
const (
	FallbackNarrative = "AI analysis is unavailable for this report. The score and technical findings " +
		"below were measured directly and remain accurate; a consultant will walk you through them."
	FallbackSEOFixes = "Could not generate SEO fixes because the AI service was unavailable."
	FallbackStrategy = "AI strategy generation is unavailable. A consultant will prepare a website " +
		"proposal based on your reviews and local market."
	defaultReviews = "Standard service."
	maxFindings    = 5
)

// Generator produces free text for a prompt. *Chain satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Narrator turns audit facts into client-facing prose. When the generator fails it
// returns the matching fallback text together with the error, so callers can keep
// going and surface a warning.
type Narrator struct {
	gen Generator
}

func NewNarrator(gen Generator) *Narrator {
	return &Narrator{gen: gen}
}

// NarrativeInput is everything the executive summary is written from.
type NarrativeInput struct {
	Identity engine.Identity
	Score    engine.ScoreResult
	Facts    engine.FactBundle
	Findings []engine.Finding
}

// AuditNarrative writes the three-paragraph executive summary.
func (n *Narrator) AuditNarrative(ctx context.Context, in NarrativeInput) (string, error) {
	prompt, err := renderPrompt("audit_narrative.tmpl", narrativeData(in))
	if err != nil {
		return FallbackNarrative, err
	}
	return n.generate(ctx, prompt, FallbackNarrative)
}

// SEOFixInput describes the page whose tags need rewriting.
type SEOFixInput struct {
	Identity    engine.Identity
	Title       string
	Description string
}

// NeedsSEOFixes reports whether rewritten tags are worth requesting.
func NeedsSEOFixes(b engine.FactBundle) bool {
	if !b.Known(engine.CategorySEO) {
		return false
	}
	return strings.TrimSpace(b.SEO.Title) == "" || strings.TrimSpace(b.SEO.Description) == ""
}

// SEOFixes asks for rewritten title and description options.
func (n *Narrator) SEOFixes(ctx context.Context, in SEOFixInput) (string, error) {
	industry := in.Identity.Industry
	if industry == "" {
		industry = "local business"
	}
	location := in.Identity.Location
	if location == "" {
		location = "their area"
	}
	prompt, err := renderPrompt("seo_fixes.tmpl", map[string]string{
		"Name":        in.Identity.DisplayName,
		"Industry":    industry,
		"Location":    location,
		"URL":         in.Identity.URL,
		"Title":       engine.Display(in.Title),
		"Description": engine.Display(in.Description),
	})
	if err != nil {
		return FallbackSEOFixes, err
	}
	return n.generate(ctx, prompt, FallbackSEOFixes)
}

// WebsiteStrategy writes a proposal for a business that has no website. Reviews
// shorter than five characters are replaced with a neutral default.
func (n *Narrator) WebsiteStrategy(ctx context.Context, name, location, reviews string) (string, error) {
	if len(strings.TrimSpace(reviews)) < 5 {
		reviews = defaultReviews
	}
	prompt, err := renderPrompt("website_strategy.tmpl", map[string]string{
		"Name":     name,
		"Location": location,
		"Reviews":  strings.TrimSpace(reviews),
	})
	if err != nil {
		return FallbackStrategy, err
	}
	return n.generate(ctx, prompt, FallbackStrategy)
}

func (n *Narrator) generate(ctx context.Context, prompt, fallback string) (string, error) {
	if n == nil || n.gen == nil {
		return fallback, fmt.Errorf("%w: no backends configured", ErrProviderUnavailable)
	}
	text, err := n.gen.Generate(ctx, prompt)
	if err != nil {
		return fallback, err
	}
	return strings.TrimSpace(text), nil
}

func narrativeData(in NarrativeInput) map[string]interface{} {
	b := in.Facts
	unknown := func(c engine.Category, s string) string {
		if !b.Known(c) {
			return "unknown"
		}
		return s
	}

	headers := make([]string, 0, len(probe.SecurityHeaderSet))
	for _, h := range probe.SecurityHeaderSet {
		headers = append(headers, h+"="+engine.DisplayPresence(b.SecurityHeaders, h))
	}
	email := fmt.Sprintf("SPF=%s, DMARC=%s",
		engine.DisplayPresence(b.EmailAuth, probe.RecordSPF),
		engine.DisplayPresence(b.EmailAuth, probe.RecordDMARC))

	ports := make([]int, 0, len(b.OpenPorts))
	for port, state := range b.OpenPorts {
		if state == probe.Open {
			ports = append(ports, port)
		}
	}
	sort.Ints(ports)
	openPorts := "none"
	if len(ports) > 0 {
		parts := make([]string, len(ports))
		for i, port := range ports {
			parts[i] = strconv.Itoa(port)
		}
		openPorts = strings.Join(parts, ", ")
	}

	tech := "none detected"
	if len(b.TechStack) > 0 {
		tech = strings.Join(b.TechStack, ", ")
	}

	seo := fmt.Sprintf("title=%q, description=%q, h1=%q, mobile viewport=%t",
		engine.Display(b.SEO.Title), engine.Display(b.SEO.Description), engine.Display(b.SEO.H1), b.SEO.HasViewport)

	var competitors []string
	for _, c := range b.Competitors {
		competitors = append(competitors, c.Name)
	}

	var findings []string
	for i, f := range in.Findings {
		if i == maxFindings {
			break
		}
		findings = append(findings, fmt.Sprintf("[%d/10] %s: %s", f.Severity, f.Code, f.Evidence))
	}

	return map[string]interface{}{
		"Name":        in.Identity.DisplayName,
		"URL":         engine.Display(in.Identity.URL),
		"Score":       in.Score.Score,
		"Tier":        in.Score.Tier,
		"TLS":         unknown(engine.CategoryTLS, fmt.Sprint(b.TLSValid)),
		"Headers":     unknown(engine.CategoryHeaders, strings.Join(headers, ", ")),
		"EmailAuth":   unknown(engine.CategoryEmailAuth, email),
		"Ports":       unknown(engine.CategoryPorts, openPorts),
		"Tech":        unknown(engine.CategoryTech, tech),
		"SEO":         unknown(engine.CategorySEO, seo),
		"Competitors": strings.Join(competitors, ", "),
		"Findings":    findings,
	}
}
