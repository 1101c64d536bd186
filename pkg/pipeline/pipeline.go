package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/user/leadscope/pkg/adk"
	"github.com/user/leadscope/pkg/engine"
	"github.com/user/leadscope/pkg/logger"
	"github.com/user/leadscope/pkg/report"
)

// DirectAuditName is the display name used when a URL is audited without a business name.
const DirectAuditName = "Target Business"

// ErrInvalidRequest means the request names neither a URL nor a business and location.
var ErrInvalidRequest = errors.New("invalid audit request")

// Request starts one scan. Either URL (direct audit) or Name and Location (discovery)
// must be set.
type Request struct {
	URL      string `json:"url,omitempty"`
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`
	Industry string `json:"industry,omitempty"`
	Reviews  string `json:"reviews,omitempty"`
	NoReport bool   `json:"-"`
}

// Validate checks that the request selects one of the two modes.
func (r Request) Validate() error {
	if strings.TrimSpace(r.URL) != "" {
		return nil
	}
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Location) == "" {
		return fmt.Errorf("%w: provide a url, or a name and location", ErrInvalidRequest)
	}
	return nil
}

// Result is the outcome of a scan. Facts, Score and Findings are set whenever the
// identity had a website; Strategy is set when it did not.
type Result struct {
	ScanID       string             `json:"scan_id"`
	Identity     engine.Identity    `json:"identity"`
	NoWebsite    bool               `json:"no_website"`
	LookupFailed bool               `json:"lookup_failed,omitempty"`
	Facts        engine.FactBundle  `json:"facts"`
	Score        engine.ScoreResult `json:"score"`
	Findings     []engine.Finding   `json:"findings"`
	Narrative    string             `json:"narrative,omitempty"`
	SEOFixes     string             `json:"seo_fixes,omitempty"`
	Strategy     string             `json:"strategy,omitempty"`
	ReportPath   string             `json:"report,omitempty"`
	MirrorURL    string             `json:"report_mirror,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
}

func (r *Result) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Warnf("%s", msg)
	r.Warnings = append(r.Warnings, msg)
}

// Resolver finds a business's website. *discovery.Finder satisfies it.
type Resolver interface {
	ResolveURL(ctx context.Context, name, location string) (string, error)
}

// Assembler builds the fact bundle. *engine.Assembler satisfies it.
type Assembler interface {
	Assemble(ctx context.Context, id engine.Identity) engine.FactBundle
}

// Narrator writes the prose sections. *adk.Narrator satisfies it.
type Narrator interface {
	AuditNarrative(ctx context.Context, in adk.NarrativeInput) (string, error)
	SEOFixes(ctx context.Context, in adk.SEOFixInput) (string, error)
	WebsiteStrategy(ctx context.Context, name, location, reviews string) (string, error)
}

// Renderer writes documents. *report.Renderer satisfies it.
type Renderer interface {
	RenderAudit(doc report.AuditDocument) (string, error)
	RenderStrategy(doc report.StrategyDocument) (string, error)
}

// Pipeline runs a scan end to end: identity, facts, score, findings, narrative, report.
type Pipeline struct {
	Resolver  Resolver
	Assembler Assembler
	Narrator  Narrator
	Renderer  Renderer
	Mirror    report.Mirror
	Policy    engine.Policy
	Catalog   *engine.RemediationCatalog
	newID     func() string
}

// Run executes one scan. Collaborator outages, discovery included, become warnings
// on the result. The returned error is non-nil for an invalid request or a
// *report.RenderError; in the last case the result is still complete.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	res := &Result{ScanID: p.scanID()}

	id, err := p.identity(ctx, req)
	if err != nil {
		res.LookupFailed = true
		res.warn("website lookup unavailable, continuing without a website: %v", err)
	}
	res.Identity = id
	logger.Debugf("scan %s: identity %+v", res.ScanID, id)

	if !id.HasWebsite() {
		return p.strategy(ctx, req, res)
	}

	res.Facts = p.Assembler.Assemble(ctx, id)
	for _, c := range engine.Categories {
		if reason, ok := res.Facts.Unavailable[c]; ok {
			logger.Debugf("scan %s: %s unavailable (%s)", res.ScanID, c, reason)
		}
	}
	res.Score = p.Policy.Score(res.Facts)
	res.Findings = engine.FindingsWithCatalog(res.Facts, p.Policy, p.catalog())

	narrative, err := p.Narrator.AuditNarrative(ctx, adk.NarrativeInput{
		Identity: id,
		Score:    res.Score,
		Facts:    res.Facts,
		Findings: res.Findings,
	})
	if err != nil {
		res.warn("narrative unavailable, using fallback text: %v", err)
	}
	res.Narrative = narrative

	if adk.NeedsSEOFixes(res.Facts) {
		fixes, err := p.Narrator.SEOFixes(ctx, adk.SEOFixInput{
			Identity:    id,
			Title:       res.Facts.SEO.Title,
			Description: res.Facts.SEO.Description,
		})
		if err != nil {
			res.warn("SEO fixes unavailable: %v", err)
		}
		res.SEOFixes = fixes
	}

	if req.NoReport || p.Renderer == nil {
		return res, nil
	}
	path, err := p.Renderer.RenderAudit(report.AuditDocument{
		ScanID:    res.ScanID,
		Identity:  id,
		Facts:     res.Facts,
		Score:     res.Score,
		Findings:  res.Findings,
		Narrative: res.Narrative,
		SEOFixes:  res.SEOFixes,
	})
	if err != nil {
		return res, err
	}
	res.ReportPath = path
	p.mirror(ctx, res)
	return res, nil
}

func (p *Pipeline) identity(ctx context.Context, req Request) (engine.Identity, error) {
	id := engine.Identity{
		DisplayName: strings.TrimSpace(req.Name),
		Location:    strings.TrimSpace(req.Location),
		Industry:    strings.TrimSpace(req.Industry),
	}
	if u := strings.TrimSpace(req.URL); u != "" {
		id.URL = u
		if id.DisplayName == "" {
			id.DisplayName = DirectAuditName
		}
		return id, nil
	}
	if p.Resolver == nil {
		return id, fmt.Errorf("discovery not configured")
	}
	u, err := p.Resolver.ResolveURL(ctx, id.DisplayName, id.Location)
	if err != nil {
		return id, fmt.Errorf("resolve %s: %w", id.DisplayName, err)
	}
	id.URL = u
	return id, nil
}

func (p *Pipeline) strategy(ctx context.Context, req Request, res *Result) (*Result, error) {
	res.NoWebsite = true
	strategy, err := p.Narrator.WebsiteStrategy(ctx, res.Identity.DisplayName, res.Identity.Location, req.Reviews)
	if err != nil {
		res.warn("strategy unavailable, using fallback text: %v", err)
	}
	res.Strategy = strategy

	if req.NoReport || p.Renderer == nil {
		return res, nil
	}
	path, err := p.Renderer.RenderStrategy(report.StrategyDocument{
		ScanID:   res.ScanID,
		Identity: res.Identity,
		Strategy: strategy,
	})
	if err != nil {
		return res, err
	}
	res.ReportPath = path
	p.mirror(ctx, res)
	return res, nil
}

func (p *Pipeline) mirror(ctx context.Context, res *Result) {
	if p.Mirror == nil {
		return
	}
	url, err := p.Mirror.Upload(ctx, res.ScanID, res.ReportPath)
	if err != nil {
		res.warn("report mirror failed: %v", err)
		return
	}
	res.MirrorURL = url
}

func (p *Pipeline) scanID() string {
	if p.newID != nil {
		return p.newID()
	}
	return uuid.NewString()
}

func (p *Pipeline) catalog() *engine.RemediationCatalog {
	if p.Catalog != nil {
		return p.Catalog
	}
	return engine.DefaultCatalog()
}
