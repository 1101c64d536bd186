package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/user/leadscope/pkg/probe"
)

// Finding represents a normalized audit observation derived from the fact bundle
type Finding struct {
	ID              string   `json:"id"`
	Code            string   `json:"code"`
	SourceProbe     string   `json:"source_probe"`
	Category        Category `json:"category"`
	Severity        int      `json:"severity"` // normalized 1-10
	Asset           string   `json:"asset"`    // hostname / host:port / mail domain
	Evidence        string   `json:"evidence"`
	Deduction       int      `json:"deduction,omitempty"`
	RemediationHint string   `json:"remediation_hint"`
	ComplianceList  []string `json:"compliance_mapping"`
}

// FindingSet holds findings for one audit, deduplicated by ID
type FindingSet struct {
	Findings []Finding
	mu       sync.RWMutex
}

// NewFindingSet creates an empty set
func NewFindingSet() *FindingSet {
	return &FindingSet{Findings: make([]Finding, 0)}
}

// Add ingests findings, clamps severity, replaces any finding with the same ID and
// re-runs escalation.
func (s *FindingSet) Add(findings ...Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range findings {
		f.Severity = clampSeverity(f.Severity)

		exists := false
		for i, existing := range s.Findings {
			if existing.ID == f.ID {
				s.Findings[i] = f
				exists = true
				break
			}
		}
		if !exists {
			s.Findings = append(s.Findings, f)
		}
	}
	s.escalate()
}

// escalate raises exposed sensitive services on a host that also lacks valid TLS.
func (s *FindingSet) escalate() {
	noTLS := false
	for _, f := range s.Findings {
		if f.Code == CodeTLSInvalid {
			noTLS = true
			break
		}
	}
	if !noTLS {
		return
	}
	const note = " [CRITICAL: exposed service on a host without valid TLS]"
	for i, f := range s.Findings {
		if f.Code == CodeSensitivePortOpen && !strings.HasSuffix(f.RemediationHint, note) {
			s.Findings[i].Severity = clampSeverity(f.Severity + 2)
			s.Findings[i].RemediationHint += note
		}
	}
}

// Sorted returns a copy ordered by severity (highest first), then ID.
func (s *FindingSet) Sorted() []Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]Finding(nil), s.Findings...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Report returns a text summary of the findings
func (s *FindingSet) Report() string {
	findings := s.Sorted()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Audit Findings (%d):\n", len(findings)))
	sb.WriteString("--------------------------------------------------\n")
	for _, f := range findings {
		sb.WriteString(fmt.Sprintf("[%d/10] %s (%s)\n", f.Severity, f.Code, f.SourceProbe))
		sb.WriteString(fmt.Sprintf("  Asset: %s\n", f.Asset))
		sb.WriteString(fmt.Sprintf("  Evidence: %s\n", f.Evidence))
		if f.Deduction > 0 {
			sb.WriteString(fmt.Sprintf("  Score impact: -%d\n", f.Deduction))
		}
		if f.RemediationHint != "" {
			sb.WriteString(fmt.Sprintf("  Fix: %s\n", f.RemediationHint))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Findings derives the adverse observations in a bundle, annotated with the score
// impact each carried under the policy and a remediation hint from the catalog.
func Findings(b FactBundle, p Policy) []Finding {
	return FindingsWithCatalog(b, p, DefaultCatalog())
}

// FindingsWithCatalog is Findings with an explicit remediation catalog.
func FindingsWithCatalog(b FactBundle, p Policy, catalog *RemediationCatalog) []Finding {
	host := b.Host()
	mailDomain := probe.MailDomain(b.Identity.URL)
	if mailDomain == "" {
		mailDomain = host
	}

	var raw []Finding
	add := func(code, source string, cat Category, asset, evidence string, vars map[string]string) {
		id := code
		if port, ok := vars["Port"]; ok {
			id = code + ":" + port
		}
		f := Finding{
			ID:          id,
			Code:        code,
			SourceProbe: source,
			Category:    cat,
			Asset:       asset,
			Evidence:    evidence,
		}
		if catalog != nil {
			if t, ok := catalog.Templates[code]; ok {
				f.Severity = t.Severity
				if t.Standard != "" {
					f.ComplianceList = []string{t.Standard}
				}
				hint, err := catalog.Hint(code, vars)
				if err == nil {
					f.RemediationHint = hint
				}
			}
		}
		raw = append(raw, f)
	}
	domainVars := map[string]string{"Domain": host}

	if b.Known(CategoryTLS) && !b.TLSValid {
		add(CodeTLSInvalid, "TLS", CategoryTLS, host+":443", "TLS handshake did not verify or port 443 refused", domainVars)
	}
	if b.Known(CategoryHeaders) {
		if missing := b.MissingHeaders(); len(missing) > 0 {
			add(CodeHeadersMissing, "Headers", CategoryHeaders, host, "missing "+strings.Join(missing, ", "), domainVars)
		}
	}
	if b.Known(CategoryEmailAuth) {
		mailVars := map[string]string{"Domain": mailDomain}
		if b.EmailAuth[probe.RecordSPF] == probe.Missing {
			add(CodeSPFMissing, "DNS", CategoryEmailAuth, mailDomain, "no TXT record starting with v=spf1", mailVars)
		}
		if b.EmailAuth[probe.RecordDMARC] == probe.Missing {
			add(CodeDMARCMissing, "DNS", CategoryEmailAuth, "_dmarc."+mailDomain, "no TXT record starting with v=DMARC1", mailVars)
		}
	}
	if b.Known(CategoryPorts) {
		for _, port := range b.OpenSensitivePorts(p.sensitivePorts()) {
			vars := map[string]string{"Domain": host, "Port": fmt.Sprint(port)}
			add(CodeSensitivePortOpen, "Ports", CategoryPorts, fmt.Sprintf("%s:%d", host, port), fmt.Sprintf("%d/tcp open", port), vars)
		}
	}
	if b.Known(CategorySEO) {
		if strings.TrimSpace(b.SEO.Title) == "" {
			add(CodeTitleMissing, "SEO", CategorySEO, host, "no <title> element", domainVars)
		}
		if strings.TrimSpace(b.SEO.Description) == "" {
			add(CodeDescriptionMissing, "SEO", CategorySEO, host, "no meta description", domainVars)
		}
		if strings.TrimSpace(b.SEO.H1) == "" {
			add(CodeH1Missing, "SEO", CategorySEO, host, "no <h1> heading", domainVars)
		}
		if !b.SEO.HasViewport {
			add(CodeViewportMissing, "SEO", CategorySEO, host, "no viewport meta tag", domainVars)
		}
	}
	if b.Known(CategoryRobots) {
		if !b.Robots.Present {
			add(CodeRobotsMissing, "Robots", CategoryRobots, host+"/robots.txt", "robots.txt not found", domainVars)
		} else if len(b.Robots.Sitemaps) == 0 {
			add(CodeSitemapMissing, "Robots", CategoryRobots, host+"/robots.txt", "robots.txt declares no sitemap", domainVars)
		}
	}

	// Attach each deduction to the first finding of its code not yet charged.
	for _, d := range p.Deductions(b) {
		for i := range raw {
			if raw[i].Code == d.Code && raw[i].Deduction == 0 {
				raw[i].Deduction = d.Points
				break
			}
		}
	}

	set := NewFindingSet()
	set.Add(raw...)
	return set.Sorted()
}

func clampSeverity(s int) int {
	if s < 1 {
		return 1
	}
	if s > 10 {
		return 10
	}
	return s
}
