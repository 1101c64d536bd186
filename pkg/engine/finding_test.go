package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/leadscope/pkg/probe"
)

func findingByID(findings []Finding, id string) *Finding {
	for i := range findings {
		if findings[i].ID == id {
			return &findings[i]
		}
	}
	return nil
}

func TestFindingsHealthyBundle(t *testing.T) {
	b := healthyBundle()
	b.Robots = probe.Robots{Present: true, Sitemaps: []string{"https://acme.test/sitemap.xml"}}
	assert.Empty(t, Findings(b, DefaultPolicy()))
}

func TestFindingsCarryDeductions(t *testing.T) {
	b := healthyBundle()
	b.Robots = probe.Robots{Present: true, Sitemaps: []string{"https://acme.test/sitemap.xml"}}
	b.TLSValid = false
	b.EmailAuth[probe.RecordDMARC] = probe.Missing
	b.OpenPorts[22] = probe.Open
	b.OpenPorts[3389] = probe.Open
	b.SEO.Title = ""

	policy := DefaultPolicy()
	findings := Findings(b, policy)

	total := 0
	for _, f := range findings {
		total += f.Deduction
		assert.NotEmpty(t, f.RemediationHint, f.ID)
		assert.NotEmpty(t, f.ComplianceList, f.ID)
		assert.GreaterOrEqual(t, f.Severity, 1)
		assert.LessOrEqual(t, f.Severity, 10)
	}
	assert.Equal(t, 100-policy.Score(b).Score, total)

	tls := findingByID(findings, CodeTLSInvalid)
	require.NotNil(t, tls)
	assert.Equal(t, 30, tls.Deduction)
	assert.Contains(t, tls.RemediationHint, "acme.test")

	dmarc := findingByID(findings, CodeDMARCMissing)
	require.NotNil(t, dmarc)
	assert.Equal(t, "_dmarc.acme.test", dmarc.Asset)

	title := findingByID(findings, CodeTitleMissing)
	require.NotNil(t, title)
	assert.Zero(t, title.Deduction, "a missing title is reported but not scored")

	rdp := findingByID(findings, CodeSensitivePortOpen+":3389")
	require.NotNil(t, rdp)
	assert.Contains(t, rdp.RemediationHint, "3389")
	assert.Contains(t, rdp.RemediationHint, "CRITICAL", "open port on a host without TLS is escalated")
	assert.Equal(t, 10, rdp.Severity)

	assert.Equal(t, 10, findings[0].Severity, "findings are sorted by severity")
}

func TestFindingsSkipUnavailableCategories(t *testing.T) {
	findings := Findings(unavailableBundle(), DefaultPolicy())
	assert.Empty(t, findings)
}

func TestFindingsRobots(t *testing.T) {
	b := healthyBundle()
	findings := Findings(b, DefaultPolicy())
	require.Len(t, findings, 1)
	assert.Equal(t, CodeRobotsMissing, findings[0].Code)

	b.Robots = probe.Robots{Present: true}
	findings = Findings(b, DefaultPolicy())
	require.Len(t, findings, 1)
	assert.Equal(t, CodeSitemapMissing, findings[0].Code)
}

func TestFindingSetDeduplicatesAndClamps(t *testing.T) {
	set := NewFindingSet()
	set.Add(Finding{ID: "a", Code: "x", Severity: 0})
	set.Add(Finding{ID: "a", Code: "x", Severity: 42, Evidence: "latest"})
	set.Add(Finding{ID: "b", Code: "y", Severity: 3})

	sorted := set.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, "a", sorted[0].ID)
	assert.Equal(t, 10, sorted[0].Severity)
	assert.Equal(t, "latest", sorted[0].Evidence)

	report := set.Report()
	assert.Contains(t, report, "Audit Findings (2)")
	assert.Contains(t, report, "[10/10] x")
}

func TestEscalationAppliesOnce(t *testing.T) {
	set := NewFindingSet()
	set.Add(
		Finding{ID: CodeTLSInvalid, Code: CodeTLSInvalid, Severity: 8},
		Finding{ID: CodeSensitivePortOpen + ":22", Code: CodeSensitivePortOpen, Severity: 5, RemediationHint: "close it"},
	)
	set.Add(Finding{ID: "other", Code: "other", Severity: 1})

	port := findingByID(set.Sorted(), CodeSensitivePortOpen+":22")
	require.NotNil(t, port)
	assert.Equal(t, 7, port.Severity)
}

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	for _, code := range []string{
		CodeTLSInvalid, CodeHeadersMissing, CodeSPFMissing, CodeDMARCMissing, CodeSensitivePortOpen,
		CodeDescriptionMissing, CodeH1Missing, CodeTitleMissing, CodeViewportMissing,
		CodeRobotsMissing, CodeSitemapMissing,
	} {
		tmpl, ok := catalog.Templates[code]
		require.True(t, ok, code)
		assert.Positive(t, tmpl.Severity, code)
	}
	assert.Len(t, catalog.ListTemplates(), len(catalog.Templates))
}

func TestGeneratePlan(t *testing.T) {
	catalog := DefaultCatalog()

	plan, err := catalog.GeneratePlan(CodeSPFMissing, map[string]string{"Domain": "acme.test"})
	require.NoError(t, err)
	assert.Contains(t, plan, "[FIX PLAN]")
	assert.Contains(t, plan, `acme.test.  IN TXT  "v=spf1`)
	assert.Contains(t, plan, "RFC 7208")

	_, err = catalog.GeneratePlan(CodeSensitivePortOpen, map[string]string{"Domain": "acme.test"})
	assert.ErrorContains(t, err, "missing required variable: Port")

	_, err = catalog.GeneratePlan("nope", nil)
	assert.ErrorContains(t, err, "template not found")
}
