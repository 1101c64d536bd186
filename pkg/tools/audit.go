package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/user/leadscope/pkg/engine"
	"github.com/user/leadscope/pkg/pipeline"
	"github.com/user/leadscope/pkg/probe"
)

const summaryFindings = 5

// AuditTool implements the Tool interface for a full website audit
type AuditTool struct {
	Auditor Auditor
	Session *Session
}

func (t *AuditTool) Name() string {
	return "RunWebsiteAudit"
}

func (t *AuditTool) Description() string {
	return "Runs a full digital audit of a website: TLS, security headers, SPF/DMARC, exposed ports, SEO, tech stack, contacts and socials. Returns the score, tier and top findings and writes a PDF report."
}

func (t *AuditTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Website URL or bare domain to audit",
			},
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Business name, used in the report title",
			},
		},
		"required": []string{"url"},
	}
}

func (t *AuditTool) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	if t.Auditor == nil {
		return "Error: audit pipeline not initialized.", nil
	}
	target := stringArg(args, "url")
	// some models send a single free-form "args" string
	if target == "" {
		target = stringArg(args, "args")
	}
	if target == "" {
		return "Error: url argument is required. Please specify a website or domain.", nil
	}

	if progress != nil {
		progress(fmt.Sprintf("Auditing %s...", target))
	}
	res, err := t.Auditor.Run(ctx, pipeline.Request{URL: target, Name: stringArg(args, "name")})
	if res == nil {
		return fmt.Sprintf("Audit failed: %v", err), nil
	}
	t.Session.set(res)

	out := Summarize(res)
	if err != nil {
		out += fmt.Sprintf("\nReport could not be written: %v\n", err)
	}
	return out, nil
}

// Summarize renders an audit result as plain text.
func Summarize(res *pipeline.Result) string {
	var sb strings.Builder
	b := res.Facts

	sb.WriteString(fmt.Sprintf("Audit of %s (%s)\n", res.Identity.DisplayName, engine.Display(res.Identity.URL)))
	sb.WriteString(fmt.Sprintf("Scan ID: %s\n", res.ScanID))
	if res.NoWebsite {
		if res.LookupFailed {
			sb.WriteString("Website lookup failed; no site could be confirmed.\n\n")
		} else {
			sb.WriteString("No website found.\n\n")
		}
		sb.WriteString(res.Strategy + "\n")
		writeWarnings(&sb, res.Warnings)
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("Score: %d/100 (%s)\n", res.Score.Score, res.Score.Tier))
	sb.WriteString("--------------------------------------------------\n")

	fact := func(label string, c engine.Category, value string) {
		if !b.Known(c) {
			value = "unknown (" + string(b.Unavailable[c]) + ")"
		}
		sb.WriteString(fmt.Sprintf("%-18s %s\n", label+":", value))
	}
	fact("TLS valid", engine.CategoryTLS, fmt.Sprint(b.TLSValid))
	fact("Missing headers", engine.CategoryHeaders, listOr(b.MissingHeaders(), "none"))
	fact("Email auth", engine.CategoryEmailAuth, fmt.Sprintf("SPF %s, DMARC %s",
		engine.DisplayPresence(b.EmailAuth, probe.RecordSPF), engine.DisplayPresence(b.EmailAuth, probe.RecordDMARC)))
	fact("Open ports", engine.CategoryPorts, openPorts(b.OpenPorts))
	fact("Title", engine.CategorySEO, engine.Display(b.SEO.Title))
	fact("Description", engine.CategorySEO, engine.Display(b.SEO.Description))
	fact("Tech stack", engine.CategoryTech, listOr(b.TechStack, "none detected"))
	fact("Emails", engine.CategoryEmails, listOr(b.ContactEmails, "none"))

	if len(res.Findings) > 0 {
		sb.WriteString("\nTop findings:\n")
		for i, f := range res.Findings {
			if i == summaryFindings {
				sb.WriteString(fmt.Sprintf("... and %d more (use ShowFindings)\n", len(res.Findings)-summaryFindings))
				break
			}
			sb.WriteString(fmt.Sprintf("[%d/10] %s: %s\n", f.Severity, f.Code, f.Evidence))
		}
	}
	writeWarnings(&sb, res.Warnings)
	if res.ReportPath != "" {
		sb.WriteString("\nReport: " + res.ReportPath + "\n")
	}
	return sb.String()
}

func writeWarnings(sb *strings.Builder, warnings []string) {
	for _, w := range warnings {
		sb.WriteString("Warning: " + w + "\n")
	}
}

func listOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

func openPorts(ports map[int]probe.PortState) string {
	var open []string
	keys := make([]int, 0, len(ports))
	for p := range ports {
		keys = append(keys, p)
	}
	sort.Ints(keys)
	for _, p := range keys {
		if ports[p] == probe.Open {
			open = append(open, fmt.Sprint(p))
		}
	}
	return listOr(open, "none")
}
