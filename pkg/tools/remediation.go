package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/leadscope/pkg/engine"
	"github.com/user/leadscope/pkg/probe"
)

// RemediationTool implements the Tool interface for generating remediation plans
type RemediationTool struct {
	Catalog *engine.RemediationCatalog
	Session *Session
}

func (r *RemediationTool) Name() string {
	return "SuggestRemediation"
}

func (r *RemediationTool) Description() string {
	return "Generates a remediation plan (fix and validation steps) for a finding code such as tls_invalid or spf_missing. Omit the code to list available plans."
}

func (r *RemediationTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "The finding code to fix. If omitted, lists available plans.",
			},
			"domain": map[string]interface{}{
				"type":        "string",
				"description": "Domain the plan applies to. Defaults to the last audited site.",
			},
			"port": map[string]interface{}{
				"type":        "string",
				"description": "Port number, for sensitive_port_open",
			},
		},
	}
}

func (r *RemediationTool) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	if r.Catalog == nil {
		return "Error: Remediation catalog not initialized.", nil
	}

	code := stringArg(args, "code")
	if code == "" {
		code = stringArg(args, "template_id")
	}

	// Case 1: List templates
	if code == "" {
		templates := r.Catalog.ListTemplates()
		if len(templates) == 0 {
			return "No remediation templates found.", nil
		}
		return fmt.Sprintf("Available Remediation Plans:\n- %s", strings.Join(templates, "\n- ")), nil
	}

	// Case 2: Generate Plan
	// finding IDs like sensitive_port_open:3389 carry the port
	port := stringArg(args, "port")
	if base, suffix, ok := strings.Cut(code, ":"); ok {
		code = base
		if port == "" {
			port = suffix
		}
	}
	vars := map[string]string{
		"Domain": stringArg(args, "domain"),
		"Port":   port,
	}
	if vars["Domain"] == "" {
		vars["Domain"] = r.lastDomain()
	}

	if progress != nil {
		progress(fmt.Sprintf("Generating remediation plan for %s...", code))
	}
	plan, err := r.Catalog.GeneratePlan(code, vars)
	if err != nil {
		return fmt.Sprintf("Error generating plan: %v", err), nil
	}
	return plan, nil
}

func (r *RemediationTool) lastDomain() string {
	if r.Session == nil {
		return ""
	}
	if res := r.Session.Last(); res != nil {
		return probe.MailDomain(res.Identity.URL)
	}
	return ""
}
