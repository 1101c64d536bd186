package tools

import (
	"context"

	"github.com/user/leadscope/pkg/engine"
)

// FindingsTool implements the Tool interface for viewing the last audit's findings
type FindingsTool struct {
	Session *Session
}

func (t *FindingsTool) Name() string {
	return "ShowFindings"
}

func (t *FindingsTool) Description() string {
	return "Displays every finding from the most recent audit, with severity, evidence, score impact and remediation hint."
}

func (t *FindingsTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *FindingsTool) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	res := t.Session.Last()
	if res == nil {
		return "No audit has been run yet. Use RunWebsiteAudit first.", nil
	}
	if res.NoWebsite {
		return "The last target has no website, so there are no technical findings.", nil
	}

	set := engine.NewFindingSet()
	set.Add(res.Findings...)
	return set.Report(), nil
}
