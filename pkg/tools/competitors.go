package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/leadscope/pkg/engine"
)

// CompetitorTool implements the Tool interface for local competitor search
type CompetitorTool struct {
	Finder CompetitorFinder
}

func (t *CompetitorTool) Name() string {
	return "FindCompetitors"
}

func (t *CompetitorTool) Description() string {
	return "Finds local competitors of a business by industry and location. Excludes the business itself and its own website."
}

func (t *CompetitorTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Name of the business whose competitors to find",
			},
			"location": map[string]interface{}{
				"type":        "string",
				"description": "City or area, e.g. 'Austin, TX'",
			},
			"industry": map[string]interface{}{
				"type":        "string",
				"description": "Industry or business type, e.g. 'emergency plumber'",
			},
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The business's own website, excluded from results",
			},
		},
		"required": []string{"location", "industry"},
	}
}

func (t *CompetitorTool) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	if t.Finder == nil {
		return "Error: competitor search not configured.", nil
	}
	id := engine.Identity{
		DisplayName: stringArg(args, "name"),
		URL:         stringArg(args, "url"),
		Location:    stringArg(args, "location"),
		Industry:    stringArg(args, "industry"),
	}
	if id.Location == "" || id.Industry == "" {
		return "Error: location and industry are required.", nil
	}

	if progress != nil {
		progress(fmt.Sprintf("Searching for %s in %s...", id.Industry, id.Location))
	}
	found, err := t.Finder.FindCompetitors(ctx, id)
	if err != nil {
		return fmt.Sprintf("Competitor search failed: %v", err), nil
	}
	if len(found) == 0 {
		return fmt.Sprintf("No competitors found for %s in %s.", id.Industry, id.Location), nil
	}
	return FormatCompetitors(found), nil
}

// FormatCompetitors renders a ranked competitor list.
func FormatCompetitors(found []engine.Competitor) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Competitors (%d):\n", len(found)))
	for i, c := range found {
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, c.Name))
		if c.URL != "" {
			sb.WriteString(" - " + c.URL)
		}
		if c.Address != "" {
			sb.WriteString(" (" + c.Address + ")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
