package adk

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 2048
)

type AnthropicProvider struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	return &AnthropicProvider{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    defaultAnthropicBaseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *AnthropicProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{
		"claude-sonnet-4-5",
		"claude-opus-4-5",
		"claude-haiku-4-5",
	}, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type  string                 `json:"type"`
		Text  string                 `json:"text"`
		Name  string                 `json:"name"`
		Input map[string]interface{} `json:"input"`
	} `json:"content"`
}

// GenerateResponse calls the messages endpoint. Consecutive turns with the same role
// are merged since the API requires alternating user/assistant turns.
func (p *AnthropicProvider) GenerateResponse(ctx context.Context, history []Message, tools []Tool) (string, *ToolCall, error) {
	body := anthropicRequest{Model: p.Model, MaxTokens: anthropicMaxTokens}
	for _, msg := range history {
		if msg.Role == "system" {
			body.System = strings.TrimSpace(body.System + "\n\n" + msg.Content)
			continue
		}
		role := "user"
		if msg.Role == "model" {
			role = "assistant"
		}
		if n := len(body.Messages); n > 0 && body.Messages[n-1].Role == role {
			body.Messages[n-1].Content += "\n\n" + msg.Content
			continue
		}
		if len(body.Messages) == 0 && role == "assistant" {
			continue
		}
		body.Messages = append(body.Messages, anthropicMessage{Role: role, Content: msg.Content})
	}
	if len(body.Messages) == 0 {
		return "", nil, fmt.Errorf("anthropic %s: empty history", p.Model)
	}
	for _, t := range tools {
		body.Tools = append(body.Tools, anthropicTool{Name: t.Name(), Description: t.Description(), InputSchema: t.Schema()})
	}

	var out anthropicResponse
	if err := postJSON(ctx, p.HTTPClient, p.BaseURL+"/v1/messages", map[string]string{
		"x-api-key":         p.APIKey,
		"anthropic-version": anthropicVersion,
	}, body, &out); err != nil {
		return "", nil, fmt.Errorf("anthropic %s: %w", p.Model, err)
	}

	var text strings.Builder
	var toolCall *ToolCall
	for _, block := range out.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			if toolCall == nil {
				toolCall = &ToolCall{ToolName: block.Name, Args: block.Input}
			}
		}
	}
	if toolCall == nil && strings.TrimSpace(text.String()) == "" {
		return "", nil, fmt.Errorf("anthropic %s: empty response", p.Model)
	}
	return text.String(), toolCall, nil
}
