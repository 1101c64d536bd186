package adk

import (
	"context"
	"fmt"

	"github.com/user/leadscope/pkg/logger"
)

// maxToolSteps bounds tool calls per user turn.
const maxToolSteps = 8

// Tool represents an executable action for the agent
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error)
	Schema() map[string]interface{} // JSON schema for arguments
}

// ToolCall represents a request from the LLM to execute a tool
type ToolCall struct {
	ToolName string
	Args     map[string]interface{}
}

// Message represents a chat message
type Message struct {
	Role    string // "user", "model", "system", "function"
	Content string
}

// LLMProvider defines the interface for different AI models
type LLMProvider interface {
	GenerateResponse(ctx context.Context, history []Message, tools []Tool) (string, *ToolCall, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Agent is the interactive tool-calling agent
type Agent struct {
	llm     LLMProvider
	tools   map[string]Tool
	order   []string
	history []Message
}

// NewAgent creates a new agent with the given LLM provider. The system prompt, if
// non-empty, opens the conversation.
func NewAgent(llm LLMProvider, systemPrompt string) *Agent {
	a := &Agent{
		llm:   llm,
		tools: make(map[string]Tool),
	}
	if systemPrompt != "" {
		a.history = append(a.history, Message{Role: "system", Content: systemPrompt})
	}
	return a
}

// RegisterTool adds a tool to the agent's registry
func (a *Agent) RegisterTool(t Tool) {
	if _, exists := a.tools[t.Name()]; !exists {
		a.order = append(a.order, t.Name())
	}
	a.tools[t.Name()] = t
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []Message {
	return append([]Message(nil), a.history...)
}

// Chat sends a message to the agent and returns the response
func (a *Agent) Chat(ctx context.Context, input string, progress func(string)) (string, error) {
	a.history = append(a.history, Message{Role: "user", Content: input})

	toolList := make([]Tool, 0, len(a.order))
	for _, name := range a.order {
		toolList = append(toolList, a.tools[name])
	}

	for step := 0; step < maxToolSteps; step++ {
		respText, toolCall, err := a.llm.GenerateResponse(ctx, a.history, toolList)
		if err != nil {
			return "", err
		}

		if toolCall == nil {
			a.history = append(a.history, Message{Role: "model", Content: respText})
			return respText, nil
		}

		logger.Debugf("Executing tool: %s with args: %v", toolCall.ToolName, toolCall.Args)

		a.history = append(a.history, Message{
			Role:    "model",
			Content: fmt.Sprintf("I will call tool %s with args %v", toolCall.ToolName, toolCall.Args),
		})

		tool, exists := a.tools[toolCall.ToolName]
		if !exists {
			a.history = append(a.history, Message{Role: "function", Content: fmt.Sprintf("Error: Tool %s not found", toolCall.ToolName)})
			continue
		}

		result, err := tool.Execute(ctx, toolCall.Args, progress)
		if err != nil {
			result = fmt.Sprintf("Error executing tool: %v", err)
		}

		a.history = append(a.history, Message{
			Role:    "function",
			Content: fmt.Sprintf("Tool %s returned: %s", toolCall.ToolName, result),
		})
	}
	return "", fmt.Errorf("agent stopped after %d tool calls without a final answer", maxToolSteps)
}
