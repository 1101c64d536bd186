package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/user/leadscope/pkg/adk"
	"github.com/user/leadscope/pkg/engine"
	"github.com/user/leadscope/pkg/pipeline"
)

// Auditor runs an audit. *pipeline.Pipeline satisfies it.
type Auditor interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// CompetitorFinder lists rivals. *discovery.Finder satisfies it.
type CompetitorFinder interface {
	FindCompetitors(ctx context.Context, id engine.Identity) ([]engine.Competitor, error)
}

// Session remembers the most recent audit so later tools can refer to it.
type Session struct {
	mu   sync.RWMutex
	last *pipeline.Result
}

func (s *Session) set(res *pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = res
}

// Last returns the most recent audit result, or nil.
func (s *Session) Last() *pipeline.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Register adds every audit tool to the agent.
func Register(a *adk.Agent, auditor Auditor, finder CompetitorFinder, catalog *engine.RemediationCatalog) *Session {
	session := &Session{}
	a.RegisterTool(&AuditTool{Auditor: auditor, Session: session})
	a.RegisterTool(&CompetitorTool{Finder: finder})
	a.RegisterTool(&FindingsTool{Session: session})
	a.RegisterTool(&RemediationTool{Catalog: catalog, Session: session})
	return session
}

func stringArg(args map[string]interface{}, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}
