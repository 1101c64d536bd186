package pipeline

import (
	"context"
	"net/http"

	"github.com/user/leadscope/pkg/adk"
	"github.com/user/leadscope/pkg/config"
	"github.com/user/leadscope/pkg/discovery"
	"github.com/user/leadscope/pkg/engine"
	"github.com/user/leadscope/pkg/logger"
	"github.com/user/leadscope/pkg/probe"
	"github.com/user/leadscope/pkg/report"
)

// Components are the collaborators built from configuration, exposed so the CLI and
// the agent tools can use discovery and the narrator on their own.
type Components struct {
	Pipeline *Pipeline
	Finder   *discovery.Finder
	Chain    *adk.Chain
	Prober   *probe.Prober
}

// FromConfig wires every collaborator from cfg.
func FromConfig(ctx context.Context, cfg *config.Config) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	search, err := discovery.NewProvider(cfg.Search)
	if err != nil {
		return nil, err
	}
	finder := discovery.NewFinder(search, cfg.Search.CompetitorCap)

	fetcher := probe.NewFetcher(&http.Client{Timeout: cfg.Scan.ProbeTimeout}, cfg.Scan.UserAgent, cfg.Scan.RequestsPerSecond)
	prober := probe.New(fetcher, nil, nil, probe.Options{
		ProbeTimeout:  cfg.Scan.ProbeTimeout,
		HeaderTimeout: cfg.Scan.HeaderTimeout,
		TLSTimeout:    cfg.Scan.TLSTimeout,
		PortTimeout:   cfg.Scan.PortTimeout,
		DNSTimeout:    cfg.Scan.DNSTimeout,
	})
	assembler := engine.NewAssembler(prober, finder.Source(), cfg.Scan.Workers, cfg.Scan.ProbeDeadline)

	chain := adk.ChainFromConfig(ctx, cfg)
	if len(chain.Names()) == 0 {
		logger.Warnf("no narrative provider has an API key; reports will use fallback text")
	} else {
		logger.Debugf("narrative backends: %v", chain.Names())
	}

	p := &Pipeline{
		Resolver:  finder,
		Assembler: assembler,
		Narrator:  adk.NewNarrator(chain),
		Renderer:  report.NewRenderer(cfg.Report.OutputDir, cfg.Scoring.SensitivePorts),
		Policy:    cfg.Scoring,
		Catalog:   engine.DefaultCatalog(),
	}
	if cfg.Report.Bucket != "" {
		store, err := report.NewS3Store(cfg.Report)
		if err != nil {
			logger.Warnf("report mirroring disabled: %v", err)
		} else {
			p.Mirror = store
		}
	}

	return &Components{Pipeline: p, Finder: finder, Chain: chain, Prober: prober}, nil
}
