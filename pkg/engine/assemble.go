package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/leadscope/pkg/logger"
	"github.com/user/leadscope/pkg/probe"
)

// Probes is the set of fact probes the assembler drives. *probe.Prober satisfies it.
type Probes interface {
	TLS(ctx context.Context, url string) probe.Result[bool]
	SecurityHeaders(ctx context.Context, url string) probe.Result[map[string]probe.Presence]
	EmailAuth(ctx context.Context, url string) probe.Result[map[string]probe.Presence]
	Ports(ctx context.Context, url string) probe.Result[map[int]probe.PortState]
	SEOMetadata(ctx context.Context, url string) probe.Result[probe.SEO]
	TechStack(ctx context.Context, url string) probe.Result[[]string]
	ContactEmails(ctx context.Context, url string) probe.Result[[]string]
	SocialLinks(ctx context.Context, url string) probe.Result[map[string]string]
	RobotsTxt(ctx context.Context, url string) probe.Result[probe.Robots]
}

// CompetitorSource lists rivals for an identity.
type CompetitorSource func(ctx context.Context, id Identity) probe.Result[[]Competitor]

const (
	DefaultWorkers       = 4
	DefaultProbeDeadline = 10 * time.Second
)

// Assembler runs every probe concurrently and builds a FactBundle.
type Assembler struct {
	probes      Probes
	competitors CompetitorSource
	workers     int
	deadline    time.Duration
	now         func() time.Time
}

// NewAssembler creates an assembler. workers bounds concurrent probes; deadline is the
// hard per-probe limit after which a probe that ignores its context is abandoned.
// A nil competitor source leaves competitors unavailable.
func NewAssembler(probes Probes, competitors CompetitorSource, workers int, deadline time.Duration) *Assembler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if deadline <= 0 {
		deadline = DefaultProbeDeadline
	}
	return &Assembler{
		probes:      probes,
		competitors: competitors,
		workers:     workers,
		deadline:    deadline,
		now:         time.Now,
	}
}

// Assemble probes the identity's URL and returns the normalized bundle. It never fails:
// each unreachable fact becomes its category default and is recorded in Unavailable.
func (a *Assembler) Assemble(ctx context.Context, id Identity) FactBundle {
	url := probe.NormalizeURL(id.URL)

	var (
		tlsRes     probe.Result[bool]
		headersRes probe.Result[map[string]probe.Presence]
		emailRes   probe.Result[map[string]probe.Presence]
		portsRes   probe.Result[map[int]probe.PortState]
		seoRes     probe.Result[probe.SEO]
		techRes    probe.Result[[]string]
		emailsRes  probe.Result[[]string]
		socialsRes probe.Result[map[string]string]
		robotsRes  probe.Result[probe.Robots]
		compRes    probe.Result[[]Competitor]
	)

	g := new(errgroup.Group)
	g.SetLimit(a.workers)

	if url == "" {
		tlsRes = probe.Unavailable[bool](probe.NotFound)
		headersRes = probe.Unavailable[map[string]probe.Presence](probe.NotFound)
		emailRes = probe.Unavailable[map[string]probe.Presence](probe.NotFound)
		portsRes = probe.Unavailable[map[int]probe.PortState](probe.NotFound)
		seoRes = probe.Unavailable[probe.SEO](probe.NotFound)
		techRes = probe.Unavailable[[]string](probe.NotFound)
		emailsRes = probe.Unavailable[[]string](probe.NotFound)
		socialsRes = probe.Unavailable[map[string]string](probe.NotFound)
		robotsRes = probe.Unavailable[probe.Robots](probe.NotFound)
	} else {
		g.Go(func() error {
			tlsRes = guard(ctx, a.deadline, CategoryTLS, url, a.probes.TLS)
			return nil
		})
		g.Go(func() error {
			headersRes = guard(ctx, a.deadline, CategoryHeaders, url, a.probes.SecurityHeaders)
			return nil
		})
		g.Go(func() error {
			emailRes = guard(ctx, a.deadline, CategoryEmailAuth, url, a.probes.EmailAuth)
			return nil
		})
		g.Go(func() error {
			portsRes = guard(ctx, a.deadline, CategoryPorts, url, a.probes.Ports)
			return nil
		})
		g.Go(func() error {
			seoRes = guard(ctx, a.deadline, CategorySEO, url, a.probes.SEOMetadata)
			return nil
		})
		g.Go(func() error {
			techRes = guard(ctx, a.deadline, CategoryTech, url, a.probes.TechStack)
			return nil
		})
		g.Go(func() error {
			emailsRes = guard(ctx, a.deadline, CategoryEmails, url, a.probes.ContactEmails)
			return nil
		})
		g.Go(func() error {
			socialsRes = guard(ctx, a.deadline, CategorySocials, url, a.probes.SocialLinks)
			return nil
		})
		g.Go(func() error {
			robotsRes = guard(ctx, a.deadline, CategoryRobots, url, a.probes.RobotsTxt)
			return nil
		})
	}

	if a.competitors == nil {
		compRes = probe.Unavailable[[]Competitor](probe.NotFound)
	} else {
		g.Go(func() error {
			compRes = guard(ctx, a.deadline, CategoryCompetitors, id, a.competitors)
			return nil
		})
	}

	// Tasks never return errors; Wait is the join barrier.
	_ = g.Wait()

	unavailable := make(map[Category]probe.Reason)
	b := FactBundle{
		Identity:        id,
		TLSValid:        settle(tlsRes, CategoryTLS, false, unavailable),
		SecurityHeaders: settle(headersRes, CategoryHeaders, map[string]probe.Presence{}, unavailable),
		EmailAuth:       settle(emailRes, CategoryEmailAuth, map[string]probe.Presence{}, unavailable),
		OpenPorts:       settle(portsRes, CategoryPorts, map[int]probe.PortState{}, unavailable),
		SEO:             settle(seoRes, CategorySEO, probe.SEO{}, unavailable),
		TechStack:       settle(techRes, CategoryTech, []string{}, unavailable),
		ContactEmails:   settle(emailsRes, CategoryEmails, []string{}, unavailable),
		SocialLinks:     settle(socialsRes, CategorySocials, map[string]string{}, unavailable),
		Competitors:     settle(compRes, CategoryCompetitors, []Competitor{}, unavailable),
		Robots:          settle(robotsRes, CategoryRobots, probe.Robots{}, unavailable),
		Unavailable:     unavailable,
		CollectedAt:     a.now().UTC(),
	}
	logger.Debugf("assembled facts for %s (%d/%d categories unavailable)", b.Host(), len(unavailable), len(Categories))
	return b
}

// guard runs one probe under a hard deadline. A probe that does not return in time is
// abandoned and reported as a timeout; its goroutine drains into a buffered channel.
func guard[A, T any](ctx context.Context, deadline time.Duration, cat Category, arg A, fn func(context.Context, A) probe.Result[T]) probe.Result[T] {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	done := make(chan probe.Result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Warnf("%s probe panicked: %v", cat, r)
				done <- probe.Unavailable[T](probe.ParseError)
			}
		}()
		done <- fn(ctx, arg)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		logger.Debugf("%s probe abandoned: %v", cat, ctx.Err())
		return probe.Unavailable[T](probe.Timeout)
	}
}

func settle[T any](r probe.Result[T], cat Category, def T, unavailable map[Category]probe.Reason) T {
	if v, ok := r.Get(); ok {
		return v
	}
	reason := r.Reason()
	if reason == "" {
		reason = probe.NetworkError
	}
	unavailable[cat] = reason
	return def
}
