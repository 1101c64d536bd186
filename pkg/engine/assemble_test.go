package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/leadscope/pkg/probe"
)

// stubProbes returns fixed results; every call passes through track.
type stubProbes struct {
	tls     probe.Result[bool]
	headers probe.Result[map[string]probe.Presence]
	email   probe.Result[map[string]probe.Presence]
	ports   probe.Result[map[int]probe.PortState]
	seo     probe.Result[probe.SEO]
	tech    probe.Result[[]string]
	emails  probe.Result[[]string]
	socials probe.Result[map[string]string]
	robots  probe.Result[probe.Robots]

	hang     chan struct{} // when set, TLS blocks on it ignoring ctx
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (s *stubProbes) track() func() {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	for {
		cur := s.maxSeen.Load()
		if n <= cur || s.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return func() { s.inFlight.Add(-1) }
}

func (s *stubProbes) TLS(ctx context.Context, url string) probe.Result[bool] {
	defer s.track()()
	if s.hang != nil {
		<-s.hang
	}
	return s.tls
}

func (s *stubProbes) SecurityHeaders(ctx context.Context, url string) probe.Result[map[string]probe.Presence] {
	defer s.track()()
	return s.headers
}

func (s *stubProbes) EmailAuth(ctx context.Context, url string) probe.Result[map[string]probe.Presence] {
	defer s.track()()
	return s.email
}

func (s *stubProbes) Ports(ctx context.Context, url string) probe.Result[map[int]probe.PortState] {
	defer s.track()()
	return s.ports
}

func (s *stubProbes) SEOMetadata(ctx context.Context, url string) probe.Result[probe.SEO] {
	defer s.track()()
	return s.seo
}

func (s *stubProbes) TechStack(ctx context.Context, url string) probe.Result[[]string] {
	defer s.track()()
	return s.tech
}

func (s *stubProbes) ContactEmails(ctx context.Context, url string) probe.Result[[]string] {
	defer s.track()()
	return s.emails
}

func (s *stubProbes) SocialLinks(ctx context.Context, url string) probe.Result[map[string]string] {
	defer s.track()()
	return s.socials
}

func (s *stubProbes) RobotsTxt(ctx context.Context, url string) probe.Result[probe.Robots] {
	defer s.track()()
	return s.robots
}

func failingProbes(r probe.Reason) *stubProbes {
	return &stubProbes{
		tls:     probe.Unavailable[bool](r),
		headers: probe.Unavailable[map[string]probe.Presence](r),
		email:   probe.Unavailable[map[string]probe.Presence](r),
		ports:   probe.Unavailable[map[int]probe.PortState](r),
		seo:     probe.Unavailable[probe.SEO](r),
		tech:    probe.Unavailable[[]string](r),
		emails:  probe.Unavailable[[]string](r),
		socials: probe.Unavailable[map[string]string](r),
		robots:  probe.Unavailable[probe.Robots](r),
	}
}

func okProbes() *stubProbes {
	return &stubProbes{
		tls:     probe.Ok(true),
		headers: probe.Ok(map[string]probe.Presence{probe.HeaderFrameOptions: probe.Present, probe.HeaderHSTS: probe.Missing, probe.HeaderCSP: probe.Present}),
		email:   probe.Ok(map[string]probe.Presence{probe.RecordSPF: probe.Present, probe.RecordDMARC: probe.Present}),
		ports:   probe.Ok(map[int]probe.PortState{22: probe.Closed, 443: probe.Open}),
		seo:     probe.Ok(probe.SEO{Title: "Acme", Description: "Pipes", H1: "Acme", HasViewport: true}),
		tech:    probe.Ok([]string{"WordPress"}),
		emails:  probe.Ok([]string{"info@acme.test"}),
		socials: probe.Ok(map[string]string{"facebook": "https://facebook.com/acme"}),
		robots:  probe.Ok(probe.Robots{Present: true, AllowsCrawl: true}),
	}
}

func competitorsOK(list ...Competitor) CompetitorSource {
	return func(ctx context.Context, id Identity) probe.Result[[]Competitor] {
		return probe.Ok(list)
	}
}

func TestAssembleCollectsEveryCategory(t *testing.T) {
	rival := Competitor{Name: "Rival Plumbing", URL: "https://rival.test"}
	a := NewAssembler(okProbes(), competitorsOK(rival), 4, time.Second)

	b := a.Assemble(context.Background(), Identity{DisplayName: "Acme", URL: "acme.test"})

	assert.Empty(t, b.Unavailable)
	assert.True(t, b.TLSValid)
	assert.Equal(t, probe.Missing, b.SecurityHeaders[probe.HeaderHSTS])
	assert.Equal(t, []string{"WordPress"}, b.TechStack)
	assert.Equal(t, []Competitor{rival}, b.Competitors)
	assert.True(t, b.Robots.Present)
	assert.False(t, b.CollectedAt.IsZero())
	assert.Equal(t, 90, Score(b).Score)
}

func TestAssembleNormalizesUnavailable(t *testing.T) {
	failedCompetitors := func(ctx context.Context, id Identity) probe.Result[[]Competitor] {
		return probe.Unavailable[[]Competitor](probe.NetworkError)
	}
	a := NewAssembler(failingProbes(probe.NetworkError), failedCompetitors, 4, time.Second)

	b := a.Assemble(context.Background(), Identity{DisplayName: "Acme", URL: "https://acme.test"})

	assert.Len(t, b.Unavailable, len(Categories))
	assert.False(t, b.TLSValid)
	assert.NotNil(t, b.SecurityHeaders)
	assert.NotNil(t, b.EmailAuth)
	assert.NotNil(t, b.OpenPorts)
	assert.NotNil(t, b.TechStack)
	assert.NotNil(t, b.ContactEmails)
	assert.NotNil(t, b.SocialLinks)
	assert.NotNil(t, b.Competitors)
	assert.Equal(t, MissingText, Display(b.SEO.Title))

	res := Score(b)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, TierExcellent, res.Tier)
}

func TestAssembleWithoutURLSkipsSiteProbes(t *testing.T) {
	probes := okProbes()
	a := NewAssembler(probes, nil, 4, time.Second)

	b := a.Assemble(context.Background(), Identity{DisplayName: "Corner Bakery"})

	assert.Equal(t, int32(0), probes.calls.Load())
	assert.Len(t, b.Unavailable, len(Categories))
	assert.Equal(t, probe.NotFound, b.Unavailable[CategoryTLS])
}

func TestAssembleAbandonsHungProbe(t *testing.T) {
	probes := okProbes()
	probes.hang = make(chan struct{})
	defer close(probes.hang)

	a := NewAssembler(probes, competitorsOK(), 4, 50*time.Millisecond)
	start := time.Now()
	b := a.Assemble(context.Background(), Identity{DisplayName: "Acme", URL: "https://acme.test"})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, probe.Timeout, b.Unavailable[CategoryTLS])
	assert.True(t, b.Known(CategoryHeaders))
	assert.Equal(t, 90, Score(b).Score, "only the missing header is charged")
}

func TestAssembleHonorsWorkerCap(t *testing.T) {
	probes := okProbes()
	a := NewAssembler(probes, competitorsOK(), 2, time.Second)

	a.Assemble(context.Background(), Identity{DisplayName: "Acme", URL: "https://acme.test"})

	assert.Equal(t, int32(9), probes.calls.Load())
	assert.LessOrEqual(t, probes.maxSeen.Load(), int32(2))
}

func TestAssembleRecoversPanickingProbe(t *testing.T) {
	panics := func(ctx context.Context, id Identity) probe.Result[[]Competitor] {
		panic("boom")
	}
	a := NewAssembler(okProbes(), panics, 4, time.Second)

	b := a.Assemble(context.Background(), Identity{DisplayName: "Acme", URL: "https://acme.test"})

	assert.False(t, b.Known(CategoryCompetitors))
	assert.True(t, b.Known(CategoryTLS))
}

func TestAssembleConcurrentScans(t *testing.T) {
	a := NewAssembler(okProbes(), competitorsOK(), 4, time.Second)
	var wg sync.WaitGroup
	results := make([]FactBundle, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.Assemble(context.Background(), Identity{DisplayName: "Acme", URL: "https://acme.test"})
		}(i)
	}
	wg.Wait()
	for _, b := range results {
		require.Empty(t, b.Unavailable)
	}
}
