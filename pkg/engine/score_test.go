package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/leadscope/pkg/probe"
)

// healthyBundle scores 100 under the default policy.
func healthyBundle() FactBundle {
	return FactBundle{
		Identity: Identity{DisplayName: "Acme", URL: "https://acme.test"},
		TLSValid: true,
		SecurityHeaders: map[string]probe.Presence{
			probe.HeaderFrameOptions: probe.Present,
			probe.HeaderHSTS:         probe.Present,
			probe.HeaderCSP:          probe.Present,
		},
		EmailAuth: map[string]probe.Presence{
			probe.RecordSPF:   probe.Present,
			probe.RecordDMARC: probe.Present,
		},
		OpenPorts: map[int]probe.PortState{
			21: probe.Closed, 22: probe.Closed, 80: probe.Open, 443: probe.Open, 3389: probe.Closed,
		},
		SEO:         probe.SEO{Title: "Acme", Description: "Plumbing", H1: "Acme", HasViewport: true},
		Unavailable: map[Category]probe.Reason{},
	}
}

// unavailableBundle is what the assembler produces when every probe failed.
func unavailableBundle() FactBundle {
	unavailable := make(map[Category]probe.Reason)
	for _, c := range Categories {
		unavailable[c] = probe.Timeout
	}
	return FactBundle{
		Identity:        Identity{DisplayName: "Acme", URL: "https://acme.test"},
		SecurityHeaders: map[string]probe.Presence{},
		EmailAuth:       map[string]probe.Presence{},
		OpenPorts:       map[int]probe.PortState{},
		TechStack:       []string{},
		ContactEmails:   []string{},
		SocialLinks:     map[string]string{},
		Competitors:     []Competitor{},
		Unavailable:     unavailable,
	}
}

func TestScoreHealthyBundleIsExcellent(t *testing.T) {
	res := Score(healthyBundle())
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, TierExcellent, res.Tier)
	assert.Empty(t, res.Deductions)
}

func TestScoreAllUnavailableIsNeutral(t *testing.T) {
	res := Score(unavailableBundle())
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, TierExcellent, res.Tier)
}

func TestScoreIsPure(t *testing.T) {
	b := healthyBundle()
	b.TLSValid = false
	b.SEO.H1 = ""
	first := Score(b)
	second := Score(b)
	assert.Equal(t, first, second)
	assert.False(t, b.TLSValid, "scoring must not modify the bundle")
}

func TestDeductionIndependence(t *testing.T) {
	policy := DefaultPolicy()
	tests := []struct {
		name string
		flip func(*FactBundle)
		want int
	}{
		{"tls invalid", func(b *FactBundle) { b.TLSValid = false }, policy.TLSInvalid},
		{"one header missing", func(b *FactBundle) { b.SecurityHeaders[probe.HeaderCSP] = probe.Missing }, policy.MissingHeaders},
		{"spf missing", func(b *FactBundle) { b.EmailAuth[probe.RecordSPF] = probe.Missing }, policy.MissingSPF},
		{"dmarc missing", func(b *FactBundle) { b.EmailAuth[probe.RecordDMARC] = probe.Missing }, policy.MissingDMARC},
		{"ssh open", func(b *FactBundle) { b.OpenPorts[22] = probe.Open }, policy.SensitivePort},
		{"description absent", func(b *FactBundle) { b.SEO.Description = "" }, policy.MissingDescription},
		{"h1 absent", func(b *FactBundle) { b.SEO.H1 = "" }, policy.MissingH1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := healthyBundle()
			tt.flip(&b)
			res := policy.Score(b)
			assert.Equal(t, 100-tt.want, res.Score)
			require.Len(t, res.Deductions, 1)
			assert.Equal(t, tt.want, res.Deductions[0].Points)
		})
	}
}

func TestHeadersDeductFlat(t *testing.T) {
	b := healthyBundle()
	for _, h := range probe.SecurityHeaderSet {
		b.SecurityHeaders[h] = probe.Missing
	}
	assert.Equal(t, 90, Score(b).Score)
}

func TestUnknownKeysAreNotMissing(t *testing.T) {
	b := healthyBundle()
	b.EmailAuth = map[string]probe.Presence{probe.RecordSPF: probe.Present}
	b.OpenPorts = map[int]probe.PortState{22: probe.Unknown}
	assert.Equal(t, 100, Score(b).Score)
}

func TestUnavailableCategorySkipsItsRules(t *testing.T) {
	b := healthyBundle()
	b.TLSValid = false
	b.SEO = probe.SEO{}
	b.Unavailable[CategoryTLS] = probe.Timeout
	b.Unavailable[CategorySEO] = probe.NotFound
	assert.Equal(t, 100, Score(b).Score)
}

func TestCriticalScenario(t *testing.T) {
	b := healthyBundle()
	b.TLSValid = false
	for _, h := range probe.SecurityHeaderSet {
		b.SecurityHeaders[h] = probe.Missing
	}
	b.EmailAuth[probe.RecordSPF] = probe.Missing
	b.EmailAuth[probe.RecordDMARC] = probe.Missing
	b.OpenPorts[3389] = probe.Open
	b.SEO.Description = ""

	res := Score(b)
	assert.Equal(t, 10, res.Score)
	assert.Equal(t, TierCritical, res.Tier)
	assert.Len(t, res.Deductions, 6)
}

func TestScoreClampsAtZero(t *testing.T) {
	policy := DefaultPolicy()
	policy.PortMode = PortPenaltyPerPort
	b := healthyBundle()
	b.TLSValid = false
	b.SecurityHeaders[probe.HeaderHSTS] = probe.Missing
	b.EmailAuth[probe.RecordSPF] = probe.Missing
	b.EmailAuth[probe.RecordDMARC] = probe.Missing
	b.OpenPorts[21] = probe.Open
	b.OpenPorts[22] = probe.Open
	b.OpenPorts[3389] = probe.Open
	b.SEO = probe.SEO{}

	res := policy.Score(b)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, TierCritical, res.Tier)
}

func TestScoreStaysInRange(t *testing.T) {
	flips := []func(*FactBundle){
		func(b *FactBundle) { b.TLSValid = false },
		func(b *FactBundle) { b.SecurityHeaders[probe.HeaderHSTS] = probe.Missing },
		func(b *FactBundle) { b.EmailAuth[probe.RecordSPF] = probe.Missing },
		func(b *FactBundle) { b.EmailAuth[probe.RecordDMARC] = probe.Missing },
		func(b *FactBundle) { b.OpenPorts[21] = probe.Open },
		func(b *FactBundle) { b.OpenPorts[3389] = probe.Open },
		func(b *FactBundle) { b.SEO.Description = "" },
		func(b *FactBundle) { b.SEO.H1 = "" },
		func(b *FactBundle) { b.Unavailable[CategoryTLS] = probe.Timeout },
	}
	policies := []Policy{DefaultPolicy(), {TLSInvalid: 100, MissingHeaders: 100, SensitivePort: 100, PortMode: PortPenaltyPerPort}}

	for _, policy := range policies {
		for mask := 0; mask < 1<<len(flips); mask++ {
			b := healthyBundle()
			for i, flip := range flips {
				if mask&(1<<i) != 0 {
					flip(&b)
				}
			}
			res := policy.Score(b)
			require.GreaterOrEqual(t, res.Score, 0)
			require.LessOrEqual(t, res.Score, 100)
			require.Equal(t, TierFor(res.Score), res.Tier)
		}
	}
}

func TestPerPortMode(t *testing.T) {
	b := healthyBundle()
	b.OpenPorts[21] = probe.Open
	b.OpenPorts[3389] = probe.Open

	flat := DefaultPolicy()
	assert.Equal(t, 80, flat.Score(b).Score)

	perPort := DefaultPolicy()
	perPort.PortMode = PortPenaltyPerPort
	assert.Equal(t, 60, perPort.Score(b).Score)
}

func TestTierBoundaries(t *testing.T) {
	assert.Equal(t, TierExcellent, TierFor(81))
	assert.Equal(t, TierNeedsImprovement, TierFor(80))
	assert.Equal(t, TierNeedsImprovement, TierFor(50))
	assert.Equal(t, TierCritical, TierFor(49))
	assert.Equal(t, TierCritical, TierFor(0))
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	bad := DefaultPolicy()
	bad.PortMode = "sometimes"
	assert.Error(t, bad.Validate())

	bad = DefaultPolicy()
	bad.MissingH1 = -5
	assert.Error(t, bad.Validate())
}
