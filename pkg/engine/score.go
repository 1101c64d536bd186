package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/user/leadscope/pkg/probe"
)

// Tier is the qualitative bucket for a score.
type Tier string

const (
	TierExcellent        Tier = "Excellent"
	TierNeedsImprovement Tier = "Needs Improvement"
	TierCritical         Tier = "Critical"
)

// PortPenaltyMode selects how open sensitive ports are charged.
type PortPenaltyMode string

const (
	PortPenaltyFlat    PortPenaltyMode = "flat"
	PortPenaltyPerPort PortPenaltyMode = "per_port"
)

// Finding codes shared by scoring rules, findings and the remediation catalog.
const (
	CodeTLSInvalid         = "tls_invalid"
	CodeHeadersMissing     = "security_headers_missing"
	CodeSPFMissing         = "spf_missing"
	CodeDMARCMissing       = "dmarc_missing"
	CodeSensitivePortOpen  = "sensitive_port_open"
	CodeDescriptionMissing = "seo_description_missing"
	CodeH1Missing          = "seo_h1_missing"
	CodeTitleMissing       = "seo_title_missing"
	CodeViewportMissing    = "viewport_missing"
	CodeRobotsMissing      = "robots_missing"
	CodeSitemapMissing     = "sitemap_missing"
)

const (
	maxScore       = 100
	excellentAbove = 80
	criticalBelow  = 50
)

// Policy holds the deduction magnitudes. The zero value deducts nothing; use
// DefaultPolicy for the standard weights.
type Policy struct {
	TLSInvalid         int             `mapstructure:"tls_invalid" yaml:"tls_invalid"`
	MissingHeaders     int             `mapstructure:"missing_headers" yaml:"missing_headers"`
	MissingSPF         int             `mapstructure:"missing_spf" yaml:"missing_spf"`
	MissingDMARC       int             `mapstructure:"missing_dmarc" yaml:"missing_dmarc"`
	SensitivePort      int             `mapstructure:"sensitive_port" yaml:"sensitive_port"`
	PortMode           PortPenaltyMode `mapstructure:"port_penalty_mode" yaml:"port_penalty_mode"`
	MissingDescription int             `mapstructure:"missing_description" yaml:"missing_description"`
	MissingH1          int             `mapstructure:"missing_h1" yaml:"missing_h1"`
	SensitivePorts     []int           `mapstructure:"sensitive_ports" yaml:"sensitive_ports"`
}

// DefaultPolicy returns the standard deduction table.
func DefaultPolicy() Policy {
	return Policy{
		TLSInvalid:         30,
		MissingHeaders:     10,
		MissingSPF:         10,
		MissingDMARC:       10,
		SensitivePort:      20,
		PortMode:           PortPenaltyFlat,
		MissingDescription: 10,
		MissingH1:          5,
		SensitivePorts:     []int{21, 22, 3389},
	}
}

// Validate rejects negative weights and unknown port modes.
func (p Policy) Validate() error {
	weights := map[string]int{
		"tls_invalid":         p.TLSInvalid,
		"missing_headers":     p.MissingHeaders,
		"missing_spf":         p.MissingSPF,
		"missing_dmarc":       p.MissingDMARC,
		"sensitive_port":      p.SensitivePort,
		"missing_description": p.MissingDescription,
		"missing_h1":          p.MissingH1,
	}
	for name, w := range weights {
		if w < 0 || w > maxScore {
			return fmt.Errorf("scoring.%s must be between 0 and %d, got %d", name, maxScore, w)
		}
	}
	switch p.PortMode {
	case PortPenaltyFlat, PortPenaltyPerPort, "":
	default:
		return fmt.Errorf("scoring.port_penalty_mode must be %q or %q, got %q", PortPenaltyFlat, PortPenaltyPerPort, p.PortMode)
	}
	return nil
}

func (p Policy) sensitivePorts() []int {
	ports := append([]int(nil), p.SensitivePorts...)
	if len(ports) == 0 {
		for port := range probe.SensitivePorts {
			ports = append(ports, port)
		}
	}
	sort.Ints(ports)
	return ports
}

// Deduction is one applied rule.
type Deduction struct {
	Code     string   `json:"code"`
	Category Category `json:"category"`
	Points   int      `json:"points"`
	Detail   string   `json:"detail"`
}

// ScoreResult is derived from a FactBundle and never stored on its own.
type ScoreResult struct {
	Score      int         `json:"score"`
	Tier       Tier        `json:"tier"`
	Deductions []Deduction `json:"deductions"`
}

// Score applies the default policy.
func Score(b FactBundle) ScoreResult {
	return DefaultPolicy().Score(b)
}

// Score computes the bundle's score. It is pure: rules read only the bundle, each rule
// is skipped when its category was unavailable, and the total is clamped to [0,100].
func (p Policy) Score(b FactBundle) ScoreResult {
	deductions := p.Deductions(b)
	score := maxScore
	for _, d := range deductions {
		score -= d.Points
	}
	score = clamp(score)
	return ScoreResult{Score: score, Tier: TierFor(score), Deductions: deductions}
}

// Deductions lists every rule that fires for the bundle, in a fixed order.
func (p Policy) Deductions(b FactBundle) []Deduction {
	var out []Deduction
	add := func(code string, cat Category, points int, detail string) {
		if points > 0 {
			out = append(out, Deduction{Code: code, Category: cat, Points: points, Detail: detail})
		}
	}

	if b.Known(CategoryTLS) && !b.TLSValid {
		add(CodeTLSInvalid, CategoryTLS, p.TLSInvalid, "no valid TLS certificate on port 443")
	}
	if b.Known(CategoryHeaders) {
		if missing := b.MissingHeaders(); len(missing) > 0 {
			add(CodeHeadersMissing, CategoryHeaders, p.MissingHeaders, "missing "+strings.Join(missing, ", "))
		}
	}
	if b.Known(CategoryEmailAuth) {
		if b.EmailAuth[probe.RecordSPF] == probe.Missing {
			add(CodeSPFMissing, CategoryEmailAuth, p.MissingSPF, "no SPF record")
		}
		if b.EmailAuth[probe.RecordDMARC] == probe.Missing {
			add(CodeDMARCMissing, CategoryEmailAuth, p.MissingDMARC, "no DMARC record")
		}
	}
	if b.Known(CategoryPorts) {
		open := b.OpenSensitivePorts(p.sensitivePorts())
		if p.PortMode == PortPenaltyPerPort {
			for _, port := range open {
				add(CodeSensitivePortOpen, CategoryPorts, p.SensitivePort, fmt.Sprintf("port %d open", port))
			}
		} else if len(open) > 0 {
			add(CodeSensitivePortOpen, CategoryPorts, p.SensitivePort, "open: "+joinPorts(open))
		}
	}
	if b.Known(CategorySEO) {
		if strings.TrimSpace(b.SEO.Description) == "" {
			add(CodeDescriptionMissing, CategorySEO, p.MissingDescription, "no meta description")
		}
		if strings.TrimSpace(b.SEO.H1) == "" {
			add(CodeH1Missing, CategorySEO, p.MissingH1, "no h1 heading")
		}
	}
	return out
}

// TierFor maps a score onto its tier: above 80 is Excellent, below 50 Critical.
func TierFor(score int) Tier {
	switch {
	case score > excellentAbove:
		return TierExcellent
	case score < criticalBelow:
		return TierCritical
	default:
		return TierNeedsImprovement
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = fmt.Sprintf("%d/tcp", p)
	}
	return strings.Join(parts, ", ")
}
