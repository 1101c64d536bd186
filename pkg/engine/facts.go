package engine

import (
	"strings"
	"time"

	"github.com/user/leadscope/pkg/probe"
)

// MissingText is what reports print for an absent string fact.
const MissingText = "MISSING"

// Identity is the business being audited. It is created once per scan.
type Identity struct {
	DisplayName string `json:"display_name"`
	URL         string `json:"url,omitempty"`
	Location    string `json:"location,omitempty"`
	Industry    string `json:"industry,omitempty"`
}

// HasWebsite reports whether the identity resolved to a URL.
func (id Identity) HasWebsite() bool {
	return strings.TrimSpace(id.URL) != ""
}

// Category names one fact family of a FactBundle.
type Category string

const (
	CategoryTLS         Category = "tls"
	CategoryHeaders     Category = "security_headers"
	CategoryEmailAuth   Category = "email_auth"
	CategoryPorts       Category = "open_ports"
	CategorySEO         Category = "seo"
	CategoryTech        Category = "tech_stack"
	CategoryEmails      Category = "contact_emails"
	CategorySocials     Category = "social_links"
	CategoryCompetitors Category = "competitors"
	CategoryRobots      Category = "robots"
)

// Categories lists every category in report order.
var Categories = []Category{
	CategoryTLS,
	CategoryHeaders,
	CategoryEmailAuth,
	CategoryPorts,
	CategorySEO,
	CategoryTech,
	CategoryEmails,
	CategorySocials,
	CategoryCompetitors,
	CategoryRobots,
}

// Competitor is a rival business found by discovery. Order is relevance rank.
type Competitor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	Address string `json:"address,omitempty"`
}

// FactBundle is the normalized result of every probe for one target.
//
// Every category holds a concrete value: probes that failed are normalized to the
// category's empty default and recorded in Unavailable. A bundle is built once by
// Assembler.Assemble and must be treated as read-only afterwards.
type FactBundle struct {
	Identity        Identity                  `json:"identity"`
	TLSValid        bool                      `json:"tls_valid"`
	SecurityHeaders map[string]probe.Presence `json:"security_headers"`
	EmailAuth       map[string]probe.Presence `json:"email_auth"`
	OpenPorts       map[int]probe.PortState   `json:"open_ports"`
	SEO             probe.SEO                 `json:"seo"`
	TechStack       []string                  `json:"tech_stack"`
	ContactEmails   []string                  `json:"contact_emails"`
	SocialLinks     map[string]string         `json:"social_links"`
	Competitors     []Competitor              `json:"competitors"`
	Robots          probe.Robots              `json:"robots"`
	Unavailable     map[Category]probe.Reason `json:"unavailable,omitempty"`
	CollectedAt     time.Time                 `json:"collected_at"`
}

// Known reports whether the category's probe produced evidence.
func (b FactBundle) Known(c Category) bool {
	_, failed := b.Unavailable[c]
	return !failed
}

// Host is the audited hostname, or the display name when there is no URL.
func (b FactBundle) Host() string {
	if h := probe.Hostname(b.Identity.URL); h != "" {
		return h
	}
	return b.Identity.DisplayName
}

// MissingHeaders returns the checked security headers observed as Missing.
func (b FactBundle) MissingHeaders() []string {
	var out []string
	for _, h := range probe.SecurityHeaderSet {
		if b.SecurityHeaders[h] == probe.Missing {
			out = append(out, h)
		}
	}
	return out
}

// OpenSensitivePorts returns the sensitive ports observed Open, ascending.
func (b FactBundle) OpenSensitivePorts(sensitive []int) []int {
	var out []int
	for _, port := range sensitive {
		if b.OpenPorts[port] == probe.Open {
			out = append(out, port)
		}
	}
	return out
}

// Display substitutes MissingText for an empty string.
func Display(s string) string {
	if strings.TrimSpace(s) == "" {
		return MissingText
	}
	return s
}

// DisplayPresence renders a presence map entry, treating an absent key as unknown.
func DisplayPresence(m map[string]probe.Presence, key string) string {
	if v, ok := m[key]; ok {
		return string(v)
	}
	return "Unknown"
}
