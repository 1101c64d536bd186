package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/user/leadscope/pkg/engine"
	"github.com/user/leadscope/pkg/logger"
	"github.com/user/leadscope/pkg/probe"
)

// ErrProviderUnavailable means the search provider could not be queried at all
// (missing key, outage, bad response).
var ErrProviderUnavailable = errors.New("search provider unavailable")

const DefaultCompetitorCap = 4

// SearchResult is one hit from a web or places search. Places hits usually carry an
// address; web hits never do.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link,omitempty"`
	Address string `json:"address,omitempty"`
}

// SearchProvider is the external search / places API.
type SearchProvider interface {
	Web(ctx context.Context, query string) ([]SearchResult, error)
	Places(ctx context.Context, query string) ([]SearchResult, error)
}

// deniedDomains are directories, social networks and aggregators that list a business
// without being its website.
var deniedDomains = map[string]bool{
	"yelp.com":              true,
	"facebook.com":          true,
	"linkedin.com":          true,
	"instagram.com":         true,
	"twitter.com":           true,
	"x.com":                 true,
	"youtube.com":           true,
	"tiktok.com":            true,
	"pinterest.com":         true,
	"tripadvisor.com":       true,
	"yellowpages.com":       true,
	"google.com":            true,
	"wikipedia.org":         true,
	"bbb.org":               true,
	"foursquare.com":        true,
	"mapquest.com":          true,
	"angi.com":              true,
	"thumbtack.com":         true,
	"nextdoor.com":          true,
	"glassdoor.com":         true,
	"indeed.com":            true,
	"crunchbase.com":        true,
	"zoominfo.com":          true,
	"bloomberg.com":         true,
	"manta.com":             true,
	"chamberofcommerce.com": true,
}

var deniedLabels = func() map[string]bool {
	labels := make(map[string]bool, len(deniedDomains))
	for d := range deniedDomains {
		labels[strings.SplitN(d, ".", 2)[0]] = true
	}
	return labels
}()

// Finder resolves business websites and lists competitors through a SearchProvider.
type Finder struct {
	provider SearchProvider
	cap      int
}

// NewFinder creates a finder. cap bounds the number of competitors returned.
func NewFinder(provider SearchProvider, cap int) *Finder {
	if cap <= 0 {
		cap = DefaultCompetitorCap
	}
	return &Finder{provider: provider, cap: cap}
}

// ResolveURL searches for the business and returns the first result that is not a
// directory or social profile. An empty string with a nil error means the business
// appears to have no website.
func (f *Finder) ResolveURL(ctx context.Context, name, location string) (string, error) {
	query := strings.TrimSpace(name + " " + location)
	if query == "" {
		return "", nil
	}
	results, err := f.provider.Web(ctx, query)
	if err != nil {
		return "", err
	}
	for _, r := range results {
		if r.Link == "" {
			continue
		}
		domain := RegistrableDomain(r.Link)
		if domain == "" || Denied(domain) {
			logger.Debugf("discovery: skipping %s", r.Link)
			continue
		}
		return probe.NormalizeURL(r.Link), nil
	}
	return "", nil
}

// Denied reports whether a registrable domain is on the directory deny-list.
func Denied(domain string) bool {
	if deniedDomains[domain] {
		return true
	}
	// regional variants such as yelp.ca match on the first label
	return deniedLabels[strings.SplitN(domain, ".", 2)[0]]
}

// RegistrableDomain returns the eTLD+1 of a URL's host, or the bare host when it has
// no public suffix (localhost, IP addresses).
func RegistrableDomain(rawURL string) string {
	host := probe.Hostname(rawURL)
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// FindCompetitors lists up to the configured cap of rivals in the identity's industry
// and location. Results naming the business itself (by either of the first two words
// of its name) or sharing its domain are dropped, and duplicates by name or URL are
// removed. When the specific query yields nothing, one broadened query is tried.
func (f *Finder) FindCompetitors(ctx context.Context, id engine.Identity) ([]engine.Competitor, error) {
	industry := strings.TrimSpace(id.Industry)
	location := strings.TrimSpace(id.Location)
	if industry == "" || location == "" {
		return nil, nil
	}

	for _, query := range queryVariants(industry, location) {
		results, err := f.provider.Places(ctx, query)
		if err != nil {
			return nil, err
		}
		if found := f.filter(id, results); len(found) > 0 {
			return found, nil
		}
		logger.Debugf("discovery: no competitors for %q, broadening", query)
	}
	return nil, nil
}

// queryVariants returns the specific query and its broadened retry. A multi-word
// industry is cut to its last word; a single word is searched near the location
// instead of in it.
func queryVariants(industry, location string) []string {
	words := strings.Fields(industry)
	broad := words[len(words)-1] + " in " + location
	if len(words) == 1 {
		broad = industry + " near " + location
	}
	return []string{industry + " in " + location, broad}
}

func (f *Finder) filter(id engine.Identity, results []SearchResult) []engine.Competitor {
	keywords := nameKeywords(id.DisplayName)
	ownDomain := ""
	if id.URL != "" {
		ownDomain = RegistrableDomain(id.URL)
	}

	seenNames := make(map[string]bool)
	seenURLs := make(map[string]bool)
	var out []engine.Competitor
	for _, r := range results {
		name := strings.TrimSpace(r.Title)
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if containsAny(lower, keywords) {
			continue
		}

		link := ""
		if r.Link != "" {
			link = probe.NormalizeURL(r.Link)
			if ownDomain != "" && RegistrableDomain(link) == ownDomain {
				continue
			}
		}
		if seenNames[lower] {
			continue
		}
		key := urlKey(link)
		if key != "" && seenURLs[key] {
			continue
		}

		seenNames[lower] = true
		if key != "" {
			seenURLs[key] = true
		}
		out = append(out, engine.Competitor{Name: name, URL: link, Address: r.Address})
		if len(out) == f.cap {
			break
		}
	}
	return out
}

// Source adapts the finder to the assembler's competitor category: no industry or
// location is NotFound, a provider failure is NetworkError.
func (f *Finder) Source() engine.CompetitorSource {
	return func(ctx context.Context, id engine.Identity) probe.Result[[]engine.Competitor] {
		if strings.TrimSpace(id.Industry) == "" || strings.TrimSpace(id.Location) == "" {
			return probe.Unavailable[[]engine.Competitor](probe.NotFound)
		}
		found, err := f.FindCompetitors(ctx, id)
		if err != nil {
			logger.Debugf("discovery: competitors unavailable: %v", err)
			if errors.Is(err, context.DeadlineExceeded) {
				return probe.Unavailable[[]engine.Competitor](probe.Timeout)
			}
			return probe.Unavailable[[]engine.Competitor](probe.NetworkError)
		}
		if found == nil {
			found = []engine.Competitor{}
		}
		return probe.Ok(found)
	}
}

// nameKeywords returns the first two whitespace-separated tokens of a business name,
// lowercased.
func nameKeywords(name string) []string {
	words := strings.Fields(strings.ToLower(name))
	if len(words) > 2 {
		words = words[:2]
	}
	return words
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func urlKey(link string) string {
	if link == "" {
		return ""
	}
	host := strings.TrimPrefix(probe.Hostname(link), "www.")
	if host == "" {
		return strings.ToLower(link)
	}
	return host
}

func providerError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProviderUnavailable, fmt.Sprintf(format, args...))
}
