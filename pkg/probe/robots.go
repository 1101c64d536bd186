package probe

import (
	"context"
	"net/url"

	"github.com/temoto/robotstxt"

	"github.com/user/leadscope/pkg/logger"
)

// Robots summarizes a site's robots.txt.
type Robots struct {
	Present     bool     `json:"present"`
	AllowsCrawl bool     `json:"allows_crawl"`
	Sitemaps    []string `json:"sitemaps,omitempty"`
}

// RobotsTxt fetches /robots.txt. A 404 is evidence (Present=false), not a failure.
func (p *Prober) RobotsTxt(ctx context.Context, rawURL string) Result[Robots] {
	u, err := url.Parse(NormalizeURL(rawURL))
	if err != nil || u.Host == "" {
		return Unavailable[Robots](ParseError)
	}
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()

	ctx, cancel := context.WithTimeout(ctx, p.opts.ProbeTimeout)
	defer cancel()

	page, err := p.fetcher.Get(ctx, robotsURL)
	if err != nil {
		logger.Debugf("robots probe %s: %v", robotsURL, err)
		return Unavailable[Robots](Classify(err))
	}
	if page.StatusCode >= 500 {
		return Unavailable[Robots](NetworkError)
	}

	data, err := robotstxt.FromStatusAndBytes(page.StatusCode, page.Body)
	if err != nil {
		return Unavailable[Robots](ParseError)
	}
	return Ok(Robots{
		Present:     page.StatusCode == 200,
		AllowsCrawl: data.TestAgent("/", "Googlebot"),
		Sitemaps:    data.Sitemaps,
	})
}
