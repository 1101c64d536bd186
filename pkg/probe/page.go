package probe

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"

	"github.com/user/leadscope/pkg/logger"
)

// SEO holds on-page metadata. Empty strings mean the element was absent.
type SEO struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	H1          string `json:"h1,omitempty"`
	HasViewport bool   `json:"has_viewport"`
	WordCount   int    `json:"word_count"`
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

var imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}

type marker struct {
	needle, label string
}

var bodyMarkers = []marker{
	{"wp-content", "WordPress"},
	{"shopify", "Shopify"},
	{"wix.com", "Wix"},
	{"squarespace", "Squarespace"},
	{"bootstrap", "Bootstrap"},
	{"react", "React.js"},
}

var serverMarkers = []marker{
	{"cloudflare", "Cloudflare"},
	{"nginx", "Nginx"},
	{"apache", "Apache"},
	{"litespeed", "LiteSpeed"},
	{"microsoft-iis", "IIS"},
}

var poweredByMarkers = []marker{
	{"php", "PHP"},
	{"express", "Express"},
	{"asp.net", "ASP.NET"},
	{"next.js", "Next.js"},
}

var socialPlatforms = []struct {
	host, name string
}{
	{"linkedin.com", "linkedin"},
	{"facebook.com", "facebook"},
	{"twitter.com", "twitter"},
	{"x.com", "x"},
	{"instagram.com", "instagram"},
	{"youtube.com", "youtube"},
}

// SEOMetadata fetches the page and extracts title, description, h1 and viewport.
func (p *Prober) SEOMetadata(ctx context.Context, rawURL string) Result[SEO] {
	page, reason := p.fetchPage(ctx, rawURL)
	if reason != "" {
		logger.Debugf("seo probe %s: %s", rawURL, reason)
		return Unavailable[SEO](reason)
	}
	seo, err := ParseSEO(page.Body)
	if err != nil {
		return Unavailable[SEO](ParseError)
	}
	return Ok(seo)
}

// ParseSEO extracts SEO metadata from an HTML document.
func ParseSEO(body []byte) (SEO, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return SEO{}, err
	}

	var seo SEO
	var ogDescription string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if seo.Title == "" {
					seo.Title = strings.TrimSpace(textContent(n))
				}
			case "h1":
				if seo.H1 == "" {
					seo.H1 = strings.TrimSpace(textContent(n))
				}
			case "meta":
				name := strings.ToLower(attr(n, "name"))
				property := strings.ToLower(attr(n, "property"))
				content := strings.TrimSpace(attr(n, "content"))
				switch {
				case name == "description" && content != "" && seo.Description == "":
					seo.Description = content
				case property == "og:description" && content != "" && ogDescription == "":
					ogDescription = content
				case name == "viewport":
					seo.HasViewport = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if seo.Description == "" {
		seo.Description = ogDescription
	}
	seo.WordCount = wordCount(body, doc)
	return seo, nil
}

// wordCount measures the main content, falling back to all visible text.
func wordCount(body []byte, doc *html.Node) int {
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{})
	if err == nil && result != nil && result.ContentText != "" {
		return len(strings.Fields(result.ContentText))
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return len(strings.Fields(b.String()))
}

// TechStack fingerprints the CMS / framework / server from markup and headers.
func (p *Prober) TechStack(ctx context.Context, rawURL string) Result[[]string] {
	page, reason := p.fetchPage(ctx, rawURL)
	if reason != "" {
		logger.Debugf("tech probe %s: %s", rawURL, reason)
		return Unavailable[[]string](reason)
	}
	return Ok(DetectTech(page.Header, page.Body))
}

// DetectTech returns the sorted, de-duplicated technology labels found.
func DetectTech(header http.Header, body []byte) []string {
	seen := make(map[string]bool)
	match := func(haystack string, markers []marker) {
		haystack = strings.ToLower(haystack)
		for _, m := range markers {
			if strings.Contains(haystack, m.needle) {
				seen[m.label] = true
			}
		}
	}
	match(string(body), bodyMarkers)
	if header != nil {
		match(header.Get("Server"), serverMarkers)
		match(header.Get("X-Powered-By"), poweredByMarkers)
	}
	return sortedKeys(seen)
}

// ContactEmails scrapes email addresses from the page body.
func (p *Prober) ContactEmails(ctx context.Context, rawURL string) Result[[]string] {
	page, reason := p.fetchPage(ctx, rawURL)
	if reason != "" {
		logger.Debugf("email probe %s: %s", rawURL, reason)
		return Unavailable[[]string](reason)
	}
	return Ok(ExtractEmails(page.Body))
}

// ExtractEmails finds email-shaped strings, skipping image file names like logo@2x.png.
func ExtractEmails(body []byte) []string {
	seen := make(map[string]bool)
	for _, m := range emailPattern.FindAllString(string(body), -1) {
		lower := strings.ToLower(m)
		if hasAnySuffix(lower, imageSuffixes) {
			continue
		}
		seen[lower] = true
	}
	return sortedKeys(seen)
}

// SocialLinks finds profile links to the known social platforms.
func (p *Prober) SocialLinks(ctx context.Context, rawURL string) Result[map[string]string] {
	page, reason := p.fetchPage(ctx, rawURL)
	if reason != "" {
		logger.Debugf("social probe %s: %s", rawURL, reason)
		return Unavailable[map[string]string](reason)
	}
	links, err := ExtractSocials(page.Body)
	if err != nil {
		return Unavailable[map[string]string](ParseError)
	}
	return Ok(links)
}

// ExtractSocials maps platform name to the first matching anchor href.
func ExtractSocials(body []byte) (map[string]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := strings.TrimSpace(attr(n, "href")); href != "" {
				if platform := socialPlatform(href); platform != "" {
					if _, ok := out[platform]; !ok {
						out[platform] = href
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

func socialPlatform(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for _, sp := range socialPlatforms {
		if host == sp.host || strings.HasSuffix(host, "."+sp.host) {
			return sp.name
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
