package probe

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
	<title> Acme Plumbing </title>
	<meta name="viewport" content="width=device-width">
	<meta property="og:description" content="OG fallback">
	<link rel="stylesheet" href="/wp-content/themes/bootstrap.min.css">
</head>
<body>
	<h1>Fast   repairs</h1>
	<p>Contact sales@acme.test or info@acme.test. Logo: logo@2x.png</p>
	<a href="https://www.linkedin.com/company/acme">LinkedIn</a>
	<a href="https://facebook.com/acme">Facebook</a>
	<a href="https://facebook.com/acme-other">Facebook 2</a>
	<a href="/about">About</a>
</body>
</html>`

func newTestProber(opts Options) *Prober {
	return New(NewFetcher(nil, "", 0), nil, nil, opts)
}

func TestNewFillsDefaultOptions(t *testing.T) {
	p := New(nil, nil, nil, Options{TLSPort: 8443})
	def := DefaultOptions()
	assert.Equal(t, 8443, p.opts.TLSPort)
	assert.Equal(t, def.ProbeTimeout, p.opts.ProbeTimeout)
	assert.Equal(t, def.PortTimeout, p.opts.PortTimeout)
	assert.Equal(t, DefaultPorts, p.opts.Ports)
}

func TestResultHelpers(t *testing.T) {
	ok := Ok(42)
	v, isOk := ok.Get()
	assert.True(t, isOk)
	assert.Equal(t, 42, v)
	assert.Empty(t, ok.Reason())

	bad := Unavailable[int](Timeout)
	assert.False(t, bad.IsOk())
	assert.Equal(t, Timeout, bad.Reason())
	assert.Equal(t, 7, bad.OrDefault(7))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{"deadline", context.DeadlineExceeded, Timeout},
		{"wrapped deadline", &url.Error{Op: "Get", URL: "x", Err: context.DeadlineExceeded}, Timeout},
		{"dns not found", &net.DNSError{Err: "no such host", IsNotFound: true}, NotFound},
		{"dns timeout", &net.DNSError{Err: "timeout", IsTimeout: true}, Timeout},
		{"other", errors.New("boom"), NetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
	assert.Equal(t, Reason(""), Classify(nil))
}

func TestHostnameAndMailDomain(t *testing.T) {
	assert.Equal(t, "www.example.com", Hostname("https://www.Example.com/path"))
	assert.Equal(t, "example.com", Hostname("example.com"))
	assert.Equal(t, "example.com", MailDomain("https://www.example.com"))
	assert.Equal(t, "shop.example.com", MailDomain("shop.example.com"))
}

func TestParseSEO(t *testing.T) {
	seo, err := ParseSEO([]byte(samplePage))
	require.NoError(t, err)
	assert.Equal(t, "Acme Plumbing", seo.Title)
	assert.Equal(t, "OG fallback", seo.Description)
	assert.Equal(t, "Fast repairs", seo.H1)
	assert.True(t, seo.HasViewport)
	assert.Greater(t, seo.WordCount, 0)

	seo, err = ParseSEO([]byte(`<html><head><meta name="description" content="Primary"><meta property="og:description" content="OG"></head></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Primary", seo.Description)
	assert.Empty(t, seo.H1)
	assert.False(t, seo.HasViewport)
}

func TestDetectTech(t *testing.T) {
	h := http.Header{}
	h.Set("Server", "cloudflare")
	h.Set("X-Powered-By", "PHP/8.2")
	got := DetectTech(h, []byte(samplePage))
	assert.Equal(t, []string{"Bootstrap", "Cloudflare", "PHP", "WordPress"}, got)

	assert.Empty(t, DetectTech(nil, []byte("<html><body>plain</body></html>")))
}

func TestExtractEmails(t *testing.T) {
	got := ExtractEmails([]byte(samplePage))
	assert.Equal(t, []string{"info@acme.test", "sales@acme.test"}, got)
}

func TestExtractSocials(t *testing.T) {
	got, err := ExtractSocials([]byte(samplePage))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"linkedin": "https://www.linkedin.com/company/acme",
		"facebook": "https://facebook.com/acme",
	}, got)
}

func TestPageProbesAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Write([]byte(samplePage))
		case "/robots.txt":
			w.Write([]byte("User-agent: *\nDisallow: /private\nSitemap: https://acme.test/sitemap.xml\n"))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		}
	}))
	defer server.Close()

	p := newTestProber(Options{})
	ctx := context.Background()

	seo := p.SEOMetadata(ctx, server.URL)
	require.True(t, seo.IsOk())
	v, _ := seo.Get()
	assert.Equal(t, "Acme Plumbing", v.Title)

	headers := p.SecurityHeaders(ctx, server.URL)
	hv, ok := headers.Get()
	require.True(t, ok)
	assert.Equal(t, Present, hv[HeaderFrameOptions])
	assert.Equal(t, Missing, hv[HeaderHSTS])
	assert.Equal(t, Missing, hv[HeaderCSP])

	emails, _ := p.ContactEmails(ctx, server.URL).Get()
	assert.Len(t, emails, 2)

	tech, _ := p.TechStack(ctx, server.URL).Get()
	assert.Contains(t, tech, "WordPress")

	socials, _ := p.SocialLinks(ctx, server.URL).Get()
	assert.Contains(t, socials, "linkedin")

	robots := p.RobotsTxt(ctx, server.URL)
	rv, ok := robots.Get()
	require.True(t, ok)
	assert.True(t, rv.Present)
	assert.True(t, rv.AllowsCrawl)
	assert.Equal(t, []string{"https://acme.test/sitemap.xml"}, rv.Sitemaps)

	missing := p.SEOMetadata(ctx, server.URL+"/missing")
	assert.Equal(t, NotFound, missing.Reason())

	image := p.SEOMetadata(ctx, server.URL+"/image")
	assert.Equal(t, ParseError, image.Reason())
}

func TestPageProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := newTestProber(Options{ProbeTimeout: 50 * time.Millisecond})
	res := p.SEOMetadata(context.Background(), server.URL)
	assert.Equal(t, Timeout, res.Reason())
}

type fakeResolver struct {
	txt   map[string][]string
	errs  map[string]error
	hosts []string
}

func (f fakeResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	if recs, ok := f.txt[name]; ok {
		return recs, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func (f fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if len(f.hosts) == 0 {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return f.hosts, nil
}

func TestEmailAuth(t *testing.T) {
	tests := []struct {
		name     string
		resolver fakeResolver
		want     map[string]Presence
		reason   Reason
	}{
		{
			name: "both present",
			resolver: fakeResolver{txt: map[string][]string{
				"example.com":        {"google-site-verification=abc", "v=spf1 include:_spf.google.com ~all"},
				"_dmarc.example.com": {"v=DMARC1; p=reject"},
			}},
			want: map[string]Presence{RecordSPF: Present, RecordDMARC: Present},
		},
		{
			name:     "no records is a finding",
			resolver: fakeResolver{},
			want:     map[string]Presence{RecordSPF: Missing, RecordDMARC: Missing},
		},
		{
			name: "txt without spf marker",
			resolver: fakeResolver{txt: map[string][]string{
				"example.com": {"some-verification"},
			}},
			want: map[string]Presence{RecordSPF: Missing, RecordDMARC: Missing},
		},
		{
			name: "dmarc lookup times out",
			resolver: fakeResolver{
				txt:  map[string][]string{"example.com": {"v=spf1 -all"}},
				errs: map[string]error{"_dmarc.example.com": &net.DNSError{Err: "timeout", IsTimeout: true}},
			},
			want: map[string]Presence{RecordSPF: Present},
		},
		{
			name: "both lookups fail",
			resolver: fakeResolver{errs: map[string]error{
				"example.com":        &net.DNSError{Err: "timeout", IsTimeout: true},
				"_dmarc.example.com": &net.DNSError{Err: "timeout", IsTimeout: true},
			}},
			reason: Timeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(nil, tt.resolver, nil, Options{})
			res := p.EmailAuth(context.Background(), "https://www.example.com")
			if tt.reason != "" {
				assert.Equal(t, tt.reason, res.Reason())
				return
			}
			got, ok := res.Get()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPorts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	openPort := ln.Addr().(*net.TCPAddr).Port

	closedLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closedLn.Addr().(*net.TCPAddr).Port
	closedLn.Close()

	p := New(nil, fakeResolver{hosts: []string{"127.0.0.1"}}, nil, Options{Ports: []int{openPort, closedPort}})
	res := p.Ports(context.Background(), "http://target.test")
	got, ok := res.Get()
	require.True(t, ok)
	assert.Equal(t, Open, got[openPort])
	assert.Equal(t, Closed, got[closedPort])

	unresolved := New(nil, fakeResolver{}, nil, Options{}).Ports(context.Background(), "http://nowhere.test")
	assert.Equal(t, NotFound, unresolved.Reason())
}

func TestTLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	p := newTestProber(Options{TLSPort: port})

	untrusted := p.TLS(context.Background(), server.URL)
	valid, ok := untrusted.Get()
	require.True(t, ok)
	assert.False(t, valid, "self-signed certificate must not verify")

	pool := x509.NewCertPool()
	pool.AddCert(server.Certificate())
	trusted := p.WithRootCAs(pool).TLS(context.Background(), server.URL)
	valid, ok = trusted.Get()
	require.True(t, ok)
	assert.True(t, valid)

	closedLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closedLn.Addr().(*net.TCPAddr).Port
	closedLn.Close()
	refused := newTestProber(Options{TLSPort: closedPort}).TLS(context.Background(), "https://127.0.0.1")
	valid, ok = refused.Get()
	require.True(t, ok)
	assert.False(t, valid)
}
