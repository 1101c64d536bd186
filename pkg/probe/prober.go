package probe

import (
	"context"
	"crypto/x509"
	"net"
	"time"
)

// Presence is the observed state of a header or DNS record.
type Presence string

const (
	Present Presence = "Present"
	Missing Presence = "Missing"
)

// PortState is the observed state of a TCP port.
type PortState string

const (
	Open    PortState = "Open"
	Closed  PortState = "Closed"
	Unknown PortState = "Unknown"
)

// Header names checked by SecurityHeaders.
const (
	HeaderFrameOptions = "X-Frame-Options"
	HeaderHSTS         = "Strict-Transport-Security"
	HeaderCSP          = "Content-Security-Policy"
)

// SecurityHeaderSet is the fixed header set every scan checks.
var SecurityHeaderSet = []string{HeaderFrameOptions, HeaderHSTS, HeaderCSP}

// DNS email authentication record keys.
const (
	RecordSPF   = "SPF"
	RecordDMARC = "DMARC"
)

// DefaultPorts is the fixed port set every scan checks.
var DefaultPorts = []int{21, 22, 80, 443, 3389}

// SensitivePorts are ports whose exposure counts against a target.
var SensitivePorts = map[int]bool{21: true, 22: true, 3389: true}

// Resolver is the subset of *net.Resolver the DNS-backed probes need.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Dialer is the subset of *net.Dialer the socket probes need.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options tunes probe timeouts and targets.
type Options struct {
	ProbeTimeout  time.Duration // page-derived probes
	HeaderTimeout time.Duration
	TLSTimeout    time.Duration
	PortTimeout   time.Duration
	DNSTimeout    time.Duration
	TLSPort       int
	Ports         []int
}

// DefaultOptions mirrors the timeouts the scan has always used.
func DefaultOptions() Options {
	return Options{
		ProbeTimeout:  5 * time.Second,
		HeaderTimeout: 3 * time.Second,
		TLSTimeout:    3 * time.Second,
		PortTimeout:   1 * time.Second,
		DNSTimeout:    3 * time.Second,
		TLSPort:       443,
		Ports:         DefaultPorts,
	}
}

// Prober runs the individual fact probes. It holds no per-scan state and is safe
// for concurrent use.
type Prober struct {
	fetcher  *Fetcher
	resolver Resolver
	dialer   Dialer
	roots    *x509.CertPool
	opts     Options
}

// New creates a Prober. Nil resolver/dialer fall back to the net package defaults.
func New(fetcher *Fetcher, resolver Resolver, dialer Dialer, opts Options) *Prober {
	if fetcher == nil {
		fetcher = NewFetcher(nil, "", 0)
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	def := DefaultOptions()
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = def.ProbeTimeout
	}
	if opts.HeaderTimeout <= 0 {
		opts.HeaderTimeout = def.HeaderTimeout
	}
	if opts.TLSTimeout <= 0 {
		opts.TLSTimeout = def.TLSTimeout
	}
	if opts.PortTimeout <= 0 {
		opts.PortTimeout = def.PortTimeout
	}
	if opts.DNSTimeout <= 0 {
		opts.DNSTimeout = def.DNSTimeout
	}
	if opts.TLSPort == 0 {
		opts.TLSPort = def.TLSPort
	}
	if len(opts.Ports) == 0 {
		opts.Ports = def.Ports
	}
	return &Prober{fetcher: fetcher, resolver: resolver, dialer: dialer, opts: opts}
}

// WithRootCAs overrides the trust store used by the TLS probe.
func (p *Prober) WithRootCAs(pool *x509.CertPool) *Prober {
	cp := *p
	cp.roots = pool
	return &cp
}

// fetchPage is shared by the page-derived probes: one GET, HTML only.
func (p *Prober) fetchPage(ctx context.Context, rawURL string) (*Page, Reason) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.ProbeTimeout)
	defer cancel()

	page, err := p.fetcher.Get(ctx, NormalizeURL(rawURL))
	if err != nil {
		return nil, Classify(err)
	}
	if page.StatusCode != 200 {
		return nil, NotFound
	}
	if !isHTML(page.Header.Get("Content-Type")) {
		return nil, ParseError
	}
	return page, ""
}
