package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/user/leadscope/pkg/logger"
)

// TLS reports whether the target serves a certificate that verifies for its host.
// A refused connection on the TLS port counts as "not valid": the site has no HTTPS.
func (p *Prober) TLS(ctx context.Context, rawURL string) Result[bool] {
	host := Hostname(rawURL)
	if host == "" {
		return Unavailable[bool](ParseError)
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.TLSTimeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(p.opts.TLSPort))
	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if isRefused(err) {
			return Ok(false)
		}
		logger.Debugf("tls probe %s: dial: %v", host, err)
		return Unavailable[bool](Classify(err))
	}
	defer conn.Close()

	client := tls.Client(conn, &tls.Config{ServerName: host, RootCAs: p.roots})
	if err := client.HandshakeContext(ctx); err != nil {
		if r := Classify(err); r == Timeout {
			return Unavailable[bool](Timeout)
		}
		logger.Debugf("tls probe %s: handshake: %v", host, err)
		return Ok(false)
	}
	return Ok(true)
}

// SecurityHeaders checks the response for the fixed security header set.
func (p *Prober) SecurityHeaders(ctx context.Context, rawURL string) Result[map[string]Presence] {
	ctx, cancel := context.WithTimeout(ctx, p.opts.HeaderTimeout)
	defer cancel()

	page, err := p.fetcher.Get(ctx, NormalizeURL(rawURL))
	if err != nil {
		logger.Debugf("header probe %s: %v", rawURL, err)
		return Unavailable[map[string]Presence](Classify(err))
	}
	out := make(map[string]Presence, len(SecurityHeaderSet))
	for _, h := range SecurityHeaderSet {
		if page.Header.Get(h) != "" {
			out[h] = Present
		} else {
			out[h] = Missing
		}
	}
	return Ok(out)
}

// MailDomain is the domain whose SPF/DMARC records are checked.
func MailDomain(rawURL string) string {
	return strings.TrimPrefix(Hostname(rawURL), "www.")
}

// EmailAuth looks up SPF and DMARC TXT records. An absent record is a finding
// (Missing); a lookup that could not complete leaves the key out.
func (p *Prober) EmailAuth(ctx context.Context, rawURL string) Result[map[string]Presence] {
	domain := MailDomain(rawURL)
	if domain == "" {
		return Unavailable[map[string]Presence](ParseError)
	}

	type lookup struct {
		key, name, marker string
	}
	lookups := []lookup{
		{RecordSPF, domain, "v=spf1"},
		{RecordDMARC, "_dmarc." + domain, "v=dmarc1"},
	}

	out := make(map[string]Presence, len(lookups))
	var lastReason Reason
	for _, l := range lookups {
		presence, reason := p.txtRecord(ctx, l.name, l.marker)
		if reason != "" {
			logger.Debugf("dns probe %s: %s", l.name, reason)
			lastReason = reason
			continue
		}
		out[l.key] = presence
	}
	if len(out) == 0 {
		return Unavailable[map[string]Presence](lastReason)
	}
	return Ok(out)
}

func (p *Prober) txtRecord(ctx context.Context, name, marker string) (Presence, Reason) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.DNSTimeout)
	defer cancel()

	records, err := p.resolver.LookupTXT(ctx, name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return Missing, ""
		}
		return "", Classify(err)
	}
	for _, r := range records {
		if strings.Contains(strings.ToLower(r), marker) {
			return Present, ""
		}
	}
	return Missing, ""
}

// Ports attempts a TCP connect to each configured port.
func (p *Prober) Ports(ctx context.Context, rawURL string) Result[map[int]PortState] {
	host := Hostname(rawURL)
	if host == "" {
		return Unavailable[map[int]PortState](ParseError)
	}
	lookupCtx, cancel := context.WithTimeout(ctx, p.opts.DNSTimeout)
	addrs, err := p.resolver.LookupHost(lookupCtx, host)
	cancel()
	if err != nil || len(addrs) == 0 {
		logger.Debugf("port probe %s: resolve: %v", host, err)
		if err == nil {
			return Unavailable[map[int]PortState](NotFound)
		}
		return Unavailable[map[int]PortState](Classify(err))
	}
	target := addrs[0]

	var mu sync.Mutex
	out := make(map[int]PortState, len(p.opts.Ports))
	var g errgroup.Group
	for _, port := range p.opts.Ports {
		g.Go(func() error {
			state := p.dialPort(ctx, target, port)
			mu.Lock()
			out[port] = state
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return Ok(out)
}

func (p *Prober) dialPort(ctx context.Context, host string, port int) PortState {
	ctx, cancel := context.WithTimeout(ctx, p.opts.PortTimeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		if isRefused(err) {
			return Closed
		}
		return Unknown
	}
	conn.Close()
	return Open
}
