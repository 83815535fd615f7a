// Package probe contains the external probe adapters (DNS, TLS/GOST, WAF)
// and the collector that fans them out per domain. Every adapter is
// best-effort: failures collapse into neutral signal values instead of
// errors, so one broken probe never sinks a whole check cycle.
package probe

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/therudywolf/DomainsBot-sub000/internal/domain/watch"
)

// DNSRecords is the resolved record sets for one domain. Empty sets mean
// "nothing resolved", whether because the records don't exist or because
// resolution failed.
type DNSRecords struct {
	A    []string
	AAAA []string
	MX   []string
	NS   []string
}

// TLSSignal is the TLS endpoint's security signal for one domain.
type TLSSignal struct {
	Gost             bool
	CertNotAfter     *time.Time
	GostCertNotAfter *time.Time
	// Unavailable marks "the probing infrastructure itself was unreachable",
	// as opposed to "GOST confirmed absent". Consumers must not report a
	// signal flip off an unavailable probe.
	Unavailable bool
}

// DNSProber resolves the four monitored record types. Never returns an error.
type DNSProber interface {
	Fetch(ctx context.Context, domain string) DNSRecords
}

// TLSProber fetches the certificate and GOST signal. Never returns an error.
type TLSProber interface {
	Fetch(ctx context.Context, domain string) TLSSignal
}

// WAFProber tests for a web application firewall. Never returns an error;
// the second value names the detection method for logging.
type WAFProber interface {
	Test(ctx context.Context, domain string) (bool, string)
}

// Collector runs all three probes concurrently for one domain and assembles
// the next DomainState.
type Collector struct {
	DNS DNSProber
	TLS TLSProber
	WAF WAFProber

	log *zap.SugaredLogger
}

// NewCollector wires the three probers together.
func NewCollector(dns DNSProber, tls TLSProber, waf WAFProber, log *zap.SugaredLogger) *Collector {
	return &Collector{DNS: dns, TLS: tls, WAF: waf, log: log}
}

// Observe probes the domain and builds its next snapshot. prev is the last
// stored state (nil on first observation); when the TLS probe reports its
// infrastructure unavailable, the previous GOST signal and certificate dates
// are carried forward so an outage of the probing side never shows up as a
// security change on the domain. A panicking probe is treated the same way
// as an unavailable one.
func (c *Collector) Observe(ctx context.Context, domain string, prev *watch.DomainState) watch.DomainState {
	var (
		dnsRes DNSRecords
		tlsRes TLSSignal
		wafRes bool
		wafOK  bool
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer c.recoverProbe(domain, "dns")
		dnsRes = c.DNS.Fetch(ctx, domain)
		return nil
	})
	g.Go(func() error {
		tlsRes = TLSSignal{Unavailable: true}
		defer c.recoverProbe(domain, "tls")
		tlsRes = c.TLS.Fetch(ctx, domain)
		return nil
	})
	g.Go(func() error {
		defer c.recoverProbe(domain, "waf")
		detected, method := c.WAF.Test(ctx, domain)
		wafRes, wafOK = detected, true
		if detected && c.log != nil {
			c.log.Debugw("waf detected", "domain", domain, "method", method)
		}
		return nil
	})
	_ = g.Wait()

	state := watch.DomainState{
		DNSA:    dnsRes.A,
		DNSAAAA: dnsRes.AAAA,
		DNSMX:   dnsRes.MX,
		DNSNS:   dnsRes.NS,
	}

	if tlsRes.Unavailable && prev != nil {
		state.Gost = prev.Gost
		state.CertNotAfter = copyTime(prev.CertNotAfter)
		state.GostCertNotAfter = copyTime(prev.GostCertNotAfter)
	} else if !tlsRes.Unavailable {
		state.Gost = tlsRes.Gost
		state.CertNotAfter = tlsRes.CertNotAfter
		state.GostCertNotAfter = tlsRes.GostCertNotAfter
	}

	if wafOK {
		state.WAF = wafRes
	} else if prev != nil {
		state.WAF = prev.WAF
	}

	state.Normalize()
	return state
}

func (c *Collector) recoverProbe(domain, name string) {
	if r := recover(); r != nil && c.log != nil {
		c.log.Errorw("probe panicked", "probe", name, "domain", domain, "panic", r)
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}
