package probe

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Resolver performs DNS resolution checks for the four monitored record
// types. Lookup failures yield empty record sets, never errors.
type Resolver struct {
	Timeout    time.Duration
	NameServer []string

	resolver *net.Resolver
	log      *zap.SugaredLogger
}

// NewResolver builds a resolver using the pure-Go DNS client. When
// nameservers are given they are tried in order instead of the system
// configuration; entries without a port default to :53.
func NewResolver(timeout time.Duration, nameservers []string, log *zap.SugaredLogger) *Resolver {
	r := &Resolver{
		Timeout:    timeout,
		NameServer: nameservers,
		log:        log,
	}
	r.resolver = &net.Resolver{PreferGo: true}
	if len(nameservers) > 0 {
		r.resolver.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			var lastErr error
			for _, server := range nameservers {
				addr := server
				if _, _, err := net.SplitHostPort(addr); err != nil {
					addr = net.JoinHostPort(addr, "53")
				}
				conn, err := d.DialContext(ctx, network, addr)
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			return nil, lastErr
		}
	}
	return r
}

// Fetch resolves A, AAAA, MX and NS records. Each record set comes back
// sorted so stored snapshots compare independently of resolver ordering.
func (r *Resolver) Fetch(ctx context.Context, domain string) DNSRecords {
	res := DNSRecords{
		A:    r.lookupIP(ctx, domain, "ip4"),
		AAAA: r.lookupIP(ctx, domain, "ip6"),
		MX:   r.lookupMX(ctx, domain),
		NS:   r.lookupNS(ctx, domain),
	}
	return res
}

func (r *Resolver) lookupIP(ctx context.Context, domain, network string) []string {
	lookupCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	ips, err := r.resolver.LookupIP(lookupCtx, network, domain)
	if err != nil {
		r.debugf("DNS %s lookup for %s failed: %v", network, domain, err)
		return []string{}
	}
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	sort.Strings(out)
	return out
}

func (r *Resolver) lookupMX(ctx context.Context, domain string) []string {
	lookupCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	records, err := r.resolver.LookupMX(lookupCtx, domain)
	if err != nil {
		r.debugf("DNS MX lookup for %s failed: %v", domain, err)
		return []string{}
	}
	out := make([]string, 0, len(records))
	for _, mx := range records {
		out = append(out, fmt.Sprintf("%d %s", mx.Pref, mx.Host))
	}
	sort.Strings(out)
	return out
}

func (r *Resolver) lookupNS(ctx context.Context, domain string) []string {
	lookupCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	records, err := r.resolver.LookupNS(lookupCtx, domain)
	if err != nil {
		r.debugf("DNS NS lookup for %s failed: %v", domain, err)
		return []string{}
	}
	out := make([]string, 0, len(records))
	for _, ns := range records {
		out = append(out, ns.Host)
	}
	sort.Strings(out)
	return out
}

func (r *Resolver) debugf(format string, args ...interface{}) {
	if r.log != nil {
		r.log.Debugf(format, args...)
	}
}
