package watch

import (
	"sort"
	"time"
)

// DomainState is one probe snapshot of a domain: the three security signals
// plus the DNS record sets. Record sets are kept sorted so two snapshots can
// be compared independently of the order the resolver returned them in.
type DomainState struct {
	Gost             bool       `json:"gost"`
	WAF              bool       `json:"waf"`
	CertNotAfter     *time.Time `json:"cert_not_after,omitempty"`
	GostCertNotAfter *time.Time `json:"gost_cert_not_after,omitempty"`
	DNSA             []string   `json:"dns_a"`
	DNSAAAA          []string   `json:"dns_aaaa"`
	DNSMX            []string   `json:"dns_mx"`
	DNSNS            []string   `json:"dns_ns"`
}

// Normalize sorts every DNS record set in place. Snapshots must be
// normalized before they are stored or diffed.
func (s *DomainState) Normalize() {
	sort.Strings(s.DNSA)
	sort.Strings(s.DNSAAAA)
	sort.Strings(s.DNSMX)
	sort.Strings(s.DNSNS)
}

// Clone returns a deep copy of the snapshot.
func (s DomainState) Clone() DomainState {
	out := s
	out.CertNotAfter = copyTime(s.CertNotAfter)
	out.GostCertNotAfter = copyTime(s.GostCertNotAfter)
	out.DNSA = copyStrings(s.DNSA)
	out.DNSAAAA = copyStrings(s.DNSAAAA)
	out.DNSMX = copyStrings(s.DNSMX)
	out.DNSNS = copyStrings(s.DNSNS)
	return out
}

// Equal reports whether two snapshots describe the same observed state.
func (s DomainState) Equal(other DomainState) bool {
	return s.Gost == other.Gost &&
		s.WAF == other.WAF &&
		timesEqual(s.CertNotAfter, other.CertNotAfter) &&
		timesEqual(s.GostCertNotAfter, other.GostCertNotAfter) &&
		stringsEqual(s.DNSA, other.DNSA) &&
		stringsEqual(s.DNSAAAA, other.DNSAAAA) &&
		stringsEqual(s.DNSMX, other.DNSMX) &&
		stringsEqual(s.DNSNS, other.DNSNS)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
