package watch

import (
	"testing"
	"time"
)

func TestDomainStateNormalize(t *testing.T) {
	s := DomainState{
		DNSA:  []string{"3.3.3.3", "1.1.1.1", "2.2.2.2"},
		DNSMX: []string{"20 mx2.example.com", "10 mx1.example.com"},
	}
	s.Normalize()

	if s.DNSA[0] != "1.1.1.1" || s.DNSA[2] != "3.3.3.3" {
		t.Errorf("A records not sorted: %v", s.DNSA)
	}
	if s.DNSMX[0] != "10 mx1.example.com" {
		t.Errorf("MX records not sorted: %v", s.DNSMX)
	}
}

func TestDomainStateEqualIgnoresNothing(t *testing.T) {
	notAfter := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	base := DomainState{
		Gost:         true,
		WAF:          false,
		CertNotAfter: &notAfter,
		DNSA:         []string{"1.1.1.1"},
		DNSNS:        []string{"ns1.example.com"},
	}

	same := base.Clone()
	if !base.Equal(same) {
		t.Fatal("clone must compare equal")
	}

	mutations := map[string]func(*DomainState){
		"gost flip":    func(s *DomainState) { s.Gost = false },
		"waf flip":     func(s *DomainState) { s.WAF = true },
		"cert cleared": func(s *DomainState) { s.CertNotAfter = nil },
		"a changed":    func(s *DomainState) { s.DNSA = []string{"9.9.9.9"} },
		"ns added":     func(s *DomainState) { s.DNSNS = append(s.DNSNS, "ns2.example.com") },
	}
	for name, mutate := range mutations {
		mutated := base.Clone()
		mutate(&mutated)
		if base.Equal(mutated) {
			t.Errorf("%s: states compare equal after mutation", name)
		}
	}
}

func TestDomainStateCloneIsDeep(t *testing.T) {
	notAfter := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	orig := DomainState{CertNotAfter: &notAfter, DNSA: []string{"1.1.1.1"}}

	clone := orig.Clone()
	clone.DNSA[0] = "8.8.8.8"
	*clone.CertNotAfter = clone.CertNotAfter.AddDate(1, 0, 0)

	if orig.DNSA[0] != "1.1.1.1" {
		t.Error("mutating the clone's record set leaked into the original")
	}
	if !orig.CertNotAfter.Equal(notAfter) {
		t.Error("mutating the clone's cert date leaked into the original")
	}
}
