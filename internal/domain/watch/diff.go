package watch

import (
	"fmt"
	"time"
)

// Certificate reminder thresholds in days.
const (
	certExpiryWindow    = 30
	certWarnThreshold   = 14
	certUrgentThreshold = 7
)

// reminderDays are the exact days-remaining values that trigger a scheduled
// reminder even when nothing about the certificate changed.
var reminderDays = map[int]struct{}{30: {}, 14: {}, 7: {}}

// DiffResult is the outcome of comparing two snapshots of one domain.
type DiffResult struct {
	// Lines are the human-readable change descriptions, in a fixed order:
	// GOST flip, WAF flip, primary certificate, GOST certificate, DNS
	// record sets (A, AAAA, MX, NS).
	Lines []string
	// Baseline marks the first-ever observation of a domain. Baselines are
	// recorded but never delivered as change notifications.
	Baseline bool
}

// Diff compares the previously stored snapshot against a fresh one and
// describes what changed. It is a pure function: neither input is mutated.
// A nil old state marks the new snapshot as the baseline.
func Diff(old *DomainState, next DomainState, now time.Time) DiffResult {
	if old == nil {
		return DiffResult{Lines: []string{"added to monitoring"}, Baseline: true}
	}

	var lines []string

	if old.Gost != next.Gost {
		lines = append(lines, fmt.Sprintf("GOST: %s → %s", yesNo(old.Gost), yesNo(next.Gost)))
	}
	if old.WAF != next.WAF {
		lines = append(lines, fmt.Sprintf("WAF: %s → %s", yesNo(old.WAF), yesNo(next.WAF)))
	}

	lines = append(lines, certLines("certificate", old.CertNotAfter, next.CertNotAfter, now)...)
	lines = append(lines, certLines("GOST certificate", old.GostCertNotAfter, next.GostCertNotAfter, now)...)

	type recordSet struct {
		name     string
		old, new []string
	}
	for _, rs := range []recordSet{
		{"A", old.DNSA, next.DNSA},
		{"AAAA", old.DNSAAAA, next.DNSAAAA},
		{"MX", old.DNSMX, next.DNSMX},
		{"NS", old.DNSNS, next.DNSNS},
	} {
		if !stringsEqual(rs.old, rs.new) {
			lines = append(lines, fmt.Sprintf("DNS %s changed", rs.name))
		}
	}

	return DiffResult{Lines: lines}
}

// certLines applies both certificate-expiry rules to one certificate date:
// a graded warning when the date changed and now falls inside the expiry
// window, and an exact-day reminder fired regardless of change.
func certLines(label string, old, next *time.Time, now time.Time) []string {
	var lines []string

	if !timesEqual(old, next) && next != nil {
		days := daysLeft(*next, now)
		switch {
		case next.Before(now):
			lines = append(lines, fmt.Sprintf("%s has expired", label))
		case days <= certUrgentThreshold:
			lines = append(lines, fmt.Sprintf("URGENT: %s expires in %d days", label, days))
		case days <= certWarnThreshold:
			lines = append(lines, fmt.Sprintf("WARNING: %s expires in %d days", label, days))
		case days <= certExpiryWindow:
			lines = append(lines, fmt.Sprintf("%s expires in %d days", label, days))
		}
	}

	if next != nil && next.After(now) {
		days := daysLeft(*next, now)
		if _, ok := reminderDays[days]; ok {
			if days <= certUrgentThreshold {
				lines = append(lines, fmt.Sprintf("URGENT REMINDER: %s expires in %d days", label, days))
			} else {
				lines = append(lines, fmt.Sprintf("REMINDER: %s expires in %d days", label, days))
			}
		}
	}

	return lines
}

func daysLeft(t, now time.Time) int {
	return int(t.Sub(now).Hours() / 24)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
