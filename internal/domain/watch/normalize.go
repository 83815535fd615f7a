package watch

import (
	"strings"

	"golang.org/x/net/publicsuffix"

	sharedErrors "github.com/therudywolf/DomainsBot-sub000/internal/shared/errors"
)

// NormalizeDomain cleans up operator input (URLs, trailing dots, mixed case)
// into a bare lowercase host name and validates that it has a registrable
// suffix. Garbage that cannot name a real domain is rejected.
func NormalizeDomain(raw string) (string, error) {
	host := strings.TrimSpace(strings.ToLower(raw))
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	if idx := strings.Index(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	host = strings.TrimSuffix(host, ".")

	if host == "" || len(host) > 253 || !strings.Contains(host, ".") {
		return "", sharedErrors.ErrInvalidDomain
	}
	for _, label := range strings.Split(host, ".") {
		if !validLabel(label) {
			return "", sharedErrors.ErrInvalidDomain
		}
	}

	// A registrable eTLD+1 must exist; "localhost" and bare TLDs don't qualify.
	if _, err := publicsuffix.EffectiveTLDPlusOne(host); err != nil {
		return "", sharedErrors.ErrInvalidDomain
	}

	return host, nil
}

func validLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return false
		}
	}
	return true
}
