package probe

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// gostCheckResponse is the JSON body of the GOST sidecar's /check endpoint.
// Go's TLS stack cannot negotiate GOST cipher suites, so GOST detection is
// delegated to a sidecar running a GOST-enabled OpenSSL; it optionally
// reports the GOST certificate expiry alongside the verdict.
type gostCheckResponse struct {
	Domain   string `json:"domain"`
	IsGost   bool   `json:"is_gost"`
	NotAfter string `json:"not_after,omitempty"`
}

// TLSInspector fetches the classic certificate via a direct handshake and
// the GOST signal via one or more sidecar endpoints. Failures never surface
// as errors: an unreachable sidecar marks the signal Unavailable instead.
type TLSInspector struct {
	// CheckURLs are complete GOST sidecar endpoint URLs, e.g.
	// "http://gostsslcheck:8080/check", tried in order.
	CheckURLs []string
	Timeout   time.Duration
	Port      string

	client *http.Client
	log    *zap.SugaredLogger
}

// NewTLSInspector builds an inspector for port 443 with its own HTTP client.
func NewTLSInspector(checkURLs []string, timeout time.Duration, log *zap.SugaredLogger) *TLSInspector {
	return &TLSInspector{
		CheckURLs: checkURLs,
		Timeout:   timeout,
		Port:      "443",
		client:    &http.Client{Timeout: timeout},
		log:       log,
	}
}

// Fetch collects the TLS signal for one domain.
func (t *TLSInspector) Fetch(ctx context.Context, domain string) TLSSignal {
	signal := TLSSignal{}

	gost, gostNotAfter, ok := t.remoteGostCheck(ctx, domain)
	if !ok {
		signal.Unavailable = true
	} else {
		signal.Gost = gost
		signal.GostCertNotAfter = gostNotAfter
	}

	signal.CertNotAfter = t.certNotAfter(ctx, domain)
	return signal
}

// remoteGostCheck queries the sidecar endpoints in order. The third return
// value is false when every endpoint was unreachable (or none configured),
// which callers must treat as "unknown", not "absent".
func (t *TLSInspector) remoteGostCheck(ctx context.Context, domain string) (bool, *time.Time, bool) {
	for _, base := range t.CheckURLs {
		url := fmt.Sprintf("%s?domain=%s", base, domain)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := t.client.Do(req)
		if err != nil {
			t.debugf("GOST endpoint %s unreachable for %s: %v", base, domain, err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			t.debugf("GOST endpoint %s returned %d for %s", base, resp.StatusCode, domain)
			continue
		}
		var body gostCheckResponse
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			t.debugf("GOST endpoint %s returned bad JSON for %s: %v", base, domain, err)
			continue
		}

		var notAfter *time.Time
		if body.IsGost && body.NotAfter != "" {
			if parsed, err := time.Parse(time.RFC3339, body.NotAfter); err == nil {
				notAfter = &parsed
			}
		}
		return body.IsGost, notAfter, true
	}
	return false, nil, false
}

// certNotAfter performs a plain TLS handshake and reads the leaf
// certificate's expiry. Verification is skipped: an expired or mis-issued
// certificate is exactly what monitoring needs to see, not abort on.
func (t *TLSInspector) certNotAfter(ctx context.Context, domain string) *time.Time {
	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(domain, t.Port), &tls.Config{
		ServerName:         domain,
		InsecureSkipVerify: true,
	})
	if err != nil {
		t.debugf("TLS handshake with %s failed: %v", domain, err)
		return nil
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil
	}
	notAfter := certs[0].NotAfter
	return &notAfter
}

func (t *TLSInspector) debugf(format string, args ...interface{}) {
	if t.log != nil {
		t.log.Debugf(format, args...)
	}
}
