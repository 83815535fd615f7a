package probe

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// wafPayloads are request paths a firewall is expected to react to where the
// origin would not.
var wafPayloads = []string{
	"/?<script>alert('x')</script>",
	"/etc/passwd",
	"/?id=1+union+select+1,2,3",
	"/../../../boot.ini",
}

// wafBlockCodes are status codes firewalls typically answer payloads with.
var wafBlockCodes = map[int]bool{
	403: true, 406: true, 429: true, 501: true, 502: true, 503: true,
}

// maxWAFBodyBytes caps how much of a response body is read for the
// length-divergence heuristic.
const maxWAFBodyBytes = 1 << 20

// WAFDetector is a rough behavioral WAF check: it compares how the site
// answers a harmless baseline request against how it answers obviously
// malicious ones.
type WAFDetector struct {
	Timeout time.Duration
	Scheme  string

	client *http.Client
	log    *zap.SugaredLogger
}

// NewWAFDetector builds a detector with its own HTTP client.
func NewWAFDetector(timeout time.Duration, log *zap.SugaredLogger) *WAFDetector {
	return &WAFDetector{
		Timeout: timeout,
		Scheme:  "https",
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
				DisableKeepAlives: true,
			},
		},
		log: log,
	}
}

// Test probes the domain for WAF behavior. The returned method names which
// heuristic fired, for logging. It never returns an error: if even the
// baseline request fails the target is treated as firewalled, matching how
// aggressive filtering usually presents itself.
func (w *WAFDetector) Test(ctx context.Context, domain string) (bool, string) {
	baseURL := w.Scheme + "://" + domain

	baseStatus, baseBody, err := w.fetch(ctx, baseURL)
	if err != nil {
		return true, "baseline-unreachable"
	}
	baseLen := len(baseBody)

	for _, payload := range wafPayloads {
		status, body, err := w.fetch(ctx, baseURL+payload)
		if err != nil {
			return true, "payload-dropped"
		}
		if wafBlockCodes[status] || status != baseStatus {
			return true, "status-divergence"
		}
		if abs(len(body)-baseLen) > baseLen/2 {
			return true, "body-divergence"
		}
	}
	return false, "none"
}

func (w *WAFDetector) fetch(ctx context.Context, url string) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWAFBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
