package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestDetector(scheme string) *WAFDetector {
	d := NewWAFDetector(2*time.Second, nil)
	d.Scheme = scheme
	return d
}

func TestWAFDetectorBlockStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.URL.RawQuery == "" {
			w.Write([]byte("welcome"))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	d := newTestDetector("http")
	detected, method := d.Test(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	if !detected {
		t.Fatal("expected WAF detected when payloads are blocked")
	}
	if method != "status-divergence" {
		t.Errorf("method = %q, want status-divergence", method)
	}
}

func TestWAFDetectorUniformResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("same page for everyone"))
	}))
	defer srv.Close()

	d := newTestDetector("http")
	detected, _ := d.Test(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	if detected {
		t.Fatal("expected no WAF when all responses are identical")
	}
}

func TestWAFDetectorBodyDivergence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.URL.RawQuery == "" {
			w.Write([]byte(strings.Repeat("x", 1000)))
			return
		}
		w.Write([]byte("blocked"))
	}))
	defer srv.Close()

	d := newTestDetector("http")
	detected, method := d.Test(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	if !detected {
		t.Fatal("expected WAF detected on body length divergence")
	}
	if method != "body-divergence" {
		t.Errorf("method = %q, want body-divergence", method)
	}
}

func TestWAFDetectorBaselineUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	d := newTestDetector("http")
	detected, method := d.Test(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	if !detected {
		t.Fatal("expected WAF assumed when even the baseline request fails")
	}
	if method != "baseline-unreachable" {
		t.Errorf("method = %q, want baseline-unreachable", method)
	}
}
