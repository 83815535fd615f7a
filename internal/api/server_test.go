package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/therudywolf/DomainsBot-sub000/internal/domain/watch"
	sharedErrors "github.com/therudywolf/DomainsBot-sub000/internal/shared/errors"
)

// fakeWatch is an in-memory WatchService for handler tests.
type fakeWatch struct {
	mu    sync.Mutex
	lists map[string]*watch.WatchList
}

func newFakeWatch() *fakeWatch {
	return &fakeWatch{lists: map[string]*watch.WatchList{}}
}

func (f *fakeWatch) list(owner watch.OwnerRef) *watch.WatchList {
	wl, ok := f.lists[owner.Key()]
	if !ok {
		wl = watch.NewWatchList()
		f.lists[owner.Key()] = wl
	}
	return wl
}

func (f *fakeWatch) Add(_ context.Context, owner watch.OwnerRef, raw string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	domain, err := watch.NormalizeDomain(raw)
	if err != nil {
		return "", false, err
	}
	wl := f.list(owner)
	if _, ok := wl.Domains[domain]; ok {
		return domain, false, nil
	}
	wl.Domains[domain] = &watch.DomainEntry{}
	return domain, true, nil
}

func (f *fakeWatch) Remove(_ context.Context, owner watch.OwnerRef, raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	domain, err := watch.NormalizeDomain(raw)
	if err != nil {
		return err
	}
	wl := f.list(owner)
	if _, ok := wl.Domains[domain]; !ok {
		return fmt.Errorf("%w: %s", sharedErrors.ErrDomainNotFound, domain)
	}
	delete(wl.Domains, domain)
	return nil
}

func (f *fakeWatch) List(_ context.Context, owner watch.OwnerRef) (*watch.WatchList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list(owner), nil
}

func (f *fakeWatch) SetInterval(_ context.Context, owner watch.OwnerRef, minutes int) error {
	if minutes < 1 {
		return sharedErrors.ErrInvalidInterval
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list(owner).IntervalMinutes = minutes
	return nil
}

func (f *fakeWatch) SetEnabled(_ context.Context, owner watch.OwnerRef, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list(owner).Enabled = enabled
	return nil
}

func (f *fakeWatch) OwnerKeys(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.lists))
	for k := range f.lists {
		keys = append(keys, k)
	}
	return keys, nil
}

type fakeChecks struct {
	mu      sync.Mutex
	runs    int
	checked int
}

func (f *fakeChecks) RunChecksNow(context.Context, watch.OwnerRef) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return f.checked, nil
}

func newTestServer(cfg Config) *Server {
	if cfg.Watch == nil {
		cfg.Watch = newFakeWatch()
	}
	return NewServer(cfg)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(Config{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestAddAndListDomains(t *testing.T) {
	srv := newTestServer(Config{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/owners/shared/domains",
		strings.NewReader(`{"domain":"https://Example.COM"}`))
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, body %s", rec.Code, rec.Body.String())
	}
	var added map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &added); err != nil {
		t.Fatal(err)
	}
	if added["domain"] != "example.com" || added["added"] != true {
		t.Errorf("POST body = %v", added)
	}

	// Posting the same domain again is idempotent.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/owners/shared/domains",
		strings.NewReader(`{"domain":"example.com"}`))
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("idempotent POST status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/owners/shared/domains", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var listed watchListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if _, ok := listed.Domains["example.com"]; !ok {
		t.Errorf("GET body = %+v, want example.com listed", listed)
	}
}

func TestAddInvalidDomainReturns400(t *testing.T) {
	srv := newTestServer(Config{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/owners/shared/domains",
		strings.NewReader(`{"domain":"not a domain"}`))
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteDomain(t *testing.T) {
	watchSvc := newFakeWatch()
	if _, _, err := watchSvc.Add(context.Background(), watch.UserOwner(42), "example.com"); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(Config{Watch: watchSvc})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/owners/42/domains/example.com", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/owners/42/domains/example.com", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestSetIntervalAndEnabled(t *testing.T) {
	watchSvc := newFakeWatch()
	srv := newTestServer(Config{Watch: watchSvc})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/owners/7/interval",
		strings.NewReader(`{"minutes":30}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("interval status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/owners/7/interval",
		strings.NewReader(`{"minutes":0}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero interval status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/owners/7/enabled",
		strings.NewReader(`{"enabled":false}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("enabled status = %d", rec.Code)
	}

	wl, _ := watchSvc.List(context.Background(), watch.UserOwner(7))
	if wl.IntervalMinutes != 30 || wl.Enabled {
		t.Errorf("list = interval %d enabled %v, want 30/false", wl.IntervalMinutes, wl.Enabled)
	}
}

func TestBadOwnerKeyReturns400(t *testing.T) {
	srv := newTestServer(Config{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/owners/bogus/domains", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAuthToken(t *testing.T) {
	srv := newTestServer(Config{AuthToken: "secret"})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Auth-Token", "secret")
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(Config{RateLimit: 1, RateBurst: 1})

	limited := false
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.RemoteAddr = "10.1.2.3:5000"
		srv.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("burst of requests was never rate limited")
	}
}

func TestRequestIDHeaderPresent(t *testing.T) {
	srv := newTestServer(Config{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing from response")
	}
}
