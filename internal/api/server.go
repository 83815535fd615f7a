// Package api exposes the monitoring engine over HTTP for operators and
// dashboards.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/therudywolf/DomainsBot-sub000/internal/api/middleware"
	"github.com/therudywolf/DomainsBot-sub000/internal/domain/watch"
	sharedErrors "github.com/therudywolf/DomainsBot-sub000/internal/shared/errors"
)

// WatchService is the slice of the monitor service the API needs.
type WatchService interface {
	Add(ctx context.Context, owner watch.OwnerRef, rawDomain string) (string, bool, error)
	Remove(ctx context.Context, owner watch.OwnerRef, rawDomain string) error
	List(ctx context.Context, owner watch.OwnerRef) (*watch.WatchList, error)
	SetInterval(ctx context.Context, owner watch.OwnerRef, minutes int) error
	SetEnabled(ctx context.Context, owner watch.OwnerRef, enabled bool) error
	OwnerKeys(ctx context.Context) ([]string, error)
}

// CheckRunner triggers an immediate check of all of one owner's domains.
type CheckRunner interface {
	RunChecksNow(ctx context.Context, owner watch.OwnerRef) (int, error)
}

// Config wires the server's collaborators and policies.
type Config struct {
	Watch       WatchService
	Checks      CheckRunner
	Jobs        *JobManager
	AuthToken   string
	Logger      *zap.Logger
	CORSOrigins []string // Allowed CORS origins (empty = allow all)
	RateLimit   int      // Requests per second per IP (0 = disabled)
	RateBurst   int
}

// Server is the operator HTTP API.
type Server struct {
	cfg      Config
	mux      *http.ServeMux
	limiters *rateLimiterMap
}

// NewServer builds the server and registers its routes.
func NewServer(cfg Config) *Server {
	srv := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		limiters: newRateLimiterMap(),
	}
	srv.routes()
	return srv
}

// ServeHTTP applies the middleware chain: RequestID -> Logging -> RateLimit -> CORS -> Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := middleware.RequestID(s.withLogging(s.withRateLimit(s.withCORS(s.mux))))
	handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.Handle("/api/v1/health", s.withAuth(http.HandlerFunc(s.handleHealth)))
	s.mux.Handle("/api/v1/owners", s.withAuth(http.HandlerFunc(s.handleOwners)))
	s.mux.Handle("/api/v1/owners/", s.withAuth(http.HandlerFunc(s.handleOwnerSubtree)))
	s.mux.Handle("/api/v1/jobs", s.withAuth(http.HandlerFunc(s.handleJobs)))
	s.mux.Handle("/api/v1/jobs/", s.withAuth(http.HandlerFunc(s.handleJobByID)))
	s.mux.Handle("/api/v1/jobs-stream", s.withAuth(http.HandlerFunc(s.handleJobStream)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOwners(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	keys, err := s.cfg.Watch.OwnerKeys(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"owners": keys})
}

// handleOwnerSubtree routes /api/v1/owners/{owner}/... paths:
//
//	GET/POST {owner}/domains
//	DELETE   {owner}/domains/{domain}
//	PUT      {owner}/interval
//	PUT      {owner}/enabled
//	POST     {owner}/checks
func (s *Server) handleOwnerSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/owners/")
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" {
		s.writeError(w, r, http.StatusNotFound, errors.New("owner and resource required"))
		return
	}

	owner, err := watch.ParseOwnerKey(parts[0])
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	switch parts[1] {
	case "domains":
		if len(parts) == 3 && parts[2] != "" {
			s.handleDomainByName(w, r, owner, parts[2])
			return
		}
		s.handleDomains(w, r, owner)
	case "interval":
		s.handleInterval(w, r, owner)
	case "enabled":
		s.handleEnabled(w, r, owner)
	case "checks":
		s.handleChecks(w, r, owner)
	default:
		s.writeError(w, r, http.StatusNotFound, errors.New("unknown resource"))
	}
}

type domainAddRequest struct {
	Domain string `json:"domain"`
}

type watchListResponse struct {
	Owner           string                        `json:"owner"`
	Enabled         bool                          `json:"enabled"`
	IntervalMinutes int                           `json:"interval_minutes"`
	Domains         map[string]*watch.DomainEntry `json:"domains"`
}

func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request, owner watch.OwnerRef) {
	switch r.Method {
	case http.MethodGet:
		wl, err := s.cfg.Watch.List(r.Context(), owner)
		if err != nil {
			s.writeError(w, r, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, watchListResponse{
			Owner:           owner.Key(),
			Enabled:         wl.Enabled,
			IntervalMinutes: wl.IntervalMinutes,
			Domains:         wl.Domains,
		})
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, 1048576)
		var req domainAddRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		domain, added, err := s.cfg.Watch.Add(r.Context(), owner, req.Domain)
		if err != nil {
			s.writeError(w, r, httpStatusFor(err), err)
			return
		}
		status := http.StatusCreated
		if !added {
			status = http.StatusOK
		}
		writeJSON(w, status, map[string]interface{}{"domain": domain, "added": added})
	default:
		s.methodNotAllowed(w, r)
	}
}

func (s *Server) handleDomainByName(w http.ResponseWriter, r *http.Request, owner watch.OwnerRef, domain string) {
	if r.Method != http.MethodDelete {
		s.methodNotAllowed(w, r)
		return
	}
	if err := s.cfg.Watch.Remove(r.Context(), owner, domain); err != nil {
		s.writeError(w, r, httpStatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"domain": domain, "status": "removed"})
}

type intervalRequest struct {
	Minutes int `json:"minutes"`
}

func (s *Server) handleInterval(w http.ResponseWriter, r *http.Request, owner watch.OwnerRef) {
	if r.Method != http.MethodPut {
		s.methodNotAllowed(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.cfg.Watch.SetInterval(r.Context(), owner, req.Minutes); err != nil {
		s.writeError(w, r, httpStatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"interval_minutes": req.Minutes})
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleEnabled(w http.ResponseWriter, r *http.Request, owner watch.OwnerRef) {
	if r.Method != http.MethodPut {
		s.methodNotAllowed(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.cfg.Watch.SetEnabled(r.Context(), owner, req.Enabled); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// handleChecks starts an asynchronous check run for the owner and returns
// the job to poll.
func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request, owner watch.OwnerRef) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	if s.cfg.Jobs == nil || s.cfg.Checks == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("check jobs not available"))
		return
	}

	job := s.cfg.Jobs.Create(owner.Key())
	go s.runCheckJob(job.ID, owner)

	writeJSON(w, http.StatusAccepted, job)
}

// runCheckJob executes the check run in the background with its own context;
// the HTTP request that started it is long gone by the time it finishes.
func (s *Server) runCheckJob(jobID string, owner watch.OwnerRef) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	start := time.Now().UTC()
	s.cfg.Jobs.Update(jobID, func(j *Job) {
		j.Status = JobRunning
		j.StartedAt = &start
	})

	checked, err := s.cfg.Checks.RunChecksNow(ctx, owner)

	finish := time.Now().UTC()
	s.cfg.Jobs.Update(jobID, func(j *Job) {
		j.FinishedAt = &finish
		j.Checked = checked
		if err != nil {
			j.Status = JobError
			j.Error = err.Error()
			return
		}
		j.Status = JobDone
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	limit := 25
	if q := r.URL.Query().Get("limit"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	writeJSON(w, http.StatusOK, s.cfg.Jobs.List(limit))
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	if id == "" {
		s.writeError(w, r, http.StatusNotFound, errors.New("job ID required"))
		return
	}
	job := s.cfg.Jobs.Get(id)
	if job == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates, unsubscribe := s.cfg.Jobs.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case job, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(job)
			if err != nil {
				continue
			}
			if !s.writeStreamChunk(w, []byte("event: job\ndata: ")) {
				return
			}
			if !s.writeStreamChunk(w, payload) {
				return
			}
			if !s.writeStreamChunk(w, []byte("\n\n")) {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			if idx := strings.Index(forwarded, ","); idx > 0 {
				clientIP = strings.TrimSpace(forwarded[:idx])
			} else {
				clientIP = strings.TrimSpace(forwarded)
			}
		}
		if idx := strings.LastIndex(clientIP, ":"); idx > 0 {
			clientIP = clientIP[:idx]
		}

		limiter := s.limiters.getLimiter(clientIP, s.cfg.RateLimit, s.cfg.RateBurst)
		if !limiter.Allow() {
			if s.cfg.Logger != nil {
				s.requestLogger(r).Warn("rate_limit_exceeded", zap.String("client_ip", clientIP))
			}
			s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := "*"
		if len(s.cfg.CORSOrigins) > 0 {
			allowOrigin = ""
			for _, allowed := range s.cfg.CORSOrigins {
				if allowed == origin {
					allowOrigin = origin
					break
				}
			}
		}
		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Auth-Token")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)

		if s.cfg.Logger != nil {
			s.cfg.Logger.Info("http_request",
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", lrw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.Int64("bytes", lrw.bytesWritten),
			)
		}
	})
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingResponseWriter captures status code and bytes written for the
// access log.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

// httpStatusFor maps domain errors onto HTTP statuses.
func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, sharedErrors.ErrInvalidDomain),
		errors.Is(err, sharedErrors.ErrInvalidInterval),
		errors.Is(err, sharedErrors.ErrInvalidOwnerKey):
		return http.StatusBadRequest
	case errors.Is(err, sharedErrors.ErrDomainNotFound),
		errors.Is(err, sharedErrors.ErrOwnerNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		if s.cfg.Logger != nil {
			s.requestLogger(r).Error("internal_server_error", zap.Error(err), zap.Int("status", status))
		}
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if s.cfg.Logger == nil {
		return zap.NewNop()
	}
	return s.cfg.Logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (s *Server) writeStreamChunk(w http.ResponseWriter, data []byte) bool {
	if _, err := w.Write(data); err != nil {
		return false
	}
	return true
}

// rateLimiterMap keeps one token bucket per client IP, pruning stale
// entries so the map cannot grow without bound.
type rateLimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiterMap() *rateLimiterMap {
	m := &rateLimiterMap{limiters: make(map[string]*clientLimiter)}
	go m.cleanup()
	return m
}

func (m *rateLimiterMap) getLimiter(ip string, perSecond, burst int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if burst <= 0 {
		burst = perSecond
	}
	cl, ok := m.limiters[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
		m.limiters[ip] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

func (m *rateLimiterMap) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		m.mu.Lock()
		for ip, cl := range m.limiters {
			if time.Since(cl.lastSeen) > 30*time.Minute {
				delete(m.limiters, ip)
			}
		}
		m.mu.Unlock()
	}
}
