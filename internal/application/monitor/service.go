// Package monitor implements the watch-list operations and the periodic
// check loop on top of the watch domain model.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/therudywolf/DomainsBot-sub000/internal/domain/watch"
	sharedErrors "github.com/therudywolf/DomainsBot-sub000/internal/shared/errors"
)

// Service is the single writer of the monitoring document. Every operation
// runs a full load-modify-save cycle under one mutex, so concurrent callers
// serialize and no update is ever lost, at the cost of write throughput the
// workload does not need.
type Service struct {
	mu    sync.Mutex
	repo  watch.Repository
	log   *zap.SugaredLogger
	clock func() time.Time
}

// NewService creates the watch-list service.
func NewService(repo watch.Repository, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, log: log, clock: time.Now}
}

// Add puts a domain under monitoring for the owner. The raw input is
// normalized first; adding an already watched domain is a no-op and reports
// false.
func (s *Service) Add(ctx context.Context, owner watch.OwnerRef, rawDomain string) (string, bool, error) {
	domain, err := watch.NormalizeDomain(rawDomain)
	if err != nil {
		return "", false, err
	}

	added := false
	err = s.mutate(ctx, func(doc watch.Document) {
		wl := ensureList(doc, owner)
		if _, ok := wl.Domains[domain]; ok {
			return
		}
		wl.Domains[domain] = &watch.DomainEntry{AddedAt: s.clock().UTC()}
		added = true
	})
	return domain, added, err
}

// Remove stops monitoring a domain for the owner.
func (s *Service) Remove(ctx context.Context, owner watch.OwnerRef, rawDomain string) error {
	domain, err := watch.NormalizeDomain(rawDomain)
	if err != nil {
		return err
	}

	found := false
	err = s.mutate(ctx, func(doc watch.Document) {
		wl, ok := doc[owner.Key()]
		if !ok {
			return
		}
		if _, ok := wl.Domains[domain]; !ok {
			return
		}
		delete(wl.Domains, domain)
		found = true
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", sharedErrors.ErrDomainNotFound, domain)
	}
	return nil
}

// List returns the owner's watched domains with their stored entries.
func (s *Service) List(ctx context.Context, owner watch.OwnerRef) (*watch.WatchList, error) {
	doc, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	wl, ok := doc[owner.Key()]
	if !ok {
		return watch.NewWatchList(), nil
	}
	return wl, nil
}

// SetInterval changes the owner's polling cadence in minutes.
func (s *Service) SetInterval(ctx context.Context, owner watch.OwnerRef, minutes int) error {
	if minutes < 1 {
		return fmt.Errorf("%w: %d minutes", sharedErrors.ErrInvalidInterval, minutes)
	}
	return s.mutate(ctx, func(doc watch.Document) {
		ensureList(doc, owner).IntervalMinutes = minutes
	})
}

// Interval returns the owner's polling cadence.
func (s *Service) Interval(ctx context.Context, owner watch.OwnerRef) (time.Duration, error) {
	wl, err := s.List(ctx, owner)
	if err != nil {
		return 0, err
	}
	return wl.Interval(), nil
}

// Enabled reports whether the owner's checks are running.
func (s *Service) Enabled(ctx context.Context, owner watch.OwnerRef) (bool, error) {
	wl, err := s.List(ctx, owner)
	if err != nil {
		return false, err
	}
	return wl.Enabled, nil
}

// SetEnabled pauses or resumes the owner's checks.
func (s *Service) SetEnabled(ctx context.Context, owner watch.OwnerRef, enabled bool) error {
	return s.mutate(ctx, func(doc watch.Document) {
		ensureList(doc, owner).Enabled = enabled
	})
}

// Snapshot returns a deep copy of the whole monitoring document.
func (s *Service) Snapshot(ctx context.Context) (watch.Document, error) {
	return s.snapshot(ctx)
}

// OwnerKeys lists every owner present in the document, sorted.
func (s *Service) OwnerKeys(ctx context.Context) ([]string, error) {
	doc, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return doc.OwnerKeys(), nil
}

// RecordObservation stores a completed probe snapshot and returns what
// changed relative to the previous one. The diff is computed and the entry
// updated inside the same critical section, so two concurrent observations
// of one domain can never both claim the same change.
func (s *Service) RecordObservation(ctx context.Context, owner watch.OwnerRef, domain string, state watch.DomainState) (watch.DiffResult, error) {
	// Record sets must be sorted before diffing or storing; do not trust the
	// caller to have done it.
	state.Normalize()

	var result watch.DiffResult
	err := s.mutate(ctx, func(doc watch.Document) {
		wl, ok := doc[owner.Key()]
		if !ok {
			return
		}
		entry, ok := wl.Domains[domain]
		if !ok {
			// Removed while the probe was in flight; drop the result.
			return
		}
		now := s.clock().UTC()
		result = watch.Diff(entry.LastState, state, now)
		entry.ApplyObservation(now, state)
	})
	return result, err
}

// EvictIdle is the periodic cleanup pass: it re-enforces the history cap on
// every domain entry (a hand-edited or legacy document may exceed it) and
// removes user-scoped owners whose watch-lists hold no domains. The shared
// list is never evicted. It returns the keys removed.
func (s *Service) EvictIdle(ctx context.Context) ([]string, error) {
	var evicted []string
	err := s.mutate(ctx, func(doc watch.Document) {
		for key, wl := range doc {
			for _, entry := range wl.Domains {
				entry.TruncateHistory()
			}
			if key == watch.SharedKey {
				continue
			}
			if len(wl.Domains) == 0 {
				delete(doc, key)
				evicted = append(evicted, key)
			}
		}
	})
	return evicted, err
}

// mutate runs one load-modify-save cycle under the service lock. A load
// failure is logged and treated as an empty document so a corrupt or missing
// store never wedges the whole engine.
func (s *Service) mutate(ctx context.Context, fn func(watch.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.repo.Load(ctx)
	if err != nil {
		s.log.Errorw("monitoring document load failed, starting empty", "error", err)
		doc = watch.Document{}
	}
	fn(doc)
	if err := s.repo.Save(ctx, doc); err != nil {
		s.log.Errorw("monitoring document save failed", "error", err)
		return fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return nil
}

func (s *Service) snapshot(ctx context.Context) (watch.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func ensureList(doc watch.Document, owner watch.OwnerRef) *watch.WatchList {
	wl, ok := doc[owner.Key()]
	if !ok {
		wl = watch.NewWatchList()
		doc[owner.Key()] = wl
	}
	return wl
}

// withClock overrides the time source, for tests.
func (s *Service) withClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}
