package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/therudywolf/DomainsBot-sub000/internal/domain/watch"
	consts "github.com/therudywolf/DomainsBot-sub000/internal/shared/constants"
)

// Prober produces the next snapshot of a domain. prev is the last stored
// state, nil on first observation.
type Prober interface {
	Observe(ctx context.Context, domain string, prev *watch.DomainState) watch.DomainState
}

// Deliverer pushes one notification text to an owner's destination.
type Deliverer interface {
	Deliver(ctx context.Context, owner watch.OwnerRef, text string)
}

// Scheduler drives the periodic check loop: every tick it finds due domains
// across all owners, probes them with bounded concurrency, records the
// results and delivers change notifications.
type Scheduler struct {
	svc      *Service
	prober   Prober
	notifier Deliverer
	tick     time.Duration
	sem      chan struct{}
	log      *zap.SugaredLogger
	clock    func() time.Time
}

// NewScheduler builds a scheduler. concurrency bounds how many domains are
// probed at once; zero values fall back to the defaults.
func NewScheduler(svc *Service, prober Prober, notifier Deliverer, tick time.Duration, concurrency int, log *zap.SugaredLogger) *Scheduler {
	if tick <= 0 {
		tick = consts.DefaultTick
	}
	if concurrency <= 0 {
		concurrency = consts.DefaultConcurrency
	}
	return &Scheduler{
		svc:      svc,
		prober:   prober,
		notifier: notifier,
		tick:     tick,
		sem:      make(chan struct{}, concurrency),
		log:      log,
		clock:    time.Now,
	}
}

// Run executes check cycles until the context is cancelled. A panicking
// cycle is logged and the loop keeps going; the monitor must outlive any
// single bad cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Infow("monitoring loop started", "tick", s.tick, "concurrency", cap(s.sem))

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		s.safeTick(ctx)
		select {
		case <-ctx.Done():
			s.log.Infow("monitoring loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("check cycle panicked", "panic", r)
		}
	}()
	s.runTick(ctx)
}

type checkTask struct {
	owner  watch.OwnerRef
	domain string
	prev   *watch.DomainState
}

// runTick performs one full check cycle: collect due domains from a
// snapshot, probe them concurrently, then evict idle owners.
func (s *Scheduler) runTick(ctx context.Context) {
	doc, err := s.svc.Snapshot(ctx)
	if err != nil {
		s.log.Errorw("snapshot failed, skipping cycle", "error", err)
		return
	}

	now := s.clock().UTC()
	var tasks []checkTask
	for _, key := range doc.OwnerKeys() {
		wl := doc[key]
		if !wl.Enabled {
			continue
		}
		owner, err := watch.ParseOwnerKey(key)
		if err != nil {
			s.log.Warnw("skipping malformed owner key", "key", key)
			continue
		}
		for _, domain := range wl.DomainNames() {
			entry := wl.Domains[domain]
			if entry.Due(now, wl.Interval()) {
				tasks = append(tasks, checkTask{owner: owner, domain: domain, prev: entry.LastState})
			}
		}
	}

	if len(tasks) > 0 {
		s.log.Debugw("check cycle", "due", len(tasks))
		s.runTasks(ctx, tasks)
	}

	evicted, err := s.svc.EvictIdle(ctx)
	if err != nil {
		s.log.Errorw("eviction failed", "error", err)
	} else if len(evicted) > 0 {
		s.log.Infow("evicted idle owners", "owners", evicted)
	}
}

// RunChecksNow probes every domain of one owner immediately, ignoring the
// polling interval. It blocks until all checks complete.
func (s *Scheduler) RunChecksNow(ctx context.Context, owner watch.OwnerRef) (int, error) {
	doc, err := s.svc.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	wl, ok := doc[owner.Key()]
	if !ok {
		return 0, nil
	}

	var tasks []checkTask
	for _, domain := range wl.DomainNames() {
		tasks = append(tasks, checkTask{owner: owner, domain: domain, prev: wl.Domains[domain].LastState})
	}
	s.runTasks(ctx, tasks)
	return len(tasks), nil
}

func (s *Scheduler) runTasks(ctx context.Context, tasks []checkTask) {
	var wg sync.WaitGroup
	for _, task := range tasks {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}
		wg.Add(1)
		go func(task checkTask) {
			defer wg.Done()
			defer func() { <-s.sem }()
			s.checkDomain(ctx, task)
		}(task)
	}
	wg.Wait()
}

// checkDomain probes one domain, records the result and notifies on change.
// Failures never propagate: one bad domain must not stop the others.
func (s *Scheduler) checkDomain(ctx context.Context, task checkTask) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("domain check panicked", "owner", task.owner.Key(), "domain", task.domain, "panic", r)
		}
	}()

	state := s.prober.Observe(ctx, task.domain, task.prev)

	result, err := s.svc.RecordObservation(ctx, task.owner, task.domain, state)
	if err != nil {
		s.log.Errorw("failed to record observation", "owner", task.owner.Key(), "domain", task.domain, "error", err)
		return
	}
	if result.Baseline || len(result.Lines) == 0 {
		return
	}

	s.notifier.Deliver(ctx, task.owner, formatNotification(task.domain, result.Lines))
}

// formatNotification renders the change lines into one message.
func formatNotification(domain string, lines []string) string {
	var b strings.Builder
	b.WriteString("Changes for ")
	b.WriteString(domain)
	b.WriteString(":")
	for _, line := range lines {
		b.WriteString("\n• ")
		b.WriteString(line)
	}
	return b.String()
}
