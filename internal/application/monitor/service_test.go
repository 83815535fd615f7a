package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/therudywolf/DomainsBot-sub000/internal/domain/watch"
	sharedErrors "github.com/therudywolf/DomainsBot-sub000/internal/shared/errors"
)

// memoryWatchRepo is an in-memory watch.Repository for tests.
type memoryWatchRepo struct {
	mu  sync.Mutex
	doc watch.Document
}

func newMemoryWatchRepo() *memoryWatchRepo {
	return &memoryWatchRepo{doc: watch.Document{}}
}

func (m *memoryWatchRepo) Load(context.Context) (watch.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone(), nil
}

func (m *memoryWatchRepo) Save(_ context.Context, doc watch.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = doc.Clone()
	return nil
}

func newTestService() *Service {
	return NewService(newMemoryWatchRepo(), zap.NewNop().Sugar())
}

func TestServiceAddNormalizesAndDeduplicates(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner := watch.UserOwner(42)

	domain, added, err := svc.Add(ctx, owner, "https://Example.COM/path")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if domain != "example.com" || !added {
		t.Errorf("Add = (%q, %v), want (example.com, true)", domain, added)
	}

	_, added, err = svc.Add(ctx, owner, "example.com")
	if err != nil {
		t.Fatalf("second Add: %v", err)
	}
	if added {
		t.Error("adding an already watched domain must report false")
	}

	wl, err := svc.List(ctx, owner)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(wl.Domains) != 1 {
		t.Errorf("domains = %v, want exactly one", wl.DomainNames())
	}
}

func TestServiceAddRejectsGarbage(t *testing.T) {
	svc := newTestService()
	_, _, err := svc.Add(context.Background(), watch.SharedOwner(), "not a domain")
	if !errors.Is(err, sharedErrors.ErrInvalidDomain) {
		t.Errorf("err = %v, want ErrInvalidDomain", err)
	}
}

func TestServiceRemove(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner := watch.SharedOwner()

	if _, _, err := svc.Add(ctx, owner, "example.com"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Remove(ctx, owner, "EXAMPLE.com"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := svc.Remove(ctx, owner, "example.com"); !errors.Is(err, sharedErrors.ErrDomainNotFound) {
		t.Errorf("second Remove err = %v, want ErrDomainNotFound", err)
	}
}

func TestServiceSetInterval(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner := watch.UserOwner(7)

	if err := svc.SetInterval(ctx, owner, 0); !errors.Is(err, sharedErrors.ErrInvalidInterval) {
		t.Errorf("err = %v, want ErrInvalidInterval", err)
	}
	if err := svc.SetInterval(ctx, owner, 30); err != nil {
		t.Fatalf("SetInterval: %v", err)
	}

	wl, err := svc.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if wl.IntervalMinutes != 30 {
		t.Errorf("interval = %d, want 30", wl.IntervalMinutes)
	}
}

func TestServiceSetEnabled(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner := watch.SharedOwner()

	if err := svc.SetEnabled(ctx, owner, false); err != nil {
		t.Fatal(err)
	}
	wl, err := svc.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if wl.Enabled {
		t.Error("watch-list still enabled after SetEnabled(false)")
	}
}

func TestRecordObservationDiffsAndStores(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner := watch.SharedOwner()

	if _, _, err := svc.Add(ctx, owner, "example.com"); err != nil {
		t.Fatal(err)
	}

	first, err := svc.RecordObservation(ctx, owner, "example.com", watch.DomainState{Gost: false})
	if err != nil {
		t.Fatalf("first RecordObservation: %v", err)
	}
	if !first.Baseline {
		t.Error("first observation must be a baseline")
	}

	second, err := svc.RecordObservation(ctx, owner, "example.com", watch.DomainState{Gost: true})
	if err != nil {
		t.Fatalf("second RecordObservation: %v", err)
	}
	if second.Baseline {
		t.Error("second observation must not be a baseline")
	}
	if len(second.Lines) != 1 || second.Lines[0] != "GOST: No → Yes" {
		t.Errorf("lines = %v", second.Lines)
	}

	wl, err := svc.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	entry := wl.Domains["example.com"]
	if entry.LastState == nil || !entry.LastState.Gost {
		t.Error("last state not updated")
	}
	if len(entry.StateHistory) != 2 {
		t.Errorf("history length = %d, want 2", len(entry.StateHistory))
	}
}

func TestRecordObservationForRemovedDomainIsDropped(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	res, err := svc.RecordObservation(ctx, watch.SharedOwner(), "gone.example.com", watch.DomainState{})
	if err != nil {
		t.Fatalf("RecordObservation: %v", err)
	}
	if res.Baseline || len(res.Lines) != 0 {
		t.Errorf("result = %+v, want empty for an unwatched domain", res)
	}
}

func TestRecordObservationConcurrent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner := watch.UserOwner(1)

	domains := make([]string, 5)
	for i := range domains {
		domains[i] = fmt.Sprintf("site%d.example.com", i)
		if _, _, err := svc.Add(ctx, owner, domains[i]); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			domain := domains[i%len(domains)]
			state := watch.DomainState{DNSA: []string{fmt.Sprintf("10.0.0.%d", i)}}
			if _, err := svc.RecordObservation(ctx, owner, domain, state); err != nil {
				t.Errorf("RecordObservation(%s): %v", domain, err)
			}
		}(i)
	}
	wg.Wait()

	wl, err := svc.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	for _, domain := range domains {
		entry := wl.Domains[domain]
		if entry.LastState == nil {
			t.Errorf("%s: no state recorded", domain)
			continue
		}
		if got := len(entry.StateHistory); got != 10 {
			t.Errorf("%s: history length = %d, want capped at 10", domain, got)
		}
	}
}

func TestEvictIdle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	// Shared list left empty on purpose; it must survive eviction.
	if err := svc.SetEnabled(ctx, watch.SharedOwner(), true); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetInterval(ctx, watch.UserOwner(100), 5); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Add(ctx, watch.UserOwner(200), "example.com"); err != nil {
		t.Fatal(err)
	}

	evicted, err := svc.EvictIdle(ctx)
	if err != nil {
		t.Fatalf("EvictIdle: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != "100" {
		t.Errorf("evicted = %v, want [100]", evicted)
	}

	keys, err := svc.OwnerKeys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"200": true, "shared": true}
	if len(keys) != 2 || !want[keys[0]] || !want[keys[1]] {
		t.Errorf("owner keys = %v, want 200 and shared", keys)
	}
}

func TestEvictIdleTruncatesOversizedHistory(t *testing.T) {
	repo := newMemoryWatchRepo()
	svc := NewService(repo, zap.NewNop().Sugar())
	ctx := context.Background()

	// Simulate a legacy document whose history outgrew the cap before the
	// cap existed.
	entry := &watch.DomainEntry{AddedAt: time.Now().UTC()}
	for i := 0; i < 15; i++ {
		entry.StateHistory = append(entry.StateHistory, watch.HistoryEntry{
			Timestamp: time.Now().UTC(),
			State:     watch.DomainState{DNSA: []string{fmt.Sprintf("10.0.0.%d", i)}},
		})
	}
	wl := watch.NewWatchList()
	wl.Domains["example.com"] = entry
	if err := repo.Save(ctx, watch.Document{watch.SharedKey: wl}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.EvictIdle(ctx); err != nil {
		t.Fatalf("EvictIdle: %v", err)
	}

	doc, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	history := doc[watch.SharedKey].Domains["example.com"].StateHistory
	if len(history) != watch.MaxStateHistory {
		t.Fatalf("history length = %d, want %d", len(history), watch.MaxStateHistory)
	}
	// The oldest entries must be the ones dropped.
	if got := history[0].State.DNSA[0]; got != "10.0.0.5" {
		t.Errorf("oldest surviving entry = %s, want 10.0.0.5", got)
	}
}

func TestRecordObservationNormalizesRecordSets(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner := watch.SharedOwner()

	if _, _, err := svc.Add(ctx, owner, "example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordObservation(ctx, owner, "example.com", watch.DomainState{
		DNSA: []string{"10.0.0.2", "10.0.0.1"},
	}); err != nil {
		t.Fatal(err)
	}

	wl, err := svc.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	stored := wl.Domains["example.com"].LastState.DNSA
	if stored[0] != "10.0.0.1" || stored[1] != "10.0.0.2" {
		t.Errorf("stored DNS A = %v, want sorted", stored)
	}

	// The same set in a different order is not a change.
	res, err := svc.RecordObservation(ctx, owner, "example.com", watch.DomainState{
		DNSA: []string{"10.0.0.2", "10.0.0.1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Lines) != 0 {
		t.Errorf("lines = %v, want none for a reordered record set", res.Lines)
	}
}

func TestServiceSurvivesLoadFailure(t *testing.T) {
	repo := &failingRepo{inner: newMemoryWatchRepo(), failLoads: 1}
	svc := NewService(repo, zap.NewNop().Sugar())

	_, added, err := svc.Add(context.Background(), watch.SharedOwner(), "example.com")
	if err != nil {
		t.Fatalf("Add after load failure: %v", err)
	}
	if !added {
		t.Error("add must proceed on an empty document when load fails")
	}
}

type failingRepo struct {
	inner     *memoryWatchRepo
	failLoads int
}

func (f *failingRepo) Load(ctx context.Context) (watch.Document, error) {
	if f.failLoads > 0 {
		f.failLoads--
		return nil, errors.New("disk on fire")
	}
	return f.inner.Load(ctx)
}

func (f *failingRepo) Save(ctx context.Context, doc watch.Document) error {
	return f.inner.Save(ctx, doc)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
