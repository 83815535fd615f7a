package watch

import (
	"sort"
	"time"
)

const (
	// DefaultIntervalMinutes is the polling cadence a new watch-list starts with.
	DefaultIntervalMinutes = 15
	// MaxStateHistory caps how many past snapshots a domain entry retains.
	MaxStateHistory = 10
)

// HistoryEntry is one archived snapshot with the time it was taken.
type HistoryEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	State     DomainState `json:"state"`
}

// DomainEntry is the per-domain record inside a watch-list.
type DomainEntry struct {
	AddedAt      time.Time      `json:"added_at"`
	LastCheck    *time.Time     `json:"last_check,omitempty"`
	LastState    *DomainState   `json:"last_state,omitempty"`
	StateHistory []HistoryEntry `json:"state_history,omitempty"`
}

// Due reports whether the entry should be probed at `now` given the owner's
// polling interval. A never-checked entry is always due.
func (e *DomainEntry) Due(now time.Time, interval time.Duration) bool {
	if e.LastCheck == nil {
		return true
	}
	return !now.Before(e.LastCheck.Add(interval))
}

// ApplyObservation stores a completed probe snapshot: it replaces LastState,
// advances LastCheck (monotonically, never backwards) and archives the
// snapshot in the bounded history.
func (e *DomainEntry) ApplyObservation(now time.Time, state DomainState) {
	s := state.Clone()
	e.LastState = &s

	if e.LastCheck == nil || now.After(*e.LastCheck) {
		t := now
		e.LastCheck = &t
	}

	e.StateHistory = append(e.StateHistory, HistoryEntry{Timestamp: now, State: state.Clone()})
	e.TruncateHistory()
}

// TruncateHistory enforces the MaxStateHistory cap, dropping the oldest
// entries first.
func (e *DomainEntry) TruncateHistory() {
	if len(e.StateHistory) > MaxStateHistory {
		e.StateHistory = append([]HistoryEntry(nil), e.StateHistory[len(e.StateHistory)-MaxStateHistory:]...)
	}
}

func (e *DomainEntry) clone() *DomainEntry {
	out := &DomainEntry{AddedAt: e.AddedAt}
	out.LastCheck = copyTime(e.LastCheck)
	if e.LastState != nil {
		s := e.LastState.Clone()
		out.LastState = &s
	}
	if e.StateHistory != nil {
		out.StateHistory = make([]HistoryEntry, len(e.StateHistory))
		for i, h := range e.StateHistory {
			out.StateHistory[i] = HistoryEntry{Timestamp: h.Timestamp, State: h.State.Clone()}
		}
	}
	return out
}

// WatchList is one owner's set of watched domains plus its cadence settings.
type WatchList struct {
	Domains         map[string]*DomainEntry `json:"domains"`
	Enabled         bool                    `json:"enabled"`
	IntervalMinutes int                     `json:"interval_minutes"`
}

// NewWatchList returns a watch-list with defaults applied.
func NewWatchList() *WatchList {
	return &WatchList{
		Domains:         make(map[string]*DomainEntry),
		Enabled:         true,
		IntervalMinutes: DefaultIntervalMinutes,
	}
}

// Interval returns the polling cadence as a duration, falling back to the
// default when the stored value is missing or nonsense.
func (wl *WatchList) Interval() time.Duration {
	minutes := wl.IntervalMinutes
	if minutes < 1 {
		minutes = DefaultIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// DomainNames returns the watched domains in sorted order.
func (wl *WatchList) DomainNames() []string {
	names := make([]string, 0, len(wl.Domains))
	for name := range wl.Domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (wl *WatchList) clone() *WatchList {
	out := &WatchList{
		Domains:         make(map[string]*DomainEntry, len(wl.Domains)),
		Enabled:         wl.Enabled,
		IntervalMinutes: wl.IntervalMinutes,
	}
	for name, entry := range wl.Domains {
		out.Domains[name] = entry.clone()
	}
	return out
}

// Document is the whole persisted monitoring state: every owner's watch-list
// keyed by owner key. It is always read and written as one unit.
type Document map[string]*WatchList

// Clone returns a deep copy, used to hand callers a snapshot they can read
// without holding the store lock.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for key, wl := range d {
		out[key] = wl.clone()
	}
	return out
}

// OwnerKeys returns all owner keys in sorted order.
func (d Document) OwnerKeys() []string {
	keys := make([]string, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
