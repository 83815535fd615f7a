package api

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobError   = "error"
)

// Job is one asynchronous check run triggered through the API.
type Job struct {
	ID         string     `json:"id"`
	Owner      string     `json:"owner"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Checked    int        `json:"checked,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// JobManager tracks asynchronous check jobs in memory and fans status
// updates out to stream subscribers.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	subscribers map[chan Job]struct{}
	maxJobs     int
}

// NewJobManager returns a manager that keeps at most the given number of
// finished jobs around; zero means the default of 1000.
func NewJobManager(maxJobs int) *JobManager {
	if maxJobs <= 0 {
		maxJobs = 1000
	}
	return &JobManager{
		jobs:        make(map[string]*Job),
		subscribers: make(map[chan Job]struct{}),
		maxJobs:     maxJobs,
	}
}

// Create registers a pending job for the owner and returns a copy.
func (m *JobManager) Create(owner string) Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:     uuid.NewString(),
		Owner:  owner,
		Status: JobPending,
	}
	m.jobs[job.ID] = job
	m.evictOldest()
	m.broadcast(*job)
	return *job
}

// Update mutates a job under the lock and broadcasts the new state. Unknown
// IDs are ignored.
func (m *JobManager) Update(id string, mutate func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return
	}
	mutate(job)
	m.broadcast(*job)
}

// Get returns a copy of the job, or nil when unknown.
func (m *JobManager) Get(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, ok := m.jobs[id]; ok {
		cp := *job
		return &cp
	}
	return nil
}

// List returns up to limit jobs, newest first.
func (m *JobManager) List(limit int) []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		a, b := jobs[i].StartedAt, jobs[j].StartedAt
		switch {
		case a == nil && b == nil:
			return jobs[i].ID > jobs[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs
}

// Subscribe returns a channel of job updates plus an unsubscribe function.
// Slow subscribers miss updates rather than block the manager.
func (m *JobManager) Subscribe() (chan Job, func()) {
	ch := make(chan Job, 10)
	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()
	return ch, func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
}

func (m *JobManager) broadcast(job Job) {
	for ch := range m.subscribers {
		select {
		case ch <- job:
		default:
		}
	}
}

// evictOldest drops finished jobs beyond the cap, oldest first. Caller must
// hold the write lock.
func (m *JobManager) evictOldest() {
	if len(m.jobs) <= m.maxJobs {
		return
	}
	type finished struct {
		id string
		at time.Time
	}
	var done []finished
	for id, job := range m.jobs {
		if job.Status != JobDone && job.Status != JobError {
			continue
		}
		at := time.Now()
		if job.FinishedAt != nil {
			at = *job.FinishedAt
		}
		done = append(done, finished{id: id, at: at})
	}
	sort.Slice(done, func(i, j int) bool { return done[i].at.Before(done[j].at) })

	excess := len(m.jobs) - m.maxJobs
	for i := 0; i < excess && i < len(done); i++ {
		delete(m.jobs, done[i].id)
	}
}
