package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anurisatria/assignd/internal/rules"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Finished jobs are removed by per-job timers after the retention window;
// suitable for single-instance deployments where job history is disposable.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	timers    map[string]*time.Timer
	retention time.Duration
}

// NewMemoryStore creates a memory-backed job store with the given retention
// window for finished jobs.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*Job),
		timers:    make(map[string]*time.Timer),
		retention: retention,
	}
}

func (m *MemoryStore) Create(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; exists {
		return ErrDuplicateID
	}
	copied := *job
	copied.Logs = append([]LogEntry(nil), job.Logs...)
	m.jobs[job.ID] = &copied
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshotJob(job), nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, snapshotJob(job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (m *MemoryStore) AppendLog(ctx context.Context, id, message string, isError bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	job.Logs = append(job.Logs, LogEntry{Timestamp: time.Now(), Message: message, IsError: isError})
	return nil
}

func (m *MemoryStore) Finish(ctx context.Context, id string, status Status, success bool, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() {
		return ErrTerminal
	}
	now := time.Now()
	job.Status = status
	job.Success = success
	job.Message = message
	job.EndTime = &now
	job.Logs = append(job.Logs, LogEntry{Timestamp: now, Message: message, IsError: status == StatusError})
	m.scheduleExpiryLocked(id)
	return nil
}

func (m *MemoryStore) Cancel(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status.Terminal() {
		return false, nil
	}
	now := time.Now()
	job.Status = StatusCancelled
	job.Message = "Job cancelled"
	job.EndTime = &now
	job.Logs = append(job.Logs, LogEntry{Timestamp: now, Message: "Job cancelled by request", IsError: false})
	m.scheduleExpiryLocked(id)
	return true, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, timer := range m.timers {
		timer.Stop()
		delete(m.timers, id)
	}
	return nil
}

// scheduleExpiryLocked arms the deletion timer for a finished job.
// Caller must hold the write lock.
func (m *MemoryStore) scheduleExpiryLocked(id string) {
	if timer, ok := m.timers[id]; ok {
		timer.Stop()
	}
	m.timers[id] = time.AfterFunc(m.retention, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.removeLocked(id)
	})
}

func (m *MemoryStore) removeLocked(id string) {
	if timer, ok := m.timers[id]; ok {
		timer.Stop()
		delete(m.timers, id)
	}
	delete(m.jobs, id)
}

// expireNow runs the scheduled deletion immediately. Test hook.
func (m *MemoryStore) expireNow(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
}

func snapshotJob(job *Job) *Job {
	copied := *job
	copied.Logs = append([]LogEntry(nil), job.Logs...)
	copied.AdminPayloads = append([]rules.AdminPayload(nil), job.AdminPayloads...)
	return &copied
}
