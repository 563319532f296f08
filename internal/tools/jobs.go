package tools

import (
	"context"
	"sync"
	"time"

	"github.com/weaver-ai/weaver/pkg/models"
)

// JobStatus is the lifecycle state of an async tool invocation.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job tracks a tool call whose descriptor set Async=true, so the caller
// polls or is notified instead of blocking the turn on the call.
type Job struct {
	ID         string
	ThreadID   string
	ToolName   string
	ToolCallID string
	Status     JobStatus
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Result     *models.ToolResult

	cancel context.CancelFunc
}

func cloneJob(j *Job) *Job {
	if j == nil {
		return nil
	}
	clone := *j
	clone.cancel = nil
	if j.Result != nil {
		r := *j.Result
		clone.Result = &r
	}
	return &clone
}

// JobStore tracks async tool jobs. Implementations must be safe for
// concurrent use.
type JobStore interface {
	Create(job *Job)
	Update(job *Job)
	Get(id string) (*Job, bool)
	List(threadID string) []*Job
	Cancel(id string) bool
	Prune(olderThan time.Duration) int
}

// MemoryJobStore is an in-process JobStore, sufficient for a single-process
// deployment; a durable deployment would back this with the same
// checkpoint store used for conversation state.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	keys []string
}

// NewMemoryJobStore returns an empty job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*Job)}
}

func (s *MemoryJobStore) Create(job *Job) {
	if job == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		s.keys = append(s.keys, job.ID)
	}
	s.jobs[job.ID] = job
}

func (s *MemoryJobStore) Update(job *Job) {
	if job == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *MemoryJobStore) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

func (s *MemoryJobStore) List(threadID string) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Job, 0, len(s.keys))
	for _, id := range s.keys {
		job := s.jobs[id]
		if job == nil {
			continue
		}
		if threadID != "" && job.ThreadID != threadID {
			continue
		}
		result = append(result, cloneJob(job))
	}
	return result
}

// Cancel invokes the job's cancel func, if it is still running.
func (s *MemoryJobStore) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.cancel == nil {
		return false
	}
	job.cancel()
	job.Status = JobCancelled
	job.FinishedAt = time.Now()
	job.cancel = nil
	return true
}

// Prune removes finished jobs older than olderThan and returns the count
// removed; it never prunes a job still queued or running.
func (s *MemoryJobStore) Prune(olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	remaining := s.keys[:0]
	pruned := 0
	for _, id := range s.keys {
		job := s.jobs[id]
		if job == nil {
			continue
		}
		terminal := job.Status == JobSucceeded || job.Status == JobFailed || job.Status == JobCancelled
		if terminal && job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			pruned++
			continue
		}
		remaining = append(remaining, id)
	}
	s.keys = remaining
	return pruned
}

// RunAsync starts a tool call in the background, recording its lifecycle in
// store and returning the Job immediately in JobQueued state. The caller
// polls store.Get(job.ID) or subscribes to the thread's event stream for
// tool.completed/tool.failed events carrying the same tool_call_id.
func (e *Executor) RunAsync(ctx context.Context, threadID string, call Call, store JobStore, emit EventSink) *Job {
	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:         call.ToolCall.ID,
		ThreadID:   threadID,
		ToolName:   call.ToolCall.Name,
		ToolCallID: call.ToolCall.ID,
		Status:     JobQueued,
		CreatedAt:  time.Now(),
		cancel:     cancel,
	}
	store.Create(job)

	go func() {
		job.Status = JobRunning
		job.StartedAt = time.Now()
		store.Update(job)

		result := e.executeOne(jobCtx, threadID, call, emit)

		job.FinishedAt = time.Now()
		job.Result = &result.Result
		if result.Result.IsError {
			job.Status = JobFailed
		} else {
			job.Status = JobSucceeded
		}
		job.cancel = nil
		store.Update(job)
	}()

	return job
}
