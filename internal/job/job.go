// Package job models one orchestration turn: a student utterance dispatched
// for classification, specialist generation, and safety filtering, tracked
// through to a terminal state.
package job

import (
	"context"
	"sync"
	"time"
)

// Status is a one-way state machine: Pending -> Processing -> {Complete, Error}.
// No transition ever moves backward.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Job is a single orchestration turn. All mutation goes through its
// methods, which are safe for concurrent use.
type Job struct {
	ID          string
	SessionID   string
	StudentText string
	DispatchedAt time.Time

	mu          sync.RWMutex
	status      Status
	subject     string
	rawText     string
	safeText    string
	errMessage  string
	classifiedAt time.Time
	completedAt time.Time

	done     chan struct{}
	closeOne sync.Once
}

// New creates a job in StatusPending. DispatchedAt is supplied by the
// caller.
func New(id, sessionID, studentText string, dispatchedAt time.Time) *Job {
	return &Job{
		ID:           id,
		SessionID:    sessionID,
		StudentText:  studentText,
		DispatchedAt: dispatchedAt,
		status:       StatusPending,
		done:         make(chan struct{}),
	}
}

// Snapshot is an immutable view of a job's current state, safe to hand to
// callers without leaking the underlying mutex.
type Snapshot struct {
	ID           string
	SessionID    string
	StudentText  string
	Status       Status
	Subject      string
	RawText      string
	SafeText     string
	ErrorMessage string
	DispatchedAt time.Time
	ClassifiedAt time.Time
	CompletedAt  time.Time
}

func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Snapshot{
		ID:           j.ID,
		SessionID:    j.SessionID,
		StudentText:  j.StudentText,
		Status:       j.status,
		Subject:      j.subject,
		RawText:      j.rawText,
		SafeText:     j.safeText,
		ErrorMessage: j.errMessage,
		DispatchedAt: j.DispatchedAt,
		ClassifiedAt: j.classifiedAt,
		CompletedAt:  j.completedAt,
	}
}

// MarkProcessing records the resolved subject and advances the job out of
// Pending. It silently no-ops once the job has left Pending, since a
// pipeline must never regress a job's state.
func (j *Job) MarkProcessing(subject string, at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusPending {
		return
	}
	j.status = StatusProcessing
	j.subject = subject
	j.classifiedAt = at
}

// MarkComplete finishes the job successfully. A no-op if already terminal.
func (j *Job) MarkComplete(safeText, rawText string, at time.Time) {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}
	j.status = StatusComplete
	j.safeText = safeText
	j.rawText = rawText
	j.completedAt = at
	j.mu.Unlock()
	j.signalDone()
}

// MarkError finishes the job with a failure. A no-op if already terminal.
func (j *Job) MarkError(message string, at time.Time) {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}
	j.status = StatusError
	j.errMessage = message
	j.completedAt = at
	j.mu.Unlock()
	j.signalDone()
}

func (j *Job) signalDone() {
	j.closeOne.Do(func() {
		close(j.done)
	})
}

// Await blocks until the job reaches a terminal state, the context is
// canceled, or timeout elapses. A non-positive timeout performs a single
// non-blocking check: it returns immediately without observing any state
// change, per the zero-timeout contract callers rely on.
func (j *Job) Await(ctx context.Context, timeout time.Duration) (Snapshot, bool) {
	if j.Snapshot().Status.Terminal() {
		return j.Snapshot(), true
	}

	if timeout <= 0 {
		select {
		case <-j.done:
			return j.Snapshot(), true
		default:
			return j.Snapshot(), false
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-j.done:
		return j.Snapshot(), true
	case <-waitCtx.Done():
		return j.Snapshot(), false
	}
}
