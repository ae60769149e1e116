package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	Init               State = "INIT"
	Accepted           State = "ACCEPTED"
	NoAvailableWorkers State = "NO_AVAILABLE_WORKERS"
	Error              State = "ERROR"
	Failed             State = "FAILED"
	Complete           State = "COMPLETE"
)

// Job is a unit of work executed by the worker pool.
type Job struct {
	ID        uuid.UUID   `json:"jobId"`
	Type      string      `json:"type"`
	Subject   string      `json:"subject"` // what the job operates on, for logging
	Payload   interface{} `json:"-"`
	State     State       `json:"state"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`

	mu   sync.Mutex
	done chan struct{}
}

func newJob(jobType, subject string, payload interface{}) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New(),
		Type:      jobType,
		Subject:   subject,
		Payload:   payload,
		State:     Init,
		CreatedAt: now,
		UpdatedAt: now,
		done:      make(chan struct{}),
	}
}

// Done is closed once the job reached a final state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job is finished or ctx is done.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state and error of the job.
func (j *Job) Snapshot() (State, string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.State, j.Error
}

func (j *Job) setState(s State, errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.State = s
	j.Error = errMsg
	j.UpdatedAt = time.Now()
}

func (j *Job) finish(s State, errMsg string) {
	j.setState(s, errMsg)
	close(j.done)
}
