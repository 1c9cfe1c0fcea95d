package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"filehasher/internal/digest"
)

// State is the lifecycle position of a Job.
type State int

const (
	Pending State = iota
	Running
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Completed || s == Failed || s == Cancelled }

// Job is one digest computation over one input. It is driven by a single
// goroutine (Run); the accessors may be called concurrently, e.g. by a UI.
type Job struct {
	ID         uuid.UUID
	Algorithm  digest.Algorithm
	TotalBytes int64

	mu        sync.Mutex
	state     State
	processed int64
	startedAt time.Time
	result    string
	err       error
}

// NewJob returns a Pending job for hashing totalBytes with alg.
func NewJob(alg digest.Algorithm, totalBytes int64) *Job {
	return &Job{ID: uuid.New(), Algorithm: alg, TotalBytes: totalBytes}
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) BytesProcessed() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.processed
}

func (j *Job) StartedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.startedAt
}

// Result is the lowercase hex digest; empty unless the job Completed.
func (j *Job) Result() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Err is the terminal error of a Failed or Cancelled job.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) start(at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != Pending {
		return fmt.Errorf("job %s: cannot start from state %s", j.ID, j.state)
	}
	j.state = Running
	j.startedAt = at
	return nil
}

// advance moves the processed counter forward; it never goes backward.
func (j *Job) advance(processed int64) {
	j.mu.Lock()
	if processed > j.processed {
		j.processed = processed
	}
	j.mu.Unlock()
}

func (j *Job) finish(to State, result string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != Running {
		return
	}
	j.state = to
	j.err = err
	if to == Completed {
		j.result = result
	}
}
