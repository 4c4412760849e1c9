package analysis

import (
	"sync"
	"time"

	"github.com/sandia-project/sandia-go/internal/engine"
)

// JobState is the lifecycle state of one engine's analysis attempt.
type JobState string

const (
	StateNotTriggered JobState = "not-triggered"
	StateTriggered    JobState = "triggered"
	StatePolling      JobState = "polling"
	StateCompleted    JobState = "completed"
	StateFailed       JobState = "failed"
	StateTimedOut     JobState = "timed-out"
)

// Terminal reports whether a state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// Job tracks one engine's attempt to analyze one artifact. The poller that
// owns the job is its sole mutator; once a terminal state is reached the
// job is immutable. Other goroutines observe it through the accessor
// methods or by waiting on Done.
type Job struct {
	Engine     engine.Kind
	ArtifactID string

	mu           sync.Mutex
	state        JobState
	triggeredAt  time.Time
	attempts     int
	lastPolledAt time.Time
	verdict      *engine.Verdict
	err          error

	done chan struct{}
}

func newJob(kind engine.Kind, artifactID string) *Job {
	return &Job{
		Engine:     kind,
		ArtifactID: artifactID,
		state:      StateNotTriggered,
		done:       make(chan struct{}),
	}
}

// Done is closed when the job reaches a terminal state. Attaching callers
// wait on it with their own deadline.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// State returns the current lifecycle state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Attempts returns how many poll attempts have run.
func (j *Job) Attempts() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.attempts
}

// Verdict returns the normalized verdict, or nil unless Completed.
func (j *Job) Verdict() *engine.Verdict {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.verdict
}

// Err returns the terminal error, or nil unless Failed or TimedOut.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// TriggeredAt returns when the trigger was issued (zero if not yet).
func (j *Job) TriggeredAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.triggeredAt
}

// setState advances the lifecycle. Transitions out of a terminal state are
// ignored; terminal jobs are immutable.
func (j *Job) setState(s JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = s
}

// markTriggered records the trigger timestamp and enters Triggered.
func (j *Job) markTriggered(now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = StateTriggered
	j.triggeredAt = now
}

// recordAttempt counts one poll attempt against the budget.
func (j *Job) recordAttempt(now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.attempts++
	j.lastPolledAt = now
}

// complete moves the job to Completed with its verdict and wakes waiters.
func (j *Job) complete(v *engine.Verdict) {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return
	}
	j.state = StateCompleted
	j.verdict = v
	j.mu.Unlock()
	close(j.done)
}

// fail moves the job to the given terminal non-completion state with its
// cause and wakes waiters.
func (j *Job) fail(s JobState, err error) {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return
	}
	j.state = s
	j.err = err
	j.mu.Unlock()
	close(j.done)
}
