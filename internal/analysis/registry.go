package analysis

import (
	"sync"

	"github.com/sandia-project/sandia-go/internal/engine"
)

// jobKey identifies one (artifact, engine) pair.
type jobKey struct {
	artifactID string
	kind       engine.Kind
}

// registry is the idempotency guard: at most one live job per
// (artifact, engine) pair. It is the only mutable state shared across
// concurrent callers.
type registry struct {
	mu   sync.Mutex
	jobs map[jobKey]*Job
}

func newRegistry() *registry {
	return &registry{jobs: make(map[jobKey]*Job)}
}

// acquire returns the job for the pair. If a non-terminal job already
// exists the caller attaches to it (attached == true); terminal jobs are
// replaced, since retry after a terminal outcome is always a brand-new job.
func (r *registry) acquire(artifactID string, kind engine.Kind) (job *Job, attached bool) {
	key := jobKey{artifactID: artifactID, kind: kind}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.jobs[key]; ok && !existing.State().Terminal() {
		return existing, true
	}

	job = newJob(kind, artifactID)
	r.jobs[key] = job
	return job, false
}

// states returns a snapshot of job states for one artifact.
func (r *registry) states(artifactID string) map[engine.Kind]JobState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[engine.Kind]JobState)
	for key, job := range r.jobs {
		if key.artifactID == artifactID {
			out[key.kind] = job.State()
		}
	}
	return out
}
