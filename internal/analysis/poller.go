package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sandia-project/sandia-go/internal/engine"
	"github.com/sandia-project/sandia-go/internal/storage"
)

// Default polling budget: the async engines usually land their result
// object within the first few reads.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultPollMaxAttempts = 10
)

// errNotReady marks a poll attempt that found no result object yet.
var errNotReady = errors.New("result not ready")

// Poller drives one job from Triggered to a terminal state by reading the
// engine's result store at a fixed interval under a bounded attempt budget.
type Poller struct {
	store       storage.ObjectStore
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// NewPoller creates a poller. Zero interval or attempts fall back to the
// defaults.
func NewPoller(store storage.ObjectStore, interval time.Duration, maxAttempts int, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		store:       store,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Run polls until the job completes, fails, or exhausts its budget. The
// poller is the job's sole mutator; callers observe the outcome through the
// job itself. Cancelling ctx stops waiting but does not retract the remote
// work.
func (p *Poller) Run(ctx context.Context, job *Job, adapter engine.Adapter) {
	bucket, key := adapter.ResultLocation(job.ArtifactID)
	job.setState(StatePolling)

	var verdict *engine.Verdict
	attempt := func() error {
		job.recordAttempt(time.Now())

		raw, found, err := p.store.Get(ctx, bucket, key)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(err)
			}
			return backoff.Permanent(&StorageError{Engine: job.Engine, Err: err})
		}
		if !found {
			p.logger.Debug("result not ready",
				"engine", job.Engine, "artifact_id", job.ArtifactID, "attempt", job.Attempts())
			return fmt.Errorf("%w: s3://%s/%s", errNotReady, bucket, key)
		}

		v, err := adapter.ParseResult(raw)
		if err != nil {
			return backoff.Permanent(&ResultParseError{Engine: job.Engine, Err: err})
		}
		verdict = v
		return nil
	}

	// Constant-interval retry: the budget is maxAttempts reads in total,
	// i.e. maxAttempts-1 retries after the first.
	wait := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.interval), uint64(p.maxAttempts-1)),
		ctx,
	)

	err := backoff.Retry(attempt, wait)
	switch {
	case err == nil:
		job.complete(verdict)
		p.logger.Info("engine reported",
			"engine", job.Engine, "artifact_id", job.ArtifactID,
			"attempts", job.Attempts(), "risk_score", verdict.RiskScore)

	case isFailure(err):
		job.fail(StateFailed, err)
		p.logger.Error("engine result unusable",
			"engine", job.Engine, "artifact_id", job.ArtifactID, "error", err)

	default:
		// Budget exhausted or the caller stopped waiting. The engine may
		// still finish later; we just gave up.
		timeout := &TimeoutError{Engine: job.Engine, Attempts: job.Attempts()}
		job.fail(StateTimedOut, timeout)
		p.logger.Warn("gave up waiting for engine",
			"engine", job.Engine, "artifact_id", job.ArtifactID, "attempts", job.Attempts())
	}
}

// isFailure reports whether err is a hard per-engine failure rather than an
// exhausted or cancelled wait.
func isFailure(err error) bool {
	var storageErr *StorageError
	var parseErr *ResultParseError
	return errors.As(err, &storageErr) || errors.As(err, &parseErr)
}
