package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sandia-project/sandia-go/internal/consensus"
	"github.com/sandia-project/sandia-go/internal/engine"
	"github.com/sandia-project/sandia-go/internal/metrics"
)

// DefaultAnalyzeTimeout bounds a full orchestration run when the caller
// does not say otherwise. It comfortably covers the default poll budget.
const DefaultAnalyzeTimeout = 90 * time.Second

// ErrNoEnginesTriggered is returned when not a single engine accepted
// work. It is the only call-level error: anything short of a total
// submission failure still yields a (possibly empty) consensus.
var ErrNoEnginesTriggered = errors.New("no engine could be triggered")

// Options tunes one Analyze call.
type Options struct {
	// Deadline is the overall collection budget. Zero means
	// DefaultAnalyzeTimeout.
	Deadline time.Duration

	// Engines restricts which engines run. Empty means all configured.
	Engines []engine.Kind
}

// Orchestrator composes trigger, poll, and consensus into the end-to-end
// flow for one artifact.
type Orchestrator struct {
	adapters       map[engine.Kind]engine.Adapter
	poller         *Poller
	registry       *registry
	collector      *metrics.Collector
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// NewOrchestrator wires the orchestrator. Passing a nil collector disables
// metrics; a zero defaultTimeout falls back to DefaultAnalyzeTimeout.
func NewOrchestrator(adapters []engine.Adapter, poller *Poller, collector *metrics.Collector, defaultTimeout time.Duration, logger *slog.Logger) *Orchestrator {
	byKind := make(map[engine.Kind]engine.Adapter, len(adapters))
	for _, a := range adapters {
		byKind[a.Kind()] = a
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultAnalyzeTimeout
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		adapters:       byKind,
		poller:         poller,
		registry:       newRegistry(),
		collector:      collector,
		defaultTimeout: defaultTimeout,
		logger:         logger,
	}
}

// Analyze fans the artifact out to the configured engines, waits for the
// earlier of all jobs terminal or the deadline, and reduces whatever
// subset reported. One slow or broken engine never blocks the response;
// partial results are a first-class outcome.
func (o *Orchestrator) Analyze(ctx context.Context, artifact engine.ArtifactRef, opts Options) (*consensus.Result, error) {
	requestID := uuid.New().String()[:8]
	logger := o.logger.With("request_id", requestID, "artifact_id", artifact.ID)

	timeout := opts.Deadline
	if timeout <= 0 {
		timeout = o.defaultTimeout
	}

	kinds := opts.Engines
	if len(kinds) == 0 {
		for _, kind := range engine.AllKinds() {
			if _, ok := o.adapters[kind]; ok {
				kinds = append(kinds, kind)
			}
		}
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: no adapters configured", ErrNoEnginesTriggered)
	}

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Info("analysis started", "engines", len(kinds), "deadline", timeout)

	jobs := make([]*Job, 0, len(kinds))
	for _, kind := range kinds {
		adapter, ok := o.adapters[kind]
		if !ok {
			return nil, fmt.Errorf("no adapter configured for engine %s", kind)
		}

		job, attached := o.registry.acquire(artifact.ID, kind)
		jobs = append(jobs, job)
		if attached {
			// An earlier request already owns this (artifact, engine)
			// pair; ride along instead of triggering a duplicate.
			logger.Info("attached to in-flight job", "engine", kind, "state", job.State())
			continue
		}

		go o.runJob(runCtx, job, adapter, artifact, logger)
	}

	o.waitForJobs(runCtx, jobs)

	var verdicts []engine.Verdict
	triggerFailures := 0
	for _, job := range jobs {
		switch job.State() {
		case StateCompleted:
			verdicts = append(verdicts, *job.Verdict())
		case StateFailed:
			var triggerErr *TriggerError
			if errors.As(job.Err(), &triggerErr) {
				triggerFailures++
			}
		}
	}

	if triggerFailures == len(jobs) {
		o.collector.RecordTiming(metrics.OpAnalyze, time.Since(start))
		return nil, ErrNoEnginesTriggered
	}

	consensusStart := time.Now()
	result := consensus.Reduce(verdicts)
	o.collector.RecordTiming(metrics.OpConsensus, time.Since(consensusStart))
	o.collector.RecordTiming(metrics.OpAnalyze, time.Since(start))

	logger.Info("analysis finished",
		"verdict", result.FinalVerdict,
		"confidence", result.ConfidenceLabel,
		"reporting", result.TotalReporting,
		"risk_score", result.CombinedRiskScore,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return &result, nil
}

// GetJobStates returns the live state of every job for an artifact,
// supporting progress reporting while Analyze is in flight.
func (o *Orchestrator) GetJobStates(artifactID string) map[engine.Kind]JobState {
	return o.registry.states(artifactID)
}

// runJob drives one engine end to end: trigger, then poll unless the
// engine short-circuited synchronously.
func (o *Orchestrator) runJob(ctx context.Context, job *Job, adapter engine.Adapter, artifact engine.ArtifactRef, logger *slog.Logger) {
	job.markTriggered(time.Now())

	triggerStart := time.Now()
	verdict, err := adapter.Trigger(ctx, artifact)
	o.collector.RecordTiming(metrics.OpTrigger, time.Since(triggerStart))

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// The caller stopped waiting before submission went through;
			// that is giving up, not a broken engine.
			job.fail(StateTimedOut, &TimeoutError{Engine: job.Engine, Attempts: 0})
			return
		}
		job.fail(StateFailed, &TriggerError{Engine: job.Engine, Err: err})
		logger.Error("engine trigger failed", "engine", job.Engine, "error", err)
		return
	}

	if verdict != nil {
		// Synchronous engine: the trigger carried the verdict back.
		job.complete(verdict)
		logger.Info("engine completed synchronously",
			"engine", job.Engine, "risk_score", verdict.RiskScore, "category", verdict.Category)
		return
	}

	pollStart := time.Now()
	o.poller.Run(ctx, job, adapter)
	o.collector.RecordPoll(time.Since(pollStart), int64(job.Attempts()))
}

// waitForJobs blocks until every job is terminal or the context expires,
// whichever comes first.
func (o *Orchestrator) waitForJobs(ctx context.Context, jobs []*Job) {
	allDone := make(chan struct{})
	go func() {
		defer close(allDone)
		var wg sync.WaitGroup
		for _, job := range jobs {
			wg.Add(1)
			go func(j *Job) {
				defer wg.Done()
				select {
				case <-j.Done():
				case <-ctx.Done():
				}
			}(job)
		}
		wg.Wait()
	}()

	select {
	case <-allDone:
	case <-ctx.Done():
	}
}
