// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Attempt metrics (only for polling operations)
	TotalAttempts int64
	MinAttempts   int64
	MaxAttempts   int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"totalTimeMs"`
	AvgTimeMs   float64 `json:"avgTimeMs"`
	MinTimeMs   int64   `json:"minTimeMs"`
	MaxTimeMs   int64   `json:"maxTimeMs"`

	// Attempt stats (nil if not applicable)
	TotalAttempts *int64   `json:"totalAttempts,omitempty"`
	AvgAttempts   *float64 `json:"avgAttempts,omitempty"`
	MinAttempts   *int64   `json:"minAttempts,omitempty"`
	MaxAttempts   *int64   `json:"maxAttempts,omitempty"`
}

// Snapshot represents the full orchestrator statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptimeSeconds"`
	Analyze       *OperationSnapshot `json:"analyze,omitempty"`
	Trigger       *OperationSnapshot `json:"trigger,omitempty"`
	Poll          *OperationSnapshot `json:"poll,omitempty"`
	Consensus     *OperationSnapshot `json:"consensus,omitempty"`
}

// Operation names for the collector.
const (
	OpAnalyze   = "analyze"
	OpTrigger   = "trigger"
	OpPoll      = "poll"
	OpConsensus = "consensus"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime:     time.Duration(math.MaxInt64),
			MinAttempts: math.MaxInt64,
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordPoll records timing and attempt count for one polling run.
func (c *Collector) RecordPoll(duration time.Duration, attempts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(OpPoll)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}

	m.TotalAttempts += attempts
	if attempts < m.MinAttempts {
		m.MinAttempts = attempts
	}
	if attempts > m.MaxAttempts {
		m.MaxAttempts = attempts
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeAttempts bool) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if includeAttempts && m.TotalAttempts > 0 {
		total := m.TotalAttempts
		avg := float64(m.TotalAttempts) / float64(m.Count)
		minA := m.MinAttempts
		maxA := m.MaxAttempts

		// Reset sentinel values for display
		if minA == math.MaxInt64 {
			minA = 0
		}

		snap.TotalAttempts = &total
		snap.AvgAttempts = &avg
		snap.MinAttempts = &minA
		snap.MaxAttempts = &maxA
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Analyze:       snapshotOp(c.ops[OpAnalyze], false),
		Trigger:       snapshotOp(c.ops[OpTrigger], false),
		Poll:          snapshotOp(c.ops[OpPoll], true),
		Consensus:     snapshotOp(c.ops[OpConsensus], false),
	}
}
