package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCollector_Empty(t *testing.T) {
	c := NewCollector()
	snap := c.Snapshot()

	if snap.Analyze != nil || snap.Trigger != nil || snap.Poll != nil || snap.Consensus != nil {
		t.Errorf("empty collector must snapshot nil operations: %+v", snap)
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %f", snap.UptimeSeconds)
	}
}

func TestCollector_RecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpAnalyze, 100*time.Millisecond)
	c.RecordTiming(OpAnalyze, 300*time.Millisecond)

	snap := c.Snapshot()
	if snap.Analyze == nil {
		t.Fatal("Analyze snapshot is nil")
	}
	if snap.Analyze.Count != 2 {
		t.Errorf("Count = %d, want 2", snap.Analyze.Count)
	}
	if snap.Analyze.MinTimeMs != 100 {
		t.Errorf("MinTimeMs = %d, want 100", snap.Analyze.MinTimeMs)
	}
	if snap.Analyze.MaxTimeMs != 300 {
		t.Errorf("MaxTimeMs = %d, want 300", snap.Analyze.MaxTimeMs)
	}
	if snap.Analyze.AvgTimeMs != 200 {
		t.Errorf("AvgTimeMs = %f, want 200", snap.Analyze.AvgTimeMs)
	}

	// Timing-only operations carry no attempt stats.
	if snap.Analyze.TotalAttempts != nil {
		t.Error("Analyze must not carry attempt stats")
	}
}

func TestCollector_RecordPoll(t *testing.T) {
	c := NewCollector()
	c.RecordPoll(10*time.Second, 2)
	c.RecordPoll(50*time.Second, 10)

	snap := c.Snapshot()
	if snap.Poll == nil {
		t.Fatal("Poll snapshot is nil")
	}
	if snap.Poll.Count != 2 {
		t.Errorf("Count = %d, want 2", snap.Poll.Count)
	}
	if snap.Poll.TotalAttempts == nil || *snap.Poll.TotalAttempts != 12 {
		t.Fatalf("TotalAttempts = %v, want 12", snap.Poll.TotalAttempts)
	}
	if *snap.Poll.AvgAttempts != 6 {
		t.Errorf("AvgAttempts = %f, want 6", *snap.Poll.AvgAttempts)
	}
	if *snap.Poll.MinAttempts != 2 || *snap.Poll.MaxAttempts != 10 {
		t.Errorf("attempts min/max = %d/%d, want 2/10", *snap.Poll.MinAttempts, *snap.Poll.MaxAttempts)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordTiming(OpTrigger, time.Millisecond)
				c.RecordPoll(time.Millisecond, 1)
				c.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.Trigger.Count != 1000 {
		t.Errorf("Trigger.Count = %d, want 1000", snap.Trigger.Count)
	}
	if snap.Poll.Count != 1000 {
		t.Errorf("Poll.Count = %d, want 1000", snap.Poll.Count)
	}
}
