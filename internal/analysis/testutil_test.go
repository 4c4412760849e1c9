package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sandia-project/sandia-go/internal/engine"
	"github.com/sandia-project/sandia-go/internal/storage"
)

const testResultsBucket = "results-bucket"

// fakeAdapter is a configurable engine.Adapter for orchestration tests.
// Results are stored as Verdict JSON so ParseResult can round-trip them.
type fakeAdapter struct {
	kind      engine.Kind
	triggerFn func(ctx context.Context, artifact engine.ArtifactRef) (*engine.Verdict, error)
	parseErr  error

	triggerCount atomic.Int64
}

var _ engine.Adapter = (*fakeAdapter)(nil)

func (f *fakeAdapter) Kind() engine.Kind {
	return f.kind
}

func (f *fakeAdapter) Trigger(ctx context.Context, artifact engine.ArtifactRef) (*engine.Verdict, error) {
	f.triggerCount.Add(1)
	if f.triggerFn != nil {
		return f.triggerFn(ctx, artifact)
	}
	return nil, nil
}

func (f *fakeAdapter) ResultLocation(artifactID string) (string, string) {
	return testResultsBucket, fmt.Sprintf("results/%s/%s.json", f.kind, artifactID)
}

func (f *fakeAdapter) ParseResult(raw []byte) (*engine.Verdict, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	var v engine.Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	v.Engine = f.kind
	return &v, nil
}

// asyncAdapter returns an adapter that acknowledges the trigger and leaves
// the verdict to the result store.
func asyncAdapter(kind engine.Kind) *fakeAdapter {
	return &fakeAdapter{kind: kind}
}

// syncAdapter returns an adapter that short-circuits with a verdict.
func syncAdapter(kind engine.Kind, v engine.Verdict) *fakeAdapter {
	v.Engine = kind
	return &fakeAdapter{
		kind: kind,
		triggerFn: func(ctx context.Context, artifact engine.ArtifactRef) (*engine.Verdict, error) {
			out := v
			return &out, nil
		},
	}
}

// putResult writes a verdict to the location the adapter polls.
func putResult(t *testing.T, store storage.ObjectStore, adapter engine.Adapter, artifactID string, v engine.Verdict) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal verdict: %v", err)
	}
	bucket, key := adapter.ResultLocation(artifactID)
	if err := store.Put(context.Background(), bucket, key, raw); err != nil {
		t.Fatalf("put result: %v", err)
	}
}

// delayedStore reports not-found for the first misses reads, then delegates.
type delayedStore struct {
	*storage.MemoryStore
	mu     sync.Mutex
	misses int
}

func (s *delayedStore) Get(ctx context.Context, bucket, key string) ([]byte, bool, error) {
	s.mu.Lock()
	if s.misses > 0 {
		s.misses--
		s.mu.Unlock()
		return nil, false, nil
	}
	s.mu.Unlock()
	return s.MemoryStore.Get(ctx, bucket, key)
}

// errStore fails every read with the given infrastructure error.
type errStore struct {
	*storage.MemoryStore
	err error
}

func (s *errStore) Get(ctx context.Context, bucket, key string) ([]byte, bool, error) {
	return nil, false, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
