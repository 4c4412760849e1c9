package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"
)

// fakeInvoker replays canned responses and records invocations.
type fakeInvoker struct {
	syncResponse []byte
	syncErr      error
	asyncErr     error

	invocations []fakeInvocation
}

type fakeInvocation struct {
	function string
	payload  []byte
	async    bool
}

func (f *fakeInvoker) InvokeSync(ctx context.Context, function string, payload []byte) ([]byte, error) {
	f.invocations = append(f.invocations, fakeInvocation{function: function, payload: payload})
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return f.syncResponse, nil
}

func (f *fakeInvoker) InvokeAsync(ctx context.Context, function string, payload []byte) error {
	f.invocations = append(f.invocations, fakeInvocation{function: function, payload: payload, async: true})
	return f.asyncErr
}

func scannerBody(t *testing.T, threat, behavioral float64) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"risk_assessment": map[string]any{
			"risk_score_percentage":   0.0,
			"category":                "",
			"severity":                "",
			"threat_score":            threat,
			"behavioral_score":        behavioral,
			"threat_indicators_found": 3,
		},
		"timestamp": "2026-08-30T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return string(body)
}

func TestRuleBased_ParseResult(t *testing.T) {
	tests := []struct {
		name          string
		threat        float64
		behavioral    float64
		wantScore     float64
		wantCategory  Category
		wantMalicious bool
	}{
		{
			// 0.6*90 + 0.4*20 = 62
			name:          "weighted combination crosses malicious threshold",
			threat:        90,
			behavioral:    20,
			wantScore:     62,
			wantCategory:  CategoryMalicious,
			wantMalicious: true,
		},
		{
			// 0.6*50 + 0.4*25 = 40
			name:         "mid scores land suspicious",
			threat:       50,
			behavioral:   25,
			wantScore:    40,
			wantCategory: CategorySuspicious,
		},
		{
			// 0.6*10 + 0.4*10 = 10
			name:         "low scores land safe",
			threat:       10,
			behavioral:   10,
			wantScore:    10,
			wantCategory: CategorySafe,
		},
		{
			// Raw threat points above 100 are capped before weighting:
			// 0.6*100 + 0.4*50 = 80
			name:          "threat score capped at 100",
			threat:        240,
			behavioral:    50,
			wantScore:     80,
			wantCategory:  CategoryMalicious,
			wantMalicious: true,
		},
		{
			// Boundary: exactly 60 is malicious
			name:          "exact malicious threshold",
			threat:        100,
			behavioral:    0,
			wantScore:     60,
			wantCategory:  CategoryMalicious,
			wantMalicious: true,
		},
		{
			// Boundary: exactly 35 is suspicious
			name:         "exact suspicious threshold",
			threat:       25,
			behavioral:   50,
			wantScore:    35,
			wantCategory: CategorySuspicious,
		},
	}

	adapter := NewRuleBased(&fakeInvoker{}, "scanner-fn", "results-bucket")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := scannerBody(t, tt.threat, tt.behavioral)

			v, err := adapter.ParseResult([]byte(raw))
			if err != nil {
				t.Fatalf("ParseResult() error = %v", err)
			}

			if v.Engine != KindRuleBased {
				t.Errorf("Engine = %s, want %s", v.Engine, KindRuleBased)
			}
			if math.Abs(v.RiskScore-tt.wantScore) > 0.0001 {
				t.Errorf("RiskScore = %f, want %f", v.RiskScore, tt.wantScore)
			}
			if v.Category != tt.wantCategory {
				t.Errorf("Category = %s, want %s", v.Category, tt.wantCategory)
			}
			if v.IsMalicious != tt.wantMalicious {
				t.Errorf("IsMalicious = %v, want %v", v.IsMalicious, tt.wantMalicious)
			}
			if v.Confidence != 1.0 {
				t.Errorf("Confidence = %f, want 1.0", v.Confidence)
			}
			if string(v.RawDetail) != raw {
				t.Error("RawDetail must carry the engine document verbatim")
			}
		})
	}
}

func TestRuleBased_ParseResult_Malformed(t *testing.T) {
	adapter := NewRuleBased(&fakeInvoker{}, "scanner-fn", "results-bucket")

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "<html>error</html>"},
		{name: "missing assessment", raw: `{"timestamp":"2026-08-30T12:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := adapter.ParseResult([]byte(tt.raw)); err == nil {
				t.Error("ParseResult() expected error, got nil")
			}
		})
	}
}

func TestRuleBased_Trigger_ShortCircuits(t *testing.T) {
	body := scannerBody(t, 90, 20)
	envelope, _ := json.Marshal(map[string]any{"statusCode": 200, "body": body})

	invoker := &fakeInvoker{syncResponse: envelope}
	adapter := NewRuleBased(invoker, "scanner-fn", "results-bucket")

	v, err := adapter.Trigger(context.Background(), ArtifactRef{
		ID:     "abc123",
		Bucket: "jobs",
		Key:    "uploads/abc123/sample.sh",
		Name:   "sample.sh",
	})
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if v == nil {
		t.Fatal("Trigger() must return a verdict synchronously")
	}
	if math.Abs(v.RiskScore-62) > 0.0001 {
		t.Errorf("RiskScore = %f, want 62", v.RiskScore)
	}

	if len(invoker.invocations) != 1 {
		t.Fatalf("got %d invocations, want 1", len(invoker.invocations))
	}
	inv := invoker.invocations[0]
	if inv.async {
		t.Error("rule engine must be invoked synchronously")
	}
	if inv.function != "scanner-fn" {
		t.Errorf("function = %s, want scanner-fn", inv.function)
	}

	var event analysisEvent
	if err := json.Unmarshal(inv.payload, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.FileID != "abc123" || event.S3Key != "uploads/abc123/sample.sh" {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.AnalysisType != string(KindRuleBased) {
		t.Errorf("AnalysisType = %s, want %s", event.AnalysisType, KindRuleBased)
	}
	if event.ResultsBucket != "results-bucket" {
		t.Errorf("ResultsBucket = %s, want results-bucket", event.ResultsBucket)
	}
}

func TestRuleBased_Trigger_EngineFailure(t *testing.T) {
	tests := []struct {
		name    string
		invoker *fakeInvoker
		wantMsg string
	}{
		{
			name:    "invocation error",
			invoker: &fakeInvoker{syncErr: fmt.Errorf("function not found")},
			wantMsg: "function not found",
		},
		{
			name: "non-200 envelope",
			invoker: &fakeInvoker{
				syncResponse: []byte(`{"statusCode":500,"body":"internal error"}`),
			},
			wantMsg: "status 500",
		},
		{
			name:    "garbage response",
			invoker: &fakeInvoker{syncResponse: []byte("not json")},
			wantMsg: "unmarshal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewRuleBased(tt.invoker, "scanner-fn", "results-bucket")

			_, err := adapter.Trigger(context.Background(), ArtifactRef{ID: "x"})
			if err == nil {
				t.Fatal("Trigger() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestRuleBased_ResultLocation(t *testing.T) {
	adapter := NewRuleBased(&fakeInvoker{}, "scanner-fn", "results-bucket")

	bucket, key := adapter.ResultLocation("abc123")
	if bucket != "results-bucket" {
		t.Errorf("bucket = %s, want results-bucket", bucket)
	}
	if key != "results/rule-based/abc123.json" {
		t.Errorf("key = %s, want results/rule-based/abc123.json", key)
	}
}
