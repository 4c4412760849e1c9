package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AsyncAdapter fronts an engine invoked with fire-and-forget semantics.
// The engine writes its result object to the results bucket under a key
// derived from the artifact ID; completion is observed by polling storage.
// Both the structural and semantic engines share this shape and differ only
// in function name and result payload fields, which ParseResult tolerates.
type AsyncAdapter struct {
	kind          Kind
	invoker       Invoker
	function      string
	resultsBucket string
}

// Compile-time check that AsyncAdapter implements Adapter.
var _ Adapter = (*AsyncAdapter)(nil)

// NewStructural creates the adapter for the graph-model engine.
func NewStructural(invoker Invoker, function, resultsBucket string) *AsyncAdapter {
	return &AsyncAdapter{
		kind:          KindStructural,
		invoker:       invoker,
		function:      function,
		resultsBucket: resultsBucket,
	}
}

// NewSemantic creates the adapter for the language-model engine.
func NewSemantic(invoker Invoker, function, resultsBucket string) *AsyncAdapter {
	return &AsyncAdapter{
		kind:          KindSemantic,
		invoker:       invoker,
		function:      function,
		resultsBucket: resultsBucket,
	}
}

// Kind returns the engine kind this adapter was constructed for.
func (a *AsyncAdapter) Kind() Kind {
	return a.kind
}

// Trigger submits the artifact and returns once the invocation is
// acknowledged. The verdict arrives later via the result object.
func (a *AsyncAdapter) Trigger(ctx context.Context, artifact ArtifactRef) (*Verdict, error) {
	event := analysisEvent{
		FileID:        artifact.ID,
		S3Bucket:      artifact.Bucket,
		S3Key:         artifact.Key,
		FileName:      artifact.Name,
		AnalysisType:  string(a.kind),
		ResultsBucket: a.resultsBucket,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	if err := a.invoker.InvokeAsync(ctx, a.function, payload); err != nil {
		return nil, err
	}
	return nil, nil
}

// ResultLocation returns where the engine writes its result object.
func (a *AsyncAdapter) ResultLocation(artifactID string) (string, string) {
	return a.resultsBucket, resultKey(a.kind, artifactID)
}

// modelResult is the result payload the model engines produce. The
// structural engine reports attack_pattern, the semantic engine
// threat_category; both are optional detail.
type modelResult struct {
	IsMalicious *bool    `json:"is_malicious"`
	RiskScore   *float64 `json:"risk_score"`
	Confidence  *float64 `json:"confidence"`
}

// ParseResult normalizes a model engine's result object. A result missing
// its score or confidence is a contract violation, not a usable verdict.
func (a *AsyncAdapter) ParseResult(raw []byte) (*Verdict, error) {
	var result modelResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	if result.IsMalicious == nil {
		return nil, fmt.Errorf("result missing is_malicious")
	}
	if result.RiskScore == nil || result.Confidence == nil {
		return nil, fmt.Errorf("result missing risk_score or confidence")
	}

	return &Verdict{
		Engine:      a.kind,
		IsMalicious: *result.IsMalicious,
		RiskScore:   *result.RiskScore,
		Confidence:  *result.Confidence,
		Category:    CategoryForScore(*result.RiskScore),
		RawDetail:   json.RawMessage(raw),
	}, nil
}
