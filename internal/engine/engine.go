// Package engine provides uniform client adapters for the analysis engines.
//
// Each external engine (rule-based static scanner, structural graph model,
// semantic language model) is wrapped by an Adapter that triggers work and
// normalizes the engine's raw output into a common Verdict. Engine-specific
// payload shapes and sync/async differences live entirely inside the
// adapters; orchestration code treats all engines uniformly.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind identifies one analysis engine.
type Kind string

const (
	// KindRuleBased is the synchronous pattern/heuristic scanner.
	KindRuleBased Kind = "rule-based"

	// KindStructural is the asynchronous graph-model analyzer.
	KindStructural Kind = "structural"

	// KindSemantic is the asynchronous language-model analyzer.
	KindSemantic Kind = "semantic"
)

// AllKinds returns every known engine kind, in trigger order.
func AllKinds() []Kind {
	return []Kind{KindRuleBased, KindStructural, KindSemantic}
}

// ParseKind converts a user-supplied string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRuleBased, KindStructural, KindSemantic:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown engine kind: %q", s)
	}
}

// Category is the risk bucket assigned to a verdict.
type Category string

const (
	CategorySafe       Category = "Safe"
	CategorySuspicious Category = "Suspicious"
	CategoryMalicious  Category = "Malicious"
)

// Category score boundaries. These are the only numeric thresholds fixed by
// this system; everything else comes from the engines themselves.
const (
	maliciousThreshold  = 60.0
	suspiciousThreshold = 35.0
)

// CategoryForScore buckets a 0-100 risk score.
func CategoryForScore(score float64) Category {
	switch {
	case score >= maliciousThreshold:
		return CategoryMalicious
	case score >= suspiciousThreshold:
		return CategorySuspicious
	default:
		return CategorySafe
	}
}

// Verdict is the normalized output of one engine for one artifact.
// RiskScore and Confidence are always both present: an engine that fails
// produces no Verdict at all, never a zero-valued one.
type Verdict struct {
	Engine      Kind            `json:"engine"`
	IsMalicious bool            `json:"isMalicious"`
	RiskScore   float64         `json:"riskScore"`  // 0-100
	Confidence  float64         `json:"confidence"` // 0-1
	Category    Category        `json:"category"`
	RawDetail   json.RawMessage `json:"rawDetail,omitempty"` // engine payload, passed through unmodified
}

// ArtifactRef addresses an already-uploaded artifact.
type ArtifactRef struct {
	ID     string
	Bucket string
	Key    string
	Name   string
}

// Adapter wraps one engine behind a uniform trigger/parse contract.
type Adapter interface {
	// Kind returns the engine this adapter fronts.
	Kind() Kind

	// Trigger submits the artifact to the engine. A non-nil Verdict means
	// the engine completed synchronously and no polling is needed. A nil
	// Verdict with a nil error means the engine acknowledged the work and
	// will write its result object to ResultLocation. Once triggered, the
	// remote work cannot be retracted.
	Trigger(ctx context.Context, artifact ArtifactRef) (*Verdict, error)

	// ResultLocation returns the storage location the engine writes its
	// result object to, derived deterministically from the artifact ID.
	ResultLocation(artifactID string) (bucket, key string)

	// ParseResult normalizes a raw result object into a Verdict.
	ParseResult(raw []byte) (*Verdict, error)
}

// resultKey derives the result object key for an (artifact, engine) pair.
func resultKey(kind Kind, artifactID string) string {
	return fmt.Sprintf("results/%s/%s.json", kind, artifactID)
}
