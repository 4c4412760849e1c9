package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Sub-score weights for the rule engine's combined risk score: threat
// pattern matches dominate, behavioral heuristics temper them.
const (
	threatWeight   = 0.6
	behaviorWeight = 0.4
)

// RuleBasedAdapter fronts the synchronous static scanner. The engine is
// invoked with RequestResponse semantics, so Trigger returns the verdict
// directly and the result poller is skipped.
type RuleBasedAdapter struct {
	invoker       Invoker
	function      string
	resultsBucket string
}

// Compile-time check that RuleBasedAdapter implements Adapter.
var _ Adapter = (*RuleBasedAdapter)(nil)

// NewRuleBased creates the rule-based engine adapter.
func NewRuleBased(invoker Invoker, function, resultsBucket string) *RuleBasedAdapter {
	return &RuleBasedAdapter{
		invoker:       invoker,
		function:      function,
		resultsBucket: resultsBucket,
	}
}

// Kind returns KindRuleBased.
func (a *RuleBasedAdapter) Kind() Kind {
	return KindRuleBased
}

// analysisEvent is the event shape the engine functions expect.
type analysisEvent struct {
	FileID        string `json:"fileId"`
	S3Bucket      string `json:"s3Bucket"`
	S3Key         string `json:"s3Key"`
	FileName      string `json:"fileName"`
	AnalysisType  string `json:"analysisType"`
	ResultsBucket string `json:"resultsBucket"`
	Timestamp     string `json:"timestamp"`
}

// ruleEnvelope is the proxy-style response wrapper the scanner returns.
// Body is the same result document the scanner writes to the results bucket.
type ruleEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// ruleResult is the scanner's result document.
type ruleResult struct {
	RiskAssessment *ruleAssessment `json:"risk_assessment"`
	Timestamp      string          `json:"timestamp"`
}

// ruleAssessment carries the scanner's own scoring. ThreatScore is a raw
// point total (capped at 100 when normalized); BehavioralScore is already a
// percentage.
type ruleAssessment struct {
	RiskScorePercentage   float64 `json:"risk_score_percentage"`
	Category              string  `json:"category"`
	Severity              string  `json:"severity"`
	ThreatScore           float64 `json:"threat_score"`
	BehavioralScore       float64 `json:"behavioral_score"`
	ThreatIndicatorsFound int     `json:"threat_indicators_found"`
}

// Trigger invokes the scanner synchronously and short-circuits straight to
// a Verdict.
func (a *RuleBasedAdapter) Trigger(ctx context.Context, artifact ArtifactRef) (*Verdict, error) {
	event := analysisEvent{
		FileID:        artifact.ID,
		S3Bucket:      artifact.Bucket,
		S3Key:         artifact.Key,
		FileName:      artifact.Name,
		AnalysisType:  string(KindRuleBased),
		ResultsBucket: a.resultsBucket,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	resp, err := a.invoker.InvokeSync(ctx, a.function, payload)
	if err != nil {
		return nil, err
	}

	var envelope ruleEnvelope
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal response envelope: %w", err)
	}
	if envelope.StatusCode != 200 {
		return nil, fmt.Errorf("scanner returned status %d: %s", envelope.StatusCode, envelope.Body)
	}

	return a.ParseResult([]byte(envelope.Body))
}

// ResultLocation returns where the scanner also writes its result document.
func (a *RuleBasedAdapter) ResultLocation(artifactID string) (string, string) {
	return a.resultsBucket, resultKey(KindRuleBased, artifactID)
}

// ParseResult normalizes the scanner's result document. The published score
// is recomputed from the two sub-scores (0.6 threat, 0.4 behavioral) and
// bucketed; the engine's own document is kept verbatim in RawDetail.
func (a *RuleBasedAdapter) ParseResult(raw []byte) (*Verdict, error) {
	var result ruleResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	if result.RiskAssessment == nil {
		return nil, fmt.Errorf("result missing risk_assessment")
	}

	assessment := result.RiskAssessment
	threatPct := assessment.ThreatScore
	if threatPct > 100 {
		threatPct = 100
	}

	score := threatWeight*threatPct + behaviorWeight*assessment.BehavioralScore
	category := CategoryForScore(score)

	return &Verdict{
		Engine:      KindRuleBased,
		IsMalicious: category == CategoryMalicious,
		RiskScore:   score,
		// The scanner is deterministic: it either matched its patterns or
		// it did not, so its verdict carries full confidence.
		Confidence: 1.0,
		Category:   category,
		RawDetail:  json.RawMessage(raw),
	}, nil
}
