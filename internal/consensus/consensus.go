// Package consensus reduces per-engine verdicts into one final assessment.
package consensus

import (
	"github.com/sandia-project/sandia-go/internal/engine"
)

// FinalVerdict is the reduced malicious/benign decision.
type FinalVerdict string

const (
	VerdictMalicious FinalVerdict = "Malicious"
	VerdictBenign    FinalVerdict = "Benign"
)

// ConfidenceLabel describes how strongly the reporting engines agree.
type ConfidenceLabel string

const (
	// LabelUnanimous means every reporting engine voted the same way.
	LabelUnanimous ConfidenceLabel = "Unanimous"

	// LabelMajority means at least half voted malicious but not all.
	// A 50/50 split counts: the tie resolves toward malicious.
	LabelMajority ConfidenceLabel = "Majority"

	// LabelMinority means some but fewer than half voted malicious.
	LabelMinority ConfidenceLabel = "Minority"

	// LabelNoData means no engine reported before the deadline.
	LabelNoData ConfidenceLabel = "NoData"
)

// Result is the cross-engine reduction for one artifact.
type Result struct {
	FinalVerdict      FinalVerdict                    `json:"finalVerdict"`
	AgreementCount    int                             `json:"agreementCount"`
	TotalReporting    int                             `json:"totalReporting"`
	ConfidenceLabel   ConfidenceLabel                 `json:"confidenceLabel"`
	CombinedRiskScore float64                         `json:"combinedRiskScore"`
	PerEngineVerdicts map[engine.Kind]*engine.Verdict `json:"perEngineVerdicts"`
}

// Reduce computes the majority-vote consensus over whichever verdicts
// reported in time. Pure function, total over zero to three inputs.
//
// With no verdicts the reduction fails open: absence of evidence is not
// evidence of maliciousness. Engines that did not report are excluded from
// the combined score rather than counted as zero, so a slow engine never
// dilutes the assessment.
func Reduce(verdicts []engine.Verdict) Result {
	result := Result{
		TotalReporting:    len(verdicts),
		PerEngineVerdicts: make(map[engine.Kind]*engine.Verdict, len(verdicts)),
	}

	if len(verdicts) == 0 {
		result.FinalVerdict = VerdictBenign
		result.ConfidenceLabel = LabelNoData
		return result
	}

	var scoreSum float64
	for i := range verdicts {
		v := verdicts[i]
		result.PerEngineVerdicts[v.Engine] = &v
		scoreSum += v.RiskScore
		if v.IsMalicious {
			result.AgreementCount++
		}
	}
	result.CombinedRiskScore = scoreSum / float64(len(verdicts))

	// Majority rule over the reporting subset; ties break toward malicious.
	if result.AgreementCount*2 >= result.TotalReporting {
		result.FinalVerdict = VerdictMalicious
	} else {
		result.FinalVerdict = VerdictBenign
	}

	switch {
	case result.AgreementCount == 0 || result.AgreementCount == result.TotalReporting:
		result.ConfidenceLabel = LabelUnanimous
	case result.AgreementCount*2 >= result.TotalReporting:
		result.ConfidenceLabel = LabelMajority
	default:
		result.ConfidenceLabel = LabelMinority
	}

	return result
}
