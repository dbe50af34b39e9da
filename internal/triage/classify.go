package triage

import (
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Score thresholds for the risk bands. These are fixed for compatibility
// with historical alert data: moving them would reclassify open alerts.
const (
	CriticalThreshold = 0.90
	HighThreshold     = 0.75
	MediumThreshold   = 0.60

	// EscalationThreshold is the score above which a rule trigger
	// escalates priority to critical.
	EscalationThreshold = 0.70

	// CombinedThreshold is the score at or above which a rule trigger
	// counts as combined detection.
	CombinedThreshold = 0.70
)

// Classification is the classifier output: a risk band derived purely
// from the score, and a priority that may be escalated above it.
type Classification struct {
	RiskBand domain.RiskBand
	Priority domain.Priority
}

// ValidateScore rejects scores outside [0,1].
func ValidateScore(score float64) error {
	if score < 0 || score > 1 {
		return fmt.Errorf("%w: score %v outside [0,1]", ErrValidation, score)
	}
	return nil
}

// Classify maps a fraud score and detection context to a risk band and
// priority. The band depends on the score alone.
//
// When at least one rule triggered and the score exceeds the escalation
// threshold, priority is raised to critical while the band keeps its
// score-derived value, so the two may intentionally diverge.
func Classify(score float64, ruleTriggered bool) (Classification, error) {
	if err := ValidateScore(score); err != nil {
		return Classification{}, err
	}

	var band domain.RiskBand
	var priority domain.Priority

	switch {
	case score >= CriticalThreshold:
		band, priority = domain.BandCritical, domain.PriorityCritical
	case score >= HighThreshold:
		band, priority = domain.BandHigh, domain.PriorityHigh
	case score >= MediumThreshold:
		band, priority = domain.BandMedium, domain.PriorityMedium
	default:
		band, priority = domain.BandLow, domain.PriorityLow
	}

	if ruleTriggered && score > EscalationThreshold {
		priority = domain.PriorityCritical
	}

	return Classification{RiskBand: band, Priority: priority}, nil
}

// CombinedDetection reports whether both the model and the rules flagged
// the transaction: score >= 0.70 with at least one rule triggered.
// Derived for reporting; never stored.
func CombinedDetection(score float64, ruleTriggered bool) bool {
	return score >= CombinedThreshold && ruleTriggered
}
