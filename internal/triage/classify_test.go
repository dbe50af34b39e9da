package triage

import (
	"errors"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		score         float64
		ruleTriggered bool
		wantBand      domain.RiskBand
		wantPriority  domain.Priority
	}{
		{"CriticalScore", 0.95, false, domain.BandCritical, domain.PriorityCritical},
		{"HighScore", 0.80, false, domain.BandHigh, domain.PriorityHigh},
		{"MediumScore", 0.65, false, domain.BandMedium, domain.PriorityMedium},
		{"LowScore", 0.50, false, domain.BandLow, domain.PriorityLow},
		{"CriticalBoundary", 0.90, false, domain.BandCritical, domain.PriorityCritical},
		{"HighBoundary", 0.75, false, domain.BandHigh, domain.PriorityHigh},
		{"MediumBoundary", 0.60, false, domain.BandMedium, domain.PriorityMedium},
		{"JustBelowMedium", 0.599, false, domain.BandLow, domain.PriorityLow},
		// Rule trigger above 0.70 escalates priority but not the band.
		{"EscalatedMediumBand", 0.72, true, domain.BandMedium, domain.PriorityCritical},
		{"EscalatedHighBand", 0.80, true, domain.BandHigh, domain.PriorityCritical},
		// Rule trigger at or below 0.70 does not escalate.
		{"NoEscalationAtThreshold", 0.70, true, domain.BandMedium, domain.PriorityMedium},
		{"NoEscalationLowScore", 0.40, true, domain.BandLow, domain.PriorityLow},
		{"ZeroScore", 0.0, false, domain.BandLow, domain.PriorityLow},
		{"MaxScore", 1.0, false, domain.BandCritical, domain.PriorityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.score, tt.ruleTriggered)
			if err != nil {
				t.Fatalf("Classify(%v) failed: %v", tt.score, err)
			}
			if got.RiskBand != tt.wantBand {
				t.Errorf("risk band: expected %s, got %s", tt.wantBand, got.RiskBand)
			}
			if got.Priority != tt.wantPriority {
				t.Errorf("priority: expected %s, got %s", tt.wantPriority, got.Priority)
			}
		})
	}
}

func TestClassifyRejectsOutOfRangeScore(t *testing.T) {
	for _, score := range []float64{-0.01, 1.01, 2.0, -1.0} {
		_, err := Classify(score, false)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Classify(%v): expected ErrValidation, got %v", score, err)
		}
	}
}

func TestClassifyMonotonicBands(t *testing.T) {
	// Risk band must be non-decreasing as the score sweeps [0,1].
	rank := map[domain.RiskBand]int{
		domain.BandLow:      0,
		domain.BandMedium:   1,
		domain.BandHigh:     2,
		domain.BandCritical: 3,
	}

	prev := -1
	for i := 0; i <= 100; i++ {
		score := float64(i) / 100
		got, err := Classify(score, false)
		if err != nil {
			t.Fatalf("Classify(%v) failed: %v", score, err)
		}
		if rank[got.RiskBand] < prev {
			t.Fatalf("band decreased at score %v: %s", score, got.RiskBand)
		}
		prev = rank[got.RiskBand]
	}
}

func TestCombinedDetection(t *testing.T) {
	tests := []struct {
		name          string
		score         float64
		ruleTriggered bool
		want          bool
	}{
		{"AtThresholdWithRule", 0.70, true, true},
		{"BelowThresholdWithRule", 0.69, true, false},
		{"AboveThresholdNoRule", 0.95, false, false},
		{"LowScoreNoRule", 0.50, false, false},
		{"HighScoreWithRule", 0.90, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CombinedDetection(tt.score, tt.ruleTriggered); got != tt.want {
				t.Errorf("CombinedDetection(%v, %v) = %v, expected %v", tt.score, tt.ruleTriggered, got, tt.want)
			}
		})
	}
}
