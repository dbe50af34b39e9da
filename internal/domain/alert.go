package domain

import (
	"time"
)

// AlertStatus is the review state of an alert. The transition graph is
// enforced by the triage package; CLOSED is terminal.
type AlertStatus string

const (
	StatusNew         AlertStatus = "new"
	StatusInReview    AlertStatus = "in_review"
	StatusPendingInfo AlertStatus = "pending_info"
	StatusEscalated   AlertStatus = "escalated"
	StatusClosed      AlertStatus = "closed"
)

// AlertStatuses lists every valid alert status.
func AlertStatuses() []AlertStatus {
	return []AlertStatus{StatusNew, StatusInReview, StatusPendingInfo, StatusEscalated, StatusClosed}
}

// Valid reports whether s is one of the known statuses.
func (s AlertStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInReview, StatusPendingInfo, StatusEscalated, StatusClosed:
		return true
	}
	return false
}

// Priority is the operational urgency of an alert. It normally equals
// the risk band but the classifier may escalate it, and reviewers may
// override it.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists every valid priority.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// RiskBand is the severity classification derived purely from the score.
type RiskBand string

const (
	BandLow      RiskBand = "low"
	BandMedium   RiskBand = "medium"
	BandHigh     RiskBand = "high"
	BandCritical RiskBand = "critical"
)

// RiskBands lists every valid risk band.
func RiskBands() []RiskBand {
	return []RiskBand{BandLow, BandMedium, BandHigh, BandCritical}
}

// Valid reports whether b is one of the known risk bands.
func (b RiskBand) Valid() bool {
	switch b {
	case BandLow, BandMedium, BandHigh, BandCritical:
		return true
	}
	return false
}

// MaxNotesLen is the maximum combined length of reviewer notes.
const MaxNotesLen = 5000

// RuleTrigger records a deterministic detection rule that fired
// for the alert's transaction.
type RuleTrigger struct {
	RuleID   string `json:"ruleId"`
	RuleName string `json:"ruleName"`
	Reason   string `json:"reason"`
}

// FeatureContribution is a SHAP-style explanation pair: a feature name
// and its signed contribution to the score.
type FeatureContribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// Alert is a stateful review record created when a transaction's score
// crosses the detection threshold or a rule fires. Alerts are never
// physically deleted; closure is a terminal status.
type Alert struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// AlertNumber is the human-readable reference (e.g. HRA-20260830-000042).
	AlertNumber string `json:"alertNumber"`

	// TransactionID references the triggering transaction. Set at creation,
	// immutable thereafter.
	TransactionID string `json:"transactionId"`

	Status   AlertStatus `json:"status"`
	Priority Priority    `json:"priority"`

	// Scoring output
	Score                float64               `json:"score"` // [0,1]
	RiskBand             RiskBand              `json:"riskBand"`
	ReasonCodes          []string              `json:"reasonCodes"`
	FeatureContributions []FeatureContribution `json:"featureContributions,omitempty"`
	RuleTriggers         []RuleTrigger         `json:"ruleTriggers"`

	// Review fields
	AssignedTo string `json:"assignedTo,omitempty"`
	Notes      string `json:"notes,omitempty"`

	// Version is the optimistic concurrency counter, bumped on every
	// accepted update.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsClosed reports whether the alert has reached its terminal status.
func (a *Alert) IsClosed() bool {
	return a.Status == StatusClosed
}

// IsHighPriority reports whether the alert is high or critical priority.
func (a *Alert) IsHighPriority() bool {
	return a.Priority == PriorityHigh || a.Priority == PriorityCritical
}

// HasRuleTriggers reports whether any detection rule fired.
func (a *Alert) HasRuleTriggers() bool {
	return len(a.RuleTriggers) > 0
}

// AlertUpdate carries the fields of a single reviewer action. Nil/empty
// fields are left untouched; Status may equal the current status (no-op
// status set alongside other field updates).
type AlertUpdate struct {
	Status     *AlertStatus `json:"status,omitempty"`
	Priority   *Priority    `json:"priority,omitempty"`
	AssignedTo *string      `json:"assignedTo,omitempty"`
	Notes      *string      `json:"notes,omitempty"`

	// Version, when set, is the version the caller last read. The
	// update is rejected if the alert has moved past it.
	Version *int64 `json:"version,omitempty"`
}

// AlertListItem is the compact alert view for list responses.
type AlertListItem struct {
	ID                string          `json:"id"`
	AlertNumber       string          `json:"alertNumber"`
	TransactionID     string          `json:"transactionId"`
	Status            AlertStatus     `json:"status"`
	Priority          Priority        `json:"priority"`
	Score             float64         `json:"score"`
	RiskBand          RiskBand        `json:"riskBand"`
	TransactionType   TransactionType `json:"transactionType"`
	TransactionAmount float64         `json:"transactionAmount"`
	AssignedTo        string          `json:"assignedTo,omitempty"`
	RulesCount        int             `json:"rulesCount"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// AlertDetail is the full alert view with the embedded transaction.
type AlertDetail struct {
	Alert
	Transaction TransactionSummary `json:"transaction"`
}

// AlertStats aggregates alert counts for reporting.
type AlertStats struct {
	Total      int64                 `json:"total"`
	ByStatus   map[AlertStatus]int64 `json:"byStatus"`
	ByPriority map[Priority]int64    `json:"byPriority"`
	ByRiskBand map[RiskBand]int64    `json:"byRiskBand"`
}
