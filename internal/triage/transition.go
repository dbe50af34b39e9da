package triage

import (
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// MaxBulkSize is the maximum number of alert IDs a bulk update may carry.
const MaxBulkSize = 100

// transitions is the allowed edge set of the review state machine.
// closed has no outgoing edges: re-opening is unsupported.
var transitions = map[domain.AlertStatus][]domain.AlertStatus{
	domain.StatusNew:         {domain.StatusInReview, domain.StatusClosed},
	domain.StatusInReview:    {domain.StatusPendingInfo, domain.StatusEscalated, domain.StatusClosed},
	domain.StatusPendingInfo: {domain.StatusInReview},
	domain.StatusEscalated:   {domain.StatusClosed},
	domain.StatusClosed:      {},
}

// CanTransition reports whether to is reachable from from in one step.
// A same-status "transition" is always permitted so reviewers can update
// other fields without changing status.
func CanTransition(from, to domain.AlertStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Apply validates a reviewer update against the alert and mutates the
// alert in place on success. The update is rejected as a whole when any
// part of it is invalid; the alert is untouched on error.
//
// Accepted updates bump UpdatedAt (never below CreatedAt) but not
// Version: the version bump belongs to the store's compare-and-set.
func Apply(alert *domain.Alert, update domain.AlertUpdate, now time.Time) error {
	if update.Status != nil {
		if !update.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrValidation, *update.Status)
		}
		if !CanTransition(alert.Status, *update.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, alert.Status, *update.Status)
		}
	}
	if update.Priority != nil && !update.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, *update.Priority)
	}
	if update.Notes != nil && len(*update.Notes) > domain.MaxNotesLen {
		return fmt.Errorf("%w: notes exceed %d characters", ErrValidation, domain.MaxNotesLen)
	}

	if update.Status != nil {
		alert.Status = *update.Status
	}
	if update.Priority != nil {
		alert.Priority = *update.Priority
	}
	if update.AssignedTo != nil {
		alert.AssignedTo = *update.AssignedTo
	}
	if update.Notes != nil {
		alert.Notes = *update.Notes
	}

	if now.Before(alert.CreatedAt) {
		now = alert.CreatedAt
	}
	alert.UpdatedAt = now

	return nil
}

// ValidateBulk checks a bulk update request before any alert is touched:
// the ID list must be non-empty, within MaxBulkSize, and free of blanks.
func ValidateBulk(alertIDs []string, update domain.AlertUpdate) error {
	if len(alertIDs) == 0 {
		return fmt.Errorf("%w: alert id list is empty", ErrValidation)
	}
	if len(alertIDs) > MaxBulkSize {
		return fmt.Errorf("%w: %d alert ids exceeds limit of %d", ErrValidation, len(alertIDs), MaxBulkSize)
	}
	for i, id := range alertIDs {
		if id == "" {
			return fmt.Errorf("%w: empty alert id at index %d", ErrValidation, i)
		}
	}
	if update.Status == nil && update.Priority == nil && update.AssignedTo == nil && update.Notes == nil {
		return fmt.Errorf("%w: update carries no fields", ErrValidation)
	}
	return nil
}
