package triage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func statusPtr(s domain.AlertStatus) *domain.AlertStatus { return &s }
func priorityPtr(p domain.Priority) *domain.Priority     { return &p }
func strPtr(s string) *string                            { return &s }

func testAlert(status domain.AlertStatus) *domain.Alert {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Alert{
		ID:            "alert-001",
		TenantID:      "tenant-001",
		TransactionID: "tx-001",
		Status:        status,
		Priority:      domain.PriorityMedium,
		Score:         0.65,
		RiskBand:      domain.BandMedium,
		Version:       1,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to domain.AlertStatus }{
		{domain.StatusNew, domain.StatusInReview},
		{domain.StatusNew, domain.StatusClosed},
		{domain.StatusInReview, domain.StatusPendingInfo},
		{domain.StatusInReview, domain.StatusEscalated},
		{domain.StatusInReview, domain.StatusClosed},
		{domain.StatusPendingInfo, domain.StatusInReview},
		{domain.StatusEscalated, domain.StatusClosed},
	}
	for _, tr := range allowed {
		if !CanTransition(tr.from, tr.to) {
			t.Errorf("expected %s -> %s to be allowed", tr.from, tr.to)
		}
	}

	rejected := []struct{ from, to domain.AlertStatus }{
		{domain.StatusClosed, domain.StatusInReview},
		{domain.StatusClosed, domain.StatusNew},
		{domain.StatusPendingInfo, domain.StatusEscalated},
		{domain.StatusPendingInfo, domain.StatusClosed},
		{domain.StatusNew, domain.StatusEscalated},
		{domain.StatusNew, domain.StatusPendingInfo},
		{domain.StatusEscalated, domain.StatusInReview},
	}
	for _, tr := range rejected {
		if CanTransition(tr.from, tr.to) {
			t.Errorf("expected %s -> %s to be rejected", tr.from, tr.to)
		}
	}

	// Same-status set is a permitted no-op for every status.
	for _, s := range domain.AlertStatuses() {
		if !CanTransition(s, s) {
			t.Errorf("expected %s -> %s no-op to be allowed", s, s)
		}
	}
}

func TestApply(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	t.Run("StatusTransition", func(t *testing.T) {
		alert := testAlert(domain.StatusNew)
		update := domain.AlertUpdate{Status: statusPtr(domain.StatusInReview)}

		if err := Apply(alert, update, now); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if alert.Status != domain.StatusInReview {
			t.Errorf("expected status in_review, got %s", alert.Status)
		}
		if !alert.UpdatedAt.Equal(now) {
			t.Errorf("expected UpdatedAt %v, got %v", now, alert.UpdatedAt)
		}
		if alert.UpdatedAt.Before(alert.CreatedAt) {
			t.Error("UpdatedAt must not precede CreatedAt")
		}
	})

	t.Run("DirectClose", func(t *testing.T) {
		// in_review -> closed is a permitted shortcut.
		alert := testAlert(domain.StatusInReview)
		update := domain.AlertUpdate{Status: statusPtr(domain.StatusClosed)}

		if err := Apply(alert, update, now); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if !alert.IsClosed() {
			t.Error("expected alert to be closed")
		}
	})

	t.Run("RejectedTransitionLeavesAlertUntouched", func(t *testing.T) {
		alert := testAlert(domain.StatusClosed)
		update := domain.AlertUpdate{
			Status:     statusPtr(domain.StatusInReview),
			AssignedTo: strPtr("carol"),
		}

		err := Apply(alert, update, now)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		if alert.AssignedTo != "" {
			t.Error("rejected update must not mutate the alert")
		}
		if alert.Status != domain.StatusClosed {
			t.Errorf("expected status closed, got %s", alert.Status)
		}
	})

	t.Run("PendingInfoToEscalatedRejected", func(t *testing.T) {
		alert := testAlert(domain.StatusPendingInfo)
		update := domain.AlertUpdate{Status: statusPtr(domain.StatusEscalated)}

		if err := Apply(alert, update, now); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("PendingInfoBackToReview", func(t *testing.T) {
		alert := testAlert(domain.StatusPendingInfo)
		update := domain.AlertUpdate{Status: statusPtr(domain.StatusInReview)}

		if err := Apply(alert, update, now); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if alert.Status != domain.StatusInReview {
			t.Errorf("expected status in_review, got %s", alert.Status)
		}
	})

	t.Run("NoOpStatusWithFieldUpdates", func(t *testing.T) {
		alert := testAlert(domain.StatusInReview)
		update := domain.AlertUpdate{
			Status:     statusPtr(domain.StatusInReview),
			Priority:   priorityPtr(domain.PriorityCritical),
			AssignedTo: strPtr("alice"),
			Notes:      strPtr("confirmed with the payments team"),
		}

		if err := Apply(alert, update, now); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if alert.Priority != domain.PriorityCritical {
			t.Errorf("expected priority critical, got %s", alert.Priority)
		}
		if alert.AssignedTo != "alice" {
			t.Errorf("expected assignee alice, got %s", alert.AssignedTo)
		}
		if alert.Notes != "confirmed with the payments team" {
			t.Errorf("unexpected notes: %q", alert.Notes)
		}
	})

	t.Run("NotesAtLimit", func(t *testing.T) {
		alert := testAlert(domain.StatusInReview)
		notes := strings.Repeat("x", domain.MaxNotesLen)
		update := domain.AlertUpdate{Notes: &notes}

		if err := Apply(alert, update, now); err != nil {
			t.Fatalf("expected %d-char notes to be accepted: %v", domain.MaxNotesLen, err)
		}
	})

	t.Run("NotesOverLimit", func(t *testing.T) {
		alert := testAlert(domain.StatusInReview)
		notes := strings.Repeat("x", domain.MaxNotesLen+1)
		update := domain.AlertUpdate{Notes: &notes}

		if err := Apply(alert, update, now); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("UnknownStatusRejected", func(t *testing.T) {
		alert := testAlert(domain.StatusNew)
		bogus := domain.AlertStatus("reopened")
		update := domain.AlertUpdate{Status: &bogus}

		if err := Apply(alert, update, now); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("ClockBeforeCreation", func(t *testing.T) {
		alert := testAlert(domain.StatusNew)
		past := alert.CreatedAt.Add(-time.Hour)
		update := domain.AlertUpdate{Status: statusPtr(domain.StatusInReview)}

		if err := Apply(alert, update, past); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if alert.UpdatedAt.Before(alert.CreatedAt) {
			t.Error("UpdatedAt clamped below CreatedAt")
		}
	})
}

func TestValidateBulk(t *testing.T) {
	update := domain.AlertUpdate{Status: statusPtr(domain.StatusInReview)}

	t.Run("AtLimit", func(t *testing.T) {
		ids := make([]string, MaxBulkSize)
		for i := range ids {
			ids[i] = "alert"
		}
		if err := ValidateBulk(ids, update); err != nil {
			t.Errorf("expected %d ids to be accepted: %v", MaxBulkSize, err)
		}
	})

	t.Run("OverLimit", func(t *testing.T) {
		ids := make([]string, MaxBulkSize+1)
		for i := range ids {
			ids[i] = "alert"
		}
		if err := ValidateBulk(ids, update); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("EmptyList", func(t *testing.T) {
		if err := ValidateBulk(nil, update); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("BlankID", func(t *testing.T) {
		if err := ValidateBulk([]string{"a", ""}, update); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("EmptyUpdate", func(t *testing.T) {
		if err := ValidateBulk([]string{"a"}, domain.AlertUpdate{}); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}
