// Package velocity provides transaction velocity calculation over
// dataset step windows.
package velocity

import (
	"context"
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
)

// Service calculates transaction velocity for entities. PaySim steps
// are hourly, so a window of N steps spans N hours of activity.
type Service struct {
	repo domain.Repository
}

// NewService creates a new velocity service.
func NewService(repo domain.Repository) *Service {
	return &Service{repo: repo}
}

// TransactionCount returns the number of transactions sent or received
// by an entity within the trailing step window, anchored at the highest
// step ingested for the tenant.
func (s *Service) TransactionCount(ctx context.Context, tenantID, entityID string, windowSteps int) (int64, error) {
	if tenantID == "" || entityID == "" {
		return 0, fmt.Errorf("tenantID and entityID are required")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}
	if windowSteps <= 0 {
		windowSteps = rules.VelocityWindowSteps
	}

	latest, err := s.repo.MaxStep(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve latest step: %w", err)
	}

	sinceStep := latest - windowSteps
	if sinceStep < 0 {
		sinceStep = 0
	}

	return s.repo.CountTransactionsByEntity(ctx, tenantID, entityID, sinceStep)
}

// Getter returns a VelocityGetter for the rule engine.
func (s *Service) Getter() rules.VelocityGetter {
	return s.TransactionCount
}
