// Package alerts implements the alert triage service: transaction
// ingestion and scoring, alert creation, and the reviewer workflow.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/scoring"
	"github.com/opensource-finance/harrier/internal/triage"
)

// alertCacheTTL bounds staleness of the alert detail cache. Updates
// invalidate eagerly, so this only matters for cross-node races.
const alertCacheTTL = 10 * time.Minute

// ScoredEvent is the payload published on the transaction.scored topic.
// The worker consumes it to create alerts off the request path.
type ScoredEvent struct {
	TransactionID        string                       `json:"transactionId"`
	Score                float64                      `json:"score"`
	ReasonCodes          []string                     `json:"reasonCodes"`
	FeatureContributions []domain.FeatureContribution `json:"featureContributions,omitempty"`
	RuleTriggers         []domain.RuleTrigger         `json:"ruleTriggers"`
}

// Service wires scoring, rules, triage and persistence into the alert
// pipeline and the review API.
type Service struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *rules.Engine
	scorer    *scoring.Scorer
	threshold float64

	// async defers alert creation to the worker consuming scored events.
	async bool

	now func() time.Time
}

// Config holds service construction parameters.
type Config struct {
	Repository domain.Repository
	Cache      domain.Cache
	Bus        domain.EventBus
	Engine     *rules.Engine
	Scorer     *scoring.Scorer

	// AlertThreshold is the minimum score that opens an alert when no
	// rule fired.
	AlertThreshold float64

	// Async defers alert creation to the scored-event worker.
	Async bool
}

// NewService creates the alert service.
func NewService(cfg Config) *Service {
	threshold := cfg.AlertThreshold
	if threshold <= 0 {
		threshold = triage.MediumThreshold
	}
	return &Service{
		repo:      cfg.Repository,
		cache:     cfg.Cache,
		bus:       cfg.Bus,
		engine:    cfg.Engine,
		scorer:    cfg.Scorer,
		threshold: threshold,
		async:     cfg.Async,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// IngestTransaction stores the transaction, scores it, evaluates the
// detection rules, and opens an alert when the score crosses the
// threshold or a rule fired. In async mode the alert is created by the
// worker instead and the returned alert is nil.
func (s *Service) IngestTransaction(ctx context.Context, tenantID string, req *domain.TransactionRequest) (*domain.Transaction, *domain.Alert, error) {
	if !domain.TransactionType(req.Type).Valid() {
		return nil, nil, fmt.Errorf("%w: unknown transaction type %q", triage.ErrValidation, req.Type)
	}
	if req.Amount < 0 {
		return nil, nil, fmt.Errorf("%w: amount must not be negative", triage.ErrValidation)
	}
	if req.NameOrig == "" || req.NameDest == "" {
		return nil, nil, fmt.Errorf("%w: nameOrig and nameDest are required", triage.ErrValidation)
	}
	if req.Step < 0 {
		return nil, nil, fmt.Errorf("%w: step must not be negative", triage.ErrValidation)
	}

	tx := req.ToTransaction()
	tx.ID = uuid.New().String()
	tx.TenantID = tenantID

	if err := s.repo.SaveTransaction(ctx, tenantID, tx); err != nil {
		return nil, nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	result := s.scorer.Score(tx)
	triggers := s.engine.Evaluate(ctx, tx)

	event := ScoredEvent{
		TransactionID:        tx.ID,
		Score:                result.Score,
		ReasonCodes:          result.ReasonCodes,
		FeatureContributions: result.FeatureContributions,
		RuleTriggers:         triggers,
	}

	s.publish(ctx, tenantID, domain.TopicTransactionScored, event)

	if s.async {
		return tx, nil, nil
	}

	alert, err := s.CreateFromScore(ctx, tenantID, tx, event)
	if err != nil {
		return nil, nil, err
	}
	return tx, alert, nil
}

// CreateFromScore opens an alert for a scored transaction when it
// qualifies. Returns nil when the score and rules are both quiet.
func (s *Service) CreateFromScore(ctx context.Context, tenantID string, tx *domain.Transaction, event ScoredEvent) (*domain.Alert, error) {
	if err := triage.ValidateScore(event.Score); err != nil {
		return nil, err
	}

	ruleTriggered := len(event.RuleTriggers) > 0
	if event.Score < s.threshold && !ruleTriggered {
		return nil, nil
	}

	cls, err := triage.Classify(event.Score, ruleTriggered)
	if err != nil {
		return nil, err
	}

	number, err := s.nextAlertNumber(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate alert number: %w", err)
	}

	now := s.now()
	alert := &domain.Alert{
		ID:                   uuid.New().String(),
		TenantID:             tenantID,
		AlertNumber:          number,
		TransactionID:        tx.ID,
		Status:               domain.StatusNew,
		Priority:             cls.Priority,
		Score:                event.Score,
		RiskBand:             cls.RiskBand,
		ReasonCodes:          event.ReasonCodes,
		FeatureContributions: event.FeatureContributions,
		RuleTriggers:         event.RuleTriggers,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if alert.ReasonCodes == nil {
		alert.ReasonCodes = []string{}
	}
	if alert.RuleTriggers == nil {
		alert.RuleTriggers = []domain.RuleTrigger{}
	}

	if err := s.repo.SaveAlert(ctx, tenantID, alert); err != nil {
		return nil, fmt.Errorf("failed to save alert: %w", err)
	}

	slog.Info("alert created",
		"tenant_id", tenantID,
		"alert_id", alert.ID,
		"alert_number", alert.AlertNumber,
		"score", alert.Score,
		"risk_band", alert.RiskBand,
		"priority", alert.Priority,
		"rules_triggered", len(alert.RuleTriggers),
		"combined_detection", triage.CombinedDetection(alert.Score, ruleTriggered),
	)

	s.publish(ctx, tenantID, domain.TopicAlertCreated, alert)

	return alert, nil
}

// GetAlert returns the full alert detail, served from cache when warm.
func (s *Service) GetAlert(ctx context.Context, tenantID string, alertID string) (*domain.AlertDetail, error) {
	if detail, err := s.cache.GetAlert(ctx, tenantID, alertID); err == nil && detail != nil {
		return detail, nil
	}

	alert, err := s.repo.GetAlert(ctx, tenantID, alertID)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.GetTransaction(ctx, tenantID, alert.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert transaction: %w", err)
	}

	detail := &domain.AlertDetail{
		Alert:       *alert,
		Transaction: tx.Summary(),
	}

	if err := s.cache.SetAlert(ctx, tenantID, alertID, detail, alertCacheTTL); err != nil {
		slog.Warn("failed to cache alert", "alert_id", alertID, "error", err)
	}

	return detail, nil
}

// GetTransaction returns a stored transaction.
func (s *Service) GetTransaction(ctx context.Context, tenantID string, txID string) (*domain.Transaction, error) {
	return s.repo.GetTransaction(ctx, tenantID, txID)
}

// ListAlerts returns a filtered, paginated alert page.
func (s *Service) ListAlerts(ctx context.Context, tenantID string, filter domain.AlertFilter, page domain.PageRequest) (*domain.AlertPage, error) {
	return s.repo.ListAlerts(ctx, tenantID, filter, page)
}

// Stats aggregates alert counts for the tenant.
func (s *Service) Stats(ctx context.Context, tenantID string) (*domain.AlertStats, error) {
	return s.repo.AlertStats(ctx, tenantID)
}

// UpdateAlert applies a reviewer action to one alert. The stored version
// guards against concurrent reviewers; a lost race surfaces as
// repository.ErrVersionConflict.
func (s *Service) UpdateAlert(ctx context.Context, tenantID string, alertID string, update domain.AlertUpdate) (*domain.Alert, error) {
	alert, err := s.repo.GetAlert(ctx, tenantID, alertID)
	if err != nil {
		return nil, err
	}

	expectedVersion := alert.Version
	if update.Version != nil {
		expectedVersion = *update.Version
	}
	wasClosed := alert.IsClosed()

	if err := triage.Apply(alert, update, s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateAlert(ctx, tenantID, alert, expectedVersion); err != nil {
		return nil, err
	}

	// Drop the cached detail so the next read sees the new state.
	if err := s.cache.Delete(ctx, tenantID, "alert:"+alertID); err != nil {
		slog.Warn("failed to invalidate alert cache", "alert_id", alertID, "error", err)
	}

	s.publish(ctx, tenantID, domain.TopicAlertUpdated, alert)
	if alert.IsClosed() && !wasClosed {
		s.publish(ctx, tenantID, domain.TopicAlertClosed, alert)
	}

	slog.Info("alert updated",
		"tenant_id", tenantID,
		"alert_id", alertID,
		"status", alert.Status,
		"version", alert.Version,
	)

	return alert, nil
}

// BulkItem is the per-alert outcome of a bulk update.
type BulkItem struct {
	AlertID string `json:"alertId"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// BulkResult summarizes a bulk update.
type BulkResult struct {
	Updated int        `json:"updated"`
	Failed  int        `json:"failed"`
	Items   []BulkItem `json:"items"`
}

// bulkWorkers bounds concurrent per-alert updates in a bulk request.
const bulkWorkers = 8

// BulkUpdate applies the same update to up to triage.MaxBulkSize alerts.
// The request is validated as a whole before any alert is touched; the
// updates themselves are best effort per alert, and each outcome is
// reported individually.
func (s *Service) BulkUpdate(ctx context.Context, tenantID string, alertIDs []string, update domain.AlertUpdate) (*BulkResult, error) {
	if err := triage.ValidateBulk(alertIDs, update); err != nil {
		return nil, err
	}

	items := make([]BulkItem, len(alertIDs))
	sem := make(chan struct{}, bulkWorkers)
	done := make(chan int, len(alertIDs))

	for i, id := range alertIDs {
		go func(i int, id string) {
			sem <- struct{}{}
			defer func() { <-sem }()

			item := BulkItem{AlertID: id}
			if _, err := s.UpdateAlert(ctx, tenantID, id, update); err != nil {
				item.Error = bulkErrorMessage(err)
			} else {
				item.OK = true
			}
			items[i] = item
			done <- i
		}(i, id)
	}

	for range alertIDs {
		<-done
	}

	result := &BulkResult{Items: items}
	for _, item := range items {
		if item.OK {
			result.Updated++
		} else {
			result.Failed++
		}
	}

	return result, nil
}

// nextAlertNumber allocates the tenant's next human-readable alert
// reference for the current UTC day, e.g. HRA-20260830-000042.
func (s *Service) nextAlertNumber(ctx context.Context, tenantID string) (string, error) {
	day := s.now().Format("20060102")
	seq, err := s.cache.IncrementCounter(ctx, tenantID, "alerts:"+day, 24*time.Hour)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("HRA-%s-%06d", day, seq), nil
}

// Ping checks the health of the service's dependencies.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository: %w", err)
	}
	if err := s.cache.Ping(ctx); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := s.bus.Ping(ctx); err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, tenantID, topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, tenantID, topic, data); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func bulkErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, repository.ErrNotFound):
		return "alert not found"
	default:
		return err.Error()
	}
}
