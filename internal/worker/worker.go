// Package worker provides async alert creation for the Pro tier.
// It consumes scored-transaction events and opens alerts off the
// ingestion request path.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/harrier/internal/alerts"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Worker subscribes to scored-transaction events and creates alerts.
type Worker struct {
	bus     domain.EventBus
	repo    domain.Repository
	service *alerts.Service

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process.
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, service *alerts.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		repo:    repo,
		service: service,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins consuming scored events for the given tenants.
func (w *Worker) Start(cfg Config) error {
	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicTransactionScored, func(ctx context.Context, msg *domain.Message) error {
		return w.processScoredEvent(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicTransactionScored,
	)

	return nil
}

// processScoredEvent loads the scored transaction and opens an alert
// when it qualifies.
func (w *Worker) processScoredEvent(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var event alerts.ScoredEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse scored event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if msg.TenantID != "" {
		tenantID = msg.TenantID
	}

	tx, err := w.repo.GetTransaction(ctx, tenantID, event.TransactionID)
	if err != nil {
		slog.Error("failed to load scored transaction",
			"tx_id", event.TransactionID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	alert, err := w.service.CreateFromScore(ctx, tenantID, tx, event)
	if err != nil {
		slog.Error("failed to create alert",
			"tx_id", event.TransactionID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	if alert == nil {
		slog.Debug("scored transaction below threshold",
			"tx_id", event.TransactionID,
			"tenant_id", tenantID,
			"score", event.Score,
		)
		return nil
	}

	slog.Info("scored event processed",
		"tx_id", event.TransactionID,
		"tenant_id", tenantID,
		"alert_id", alert.ID,
		"score", event.Score,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
