// Seed tool for loading PaySim fraud data and generating review-ready
// alerts.
//
// Usage:
//   go run cmd/seed/main.go -csv /path/to/paysim.csv -db ./harrier.db
//
// This tool:
//  1. Streams PaySim transactions into the store
//  2. Scores each one with the mock model and detection rules
//  3. Opens alerts for scores over the threshold or rule hits
//  4. Walks a sampled share of alerts through the review workflow so
//     the queue looks mid-shift instead of all-new
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/opensource-finance/harrier/internal/alerts"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/ingest"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/scoring"
	"github.com/opensource-finance/harrier/internal/velocity"
)

func main() {
	csvPath := flag.String("csv", "", "Path to PaySim CSV file")
	dbPath := flag.String("db", "./harrier.db", "SQLite database path")
	tenantID := flag.String("tenant", "tenant-001", "Tenant ID to seed")
	limit := flag.Int("limit", 5000, "Maximum transactions to load (0 = all)")
	seed := flag.Int64("seed", 42, "Random seed for scores and review states")
	threshold := flag.Float64("threshold", 0.60, "Alert score threshold")
	review := flag.Bool("review", true, "Walk alerts through review states")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: seed -csv /path/to/paysim.csv [-db ./harrier.db]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: *dbPath,
	})
	if err != nil {
		fmt.Printf("ERROR: failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	velocitySvc := velocity.NewService(repo)
	engine, err := rules.NewEngine(velocitySvc.Getter(), 10)
	if err != nil {
		fmt.Printf("ERROR: failed to create rule engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()
	if err := engine.LoadRules(rules.BuiltinRules()); err != nil {
		fmt.Printf("ERROR: failed to load rules: %v\n", err)
		os.Exit(1)
	}

	eventBus := bus.NewChannelBus(1000)
	defer eventBus.Close()

	scorer := scoring.NewScorer(*seed)
	service := alerts.NewService(alerts.Config{
		Repository:     repo,
		Cache:          cache.NewLRUCache(10000),
		Bus:            eventBus,
		Engine:         engine,
		Scorer:         scorer,
		AlertThreshold: *threshold,
	})

	fixtures := scoring.NewFixtures(*seed)
	ctx := context.Background()

	var alertsOpened int
	byStatus := map[domain.AlertStatus]int{}

	loader := ingest.NewLoader(repo)
	loader.Limit = *limit
	loader.OnTransaction = func(ctx context.Context, tx *domain.Transaction) error {
		result := scorer.Score(tx)
		triggers := engine.Evaluate(ctx, tx)

		alert, err := service.CreateFromScore(ctx, *tenantID, tx, alerts.ScoredEvent{
			TransactionID:        tx.ID,
			Score:                result.Score,
			ReasonCodes:          result.ReasonCodes,
			FeatureContributions: result.FeatureContributions,
			RuleTriggers:         triggers,
		})
		if err != nil {
			return err
		}
		if alert == nil {
			return nil
		}
		alertsOpened++

		status := domain.StatusNew
		if *review {
			status = fixtures.SampleStatus()
			if err := walkReviewPath(ctx, service, fixtures, *tenantID, alert.ID, status); err != nil {
				return err
			}
		}
		byStatus[status]++
		return nil
	}

	start := time.Now()
	stats, err := loader.LoadFile(ctx, *tenantID, *csvPath)
	if err != nil {
		fmt.Printf("ERROR: load failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Seed complete")
	fmt.Printf("  Transactions: %d loaded, %d skipped, %d fraud\n", stats.Loaded, stats.Errors, stats.Fraud)
	fmt.Printf("  Alerts:       %d opened\n", alertsOpened)
	for _, s := range []domain.AlertStatus{
		domain.StatusNew, domain.StatusInReview, domain.StatusPendingInfo,
		domain.StatusEscalated, domain.StatusClosed,
	} {
		if byStatus[s] > 0 {
			fmt.Printf("    %-13s %d\n", s, byStatus[s])
		}
	}
	fmt.Printf("  Elapsed:      %s\n", time.Since(start).Round(time.Millisecond))
}

// reviewPaths lists the transition chain from new to each target status.
var reviewPaths = map[domain.AlertStatus][]domain.AlertStatus{
	domain.StatusNew:         nil,
	domain.StatusInReview:    {domain.StatusInReview},
	domain.StatusPendingInfo: {domain.StatusInReview, domain.StatusPendingInfo},
	domain.StatusEscalated:   {domain.StatusInReview, domain.StatusEscalated},
	domain.StatusClosed:      {domain.StatusInReview, domain.StatusClosed},
}

// walkReviewPath applies the transitions that take a fresh alert to the
// target status, assigning an analyst and notes on the first step.
func walkReviewPath(ctx context.Context, service *alerts.Service, fixtures *scoring.Fixtures, tenantID, alertID string, target domain.AlertStatus) error {
	steps := reviewPaths[target]
	for i, status := range steps {
		update := domain.AlertUpdate{Status: &status}
		if i == 0 {
			if assignee := fixtures.SampleAssignee(target); assignee != "" {
				update.AssignedTo = &assignee
			}
			if notes := fixtures.SampleNotes(target); notes != "" {
				update.Notes = &notes
			}
		}
		if _, err := service.UpdateAlert(ctx, tenantID, alertID, update); err != nil {
			return fmt.Errorf("failed to apply %s to alert %s: %w", status, alertID, err)
		}
	}
	return nil
}
