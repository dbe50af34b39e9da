// Package ingest loads PaySim-format transaction CSVs into the store.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Required CSV header columns, in the PaySim export layout.
var requiredColumns = []string{
	"step", "type", "amount", "nameOrig",
	"oldbalanceOrg", "newbalanceOrig",
	"nameDest", "oldbalanceDest", "newbalanceDest",
	"isFraud", "isFlaggedFraud",
}

// Stats summarizes a load run.
type Stats struct {
	Loaded int `json:"loaded"`
	Errors int `json:"errors"`
	Fraud  int `json:"fraud"`
}

// Loader streams transactions from a CSV into the repository.
type Loader struct {
	repo domain.Repository

	// Limit caps the number of rows loaded; 0 means all.
	Limit int

	// LogEvery controls progress logging; 0 disables.
	LogEvery int

	// OnTransaction, if set, runs after each saved transaction. An
	// error aborts the load.
	OnTransaction func(ctx context.Context, tx *domain.Transaction) error
}

// NewLoader creates a CSV loader.
func NewLoader(repo domain.Repository) *Loader {
	return &Loader{repo: repo, LogEvery: 10000}
}

// LoadFile opens and loads a CSV file.
func (l *Loader) LoadFile(ctx context.Context, tenantID, path string) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	return l.Load(ctx, tenantID, f)
}

// Load streams transactions from r into the repository. Malformed rows
// are counted and skipped; a failed insert aborts the load.
func (l *Loader) Load(ctx context.Context, tenantID string, r io.Reader) (*Stats, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	for {
		if l.Limit > 0 && stats.Loaded >= l.Limit {
			break
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.Errors++
			continue
		}

		tx, err := parseRow(record, cols)
		if err != nil {
			slog.Debug("skipping malformed row", "line", stats.Loaded+stats.Errors+2, "error", err)
			stats.Errors++
			continue
		}

		tx.ID = uuid.New().String()
		tx.TenantID = tenantID

		if err := l.repo.SaveTransaction(ctx, tenantID, tx); err != nil {
			return stats, fmt.Errorf("failed to save transaction at row %d: %w", stats.Loaded+1, err)
		}

		if l.OnTransaction != nil {
			if err := l.OnTransaction(ctx, tx); err != nil {
				return stats, fmt.Errorf("transaction hook failed at row %d: %w", stats.Loaded+1, err)
			}
		}

		stats.Loaded++
		if tx.IsFraud {
			stats.Fraud++
		}

		if l.LogEvery > 0 && stats.Loaded%l.LogEvery == 0 {
			slog.Info("loading transactions", "loaded", stats.Loaded, "errors", stats.Errors)
		}
	}

	slog.Info("csv load complete",
		"tenant_id", tenantID,
		"loaded", stats.Loaded,
		"errors", stats.Errors,
		"fraud", stats.Fraud,
	)

	return stats, nil
}

func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return cols, nil
}

func parseRow(record []string, cols map[string]int) (*domain.Transaction, error) {
	step, err := strconv.Atoi(record[cols["step"]])
	if err != nil {
		return nil, fmt.Errorf("bad step: %w", err)
	}

	txType := domain.TransactionType(record[cols["type"]])
	if !txType.Valid() {
		return nil, fmt.Errorf("unknown transaction type %q", record[cols["type"]])
	}

	amount, err := strconv.ParseFloat(record[cols["amount"]], 64)
	if err != nil {
		return nil, fmt.Errorf("bad amount: %w", err)
	}

	tx := &domain.Transaction{
		Step:           step,
		Type:           txType,
		Amount:         amount,
		NameOrig:       record[cols["nameOrig"]],
		NameDest:       record[cols["nameDest"]],
		OldBalanceOrig: parseBalance(record[cols["oldbalanceOrg"]]),
		NewBalanceOrig: parseBalance(record[cols["newbalanceOrig"]]),
		OldBalanceDest: parseBalance(record[cols["oldbalanceDest"]]),
		NewBalanceDest: parseBalance(record[cols["newbalanceDest"]]),
		IsFraud:        record[cols["isFraud"]] == "1",
		IsFlaggedFraud: record[cols["isFlaggedFraud"]] == "1",
		CreatedAt:      time.Now().UTC(),
	}

	if tx.NameOrig == "" || tx.NameDest == "" {
		return nil, fmt.Errorf("missing party names")
	}

	return tx, nil
}

// parseBalance tolerates blanks; balance snapshots are audit-only.
func parseBalance(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
