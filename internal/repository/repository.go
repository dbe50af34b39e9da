// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrVersionConflict = errors.New("version conflict")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// The database may still be coming up (postgres in a container);
	// retry the first ping with exponential backoff.
	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(ping, policy); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction with tenant isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tenantID string, tx *domain.Transaction) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, tenant_id, step, type, amount, name_orig, name_dest,
			old_balance_orig, new_balance_orig, old_balance_dest, new_balance_dest,
			is_fraud, is_flagged_fraud, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tenantID, tx.Step, tx.Type, tx.Amount,
		tx.NameOrig, tx.NameDest,
		tx.OldBalanceOrig, tx.NewBalanceOrig,
		tx.OldBalanceDest, tx.NewBalanceDest,
		boolToInt(tx.IsFraud), boolToInt(tx.IsFlaggedFraud),
		tx.CreatedAt,
	)
	return err
}

// GetTransaction retrieves a transaction by ID with tenant isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, tenantID string, txID string) (*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, step, type, amount, name_orig, name_dest,
			   old_balance_orig, new_balance_orig, old_balance_dest, new_balance_dest,
			   is_fraud, is_flagged_fraud, created_at
		FROM transactions
		WHERE tenant_id = ? AND id = ?
	`

	var tx domain.Transaction
	var isFraud, isFlagged int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID).Scan(
		&tx.ID, &tx.TenantID, &tx.Step, &tx.Type, &tx.Amount,
		&tx.NameOrig, &tx.NameDest,
		&tx.OldBalanceOrig, &tx.NewBalanceOrig,
		&tx.OldBalanceDest, &tx.NewBalanceDest,
		&isFraud, &isFlagged,
		&tx.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	tx.IsFraud = isFraud == 1
	tx.IsFlaggedFraud = isFlagged == 1

	return &tx, nil
}

// CountTransactionsByEntity counts transactions where the entity appears
// as sender or receiver at or after sinceStep, with tenant isolation.
func (r *SQLRepository) CountTransactionsByEntity(ctx context.Context, tenantID string, entityID string, sinceStep int) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*)
		FROM transactions
		WHERE tenant_id = ?
		  AND (name_orig = ? OR name_dest = ?)
		  AND step >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, entityID, entityID, sinceStep).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// MaxStep returns the highest ingested step for the tenant.
func (r *SQLRepository) MaxStep(ctx context.Context, tenantID string) (int, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT COALESCE(MAX(step), 0) FROM transactions WHERE tenant_id = ?`

	var step int
	if err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(&step); err != nil {
		return 0, err
	}

	return step, nil
}

// SaveAlert stores a new alert with tenant isolation.
func (r *SQLRepository) SaveAlert(ctx context.Context, tenantID string, alert *domain.Alert) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	reasonCodes, _ := json.Marshal(alert.ReasonCodes)
	contributions, _ := json.Marshal(alert.FeatureContributions)
	triggers, _ := json.Marshal(alert.RuleTriggers)

	query := `
		INSERT INTO alerts (
			id, tenant_id, alert_number, transaction_id, status, priority,
			score, risk_band, reason_codes, feature_contributions, rule_triggers,
			assigned_to, notes, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, tenantID, alert.AlertNumber, alert.TransactionID,
		alert.Status, alert.Priority,
		alert.Score, alert.RiskBand,
		string(reasonCodes), string(contributions), string(triggers),
		alert.AssignedTo, alert.Notes, alert.Version,
		alert.CreatedAt, alert.UpdatedAt,
	)
	return err
}

// GetAlert retrieves an alert by ID with tenant isolation.
func (r *SQLRepository) GetAlert(ctx context.Context, tenantID string, alertID string) (*domain.Alert, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, alert_number, transaction_id, status, priority,
			   score, risk_band, reason_codes, feature_contributions, rule_triggers,
			   assigned_to, notes, version, created_at, updated_at
		FROM alerts
		WHERE tenant_id = ? AND id = ?
	`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, alertID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return alert, nil
}

// UpdateAlert persists the alert only if the stored version still equals
// expectedVersion, then bumps the version by one.
func (r *SQLRepository) UpdateAlert(ctx context.Context, tenantID string, alert *domain.Alert, expectedVersion int64) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE alerts
		SET status = ?, priority = ?, assigned_to = ?, notes = ?,
			version = version + 1, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.Status, alert.Priority, alert.AssignedTo, alert.Notes,
		alert.UpdatedAt,
		tenantID, alert.ID, expectedVersion,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a missing alert from a lost race.
		var exists int
		check := `SELECT COUNT(*) FROM alerts WHERE tenant_id = ? AND id = ?`
		if err := r.db.QueryRowContext(ctx, r.rebind(check), tenantID, alert.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	alert.Version = expectedVersion + 1
	return nil
}

// ListAlerts retrieves a filtered, paginated page of alerts joined with
// their transaction summaries, with tenant isolation.
func (r *SQLRepository) ListAlerts(ctx context.Context, tenantID string, filter domain.AlertFilter, page domain.PageRequest) (*domain.AlertPage, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	page = page.Normalize()

	where, args := buildAlertFilter(tenantID, filter)

	countQuery := `
		SELECT COUNT(*)
		FROM alerts a
		JOIN transactions t ON t.tenant_id = a.tenant_id AND t.id = a.transaction_id
		` + where

	var total int64
	if err := r.db.QueryRowContext(ctx, r.rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, err
	}

	listQuery := `
		SELECT a.id, a.alert_number, a.transaction_id, a.status, a.priority,
			   a.score, a.risk_band, a.rule_triggers, a.assigned_to,
			   a.created_at, a.updated_at,
			   t.type, t.amount
		FROM alerts a
		JOIN transactions t ON t.tenant_id = a.tenant_id AND t.id = a.transaction_id
		` + where + `
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ? OFFSET ?
	`
	listArgs := append(append([]any{}, args...), page.PageSize, page.Offset())

	rows, err := r.db.QueryContext(ctx, r.rebind(listQuery), listArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.AlertListItem{}
	for rows.Next() {
		var item domain.AlertListItem
		var triggers string
		var assignedTo sql.NullString

		if err := rows.Scan(
			&item.ID, &item.AlertNumber, &item.TransactionID,
			&item.Status, &item.Priority,
			&item.Score, &item.RiskBand, &triggers, &assignedTo,
			&item.CreatedAt, &item.UpdatedAt,
			&item.TransactionType, &item.TransactionAmount,
		); err != nil {
			return nil, err
		}

		item.AssignedTo = assignedTo.String

		var rt []domain.RuleTrigger
		if triggers != "" {
			json.Unmarshal([]byte(triggers), &rt)
		}
		item.RulesCount = len(rt)

		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.AlertPage{
		Items:      items,
		Total:      total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: domain.TotalPages(total, page.PageSize),
	}, nil
}

// AlertStats aggregates alert counts by status, priority and risk band.
func (r *SQLRepository) AlertStats(ctx context.Context, tenantID string) (*domain.AlertStats, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	stats := &domain.AlertStats{
		ByStatus:   make(map[domain.AlertStatus]int64),
		ByPriority: make(map[domain.Priority]int64),
		ByRiskBand: make(map[domain.RiskBand]int64),
	}

	statusQuery := `SELECT status, COUNT(*) FROM alerts WHERE tenant_id = ? GROUP BY status`
	rows, err := r.db.QueryContext(ctx, r.rebind(statusQuery), tenantID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status domain.AlertStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	priorityQuery := `SELECT priority, COUNT(*) FROM alerts WHERE tenant_id = ? GROUP BY priority`
	rows, err = r.db.QueryContext(ctx, r.rebind(priorityQuery), tenantID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var priority domain.Priority
		var count int64
		if err := rows.Scan(&priority, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByPriority[priority] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bandQuery := `SELECT risk_band, COUNT(*) FROM alerts WHERE tenant_id = ? GROUP BY risk_band`
	rows, err = r.db.QueryContext(ctx, r.rebind(bandQuery), tenantID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var band domain.RiskBand
		var count int64
		if err := rows.Scan(&band, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByRiskBand[band] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind rewrites ? placeholders to $1, $2, ... for the postgres
// driver. The sqlite driver takes queries as written.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

// buildAlertFilter assembles the WHERE clause and args for alert list
// queries. Always constrains by tenant.
func buildAlertFilter(tenantID string, f domain.AlertFilter) (string, []any) {
	clauses := []string{"a.tenant_id = ?"}
	args := []any{tenantID}

	if len(f.Status) > 0 {
		clauses = append(clauses, "a.status IN ("+placeholders(len(f.Status))+")")
		for _, s := range f.Status {
			args = append(args, s)
		}
	}
	if len(f.Priority) > 0 {
		clauses = append(clauses, "a.priority IN ("+placeholders(len(f.Priority))+")")
		for _, p := range f.Priority {
			args = append(args, p)
		}
	}
	if len(f.RiskBand) > 0 {
		clauses = append(clauses, "a.risk_band IN ("+placeholders(len(f.RiskBand))+")")
		for _, b := range f.RiskBand {
			args = append(args, b)
		}
	}
	if f.AssignedTo != "" {
		clauses = append(clauses, "a.assigned_to = ?")
		args = append(args, f.AssignedTo)
	}
	if f.MinScore != nil {
		clauses = append(clauses, "a.score >= ?")
		args = append(args, *f.MinScore)
	}
	if f.MaxScore != nil {
		clauses = append(clauses, "a.score <= ?")
		args = append(args, *f.MaxScore)
	}
	if f.MinAmount != nil {
		clauses = append(clauses, "t.amount >= ?")
		args = append(args, *f.MinAmount)
	}
	if f.MaxAmount != nil {
		clauses = append(clauses, "t.amount <= ?")
		args = append(args, *f.MaxAmount)
	}
	if len(f.TxTypes) > 0 {
		clauses = append(clauses, "t.type IN ("+placeholders(len(f.TxTypes))+")")
		for _, tt := range f.TxTypes {
			args = append(args, tt)
		}
	}
	if f.CreatedAfter != nil {
		clauses = append(clauses, "a.created_at >= ?")
		args = append(args, *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		clauses = append(clauses, "a.created_at <= ?")
		args = append(args, *f.CreatedBefore)
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*domain.Alert, error) {
	var alert domain.Alert
	var reasonCodes, contributions, triggers string
	var assignedTo, notes sql.NullString

	err := row.Scan(
		&alert.ID, &alert.TenantID, &alert.AlertNumber, &alert.TransactionID,
		&alert.Status, &alert.Priority,
		&alert.Score, &alert.RiskBand,
		&reasonCodes, &contributions, &triggers,
		&assignedTo, &notes, &alert.Version,
		&alert.CreatedAt, &alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.AssignedTo = assignedTo.String
	alert.Notes = notes.String

	json.Unmarshal([]byte(reasonCodes), &alert.ReasonCodes)
	if contributions != "" {
		json.Unmarshal([]byte(contributions), &alert.FeatureContributions)
	}
	json.Unmarshal([]byte(triggers), &alert.RuleTriggers)

	return &alert, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
