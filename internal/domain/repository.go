// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"math"
	"time"
)

// Pagination defaults. Pages are 1-indexed.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// AlertFilter narrows alert list queries. Empty slices / zero values
// mean "no constraint".
type AlertFilter struct {
	Status     []AlertStatus
	Priority   []Priority
	RiskBand   []RiskBand
	AssignedTo string
	MinScore   *float64
	MaxScore   *float64
	MinAmount  *float64
	MaxAmount  *float64
	TxTypes    []TransactionType

	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// PageRequest selects a page of results.
type PageRequest struct {
	Page     int // 1-indexed
	PageSize int
}

// Normalize clamps the request to valid bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// AlertPage is one page of alert list results.
type AlertPage struct {
	Items      []AlertListItem `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}

// TotalPages computes ceil(total/pageSize).
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Transaction operations. Transactions are write-once.
	SaveTransaction(ctx context.Context, tenantID string, tx *Transaction) error
	GetTransaction(ctx context.Context, tenantID string, txID string) (*Transaction, error)
	CountTransactionsByEntity(ctx context.Context, tenantID string, entityID string, sinceStep int) (int64, error)

	// MaxStep returns the highest ingested step for the tenant (0 when
	// no transactions exist). Anchors velocity windows in step time.
	MaxStep(ctx context.Context, tenantID string) (int, error)

	// Alert operations.
	SaveAlert(ctx context.Context, tenantID string, alert *Alert) error
	GetAlert(ctx context.Context, tenantID string, alertID string) (*Alert, error)

	// UpdateAlert persists the alert iff the stored version equals
	// expectedVersion, then bumps the version. Returns ErrVersionConflict
	// when a concurrent reviewer won the race.
	UpdateAlert(ctx context.Context, tenantID string, alert *Alert, expectedVersion int64) error

	// ListAlerts returns a filtered, paginated page of alerts joined
	// with their transaction summaries.
	ListAlerts(ctx context.Context, tenantID string, filter AlertFilter, page PageRequest) (*AlertPage, error)

	// AlertStats aggregates counts by status, priority and risk band.
	AlertStats(ctx context.Context, tenantID string) (*AlertStats, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
