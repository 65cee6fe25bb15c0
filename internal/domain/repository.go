// Package domain defines the core types and interfaces for Milepost.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. The
// evaluation engine itself never touches it; definitions and records
// are loaded through it and handed to the engine as immutable
// snapshots.
type Repository interface {
	// Load operations (read-only transactional data)
	SaveLoad(ctx context.Context, load *Load) error
	GetLoad(ctx context.Context, loadID string) (*Load, error)
	ListLoads(ctx context.Context, since time.Time) ([]*Load, error)

	// Metric definition operations
	SaveMetricDefinition(ctx context.Context, def *MetricDefinition) error
	GetMetricDefinition(ctx context.Context, code string) (*MetricDefinition, error)
	ListMetricDefinitions(ctx context.Context) ([]*MetricDefinition, error)
	DeleteMetricDefinition(ctx context.Context, code string) error

	// Segment operations
	SaveSegment(ctx context.Context, seg *Segment) error
	GetSegment(ctx context.Context, code string) (*Segment, error)
	ListSegments(ctx context.Context) ([]*Segment, error)
	DeleteSegment(ctx context.Context, code string) error

	// Transaction override operations
	SaveOverride(ctx context.Context, override *TransactionOverride) error
	ListOverrides(ctx context.Context) ([]*TransactionOverride, error)
	DeleteOverride(ctx context.Context, overrideID string) error

	// Report snapshots written by the async recompute worker
	SaveReportSnapshot(ctx context.Context, snap *ReportSnapshot) error
	GetLatestReportSnapshot(ctx context.Context, kind, key string) (*ReportSnapshot, error)

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
