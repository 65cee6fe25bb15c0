// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openfreight/milepost/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers. Records are stored
// as JSON documents; the columns alongside exist for lookup and
// ordering only.
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

// SaveLoad stores a load, replacing any prior version of the record.
func (r *SQLRepository) SaveLoad(ctx context.Context, load *domain.Load) error {
	if load == nil || load.LoadID == "" {
		return fmt.Errorf("%w: load_id is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(load)
	if err != nil {
		return fmt.Errorf("failed to marshal load: %w", err)
	}

	isTest := 0
	if load.Metadata.IsTest {
		isTest = 1
	}

	query := `
		INSERT INTO loads (
			load_id, carrier_id, lane_code, load_status, is_test, created_at, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(load_id) DO UPDATE SET
			carrier_id = excluded.carrier_id,
			lane_code = excluded.lane_code,
			load_status = excluded.load_status,
			is_test = excluded.is_test,
			created_at = excluded.created_at,
			payload = excluded.payload
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		load.LoadID, load.Carrier.CarrierID, load.Lane(), load.LoadStatus,
		isTest, load.Metadata.CreatedAt, string(payload),
	)
	return err
}

// GetLoad retrieves a load by ID.
func (r *SQLRepository) GetLoad(ctx context.Context, loadID string) (*domain.Load, error) {
	if loadID == "" {
		return nil, fmt.Errorf("%w: load_id is required", ErrInvalidInput)
	}

	query := `SELECT payload FROM loads WHERE load_id = ?`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), loadID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var load domain.Load
	if err := json.Unmarshal([]byte(payload), &load); err != nil {
		return nil, fmt.Errorf("failed to parse load %s: %w", loadID, err)
	}
	return &load, nil
}

// ListLoads retrieves loads created at or after the given time.
// A zero since returns everything.
func (r *SQLRepository) ListLoads(ctx context.Context, since time.Time) ([]*domain.Load, error) {
	query := `
		SELECT payload FROM loads
		WHERE created_at >= ?
		ORDER BY created_at, load_id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loads []*domain.Load
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var load domain.Load
		if err := json.Unmarshal([]byte(payload), &load); err != nil {
			return nil, fmt.Errorf("failed to parse load: %w", err)
		}
		loads = append(loads, &load)
	}

	return loads, rows.Err()
}

// SaveMetricDefinition stores a metric definition, upserting by code.
func (r *SQLRepository) SaveMetricDefinition(ctx context.Context, def *domain.MetricDefinition) error {
	if def == nil || def.MetricCode == "" {
		return fmt.Errorf("%w: metric_code is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal metric definition: %w", err)
	}

	isBaseline := 0
	if def.IsBaseline {
		isBaseline = 1
	}
	isActive := 0
	if def.IsActive {
		isActive = 1
	}

	query := `
		INSERT INTO metric_definitions (
			metric_code, metric_id, is_baseline, is_active, category, created_at, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(metric_code) DO UPDATE SET
			metric_id = excluded.metric_id,
			is_baseline = excluded.is_baseline,
			is_active = excluded.is_active,
			category = excluded.category,
			payload = excluded.payload
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		def.MetricCode, def.MetricID, isBaseline, isActive,
		def.Category, def.CreatedAt, string(payload),
	)
	return err
}

// GetMetricDefinition retrieves a metric definition by code.
func (r *SQLRepository) GetMetricDefinition(ctx context.Context, code string) (*domain.MetricDefinition, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: metric_code is required", ErrInvalidInput)
	}

	query := `SELECT payload FROM metric_definitions WHERE metric_code = ?`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), code).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var def domain.MetricDefinition
	if err := json.Unmarshal([]byte(payload), &def); err != nil {
		return nil, fmt.Errorf("failed to parse metric %s: %w", code, err)
	}
	return &def, nil
}

// ListMetricDefinitions retrieves every stored definition, active or not.
func (r *SQLRepository) ListMetricDefinitions(ctx context.Context) ([]*domain.MetricDefinition, error) {
	query := `SELECT payload FROM metric_definitions ORDER BY metric_code`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*domain.MetricDefinition
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var def domain.MetricDefinition
		if err := json.Unmarshal([]byte(payload), &def); err != nil {
			return nil, fmt.Errorf("failed to parse metric definition: %w", err)
		}
		defs = append(defs, &def)
	}

	return defs, rows.Err()
}

// DeleteMetricDefinition removes a metric definition by code.
// Baseline immutability is enforced at the API layer, not here.
func (r *SQLRepository) DeleteMetricDefinition(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("%w: metric_code is required", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM metric_definitions WHERE metric_code = ?`), code)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// SaveSegment stores a segment, upserting by code.
func (r *SQLRepository) SaveSegment(ctx context.Context, seg *domain.Segment) error {
	if seg == nil || seg.SegmentCode == "" {
		return fmt.Errorf("%w: segment_code is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(seg)
	if err != nil {
		return fmt.Errorf("failed to marshal segment: %w", err)
	}

	autoApply := 0
	if seg.AutoApply {
		autoApply = 1
	}
	isBaseline := 0
	if seg.IsBaseline {
		isBaseline = 1
	}
	isActive := 0
	if seg.IsActive {
		isActive = 1
	}

	query := `
		INSERT INTO segments (
			segment_code, segment_id, segment_type, auto_apply, is_baseline, is_active, created_at, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(segment_code) DO UPDATE SET
			segment_id = excluded.segment_id,
			segment_type = excluded.segment_type,
			auto_apply = excluded.auto_apply,
			is_baseline = excluded.is_baseline,
			is_active = excluded.is_active,
			payload = excluded.payload
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		seg.SegmentCode, seg.SegmentID, seg.SegmentType,
		autoApply, isBaseline, isActive, seg.CreatedAt, string(payload),
	)
	return err
}

// GetSegment retrieves a segment by code.
func (r *SQLRepository) GetSegment(ctx context.Context, code string) (*domain.Segment, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: segment_code is required", ErrInvalidInput)
	}

	query := `SELECT payload FROM segments WHERE segment_code = ?`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), code).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var seg domain.Segment
	if err := json.Unmarshal([]byte(payload), &seg); err != nil {
		return nil, fmt.Errorf("failed to parse segment %s: %w", code, err)
	}
	return &seg, nil
}

// ListSegments retrieves every stored segment, active or not.
func (r *SQLRepository) ListSegments(ctx context.Context) ([]*domain.Segment, error) {
	query := `SELECT payload FROM segments ORDER BY segment_code`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []*domain.Segment
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var seg domain.Segment
		if err := json.Unmarshal([]byte(payload), &seg); err != nil {
			return nil, fmt.Errorf("failed to parse segment: %w", err)
		}
		segments = append(segments, &seg)
	}

	return segments, rows.Err()
}

// DeleteSegment removes a segment by code.
func (r *SQLRepository) DeleteSegment(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("%w: segment_code is required", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM segments WHERE segment_code = ?`), code)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// SaveOverride stores a transaction override, upserting by ID.
func (r *SQLRepository) SaveOverride(ctx context.Context, override *domain.TransactionOverride) error {
	if override == nil || override.OverrideID == "" {
		return fmt.Errorf("%w: override_id is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(override)
	if err != nil {
		return fmt.Errorf("failed to marshal override: %w", err)
	}

	query := `
		INSERT INTO transaction_overrides (
			override_id, entity_id, entity_type, segment_id, applied_at, payload
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(override_id) DO UPDATE SET
			entity_id = excluded.entity_id,
			entity_type = excluded.entity_type,
			segment_id = excluded.segment_id,
			applied_at = excluded.applied_at,
			payload = excluded.payload
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		override.OverrideID, override.EntityID, override.EntityType,
		override.SegmentID, override.AppliedAt, string(payload),
	)
	return err
}

// ListOverrides retrieves every stored override.
func (r *SQLRepository) ListOverrides(ctx context.Context) ([]*domain.TransactionOverride, error) {
	query := `SELECT payload FROM transaction_overrides ORDER BY applied_at, override_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []*domain.TransactionOverride
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var override domain.TransactionOverride
		if err := json.Unmarshal([]byte(payload), &override); err != nil {
			return nil, fmt.Errorf("failed to parse override: %w", err)
		}
		overrides = append(overrides, &override)
	}

	return overrides, rows.Err()
}

// DeleteOverride removes an override by ID.
func (r *SQLRepository) DeleteOverride(ctx context.Context, overrideID string) error {
	if overrideID == "" {
		return fmt.Errorf("%w: override_id is required", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM transaction_overrides WHERE override_id = ?`), overrideID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// SaveReportSnapshot stores a computed report snapshot.
func (r *SQLRepository) SaveReportSnapshot(ctx context.Context, snap *domain.ReportSnapshot) error {
	if snap == nil || snap.ID == "" {
		return fmt.Errorf("%w: snapshot id is required", ErrInvalidInput)
	}
	if snap.Kind == "" || snap.Key == "" {
		return fmt.Errorf("%w: snapshot kind and key are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO report_snapshots (id, kind, key, computed_at, report)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		snap.ID, snap.Kind, snap.Key, snap.ComputedAt, string(snap.Report),
	)
	return err
}

// GetLatestReportSnapshot retrieves the most recent snapshot for a
// kind and key.
func (r *SQLRepository) GetLatestReportSnapshot(ctx context.Context, kind, key string) (*domain.ReportSnapshot, error) {
	if kind == "" || key == "" {
		return nil, fmt.Errorf("%w: snapshot kind and key are required", ErrInvalidInput)
	}

	query := `
		SELECT id, kind, key, computed_at, report
		FROM report_snapshots
		WHERE kind = ? AND key = ?
		ORDER BY computed_at DESC
		LIMIT 1
	`

	var snap domain.ReportSnapshot
	var report string

	err := r.db.QueryRowContext(ctx, r.rebind(query), kind, key).Scan(
		&snap.ID, &snap.Kind, &snap.Key, &snap.ComputedAt, &report,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	snap.Report = json.RawMessage(report)
	return &snap, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
