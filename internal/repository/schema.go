package repository

// Schema definitions for the Milepost database.
// Compatible with both SQLite and PostgreSQL.
//
// Loads, definitions, segments and overrides are stored as JSON
// documents with the columns needed for lookup and ordering pulled
// out alongside. The engine reads whole collections into memory, so
// the database never evaluates formulas or rules itself.

const schemaLoads = `
CREATE TABLE IF NOT EXISTS loads (
    load_id TEXT PRIMARY KEY,
    carrier_id TEXT NOT NULL,
    lane_code TEXT NOT NULL,
    load_status TEXT NOT NULL,
    is_test INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_loads_carrier ON loads(carrier_id);
CREATE INDEX IF NOT EXISTS idx_loads_lane ON loads(lane_code);
CREATE INDEX IF NOT EXISTS idx_loads_created ON loads(created_at);
`

const schemaMetricDefinitions = `
CREATE TABLE IF NOT EXISTS metric_definitions (
    metric_code TEXT PRIMARY KEY,
    metric_id TEXT NOT NULL,
    is_baseline INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    category TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metric_definitions_active ON metric_definitions(is_active);
CREATE INDEX IF NOT EXISTS idx_metric_definitions_category ON metric_definitions(category);
`

const schemaSegments = `
CREATE TABLE IF NOT EXISTS segments (
    segment_code TEXT PRIMARY KEY,
    segment_id TEXT NOT NULL,
    segment_type TEXT NOT NULL,
    auto_apply INTEGER NOT NULL DEFAULT 0,
    is_baseline INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_segments_active ON segments(is_active);
CREATE INDEX IF NOT EXISTS idx_segments_auto ON segments(auto_apply);
`

const schemaOverrides = `
CREATE TABLE IF NOT EXISTS transaction_overrides (
    override_id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    segment_id TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_overrides_entity ON transaction_overrides(entity_id, entity_type);
CREATE INDEX IF NOT EXISTS idx_overrides_segment ON transaction_overrides(segment_id);
`

const schemaReportSnapshots = `
CREATE TABLE IF NOT EXISTS report_snapshots (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    key TEXT NOT NULL,
    computed_at TIMESTAMP NOT NULL,
    report TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_report_snapshots_kind_key ON report_snapshots(kind, key, computed_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaLoads,
		schemaMetricDefinitions,
		schemaSegments,
		schemaOverrides,
		schemaReportSnapshots,
	}
}
