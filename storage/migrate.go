package storage

import (
	"context"
	"fmt"
	"log"
)

// migrations is the explicit, ordered schema history. Each entry runs at most
// once; the core assumes the resulting schema and fails loudly if it cannot
// be applied, instead of probing for columns at runtime.
var migrations = []struct {
	version int
	name    string
	sql     string
}{
	{1, "create_listings", `
		CREATE TABLE IF NOT EXISTS listings (
			id UUID PRIMARY KEY,
			brand TEXT NOT NULL,
			model TEXT NOT NULL,
			tier INT NOT NULL DEFAULT 3,
			size TEXT NOT NULL DEFAULT '',
			year INT,
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			acquisition_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			condition TEXT NOT NULL DEFAULT 'good',
			material TEXT NOT NULL DEFAULT '',
			rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			views INT NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			deactivation_reason TEXT NOT NULL DEFAULT '',
			deactivated_at TIMESTAMPTZ,
			last_verified_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{2, "create_interaction_events", `
		CREATE TABLE IF NOT EXISTS interaction_events (
			id BIGSERIAL PRIMARY KEY,
			listing_id UUID REFERENCES listings(id),
			event_type TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{3, "create_market_sales", `
		CREATE TABLE IF NOT EXISTS market_sales (
			id BIGSERIAL PRIMARY KEY,
			brand TEXT NOT NULL,
			model TEXT NOT NULL,
			year INT,
			material TEXT NOT NULL DEFAULT '',
			price DOUBLE PRECISION NOT NULL,
			quality_score INT NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT '',
			observed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{4, "create_refill_queue", `
		CREATE TABLE IF NOT EXISTS refill_queue (
			id BIGSERIAL PRIMARY KEY,
			brand TEXT NOT NULL,
			model TEXT NOT NULL,
			tier INT NOT NULL DEFAULT 3,
			reason TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMPTZ
		)`},
	{5, "add_rank_columns", `
		ALTER TABLE listings
			ADD COLUMN IF NOT EXISTS rank_score DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			ADD COLUMN IF NOT EXISTS rank_components JSONB`},
	{6, "add_pricing_columns", `
		ALTER TABLE listings
			ADD COLUMN IF NOT EXISTS fair_value DOUBLE PRECISION,
			ADD COLUMN IF NOT EXISTS fair_value_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			ADD COLUMN IF NOT EXISTS optimal_price DOUBLE PRECISION`},
	{7, "create_evaluations", `
		CREATE TABLE IF NOT EXISTS evaluations (
			listing_id UUID PRIMARY KEY REFERENCES listings(id),
			price_value_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			quality_appearance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			detail_intent_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			trust_confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			evaluated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{8, "create_rank_diagnostics", `
		CREATE TABLE IF NOT EXISTS rank_diagnostics (
			id BIGSERIAL PRIMARY KEY,
			listing_id UUID NOT NULL REFERENCES listings(id),
			score DOUBLE PRECISION NOT NULL,
			views_decayed DOUBLE PRECISION NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{9, "create_indexes", `
		CREATE INDEX IF NOT EXISTS idx_listings_active ON listings(is_active, tier);
		CREATE INDEX IF NOT EXISTS idx_listings_model ON listings(brand, model);
		CREATE INDEX IF NOT EXISTS idx_events_listing ON interaction_events(listing_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_sales_model ON market_sales(brand, model);
		CREATE INDEX IF NOT EXISTS idx_refill_pending ON refill_queue(status) WHERE status = 'pending'`},
}

// Migrate applies all pending migrations in order. Called once at startup.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		log.Printf("Storage: applied migration %d (%s)", m.version, m.name)
	}
	return nil
}
