package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"velomarkt/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

const listingColumns = `id, brand, model, tier, size, year, price, acquisition_cost,
	condition, material, rating, views, rank_score, rank_components,
	fair_value, fair_value_confidence, optimal_price,
	source, source_url, is_active, deactivation_reason, deactivated_at,
	last_verified_at, created_at, updated_at`

func scanListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(
		&l.ID, &l.Brand, &l.Model, &l.Tier, &l.Size, &l.Year, &l.Price, &l.AcquisitionCost,
		&l.Condition, &l.Material, &l.Rating, &l.Views, &l.RankScore, &l.RankComponents,
		&l.FairValue, &l.FairValueConfidence, &l.OptimalPrice,
		&l.Source, &l.SourceURL, &l.IsActive, &l.DeactivationReason, &l.DeactivatedAt,
		&l.LastVerifiedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) listListings(ctx context.Context, query string, args ...any) ([]models.Listing, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// =============================================================================
// Listings
// =============================================================================

func (s *PostgresStore) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	l, err := scanListing(s.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return l, err
}

func (s *PostgresStore) InsertListing(ctx context.Context, l *models.Listing) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	query := `
		INSERT INTO listings (
			id, brand, model, tier, size, year, price, acquisition_cost,
			condition, material, rating, views, source, source_url,
			is_active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err := s.pool.Exec(ctx, query,
		l.ID, l.Brand, l.Model, l.Tier, l.Size, l.Year, l.Price, l.AcquisitionCost,
		l.Condition, l.Material, l.Rating, l.Views, l.Source, l.SourceURL,
		l.IsActive, l.CreatedAt, l.UpdatedAt)
	return err
}

func (s *PostgresStore) ActiveListingIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM listings WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) ActiveListings(ctx context.Context) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE is_active ORDER BY created_at`
	return s.listListings(ctx, query)
}

// ActiveListingsByModel matches brand exactly and model by substring, the way
// the acquisition pipeline names variants ("Spectral", "Spectral 125").
func (s *PostgresStore) ActiveListingsByModel(ctx context.Context, brand, model string) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + `
		FROM listings
		WHERE is_active AND brand = $1 AND model ILIKE '%' || $2 || '%'
		ORDER BY created_at`
	return s.listListings(ctx, query, brand, model)
}

// SoldListings returns deactivated-as-sold listings for velocity mining.
func (s *PostgresStore) SoldListings(ctx context.Context, brand, model string, limit int) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + `
		FROM listings
		WHERE NOT is_active AND deactivation_reason = $3
			AND brand = $1 AND model ILIKE '%' || $2 || '%'
			AND deactivated_at IS NOT NULL
		ORDER BY deactivated_at DESC
		LIMIT $4`
	return s.listListings(ctx, query, brand, model, models.ReasonSold, limit)
}

// CountActiveComparables counts active near-identical listings (same brand,
// model and size), excluding the listing itself. Drives the scarcity
// multiplier.
func (s *PostgresStore) CountActiveComparables(ctx context.Context, l *models.Listing) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM listings
		WHERE is_active AND brand = $1 AND model = $2 AND size = $3 AND id <> $4`,
		l.Brand, l.Model, l.Size, l.ID).Scan(&n)
	return n, err
}

func (s *PostgresStore) CountActiveByTier(ctx context.Context) (map[int]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT tier, COUNT(*) FROM listings WHERE is_active GROUP BY tier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var tier, n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, err
		}
		counts[tier] = n
	}
	return counts, rows.Err()
}

// PruneCandidates returns budget-tier listings old and cold enough to drop:
// older than minAgeDays with fewer than maxViews cumulative views.
func (s *PostgresStore) PruneCandidates(ctx context.Context, tier, minAgeDays, maxViews int) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + `
		FROM listings
		WHERE is_active AND tier = $1
			AND created_at < NOW() - ($2 || ' days')::interval
			AND views < $3
		ORDER BY views ASC, created_at ASC`
	return s.listListings(ctx, query, tier, minAgeDays, maxViews)
}

func (s *PostgresStore) UpdateRank(ctx context.Context, id uuid.UUID, score float64, components json.RawMessage) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE listings SET rank_score = $2, rank_components = $3, updated_at = NOW()
		WHERE id = $1`, id, score, components)
	return err
}

func (s *PostgresStore) UpdatePricing(ctx context.Context, id uuid.UUID, fairValue, confidence, optimalPrice float64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE listings
		SET fair_value = $2, fair_value_confidence = $3, optimal_price = $4, updated_at = NOW()
		WHERE id = $1`, id, fairValue, confidence, optimalPrice)
	return err
}

// DeactivateListing soft-deletes: flips the active flag and records why.
func (s *PostgresStore) DeactivateListing(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE listings
		SET is_active = FALSE, deactivation_reason = $2, deactivated_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, reason)
	return err
}

func (s *PostgresStore) TouchLastVerified(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE listings SET last_verified_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return err
}

// =============================================================================
// Interaction events
// =============================================================================

// EventsForListing returns the listing's events inside the lookback window.
func (s *PostgresStore) EventsForListing(ctx context.Context, id uuid.UUID, since time.Time) ([]models.InteractionEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, listing_id, event_type, value, created_at
		FROM interaction_events
		WHERE listing_id = $1 AND created_at >= $2`, id, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.InteractionEvent
	for rows.Next() {
		var e models.InteractionEvent
		if err := rows.Scan(&e.ID, &e.ListingID, &e.Type, &e.Value, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) InsertEvent(ctx context.Context, e *models.InteractionEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO interaction_events (listing_id, event_type, value, created_at)
		VALUES ($1, $2, $3, $4)`, e.ListingID, e.Type, e.Value, e.CreatedAt)
	return err
}

// =============================================================================
// Evaluations
// =============================================================================

func (s *PostgresStore) GetEvaluation(ctx context.Context, listingID uuid.UUID) (*models.Evaluation, error) {
	var ev models.Evaluation
	err := s.pool.QueryRow(ctx, `
		SELECT listing_id, price_value_score, quality_appearance_score,
			detail_intent_score, trust_confidence_score, evaluated_at
		FROM evaluations WHERE listing_id = $1`, listingID).Scan(
		&ev.ListingID, &ev.PriceValue, &ev.Appearance, &ev.DetailIntent, &ev.Trust, &ev.EvaluatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// =============================================================================
// Market sales
// =============================================================================

// SalesForModel filters comparable sales by brand + model substring and a
// minimum record quality. Year, when given, widens to ±1.
func (s *PostgresStore) SalesForModel(ctx context.Context, brand, model string, year *int, material string, minQuality int) ([]models.MarketSale, error) {
	query := `
		SELECT id, brand, model, year, material, price, quality_score, source, observed_at
		FROM market_sales
		WHERE brand = $1 AND model ILIKE '%' || $2 || '%'
			AND price > 0 AND quality_score >= $3`
	args := []any{brand, model, minQuality}

	if year != nil {
		query += fmt.Sprintf(" AND year BETWEEN $%d AND $%d", len(args)+1, len(args)+2)
		args = append(args, *year-1, *year+1)
	}
	if material != "" {
		query += fmt.Sprintf(" AND material = $%d", len(args)+1)
		args = append(args, material)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []models.MarketSale
	for rows.Next() {
		var ms models.MarketSale
		if err := rows.Scan(&ms.ID, &ms.Brand, &ms.Model, &ms.Year, &ms.Material,
			&ms.Price, &ms.QualityScore, &ms.Source, &ms.ObservedAt); err != nil {
			return nil, err
		}
		sales = append(sales, ms)
	}
	return sales, rows.Err()
}

func (s *PostgresStore) InsertSale(ctx context.Context, ms *models.MarketSale) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO market_sales (brand, model, year, material, price, quality_score, source, observed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		ms.Brand, ms.Model, ms.Year, ms.Material, ms.Price, ms.QualityScore, ms.Source, ms.ObservedAt)
	return err
}

// =============================================================================
// Refill queue
// =============================================================================

func (s *PostgresStore) EnqueueRefill(ctx context.Context, d *models.RefillDirective) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO refill_queue (brand, model, tier, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id`,
		d.Brand, d.Model, d.Tier, d.Reason, models.RefillPending).Scan(&d.ID)
}

func (s *PostgresStore) PendingRefills(ctx context.Context, limit int) ([]models.RefillDirective, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, brand, model, tier, reason, status, created_at, processed_at
		FROM refill_queue
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`, models.RefillPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RefillDirective
	for rows.Next() {
		var d models.RefillDirective
		if err := rows.Scan(&d.ID, &d.Brand, &d.Model, &d.Tier, &d.Reason, &d.Status,
			&d.CreatedAt, &d.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkRefillProcessed(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refill_queue SET status = $2, processed_at = NOW() WHERE id = $1`,
		id, models.RefillProcessed)
	return err
}

// =============================================================================
// Rank diagnostics
// =============================================================================

func (s *PostgresStore) InsertRankDiagnostic(ctx context.Context, d *models.RankDiagnostic) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rank_diagnostics (listing_id, score, views_decayed, note, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		d.ListingID, d.Score, d.ViewsDecayed, d.Note)
	return err
}

// CatalogHealth summarises active inventory against target size and the
// average margin of priced listings, for the rebalance log line.
type CatalogHealth struct {
	Active    int
	AvgMargin float64
}

func (s *PostgresStore) GetCatalogHealth(ctx context.Context) (*CatalogHealth, error) {
	var h CatalogHealth
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE is_active),
			COALESCE(AVG(CASE WHEN is_active AND fair_value > 0
				THEN (fair_value - price) / price * 100 END), 0)
		FROM listings`).Scan(&h.Active, &h.AvgMargin)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
