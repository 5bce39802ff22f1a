package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velomarkt/models"
)

// fakeRankStore is an in-memory RankStore double.
type fakeRankStore struct {
	listing     *models.Listing
	events      []models.InteractionEvent
	eval        *models.Evaluation
	savedScore  float64
	savedJSON   json.RawMessage
	diagnostics []models.RankDiagnostic
}

func (f *fakeRankStore) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return f.listing, nil
}

func (f *fakeRankStore) EventsForListing(ctx context.Context, id uuid.UUID, since time.Time) ([]models.InteractionEvent, error) {
	return f.events, nil
}

func (f *fakeRankStore) GetEvaluation(ctx context.Context, id uuid.UUID) (*models.Evaluation, error) {
	return f.eval, nil
}

func (f *fakeRankStore) UpdateRank(ctx context.Context, id uuid.UUID, score float64, components json.RawMessage) error {
	f.savedScore = score
	f.savedJSON = components
	return nil
}

func (f *fakeRankStore) InsertRankDiagnostic(ctx context.Context, d *models.RankDiagnostic) error {
	f.diagnostics = append(f.diagnostics, *d)
	return nil
}

func (f *fakeRankStore) ActiveListingIDs(ctx context.Context) ([]uuid.UUID, error) {
	return []uuid.UUID{f.listing.ID}, nil
}

func newTestListing(now time.Time) *models.Listing {
	return &models.Listing{
		ID:        uuid.New(),
		Brand:     "Canyon",
		Model:     "Spectral",
		Tier:      models.TierMid,
		Size:      "M",
		Price:     2400,
		Condition: models.ConditionVeryGood,
		IsActive:  true,
		CreatedAt: now.AddDate(0, 0, -10),
	}
}

func rankServiceAt(store RankStore, now time.Time) *RankingService {
	s := NewRankingService(store)
	s.now = func() time.Time { return now }
	return s
}

func TestComputeScoreWithinBounds(t *testing.T) {
	now := time.Now()
	store := &fakeRankStore{listing: newTestListing(now)}
	svc := rankServiceAt(store, now)

	score, breakdown, err := svc.Compute(context.Background(), store.listing.ID)
	require.NoError(t, err)
	require.NotNil(t, breakdown)

	assert.GreaterOrEqual(t, score, 0.01)
	assert.LessOrEqual(t, score, 0.99)
	assert.Equal(t, score, store.savedScore, "persisted score must match returned")
	assert.NotEmpty(t, store.savedJSON)
}

func TestComputeNoEventsConversionEqualsPrior(t *testing.T) {
	now := time.Now()
	store := &fakeRankStore{listing: newTestListing(now)}
	svc := rankServiceAt(store, now)

	_, breakdown, err := svc.Compute(context.Background(), store.listing.ID)
	require.NoError(t, err)

	// (5*0.02 + 0) / (5 + 1) with zero orders and zero clicks
	assert.InDelta(t, 0.1/6.0, breakdown.Conversion, 1e-9)
	assert.Zero(t, breakdown.Popularity)
	assert.Zero(t, breakdown.Engagement)
}

func TestComputeSingleOrderDoesNotPinConversion(t *testing.T) {
	now := time.Now()
	store := &fakeRankStore{
		listing: newTestListing(now),
		events: []models.InteractionEvent{
			{Type: models.EventDetailOpen, CreatedAt: now},
			{Type: models.EventOrder, CreatedAt: now},
		},
	}
	svc := rankServiceAt(store, now)

	_, breakdown, err := svc.Compute(context.Background(), store.listing.ID)
	require.NoError(t, err)

	// One order on one click: empirical rate 1.0, smoothed well below it.
	assert.Less(t, breakdown.Conversion, 0.25)
	assert.Greater(t, breakdown.Conversion, priorRate)
}

func TestComputeUnratedListingQualityNeutral(t *testing.T) {
	now := time.Now()
	listing := newTestListing(now)
	listing.Rating = 0
	store := &fakeRankStore{listing: listing}
	svc := rankServiceAt(store, now)

	_, breakdown, err := svc.Compute(context.Background(), store.listing.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, breakdown.Quality, 1e-9)
}

func TestComputeReturnsDragQualityToFloor(t *testing.T) {
	now := time.Now()
	listing := newTestListing(now)
	listing.Rating = 5
	store := &fakeRankStore{
		listing: listing,
		events: []models.InteractionEvent{
			{Type: models.EventOrder, CreatedAt: now},
			{Type: models.EventReturn, CreatedAt: now},
		},
	}
	svc := rankServiceAt(store, now)

	_, breakdown, err := svc.Compute(context.Background(), store.listing.ID)
	require.NoError(t, err)

	// 100% return rate: 1.0 - 2*1.0 clamps at zero.
	assert.Zero(t, breakdown.Quality)
}

func TestComputeManualEvaluationBlended(t *testing.T) {
	now := time.Now()
	listing := newTestListing(now)
	listing.Rating = 5
	store := &fakeRankStore{
		listing: listing,
		eval: &models.Evaluation{
			ListingID:    listing.ID,
			PriceValue:   10,
			Appearance:   10,
			DetailIntent: 10,
			Trust:        10,
		},
	}
	svc := rankServiceAt(store, now)

	_, breakdown, err := svc.Compute(context.Background(), store.listing.ID)
	require.NoError(t, err)

	// behavioral 1.0 averaged with perfect manual 1.0
	assert.InDelta(t, 1.0, breakdown.Quality, 1e-9)
}

func TestComputeExplorationBoostsColdListings(t *testing.T) {
	now := time.Now()

	cold := &fakeRankStore{listing: newTestListing(now)}
	_, coldBreak, err := rankServiceAt(cold, now).Compute(context.Background(), cold.listing.ID)
	require.NoError(t, err)

	var hotEvents []models.InteractionEvent
	for i := 0; i < 200; i++ {
		hotEvents = append(hotEvents, models.InteractionEvent{Type: models.EventImpression, CreatedAt: now})
	}
	hot := &fakeRankStore{listing: newTestListing(now), events: hotEvents}
	_, hotBreak, err := rankServiceAt(hot, now).Compute(context.Background(), hot.listing.ID)
	require.NoError(t, err)

	assert.Greater(t, coldBreak.Exploration, hotBreak.Exploration)
	assert.InDelta(t, explorationBase, coldBreak.Exploration, 1e-9)
}

func TestComputeLowScoreWithTrafficRecordsDiagnostic(t *testing.T) {
	now := time.Now()
	listing := newTestListing(now)
	listing.Rating = 1
	listing.CreatedAt = now.AddDate(0, 0, -120) // stale, kills recency
	store := &fakeRankStore{
		listing: listing,
		events: []models.InteractionEvent{
			{Type: models.EventImpression, CreatedAt: now},
		},
	}
	svc := rankServiceAt(store, now)

	score, _, err := svc.Compute(context.Background(), store.listing.ID)
	require.NoError(t, err)
	require.Less(t, score, 0.2)
	require.Len(t, store.diagnostics, 1)
	assert.Equal(t, listing.ID, store.diagnostics[0].ListingID)
}

func TestRecomputeAllCountsProcessed(t *testing.T) {
	now := time.Now()
	store := &fakeRankStore{listing: newTestListing(now)}
	svc := rankServiceAt(store, now)

	processed, failed, err := svc.RecomputeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Zero(t, failed)
}

func TestRecomputeAllStopsOnCancel(t *testing.T) {
	now := time.Now()
	store := &fakeRankStore{listing: newTestListing(now)}
	svc := rankServiceAt(store, now)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := svc.RecomputeAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
