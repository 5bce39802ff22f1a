package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velomarkt/models"
)

type fakeRefillStore struct {
	enqueued  []models.RefillDirective
	pending   []models.RefillDirective
	processed []int64
}

func (f *fakeRefillStore) EnqueueRefill(ctx context.Context, d *models.RefillDirective) error {
	f.enqueued = append(f.enqueued, *d)
	return nil
}

func (f *fakeRefillStore) PendingRefills(ctx context.Context, limit int) ([]models.RefillDirective, error) {
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeRefillStore) MarkRefillProcessed(ctx context.Context, id int64) error {
	f.processed = append(f.processed, id)
	return nil
}

type fakeCollector struct {
	requests []DeepCollectRequest
	err      error
}

func (f *fakeCollector) DeepCollect(ctx context.Context, req DeepCollectRequest) (*DeepCollectResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &DeepCollectResponse{Accepted: true}, nil
}

type fakeGapReporter struct {
	report *GapReport
	err    error
	calls  int
}

func (f *fakeGapReporter) Analyze(ctx context.Context, brand, model string) (*GapReport, error) {
	f.calls++
	return f.report, f.err
}

func goneListing(tier int) *models.Listing {
	return &models.Listing{Brand: "YT", Model: "Capra", Tier: tier}
}

func TestOnListingGoneAlwaysEnqueues(t *testing.T) {
	store := &fakeRefillStore{}
	svc := NewRefillService(store, &fakeCollector{}, nil)

	err := svc.OnListingGone(context.Background(), goneListing(models.TierBudget), models.RefillReasonSold)
	require.NoError(t, err)

	require.Len(t, store.enqueued, 1)
	assert.Equal(t, "YT", store.enqueued[0].Brand)
	assert.Equal(t, models.RefillReasonSold, store.enqueued[0].Reason)
}

func TestOnListingGonePremiumTriggersImmediateCollect(t *testing.T) {
	store := &fakeRefillStore{}
	collector := &fakeCollector{}
	svc := NewRefillService(store, collector, nil)

	require.NoError(t, svc.OnListingGone(context.Background(), goneListing(models.TierPremium), models.RefillReasonSold))
	require.Len(t, collector.requests, 1)
	assert.Equal(t, "Capra", collector.requests[0].Model)

	require.NoError(t, svc.OnListingGone(context.Background(), goneListing(models.TierMid), models.RefillReasonSold))
	assert.Len(t, collector.requests, 1, "mid tier must not collect synchronously")
}

func TestOnListingGoneCollectFailureNotFatal(t *testing.T) {
	store := &fakeRefillStore{}
	collector := &fakeCollector{err: errors.New("service unavailable")}
	svc := NewRefillService(store, collector, nil)

	err := svc.OnListingGone(context.Background(), goneListing(models.TierPremium), models.RefillReasonDeleted)
	require.NoError(t, err, "collect failure must not surface")
	assert.Len(t, store.enqueued, 1, "directive stays queued")
}

func TestOnListingGoneNilCollector(t *testing.T) {
	store := &fakeRefillStore{}
	svc := NewRefillService(store, nil, nil)

	err := svc.OnListingGone(context.Background(), goneListing(models.TierPremium), models.RefillReasonSold)
	require.NoError(t, err)
	assert.Len(t, store.enqueued, 1)
}

func TestProcessPendingMarksOnlySuccesses(t *testing.T) {
	store := &fakeRefillStore{
		pending: []models.RefillDirective{
			{ID: 1, Brand: "Cube", Model: "Stereo", Tier: 2, Reason: models.RefillReasonSold},
			{ID: 2, Brand: "Trek", Model: "Fuel EX", Tier: 2, Reason: models.RefillReasonDeleted},
		},
	}
	collector := &fakeCollector{}
	svc := NewRefillService(store, collector, nil)

	n, err := svc.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, store.processed)
}

func TestCollectRequestTargetedByGapReport(t *testing.T) {
	store := &fakeRefillStore{}
	collector := &fakeCollector{}
	gaps := &fakeGapReporter{
		report: &GapReport{
			Brand: "YT",
			Model: "Capra",
			SizeGaps: []SizeGap{
				{Size: "M", Current: 1, Target: 3, Deficit: 2},
				{Size: "L", Current: 0, Target: 2, Deficit: 2},
			},
			PriceGaps: []PriceGap{
				{Min: 2500, Max: 4000, Current: 1, Target: 3, Deficit: 2},
			},
		},
	}
	svc := NewRefillService(store, collector, gaps)

	require.NoError(t, svc.OnListingGone(context.Background(), goneListing(models.TierPremium), models.RefillReasonSold))
	require.Len(t, collector.requests, 1)

	req := collector.requests[0]
	assert.Equal(t, []string{"M", "L"}, req.Sizes)
	require.Len(t, req.PriceBrackets, 1)
	assert.Equal(t, 2500.0, req.PriceBrackets[0].Min)
	assert.Equal(t, 4000.0, req.PriceBrackets[0].Max)
	assert.Equal(t, 2, req.PriceBrackets[0].Target)
}

func TestCollectRequestGapFailureDegradesToUntargeted(t *testing.T) {
	store := &fakeRefillStore{}
	collector := &fakeCollector{}
	gaps := &fakeGapReporter{err: errors.New("db down")}
	svc := NewRefillService(store, collector, gaps)

	require.NoError(t, svc.OnListingGone(context.Background(), goneListing(models.TierPremium), models.RefillReasonSold))
	require.Len(t, collector.requests, 1)
	assert.Empty(t, collector.requests[0].Sizes)
	assert.Empty(t, collector.requests[0].PriceBrackets)
	assert.Equal(t, "YT", collector.requests[0].Brand)
}

func TestProcessPendingTargetsEachDirective(t *testing.T) {
	store := &fakeRefillStore{
		pending: []models.RefillDirective{
			{ID: 1, Brand: "Cube", Model: "Stereo", Tier: 2},
			{ID: 2, Tier: 3, Reason: models.RefillReasonTierDeficit}, // no brand, never analyzed
		},
	}
	collector := &fakeCollector{}
	gaps := &fakeGapReporter{
		report: &GapReport{SizeGaps: []SizeGap{{Size: "S", Deficit: 1}}},
	}
	svc := NewRefillService(store, collector, gaps)

	n, err := svc.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, gaps.calls, "directives without a brand skip the report")
	assert.Equal(t, []string{"S"}, collector.requests[0].Sizes)
	assert.Empty(t, collector.requests[1].Sizes)
}

func TestProcessPendingFailuresStayQueued(t *testing.T) {
	store := &fakeRefillStore{
		pending: []models.RefillDirective{{ID: 7, Brand: "Scott", Model: "Spark"}},
	}
	svc := NewRefillService(store, &fakeCollector{err: errors.New("timeout")}, nil)

	n, err := svc.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.processed)
}
