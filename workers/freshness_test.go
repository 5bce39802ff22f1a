package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velomarkt/models"
	"velomarkt/services"
	"velomarkt/verifier"
)

// fakeCatalog backs both the freshness scheduler and the worker's lifecycle
// mutations, recording every write.
type fakeCatalog struct {
	listings    []models.Listing
	deactivated []string // "id:reason"
	touched     []uuid.UUID
}

func (f *fakeCatalog) ActiveListings(ctx context.Context) ([]models.Listing, error) {
	return f.listings, nil
}

func (f *fakeCatalog) DeactivateListing(ctx context.Context, id uuid.UUID, reason string) error {
	f.deactivated = append(f.deactivated, id.String()+":"+reason)
	return nil
}

func (f *fakeCatalog) TouchLastVerified(ctx context.Context, id uuid.UUID) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeRecorder struct {
	started  []string
	statuses []models.RunStatus
}

func (f *fakeRecorder) StartJobRun(job string) (int64, error) {
	f.started = append(f.started, job)
	return int64(len(f.started)), nil
}

func (f *fakeRecorder) FinishJobRun(id int64, status models.RunStatus, processed, failed int, detail string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeRefillQueue struct {
	enqueued []models.RefillDirective
}

func (f *fakeRefillQueue) EnqueueRefill(ctx context.Context, d *models.RefillDirective) error {
	f.enqueued = append(f.enqueued, *d)
	return nil
}

func (f *fakeRefillQueue) PendingRefills(ctx context.Context, limit int) ([]models.RefillDirective, error) {
	return nil, nil
}

func (f *fakeRefillQueue) MarkRefillProcessed(ctx context.Context, id int64) error {
	return nil
}

type stubFetcher struct {
	result *verifier.PageResult
	err    error
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (*verifier.PageResult, error) {
	return s.result, s.err
}

func dueListing(source string) models.Listing {
	now := time.Now()
	verified := now.AddDate(0, 0, -5)
	return models.Listing{
		ID:             uuid.New(),
		Brand:          "Canyon",
		Model:          "Spectral",
		Tier:           models.TierMid,
		Source:         source,
		SourceURL:      "https://example.org/listing/1",
		IsActive:       true,
		CreatedAt:      now.AddDate(0, 0, -20),
		LastVerifiedAt: &verified,
	}
}

func newFreshnessWorker(catalog *fakeCatalog, queue *fakeRefillQueue, fetcher verifier.Fetcher) (*FreshnessWorker, *fakeRecorder) {
	ops := &fakeRecorder{}
	sched := services.NewFreshnessScheduler(catalog, 50)
	refill := services.NewRefillService(queue, nil, nil)
	w := NewFreshnessWorker(catalog, ops, sched, verifier.New(fetcher), refill, 0)
	return w, ops
}

func TestRunInconclusiveCheckLeavesListingUntouched(t *testing.T) {
	catalog := &fakeCatalog{listings: []models.Listing{dueListing(models.SourceKleinanzeigen)}}
	queue := &fakeRefillQueue{}
	w, ops := newFreshnessWorker(catalog, queue, &stubFetcher{err: errors.New("proxy timeout")})

	require.NoError(t, w.Run(context.Background()))

	assert.Empty(t, catalog.deactivated, "fetch failure must not deactivate")
	assert.Empty(t, catalog.touched, "fetch failure must not advance last_verified_at")
	assert.Empty(t, queue.enqueued)
	require.Len(t, ops.statuses, 1)
	assert.Equal(t, models.RunStatusCompleted, ops.statuses[0])
}

func TestRunSoldDeactivatesAndQueuesRefill(t *testing.T) {
	l := dueListing(models.SourceKleinanzeigen)
	catalog := &fakeCatalog{listings: []models.Listing{l}}
	queue := &fakeRefillQueue{}
	fetcher := &stubFetcher{result: &verifier.PageResult{Status: 200, Text: "anzeige ist deaktiviert"}}
	w, _ := newFreshnessWorker(catalog, queue, fetcher)

	require.NoError(t, w.Run(context.Background()))

	require.Len(t, catalog.deactivated, 1)
	assert.Equal(t, l.ID.String()+":sold", catalog.deactivated[0])
	assert.Empty(t, catalog.touched)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, models.RefillReasonSold, queue.enqueued[0].Reason)
}

func TestRunAvailableTouchesVerificationTimestamp(t *testing.T) {
	l := dueListing(models.SourceBuycycle)
	catalog := &fakeCatalog{listings: []models.Listing{l}}
	fetcher := &stubFetcher{result: &verifier.PageResult{Status: 200, Text: "great bike, buy now"}}
	w, _ := newFreshnessWorker(catalog, &fakeRefillQueue{}, fetcher)

	require.NoError(t, w.Run(context.Background()))

	assert.Empty(t, catalog.deactivated)
	require.Len(t, catalog.touched, 1)
	assert.Equal(t, l.ID, catalog.touched[0])
}

func TestRunGoneDeletesOn404(t *testing.T) {
	l := dueListing(models.SourceBikeflip)
	catalog := &fakeCatalog{listings: []models.Listing{l}}
	queue := &fakeRefillQueue{}
	w, _ := newFreshnessWorker(catalog, queue, &stubFetcher{result: &verifier.PageResult{Status: 404}})

	require.NoError(t, w.Run(context.Background()))

	require.Len(t, catalog.deactivated, 1)
	assert.Equal(t, l.ID.String()+":deleted", catalog.deactivated[0])
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, models.RefillReasonDeleted, queue.enqueued[0].Reason)
}
