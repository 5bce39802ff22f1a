package workers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velomarkt/config"
	"velomarkt/models"
	"velomarkt/services"
	"velomarkt/storage"
)

// fakeInventory backs the composition manager, the refill queue and the
// health snapshot for one rebalance pass.
type fakeInventory struct {
	counts   map[int]int
	enqueued []models.RefillDirective
	health   storage.CatalogHealth
}

func (f *fakeInventory) CountActiveByTier(ctx context.Context) (map[int]int, error) {
	return f.counts, nil
}

func (f *fakeInventory) PruneCandidates(ctx context.Context, tier, minAgeDays, maxViews int) ([]models.Listing, error) {
	return nil, nil
}

func (f *fakeInventory) DeactivateListing(ctx context.Context, id uuid.UUID, reason string) error {
	return nil
}

func (f *fakeInventory) EnqueueRefill(ctx context.Context, d *models.RefillDirective) error {
	f.enqueued = append(f.enqueued, *d)
	return nil
}

func (f *fakeInventory) PendingRefills(ctx context.Context, limit int) ([]models.RefillDirective, error) {
	return nil, nil
}

func (f *fakeInventory) MarkRefillProcessed(ctx context.Context, id int64) error {
	return nil
}

func (f *fakeInventory) GetCatalogHealth(ctx context.Context) (*storage.CatalogHealth, error) {
	return &f.health, nil
}

func rebalanceTargets() config.TargetSet {
	return config.TargetSet{
		models.TierPremium: {Tier: models.TierPremium, TotalCount: 3},
		models.TierMid:     {Tier: models.TierMid, TotalCount: 2},
		models.TierBudget:  {Tier: models.TierBudget, TotalCount: 2},
	}
}

func TestRebalanceRecordsDeficitsAndHealth(t *testing.T) {
	inv := &fakeInventory{
		counts: map[int]int{models.TierPremium: 1, models.TierMid: 2, models.TierBudget: 2},
		health: storage.CatalogHealth{Active: 5, AvgMargin: 420},
	}
	ops := &fakeRecorder{}
	composition := services.NewCompositionManager(inv, rebalanceTargets())
	refill := services.NewRefillService(inv, nil, nil)
	w := NewRebalanceWorker(inv, ops, composition, refill)

	require.NoError(t, w.Run(context.Background()))

	require.Len(t, inv.enqueued, 2, "premium is short by two")
	for _, d := range inv.enqueued {
		assert.Equal(t, models.TierPremium, d.Tier)
		assert.Equal(t, models.RefillReasonTierDeficit, d.Reason)
	}
	require.Len(t, ops.statuses, 1)
	assert.Equal(t, models.RunStatusCompleted, ops.statuses[0])
}
