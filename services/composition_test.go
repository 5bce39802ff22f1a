package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velomarkt/config"
	"velomarkt/models"
)

type fakeCompositionStore struct {
	counts     map[int]int
	candidates []models.Listing
	enqueued   []models.RefillDirective
	pruned     []uuid.UUID
}

func (f *fakeCompositionStore) CountActiveByTier(ctx context.Context) (map[int]int, error) {
	return f.counts, nil
}

func (f *fakeCompositionStore) PruneCandidates(ctx context.Context, tier, minAgeDays, maxViews int) ([]models.Listing, error) {
	var out []models.Listing
	now := time.Now()
	for _, l := range f.candidates {
		if l.Tier == tier && l.AgeDays(now) > float64(minAgeDays) && l.Views < maxViews {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeCompositionStore) DeactivateListing(ctx context.Context, id uuid.UUID, reason string) error {
	f.pruned = append(f.pruned, id)
	return nil
}

func (f *fakeCompositionStore) EnqueueRefill(ctx context.Context, d *models.RefillDirective) error {
	f.enqueued = append(f.enqueued, *d)
	return nil
}

func compositionTargets() config.TargetSet {
	return config.TargetSet{
		1: {Tier: 1, TotalCount: 5},
		2: {Tier: 2, TotalCount: 5},
		3: {Tier: 3, TotalCount: 5},
	}
}

func TestRebalanceEnqueuesDeficits(t *testing.T) {
	store := &fakeCompositionStore{counts: map[int]int{1: 3, 2: 5, 3: 5}}
	m := NewCompositionManager(store, compositionTargets())

	result, err := m.Rebalance(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Enqueued)
	assert.Equal(t, map[int]int{1: 2}, result.Deficits)
	for _, d := range store.enqueued {
		assert.Equal(t, models.TierPremium, d.Tier)
		assert.Equal(t, models.RefillReasonTierDeficit, d.Reason)
	}
}

func TestRebalancePrunesBudgetSurplus(t *testing.T) {
	now := time.Now()
	stale := models.Listing{ID: uuid.New(), Tier: 3, Views: 5, CreatedAt: now.AddDate(0, 0, -60)}
	viewed := models.Listing{ID: uuid.New(), Tier: 3, Views: 15, CreatedAt: now.AddDate(0, 0, -60)}
	young := models.Listing{ID: uuid.New(), Tier: 3, Views: 2, CreatedAt: now.AddDate(0, 0, -10)}

	store := &fakeCompositionStore{
		counts:     map[int]int{1: 5, 2: 5, 3: 8},
		candidates: []models.Listing{stale, viewed, young},
	}
	m := NewCompositionManager(store, compositionTargets())

	result, err := m.Rebalance(context.Background())
	require.NoError(t, err)

	// only the stale low-view listing qualifies even though three are surplus
	assert.Equal(t, 1, result.Pruned)
	require.Len(t, store.pruned, 1)
	assert.Equal(t, stale.ID, store.pruned[0])
}

func TestRebalancePruneCappedAtSurplus(t *testing.T) {
	now := time.Now()
	var candidates []models.Listing
	for i := 0; i < 5; i++ {
		candidates = append(candidates, models.Listing{
			ID: uuid.New(), Tier: 3, Views: 1, CreatedAt: now.AddDate(0, 0, -90),
		})
	}
	store := &fakeCompositionStore{
		counts:     map[int]int{1: 5, 2: 5, 3: 7},
		candidates: candidates,
	}
	m := NewCompositionManager(store, compositionTargets())

	result, err := m.Rebalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pruned, "never prune below target")
}

func TestRebalanceNonBudgetSurplusUntouched(t *testing.T) {
	now := time.Now()
	store := &fakeCompositionStore{
		counts: map[int]int{1: 9, 2: 5, 3: 5},
		candidates: []models.Listing{
			{ID: uuid.New(), Tier: 1, Views: 0, CreatedAt: now.AddDate(0, 0, -90)},
		},
	}
	m := NewCompositionManager(store, compositionTargets())

	result, err := m.Rebalance(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Pruned)
	assert.Empty(t, store.pruned)
}
