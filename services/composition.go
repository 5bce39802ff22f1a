package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"velomarkt/config"
	"velomarkt/models"
)

// Prune thresholds for surplus budget stock. Young or still-viewed listings
// are never pruned.
const (
	pruneMinAgeDays = 30
	pruneMaxViews   = 10
)

type CompositionStore interface {
	CountActiveByTier(ctx context.Context) (map[int]int, error)
	PruneCandidates(ctx context.Context, tier, minAgeDays, maxViews int) ([]models.Listing, error)
	DeactivateListing(ctx context.Context, id uuid.UUID, reason string) error
	EnqueueRefill(ctx context.Context, d *models.RefillDirective) error
}

// RebalanceResult reports what one rebalance pass changed.
type RebalanceResult struct {
	Deficits map[int]int
	Enqueued int
	Pruned   int
}

// CompositionManager keeps per-tier inventory counts near their configured
// targets: deficits raise refill directives, budget-tier surplus gets pruned.
type CompositionManager struct {
	store   CompositionStore
	targets config.TargetSet
}

func NewCompositionManager(store CompositionStore, targets config.TargetSet) *CompositionManager {
	return &CompositionManager{store: store, targets: targets}
}

func (m *CompositionManager) Rebalance(ctx context.Context) (*RebalanceResult, error) {
	counts, err := m.store.CountActiveByTier(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by tier: %w", err)
	}

	result := &RebalanceResult{Deficits: make(map[int]int)}

	for _, tier := range []int{models.TierPremium, models.TierMid, models.TierBudget} {
		target := m.targets.ForTier(tier).TotalCount
		current := counts[tier]

		if current < target {
			deficit := target - current
			result.Deficits[tier] = deficit
			for i := 0; i < deficit; i++ {
				d := &models.RefillDirective{
					Tier:   tier,
					Reason: models.RefillReasonTierDeficit,
				}
				if err := m.store.EnqueueRefill(ctx, d); err != nil {
					return result, fmt.Errorf("enqueue refill tier %d: %w", tier, err)
				}
				result.Enqueued++
			}
			continue
		}

		// Surplus only matters in the budget tier; premium and mid stock
		// is left to sell through.
		if tier == models.TierBudget && current > target {
			pruned, err := m.pruneSurplus(ctx, tier, current-target)
			if err != nil {
				return result, err
			}
			result.Pruned += pruned
		}
	}
	return result, nil
}

func (m *CompositionManager) pruneSurplus(ctx context.Context, tier, surplus int) (int, error) {
	candidates, err := m.store.PruneCandidates(ctx, tier, pruneMinAgeDays, pruneMaxViews)
	if err != nil {
		return 0, fmt.Errorf("prune candidates: %w", err)
	}

	pruned := 0
	for _, l := range candidates {
		if pruned >= surplus {
			break
		}
		if err := m.store.DeactivateListing(ctx, l.ID, models.ReasonPruned); err != nil {
			log.Printf("[rebalance] prune %s failed: %v", shortID(l.ID), err)
			continue
		}
		pruned++
	}
	return pruned, nil
}
