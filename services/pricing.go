package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"velomarkt/models"
)

// fixedOverhead covers refurbishment and listing costs per bike, subtracted
// when reporting margin.
const fixedOverhead = 150.0

var tierMultipliers = map[int]float64{
	models.TierPremium: 1.05,
	models.TierMid:     1.00,
	models.TierBudget:  0.97,
}

var conditionMultipliers = map[string]float64{
	models.ConditionExcellent: 1.02,
	models.ConditionVeryGood:  1.00,
	models.ConditionGood:      0.96,
	models.ConditionFair:      0.90,
}

// seasonalityByMonth peaks in early summer when bike demand does and troughs
// in winter. Index 0 = January.
var seasonalityByMonth = [12]float64{
	0.92, 0.94, 1.00, 1.05, 1.08, 1.10,
	1.08, 1.05, 1.00, 0.96, 0.92, 0.90,
}

// ComparableCounter reports how many active near-identical listings compete
// with the given one.
type ComparableCounter interface {
	CountActiveComparables(ctx context.Context, l *models.Listing) (int, error)
}

type PriceOptimizer struct {
	store ComparableCounter
	now   func() time.Time
}

func NewPriceOptimizer(store ComparableCounter) *PriceOptimizer {
	return &PriceOptimizer{store: store, now: time.Now}
}

// Optimize turns a fair-value estimate into a recommended asking price:
// fair × tier × condition × seasonality × scarcity, rounded to a
// psychological price point.
func (p *PriceOptimizer) Optimize(ctx context.Context, fair *models.FairValue, listing *models.Listing) (*models.PriceRecommendation, error) {
	competitors, err := p.store.CountActiveComparables(ctx, listing)
	if err != nil {
		return nil, fmt.Errorf("count comparables: %w", err)
	}

	tierMult, ok := tierMultipliers[listing.Tier]
	if !ok {
		tierMult = tierMultipliers[models.TierBudget]
	}
	condMult, ok := conditionMultipliers[listing.Condition]
	if !ok {
		condMult = conditionMultipliers[models.ConditionGood]
	}
	seasonMult := seasonalityByMonth[p.now().Month()-1]

	raw := fair.Value * tierMult * condMult * seasonMult * ScarcityMultiplier(competitors)
	optimal := PsychologicalRound(raw)

	markup := 0.0
	if fair.Value > 0 {
		markup = (optimal - fair.Value) / fair.Value * 100
	}

	return &models.PriceRecommendation{
		OptimalPrice: optimal,
		FairValue:    fair.Value,
		Margin:       optimal - listing.AcquisitionCost - fixedOverhead,
		MarkupPct:    markup,
	}, nil
}

// ScarcityMultiplier prices supply saturation: a listing with no direct
// competitors commands a premium, four or more active twins force a discount.
// Strictly decreasing across the buckets {0, 1, 2-3, >=4}.
func ScarcityMultiplier(activeComparables int) float64 {
	switch {
	case activeComparables <= 0:
		return 1.08
	case activeComparables == 1:
		return 1.04
	case activeComparables <= 3:
		return 1.00
	default:
		return 0.95
	}
}

// PsychologicalRound snaps a computed price to a "...90" price point.
// Below 1000 it rounds up to the next hundred minus 10 (843 -> 890); from
// 1000 up it rounds to the nearest hundred minus 10 (2012 -> 1990,
// 3071 -> 3090).
func PsychologicalRound(price float64) float64 {
	if price <= 0 {
		return 0
	}
	if price < 1000 {
		return math.Ceil(price/100)*100 - 10
	}
	return math.Round(price/100)*100 - 10
}
