package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"velomarkt/config"
	"velomarkt/models"
)

// Gap priority weights. Velocity counts heaviest: a proven fast mover that is
// out of stock is lost revenue, not just an untidy assortment.
const (
	sizeGapWeight     = 10
	priceGapWeight    = 15
	freshnessWeight   = 20
	velocityGapWeight = 25
)

// Fast-mover mining thresholds.
const (
	fastMoverMaxDays    = 7
	fastMoverMinSales   = 3
	velocityPriceBand   = 500.0
	soldHistoryLimit    = 50
	staleShareThreshold = 0.3
)

type GapPriority string

const (
	PriorityLow    GapPriority = "LOW"
	PriorityMedium GapPriority = "MEDIUM"
	PriorityHigh   GapPriority = "HIGH"
	PriorityUrgent GapPriority = "URGENT"
)

type SizeGap struct {
	Size    string `json:"size"`
	Current int    `json:"current"`
	Target  int    `json:"target"`
	Deficit int    `json:"deficit"`
}

type PriceGap struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Current int     `json:"current"`
	Target  int     `json:"target"`
	Deficit int     `json:"deficit"`
}

type VelocityPattern struct {
	Size         string  `json:"size"`
	PriceBand    float64 `json:"price_band"` // band floor, 500-wide
	SoldCount    int     `json:"sold_count"`
	HighPriority bool    `json:"high_priority"`
}

// GapReport is the full deficit picture for one brand/model. It only reports;
// acquisition targeting is someone else's job.
type GapReport struct {
	Brand        string            `json:"brand"`
	Model        string            `json:"model"`
	Tier         int               `json:"tier"`
	CurrentCount int               `json:"current_count"`
	SizeGaps     []SizeGap         `json:"size_gaps"`
	PriceGaps    []PriceGap        `json:"price_gaps"`
	NeedsFresh   bool              `json:"needs_fresh"`
	Velocity     []VelocityPattern `json:"velocity"`
	Score        int               `json:"score"`
	Priority     GapPriority       `json:"priority"`
}

// GapStore is the analyzer's slice of the domain store.
type GapStore interface {
	ActiveListingsByModel(ctx context.Context, brand, model string) ([]models.Listing, error)
	SoldListings(ctx context.Context, brand, model string, limit int) ([]models.Listing, error)
}

type GapAnalyzer struct {
	store   GapStore
	targets config.TargetSet
	now     func() time.Time
}

func NewGapAnalyzer(store GapStore, targets config.TargetSet) *GapAnalyzer {
	return &GapAnalyzer{store: store, targets: targets, now: time.Now}
}

// Analyze compares the model's current active assortment to its tier
// template and mines sold history for fast movers.
func (a *GapAnalyzer) Analyze(ctx context.Context, brand, model string) (*GapReport, error) {
	current, err := a.store.ActiveListingsByModel(ctx, brand, model)
	if err != nil {
		return nil, fmt.Errorf("load active listings: %w", err)
	}

	tier := models.TierBudget
	if len(current) > 0 {
		tier = current[0].Tier
	}
	template := a.targets.ForTier(tier)

	report := &GapReport{
		Brand:        brand,
		Model:        model,
		Tier:         tier,
		CurrentCount: len(current),
		SizeGaps:     sizeGaps(current, template.Sizes),
		PriceGaps:    priceGaps(current, template.PriceBrackets),
		NeedsFresh:   needsFresh(current, template.MaxAgeDays, a.now()),
	}

	sold, err := a.store.SoldListings(ctx, brand, model, soldHistoryLimit)
	if err != nil {
		// Velocity mining is best-effort; the rest of the report stands.
		sold = nil
	}
	report.Velocity = velocityPatterns(sold)

	report.Score = priorityScore(report)
	report.Priority = ClassifyPriority(report.Score)
	return report, nil
}

func sizeGaps(current []models.Listing, targets map[string]int) []SizeGap {
	counts := make(map[string]int)
	for _, l := range current {
		counts[strings.ToUpper(l.Size)]++
	}

	var gaps []SizeGap
	for _, size := range []string{"S", "M", "L", "XL"} {
		target, ok := targets[size]
		if !ok {
			continue
		}
		if counts[size] < target {
			gaps = append(gaps, SizeGap{
				Size:    size,
				Current: counts[size],
				Target:  target,
				Deficit: target - counts[size],
			})
		}
	}
	return gaps
}

func priceGaps(current []models.Listing, brackets []config.PriceBracket) []PriceGap {
	var gaps []PriceGap
	for _, b := range brackets {
		var in int
		for _, l := range current {
			if l.Price >= b.Min && l.Price <= b.Max {
				in++
			}
		}
		if in < b.Target {
			gaps = append(gaps, PriceGap{
				Min:     b.Min,
				Max:     b.Max,
				Current: in,
				Target:  b.Target,
				Deficit: b.Target - in,
			})
		}
	}
	return gaps
}

// needsFresh flags the model when more than 30% of its listings exceed the
// template's maximum age.
func needsFresh(current []models.Listing, maxAgeDays int, now time.Time) bool {
	if len(current) == 0 {
		return false
	}
	var old int
	for _, l := range current {
		if l.AgeDays(now) > float64(maxAgeDays) {
			old++
		}
	}
	return float64(old) > float64(len(current))*staleShareThreshold
}

// velocityPatterns buckets sold listings by (size, 500-wide price band) and
// marks buckets with three or more sub-week sales as high priority.
func velocityPatterns(sold []models.Listing) []VelocityPattern {
	type key struct {
		size string
		band float64
	}
	counts := make(map[key]int)
	var order []key

	for _, l := range sold {
		if l.DeactivatedAt == nil {
			continue
		}
		daysToSell := l.DeactivatedAt.Sub(l.CreatedAt).Hours() / 24
		if daysToSell >= fastMoverMaxDays {
			continue
		}
		k := key{
			size: strings.ToUpper(l.Size),
			band: math.Floor(l.Price/velocityPriceBand) * velocityPriceBand,
		}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}

	var patterns []VelocityPattern
	for _, k := range order {
		patterns = append(patterns, VelocityPattern{
			Size:         k.size,
			PriceBand:    k.band,
			SoldCount:    counts[k],
			HighPriority: counts[k] >= fastMoverMinSales,
		})
	}
	return patterns
}

func priorityScore(r *GapReport) int {
	score := 0
	for _, g := range r.SizeGaps {
		score += g.Deficit * sizeGapWeight
	}
	for _, g := range r.PriceGaps {
		score += g.Deficit * priceGapWeight
	}
	if r.NeedsFresh {
		score += freshnessWeight
	}
	for _, v := range r.Velocity {
		if v.HighPriority {
			score += velocityGapWeight
		}
	}
	return score
}

// ClassifyPriority buckets a gap score: LOW < 20, MEDIUM < 50, HIGH < 100,
// URGENT from 100 up.
func ClassifyPriority(score int) GapPriority {
	switch {
	case score < 20:
		return PriorityLow
	case score < 50:
		return PriorityMedium
	case score < 100:
		return PriorityHigh
	default:
		return PriorityUrgent
	}
}
