package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"velomarkt/models"
)

// Check cadence per tier, in days. Premium stock turns fastest and gets
// verified most often.
var tierCheckIntervals = map[int]float64{
	models.TierPremium: 1,
	models.TierMid:     2,
	models.TierBudget:  3,
}

const (
	youngListingAgeDays = 7
	oldListingAgeDays   = 30
	hotPeriodBonus      = 5
)

// CheckCandidate is a listing due for availability verification, ordered by
// priority.
type CheckCandidate struct {
	Listing  models.Listing
	Interval float64 // effective interval in days
	Priority int
}

type FreshnessStore interface {
	ActiveListings(ctx context.Context) ([]models.Listing, error)
}

// FreshnessScheduler decides which listings are due for an availability
// check and in what order.
type FreshnessScheduler struct {
	store FreshnessStore
	limit int
	now   func() time.Time
}

func NewFreshnessScheduler(store FreshnessStore, limit int) *FreshnessScheduler {
	return &FreshnessScheduler{store: store, limit: limit, now: time.Now}
}

// CheckInterval returns the effective interval for a listing: the tier base,
// halved while the listing is under a week old, stretched by half again once
// it passes a month.
func CheckInterval(l models.Listing, now time.Time) float64 {
	base, ok := tierCheckIntervals[l.Tier]
	if !ok {
		base = tierCheckIntervals[models.TierBudget]
	}
	age := l.AgeDays(now)
	switch {
	case age < youngListingAgeDays:
		return base / 2
	case age > oldListingAgeDays:
		return base * 1.5
	default:
		return base
	}
}

// DueListings returns at most the configured limit of listings whose last
// verification is older than their effective interval, highest priority
// first.
func (s *FreshnessScheduler) DueListings(ctx context.Context) ([]CheckCandidate, error) {
	listings, err := s.store.ActiveListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active listings: %w", err)
	}
	now := s.now()

	var due []CheckCandidate
	for _, l := range listings {
		interval := CheckInterval(l, now)
		if !isDue(l, interval, now) {
			continue
		}
		due = append(due, CheckCandidate{
			Listing:  l,
			Interval: interval,
			Priority: checkPriority(l, now),
		})
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].Priority > due[j].Priority
	})
	if s.limit > 0 && len(due) > s.limit {
		due = due[:s.limit]
	}
	return due, nil
}

// isDue treats a never-verified listing as last checked at creation, so
// fresh arrivals age into the queue on the normal cadence.
func isDue(l models.Listing, interval float64, now time.Time) bool {
	last := l.CreatedAt
	if l.LastVerifiedAt != nil {
		last = *l.LastVerifiedAt
	}
	sinceCheck := now.Sub(last).Hours() / 24
	return sinceCheck >= interval || math.Abs(sinceCheck-interval) < 1e-9
}

func checkPriority(l models.Listing, now time.Time) int {
	p := (4 - l.Tier) * 10
	if l.AgeDays(now) < youngListingAgeDays {
		p += hotPeriodBonus
	}
	return p
}
