package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"velomarkt/models"
)

// Rank weights. Must sum to 1.0; conversion dominates because an order is the
// strongest signal we get.
const (
	weightPop     = 0.20
	weightEng     = 0.25
	weightConv    = 0.30
	weightQuality = 0.10
	weightRecency = 0.05
	weightExplore = 0.10
)

const (
	priorCount      = 5.0
	priorRate       = 0.02
	scaleViews      = 50.0
	scaleEngagement = 10.0
	explorationBase = 0.15

	rankFloor = 0.01
	rankCeil  = 0.99

	// Listings scoring under this despite real view traffic get a
	// diagnostic row for manual review.
	lowScoreThreshold = 0.2
)

// RankStore is the slice of the domain store the ranking model needs.
// Narrow by design so tests can hand in a double.
type RankStore interface {
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	EventsForListing(ctx context.Context, id uuid.UUID, since time.Time) ([]models.InteractionEvent, error)
	GetEvaluation(ctx context.Context, id uuid.UUID) (*models.Evaluation, error)
	UpdateRank(ctx context.Context, id uuid.UUID, score float64, components json.RawMessage) error
	InsertRankDiagnostic(ctx context.Context, d *models.RankDiagnostic) error
	ActiveListingIDs(ctx context.Context) ([]uuid.UUID, error)
}

type RankingService struct {
	store RankStore
	now   func() time.Time
}

func NewRankingService(store RankStore) *RankingService {
	return &RankingService{store: store, now: time.Now}
}

// saturate maps an unbounded non-negative count into [0,1) with diminishing
// returns: x/(x+k).
func saturate(x, scale float64) float64 {
	return x / (x + scale)
}

// normalizeManual maps a manual 1-10 sub-score to [0,1].
func normalizeManual(v float64) float64 {
	return math.Max(0, math.Min(1, (v-1)/9))
}

// Compute calculates the listing's rank score and component breakdown,
// persists both, and records a diagnostic when the score is suspiciously low
// for the traffic the listing gets.
func (s *RankingService) Compute(ctx context.Context, id uuid.UUID) (float64, *models.RankBreakdown, error) {
	listing, err := s.store.GetListing(ctx, id)
	if err != nil {
		return 0, nil, fmt.Errorf("get listing: %w", err)
	}
	if listing == nil {
		return 0, nil, fmt.Errorf("listing %s not found", id)
	}

	now := s.now()
	since := now.AddDate(0, 0, -LookbackDays)
	events, err := s.store.EventsForListing(ctx, id, since)
	if err != nil {
		return 0, nil, fmt.Errorf("load events: %w", err)
	}

	counts := AggregateDecayed(events, now)

	pPop := saturate(counts.Views, scaleViews)

	// Intent-weighted engagement: a cart add is worth five views' worth of
	// clicks, a favorite three.
	engRaw := counts.Clicks + 3*counts.Favorites + 5*counts.Carts
	pEng := saturate(engRaw, scaleEngagement)

	// Laplace-smoothed conversion: shrinks sparse empirical rates toward the
	// global prior so a listing with one lucky order does not pin to 1.
	pConv := (priorCount*priorRate + counts.Orders) /
		(priorCount + math.Max(1, counts.Clicks))

	var returnRate float64
	if counts.Orders > 0 {
		returnRate = counts.Returns / counts.Orders
	}
	ratingNorm := 0.5
	if listing.Rating > 0 {
		ratingNorm = listing.Rating / 5
	}
	pQuality := math.Max(0, ratingNorm-2*returnRate)

	eval, err := s.store.GetEvaluation(ctx, id)
	if err != nil {
		return 0, nil, fmt.Errorf("load evaluation: %w", err)
	}
	if eval != nil && eval.PriceValue > 0 {
		manual := normalizeManual(eval.PriceValue)*0.3 +
			normalizeManual(eval.Appearance)*0.2 +
			normalizeManual(eval.DetailIntent)*0.3 +
			normalizeManual(eval.Trust)*0.2
		pQuality = (pQuality + manual) / 2
	}

	pRecency := math.Exp(-listing.AgeDays(now) / 30)

	// Explore/exploit: under-exposed listings get a boost so new inventory is
	// never starved of impressions.
	pExplore := explorationBase * (1 - pPop)

	weighted := weightPop*pPop +
		weightEng*pEng +
		weightConv*pConv +
		weightQuality*pQuality +
		weightRecency*pRecency +
		weightExplore*pExplore

	score := math.Max(rankFloor, math.Min(rankCeil, weighted))

	breakdown := &models.RankBreakdown{
		Popularity:  pPop,
		Engagement:  pEng,
		Conversion:  pConv,
		Quality:     pQuality,
		Recency:     pRecency,
		Exploration: pExplore,
	}

	components, err := json.Marshal(breakdown)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal breakdown: %w", err)
	}
	if err := s.store.UpdateRank(ctx, id, score, components); err != nil {
		return 0, nil, fmt.Errorf("persist rank: %w", err)
	}

	if score < lowScoreThreshold && counts.Views > 0 {
		diag := &models.RankDiagnostic{
			ListingID:    id,
			Score:        score,
			ViewsDecayed: counts.Views,
			Note:         "low score despite view traffic, possible under-ranking",
		}
		if err := s.store.InsertRankDiagnostic(ctx, diag); err != nil {
			log.Printf("Ranking: diagnostic insert failed for %s: %v", shortID(id), err)
		}
	}

	return score, breakdown, nil
}

// RecomputeAll runs Compute over every active listing. A failing listing is
// logged and skipped; it keeps its previous score and the batch continues.
func (s *RankingService) RecomputeAll(ctx context.Context) (processed, failed int, err error) {
	ids, err := s.store.ActiveListingIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list active listings: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return processed, failed, ctx.Err()
		}
		if _, _, err := s.Compute(ctx, id); err != nil {
			log.Printf("Ranking: skipping %s: %v", shortID(id), err)
			failed++
			continue
		}
		processed++
	}
	return processed, failed, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
