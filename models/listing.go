package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Listing is one secondhand bike offered in the catalog. Listings are never
// hard-deleted: removal is a soft deactivation with a reason code so that
// sold history stays available for velocity mining.
type Listing struct {
	ID                  uuid.UUID       `json:"id" db:"id"`
	Brand               string          `json:"brand" db:"brand"`
	Model               string          `json:"model" db:"model"`
	Tier                int             `json:"tier" db:"tier"` // 1=premium, 2=mid, 3=budget
	Size                string          `json:"size" db:"size"` // S, M, L, XL
	Year                *int            `json:"year" db:"year"`
	Price               float64         `json:"price" db:"price"` // current asking price
	AcquisitionCost     float64         `json:"acquisition_cost" db:"acquisition_cost"`
	Condition           string          `json:"condition" db:"condition"`
	Material            string          `json:"material" db:"material"`
	Rating              float64         `json:"rating" db:"rating"` // 0-5, 0 = unrated
	Views               int             `json:"views" db:"views"`   // cumulative, maintained by the web layer
	RankScore           float64         `json:"rank_score" db:"rank_score"`
	RankComponents      json.RawMessage `json:"rank_components" db:"rank_components"`
	FairValue           *float64        `json:"fair_value" db:"fair_value"`
	FairValueConfidence float64         `json:"fair_value_confidence" db:"fair_value_confidence"`
	OptimalPrice        *float64        `json:"optimal_price" db:"optimal_price"`
	Source              string          `json:"source" db:"source"` // kleinanzeigen, buycycle, bikeflip
	SourceURL           string          `json:"source_url" db:"source_url"`
	IsActive            bool            `json:"is_active" db:"is_active"`
	DeactivationReason  string          `json:"deactivation_reason" db:"deactivation_reason"`
	DeactivatedAt       *time.Time      `json:"deactivated_at" db:"deactivated_at"`
	LastVerifiedAt      *time.Time      `json:"last_verified_at" db:"last_verified_at"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// AgeDays returns listing age at the given instant.
func (l *Listing) AgeDays(now time.Time) float64 {
	return now.Sub(l.CreatedAt).Hours() / 24
}

// Evaluation holds the optional manual expert sub-scores for a listing,
// each on a 1-10 scale.
type Evaluation struct {
	ListingID    uuid.UUID `json:"listing_id" db:"listing_id"`
	PriceValue   float64   `json:"price_value_score" db:"price_value_score"`
	Appearance   float64   `json:"quality_appearance_score" db:"quality_appearance_score"`
	DetailIntent float64   `json:"detail_intent_score" db:"detail_intent_score"`
	Trust        float64   `json:"trust_confidence_score" db:"trust_confidence_score"`
	EvaluatedAt  time.Time `json:"evaluated_at" db:"evaluated_at"`
}

// RankBreakdown is the per-component view of a rank score, persisted as JSON
// alongside the score for diagnostics.
type RankBreakdown struct {
	Popularity  float64 `json:"pop"`
	Engagement  float64 `json:"eng"`
	Conversion  float64 `json:"conv"`
	Quality     float64 `json:"qual"`
	Recency     float64 `json:"rec"`
	Exploration float64 `json:"exp"`
}

// RankDiagnostic flags a listing whose recomputed score came out low despite
// real view traffic, for manual review. Detection only, no correction.
type RankDiagnostic struct {
	ID           int64     `json:"id" db:"id"`
	ListingID    uuid.UUID `json:"listing_id" db:"listing_id"`
	Score        float64   `json:"score" db:"score"`
	ViewsDecayed float64   `json:"views_decayed" db:"views_decayed"`
	Note         string    `json:"note" db:"note"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Tiers
const (
	TierPremium = 1
	TierMid     = 2
	TierBudget  = 3
)

// Condition grades
const (
	ConditionExcellent = "excellent"
	ConditionVeryGood  = "very_good"
	ConditionGood      = "good"
	ConditionFair      = "fair"
)

// Deactivation reasons
const (
	ReasonSold        = "sold"
	ReasonDeleted     = "deleted"
	ReasonPruned      = "pruned"
	ReasonTierSurplus = "tier_surplus"
)

// Source platforms
const (
	SourceKleinanzeigen = "kleinanzeigen"
	SourceBuycycle      = "buycycle"
	SourceBikeflip      = "bikeflip"
)
