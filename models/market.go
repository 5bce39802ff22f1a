package models

import "time"

// MarketSale is one observed comparable sale on an external platform.
// Append-only input to the valuation engine.
type MarketSale struct {
	ID           int64     `json:"id" db:"id"`
	Brand        string    `json:"brand" db:"brand"`
	Model        string    `json:"model" db:"model"`
	Year         *int      `json:"year" db:"year"`
	Material     string    `json:"material" db:"material"`
	Price        float64   `json:"price" db:"price"`
	QualityScore int       `json:"quality_score" db:"quality_score"` // 0-100 data quality of the record
	Source       string    `json:"source" db:"source"`
	ObservedAt   time.Time `json:"observed_at" db:"observed_at"`
}

// FairValue is a confidence-qualified market value estimate.
type FairValue struct {
	Value      float64 `json:"value"`
	SampleSize int     `json:"sample_size"`
	Confidence float64 `json:"confidence"` // 0..1, monotone in sample size
	Fallback   bool    `json:"fallback"`   // true when no comparables existed
}

// PriceRecommendation is the optimizer's output for one listing.
type PriceRecommendation struct {
	OptimalPrice float64 `json:"optimal_price"`
	FairValue    float64 `json:"fair_value"`
	Margin       float64 `json:"margin"`     // optimal - acquisition cost - overhead
	MarkupPct    float64 `json:"markup_pct"` // vs fair value
}
