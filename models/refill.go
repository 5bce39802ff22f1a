package models

import "time"

type RefillStatus string

const (
	RefillPending   RefillStatus = "pending"
	RefillProcessed RefillStatus = "processed"
)

// RefillDirective asks the acquisition pipeline to source replacements for a
// brand/model. Duplicate pending directives for the same pair are wasteful
// but harmless; the pipeline dedupes when it polls.
type RefillDirective struct {
	ID          int64        `json:"id" db:"id"`
	Brand       string       `json:"brand" db:"brand"`
	Model       string       `json:"model" db:"model"`
	Tier        int          `json:"tier" db:"tier"`
	Reason      string       `json:"reason" db:"reason"`
	Status      RefillStatus `json:"status" db:"status"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time   `json:"processed_at" db:"processed_at"`
}

// Refill reasons
const (
	RefillReasonSold        = "listing_sold"
	RefillReasonDeleted     = "listing_deleted"
	RefillReasonTierDeficit = "tier_deficit"
)
