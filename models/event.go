package models

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventImpression EventType = "impression"
	EventDetailOpen EventType = "detail_open"
	EventAddToCart  EventType = "add_to_cart"
	EventFavorite   EventType = "favorite"
	EventOrder      EventType = "order"
	EventReturn     EventType = "return"
)

// InteractionEvent is one raw storefront interaction. Append-only; the decay
// aggregator reads them inside a 30-day lookback window and never mutates.
type InteractionEvent struct {
	ID        int64      `json:"id" db:"id"`
	ListingID *uuid.UUID `json:"listing_id" db:"listing_id"` // nil for session-level events
	Type      EventType  `json:"event_type" db:"event_type"`
	Value     float64    `json:"value" db:"value"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// AvailabilityStatus is the verifier's classification of a source page.
type AvailabilityStatus string

const (
	StatusAvailable AvailabilityStatus = "available"
	StatusSold      AvailabilityStatus = "sold"
	StatusDeleted   AvailabilityStatus = "deleted"
	StatusUnknown   AvailabilityStatus = "unknown"
)
