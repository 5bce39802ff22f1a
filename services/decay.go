package services

import (
	"math"
	"time"

	"velomarkt/models"
)

// LookbackDays is the interaction-event window the ranking model reads.
const LookbackDays = 30

// Half-lives, in days, per event family. Purchases decay slowest: an order a
// month ago still says more about a listing than a view yesterday.
const (
	halfLifeViews     = 7
	halfLifeClicks    = 14
	halfLifePurchases = 30
)

func halfLifeFor(t models.EventType) float64 {
	switch t {
	case models.EventImpression:
		return halfLifeViews
	case models.EventOrder, models.EventReturn:
		return halfLifePurchases
	default:
		// detail_open, favorite, add_to_cart
		return halfLifeClicks
	}
}

// DecayedWeight sums the exponentially discounted contributions of all events
// of the given type. Each event contributes value * exp(-ln2/halfLife * age);
// old events vanish asymptotically instead of being cut off. No matching
// events yields 0, never an error.
func DecayedWeight(events []models.InteractionEvent, eventType models.EventType, now time.Time) float64 {
	lambda := math.Ln2 / halfLifeFor(eventType)

	var sum float64
	for _, e := range events {
		if e.Type != eventType {
			continue
		}
		ageDays := now.Sub(e.CreatedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		value := e.Value
		if value == 0 {
			value = 1
		}
		sum += value * math.Exp(-lambda*ageDays)
	}
	return sum
}

// DecayedCounts is the aggregated view the ranking model consumes, one pass
// over the event slice per type.
type DecayedCounts struct {
	Views     float64
	Clicks    float64
	Carts     float64
	Favorites float64
	Orders    float64
	Returns   float64
}

func AggregateDecayed(events []models.InteractionEvent, now time.Time) DecayedCounts {
	return DecayedCounts{
		Views:     DecayedWeight(events, models.EventImpression, now),
		Clicks:    DecayedWeight(events, models.EventDetailOpen, now),
		Carts:     DecayedWeight(events, models.EventAddToCart, now),
		Favorites: DecayedWeight(events, models.EventFavorite, now),
		Orders:    DecayedWeight(events, models.EventOrder, now),
		Returns:   DecayedWeight(events, models.EventReturn, now),
	}
}
