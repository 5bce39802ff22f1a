package verifier

import (
	"context"
	"log"

	"velomarkt/models"
)

// Verifier checks whether a listing is still live on its source platform.
// Any fetch failure yields unknown: a flaky proxy or a slow page must never
// deactivate live inventory.
type Verifier struct {
	fetcher Fetcher
}

func New(fetcher Fetcher) *Verifier {
	return &Verifier{fetcher: fetcher}
}

func (v *Verifier) Check(ctx context.Context, l *models.Listing) models.AvailabilityStatus {
	if l.SourceURL == "" {
		return models.StatusUnknown
	}

	result, err := v.fetcher.Fetch(ctx, l.SourceURL)
	if err != nil {
		log.Printf("[verifier] fetch %s %s failed: %v", l.Brand, l.Model, err)
		return models.StatusUnknown
	}

	if result.Status == 404 || result.Status == 410 {
		return models.StatusDeleted
	}

	return ClassifierFor(l.Source).Classify(result.Text, result.Status)
}
