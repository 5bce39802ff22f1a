package verifier

import (
	"strings"

	"velomarkt/models"
)

// Classifier maps a fetched page to an availability status. One per source
// platform; the phrase lists are platform-specific and mostly German.
type Classifier interface {
	Classify(pageText string, status int) models.AvailabilityStatus
}

type kleinanzeigenClassifier struct{}

func (kleinanzeigenClassifier) Classify(text string, status int) models.AvailabilityStatus {
	deletedPhrases := []string{
		"anzeige wurde gelöscht",
		"leider nicht gefunden",
		"diese anzeige ist nicht mehr verfügbar",
	}
	for _, p := range deletedPhrases {
		if strings.Contains(text, p) {
			return models.StatusDeleted
		}
	}
	// Reserved counts as sold; the seller has committed elsewhere.
	if strings.Contains(text, "anzeige ist deaktiviert") || strings.Contains(text, "reserviert") {
		return models.StatusSold
	}
	return models.StatusAvailable
}

type buycycleClassifier struct{}

func (buycycleClassifier) Classify(text string, status int) models.AvailabilityStatus {
	if strings.Contains(text, "sold") || strings.Contains(text, "verkauft") {
		return models.StatusSold
	}
	if strings.Contains(text, "page not found") || strings.Contains(text, "404") {
		return models.StatusDeleted
	}
	return models.StatusAvailable
}

type bikeflipClassifier struct{}

func (bikeflipClassifier) Classify(text string, status int) models.AvailabilityStatus {
	if strings.Contains(text, "sold") || strings.Contains(text, "verkauft") {
		return models.StatusSold
	}
	return models.StatusAvailable
}

// genericClassifier handles sources without a dedicated phrase list. It only
// trusts unambiguous signals.
type genericClassifier struct{}

func (genericClassifier) Classify(text string, status int) models.AvailabilityStatus {
	if strings.Contains(text, "verkauft") || strings.Contains(text, "sold") {
		return models.StatusSold
	}
	if strings.Contains(text, "nicht mehr verfügbar") || strings.Contains(text, "no longer available") {
		return models.StatusDeleted
	}
	return models.StatusAvailable
}

// ClassifierFor returns the classifier for a source platform.
func ClassifierFor(source string) Classifier {
	switch source {
	case models.SourceKleinanzeigen:
		return kleinanzeigenClassifier{}
	case models.SourceBuycycle:
		return buycycleClassifier{}
	case models.SourceBikeflip:
		return bikeflipClassifier{}
	default:
		return genericClassifier{}
	}
}
