package services

import (
	"context"
	"log"

	"velomarkt/models"
)

// minSaleQuality is the floor on a comparable record's data-quality score.
const minSaleQuality = 70

// confidenceScale controls how fast confidence saturates with sample size:
// n/(n+scale). Five comparables already give 0.5.
const confidenceScale = 5.0

// brandBaseValues are the conservative fallback figures used when no
// comparable sales exist at all. Kept deliberately low so the optimizer never
// overprices on no data.
var brandBaseValues = map[string]float64{
	"Santa Cruz":  4500,
	"Pivot":       4500,
	"Specialized": 3500,
	"Trek":        3500,
	"YT":          3200,
	"Canyon":      3000,
	"Scott":       3000,
	"Giant":       2000,
	"Cube":        2000,
	"Focus":       2000,
	"Merida":      1800,
	"Ghost":       1800,
}

const defaultBaseValue = 1500

// SaleStore is the valuation engine's view of the domain store.
type SaleStore interface {
	SalesForModel(ctx context.Context, brand, model string, year *int, material string, minQuality int) ([]models.MarketSale, error)
}

type ValuationService struct {
	store SaleStore
}

func NewValuationService(store SaleStore) *ValuationService {
	return &ValuationService{store: store}
}

// FairValue estimates market value from comparable sales. The point estimate
// is the plain mean of matching prices; confidence grows with sample size.
// With zero comparables it degrades to a conservative brand default with
// confidence 0 instead of returning an error, so pricing always has a number.
func (s *ValuationService) FairValue(ctx context.Context, brand, model string, year *int, material string) (*models.FairValue, error) {
	sales, err := s.store.SalesForModel(ctx, brand, model, year, material, minSaleQuality)
	if err != nil {
		// Store errors degrade the same way data absence does.
		log.Printf("Valuation: comparable query failed for %s %s: %v", brand, model, err)
		sales = nil
	}

	if len(sales) == 0 {
		return &models.FairValue{
			Value:      fallbackValue(brand),
			SampleSize: 0,
			Confidence: 0,
			Fallback:   true,
		}, nil
	}

	var sum float64
	for _, sale := range sales {
		sum += sale.Price
	}
	n := len(sales)

	return &models.FairValue{
		Value:      sum / float64(n),
		SampleSize: n,
		Confidence: Confidence(n),
	}, nil
}

// Confidence maps sample size to [0,1), monotone increasing.
func Confidence(sampleSize int) float64 {
	n := float64(sampleSize)
	return n / (n + confidenceScale)
}

func fallbackValue(brand string) float64 {
	if v, ok := brandBaseValues[brand]; ok {
		return v
	}
	return defaultBaseValue
}
