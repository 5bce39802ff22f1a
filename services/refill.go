package services

import (
	"context"
	"fmt"
	"log"

	"velomarkt/config"
	"velomarkt/models"
)

const refillBatchSize = 10

// Collector is the slice of the acquisition client the refill service needs.
type Collector interface {
	DeepCollect(ctx context.Context, req DeepCollectRequest) (*DeepCollectResponse, error)
}

// GapReporter supplies the deficit report that targets a collect request.
type GapReporter interface {
	Analyze(ctx context.Context, brand, model string) (*GapReport, error)
}

type RefillStore interface {
	EnqueueRefill(ctx context.Context, d *models.RefillDirective) error
	PendingRefills(ctx context.Context, limit int) ([]models.RefillDirective, error)
	MarkRefillProcessed(ctx context.Context, id int64) error
}

// RefillService turns listing departures into sourcing work. Every departure
// is queued; premium departures additionally trigger an immediate collect so
// the most profitable stock is replaced first.
type RefillService struct {
	store     RefillStore
	collector Collector
	gaps      GapReporter
}

func NewRefillService(store RefillStore, collector Collector, gaps GapReporter) *RefillService {
	return &RefillService{store: store, collector: collector, gaps: gaps}
}

// OnListingGone enqueues a refill directive for the departed listing. For
// premium-tier listings the collect is also fired synchronously; a collect
// failure is logged and swallowed, the directive stays queued either way.
func (s *RefillService) OnListingGone(ctx context.Context, l *models.Listing, reason string) error {
	d := &models.RefillDirective{
		Brand:  l.Brand,
		Model:  l.Model,
		Tier:   l.Tier,
		Reason: reason,
	}
	if err := s.store.EnqueueRefill(ctx, d); err != nil {
		return fmt.Errorf("enqueue refill: %w", err)
	}

	if l.Tier == models.TierPremium && s.collector != nil {
		req := s.collectRequest(ctx, l.Brand, l.Model, l.Tier, reason)
		if _, err := s.collector.DeepCollect(ctx, req); err != nil {
			log.Printf("[refill] immediate collect for %s %s failed: %v", l.Brand, l.Model, err)
		}
	}
	return nil
}

// ProcessPending drains a batch of queued directives through the collector.
// Directives whose collect fails stay pending for the next pass.
func (s *RefillService) ProcessPending(ctx context.Context) (int, error) {
	if s.collector == nil {
		return 0, nil
	}
	pending, err := s.store.PendingRefills(ctx, refillBatchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending refills: %w", err)
	}

	processed := 0
	for _, d := range pending {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		req := s.collectRequest(ctx, d.Brand, d.Model, d.Tier, d.Reason)
		if _, err := s.collector.DeepCollect(ctx, req); err != nil {
			log.Printf("[refill] collect for %s %s failed: %v", d.Brand, d.Model, err)
			continue
		}
		if err := s.store.MarkRefillProcessed(ctx, d.ID); err != nil {
			log.Printf("[refill] mark processed %d failed: %v", d.ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

// collectRequest builds the sourcing request, targeted by the model's gap
// report: the deficit sizes and under-filled price brackets tell the
// acquisition pipeline exactly what to look for. An unavailable report
// degrades to an untargeted request rather than blocking the collect.
func (s *RefillService) collectRequest(ctx context.Context, brand, model string, tier int, reason string) DeepCollectRequest {
	req := DeepCollectRequest{
		Brand:  brand,
		Model:  model,
		Tier:   tier,
		Reason: reason,
	}
	if s.gaps == nil || brand == "" {
		return req
	}

	report, err := s.gaps.Analyze(ctx, brand, model)
	if err != nil {
		log.Printf("[refill] gap report for %s %s failed: %v", brand, model, err)
		return req
	}
	for _, g := range report.SizeGaps {
		req.Sizes = append(req.Sizes, g.Size)
	}
	for _, g := range report.PriceGaps {
		req.PriceBrackets = append(req.PriceBrackets, config.PriceBracket{
			Min:    g.Min,
			Max:    g.Max,
			Target: g.Deficit,
		})
	}
	return req
}
