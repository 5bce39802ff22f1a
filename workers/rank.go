package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"velomarkt/models"
	"velomarkt/services"
)

// JobRecorder writes job-run history rows. Satisfied by the SQLite ops
// store; narrowed so worker tests can hand in a double.
type JobRecorder interface {
	StartJobRun(job string) (int64, error)
	FinishJobRun(id int64, status models.RunStatus, processed, failed int, detail string) error
}

// PricingStore is the slice of the domain store the price rebuild walks.
type PricingStore interface {
	ActiveListings(ctx context.Context) ([]models.Listing, error)
	UpdatePricing(ctx context.Context, id uuid.UUID, fairValue, confidence, optimalPrice float64) error
}

// RankWorker runs the hourly ranking recompute and, on demand, the full
// pricing rebuild (fair value + optimal price per active listing).
type RankWorker struct {
	store     PricingStore
	ops       JobRecorder
	ranking   *services.RankingService
	valuation *services.ValuationService
	pricing   *services.PriceOptimizer
}

func NewRankWorker(store PricingStore, ops JobRecorder, ranking *services.RankingService, valuation *services.ValuationService, pricing *services.PriceOptimizer) *RankWorker {
	return &RankWorker{
		store:     store,
		ops:       ops,
		ranking:   ranking,
		valuation: valuation,
		pricing:   pricing,
	}
}

func (w *RankWorker) Name() string { return "ranking" }

func (w *RankWorker) Run(ctx context.Context) error {
	runID, err := w.ops.StartJobRun(w.Name())
	if err != nil {
		log.Printf("[ranking] could not record job run: %v", err)
	}
	started := time.Now()

	processed, failed, runErr := w.ranking.RecomputeAll(ctx)

	status := models.RunStatusCompleted
	detail := fmt.Sprintf("recomputed %d listings in %s", processed, time.Since(started).Round(time.Millisecond))
	if runErr != nil {
		status = models.RunStatusFailed
		detail = runErr.Error()
	}
	if runID > 0 {
		if err := w.ops.FinishJobRun(runID, status, processed, failed, detail); err != nil {
			log.Printf("[ranking] could not finish job run: %v", err)
		}
	}

	log.Printf("[ranking] done: %d processed, %d failed", processed, failed)
	return runErr
}

// RebuildPrices refreshes fair value and optimal price for every active
// listing. Slow by design: one valuation query per listing.
func (w *RankWorker) RebuildPrices(ctx context.Context) error {
	runID, err := w.ops.StartJobRun("rebuild_prices")
	if err != nil {
		log.Printf("[pricing] could not record job run: %v", err)
	}

	listings, err := w.store.ActiveListings(ctx)
	if err != nil {
		if runID > 0 {
			w.ops.FinishJobRun(runID, models.RunStatusFailed, 0, 0, err.Error())
		}
		return fmt.Errorf("load active listings: %w", err)
	}

	processed, failed := 0, 0
	for i := range listings {
		l := &listings[i]
		if err := ctx.Err(); err != nil {
			break
		}

		fair, err := w.valuation.FairValue(ctx, l.Brand, l.Model, l.Year, l.Material)
		if err != nil {
			log.Printf("[pricing] fair value for %s %s failed: %v", l.Brand, l.Model, err)
			failed++
			continue
		}

		rec, err := w.pricing.Optimize(ctx, fair, l)
		if err != nil {
			log.Printf("[pricing] optimize %s %s failed: %v", l.Brand, l.Model, err)
			failed++
			continue
		}

		if err := w.store.UpdatePricing(ctx, l.ID, fair.Value, fair.Confidence, rec.OptimalPrice); err != nil {
			log.Printf("[pricing] persist %s %s failed: %v", l.Brand, l.Model, err)
			failed++
			continue
		}
		processed++
	}

	if runID > 0 {
		status := models.RunStatusCompleted
		if ctx.Err() != nil {
			status = models.RunStatusFailed
		}
		detail := fmt.Sprintf("repriced %d listings", processed)
		if err := w.ops.FinishJobRun(runID, status, processed, failed, detail); err != nil {
			log.Printf("[pricing] could not finish job run: %v", err)
		}
	}

	log.Printf("[pricing] rebuild done: %d processed, %d failed", processed, failed)
	return ctx.Err()
}

// RepriceJob exposes the price rebuild as a schedulable job so admin-triggered
// rebuilds run under the same overlap guard as the cron jobs.
type RepriceJob struct {
	worker *RankWorker
}

func NewRepriceJob(w *RankWorker) *RepriceJob {
	return &RepriceJob{worker: w}
}

func (j *RepriceJob) Name() string { return "rebuild_prices" }

func (j *RepriceJob) Run(ctx context.Context) error {
	return j.worker.RebuildPrices(ctx)
}
