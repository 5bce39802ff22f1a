package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"velomarkt/models"
	"velomarkt/services"
	"velomarkt/verifier"
)

// ListingLifecycleStore is the slice of the domain store the freshness pass
// mutates. An unknown verification outcome must touch neither method.
type ListingLifecycleStore interface {
	DeactivateListing(ctx context.Context, id uuid.UUID, reason string) error
	TouchLastVerified(ctx context.Context, id uuid.UUID) error
}

// FreshnessWorker walks the due-check queue sequentially, verifies each
// listing against its source platform and removes stock that is gone.
type FreshnessWorker struct {
	store      ListingLifecycleStore
	ops        JobRecorder
	scheduler  *services.FreshnessScheduler
	verifier   *verifier.Verifier
	refill     *services.RefillService
	checkDelay time.Duration
}

func NewFreshnessWorker(store ListingLifecycleStore, ops JobRecorder, scheduler *services.FreshnessScheduler, v *verifier.Verifier, refill *services.RefillService, checkDelay time.Duration) *FreshnessWorker {
	return &FreshnessWorker{
		store:      store,
		ops:        ops,
		scheduler:  scheduler,
		verifier:   v,
		refill:     refill,
		checkDelay: checkDelay,
	}
}

func (w *FreshnessWorker) Name() string { return "freshness" }

func (w *FreshnessWorker) Run(ctx context.Context) error {
	runID, err := w.ops.StartJobRun(w.Name())
	if err != nil {
		log.Printf("[freshness] could not record job run: %v", err)
	}

	due, err := w.scheduler.DueListings(ctx)
	if err != nil {
		if runID > 0 {
			w.ops.FinishJobRun(runID, models.RunStatusFailed, 0, 0, err.Error())
		}
		return fmt.Errorf("build check queue: %w", err)
	}
	log.Printf("[freshness] %d listings due for verification", len(due))

	removed, verified, failed := 0, 0, 0
	for i, c := range due {
		if err := ctx.Err(); err != nil {
			break
		}
		l := c.Listing

		status := w.verifier.Check(ctx, &l)
		switch status {
		case models.StatusSold, models.StatusDeleted:
			if err := w.store.DeactivateListing(ctx, l.ID, string(status)); err != nil {
				log.Printf("[freshness] deactivate %s %s failed: %v", l.Brand, l.Model, err)
				failed++
				break
			}
			removed++
			log.Printf("[freshness] removed %s %s (%s)", l.Brand, l.Model, status)

			reason := models.RefillReasonSold
			if status == models.StatusDeleted {
				reason = models.RefillReasonDeleted
			}
			if err := w.refill.OnListingGone(ctx, &l, reason); err != nil {
				log.Printf("[freshness] refill for %s %s failed: %v", l.Brand, l.Model, err)
			}

		case models.StatusAvailable:
			if err := w.store.TouchLastVerified(ctx, l.ID); err != nil {
				log.Printf("[freshness] touch %s %s failed: %v", l.Brand, l.Model, err)
				failed++
				break
			}
			verified++

		default:
			// Unknown: leave the listing alone, it stays near the head of
			// the queue for the next pass.
			log.Printf("[freshness] %s %s inconclusive, skipping", l.Brand, l.Model)
		}

		if i < len(due)-1 {
			select {
			case <-time.After(w.checkDelay):
			case <-ctx.Done():
			}
		}
	}

	if runID > 0 {
		status := models.RunStatusCompleted
		if ctx.Err() != nil {
			status = models.RunStatusFailed
		}
		detail := fmt.Sprintf("verified %d, removed %d", verified, removed)
		if err := w.ops.FinishJobRun(runID, status, verified+removed, failed, detail); err != nil {
			log.Printf("[freshness] could not finish job run: %v", err)
		}
	}

	log.Printf("[freshness] done: %d still available, %d removed", verified, removed)
	return ctx.Err()
}
