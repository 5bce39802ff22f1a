package workers

import (
	"context"
	"fmt"
	"log"

	"velomarkt/models"
	"velomarkt/services"
	"velomarkt/storage"
)

// HealthStore reports the aggregate catalog health figures.
type HealthStore interface {
	GetCatalogHealth(ctx context.Context) (*storage.CatalogHealth, error)
}

// RebalanceWorker runs the daily composition pass: top up tier deficits,
// prune budget surplus, drain the refill queue, and log catalog health.
type RebalanceWorker struct {
	store       HealthStore
	ops         JobRecorder
	composition *services.CompositionManager
	refill      *services.RefillService
}

func NewRebalanceWorker(store HealthStore, ops JobRecorder, composition *services.CompositionManager, refill *services.RefillService) *RebalanceWorker {
	return &RebalanceWorker{
		store:       store,
		ops:         ops,
		composition: composition,
		refill:      refill,
	}
}

func (w *RebalanceWorker) Name() string { return "rebalance" }

func (w *RebalanceWorker) Run(ctx context.Context) error {
	runID, err := w.ops.StartJobRun(w.Name())
	if err != nil {
		log.Printf("[rebalance] could not record job run: %v", err)
	}

	result, runErr := w.composition.Rebalance(ctx)

	drained := 0
	if runErr == nil {
		drained, err = w.refill.ProcessPending(ctx)
		if err != nil {
			log.Printf("[rebalance] refill drain stopped: %v", err)
		}
	}

	if health, err := w.store.GetCatalogHealth(ctx); err == nil {
		log.Printf("[rebalance] catalog health: %d active, avg margin %.0f", health.Active, health.AvgMargin)
	} else {
		log.Printf("[rebalance] health check failed: %v", err)
	}

	status := models.RunStatusCompleted
	detail := ""
	processed := 0
	if result != nil {
		processed = result.Enqueued + result.Pruned
		detail = fmt.Sprintf("enqueued %d refills, pruned %d, drained %d", result.Enqueued, result.Pruned, drained)
	}
	if runErr != nil {
		status = models.RunStatusFailed
		detail = runErr.Error()
	}
	if runID > 0 {
		if err := w.ops.FinishJobRun(runID, status, processed, 0, detail); err != nil {
			log.Printf("[rebalance] could not finish job run: %v", err)
		}
	}

	if result != nil {
		for tier, deficit := range result.Deficits {
			log.Printf("[rebalance] tier %d short by %d", tier, deficit)
		}
	}
	return runErr
}
