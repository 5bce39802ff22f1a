package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"velomarkt/config"
	"velomarkt/models"
	"velomarkt/storage"
)

const commandPollInterval = 2 * time.Second

// Scheduler owns the cron entries and the admin command queue. Each job runs
// through its Runner, so a manual command landing mid-cron-run is dropped
// instead of doubling up.
type Scheduler struct {
	cfg    *config.Config
	ops    *storage.SQLiteStore
	cron   *cron.Cron
	stopCh chan struct{}

	ranking   *Runner
	freshness *Runner
	rebalance *Runner
	reprice   *Runner
}

func New(cfg *config.Config, ops *storage.SQLiteStore, ranking, freshness, rebalance, reprice *Runner) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		ops:       ops,
		cron:      cron.New(),
		stopCh:    make(chan struct{}),
		ranking:   ranking,
		freshness: freshness,
		rebalance: rebalance,
		reprice:   reprice,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	entries := []struct {
		spec   string
		runner *Runner
	}{
		{s.cfg.Jobs.RankingCron, s.ranking},
		{s.cfg.Jobs.FreshnessCron, s.freshness},
		{s.cfg.Jobs.RebalanceCron, s.rebalance},
	}
	for _, e := range entries {
		runner := e.runner
		_, err := s.cron.AddFunc(e.spec, func() {
			runner.Trigger(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression %q for %s: %w", e.spec, runner.Name(), err)
		}
		log.Printf("Scheduled %s: %s", runner.Name(), e.spec)
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(commandPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.ops.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(ctx, &cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.ops.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdRunRanking:
		s.ranking.Trigger(ctx)
	case models.CmdRunFreshness:
		s.freshness.Trigger(ctx)
	case models.CmdRunRebalance:
		s.rebalance.Trigger(ctx)
	case models.CmdRebuildPrices:
		s.reprice.Trigger(ctx)
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
	return nil
}

// Status reports which jobs are currently running.
func (s *Scheduler) Status() map[string]bool {
	return map[string]bool{
		s.ranking.Name():   s.ranking.Running(),
		s.freshness.Name(): s.freshness.Running(),
		s.rebalance.Name(): s.rebalance.Running(),
		s.reprice.Name():   s.reprice.Running(),
	}
}
