package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"velomarkt/config"
	"velomarkt/httputil"
	"velomarkt/logging"
	"velomarkt/scheduler"
	"velomarkt/services"
	"velomarkt/storage"
	"velomarkt/verifier"
	"velomarkt/workers"
)

var (
	rankNow      = flag.Bool("rank", false, "Run ranking recompute once and exit")
	freshnessNow = flag.Bool("freshness", false, "Run freshness check once and exit")
	rebalanceNow = flag.Bool("rebalance", false, "Run composition rebalance once and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting velomarkt...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Loaded %d tier targets", len(cfg.Targets))

	clients := httputil.NewClients(&cfg.Proxy)
	if cfg.Proxy.URL != "" {
		log.Printf("Proxy configured")
	}

	ctx := context.Background()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))

	if err := pgStore.Migrate(ctx); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	opsStore, err := storage.NewSQLiteStore(cfg.OpsDBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer opsStore.Close()
	log.Printf("Operational database: %s", cfg.OpsDBPath)

	// Services
	ranking := services.NewRankingService(pgStore)
	valuation := services.NewValuationService(pgStore)
	pricing := services.NewPriceOptimizer(pgStore)
	freshness := services.NewFreshnessScheduler(pgStore, cfg.Verifier.QueueLimit)
	composition := services.NewCompositionManager(pgStore, cfg.Targets)

	var acquisition *services.AcquisitionClient
	if cfg.Acquisition.BaseURL != "" {
		acquisition = services.NewAcquisitionClient(cfg.Acquisition)
		log.Printf("Acquisition service: %s", cfg.Acquisition.BaseURL)
	} else {
		log.Println("No acquisition service configured, refills stay queued")
	}

	var collector services.Collector
	if acquisition != nil {
		collector = acquisition
	}
	gaps := services.NewGapAnalyzer(pgStore, cfg.Targets)
	refill := services.NewRefillService(pgStore, collector, gaps)

	log.Println("Services initialized")

	// Verifier: browser fetcher with HTTP fallback kept for environments
	// without a playwright install.
	var fetcher verifier.Fetcher
	if os.Getenv("VERIFIER_MODE") == "http" {
		fetcher = verifier.NewHTTPFetcher(clients.Scraping)
		log.Println("Verifier: HTTP fetcher")
	} else {
		pwFetcher := verifier.NewPlaywrightFetcher(cfg.Verifier.Headless, cfg.Verifier.FetchTimeout)
		defer pwFetcher.Close()
		fetcher = pwFetcher
		log.Println("Verifier: playwright fetcher")
	}
	checker := verifier.New(fetcher)

	// Workers
	rankWorker := workers.NewRankWorker(pgStore, opsStore, ranking, valuation, pricing)
	freshnessWorker := workers.NewFreshnessWorker(pgStore, opsStore, freshness, checker, refill, cfg.Verifier.CheckDelay)
	rebalanceWorker := workers.NewRebalanceWorker(pgStore, opsStore, composition, refill)

	rankRunner := scheduler.NewRunner(rankWorker)
	freshnessRunner := scheduler.NewRunner(freshnessWorker)
	rebalanceRunner := scheduler.NewRunner(rebalanceWorker)
	repriceRunner := scheduler.NewRunner(workers.NewRepriceJob(rankWorker))

	// One-shot commands
	switch {
	case *rankNow:
		if err := rankRunner.RunBlocking(ctx); err != nil {
			log.Fatalf("Ranking failed: %v", err)
		}
		return
	case *freshnessNow:
		if err := freshnessRunner.RunBlocking(ctx); err != nil {
			log.Fatalf("Freshness check failed: %v", err)
		}
		return
	case *rebalanceNow:
		if err := rebalanceRunner.RunBlocking(ctx); err != nil {
			log.Fatalf("Rebalance failed: %v", err)
		}
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, opsStore, rankRunner, freshnessRunner, rebalanceRunner, repriceRunner)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString masks the password in a connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
