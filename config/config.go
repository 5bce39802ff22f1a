package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL string
	OpsDBPath   string
	LogLevel    string

	Proxy       ProxyConfig
	Acquisition AcquisitionConfig
	Jobs        JobsConfig
	Verifier    VerifierConfig

	Targets TargetSet
}

type ProxyConfig struct {
	URL string
}

type AcquisitionConfig struct {
	BaseURL string
	APIKey  string
}

type JobsConfig struct {
	RankingCron   string
	FreshnessCron string
	RebalanceCron string
}

type VerifierConfig struct {
	CheckDelay   time.Duration
	FetchTimeout time.Duration
	QueueLimit   int
	Headless     bool
}

// TargetComposition is the per-tier assortment template: how many listings a
// brand/model should carry, split by size and price bracket, and how old a
// listing may get before it counts against freshness.
type TargetComposition struct {
	Tier          int            `yaml:"tier"`
	TotalCount    int            `yaml:"total_count"`
	Sizes         map[string]int `yaml:"sizes"`
	PriceBrackets []PriceBracket `yaml:"price_brackets"`
	MaxAgeDays    int            `yaml:"max_age_days"`
}

type PriceBracket struct {
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Target int     `yaml:"target"`
}

// TargetSet holds the templates keyed by tier.
type TargetSet map[int]TargetComposition

// ForTier returns the template for a tier. Unknown tiers fall back to the
// budget template rather than failing the analysis.
func (ts TargetSet) ForTier(tier int) TargetComposition {
	if t, ok := ts[tier]; ok {
		return t
	}
	return ts[3]
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		OpsDBPath:   getEnv("OPS_DB_PATH", "velomarkt.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Acquisition: AcquisitionConfig{
			BaseURL: os.Getenv("ACQUISITION_URL"),
			APIKey:  os.Getenv("ACQUISITION_API_KEY"),
		},
		Jobs: JobsConfig{
			RankingCron:   getEnv("RANKING_CRON", "0 * * * *"),    // hourly
			FreshnessCron: getEnv("FRESHNESS_CRON", "30 5 * * *"), // daily
			RebalanceCron: getEnv("REBALANCE_CRON", "0 6 * * *"),
		},
		Verifier: VerifierConfig{
			CheckDelay:   time.Duration(getEnvInt("CHECK_DELAY_MS", 2000)) * time.Millisecond,
			FetchTimeout: time.Duration(getEnvInt("FETCH_TIMEOUT_MS", 15000)) * time.Millisecond,
			QueueLimit:   getEnvInt("FRESHNESS_QUEUE_LIMIT", 20),
			Headless:     getEnv("VERIFIER_HEADLESS", "true") == "true",
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	targets, err := loadTargets(getEnv("TARGETS_PATH", "config/targets.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Targets = targets

	return cfg, nil
}

func loadTargets(path string) (TargetSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultTargets(), nil
		}
		return nil, fmt.Errorf("read targets: %w", err)
	}

	var raw struct {
		Tiers []TargetComposition `yaml:"tiers"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}

	ts := make(TargetSet, len(raw.Tiers))
	for _, t := range raw.Tiers {
		ts[t.Tier] = t
	}
	if _, ok := ts[3]; !ok {
		return nil, fmt.Errorf("targets file must define the budget tier (3)")
	}
	return ts, nil
}

// DefaultTargets mirrors config/targets.yaml and is used when the file is
// absent (tests, fresh checkouts).
func DefaultTargets() TargetSet {
	return TargetSet{
		1: {
			Tier:       1,
			TotalCount: 15,
			Sizes:      map[string]int{"S": 2, "M": 5, "L": 5, "XL": 3},
			PriceBrackets: []PriceBracket{
				{Min: 1500, Max: 2500, Target: 5},
				{Min: 2500, Max: 4000, Target: 7},
				{Min: 4000, Max: 6000, Target: 3},
			},
			MaxAgeDays: 45,
		},
		2: {
			Tier:       2,
			TotalCount: 10,
			Sizes:      map[string]int{"S": 1, "M": 4, "L": 4, "XL": 1},
			PriceBrackets: []PriceBracket{
				{Min: 800, Max: 1500, Target: 4},
				{Min: 1500, Max: 2500, Target: 4},
				{Min: 2500, Max: 3500, Target: 2},
			},
			MaxAgeDays: 60,
		},
		3: {
			Tier:       3,
			TotalCount: 8,
			Sizes:      map[string]int{"S": 1, "M": 3, "L": 3, "XL": 1},
			PriceBrackets: []PriceBracket{
				{Min: 400, Max: 1000, Target: 4},
				{Min: 1000, Max: 1800, Target: 3},
				{Min: 1800, Max: 2500, Target: 1},
			},
			MaxAgeDays: 75,
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
