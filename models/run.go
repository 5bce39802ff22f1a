package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// JobRun records one execution of a scheduled batch job (ranking recompute,
// freshness check, rebalance) in the operational store.
type JobRun struct {
	ID             int64      `json:"id" db:"id"`
	Job            string     `json:"job" db:"job"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
	Status         RunStatus  `json:"status" db:"status"`
	ItemsProcessed int        `json:"items_processed" db:"items_processed"`
	ItemsFailed    int        `json:"items_failed" db:"items_failed"`
	Detail         string     `json:"detail" db:"detail"`
}
