package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdRunRanking    CommandType = "run_ranking"
	CmdRunFreshness  CommandType = "run_freshness"
	CmdRunRebalance  CommandType = "run_rebalance"
	CmdRebuildPrices CommandType = "rebuild_prices"
)

// Command is an administrative "run now" request written by the web layer
// into the operational store and polled by the scheduler.
type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}
