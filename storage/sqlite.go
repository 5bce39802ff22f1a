package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"velomarkt/models"
)

// SQLiteStore holds operational data: the admin command queue and job-run
// history. Domain data lives in Postgres.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS job_runs (
		id INTEGER PRIMARY KEY,
		job TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		items_processed INTEGER DEFAULT 0,
		items_failed INTEGER DEFAULT 0,
		detail TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_runs_job ON job_runs(job, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, COALESCE(params, '{}'), created_at
		FROM commands
		WHERE processed_at IS NULL
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var c models.Command
		if err := rows.Scan(&c.ID, &c.Command, &c.Params, &c.CreatedAt); err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params []byte) error {
	_, err := s.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`, cmd, params)
	return err
}

// =============================================================================
// Job runs
// =============================================================================

func (s *SQLiteStore) StartJobRun(job string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO job_runs (job, started_at, status) VALUES (?, ?, ?)`,
		job, time.Now(), models.RunStatusRunning)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) FinishJobRun(id int64, status models.RunStatus, processed, failed int, detail string) error {
	_, err := s.db.Exec(`
		UPDATE job_runs
		SET finished_at = ?, status = ?, items_processed = ?, items_failed = ?, detail = ?
		WHERE id = ?`,
		time.Now(), status, processed, failed, detail, id)
	return err
}

func (s *SQLiteStore) RecentJobRuns(job string, limit int) ([]models.JobRun, error) {
	rows, err := s.db.Query(`
		SELECT id, job, started_at, finished_at, status, items_processed, items_failed, detail
		FROM job_runs
		WHERE job = ?
		ORDER BY started_at DESC
		LIMIT ?`, job, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.JobRun
	for rows.Next() {
		var r models.JobRun
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Job, &r.StartedAt, &finished, &r.Status,
			&r.ItemsProcessed, &r.ItemsFailed, &r.Detail); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
