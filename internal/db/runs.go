package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run describes one recorded session of the control loop.
type Run struct {
	ID         string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	Source     string          `json:"source"`
	Config     json.RawMessage `json:"config"`
	FrameCount int             `json:"frame_count"`
}

// CreateRun registers a new run and returns it. cfg is stored as JSON for
// later inspection; source names where the samples came from.
func (db *DB) CreateRun(startedAt time.Time, source string, cfg interface{}) (Run, error) {
	cfgJSON := []byte("{}")
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return Run{}, fmt.Errorf("failed to encode run config: %w", err)
		}
		cfgJSON = b
	}

	run := Run{
		ID:        uuid.NewString(),
		StartedAt: startedAt,
		Source:    source,
		Config:    cfgJSON,
	}
	_, err := db.Exec(
		`INSERT INTO runs (run_id, started_at, source, config_json) VALUES (?, ?, ?, ?)`,
		run.ID, startedAt.UnixNano(), source, string(cfgJSON),
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

const runColumns = `r.run_id, r.started_at, r.source, r.config_json,
	(SELECT COUNT(*) FROM frames f WHERE f.run_id = r.run_id)`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		run       Run
		startedAt int64
		cfg       string
	)
	if err := row.Scan(&run.ID, &startedAt, &run.Source, &cfg, &run.FrameCount); err != nil {
		return Run{}, err
	}
	run.StartedAt = time.Unix(0, startedAt)
	run.Config = json.RawMessage(cfg)
	return run, nil
}

// Runs lists runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a single run.
func (db *DB) GetRun(id string) (Run, error) {
	run, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs r WHERE r.run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// LatestRun returns the most recently started run.
func (db *DB) LatestRun() (Run, error) {
	run, err := scanRun(db.QueryRow(`SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// DeleteRun removes a run and its frames.
func (db *DB) DeleteRun(id string) error {
	res, err := db.Exec(`DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
