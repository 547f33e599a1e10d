package db

import (
	"fmt"
	"time"

	"github.com/banshee-data/linefollow/internal/linetrack"
	"github.com/banshee-data/linefollow/internal/telemetry"
)

// RecordFrame stores one tick of a run.
func (db *DB) RecordFrame(runID string, f telemetry.Frame) error {
	_, err := db.Exec(
		`INSERT INTO frames (
			run_id, tick, t_unix_nanos,
			left_raw, left_mean, left_median, left_filtered,
			right_raw, right_mean, right_median, right_filtered,
			diff_raw, diff_mean, diff_median, diff_filtered,
			mistake, x, y, heading, forward, turn
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, int64(f.Tick), f.Time.UnixNano(),
		f.Left.Raw, f.Left.Mean, f.Left.Median, f.Left.Filtered,
		f.Right.Raw, f.Right.Mean, f.Right.Median, f.Right.Filtered,
		f.Difference.Raw, f.Difference.Mean, f.Difference.Median, f.Difference.Filtered,
		f.Mistake.String(), f.Pose.X, f.Pose.Y, f.Pose.Heading, f.Steer.Forward, f.Steer.Turn,
	)
	if err != nil {
		return fmt.Errorf("failed to record frame %d: %w", f.Tick, err)
	}
	return nil
}

// Frames returns a run's frames in tick order. A positive limit keeps only
// the last limit ticks; zero or less returns them all.
func (db *DB) Frames(runID string, limit int) ([]telemetry.Frame, error) {
	query := `SELECT tick, t_unix_nanos,
			left_raw, left_mean, left_median, left_filtered,
			right_raw, right_mean, right_median, right_filtered,
			diff_raw, diff_mean, diff_median, diff_filtered,
			mistake, x, y, heading, forward, turn
		FROM frames WHERE run_id = ?`
	args := []interface{}{runID}
	if limit > 0 {
		query = `SELECT * FROM (` + query + ` ORDER BY tick DESC LIMIT ?)`
		args = append(args, limit)
	}
	query += ` ORDER BY tick ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []telemetry.Frame
	for rows.Next() {
		var (
			f       telemetry.Frame
			tick    int64
			nanos   int64
			mistake string
		)
		if err := rows.Scan(
			&tick, &nanos,
			&f.Left.Raw, &f.Left.Mean, &f.Left.Median, &f.Left.Filtered,
			&f.Right.Raw, &f.Right.Mean, &f.Right.Median, &f.Right.Filtered,
			&f.Difference.Raw, &f.Difference.Mean, &f.Difference.Median, &f.Difference.Filtered,
			&mistake, &f.Pose.X, &f.Pose.Y, &f.Pose.Heading, &f.Steer.Forward, &f.Steer.Turn,
		); err != nil {
			return nil, err
		}
		f.Tick = uint64(tick)
		f.Time = time.Unix(0, nanos)
		if f.Mistake, err = linetrack.ParseMistake(mistake); err != nil {
			return nil, fmt.Errorf("frame %d: %w", tick, err)
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// FrameRecorder stores every reported frame under one run.
type FrameRecorder struct {
	db    *DB
	runID string
}

// NewFrameRecorder returns a telemetry.Reporter writing to runID.
func (db *DB) NewFrameRecorder(runID string) *FrameRecorder {
	return &FrameRecorder{db: db, runID: runID}
}

// RunID returns the run frames are stored under.
func (r *FrameRecorder) RunID() string { return r.runID }

func (r *FrameRecorder) Report(f telemetry.Frame) error {
	return r.db.RecordFrame(r.runID, f)
}

var _ telemetry.Reporter = (*FrameRecorder)(nil)
