package db

import (
	"context"
	"fmt"

	"github.com/banshee-data/tagpose/internal/pipeline"
	"github.com/banshee-data/tagpose/internal/tagpose"
)

// AllTags selects every tag in Observations.
const AllTags = -1

// DefaultObservationLimit caps Observations when limit <= 0.
const DefaultObservationLimit = 1000

// ObservationRow is one stored relative observation.
type ObservationRow struct {
	SessionID string  `json:"session_id"`
	FrameSeq  uint64  `json:"frame_seq"`
	FrameUnix float64 `json:"frame_unix"`
	TagID     int     `json:"tag_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Distance  float64 `json:"distance"`
}

// RecordFrame stores every finite relative observation of report in one
// transaction and returns how many rows were written. Non-finite
// observations are skipped; sqlite cannot hold NaN.
func (db *DB) RecordFrame(ctx context.Context, sessionID string, report pipeline.FrameReport) (int, error) {
	if len(report.Result.Observations) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO relative_observations (session_id, frame_seq, frame_unix, tag_id, x, y, z, distance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	frameUnix := unixSeconds(report.Timestamp)
	written := 0
	for _, o := range report.Result.Observations {
		if !o.Plausible(0) {
			continue
		}
		if _, err := stmt.ExecContext(ctx, sessionID, int64(report.Seq), frameUnix, o.ID,
			o.Position.X, o.Position.Y, o.Position.Z, o.Distance); err != nil {
			return 0, fmt.Errorf("failed to insert observation for tag %d: %w", o.ID, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit frame %d: %w", report.Seq, err)
	}
	return written, nil
}

// Observations returns the most recent rows of a session in frame order.
// tagID AllTags returns every tag. limit <= 0 uses DefaultObservationLimit.
func (db *DB) Observations(sessionID string, tagID int, limit int) ([]ObservationRow, error) {
	if limit <= 0 {
		limit = DefaultObservationLimit
	}

	query := `SELECT session_id, frame_seq, frame_unix, tag_id, x, y, z, distance
		FROM relative_observations WHERE session_id = ?`
	args := []any{sessionID}
	if tagID != AllTags {
		query += ` AND tag_id = ?`
		args = append(args, tagID)
	}
	query += ` ORDER BY frame_seq DESC, observation_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ObservationRow{}
	for rows.Next() {
		var (
			r   ObservationRow
			seq int64
		)
		if err := rows.Scan(&r.SessionID, &seq, &r.FrameUnix, &r.TagID, &r.X, &r.Y, &r.Z, &r.Distance); err != nil {
			return nil, err
		}
		r.FrameSeq = uint64(seq)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// TagIDs returns the distinct tag ids recorded for a session, ascending.
func (db *DB) TagIDs(sessionID string) ([]int, error) {
	rows, err := db.Query(
		`SELECT DISTINCT tag_id FROM relative_observations WHERE session_id = ? ORDER BY tag_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Recorder is a pipeline sink that persists every frame under one session.
type Recorder struct {
	DB        *DB
	SessionID string
}

// NewRecorder starts a session for cfg and returns a sink bound to it.
func NewRecorder(db *DB, cfg tagpose.Config, source string) (*Recorder, error) {
	id, err := db.StartSession(cfg, source)
	if err != nil {
		return nil, err
	}
	return &Recorder{DB: db, SessionID: id}, nil
}

// HandleFrame implements pipeline.Sink.
func (r *Recorder) HandleFrame(ctx context.Context, report pipeline.FrameReport) error {
	_, err := r.DB.RecordFrame(ctx, r.SessionID, report)
	return err
}

// Close ends the session.
func (r *Recorder) Close() error {
	return r.DB.EndSession(r.SessionID)
}
