package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/tagpose/internal/tagpose"
)

// ErrSessionNotFound is returned when a session id does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Session is one run of the tracker with a fixed estimator configuration.
type Session struct {
	ID            string   `json:"session_id"`
	StartedUnix   float64  `json:"started_unix"`
	EndedUnix     *float64 `json:"ended_unix,omitempty"`
	ReferenceID   int      `json:"reference_id"`
	TagSizeScale  float64  `json:"tag_size_scale"`
	PositionScale float64  `json:"position_scale"`
	Source        string   `json:"source"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// StartSession records a new session and returns its id.
func (db *DB) StartSession(cfg tagpose.Config, source string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, started_unix, reference_id, tag_size_scale, position_scale, source)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, unixSeconds(time.Now()), cfg.ReferenceID, cfg.TagSizeScale, cfg.Scale(), source,
	)
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(id string) error {
	res, err := db.Exec(`UPDATE sessions SET ended_unix = ? WHERE session_id = ?`, unixSeconds(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Session returns a single session by id.
func (db *DB) Session(id string) (Session, error) {
	row := db.QueryRow(
		`SELECT session_id, started_unix, ended_unix, reference_id, tag_size_scale, position_scale, source
		FROM sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, err
}

// Sessions returns up to 100 sessions, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(
		`SELECT session_id, started_unix, ended_unix, reference_id, tag_size_scale, position_scale, source
		FROM sessions ORDER BY started_unix DESC LIMIT 100`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		s     Session
		ended sql.NullFloat64
	)
	if err := row.Scan(&s.ID, &s.StartedUnix, &ended, &s.ReferenceID, &s.TagSizeScale, &s.PositionScale, &s.Source); err != nil {
		return Session{}, err
	}
	if ended.Valid {
		s.EndedUnix = &ended.Float64
	}
	return s, nil
}
