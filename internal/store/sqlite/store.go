// Package sqlite persists assessment history, healing attempts, breaker
// snapshots, and annotations in a WAL-mode SQLite database so the CLI can
// report on an engine that is no longer running.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vigil/internal/health"
)

type Store struct {
	db *sql.DB
}

// Open creates or opens the state database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set state db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set state db busy timeout: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize state schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS assessments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	team TEXT NOT NULL,
	at TEXT NOT NULL,
	composite REAL NOT NULL,
	status TEXT NOT NULL,
	metrics_score REAL,
	logs_score REAL,
	healthchecks_score REAL
)`,
	`CREATE INDEX IF NOT EXISTS idx_assessments_team_at ON assessments(team, at)`,
	`CREATE TABLE IF NOT EXISTS healing_attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	team TEXT NOT NULL,
	at TEXT NOT NULL,
	action TEXT NOT NULL,
	level TEXT NOT NULL,
	outcome TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS breaker_states (
	team TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	consecutive_failures INTEGER NOT NULL,
	opened_at TEXT,
	updated_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS annotations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at TEXT NOT NULL,
	text TEXT NOT NULL,
	tags TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS daemon_heartbeat (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	at TEXT NOT NULL
)`,
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveAssessment appends one assessment row.
func (s *Store) SaveAssessment(a health.Assessment) error {
	var metrics, logs, probes any
	if v, ok := a.SubScores[health.SourceMetrics]; ok {
		metrics = v
	}
	if v, ok := a.SubScores[health.SourceLogs]; ok {
		logs = v
	}
	if v, ok := a.SubScores[health.SourceHealthChecks]; ok {
		probes = v
	}

	_, err := s.db.Exec(
		`INSERT INTO assessments (team, at, composite, status, metrics_score, logs_score, healthchecks_score)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.TeamID, a.Timestamp.UTC().Format(time.RFC3339Nano), a.Composite, a.Status.String(), metrics, logs, probes,
	)
	if err != nil {
		return fmt.Errorf("insert assessment for %q: %w", a.TeamID, err)
	}
	return nil
}

// ListAssessments returns up to limit most recent assessments for a team,
// oldest first.
func (s *Store) ListAssessments(teamID string, limit int) ([]health.Assessment, error) {
	rows, err := s.db.Query(
		`SELECT at, composite, status, metrics_score, logs_score, healthchecks_score
		 FROM assessments WHERE team = ? ORDER BY at DESC LIMIT ?`, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("list assessments for %q: %w", teamID, err)
	}
	defer rows.Close()

	out := make([]health.Assessment, 0, limit)
	for rows.Next() {
		var (
			at                    string
			composite             float64
			status                string
			metrics, logs, probes sql.NullFloat64
		)
		if err := rows.Scan(&at, &composite, &status, &metrics, &logs, &probes); err != nil {
			return nil, fmt.Errorf("scan assessment row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse assessment timestamp %q: %w", at, err)
		}
		a := health.Assessment{
			TeamID:    teamID,
			Timestamp: ts,
			Composite: composite,
			Status:    health.ParseStatus(status),
			SubScores: health.SubScores{},
		}
		if metrics.Valid {
			a.SubScores[health.SourceMetrics] = metrics.Float64
		}
		if logs.Valid {
			a.SubScores[health.SourceLogs] = logs.Float64
		}
		if probes.Valid {
			a.SubScores[health.SourceHealthChecks] = probes.Float64
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessment rows: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SaveAttempt records one healing attempt outcome.
func (s *Store) SaveAttempt(teamID string, at time.Time, action, level string, success bool) error {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	_, err := s.db.Exec(
		`INSERT INTO healing_attempts (team, at, action, level, outcome) VALUES (?, ?, ?, ?, ?)`,
		teamID, at.UTC().Format(time.RFC3339Nano), action, level, outcome,
	)
	if err != nil {
		return fmt.Errorf("insert healing attempt for %q: %w", teamID, err)
	}
	return nil
}

// Attempt is one persisted healing attempt.
type Attempt struct {
	TeamID  string
	At      time.Time
	Action  string
	Level   string
	Success bool
}

// ListAttempts returns up to limit most recent attempts for a team,
// newest first.
func (s *Store) ListAttempts(teamID string, limit int) ([]Attempt, error) {
	rows, err := s.db.Query(
		`SELECT at, action, level, outcome FROM healing_attempts
		 WHERE team = ? ORDER BY at DESC LIMIT ?`, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("list healing attempts for %q: %w", teamID, err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var at, action, level, outcome string
		if err := rows.Scan(&at, &action, &level, &outcome); err != nil {
			return nil, fmt.Errorf("scan healing attempt row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse attempt timestamp %q: %w", at, err)
		}
		out = append(out, Attempt{TeamID: teamID, At: ts, Action: action, Level: level, Success: outcome == "success"})
	}
	return out, rows.Err()
}

// SaveBreakerState upserts the latest breaker snapshot for a team.
func (s *Store) SaveBreakerState(teamID, state string, consecutiveFailures int, openedAt time.Time) error {
	var opened any
	if !openedAt.IsZero() {
		opened = openedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.Exec(
		`INSERT INTO breaker_states (team, state, consecutive_failures, opened_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(team) DO UPDATE SET
		 state = excluded.state,
		 consecutive_failures = excluded.consecutive_failures,
		 opened_at = excluded.opened_at,
		 updated_at = excluded.updated_at`,
		teamID, state, consecutiveFailures, opened, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert breaker state for %q: %w", teamID, err)
	}
	return nil
}

// BreakerState is one persisted breaker snapshot.
type BreakerState struct {
	TeamID              string
	State               string
	ConsecutiveFailures int
	OpenedAt            time.Time
	UpdatedAt           time.Time
}

// ListBreakerStates returns the latest snapshot for every team.
func (s *Store) ListBreakerStates() ([]BreakerState, error) {
	rows, err := s.db.Query(
		`SELECT team, state, consecutive_failures, opened_at, updated_at FROM breaker_states ORDER BY team`)
	if err != nil {
		return nil, fmt.Errorf("list breaker states: %w", err)
	}
	defer rows.Close()

	var out []BreakerState
	for rows.Next() {
		var (
			bs       BreakerState
			opened   sql.NullString
			updated  string
			failures int
		)
		if err := rows.Scan(&bs.TeamID, &bs.State, &failures, &opened, &updated); err != nil {
			return nil, fmt.Errorf("scan breaker state row: %w", err)
		}
		bs.ConsecutiveFailures = failures
		if opened.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, opened.String); err == nil {
				bs.OpenedAt = ts
			}
		}
		if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			bs.UpdatedAt = ts
		}
		out = append(out, bs)
	}
	return out, rows.Err()
}

// SaveAnnotation appends one annotation.
func (s *Store) SaveAnnotation(at time.Time, text string, tags []string) error {
	_, err := s.db.Exec(
		`INSERT INTO annotations (at, text, tags) VALUES (?, ?, ?)`,
		at.UTC().Format(time.RFC3339Nano), text, strings.Join(tags, ","),
	)
	if err != nil {
		return fmt.Errorf("insert annotation: %w", err)
	}
	return nil
}

// SaveHeartbeat marks the monitor daemon alive at t. One row is kept;
// one-shot commands use it to tell whether a daemon owns remediation.
func (s *Store) SaveHeartbeat(at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO daemon_heartbeat (id, at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET at = excluded.at`,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert heartbeat: %w", err)
	}
	return nil
}

// LastHeartbeat returns the most recent daemon liveness mark, or false
// when no daemon has ever written one.
func (s *Store) LastHeartbeat() (time.Time, bool, error) {
	var at string
	err := s.db.QueryRow(`SELECT at FROM daemon_heartbeat WHERE id = 1`).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query heartbeat: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse heartbeat time: %w", err)
	}
	return ts, true, nil
}
