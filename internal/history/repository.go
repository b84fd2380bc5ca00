// Package history journals what the dashboard has observed: every
// assessment seen on the push channel or in a snapshot, and every
// refresh run with its outcome. Rows carry an expiration timestamp and
// are pruned by a daily cleanup job.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/triagewatch/triagewatch/internal/database"
	"github.com/triagewatch/triagewatch/internal/domain"
)

// Retention windows, added to time.Now() when storing to calculate
// expires_at.
const (
	TTLAssessments = 30 * 24 * time.Hour // observed assessments
	TTLRefreshRuns = 7 * 24 * time.Hour  // refresh outcomes, ops-debugging only
)

const schema = `
CREATE TABLE IF NOT EXISTS assessments (
	id          TEXT PRIMARY KEY,
	observed_at INTEGER NOT NULL,
	risk_level  INTEGER NOT NULL,
	data        TEXT NOT NULL,
	expires_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessments_observed ON assessments(observed_at);

CREATE TABLE IF NOT EXISTS refresh_runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  INTEGER NOT NULL,
	reason      TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	expires_at  INTEGER NOT NULL
);
`

// AllTables lists the journal tables for cleanup operations.
var AllTables = []string{"assessments", "refresh_runs"}

// RefreshRun is one recorded refresh attempt.
type RefreshRun struct {
	StartedAt time.Time `json:"started_at"`
	Reason    string    `json:"reason"`  // "startup", "periodic", "reconnect", "manual"
	Outcome   string    `json:"outcome"` // "ok", "partial", "failed"
}

// Repository provides journal operations over the history database.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a history repository and ensures the schema exists.
func NewRepository(db *sql.DB) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// RecordAssessment journals an observed assessment. Re-observing the same
// id (push event followed by the next snapshot) upserts rather than
// duplicating.
func (r *Repository) RecordAssessment(rec domain.AssessmentRecord) error {
	return insertAssessment(r.db, rec)
}

// RecordAssessments journals a batch of assessments in one transaction,
// so a snapshot's records land in the journal all-or-nothing.
func (r *Repository) RecordAssessments(records []domain.AssessmentRecord) error {
	if len(records) == 0 {
		return nil
	}
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, rec := range records {
			if err := insertAssessment(tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertAssessment(ex execer, rec domain.AssessmentRecord) error {
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	// observed_at keeps nanosecond resolution so back-to-back observations
	// preserve their order
	now := time.Now()
	_, err = ex.Exec(
		"INSERT OR REPLACE INTO assessments (id, observed_at, risk_level, data, expires_at) VALUES (?, ?, ?, ?, ?)",
		rec.ID, now.UnixNano(), int(rec.Prediction.RiskLevel), string(jsonData), now.Add(TTLAssessments).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to journal assessment %s: %w", rec.ID, err)
	}
	return nil
}

// RecordRefresh journals a completed refresh run.
func (r *Repository) RecordRefresh(run RefreshRun) error {
	_, err := r.db.Exec(
		"INSERT INTO refresh_runs (started_at, reason, outcome, expires_at) VALUES (?, ?, ?, ?)",
		run.StartedAt.Unix(), run.Reason, run.Outcome, time.Now().Add(TTLRefreshRuns).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to journal refresh run: %w", err)
	}
	return nil
}

// RecentAssessments returns the most recently observed assessments,
// newest first.
func (r *Repository) RecentAssessments(limit int) ([]domain.AssessmentRecord, error) {
	rows, err := r.db.Query(
		"SELECT data FROM assessments ORDER BY observed_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var records []domain.AssessmentRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		var rec domain.AssessmentRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal assessment: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentRefreshes returns the most recent refresh runs, newest first.
func (r *Repository) RecentRefreshes(limit int) ([]RefreshRun, error) {
	rows, err := r.db.Query(
		"SELECT started_at, reason, outcome FROM refresh_runs ORDER BY started_at DESC, id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh runs: %w", err)
	}
	defer rows.Close()

	var runs []RefreshRun
	for rows.Next() {
		var startedAt int64
		var run RefreshRun
		if err := rows.Scan(&startedAt, &run.Reason, &run.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan refresh run: %w", err)
		}
		run.StartedAt = time.Unix(startedAt, 0)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteAllExpired removes expired rows from every journal table and
// returns per-table deletion counts.
func (r *Repository) DeleteAllExpired() (map[string]int64, error) {
	now := time.Now().Unix()
	results := make(map[string]int64, len(AllTables))

	for _, table := range AllTables {
		res, err := r.db.Exec(
			fmt.Sprintf("DELETE FROM %s WHERE expires_at <= ?", table), now,
		)
		if err != nil {
			return results, fmt.Errorf("failed to delete expired rows from %s: %w", table, err)
		}
		count, _ := res.RowsAffected()
		results[table] = count
	}
	return results, nil
}
