package history

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/triagewatch/triagewatch/internal/domain"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(db)
	require.NoError(t, err)
	return repo
}

func TestRecordAssessment_UpsertsOnReobservation(t *testing.T) {
	repo := setupTestRepo(t)

	rec := domain.AssessmentRecord{
		ID:        "P42",
		Timestamp: time.Now(),
		Prediction: domain.Prediction{
			RiskLevel: domain.RiskHigh,
			RiskLabel: "High Risk",
		},
	}

	// Observed once on the push channel, again in the next snapshot
	require.NoError(t, repo.RecordAssessment(rec))
	require.NoError(t, repo.RecordAssessment(rec))

	records, err := repo.RecentAssessments(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "P42", records[0].ID)
	assert.Equal(t, domain.RiskHigh, records[0].Prediction.RiskLevel)
}

func TestRecordAssessments_BatchInOneTransaction(t *testing.T) {
	repo := setupTestRepo(t)

	batch := []domain.AssessmentRecord{
		{ID: "P1", Prediction: domain.Prediction{RiskLevel: domain.RiskLow}},
		{ID: "P2", Prediction: domain.Prediction{RiskLevel: domain.RiskHigh}},
		{ID: "P3", Prediction: domain.Prediction{RiskLevel: domain.RiskMedium}},
	}
	require.NoError(t, repo.RecordAssessments(batch))
	require.NoError(t, repo.RecordAssessments(nil)) // empty batch is a no-op

	records, err := repo.RecentAssessments(10)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestRecentAssessments_NewestFirst(t *testing.T) {
	repo := setupTestRepo(t)

	for _, id := range []string{"P1", "P2", "P3"} {
		require.NoError(t, repo.RecordAssessment(domain.AssessmentRecord{ID: id}))
	}

	records, err := repo.RecentAssessments(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "P3", records[0].ID)
	assert.Equal(t, "P2", records[1].ID)
}

func TestRecordRefresh_AndQuery(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.RecordRefresh(RefreshRun{
		StartedAt: time.Now(),
		Reason:    "startup",
		Outcome:   "ok",
	}))
	require.NoError(t, repo.RecordRefresh(RefreshRun{
		StartedAt: time.Now(),
		Reason:    "periodic",
		Outcome:   "partial",
	}))

	runs, err := repo.RecentRefreshes(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "periodic", runs[0].Reason)
	assert.Equal(t, "partial", runs[0].Outcome)
}

func TestDeleteAllExpired(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.RecordAssessment(domain.AssessmentRecord{ID: "fresh"}))

	// Backdate one row past its retention window
	_, err := repo.db.Exec(
		"INSERT INTO assessments (id, observed_at, risk_level, data, expires_at) VALUES (?, ?, ?, ?, ?)",
		"stale", time.Now().Add(-31*24*time.Hour).Unix(), 0, "{}", time.Now().Add(-time.Hour).Unix(),
	)
	require.NoError(t, err)

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), results["assessments"])

	records, err := repo.RecentAssessments(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "fresh", records[0].ID)

	// The cleanup job wrapper tolerates an already-clean journal
	NewCleanupJob(repo, zerolog.Nop()).Run()
}
