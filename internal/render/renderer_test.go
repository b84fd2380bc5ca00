package render

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagewatch/triagewatch/internal/domain"
	"github.com/triagewatch/triagewatch/internal/store"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(5, zerolog.Nop())
	s.ApplySnapshot(store.Snapshot{
		Stats: domain.DashboardStats{
			TotalAssessments: 12,
			LowRisk:          6,
			MediumRisk:       4,
			HighRisk:         2,
			SuccessRate:      96.0,
		},
		Recent: []domain.AssessmentRecord{
			{ID: "P2", Timestamp: time.Now(), Prediction: domain.Prediction{RiskLevel: domain.RiskHigh, RiskLabel: "High Risk"}},
			{ID: "P1", Timestamp: time.Now(), Prediction: domain.Prediction{RiskLevel: domain.RiskLow, RiskLabel: "Low Risk"}},
		},
		Insights: domain.InsightsSnapshot{
			ModelAccuracy: 89.0,
			SystemStatus:  domain.StatusHealthy,
		},
	})
	return s
}

func TestRender_IdempotentOnUnchangedState(t *testing.T) {
	s := seededStore(t)
	r := New(s, zerolog.Nop())

	first := r.Render()
	second := r.Render()

	assert.Equal(t, len(first.Rows), len(second.Rows))
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.Targets, second.Targets)

	// First pass draws everything, second pass has nothing to redraw
	assert.ElementsMatch(t, []string{"risk_distribution", "daily_trends"}, first.DirtyCharts)
	assert.Empty(t, second.DirtyCharts)
}

func TestRender_InitialCountersSnapToTargets(t *testing.T) {
	s := seededStore(t)
	r := New(s, zerolog.Nop())

	frame := r.Render()
	assert.Equal(t, frame.Targets, frame.Counters)
	assert.True(t, r.Settled())
}

func TestTick_StepsByOneTowardTarget(t *testing.T) {
	s := seededStore(t)
	r := New(s, zerolog.Nop())
	r.Render()

	// A pushed assessment raises the targets by one
	s.ApplyNewAssessment(domain.AssessmentRecord{
		ID:         "P42",
		Prediction: domain.Prediction{RiskLevel: domain.RiskHigh, RiskLabel: "High Risk"},
	})
	frame := r.Render()

	assert.Equal(t, 13, frame.Targets[CounterTotal])
	assert.Equal(t, 12, frame.Counters[CounterTotal])
	assert.False(t, r.Settled())

	assert.True(t, r.Tick())
	frame = r.Render()
	assert.Equal(t, 13, frame.Counters[CounterTotal])
	assert.Equal(t, 3, frame.Counters[CounterHigh])

	// Target reached: further ticks are a no-op
	assert.True(t, r.Settled())
	assert.False(t, r.Tick())
}

func TestRender_OnlyChangedChartIsDirty(t *testing.T) {
	s := seededStore(t)
	r := New(s, zerolog.Nop())
	r.Render()

	// A stats patch changes the risk distribution but not the trend series
	seven := 7
	s.ApplyStatsPatch(domain.StatsPatch{HighRisk: &seven})

	frame := r.Render()
	assert.Equal(t, []string{"risk_distribution"}, frame.DirtyCharts)
}

func TestRender_AveragesFallBackToRecentWindow(t *testing.T) {
	s := store.New(5, zerolog.Nop())
	s.ApplySnapshot(store.Snapshot{
		Stats: domain.DashboardStats{TotalAssessments: 2},
		Recent: []domain.AssessmentRecord{
			{ID: "P1", ClinicalFields: map[string]float64{"age": 50, "chol": 200, "trestbps": 120}},
			{ID: "P2", ClinicalFields: map[string]float64{"age": 70, "chol": 240, "trestbps": 140}},
		},
	})

	// The snapshot carries no averages, so they come from the window
	frame := New(s, zerolog.Nop()).Render()
	assert.Equal(t, 60.0, frame.Averages.Age)
	assert.Equal(t, 220.0, frame.Averages.Cholesterol)
	assert.Equal(t, 130.0, frame.Averages.BP)
}

func TestRender_SnapshotAveragesWin(t *testing.T) {
	s := store.New(5, zerolog.Nop())
	s.ApplySnapshot(store.Snapshot{
		Stats: domain.DashboardStats{AvgAge: 54.4, AvgCholesterol: 246.7, AvgBP: 131.6},
		Recent: []domain.AssessmentRecord{
			{ID: "P1", ClinicalFields: map[string]float64{"age": 20}},
		},
	})

	frame := New(s, zerolog.Nop()).Render()
	assert.Equal(t, 54.4, frame.Averages.Age)
	assert.Equal(t, 246.7, frame.Averages.Cholesterol)
	assert.Equal(t, 131.6, frame.Averages.BP)
}

func TestRender_HighRiskFactorsFromRecentWindow(t *testing.T) {
	s := store.New(5, zerolog.Nop())
	s.ApplySnapshot(store.Snapshot{
		Recent: []domain.AssessmentRecord{
			{
				ID:             "P1",
				ClinicalFields: map[string]float64{"age": 70, "chol": 300, "trestbps": 150},
				Prediction:     domain.Prediction{RiskLevel: domain.RiskHigh, RiskLabel: "High Risk"},
			},
			{
				ID:             "P2",
				ClinicalFields: map[string]float64{"age": 30, "chol": 180, "trestbps": 110},
				Prediction:     domain.Prediction{RiskLevel: domain.RiskLow, RiskLabel: "Low Risk"},
			},
		},
	})

	// Only the high-risk record contributes
	frame := New(s, zerolog.Nop()).Render()
	assert.Equal(t, 1, frame.HighRiskFactors.Count)
	assert.Equal(t, 70.0, frame.HighRiskFactors.AvgAge)
	assert.Equal(t, 300.0, frame.HighRiskFactors.AvgCholesterol)
	assert.Equal(t, 150.0, frame.HighRiskFactors.AvgBP)
}

func TestRender_RowsRebuiltWholesale(t *testing.T) {
	s := seededStore(t)
	r := New(s, zerolog.Nop())

	require.Len(t, r.Render().Rows, 2)

	s.ApplyNewAssessment(domain.AssessmentRecord{
		ID:         "P42",
		Prediction: domain.Prediction{RiskLevel: domain.RiskMedium, RiskLabel: "Medium Risk"},
	})

	rows := r.Render().Rows
	require.Len(t, rows, 3)
	assert.Equal(t, "P42", rows[0].ID)

	// Rendering again does not append duplicates
	assert.Len(t, r.Render().Rows, 3)
}
