package fetch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagewatch/triagewatch/internal/domain"
)

type fakeSource struct {
	stats    domain.DashboardStats
	statsErr error

	patients    []domain.AssessmentRecord
	patientsErr error

	insights    domain.InsightsSnapshot
	insightsErr error

	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeSource) track() func() {
	n := f.inFlight.Add(1)
	for {
		max := f.maxSeen.Load()
		if n <= max || f.maxSeen.CompareAndSwap(max, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeSource) Stats(context.Context) (domain.DashboardStats, error) {
	defer f.track()()
	return f.stats, f.statsErr
}

func (f *fakeSource) Patients(context.Context, int) ([]domain.AssessmentRecord, error) {
	defer f.track()()
	return f.patients, f.patientsErr
}

func (f *fakeSource) Insights(context.Context) (domain.InsightsSnapshot, error) {
	defer f.track()()
	return f.insights, f.insightsErr
}

func TestFetch_AllSectionsSucceed(t *testing.T) {
	src := &fakeSource{
		stats:    domain.DashboardStats{TotalAssessments: 42, HighRisk: 7},
		patients: []domain.AssessmentRecord{{ID: "P1"}},
		insights: domain.InsightsSnapshot{ModelAccuracy: 91.0},
	}

	res := New(src, 5, zerolog.Nop()).Fetch(context.Background())

	assert.False(t, res.Failed())
	assert.False(t, res.Partial())
	assert.Equal(t, 42, res.Snapshot.Stats.TotalAssessments)
	require.Len(t, res.Snapshot.Recent, 1)
	assert.Equal(t, 91.0, res.Snapshot.Insights.ModelAccuracy)
}

func TestFetch_SectionsRunConcurrently(t *testing.T) {
	src := &fakeSource{delay: 30 * time.Millisecond}

	start := time.Now()
	New(src, 5, zerolog.Nop()).Fetch(context.Background())

	// Three sequential 30ms calls would take 90ms+
	assert.Less(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, int32(3), src.maxSeen.Load())
}

func TestFetch_FailedSectionFallsBackToDefault(t *testing.T) {
	src := &fakeSource{
		statsErr: errors.New("connection refused"),
		patients: []domain.AssessmentRecord{{ID: "P1"}, {ID: "P2"}},
		insights: domain.InsightsSnapshot{SystemStatus: domain.StatusHealthy},
	}

	res := New(src, 5, zerolog.Nop()).Fetch(context.Background())

	assert.True(t, res.StatsFailed)
	assert.True(t, res.Partial())
	assert.False(t, res.Failed())

	// The failed section holds its zero default, the others their data
	assert.Equal(t, domain.DashboardStats{}, res.Snapshot.Stats)
	assert.Len(t, res.Snapshot.Recent, 2)
	assert.Equal(t, domain.StatusHealthy, res.Snapshot.Insights.SystemStatus)
}

func TestFetch_AllSectionsFailed(t *testing.T) {
	boom := errors.New("backend down")
	src := &fakeSource{statsErr: boom, patientsErr: boom, insightsErr: boom}

	res := New(src, 5, zerolog.Nop()).Fetch(context.Background())

	assert.True(t, res.Failed())
	assert.False(t, res.Partial())
	assert.Empty(t, res.Snapshot.Recent)
}
