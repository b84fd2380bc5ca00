// Package fetch assembles full dashboard snapshots from the triage
// backend's REST endpoints.
package fetch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/triagewatch/triagewatch/internal/domain"
	"github.com/triagewatch/triagewatch/internal/store"
)

// Source is the slice of the REST client the fetcher needs.
type Source interface {
	Stats(ctx context.Context) (domain.DashboardStats, error)
	Patients(ctx context.Context, limit int) ([]domain.AssessmentRecord, error)
	Insights(ctx context.Context) (domain.InsightsSnapshot, error)
}

// Result is one completed refresh. Each section carries its own failure
// flag: a failed section holds its fallback default and the refresh as a
// whole still completes.
type Result struct {
	Snapshot store.Snapshot

	StatsFailed    bool
	PatientsFailed bool
	InsightsFailed bool
}

// Failed reports whether every section fell back to its default.
func (r Result) Failed() bool {
	return r.StatsFailed && r.PatientsFailed && r.InsightsFailed
}

// Partial reports whether at least one section failed but not all.
func (r Result) Partial() bool {
	failed := r.StatsFailed || r.PatientsFailed || r.InsightsFailed
	return failed && !r.Failed()
}

// Fetcher pulls the three snapshot sections concurrently.
type Fetcher struct {
	source      Source
	recentLimit int
	log         zerolog.Logger
}

// New creates a fetcher. recentLimit bounds the recent-assessments pull.
func New(source Source, recentLimit int, log zerolog.Logger) *Fetcher {
	if recentLimit <= 0 {
		recentLimit = 5
	}
	return &Fetcher{
		source:      source,
		recentLimit: recentLimit,
		log:         log.With().Str("component", "fetcher").Logger(),
	}
}

// Fetch issues the stats, recent-assessments and insights requests
// concurrently and waits for all three. A failed section collapses to its
// default (zero stats, empty list, empty insights) instead of aborting
// the refresh, so one unreachable endpoint cannot blank the others.
func (f *Fetcher) Fetch(ctx context.Context) Result {
	var (
		wg  sync.WaitGroup
		res Result
	)

	wg.Add(3)

	go func() {
		defer wg.Done()
		stats, err := f.source.Stats(ctx)
		if err != nil {
			f.log.Warn().Err(err).Msg("Stats fetch failed, using zero counters")
			res.StatsFailed = true
			return
		}
		res.Snapshot.Stats = stats
	}()

	go func() {
		defer wg.Done()
		patients, err := f.source.Patients(ctx, f.recentLimit)
		if err != nil {
			f.log.Warn().Err(err).Msg("Recent assessments fetch failed, using empty list")
			res.PatientsFailed = true
			return
		}
		res.Snapshot.Recent = patients
	}()

	go func() {
		defer wg.Done()
		insights, err := f.source.Insights(ctx)
		if err != nil {
			f.log.Warn().Err(err).Msg("Insights fetch failed, using empty snapshot")
			res.InsightsFailed = true
			return
		}
		res.Snapshot.Insights = insights
	}()

	wg.Wait()
	return res
}
