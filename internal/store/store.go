// Package store holds the single source of truth for dashboard state and
// the merge rules that keep it consistent across polled snapshots and
// pushed deltas.
package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/triagewatch/triagewatch/internal/domain"
)

// Snapshot is the result of one full polled refresh: all three data
// slices, already collapsed to defaults where a source failed.
type Snapshot struct {
	Stats    domain.DashboardStats
	Recent   []domain.AssessmentRecord
	Insights domain.InsightsSnapshot
}

// Banner is the dismissible error banner shown only when an orchestrated
// refresh fails as a whole (per-source fallbacks stay silent).
type Banner struct {
	Message string    `json:"message"`
	Since   time.Time `json:"since"`
}

// Store is the reconciliation store. Every merge operation is atomic under
// the mutex, so snapshot refreshes and push deltas may interleave in any
// order without exposing partial writes. Push deltas are cheap additive
// merges; the periodic snapshot is the reconciling authority, so the
// per-category counters may transiently drift from a true recount until
// the next refresh. That drift is an accepted eventual-consistency
// property, not a bug.
type Store struct {
	mu         sync.RWMutex
	windowSize int

	stats       domain.DashboardStats
	recent      []domain.AssessmentRecord
	insights    domain.InsightsSnapshot
	banner      *Banner
	lastRefresh time.Time

	log zerolog.Logger
}

// New creates an empty store bounded to the given recent-activity window.
func New(windowSize int, log zerolog.Logger) *Store {
	if windowSize < 1 {
		windowSize = 5
	}
	return &Store{
		windowSize: windowSize,
		log:        log.With().Str("component", "store").Logger(),
	}
}

// WindowSize returns the recent-activity bound.
func (s *Store) WindowSize() int {
	return s.windowSize
}

// ApplySnapshot replaces the stats and insights slices wholesale and
// replaces the recent-activity list wholesale, trimmed to the window.
// Re-applying an identical snapshot is idempotent.
func (s *Store) ApplySnapshot(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats = snap.Stats
	s.insights = cloneInsights(snap.Insights)

	recent := make([]domain.AssessmentRecord, len(snap.Recent))
	copy(recent, snap.Recent)
	if len(recent) > s.windowSize {
		recent = recent[:s.windowSize]
	}
	s.recent = recent
	s.lastRefresh = time.Now()
}

// SeedRecent fills the recent-activity list from journaled records when
// no live data has arrived yet. A store that already holds records is
// left untouched: seeded history never overwrites the live feed.
func (s *Store) SeedRecent(records []domain.AssessmentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.recent) > 0 || len(records) == 0 {
		return
	}

	recent := make([]domain.AssessmentRecord, len(records))
	copy(recent, records)
	if len(recent) > s.windowSize {
		recent = recent[:s.windowSize]
	}
	s.recent = recent
	s.log.Info().Int("count", len(recent)).Msg("Seeded recent activity from journal")
}

// ApplyNewAssessment prepends one record to the recent-activity list
// (trimming to the window) and increments totalAssessments plus the
// matching risk bucket by exactly one. It deliberately does not re-derive
// the category counts from the full record list; see the Store doc
// comment for why the drift is acceptable.
func (s *Store) ApplyNewAssessment(rec domain.AssessmentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := make([]domain.AssessmentRecord, 0, len(s.recent)+1)
	recent = append(recent, rec)
	recent = append(recent, s.recent...)
	if len(recent) > s.windowSize {
		recent = recent[:s.windowSize]
	}
	s.recent = recent

	s.stats.TotalAssessments++
	switch rec.Prediction.RiskLevel {
	case domain.RiskLow:
		s.stats.LowRisk++
	case domain.RiskMedium:
		s.stats.MediumRisk++
	case domain.RiskHigh:
		s.stats.HighRisk++
	}
}

// ApplyStatsPatch overlays only the fields present in the payload onto the
// current stats, leaving unspecified fields untouched.
func (s *Store) ApplyStatsPatch(patch domain.StatsPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.TotalAssessments != nil {
		s.stats.TotalAssessments = *patch.TotalAssessments
	}
	if patch.LowRisk != nil {
		s.stats.LowRisk = *patch.LowRisk
	}
	if patch.MediumRisk != nil {
		s.stats.MediumRisk = *patch.MediumRisk
	}
	if patch.HighRisk != nil {
		s.stats.HighRisk = *patch.HighRisk
	}
	if patch.AvgAge != nil {
		s.stats.AvgAge = *patch.AvgAge
	}
	if patch.AvgCholesterol != nil {
		s.stats.AvgCholesterol = *patch.AvgCholesterol
	}
	if patch.AvgBP != nil {
		s.stats.AvgBP = *patch.AvgBP
	}
	if patch.SuccessRate != nil {
		s.stats.SuccessRate = *patch.SuccessRate
	}
}

// ApplyAlert prepends one alert to the insights alerts sequence. Older
// alerts are never evicted here; eviction is viewer dismissal or a full
// insights refresh.
func (s *Store) ApplyAlert(alert domain.AlertRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts := make([]domain.AlertRecord, 0, len(s.insights.Alerts)+1)
	alerts = append(alerts, alert)
	alerts = append(alerts, s.insights.Alerts...)
	s.insights.Alerts = alerts
}

// DismissAlert removes the alert at the given position in the current
// alerts sequence. Out-of-range indexes are a no-op.
func (s *Store) DismissAlert(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.insights.Alerts) {
		return
	}
	s.insights.Alerts = append(s.insights.Alerts[:index], s.insights.Alerts[index+1:]...)
}

// SetBanner records the dismissible refresh-failure banner.
func (s *Store) SetBanner(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banner = &Banner{Message: message, Since: time.Now()}
}

// DismissBanner clears the failure banner.
func (s *Store) DismissBanner() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banner = nil
}

// Stats returns a copy of the current aggregate counters.
func (s *Store) Stats() domain.DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Recent returns a copy of the recent-activity list, most recent first.
func (s *Store) Recent() []domain.AssessmentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := make([]domain.AssessmentRecord, len(s.recent))
	copy(recent, s.recent)
	return recent
}

// Insights returns a copy of the current insights slice.
func (s *Store) Insights() domain.InsightsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneInsights(s.insights)
}

// Banner returns the current failure banner, or nil.
func (s *Store) Banner() *Banner {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.banner == nil {
		return nil
	}
	b := *s.banner
	return &b
}

// LastRefresh returns when the last full snapshot was applied.
func (s *Store) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

func cloneInsights(in domain.InsightsSnapshot) domain.InsightsSnapshot {
	out := in
	out.Alerts = append([]domain.AlertRecord(nil), in.Alerts...)
	out.DailyTrends.Labels = append([]string(nil), in.DailyTrends.Labels...)
	out.DailyTrends.Data = append([]float64(nil), in.DailyTrends.Data...)
	out.PerformanceMetrics = append([]float64(nil), in.PerformanceMetrics...)
	return out
}
