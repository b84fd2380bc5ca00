// Package syncer orchestrates the dashboard's data flow: the startup and
// periodic snapshot refreshes, and the merge of push deltas into the
// reconciliation store.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/triagewatch/triagewatch/internal/dispatch"
	"github.com/triagewatch/triagewatch/internal/domain"
	"github.com/triagewatch/triagewatch/internal/events"
	"github.com/triagewatch/triagewatch/internal/fetch"
	"github.com/triagewatch/triagewatch/internal/history"
	"github.com/triagewatch/triagewatch/internal/notify"
	"github.com/triagewatch/triagewatch/internal/store"
)

const refreshTimeout = 30 * time.Second

// Syncer ties the fetcher, store, journal and notifications together.
type Syncer struct {
	fetcher       *fetch.Fetcher
	store         *store.Store
	history       *history.Repository
	notifications *notify.Manager
	eventMgr      *events.Manager
	pollInterval  time.Duration
	log           zerolog.Logger

	cron *cron.Cron
}

// New creates a syncer. history may be nil when journaling is disabled.
func New(
	fetcher *fetch.Fetcher,
	st *store.Store,
	hist *history.Repository,
	notifications *notify.Manager,
	eventMgr *events.Manager,
	pollInterval time.Duration,
	log zerolog.Logger,
) *Syncer {
	return &Syncer{
		fetcher:       fetcher,
		store:         st,
		history:       hist,
		notifications: notifications,
		eventMgr:      eventMgr,
		pollInterval:  pollInterval,
		log:           log.With().Str("component", "syncer").Logger(),
	}
}

// Start performs the startup refresh and schedules the periodic refresh
// plus the daily journal cleanup.
func (s *Syncer) Start(ctx context.Context) error {
	s.Refresh(ctx, "startup")

	s.cron = cron.New()

	interval := fmt.Sprintf("@every %s", s.pollInterval)
	if _, err := s.cron.AddFunc(interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		s.Refresh(ctx, "periodic")
	}); err != nil {
		return fmt.Errorf("failed to schedule periodic refresh: %w", err)
	}

	if s.history != nil {
		cleanup := history.NewCleanupJob(s.history, s.log)
		if _, err := s.cron.AddJob("@daily", cleanup); err != nil {
			return fmt.Errorf("failed to schedule history cleanup: %w", err)
		}
	}

	s.cron.Start()
	s.log.Info().Dur("poll_interval", s.pollInterval).Msg("Periodic refresh scheduled")
	return nil
}

// Stop halts the periodic schedule and waits for a running job to finish.
func (s *Syncer) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Refresh pulls a full snapshot and reconciles it into the store. A
// partially failed refresh still applies what succeeded; only a refresh
// where every section failed leaves existing state untouched and raises
// the stale-data banner.
func (s *Syncer) Refresh(ctx context.Context, reason string) {
	started := time.Now()
	res := s.fetcher.Fetch(ctx)

	outcome := "ok"
	switch {
	case res.Failed():
		outcome = "failed"
	case res.Partial():
		outcome = "partial"
	}

	if res.Failed() {
		s.log.Error().Str("reason", reason).Msg("Refresh failed on all sections, keeping current state")
		s.store.SetBanner("Connection lost - displaying cached data")
		s.eventMgr.EmitError("syncer", fmt.Errorf("refresh failed"), map[string]interface{}{
			"reason": reason,
		})
		// A failed refresh with nothing on screen yet still shows the
		// last journaled feed instead of an empty dashboard
		s.seedFromJournal()
	} else {
		s.store.ApplySnapshot(res.Snapshot)
		s.store.DismissBanner()
		s.eventMgr.Emit(events.SnapshotRefreshed, "syncer", map[string]interface{}{
			"reason":  reason,
			"outcome": outcome,
		})
		s.journalSnapshot(res.Snapshot)
	}

	s.journalRefresh(started, reason, outcome)

	s.log.Info().
		Str("reason", reason).
		Str("outcome", outcome).
		Dur("duration", time.Since(started)).
		Msg("Refresh completed")
}

// Handlers returns the dispatcher callbacks that merge push deltas into
// the store. The dispatcher invokes them strictly in arrival order.
func (s *Syncer) Handlers() dispatch.Handlers {
	return dispatch.Handlers{
		OnNewAssessment: s.onNewAssessment,
		OnSystemAlert:   s.onSystemAlert,
		OnStatsUpdate:   s.onStatsUpdate,
		OnModelUpdate:   s.onModelUpdate,
	}
}

func (s *Syncer) onNewAssessment(event domain.AssessmentEvent) {
	rec := event.Record(time.Now())
	s.store.ApplyNewAssessment(rec)

	s.eventMgr.Emit(events.AssessmentReceived, "syncer", map[string]interface{}{
		"id":         rec.ID,
		"risk_level": int(rec.Prediction.RiskLevel),
	})

	s.notifications.Notify(
		domain.AlertInfo,
		fmt.Sprintf("New Assessment: %s", rec.ID),
		fmt.Sprintf("Patient %s assessed: %s", rec.ID, rec.Prediction.RiskLabel),
	)

	if s.history != nil {
		if err := s.history.RecordAssessment(rec); err != nil {
			s.log.Warn().Err(err).Str("id", rec.ID).Msg("Failed to journal assessment")
		}
	}
}

func (s *Syncer) onSystemAlert(alert domain.AlertRecord) {
	s.store.ApplyAlert(alert)

	s.eventMgr.Emit(events.AlertRaised, "syncer", map[string]interface{}{
		"level": string(alert.Level),
		"title": alert.Title,
	})

	s.notifications.Notify(alert.Level, alert.Title, alert.Message)
}

func (s *Syncer) onStatsUpdate(patch domain.StatsPatch) {
	s.store.ApplyStatsPatch(patch)

	s.eventMgr.Emit(events.StatsPatched, "syncer", nil)
}

// onModelUpdate raises a notification only. Model metadata is not part of
// reconciled dashboard state; the next insights refresh carries the new
// accuracy numbers.
func (s *Syncer) onModelUpdate(update domain.ModelUpdate) {
	s.eventMgr.Emit(events.ModelUpdated, "syncer", map[string]interface{}{
		"version": update.Version,
	})

	s.notifications.Notify(
		domain.AlertSuccess,
		"Model Updated",
		fmt.Sprintf("Classification model updated to version %s", update.Version),
	)
}

// seedFromJournal restores the recent window from journaled assessments.
// Only an empty window is seeded; live data always wins.
func (s *Syncer) seedFromJournal() {
	if s.history == nil || len(s.store.Recent()) > 0 {
		return
	}
	records, err := s.history.RecentAssessments(s.store.WindowSize())
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read journaled assessments")
		return
	}
	s.store.SeedRecent(records)
}

// journalSnapshot records the snapshot's assessments in the journal as
// one transaction.
func (s *Syncer) journalSnapshot(snap store.Snapshot) {
	if s.history == nil {
		return
	}
	if err := s.history.RecordAssessments(snap.Recent); err != nil {
		s.log.Warn().Err(err).Msg("Failed to journal snapshot assessments")
	}
}

func (s *Syncer) journalRefresh(started time.Time, reason, outcome string) {
	if s.history == nil {
		return
	}
	err := s.history.RecordRefresh(history.RefreshRun{
		StartedAt: started,
		Reason:    reason,
		Outcome:   outcome,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to journal refresh run")
	}
}
