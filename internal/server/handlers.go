package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/triagewatch/triagewatch/internal/domain"
	"github.com/triagewatch/triagewatch/internal/store"
)

// stateResponse is the raw reconciled dashboard state.
type stateResponse struct {
	Stats    domain.DashboardStats     `json:"stats"`
	Recent   []domain.AssessmentRecord `json:"recent"`
	Insights domain.InsightsSnapshot   `json:"insights"`
	Banner   *store.Banner             `json:"banner,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// handleHealth returns liveness plus the push channel state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"push_channel": string(s.push.State()),
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}

// handleDashboardState returns the raw store state.
func (s *Server) handleDashboardState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, stateResponse{
		Stats:    s.store.Stats(),
		Recent:   s.store.Recent(),
		Insights: s.store.Insights(),
		Banner:   s.store.Banner(),
	})
}

// handleDashboardRender returns a rendered presentation frame.
func (s *Server) handleDashboardRender(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.renderer.Render())
}

// handleDashboardTick advances the counter animation one step.
func (s *Server) handleDashboardTick(w http.ResponseWriter, r *http.Request) {
	moved := s.renderer.Tick()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"moved":   moved,
		"settled": s.renderer.Settled(),
	})
}

// handleDismissAlert removes one alert by its display position.
func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid alert index", http.StatusBadRequest)
		return
	}
	s.store.DismissAlert(index)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDismissBanner clears the degraded-refresh banner.
func (s *Server) handleDismissBanner(w http.ResponseWriter, r *http.Request) {
	s.store.DismissBanner()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetNotifications lists active notifications, newest first.
func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.notifications.Active())
}

// handleDismissNotification removes one notification early.
func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.notifications.Dismiss(id) {
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRefresh triggers an immediate snapshot refresh. Runs detached
// from the request context so a quick client disconnect cannot cancel it.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.refresher.Refresh(ctx, "manual")
	}()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh triggered"})
}

// handleExport writes an export artifact and returns its path.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	path, err := s.exporter.Export(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Export failed")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"path":   path,
	})
}
