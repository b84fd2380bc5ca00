package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/triagewatch/triagewatch/internal/clients/triage"
	"github.com/triagewatch/triagewatch/internal/history"
)

// SystemHandlers serves host and connection diagnostics.
type SystemHandlers struct {
	log     zerolog.Logger
	push    *triage.PushChannel
	history *history.Repository
}

// NewSystemHandlers creates the system diagnostics handlers.
func NewSystemHandlers(log zerolog.Logger, push *triage.PushChannel, hist *history.Repository) *SystemHandlers {
	return &SystemHandlers{
		log:     log.With().Str("component", "system_handlers").Logger(),
		push:    push,
		history: hist,
	}
}

// HandleSystemStatus returns host resource usage and push channel state.
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.systemUsage()

	h.writeJSON(w, map[string]interface{}{
		"cpu_percent":  cpuPercent,
		"ram_percent":  memPercent,
		"goroutines":   runtime.NumGoroutine(),
		"push_channel": string(h.push.State()),
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}

// HandleRecentRefreshes returns the journaled refresh runs. The journal
// is optional: when it failed to open at startup the route answers 503
// instead of pretending an empty history.
// GET /api/system/refreshes
func (h *SystemHandlers) HandleRecentRefreshes(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "refresh journal disabled", http.StatusServiceUnavailable)
		return
	}
	runs, err := h.history.RecentRefreshes(20)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read refresh journal")
		http.Error(w, "failed to read refresh journal", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, runs)
}

// systemUsage samples CPU and memory via gopsutil. Failures degrade to
// zero values rather than failing the request.
func (h *SystemHandlers) systemUsage() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
