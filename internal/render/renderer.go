// Package render projects store state into the presentation view model:
// counters, the recent-activity table and chart series. Rendering is a
// pure function of store state plus the counter-animation positions; it
// owns no dashboard data of its own.
package render

import (
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/triagewatch/triagewatch/internal/domain"
	"github.com/triagewatch/triagewatch/internal/store"
)

// Counter names in the rendered frame.
const (
	CounterTotal  = "total_assessments"
	CounterLow    = "low_risk"
	CounterMedium = "medium_risk"
	CounterHigh   = "high_risk"
)

// Averages are the displayed demographic averages. Snapshot-provided
// values win; when a snapshot omits them the store recomputes them from
// the clinical fields of the recent window.
type Averages struct {
	Age         float64 `json:"age"`
	Cholesterol float64 `json:"cholesterol"`
	BP          float64 `json:"bp"`
}

// Row is one line of the recent-activity table.
type Row struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	RiskLabel string    `json:"risk_label"`
	RiskColor string    `json:"risk_color"`
}

// Frame is one rendered dashboard frame. The table is rebuilt wholesale on
// every render, never appended to, so re-rendering unchanged state yields
// an identical frame.
type Frame struct {
	Counters        map[string]int         `json:"counters"` // animated positions, stepping toward targets
	Targets         map[string]int         `json:"targets"`  // true store values
	Rows            []Row                  `json:"rows"`
	Averages        Averages               `json:"averages"`
	RiskChart       store.RiskDistribution `json:"risk_chart"`
	TrendChart      store.TrendSeries      `json:"trend_chart"`
	HighRiskFactors store.HighRiskFactors  `json:"high_risk_factors"`
	ModelAccuracy   float64                `json:"model_accuracy"`
	SuccessRate     float64                `json:"success_rate"`
	SystemStatus    domain.SystemStatus    `json:"system_status"`
	Alerts          []domain.AlertRecord   `json:"alerts"`
	Banner          *store.Banner          `json:"banner,omitempty"`

	// DirtyCharts names the charts whose backing series changed since the
	// previous render; unchanged charts must not be redrawn.
	DirtyCharts []string `json:"dirty_charts,omitempty"`
}

// Renderer renders store state and animates counter transitions: each
// displayed counter steps by one per tick toward its target. A render with
// target equal to the displayed value is a no-op for that counter.
type Renderer struct {
	store *store.Store
	log   zerolog.Logger

	mu        sync.Mutex
	displayed map[string]int
	targets   map[string]int
	lastRisk  store.RiskDistribution
	lastTrend store.TrendSeries
	rendered  bool
}

// New creates a renderer over the given store.
func New(st *store.Store, log zerolog.Logger) *Renderer {
	return &Renderer{
		store:     st,
		log:       log.With().Str("component", "renderer").Logger(),
		displayed: make(map[string]int),
		targets:   make(map[string]int),
	}
}

// Render produces a full frame from current store state. Invoking it twice
// with unchanged state produces the same row count and marks no chart dirty
// the second time.
func (r *Renderer) Render() Frame {
	stats := r.store.Stats()
	recent := r.store.Recent()
	insights := r.store.Insights()
	risk := r.store.RiskDistribution()
	trend := r.store.TrendSeries()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.setTarget(CounterTotal, stats.TotalAssessments)
	r.setTarget(CounterLow, stats.LowRisk)
	r.setTarget(CounterMedium, stats.MediumRisk)
	r.setTarget(CounterHigh, stats.HighRisk)

	// Table rebuilt from scratch every pass
	rows := make([]Row, 0, len(recent))
	for _, rec := range recent {
		rows = append(rows, Row{
			ID:        rec.ID,
			Timestamp: rec.Timestamp,
			RiskLabel: rec.Prediction.RiskLabel,
			RiskColor: rec.Prediction.RiskLevel.Color(),
		})
	}

	var dirty []string
	if !r.rendered || !reflect.DeepEqual(risk, r.lastRisk) {
		dirty = append(dirty, "risk_distribution")
	}
	if !r.rendered || !reflect.DeepEqual(trend, r.lastTrend) {
		dirty = append(dirty, "daily_trends")
	}
	r.lastRisk = risk
	r.lastTrend = trend
	r.rendered = true

	return Frame{
		Counters:        copyCounters(r.displayed),
		Targets:         copyCounters(r.targets),
		Rows:            rows,
		Averages:        r.averages(stats),
		RiskChart:       risk,
		TrendChart:      trend,
		HighRiskFactors: r.store.HighRiskFactors(),
		ModelAccuracy:   insights.ModelAccuracy,
		SuccessRate:     stats.SuccessRate,
		SystemStatus:    insights.SystemStatus,
		Alerts:          insights.Alerts,
		Banner:          r.store.Banner(),
		DirtyCharts:     dirty,
	}
}

// averages prefers the snapshot-provided values; a snapshot that carries
// none of them falls back to the recent-window projection.
func (r *Renderer) averages(stats domain.DashboardStats) Averages {
	if stats.AvgAge == 0 && stats.AvgCholesterol == 0 && stats.AvgBP == 0 {
		age, chol, bp := r.store.RecentAverages()
		return Averages{Age: age, Cholesterol: chol, BP: bp}
	}
	return Averages{Age: stats.AvgAge, Cholesterol: stats.AvgCholesterol, BP: stats.AvgBP}
}

// setTarget updates a counter target. First observation snaps the display
// to the target so a fresh dashboard does not animate up from zero on its
// initial snapshot.
func (r *Renderer) setTarget(name string, target int) {
	if _, seen := r.targets[name]; !seen {
		r.displayed[name] = target
	}
	r.targets[name] = target
}

// Tick advances every animating counter by one step toward its target and
// reports whether any counter moved. Counters already at their target are
// untouched.
func (r *Renderer) Tick() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	moved := false
	for name, target := range r.targets {
		current := r.displayed[name]
		switch {
		case current < target:
			r.displayed[name] = current + 1
			moved = true
		case current > target:
			r.displayed[name] = current - 1
			moved = true
		}
	}
	return moved
}

// Settled reports whether all counters have reached their targets.
func (r *Renderer) Settled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, target := range r.targets {
		if r.displayed[name] != target {
			return false
		}
	}
	return true
}

func copyCounters(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
