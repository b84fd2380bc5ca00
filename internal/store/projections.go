package store

import (
	talib "github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/triagewatch/triagewatch/internal/domain"
)

// smaPeriod is the window for the smoothed daily-trend companion series.
const smaPeriod = 7

// RiskDistribution is the chart series behind the risk-distribution chart,
// derived purely from current store state.
type RiskDistribution struct {
	Labels []string `json:"labels"`
	Counts []int    `json:"counts"`
	Colors []string `json:"colors"`
}

// TrendSeries is the daily-trends chart series plus an SMA-smoothed
// companion when enough points exist.
type TrendSeries struct {
	Labels   []string  `json:"labels"`
	Data     []float64 `json:"data"`
	Smoothed []float64 `json:"smoothed,omitempty"`
}

// HighRiskFactors mirrors the original insights view: averaged clinical
// observations over the high-risk subset of the recent window.
type HighRiskFactors struct {
	Count          int     `json:"count"`
	AvgCholesterol float64 `json:"avg_cholesterol"`
	AvgBP          float64 `json:"avg_bp"`
	AvgAge         float64 `json:"avg_age"`
}

// RiskDistribution projects the per-category counters into the chart
// series. Never mutated independently of the store.
func (s *Store) RiskDistribution() RiskDistribution {
	stats := s.Stats()
	return RiskDistribution{
		Labels: []string{domain.RiskLow.Label(), domain.RiskMedium.Label(), domain.RiskHigh.Label()},
		Counts: []int{stats.LowRisk, stats.MediumRisk, stats.HighRisk},
		Colors: []string{domain.RiskLow.Color(), domain.RiskMedium.Color(), domain.RiskHigh.Color()},
	}
}

// TrendSeries projects the insights daily trends. The smoothed series is
// only present once a full SMA window of points exists; talib pads the
// leading partial window with zeros, which are trimmed off by the caller
// pairing values with labels from position smaPeriod-1 onward.
func (s *Store) TrendSeries() TrendSeries {
	insights := s.Insights()
	series := TrendSeries{
		Labels: insights.DailyTrends.Labels,
		Data:   insights.DailyTrends.Data,
	}
	if len(series.Data) >= smaPeriod {
		series.Smoothed = talib.Sma(series.Data, smaPeriod)
	}
	return series
}

// RecentAverages recomputes the display averages (age, cholesterol,
// resting BP) from the recent window. Used as a projection when a
// snapshot omits them; the snapshot values win whenever present.
func (s *Store) RecentAverages() (avgAge, avgChol, avgBP float64) {
	recent := s.Recent()
	return meanField(recent, "age"), meanField(recent, "chol"), meanField(recent, "trestbps")
}

// HighRiskFactors projects the averaged observations of the high-risk
// records currently in the recent window.
func (s *Store) HighRiskFactors() HighRiskFactors {
	recent := s.Recent()

	var highRisk []domain.AssessmentRecord
	for _, rec := range recent {
		if rec.Prediction.RiskLevel == domain.RiskHigh {
			highRisk = append(highRisk, rec)
		}
	}

	return HighRiskFactors{
		Count:          len(highRisk),
		AvgCholesterol: meanField(highRisk, "chol"),
		AvgBP:          meanField(highRisk, "trestbps"),
		AvgAge:         meanField(highRisk, "age"),
	}
}

// meanField averages one clinical field across records that carry it.
func meanField(records []domain.AssessmentRecord, field string) float64 {
	var values []float64
	for _, rec := range records {
		if v, ok := rec.ClinicalFields[field]; ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
