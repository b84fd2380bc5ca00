// Package domain contains the core data model for the triage dashboard.
// Types here are pure: no infrastructure dependencies, safe to share
// between the store, the clients and the HTTP layer.
package domain

import (
	"encoding/json"
	"time"
)

// RiskLevel is the classifier output bucket.
type RiskLevel int

const (
	RiskLow    RiskLevel = 0
	RiskMedium RiskLevel = 1
	RiskHigh   RiskLevel = 2
)

// Label returns the human-readable risk label.
func (r RiskLevel) Label() string {
	switch r {
	case RiskLow:
		return "Low Risk"
	case RiskMedium:
		return "Medium Risk"
	case RiskHigh:
		return "High Risk"
	default:
		return "Unknown"
	}
}

// Color returns the display color associated with the risk level.
func (r RiskLevel) Color() string {
	switch r {
	case RiskLow:
		return "#2ecc71"
	case RiskMedium:
		return "#f39c12"
	case RiskHigh:
		return "#e74c3c"
	default:
		return "#95a5a6"
	}
}

// Description returns the one-line clinical description for the risk level.
func (r RiskLevel) Description() string {
	switch r {
	case RiskLow:
		return "Patient shows minimal risk factors. Regular monitoring recommended."
	case RiskMedium:
		return "Patient exhibits moderate risk factors. Further evaluation suggested."
	case RiskHigh:
		return "Patient shows high risk factors. Immediate clinical attention required."
	default:
		return ""
	}
}

// DashboardStats holds the aggregate counters shown on the dashboard.
// A snapshot fetch replaces it wholesale; push events adjust it incrementally.
type DashboardStats struct {
	TotalAssessments int     `json:"total_assessments"`
	LowRisk          int     `json:"low_risk"`
	MediumRisk       int     `json:"medium_risk"`
	HighRisk         int     `json:"high_risk"`
	AvgAge           float64 `json:"avg_age"`
	AvgCholesterol   float64 `json:"avg_cholesterol"`
	AvgBP            float64 `json:"avg_bp"`
	SuccessRate      float64 `json:"success_rate"`
}

// StatsPatch is a partial stats update carried by a stats_update push event.
// Nil fields are absent from the payload and must leave the current value
// untouched.
type StatsPatch struct {
	TotalAssessments *int     `json:"total_assessments,omitempty"`
	LowRisk          *int     `json:"low_risk,omitempty"`
	MediumRisk       *int     `json:"medium_risk,omitempty"`
	HighRisk         *int     `json:"high_risk,omitempty"`
	AvgAge           *float64 `json:"avg_age,omitempty"`
	AvgCholesterol   *float64 `json:"avg_cholesterol,omitempty"`
	AvgBP            *float64 `json:"avg_bp,omitempty"`
	SuccessRate      *float64 `json:"success_rate,omitempty"`
}

// Prediction is the classifier verdict attached to an assessment.
type Prediction struct {
	RiskLevel RiskLevel `json:"risk_level"`
	RiskLabel string    `json:"risk_label"`
}

// AssessmentRecord is one observed triage assessment. Immutable once created.
// ClinicalFields follows the original feature set (age, sex, cp, trestbps,
// chol, fbs, restecg, thalach, exang, oldpeak, slope, ca, thal).
type AssessmentRecord struct {
	ID             string             `json:"id"`
	Timestamp      time.Time          `json:"timestamp"`
	ClinicalFields map[string]float64 `json:"data,omitempty"`
	Prediction     Prediction         `json:"prediction"`
}

// SystemStatus is the backend health indicator carried in insights.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusDown     SystemStatus = "down"
)

// AlertLevel classifies an alert banner.
type AlertLevel string

const (
	AlertInfo    AlertLevel = "info"
	AlertSuccess AlertLevel = "success"
	AlertWarning AlertLevel = "warning"
	AlertDanger  AlertLevel = "danger"
)

// AlertRecord is a backend-issued alert. Displayed until dismissed by the
// viewer or superseded by a full insights refresh.
type AlertRecord struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Icon    string     `json:"icon"`
}

// DailyTrends is the assessments-per-day chart series.
// Labels and Data always have the same length.
type DailyTrends struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// InsightsSnapshot is the model-health slice of dashboard state.
// PerformanceMetrics is ordered: accuracy, precision, recall, F1, speed.
type InsightsSnapshot struct {
	ModelAccuracy      float64       `json:"model_accuracy"`
	SystemStatus       SystemStatus  `json:"system_status"`
	Alerts             []AlertRecord `json:"alerts"`
	DailyTrends        DailyTrends   `json:"daily_trends"`
	PerformanceMetrics []float64     `json:"performance_metrics"`
}

// ModelUpdate describes a model-version announcement push event.
// It never mutates stored dashboard state.
type ModelUpdate struct {
	Version  string  `json:"version"`
	Accuracy float64 `json:"accuracy,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// AssessmentEvent is the flattened payload of a new_assessment push event:
// {"id": ..., "risk_level": ..., "risk_label": ...} with optional clinical
// fields. The REST feed carries full AssessmentRecord values instead.
type AssessmentEvent struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	RiskLevel RiskLevel          `json:"risk_level"`
	RiskLabel string             `json:"risk_label"`
	Data      map[string]float64 `json:"data,omitempty"`
}

// Record converts the event payload into an immutable AssessmentRecord.
// A missing timestamp is stamped with the arrival time; a missing label is
// derived from the risk level.
func (e AssessmentEvent) Record(now time.Time) AssessmentRecord {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = now
	}
	label := e.RiskLabel
	if label == "" {
		label = e.RiskLevel.Label()
	}
	return AssessmentRecord{
		ID:             e.ID,
		Timestamp:      ts,
		ClinicalFields: e.Data,
		Prediction: Prediction{
			RiskLevel: e.RiskLevel,
			RiskLabel: label,
		},
	}
}

// PushKind tags an inbound push message.
type PushKind string

const (
	PushNewAssessment PushKind = "new_assessment"
	PushSystemAlert   PushKind = "system_alert"
	PushStatsUpdate   PushKind = "stats_update"
	PushModelUpdate   PushKind = "model_update"
)

// PushMessage is the wire form of one push frame: {"type": kind, "data": payload}.
// Data stays raw until the dispatcher decodes it against the kind.
type PushMessage struct {
	Type PushKind        `json:"type"`
	Data json.RawMessage `json:"data"`
}
