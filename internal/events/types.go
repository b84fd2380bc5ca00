// Package events provides event management functionality.
package events

import (
	"time"
)

// EventType represents different event types
type EventType string

const (
	// Dashboard state events
	SnapshotRefreshed  EventType = "SNAPSHOT_REFRESHED"
	AssessmentReceived EventType = "ASSESSMENT_RECEIVED"
	StatsPatched       EventType = "STATS_PATCHED"
	AlertRaised        EventType = "ALERT_RAISED"
	ModelUpdated       EventType = "MODEL_UPDATED"

	// Connection lifecycle events
	PushConnected    EventType = "PUSH_CONNECTED"
	PushDisconnected EventType = "PUSH_DISCONNECTED"

	// Error reporting
	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
