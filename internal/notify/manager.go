// Package notify manages transient dashboard notifications: bounded
// lifetime, manual dismissal, and an optional best-effort out-of-page
// webhook channel.
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/triagewatch/triagewatch/internal/domain"
)

// Notification is one visible notification. Fire-and-forget: it is not
// part of durable dashboard state and disappears entirely on removal.
type Notification struct {
	ID        string             `json:"id"`
	Level     domain.AlertLevel  `json:"level"`
	Title     string             `json:"title"`
	Message   string             `json:"message"`
	CreatedAt time.Time          `json:"created_at"`
	Expiry    time.Time          `json:"expiry"`
}

type entry struct {
	notification Notification
	timer        *time.Timer
}

// Manager owns the notification lifecycle. Each notification gets its own
// cancellable expiry timer; dismissing one stops its timer so the removal
// cannot fire twice, and never affects the others.
type Manager struct {
	ttl time.Duration
	log zerolog.Logger

	mu     sync.Mutex
	active map[string]*entry

	webhookURL     string
	webhookEnabled bool
	httpClient     *http.Client
}

// NewManager creates a notification manager. When webhookURL is non-empty
// it is probed exactly once here; a failed probe disables the webhook for
// the whole session and it is never re-probed.
func NewManager(ttl time.Duration, webhookURL string, log zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	m := &Manager{
		ttl:        ttl,
		log:        log.With().Str("component", "notify").Logger(),
		active:     make(map[string]*entry),
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}

	if webhookURL != "" {
		if err := m.probeWebhook(); err != nil {
			m.log.Warn().Err(err).Msg("Notification webhook unreachable, disabled for this session")
		} else {
			m.webhookEnabled = true
		}
	}

	return m
}

// Notify creates a visible notification and schedules its automatic
// removal after the configured duration. Returns the notification id.
func (m *Manager) Notify(level domain.AlertLevel, title, message string) string {
	now := time.Now()
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: now,
		Expiry:    now.Add(m.ttl),
	}

	m.mu.Lock()
	e := &entry{notification: n}
	e.timer = time.AfterFunc(m.ttl, func() {
		m.remove(n.ID)
	})
	m.active[n.ID] = e
	m.mu.Unlock()

	m.log.Debug().Str("id", n.ID).Str("title", title).Msg("Notification created")

	if m.webhookEnabled {
		go m.forward(n)
	}

	return n.ID
}

// Dismiss removes a notification early and cancels its pending expiry
// timer, so the automatic removal cannot fire a second time.
func (m *Manager) Dismiss(id string) bool {
	m.mu.Lock()
	e, ok := m.active[id]
	if ok {
		e.timer.Stop()
		delete(m.active, id)
	}
	m.mu.Unlock()

	if ok {
		m.log.Debug().Str("id", id).Msg("Notification dismissed")
	}
	return ok
}

// Active returns the currently visible notifications, newest first.
func (m *Manager) Active() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Notification, 0, len(m.active))
	for _, e := range m.active {
		out = append(out, e.notification)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Close cancels every pending expiry timer.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.active {
		e.timer.Stop()
		delete(m.active, id)
	}
}

// remove is the expiry path. Looking the id up under the lock makes the
// removal idempotent with respect to an earlier manual dismissal.
func (m *Manager) remove(id string) {
	m.mu.Lock()
	_, ok := m.active[id]
	if ok {
		delete(m.active, id)
	}
	m.mu.Unlock()

	if ok {
		m.log.Debug().Str("id", id).Msg("Notification expired")
	}
}

// probeWebhook checks the webhook endpoint once at initialization.
func (m *Manager) probeWebhook() error {
	resp, err := m.httpClient.Head(m.webhookURL)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// forward pushes the notification to the webhook. Best effort: failures
// are logged and never retried.
func (m *Manager) forward(n Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		return
	}

	resp, err := m.httpClient.Post(m.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		m.log.Debug().Err(err).Msg("Webhook notification failed")
		return
	}
	resp.Body.Close()
}
