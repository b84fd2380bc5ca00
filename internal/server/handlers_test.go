package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagewatch/triagewatch/internal/backoff"
	"github.com/triagewatch/triagewatch/internal/clients/triage"
	"github.com/triagewatch/triagewatch/internal/domain"
	"github.com/triagewatch/triagewatch/internal/events"
	"github.com/triagewatch/triagewatch/internal/export"
	"github.com/triagewatch/triagewatch/internal/notify"
	"github.com/triagewatch/triagewatch/internal/render"
	"github.com/triagewatch/triagewatch/internal/store"
)

type nullSink struct{}

func (nullSink) Enqueue(domain.PushMessage) {}

type fakeRefresher struct {
	calls atomic.Int32
}

func (f *fakeRefresher) Refresh(ctx context.Context, reason string) {
	f.calls.Add(1)
}

type testEnv struct {
	srv           *Server
	store         *store.Store
	notifications *notify.Manager
	refresher     *fakeRefresher
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()

	st := store.New(5, log)
	st.ApplySnapshot(store.Snapshot{
		Stats: domain.DashboardStats{TotalAssessments: 10, LowRisk: 5, MediumRisk: 3, HighRisk: 2},
		Recent: []domain.AssessmentRecord{
			{ID: "P1", Timestamp: time.Now(), Prediction: domain.Prediction{RiskLevel: domain.RiskLow, RiskLabel: "Low Risk"}},
		},
	})

	notifications := notify.NewManager(time.Minute, "", log)
	t.Cleanup(notifications.Close)

	timer := backoff.New(backoff.PolicyFixed, time.Second, 0)
	push := triage.NewPushChannel("ws://127.0.0.1:1/ws", nullSink{}, timer, nil, log)

	refresher := &fakeRefresher{}

	srv := New(Config{
		Log:           log,
		Port:          0,
		DevMode:       true,
		Store:         st,
		Renderer:      render.New(st, log),
		Notifications: notifications,
		Exporter:      export.NewService(st, t.TempDir(), nil, log),
		Push:          push,
		Refresher:     refresher,
		EventBus:      events.NewBus(),
	})

	return &testEnv{srv: srv, store: st, notifications: notifications, refresher: refresher}
}

func (e *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "closed_pending_retry", body["push_channel"])
}

func TestHandleDashboardState(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/api/dashboard/state")
	require.Equal(t, http.StatusOK, rec.Code)

	var body stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 10, body.Stats.TotalAssessments)
	require.Len(t, body.Recent, 1)
	assert.Equal(t, "P1", body.Recent[0].ID)
}

func TestHandleDashboardRender(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/api/dashboard/render")
	require.Equal(t, http.StatusOK, rec.Code)

	var frame render.Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
	assert.Equal(t, 10, frame.Targets[render.CounterTotal])
	require.Len(t, frame.Rows, 1)
	assert.Equal(t, "#2ecc71", frame.Rows[0].RiskColor)
}

func TestNotificationLifecycleOverHTTP(t *testing.T) {
	env := newTestServer(t)
	id := env.notifications.Notify(domain.AlertInfo, "New Assessment", "Patient P7 assessed")

	rec := env.do(t, http.MethodGet, "/api/notifications/")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []notify.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	rec = env.do(t, http.MethodDelete, "/api/notifications/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.notifications.Active())

	// Dismissing twice is a 404, not a crash
	rec = env.do(t, http.MethodDelete, "/api/notifications/"+id)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRefreshTriggersRefresher(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		return env.refresher.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHandleDismissAlert(t *testing.T) {
	env := newTestServer(t)
	env.store.ApplyAlert(domain.AlertRecord{Title: "old"})
	env.store.ApplyAlert(domain.AlertRecord{Title: "new"})

	rec := env.do(t, http.MethodDelete, "/api/dashboard/alerts/0")
	require.Equal(t, http.StatusOK, rec.Code)

	alerts := env.store.Insights().Alerts
	require.Len(t, alerts, 1)
	assert.Equal(t, "old", alerts[0].Title)

	rec = env.do(t, http.MethodDelete, "/api/dashboard/alerts/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExport(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/export")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["path"], ".tar.gz")
}
