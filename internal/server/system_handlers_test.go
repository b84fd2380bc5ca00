package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestHandleRecentRefreshes_WithoutJournal(t *testing.T) {
	// The journal is optional: startup keeps going when the database
	// fails to open, so the handler must cope with a nil repository.
	h := NewSystemHandlers(zerolog.Nop(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/system/refreshes", nil)
	rec := httptest.NewRecorder()

	assert.NotPanics(t, func() {
		h.HandleRecentRefreshes(rec, req)
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
