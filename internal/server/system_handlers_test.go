package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/fintracker/internal/database"
)

func newTestSystemHandlers() *SystemHandlers {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewSystemHandlers(log, nil)
}

func TestSystemHandlers_HandleHealth(t *testing.T) {
	h := newTestSystemHandlers()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.HandleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
	assert.NotEmpty(t, response["timestamp"])
}

func TestSystemHandlers_HandleHealth_ChecksDatabase(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "market.db"),
		Profile: database.ProfileStandard,
		Name:    "market",
	})
	require.NoError(t, err)

	h := NewSystemHandlers(log, db)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])

	// A closed connection fails the check
	require.NoError(t, db.Close())

	rec = httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	h := newTestSystemHandlers()

	req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
	rec := httptest.NewRecorder()

	h.HandleSystemStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data, "uptime_seconds")
	assert.Contains(t, data, "cpu_percent")
	assert.Contains(t, data, "memory_percent")

	metadata, ok := response["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, metadata["timestamp"])
}
