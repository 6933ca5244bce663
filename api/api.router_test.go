package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/itsatony/edgerelay/internal/clock"
	"github.com/itsatony/edgerelay/internal/config"
	"github.com/itsatony/edgerelay/internal/models"
	"github.com/itsatony/edgerelay/internal/monitoring"
	"github.com/itsatony/edgerelay/internal/relayservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*Router, *relayservice.RelayService) {
	t.Helper()
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(remote.Close)

	cfg := &config.Config{
		Broker: config.BrokerConfig{
			Host:              "127.0.0.1",
			Port:              6379,
			Topic:             "sensors/readings",
			ReconnectInterval: 5 * time.Second,
		},
		Remote: config.RemoteConfig{
			BaseURL:        remote.URL,
			Timeout:        2 * time.Second,
			UploadInterval: 5 * time.Minute,
		},
		Storage: config.StorageConfig{
			Root:                filepath.Join(t.TempDir(), "buffer"),
			HealthCheckInterval: time.Minute,
		},
		Ingest: config.IngestConfig{QueueSize: 16},
	}

	metrics := monitoring.NewService()
	clk := clock.FixedClock{T: time.Date(2024, 5, 1, 10, 15, 30, 0, time.UTC)}
	svc, err := relayservice.New(cfg, clk, metrics)
	require.NoError(t, err)

	return NewRouter(svc, metrics), svc
}

func TestHealthEndpoint(t *testing.T) {
	router, svc := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health relayservice.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.Storage)
	assert.Equal(t, models.StateDown, health.Connectivity)

	// A lost storage device degrades the endpoint.
	require.NoError(t, os.RemoveAll(svc.Store.Root()))
	require.False(t, svc.Store.ProbeHealth())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSnapshotEndpoint(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.Ingest.OnMessage("sensors/readings", []byte(`{"temperature":23.5,"FAN":"ON"}`))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap models.Reading
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 23.5, snap.Temperature)
	assert.Equal(t, "ON", snap.Fan)
	assert.Equal(t, models.DefaultSystemUse, snap.System)
}

func TestRecordsEndpoint(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.Ingest.OnMessage("sensors/readings", []byte(`{"temperature":1}`))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var records []models.StoredRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "2024-05-01/data_2024-05-01_10-15-30.json", records[0].Path)

	// Explicit empty bucket.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/records?bucket=1999-01-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Empty(t, records)

	// Invalid bucket key is a validation error.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/records?bucket=junk", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "edgerelay_readings_ingested_total")
}
