// FilePath: internal/monitoring/monitoring.go
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	nuts "github.com/vaudience/go-nuts"
)

// Service provides monitoring functionality
type Service struct {
	registry *prometheus.Registry

	ingested       prometheus.Counter
	decodeFailures prometheus.Counter
	stored         prometheus.Counter
	storeFailures  prometheus.Counter
	relayed        prometheus.Counter
	uploadFailures *prometheus.CounterVec
	reinitAttempts prometheus.Counter
	reconnects     prometheus.Counter

	storageHealthy prometheus.Gauge
	connectivity   prometheus.Gauge
	pendingRecords prometheus.Gauge
}

// NewService creates a new monitoring service with its own registry so
// repeated construction (tests) never double-registers collectors.
func NewService() *Service {
	s := &Service{
		registry: prometheus.NewRegistry(),
		ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgerelay_readings_ingested_total",
			Help: "Readings decoded and applied to the live snapshot.",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgerelay_decode_failures_total",
			Help: "Inbound payloads dropped as malformed.",
		}),
		stored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgerelay_records_stored_total",
			Help: "Records durably written to the local buffer.",
		}),
		storeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgerelay_store_failures_total",
			Help: "Local buffer writes that failed or were skipped unhealthy.",
		}),
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgerelay_records_relayed_total",
			Help: "Records accepted by the remote store and deleted locally.",
		}),
		uploadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgerelay_upload_failures_total",
			Help: "Upload attempts that left the record for the next cycle.",
		}, []string{"outcome"}),
		reinitAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgerelay_storage_reinit_attempts_total",
			Help: "Best-effort storage reinitialization attempts.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgerelay_broker_reconnects_total",
			Help: "Broker subscription (re-)establishments.",
		}),
		storageHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edgerelay_storage_healthy",
			Help: "1 while the last storage health probe succeeded.",
		}),
		connectivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edgerelay_connectivity_state",
			Help: "Broker link state: 0 down, 1 transport up, 2 connected.",
		}),
		pendingRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edgerelay_pending_records",
			Help: "Records left in the current bucket after the last relay cycle.",
		}),
	}

	s.registry.MustRegister(
		s.ingested, s.decodeFailures, s.stored, s.storeFailures,
		s.relayed, s.uploadFailures, s.reinitAttempts, s.reconnects,
		s.storageHealthy, s.connectivity, s.pendingRecords,
	)
	return s
}

// Handler serves the metrics endpoint
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *Service) ReadingIngested()   { s.ingested.Inc() }
func (s *Service) DecodeFailed()      { s.decodeFailures.Inc() }
func (s *Service) RecordStored()      { s.stored.Inc() }
func (s *Service) StoreFailed()       { s.storeFailures.Inc() }
func (s *Service) RecordRelayed()     { s.relayed.Inc() }
func (s *Service) ReinitAttempted()   { s.reinitAttempts.Inc() }
func (s *Service) BrokerReconnected() { s.reconnects.Inc() }

// SetPendingRecords updates the post-cycle backlog gauge
func (s *Service) SetPendingRecords(n int) {
	s.pendingRecords.Set(float64(n))
}

// UploadFailed records a non-accepted outcome by kind ("rejected", "unreachable", "delete")
func (s *Service) UploadFailed(outcome string) {
	s.uploadFailures.WithLabelValues(outcome).Inc()
}

// SetStorageHealthy mirrors the store health flag into the gauge
func (s *Service) SetStorageHealthy(healthy bool) {
	if healthy {
		s.storageHealthy.Set(1)
	} else {
		s.storageHealthy.Set(0)
	}
}

// SetConnectivity mirrors the supervisor state into the gauge
func (s *Service) SetConnectivity(state float64) {
	s.connectivity.Set(state)
}

// RecordEvent records a monitored event with labels
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	nuts.L.Infof("[Monitoring] Event %s recorded with labels: %v", eventName, labels)
}
