// FilePath: internal/relayservice/relayservice.go
package relayservice

import (
	"context"
	"sync"
	"time"

	"github.com/itsatony/edgerelay/internal/broker"
	"github.com/itsatony/edgerelay/internal/clock"
	"github.com/itsatony/edgerelay/internal/config"
	"github.com/itsatony/edgerelay/internal/errors"
	"github.com/itsatony/edgerelay/internal/ingest"
	"github.com/itsatony/edgerelay/internal/models"
	"github.com/itsatony/edgerelay/internal/monitoring"
	"github.com/itsatony/edgerelay/internal/store"
	"github.com/itsatony/edgerelay/internal/uplink"
	nuts "github.com/vaudience/go-nuts"
)

// RelayService composes the relay pipeline: durable store, ingestor,
// uplink, and the broker supervisor, plus the periodic work that ties them
// together. Each periodic concern runs on its own goroutine and stops with
// the service context; the store's own mutex keeps relay deletes and
// ingest writes of the same path mutually exclusive.
type RelayService struct {
	Store      *store.Store
	Ingest     *ingest.Ingestor
	Uplink     *uplink.Uplink
	Broker     *broker.Supervisor
	Monitoring *monitoring.Service

	cfg    *config.Config
	clk    clock.Clock
	events *nuts.EventEmitter
}

// New wires the pipeline from configuration. A storage root that cannot be
// initialized is the one fatal startup condition and is returned here.
func New(cfg *config.Config, clk clock.Clock, metrics *monitoring.Service) (*RelayService, error) {
	durable, err := store.New(cfg.Storage.Root)
	if err != nil {
		return nil, err
	}
	metrics.SetStorageHealthy(durable.Healthy())

	svc := &RelayService{
		Store:      durable,
		Monitoring: metrics,
		cfg:        cfg,
		clk:        clk,
		events:     nuts.NewEventEmitter(),
	}

	svc.Ingest = ingest.New(durable, clk, metrics, svc.events, cfg.Ingest.QueueSize, svc.reinitStorage)
	svc.Uplink = uplink.New(cfg.Remote.BaseURL, cfg.Remote.Timeout, durable, clk, metrics, svc.events, svc.reinitStorage)
	svc.Broker = broker.New(broker.Options{
		Addr:              cfg.Broker.Addr(),
		Password:          cfg.Broker.Password,
		DB:                cfg.Broker.DB,
		Topic:             cfg.Broker.Topic,
		ReconnectInterval: cfg.Broker.ReconnectInterval,
	}, svc.Ingest.Enqueue, metrics)

	return svc, nil
}

// Run starts the pipeline goroutines and blocks until the context ends
func (s *RelayService) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Broker.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Ingest.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runUploadLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runHealthLoop(ctx)
	}()

	if s.cfg.Storage.RetentionDays > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runRetentionLoop(ctx)
		}()
	}

	nuts.L.Infof("[Relay] Pipeline started (upload every %v, health probe every %v)",
		s.cfg.Remote.UploadInterval, s.cfg.Storage.HealthCheckInterval)
	wg.Wait()
	nuts.L.Infof("[Relay] Pipeline stopped")
}

// runUploadLoop fires the relay cycle on the fixed upload interval
func (s *RelayService) runUploadLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Remote.UploadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.Uplink.Flush(ctx)
			if err != nil && !errors.IsStorageUnavailable(err) {
				nuts.L.Errorf("[Relay] Relay cycle failed: %v", err)
			}
			if count > 0 {
				nuts.L.Infof("[Relay] Relayed %d records", count)
			}
		}
	}
}

// runHealthLoop probes the storage device on the fixed health interval.
// The probe exists to catch silent device loss while nothing is ingesting.
func (s *RelayService) runHealthLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Storage.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wasHealthy := s.Store.Healthy()
			healthy := s.Store.ProbeHealth()
			s.Monitoring.SetStorageHealthy(healthy)
			if wasHealthy && !healthy {
				s.events.Emit("storage.unhealthy", s.Store.Root())
			}
		}
	}
}

// runRetentionLoop sweeps aged, already-relayed buckets once a day
func (s *RelayService) runRetentionLoop(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := clock.BucketKey(s.clk.Now().AddDate(0, 0, -s.cfg.Storage.RetentionDays))
			deleted, err := s.Store.DeleteOlderThan(cutoff)
			if err != nil {
				nuts.L.Errorf("[Relay] Retention sweep failed: %v", err)
				continue
			}
			if deleted > 0 {
				nuts.L.Infof("[Relay] Retention sweep removed %d records older than %s", deleted, cutoff)
			}
		}
	}
}

// reinitStorage is the best-effort recovery trigger shared by the ingestor
// and the uplink.
func (s *RelayService) reinitStorage() {
	s.Monitoring.ReinitAttempted()
	if err := s.Store.Reinit(); err != nil {
		nuts.L.Errorf("[Relay] Storage reinit failed: %v", err)
	} else {
		s.events.Emit("storage.reinitialized", s.Store.Root())
	}
	s.Monitoring.SetStorageHealthy(s.Store.Healthy())
}

// OnEvent registers a callback for pipeline events
// ("record.stored", "record.relayed", "storage.unhealthy", "storage.reinitialized")
func (s *RelayService) OnEvent(event string, handler func(id string)) {
	s.events.On(event, "relay_handler", func(args ...interface{}) {
		if len(args) > 0 {
			if id, ok := args[0].(string); ok {
				handler(id)
			}
		}
	})
}

// Snapshot returns the latest reading by value for the display side
func (s *RelayService) Snapshot() models.Reading {
	return s.Ingest.Snapshot()
}

// HealthStatus is the status surface summary
type HealthStatus struct {
	Status       string                   `json:"status"`
	Version      string                   `json:"version"`
	Storage      bool                     `json:"storage_healthy"`
	Connectivity models.ConnectivityState `json:"connectivity"`
}

// Health summarizes the pipeline for the status API
func (s *RelayService) Health() HealthStatus {
	status := "ok"
	if !s.Store.Healthy() {
		status = "degraded"
	}
	return HealthStatus{
		Status:       status,
		Version:      nuts.GetVersion(),
		Storage:      s.Store.Healthy(),
		Connectivity: s.Broker.State(),
	}
}

// PendingRecords lists buffered records awaiting relay. An empty bucket
// filter means today's bucket.
func (s *RelayService) PendingRecords(filters models.RecordFilters) ([]models.StoredRecord, error) {
	bucket := filters.Bucket
	if bucket == "" {
		bucket = clock.BucketKey(s.clk.Now())
	} else if _, err := clock.ParseBucketKey(bucket); err != nil {
		return nil, errors.NewValidationError("invalid bucket key", err).
			WithDetails(map[string]interface{}{"bucket": bucket})
	}

	records, err := s.Store.List(bucket)
	if err != nil {
		return nil, err
	}
	if filters.Limit > 0 && len(records) > filters.Limit {
		records = records[:filters.Limit]
	}
	return records, nil
}
