// FilePath: internal/ingest/ingest.go
package ingest

import (
	"context"
	"sync"

	"github.com/itsatony/edgerelay/internal/clock"
	"github.com/itsatony/edgerelay/internal/models"
	"github.com/itsatony/edgerelay/internal/monitoring"
	"github.com/itsatony/edgerelay/internal/store"
	nuts "github.com/vaudience/go-nuts"
)

// RecordStore is the slice of the durable store the ingestor needs
type RecordStore interface {
	Healthy() bool
	Write(relPath string, data []byte) error
}

// Ingestor consumes inbound messages from a bounded queue, maintains the
// live snapshot, and persists each raw payload into the durable buffer.
// The transport side pushes with Enqueue; Run drains.
type Ingestor struct {
	store   RecordStore
	clk     clock.Clock
	metrics *monitoring.Service
	events  *nuts.EventEmitter
	reinit  func()

	queue chan models.Message

	mu       sync.RWMutex
	snapshot models.Reading
}

// New creates an ingestor. reinit is the best-effort storage recovery
// trigger invoked when a message arrives while the store is unhealthy.
func New(recordStore RecordStore, clk clock.Clock, metrics *monitoring.Service, events *nuts.EventEmitter, queueSize int, reinit func()) *Ingestor {
	return &Ingestor{
		store:    recordStore,
		clk:      clk,
		metrics:  metrics,
		events:   events,
		reinit:   reinit,
		queue:    make(chan models.Message, queueSize),
		snapshot: models.NewReading(),
	}
}

// Enqueue hands a raw message to the ingestor without blocking the
// transport. Returns false if the queue is full and the message was dropped.
func (i *Ingestor) Enqueue(msg models.Message) bool {
	select {
	case i.queue <- msg:
		return true
	default:
		nuts.L.Warnf("[Ingest] Queue full, dropping message on topic %s", msg.Topic)
		return false
	}
}

// Run drains the queue until the context is cancelled
func (i *Ingestor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-i.queue:
			i.OnMessage(msg.Topic, msg.Payload)
		}
	}
}

// OnMessage processes one inbound payload: decode, snapshot, persist.
// A decode failure drops the message with no side effects. Persistence
// failure never rolls back the snapshot; the snapshot reflects the latest
// reading seen, independent of what made it to disk.
func (i *Ingestor) OnMessage(topic string, payload []byte) {
	reading, err := models.DecodeReading(payload)
	if err != nil {
		i.metrics.DecodeFailed()
		nuts.L.Errorf("[Ingest] Dropping malformed payload on topic %s: %v", topic, err)
		return
	}

	i.mu.Lock()
	i.snapshot = reading
	i.mu.Unlock()
	i.metrics.ReadingIngested()

	if !i.store.Healthy() {
		i.metrics.StoreFailed()
		nuts.L.Warnf("[Ingest] Storage unhealthy, skipping persistence and requesting reinit")
		if i.reinit != nil {
			i.reinit()
		}
		return
	}

	now := i.clk.Now()
	relPath := store.RecordPath(clock.BucketKey(now), clock.RecordFilename(now))
	if err := i.store.Write(relPath, payload); err != nil {
		i.metrics.StoreFailed()
		nuts.L.Errorf("[Ingest] Failed to persist record %s: %v", relPath, err)
		return
	}

	i.metrics.RecordStored()
	i.events.Emit("record.stored", relPath)
	nuts.L.Debugf("[Ingest] Stored record %s", relPath)
}

// Snapshot returns the latest reading by value; the display side never
// shares mutable state with the ingestor.
func (i *Ingestor) Snapshot() models.Reading {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.snapshot
}
