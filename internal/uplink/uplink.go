// FilePath: internal/uplink/uplink.go
package uplink

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/itsatony/edgerelay/internal/clock"
	"github.com/itsatony/edgerelay/internal/errors"
	"github.com/itsatony/edgerelay/internal/models"
	"github.com/itsatony/edgerelay/internal/monitoring"
	nuts "github.com/vaudience/go-nuts"
)

// RelayStore is the slice of the durable store the uplink needs
type RelayStore interface {
	Healthy() bool
	List(dateKey string) ([]models.StoredRecord, error)
	Read(relPath string) ([]byte, error)
	Delete(relPath string) error
}

// Uplink pushes buffered records to the remote object store and deletes
// them locally only after confirmed acceptance. Records the remote rejects
// or that get no response stay on disk for the next cycle; a duplicate PUT
// of identical content is safe because the remote has overwrite semantics.
type Uplink struct {
	client  *resty.Client
	store   RelayStore
	clk     clock.Clock
	metrics *monitoring.Service
	events  *nuts.EventEmitter
	reinit  func()
}

// New creates an uplink against a remote base URL. The timeout bounds every
// PUT; an expired timeout counts as unreachable, never as fatal.
func New(baseURL string, timeout time.Duration, relayStore RelayStore, clk clock.Clock, metrics *monitoring.Service, events *nuts.EventEmitter, reinit func()) *Uplink {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Uplink{
		client:  client,
		store:   relayStore,
		clk:     clk,
		metrics: metrics,
		events:  events,
		reinit:  reinit,
	}
}

// Flush runs one relay cycle over today's bucket and returns the number of
// records the remote accepted. An unhealthy store skips the whole cycle and
// requests reinitialization. A missing bucket is a no-op.
func (u *Uplink) Flush(ctx context.Context) (int, error) {
	if !u.store.Healthy() {
		nuts.L.Warnf("[Uplink] Storage unhealthy, skipping relay cycle and requesting reinit")
		if u.reinit != nil {
			u.reinit()
		}
		return 0, errors.NewStorageError("relay cycle skipped, storage unhealthy", nil)
	}

	bucket := clock.BucketKey(u.clk.Now())
	records, err := u.store.List(bucket)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		u.metrics.SetPendingRecords(0)
		return 0, nil
	}

	relayed := 0
	for _, record := range records {
		data, err := u.store.Read(record.Path)
		if err != nil {
			if errors.IsNotFound(err) {
				// Deleted between listing and read; best-effort snapshot
				// semantics, the listing is not a consistent view.
				continue
			}
			nuts.L.Errorf("[Uplink] Failed to read record %s: %v", record.Path, err)
			continue
		}

		outcome, putErr := u.put(ctx, record.Path, data)
		switch outcome {
		case models.UploadAccepted:
			relayed++
			u.metrics.RecordRelayed()
			u.events.Emit("record.relayed", record.Path)
			if err := u.store.Delete(record.Path); err != nil {
				// Left for the next cycle; the re-upload is idempotent and
				// the delete is retried there.
				u.metrics.UploadFailed("delete")
				nuts.L.Errorf("[Uplink] Relayed but failed to delete %s: %v", record.Path, err)
			}
		case models.UploadRejected:
			u.metrics.UploadFailed("rejected")
			nuts.L.Warnf("[Uplink] Keeping record for next cycle: %v", putErr)
		case models.UploadUnreachable:
			u.metrics.UploadFailed("unreachable")
			nuts.L.Warnf("[Uplink] Keeping record for next cycle: %v", putErr)
		}

		select {
		case <-ctx.Done():
			u.metrics.SetPendingRecords(len(records) - relayed)
			return relayed, ctx.Err()
		default:
		}
	}

	u.metrics.SetPendingRecords(len(records) - relayed)
	nuts.L.Infof("[Uplink] Relay cycle done: %d of %d records accepted", relayed, len(records))
	return relayed, nil
}

// put submits one record. The remote key is the local relative path with no
// leading separator, so the remote mirrors the bucket layout. Any non-accepted
// outcome comes with a typed error naming the cause; only a 200 counts as
// accepted.
func (u *Uplink) put(ctx context.Context, relPath string, data []byte) (models.UploadOutcome, error) {
	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(data).
		Put("/" + strings.TrimLeft(relPath, "/"))
	if err != nil {
		return models.UploadUnreachable, errors.NewUnreachableError("no response for "+relPath, err)
	}
	if resp.StatusCode() == http.StatusOK {
		return models.UploadAccepted, nil
	}
	return models.UploadRejected, errors.NewRejectedError(
		fmt.Sprintf("remote returned %d for %s", resp.StatusCode(), relPath), nil)
}
