// FilePath: internal/store/store.go
package store

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/itsatony/edgerelay/internal/clock"
	"github.com/itsatony/edgerelay/internal/errors"
	"github.com/itsatony/edgerelay/internal/models"
	"github.com/segmentio/ksuid"
	nuts "github.com/vaudience/go-nuts"
)

const (
	defaultPermissions = 0755
	filePermissions    = 0644
	recordPrefix       = "data_"
	recordExtension    = ".json"
	probePrefix        = ".probe_"
	probeExtension     = ".tmp"
)

var probePayload = []byte("edgerelay health probe")

// openRecordFile creates the file backing a record write. Tests substitute
// it to drive the short-write path.
var openRecordFile = func(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
}

// Store is the durable buffer for inbound records: date-named buckets under a
// single root, one file per record. It exclusively owns everything below the
// root. A mutex serializes writes against deletes so the relay never removes
// a file mid-write.
type Store struct {
	root    string
	mu      sync.Mutex
	healthy atomic.Bool
}

// New creates the store root if missing and runs an initial health probe.
// An inaccessible root is the one fatal condition in the relay, so it is
// returned to the caller instead of degrading silently.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.NewValidationError("storage root is required", nil)
	}
	if err := os.MkdirAll(root, defaultPermissions); err != nil {
		return nil, errors.NewStorageError("failed to create storage root", err)
	}
	s := &Store{root: root}
	if !s.ProbeHealth() {
		return nil, errors.NewStorageError("storage root failed initial health probe", nil)
	}
	return s, nil
}

// Root returns the storage root path
func (s *Store) Root() string {
	return s.root
}

// Healthy reports the result of the most recent probe or reinit
func (s *Store) Healthy() bool {
	return s.healthy.Load()
}

// EnsureBucket creates every missing path segment from the root to the date
// bucket. Existing segments are a no-op, so the call is idempotent and
// resumable after a partial failure.
func (s *Store) EnsureBucket(dateKey string) error {
	current := s.root
	for _, segment := range strings.Split(filepath.ToSlash(dateKey), "/") {
		if segment == "" {
			continue
		}
		current = filepath.Join(current, segment)
		if _, err := os.Stat(current); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return errors.NewStorageError(fmt.Sprintf("failed to stat bucket segment %s", segment), err)
		}
		if err := os.Mkdir(current, defaultPermissions); err != nil && !os.IsExist(err) {
			return errors.NewStorageError(fmt.Sprintf("failed to create bucket segment %s", segment), err)
		}
	}
	return nil
}

// Write persists record bytes at a root-relative path, creating the parent
// bucket if absent. The write is verified against the input length; a short
// write returns a partial-write error and the partial file is left in place
// for the caller's retry policy.
func (s *Store) Write(relPath string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.EnsureBucket(filepath.Dir(relPath)); err != nil {
		return err
	}

	fullPath := filepath.Join(s.root, relPath)
	f, err := openRecordFile(fullPath)
	if err != nil {
		return errors.NewStorageError("failed to create record file", err)
	}

	n, writeErr := f.Write(data)
	closeErr := f.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil || n != len(data) {
		return errors.NewPartialWriteError(
			fmt.Sprintf("wrote %d of %d bytes to %s", n, len(data), relPath), writeErr)
	}
	return nil
}

// Read returns the bytes stored at a root-relative path. It takes the same
// mutex as Write and Delete: the relay reads a record before deciding its
// fate, and that read must never observe a same-path overwrite in flight.
func (s *Store) Read(relPath string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.root, relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("record not found: "+relPath, err)
		}
		return nil, errors.NewStorageError("failed to read record", err)
	}
	return data, nil
}

// Delete removes the record at a root-relative path
func (s *Store) Delete(relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.root, relPath)); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("record not found: "+relPath, err)
		}
		return errors.NewStorageError("failed to delete record", err)
	}
	return nil
}

// List re-scans the bucket for record files on every call; no state is
// cached between listings. A missing bucket yields an empty listing, not
// an error. Probe artifacts and foreign files are skipped.
func (s *Store) List(dateKey string) ([]models.StoredRecord, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, dateKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewStorageError("failed to list bucket "+dateKey, err)
	}

	var records []models.StoredRecord
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, recordPrefix) || !strings.HasSuffix(name, recordExtension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, models.StoredRecord{
			Path:      filepath.ToSlash(filepath.Join(dateKey, name)),
			Bucket:    dateKey,
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
	}
	return records, nil
}

// ProbeHealth writes a uniquely named temp file into the store root, reads
// it back, and deletes it. Any failing step marks the device unhealthy.
// This catches silent device loss (card removed) even while no ingestion
// is happening.
func (s *Store) ProbeHealth() bool {
	probeName := probePrefix + ksuid.New().String() + probeExtension
	probePath := filepath.Join(s.root, probeName)

	healthy := s.runProbe(probePath)
	s.healthy.Store(healthy)
	if !healthy {
		nuts.L.Warnf("[Store] Health probe failed for root %s", s.root)
	}
	return healthy
}

func (s *Store) runProbe(probePath string) bool {
	if err := os.WriteFile(probePath, probePayload, filePermissions); err != nil {
		return false
	}
	// The artifact is removed regardless of probe outcome.
	defer os.Remove(probePath)

	readBack, err := os.ReadFile(probePath)
	if err != nil || !bytes.Equal(readBack, probePayload) {
		return false
	}
	if err := os.Remove(probePath); err != nil {
		return false
	}
	return true
}

// Reinit attempts to bring an unhealthy store back: recreate the root and
// re-probe. Best effort; the caller keeps running either way.
func (s *Store) Reinit() error {
	if err := os.MkdirAll(s.root, defaultPermissions); err != nil {
		s.healthy.Store(false)
		return errors.NewStorageError("failed to recreate storage root", err)
	}
	if !s.ProbeHealth() {
		return errors.NewStorageError("storage root still unhealthy after reinit", nil)
	}
	nuts.L.Infof("[Store] Storage root %s reinitialized", s.root)
	return nil
}

// RecordPath derives the root-relative path for a record arriving at an
// instant: "<bucket>/data_<timestamp>.json".
func RecordPath(bucket string, filename string) string {
	return filepath.ToSlash(filepath.Join(bucket, filename))
}

// DeleteOlderThan removes record files in buckets older than the cutoff
// date key and prunes buckets left empty. Used by the optional retention
// sweep; the relay itself never deletes unrelayed current-day records here.
func (s *Store) DeleteOlderThan(cutoffDateKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, errors.NewStorageError("failed to scan storage root", err)
	}

	deleted := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		bucket := entry.Name()
		if !isBucketName(bucket) || bucket >= cutoffDateKey {
			continue
		}
		bucketPath := filepath.Join(s.root, bucket)
		files, err := os.ReadDir(bucketPath)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(bucketPath, f.Name())); err != nil {
				nuts.L.Errorf("[Store] Failed to remove aged record %s/%s: %v", bucket, f.Name(), err)
				continue
			}
			deleted++
		}
		// Prune the bucket only when nothing is left in it.
		if remaining, err := os.ReadDir(bucketPath); err == nil && len(remaining) == 0 {
			_ = os.Remove(bucketPath)
		}
	}
	return deleted, nil
}

func isBucketName(name string) bool {
	_, err := clock.ParseBucketKey(name)
	return err == nil
}
