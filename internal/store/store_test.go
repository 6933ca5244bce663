// FilePath: internal/store/store_test.go
package store

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/itsatony/edgerelay/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "buffer"))
	require.NoError(t, err)
	require.True(t, s.Healthy())
	return s
}

func TestNewRequiresRoot(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestEnsureBucketIdempotent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.EnsureBucket("2024-05-01"))
	info, err := os.Stat(filepath.Join(s.Root(), "2024-05-01"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Second call is a no-op, never an error.
	require.NoError(t, s.EnsureBucket("2024-05-01"))
	again, err := os.Stat(filepath.Join(s.Root(), "2024-05-01"))
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), again.ModTime())
}

func TestWriteReadDelete(t *testing.T) {
	s := newTestStore(t)
	payload := []byte(`{"temperature":23.5}`)
	relPath := RecordPath("2024-05-01", "data_2024-05-01_10-15-30.json")

	// Write creates the parent bucket on its own.
	require.NoError(t, s.Write(relPath, payload))

	got, err := s.Read(relPath)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, s.Delete(relPath))

	_, err = s.Read(relPath)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	err = s.Delete(relPath)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestWriteFullCountIsNotPartial(t *testing.T) {
	s := newTestStore(t)
	err := s.Write("2024-05-01/data_2024-05-01_00-00-00.json", []byte("0123456789"))
	require.NoError(t, err)
	assert.False(t, errors.IsPartialWrite(err))
}

// shortWriteFile caps every Write at limit bytes so the verification in
// Store.Write sees a byte count below the input length.
type shortWriteFile struct {
	f     *os.File
	limit int
}

func (w *shortWriteFile) Write(p []byte) (int, error) {
	if len(p) > w.limit {
		p = p[:w.limit]
	}
	n, err := w.f.Write(p)
	if err == nil {
		err = io.ErrShortWrite
	}
	return n, err
}

func (w *shortWriteFile) Close() error {
	return w.f.Close()
}

func TestWriteShortWriteReportsPartial(t *testing.T) {
	s := newTestStore(t)
	orig := openRecordFile
	openRecordFile = func(path string) (io.WriteCloser, error) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
		if err != nil {
			return nil, err
		}
		return &shortWriteFile{f: f, limit: 4}, nil
	}
	defer func() { openRecordFile = orig }()

	relPath := "2024-05-01/data_2024-05-01_10-15-30.json"
	err := s.Write(relPath, []byte("0123456789"))
	require.Error(t, err)
	assert.True(t, errors.IsPartialWrite(err))

	// The partial file stays on disk for the caller's retry policy.
	got, readErr := os.ReadFile(filepath.Join(s.Root(), relPath))
	require.NoError(t, readErr)
	assert.Equal(t, []byte("0123"), got)
}

func TestReadNeverObservesTornOverwrite(t *testing.T) {
	s := newTestStore(t)
	relPath := "2024-05-01/data_2024-05-01_10-15-30.json"
	payload := bytes.Repeat([]byte("x"), 4<<20)
	require.NoError(t, s.Write(relPath, payload))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 25; i++ {
			assert.NoError(t, s.Write(relPath, payload))
		}
	}()

	// Overwrites truncate before rewriting. Readers must get complete
	// record bytes every time, never an empty or half-written file.
	for {
		select {
		case <-done:
			return
		default:
		}
		got, err := s.Read(relPath)
		require.NoError(t, err)
		require.Len(t, got, len(payload))
	}
}

func TestWriteSameSecondOverwrites(t *testing.T) {
	s := newTestStore(t)
	relPath := "2024-05-01/data_2024-05-01_10-15-30.json"

	require.NoError(t, s.Write(relPath, []byte("first")))
	require.NoError(t, s.Write(relPath, []byte("second")))

	got, err := s.Read(relPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)

	records, err := s.List("2024-05-01")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestListMissingBucketIsEmpty(t *testing.T) {
	s := newTestStore(t)
	records, err := s.List("1999-01-01")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListSkipsForeignFiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("2024-05-01/data_2024-05-01_10-15-30.json", []byte("{}")))
	require.NoError(t, s.Write("2024-05-01/data_2024-05-01_10-15-31.json", []byte("{}")))

	// Probe leftovers and foreign files never show up as records.
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "2024-05-01", ".probe_x.tmp"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "2024-05-01", "notes.txt"), []byte("x"), 0644))

	records, err := s.List("2024-05-01")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		assert.Equal(t, "2024-05-01", record.Bucket)
		assert.Contains(t, record.Path, "2024-05-01/data_")
		assert.Equal(t, int64(2), record.Size)
	}
}

func TestListRescansEveryCall(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("2024-05-01/data_2024-05-01_10-15-30.json", []byte("{}")))

	records, err := s.List("2024-05-01")
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.NoError(t, s.Delete(records[0].Path))

	records, err = s.List("2024-05-01")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProbeHealthCleansUpArtifact(t *testing.T) {
	s := newTestStore(t)
	assert.True(t, s.ProbeHealth())

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Empty(t, entries, "probe artifact must be deleted after the probe")
}

func TestProbeHealthDetectsLostRoot(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.RemoveAll(s.Root()))

	assert.False(t, s.ProbeHealth())
	assert.False(t, s.Healthy())
}

func TestReinitRecoversLostRoot(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.RemoveAll(s.Root()))
	require.False(t, s.ProbeHealth())

	require.NoError(t, s.Reinit())
	assert.True(t, s.Healthy())
}

func TestDeleteOlderThan(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("2024-04-28/data_2024-04-28_10-00-00.json", []byte("{}")))
	require.NoError(t, s.Write("2024-04-29/data_2024-04-29_10-00-00.json", []byte("{}")))
	require.NoError(t, s.Write("2024-05-01/data_2024-05-01_10-00-00.json", []byte("{}")))

	deleted, err := s.DeleteOlderThan("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// Aged buckets pruned, current bucket untouched.
	_, err = os.Stat(filepath.Join(s.Root(), "2024-04-28"))
	assert.True(t, os.IsNotExist(err))
	records, err := s.List("2024-05-01")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
