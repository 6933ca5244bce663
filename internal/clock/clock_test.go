// FilePath: internal/clock/clock_test.go
package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketKey(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 15, 30, 0, time.UTC)
	assert.Equal(t, "2024-05-01", BucketKey(at))
}

func TestRecordFilename(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 15, 30, 0, time.UTC)
	assert.Equal(t, "data_2024-05-01_10-15-30.json", RecordFilename(at))
}

func TestRecordFilenameSecondResolution(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 15, 30, 0, time.UTC)
	// Sub-second arrivals share a name; the later write overwrites.
	assert.Equal(t, RecordFilename(base), RecordFilename(base.Add(500*time.Millisecond)))
	assert.NotEqual(t, RecordFilename(base), RecordFilename(base.Add(time.Second)))
}

func TestParseBucketKey(t *testing.T) {
	parsed, err := ParseBucketKey("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, 2024, parsed.Year())
	assert.Equal(t, time.May, parsed.Month())

	_, err = ParseBucketKey("not-a-bucket")
	assert.Error(t, err)

	_, err = ParseBucketKey("2024-5-1")
	assert.Error(t, err)
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 15, 30, 0, time.UTC)
	clk := FixedClock{T: at}
	assert.Equal(t, at, clk.Now())
	assert.Equal(t, at, clk.Now())
}
