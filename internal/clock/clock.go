// FilePath: internal/clock/clock.go
package clock

import (
	"fmt"
	"time"
)

const (
	bucketFormat    = "2006-01-02"
	timestampFormat = "2006-01-02_15-04-05"
)

// Clock provides the current time for bucket and record naming. How the
// underlying source stays in sync (NTP, RTC, fallback) is outside the relay.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local wall clock
type SystemClock struct{}

func NewSystemClock() SystemClock {
	return SystemClock{}
}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always reports the same instant, for tests
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time {
	return c.T
}

// BucketKey derives the date bucket name for an instant, e.g. "2024-05-01"
func BucketKey(t time.Time) string {
	return t.Format(bucketFormat)
}

// RecordFilename derives the record file name for an instant, second
// resolution. Two records in the same second share a name and the later
// one overwrites the earlier.
func RecordFilename(t time.Time) string {
	return fmt.Sprintf("data_%s.json", t.Format(timestampFormat))
}

// ParseBucketKey parses a date-bucket name back into a time, rejecting
// anything that is not a "YYYY-MM-DD" directory.
func ParseBucketKey(key string) (time.Time, error) {
	return time.Parse(bucketFormat, key)
}
