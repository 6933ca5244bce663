// FilePath: internal/models/models.reading.go
package models

import (
	"encoding/json"

	"github.com/itsatony/edgerelay/internal/errors"
)

// Default field values for readings whose payload omits a field.
const (
	DefaultFanState  = "OFF"
	DefaultSystemUse = "0%"
)

// Reading is a single decoded sensor message. Field names match the wire
// payload exactly, including the upper-case FAN and System keys the edge
// firmware sends. Immutable once decoded.
type Reading struct {
	Temperature    float64 `json:"temperature"`
	Humidity       float64 `json:"humidity"`
	VibrationCount int     `json:"vibration_count"`
	DHTTemperature float64 `json:"dht_temperature"`
	Fan            string  `json:"FAN"`
	System         string  `json:"System"`
}

// NewReading returns a reading holding every documented default
func NewReading() Reading {
	return Reading{
		Fan:    DefaultFanState,
		System: DefaultSystemUse,
	}
}

// DecodeReading parses an inbound payload. Unknown fields are ignored and
// missing fields keep their documented defaults. Malformed JSON returns a
// decode error and no partial result.
func DecodeReading(payload []byte) (Reading, error) {
	reading := NewReading()
	if err := json.Unmarshal(payload, &reading); err != nil {
		return Reading{}, errors.NewDecodeError("malformed reading payload", err)
	}
	return reading, nil
}
