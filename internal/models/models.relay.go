// FilePath: internal/models/models.relay.go
package models

import "time"

// ConnectivityState is the tri-state liveness of the broker link
type ConnectivityState string

const (
	// StateDown means the transport itself is not established
	StateDown ConnectivityState = "down"
	// StateBrokerDown means the transport is up but the broker handshake fails
	StateBrokerDown ConnectivityState = "transport_up_broker_down"
	// StateConnected means the subscription is live and messages flow
	StateConnected ConnectivityState = "connected"
)

// UploadOutcome is the per-file result of one relay attempt
type UploadOutcome string

const (
	// UploadAccepted means the remote confirmed success; the local file may be deleted
	UploadAccepted UploadOutcome = "accepted"
	// UploadRejected means the remote was reachable but refused the record
	UploadRejected UploadOutcome = "rejected"
	// UploadUnreachable means no response arrived within the timeout
	UploadUnreachable UploadOutcome = "unreachable"
)

// StoredRecord describes one buffered file awaiting relay
type StoredRecord struct {
	Path      string    `json:"path"`   // relative to the storage root, "<bucket>/<filename>"
	Bucket    string    `json:"bucket"` // date key, "YYYY-MM-DD"
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordFilters narrows a pending-record listing on the status API
type RecordFilters struct {
	Bucket string `schema:"bucket"`
	Limit  int    `schema:"limit"`
}

// Message is one raw inbound payload handed from the broker link to the ingestor
type Message struct {
	Topic   string
	Payload []byte
}
