// FilePath: api/resources/api.resource.status.go
package resources

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/itsatony/edgerelay/internal/errors"
	"github.com/itsatony/edgerelay/internal/models"
	"github.com/itsatony/edgerelay/internal/relayservice"
	nuts "github.com/vaudience/go-nuts"
)

var queryDecoder = schema.NewDecoder()

func init() {
	queryDecoder.IgnoreUnknownKeys(true)
}

// StatusHandlers encapsulates the read-only status handlers
type StatusHandlers struct {
	relay *relayservice.RelayService
}

// @Summary Relay health
// @Description Storage and connectivity status of the relay pipeline
// @Tags status
// @Produce json
// @Success 200 {object} relayservice.HealthStatus
// @Router /health [get]
func (h *StatusHandlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	health := h.relay.Health()
	code := http.StatusOK
	if health.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	respondWithJSON(w, code, health)
}

// @Summary Live snapshot
// @Description Latest ingested reading, returned by value with no history
// @Tags status
// @Produce json
// @Success 200 {object} models.Reading
// @Router /snapshot [get]
func (h *StatusHandlers) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.relay.Snapshot())
}

// @Summary Pending records
// @Description Buffered records awaiting relay, for today's bucket unless filtered
// @Tags status
// @Produce json
// @Param bucket query string false "Bucket date key (YYYY-MM-DD)"
// @Param limit query int false "Maximum records to return"
// @Success 200 {array} models.StoredRecord
// @Failure 400 {object} errors.RelayError
// @Router /records [get]
func (h *StatusHandlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var filters models.RecordFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}

	records, err := h.relay.PendingRecords(filters)
	if err != nil {
		if relayErr, ok := err.(*errors.RelayError); ok {
			respondWithError(w, relayErr.WithRequestID(requestID))
			return
		}
		respondWithError(w, errors.NewInternalError("failed to list records", err).WithRequestID(requestID))
		return
	}
	if records == nil {
		records = []models.StoredRecord{}
	}

	respondWithJSON(w, http.StatusOK, records)
}

func respondWithError(w http.ResponseWriter, err *errors.RelayError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	nuts.L.Errorf("[API] %s", err.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
