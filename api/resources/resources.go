// FilePath: api/resources/resources.go
package resources

import (
	"net/http"

	"github.com/itsatony/edgerelay/internal/relayservice"
)

// Resources holds all HTTP resource handlers
type Resources struct {
	Status      *StatusHandlers
	HealthCheck func(w http.ResponseWriter, r *http.Request)
	Metrics     http.Handler
}

// NewResources creates a new Resources instance
func NewResources(svc *relayservice.RelayService) *Resources {
	status := &StatusHandlers{relay: svc}
	return &Resources{
		Status:      status,
		HealthCheck: status.GetHealth,
	}
}

// SetMetrics sets the metrics handler
func (r *Resources) SetMetrics(h http.Handler) {
	r.Metrics = h
}
