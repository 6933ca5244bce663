package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/itsatony/edgerelay/api/resources"
	"github.com/itsatony/edgerelay/internal/monitoring"
	"github.com/itsatony/edgerelay/internal/relayservice"
)

// Router serves the relay's local read-only surface: health, the live
// snapshot for the display side, the pending-record listing, and metrics.
type Router struct {
	router    *mux.Router
	resources *resources.Resources
}

// NewRouter creates the status router
func NewRouter(svc *relayservice.RelayService, metrics *monitoring.Service) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		resources: resources.NewResources(svc),
	}
	r.resources.SetMetrics(metrics.Handler())

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", r.resources.HealthCheck).Methods(http.MethodGet)
	api.HandleFunc("/snapshot", r.resources.Status.GetSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/records", r.resources.Status.ListRecords).Methods(http.MethodGet)

	r.router.Handle("/metrics", r.resources.Metrics).Methods(http.MethodGet)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
