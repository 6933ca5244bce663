// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/handlers"
	"github.com/itsatony/edgerelay/api"
	"github.com/itsatony/edgerelay/internal/clock"
	"github.com/itsatony/edgerelay/internal/config"
	"github.com/itsatony/edgerelay/internal/monitoring"
	"github.com/itsatony/edgerelay/internal/relayservice"
	nuts "github.com/vaudience/go-nuts"
)

// Server runs the relay pipeline and the local status HTTP surface
type Server struct {
	config     *config.Config
	srv        *http.Server
	relay      *relayservice.RelayService
	monitoring *monitoring.Service
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	return &Server{
		config:     cfg,
		monitoring: monitoring.NewService(),
	}
}

// Start brings up the pipeline and the status server, then blocks until
// an interrupt triggers graceful shutdown.
func (s *Server) Start() error {
	relay, err := relayservice.New(s.config, clock.NewSystemClock(), s.monitoring)
	if err != nil {
		return fmt.Errorf("failed to initialize relay pipeline: %w", err)
	}
	s.relay = relay

	// Pipeline event handlers
	s.setupEventHandlers()

	router := api.NewRouter(relay, s.monitoring)
	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stdout, router)),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipelineDone := make(chan struct{})
	go func() {
		s.relay.Run(ctx)
		close(pipelineDone)
	}()

	go func() {
		nuts.L.Infof("[Server] Status server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	err = s.waitForShutdown()
	cancel()
	<-pipelineDone
	return err
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

func (s *Server) setupEventHandlers() {
	s.relay.OnEvent("record.relayed", func(path string) {
		s.monitoring.RecordEvent("record_relayed", map[string]string{
			"path": path,
		})
	})

	s.relay.OnEvent("storage.unhealthy", func(root string) {
		nuts.L.Warnf("[Server] Storage device at %s went unhealthy", root)
		s.monitoring.RecordEvent("storage_unhealthy", map[string]string{
			"root": root,
		})
	})

	s.relay.OnEvent("storage.reinitialized", func(root string) {
		nuts.L.Infof("[Server] Storage device at %s recovered", root)
		s.monitoring.RecordEvent("storage_reinitialized", map[string]string{
			"root": root,
		})
	})
}
