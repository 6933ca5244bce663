// FilePath: internal/broker/broker.go
package broker

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	relayerrors "github.com/itsatony/edgerelay/internal/errors"
	"github.com/itsatony/edgerelay/internal/models"
	"github.com/itsatony/edgerelay/internal/monitoring"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"
)

const pingTimeout = 5 * time.Second

// Options configures the broker link
type Options struct {
	Addr              string
	Password          string
	DB                int
	Topic             string
	ReconnectInterval time.Duration
}

// Supervisor owns the broker link state machine. It establishes the
// transport, performs the broker handshake on a bounded interval, services
// the topic subscription while connected, and forwards each message into
// the ingest queue. Ingestion only sees messages while the state is
// connected; the uplink runs independently of it.
type Supervisor struct {
	opts    Options
	client  *redis.Client
	metrics *monitoring.Service
	sink    func(models.Message) bool

	mu    sync.RWMutex
	state models.ConnectivityState
}

// New creates a supervisor. sink receives every message observed on the
// topic and reports whether it was queued.
func New(opts Options, sink func(models.Message) bool, metrics *monitoring.Service) *Supervisor {
	return &Supervisor{
		opts:    opts,
		metrics: metrics,
		sink:    sink,
		state:   models.StateDown,
	}
}

// State returns the current link state
func (s *Supervisor) State() models.ConnectivityState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Supervisor) setState(state models.ConnectivityState) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()

	if changed {
		nuts.L.Infof("[Broker] Link state: %s", state)
	}
	switch state {
	case models.StateDown:
		s.metrics.SetConnectivity(0)
	case models.StateBrokerDown:
		s.metrics.SetConnectivity(1)
	case models.StateConnected:
		s.metrics.SetConnectivity(2)
	}
}

// Run drives the state machine until the context is cancelled. Transitions
// happen at most once per reconnect interval except that a successful step
// advances immediately, so startup does not burn a full interval per state.
func (s *Supervisor) Run(ctx context.Context) {
	s.client = redis.NewClient(&redis.Options{
		Addr:     s.opts.Addr,
		Password: s.opts.Password,
		DB:       s.opts.DB,
	})
	defer s.client.Close()

	ticker := time.NewTicker(s.opts.ReconnectInterval)
	defer ticker.Stop()

	for {
		advanced := s.step(ctx)
		if ctx.Err() != nil {
			s.setState(models.StateDown)
			return
		}
		if advanced {
			continue
		}
		select {
		case <-ctx.Done():
			s.setState(models.StateDown)
			return
		case <-ticker.C:
		}
	}
}

// step advances the state machine one transition. Returns true when the
// state moved forward and the next step should run without waiting.
func (s *Supervisor) step(ctx context.Context) bool {
	switch s.State() {
	case models.StateDown:
		err := s.ping(ctx)
		if err == nil || !isTransportError(err) {
			// The transport answered; whether the broker handshake works
			// is the next state's concern.
			s.setState(models.StateBrokerDown)
			return true
		}
		return false

	case models.StateBrokerDown:
		err := s.ping(ctx)
		if err == nil {
			s.setState(models.StateConnected)
			return true
		}
		if isTransportError(err) {
			s.setState(models.StateDown)
		}
		return false

	case models.StateConnected:
		s.serveSubscription(ctx)
		return false
	}
	return false
}

// serveSubscription consumes the topic until the link drops or the context
// ends. The periodic ping is the liveness check; its error classification
// decides which state the link falls back to.
func (s *Supervisor) serveSubscription(ctx context.Context) {
	pubsub := s.client.Subscribe(ctx, s.opts.Topic)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		s.degrade(err)
		return
	}
	s.metrics.BrokerReconnected()
	nuts.L.Infof("[Broker] Subscribed to topic %s", s.opts.Topic)

	ch := pubsub.Channel()
	liveness := time.NewTicker(s.opts.ReconnectInterval)
	defer liveness.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				s.degrade(errors.New("subscription channel closed"))
				return
			}
			s.sink(models.Message{Topic: msg.Channel, Payload: []byte(msg.Payload)})
		case <-liveness.C:
			if err := s.ping(ctx); err != nil {
				s.degrade(err)
				return
			}
		}
	}
}

func (s *Supervisor) degrade(err error) {
	nuts.L.Warnf("[Broker] %v", relayerrors.NewLinkDownError("broker link dropped", err))
	if isTransportError(err) {
		s.setState(models.StateDown)
	} else {
		s.setState(models.StateBrokerDown)
	}
}

func (s *Supervisor) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.client.Ping(pingCtx).Err()
}

// isTransportError separates network-level failures (dial refused, reset,
// timeout) from broker-level refusals (auth, loading). The former means the
// transport is down; the latter means it is up but the handshake failed.
func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
