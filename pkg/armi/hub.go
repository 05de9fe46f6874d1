// Package armi is the public façade of the runtime: the sole entry point
// a caller imports to accept remote peers, register services, make
// synchronous calls, and publish or subscribe to typed events. Everything
// else under pkg/armi is an implementation detail reached only through
// this type.
package armi

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jabolina/armi/pkg/armi/core"
	"github.com/jabolina/armi/pkg/armi/types"
)

// Hub is the single logical object per process that owns the subscription
// index, the service registry, the peer-connection table, and an optional
// acceptor. A Hub is both a "server" and a "client" simultaneously; there
// is no separate client type.
type Hub struct {
	id  string
	cfg *config
	log logrus.FieldLogger

	registry *core.ServiceRegistry
	index    *core.SubscriptionIndex

	connMu sync.Mutex
	conns  map[string]*core.PeerConnection

	serial uint64

	acceptMu sync.Mutex
	listener net.Listener
	accepted bool

	closeOnce sync.Once
	closed    chan struct{}
}

// New constructs a Hub. It does not start accepting remote clients; call
// AcceptRemoteClients for that.
func New(opts ...HubOption) *Hub {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	id := uuid.NewString()
	return &Hub{
		id:       id,
		cfg:      cfg,
		log:      cfg.log.WithField("hub", id),
		registry: core.NewServiceRegistry(),
		index:    core.NewSubscriptionIndex(),
		conns:    make(map[string]*core.PeerConnection),
		closed:   make(chan struct{}),
	}
}

// ID returns the hub's process-unique identity, used in logging and
// metrics correlation.
func (h *Hub) ID() string { return h.id }

// IsRunnable reports whether the hub is still accepting work: true
// between construction and Shutdown.
func (h *Hub) IsRunnable() bool {
	select {
	case <-h.closed:
		return false
	default:
		return true
	}
}

// AcceptRemoteClients binds a listening socket and starts the acceptor
// goroutine. bindHostPort may be empty to bind all interfaces on
// DefaultPort, or carry an explicit "host:port" (port 0 asks the kernel
// for a free one). accessControl overrides the hub's configured default
// when non-nil.
func (h *Hub) AcceptRemoteClients(bindHostPort string, accessControl types.AccessControl) (int, error) {
	h.acceptMu.Lock()
	defer h.acceptMu.Unlock()

	if !h.IsRunnable() {
		return 0, &types.ArmiError{Kind: types.KindIllegalState, Message: "hub is shut down"}
	}
	if h.accepted {
		return 0, &types.ArmiError{Kind: types.KindIllegalState, Message: "hub is already accepting remote clients"}
	}
	if bindHostPort == "" {
		bindHostPort = portAddr(DefaultPort)
	}
	if accessControl == nil {
		accessControl = h.cfg.accessControl
	}

	ln, err := net.Listen("tcp", bindHostPort)
	if err != nil {
		return 0, types.NewArmiError(types.KindIO, errors.Wrap(err, "armi: bind failed"))
	}
	h.listener = ln
	h.accepted = true

	go h.acceptLoop(ln, accessControl)

	return ln.Addr().(*net.TCPAddr).Port, nil
}

func (h *Hub) acceptLoop(ln net.Listener, accessControl types.AccessControl) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-h.closed:
				return
			default:
				h.log.WithError(err).Warn("acceptor stopped")
				return
			}
		}
		if !accessControl(conn.RemoteAddr()) {
			h.log.WithField("remote", conn.RemoteAddr()).Warn("access control rejected inbound connection")
			_ = conn.Close()
			continue
		}
		h.adopt(conn, conn.RemoteAddr().String())
	}
}

// adopt wraps an established net.Conn (inbound or outbound) as a
// PeerConnection and installs it in the connection table, converging two
// racing dialers on one connection per hostPort.
func (h *Hub) adopt(conn net.Conn, hostPort string) *core.PeerConnection {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if existing, ok := h.conns[hostPort]; ok {
		_ = conn.Close()
		return existing
	}
	pc := core.New(conn, hostPort, h, h.registry, h.log, h.cfg.metrics, h.cfg.callTimeout)
	h.conns[hostPort] = pc
	return pc
}

// dialOrReuse returns the peer connection to hostPort, dialing a new TCP
// connection only if none is already in the table.
func (h *Hub) dialOrReuse(hostPort string) (*core.PeerConnection, error) {
	h.connMu.Lock()
	if pc, ok := h.conns[hostPort]; ok {
		h.connMu.Unlock()
		return pc, nil
	}
	h.connMu.Unlock()

	conn, err := net.DialTimeout("tcp", hostPort, h.cfg.connectTimeout)
	if err != nil {
		return nil, types.NewArmiError(types.KindIO, errors.Wrapf(err, "armi: dial %s failed", hostPort))
	}
	return h.adopt(conn, hostPort), nil
}

// Shutdown tears the hub down terminally: closes the acceptor, shuts down
// every peer connection (which cascades caller and subscriber cleanup per
// connection), and clears the connection table. Idempotent.
func (h *Hub) Shutdown() {
	h.closeOnce.Do(func() {
		close(h.closed)

		h.acceptMu.Lock()
		if h.listener != nil {
			_ = h.listener.Close()
		}
		h.acceptMu.Unlock()

		h.connMu.Lock()
		conns := make([]*core.PeerConnection, 0, len(h.conns))
		for _, pc := range h.conns {
			conns = append(conns, pc)
		}
		h.conns = make(map[string]*core.PeerConnection)
		h.connMu.Unlock()

		for _, pc := range conns {
			pc.Shutdown("hub is shutting down")
		}

		h.registry.Clear()
		h.index.Clear()
		if h.cfg.metrics != nil {
			h.cfg.metrics.SubscriptionsActive.Set(0)
		}

		h.log.Info("hub shut down")
	})
}

// RegisterService installs descriptor under name, or removes the existing
// entry when descriptor is nil. The hub must already be accepting remote
// clients: a service only makes sense on a hub that peers can reach.
func (h *Hub) RegisterService(name string, descriptor *types.ServiceDescriptor) error {
	h.acceptMu.Lock()
	accepted := h.accepted
	h.acceptMu.Unlock()
	if !accepted {
		return &types.ArmiError{Kind: types.KindIllegalState, Message: "cannot register a service before AcceptRemoteClients"}
	}
	h.registry.Register(name, descriptor)
	return nil
}

// Call performs a synchronous invocation against peer: it dials or
// reuses the connection, allocates the next serial from the
// hub-scoped atomic counter, and blocks until the response arrives, ctx is
// cancelled, or the configured timeout elapses.
func (h *Hub) Call(ctx context.Context, peer, service, method string, args []types.Value) (types.Value, error) {
	pc, err := h.dialOrReuse(peer)
	if err != nil {
		return nil, err
	}
	serial := atomic.AddUint64(&h.serial, 1)
	value, armiErr := pc.Invoke(ctx, serial, service, method, args)
	if armiErr != nil {
		return nil, armiErr
	}
	return value, nil
}

// portAddr formats a bare port number as a bind address on all
// interfaces.
func portAddr(port int) string {
	return (&net.TCPAddr{Port: port}).String()
}
