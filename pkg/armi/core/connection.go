package core

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jabolina/armi/pkg/armi/metrics"
	"github.com/jabolina/armi/pkg/armi/types"
	"github.com/jabolina/armi/pkg/armi/wire"
)

// Dispatcher is what a PeerConnection needs from the hub that owns it: a
// back-reference narrow enough to avoid the hub package importing core
// and core importing the hub. The hub implements this interface; the
// connection never sees anything else.
type Dispatcher interface {
	// HandleSubscriberRemote installs or cancels a subscription described
	// by payload, binding any newly-installed remote subscriber to conn.
	HandleSubscriberRemote(conn *PeerConnection, payload []byte)
	// HandleCall spawns an invocation worker for an inbound call.
	HandleCall(conn *PeerConnection, req types.CallRequest)
	// HandlePublish fans an inbound application envelope out to local and
	// remote subscribers.
	HandlePublish(env types.Envelope)
	// RemoveConnection evicts conn from the hub's connection table and
	// cascades subscriber cleanup. Called at most once per connection.
	RemoveConnection(conn *PeerConnection, reason string)
}

// PeerConnection owns exactly one socket to one remote peer and carries
// all traffic to and from it. It is symmetric: identical whether
// this process dialed the peer or accepted its inbound connection.
type PeerConnection struct {
	hostPort string
	conn     net.Conn
	br       *bufio.Reader

	writeMu sync.Mutex
	bw      *bufio.Writer

	coordinator *CallCoordinator
	registry    *ServiceRegistry
	dispatcher  Dispatcher

	log logrus.FieldLogger
	m   *metrics.Metrics

	callTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps conn as a peer connection identified by hostPort and starts
// its receive loop. The caller (the hub) is responsible for registering
// the returned connection in its connection table before any other
// goroutine can observe it.
func New(conn net.Conn, hostPort string, dispatcher Dispatcher, registry *ServiceRegistry, log logrus.FieldLogger, m *metrics.Metrics, callTimeout time.Duration) *PeerConnection {
	pc := &PeerConnection{
		hostPort:    hostPort,
		conn:        conn,
		br:          bufio.NewReader(conn),
		bw:          bufio.NewWriter(conn),
		coordinator: NewCallCoordinator(),
		registry:    registry,
		dispatcher:  dispatcher,
		log:         log.WithFields(logrus.Fields{"component": "peer", "peer": hostPort}),
		m:           m,
		callTimeout: callTimeout,
		closed:      make(chan struct{}),
	}
	if m != nil {
		m.PeerConnections.Inc()
	}
	go pc.receiveLoop()
	return pc
}

// HostPort returns the remote identity this connection was created with.
func (p *PeerConnection) HostPort() string { return p.hostPort }

// Transmit writes env to the peer, serialized against every other writer
// on this connection via the write mutex.
func (p *PeerConnection) Transmit(env types.Envelope) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := wire.EncodeEnvelope(p.bw, env); err != nil {
		return errorsWrapIO(err)
	}
	return nil
}

// respond writes the SynchronousResponse for resp. A result value that
// cannot be encoded in the wire grammar is downgraded to an
// invocationError response, so the caller is released instead of waiting
// out its timeout.
func (p *PeerConnection) respond(resp types.CallResponse) error {
	payload, err := encodeCallResponse(resp)
	if err != nil {
		if resp.Err != nil {
			return err
		}
		return p.respond(types.CallResponse{Serial: resp.Serial, Err: types.NewArmiError(types.KindInvocation, err)})
	}
	return p.Transmit(types.Envelope{Type: types.TypeSynchronousResponse, Payload: payload})
}

// Invoke sends a SynchronousCall and blocks until the paired response
// arrives, the context is cancelled, or the call timeout elapses. It
// always releases the coordinator's bookkeeping for serial before
// returning, win or lose.
func (p *PeerConnection) Invoke(ctx context.Context, serial uint64, service, method string, args []types.Value) (types.Value, *types.ArmiError) {
	timeout := p.callTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	watchdogCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slot := p.coordinator.Register(serial, cancel)
	p.log.WithField("serial", serial).Debugf("invoking %s.%s", service, method)

	payload, err := encodeCallRequest(types.CallRequest{Serial: serial, Service: service, Method: method, Args: args})
	if err != nil {
		p.coordinator.Forget(serial)
		return nil, types.NewArmiError(types.KindInvocation, err)
	}

	if p.m != nil {
		p.m.CallsInflight.Inc()
		defer p.m.CallsInflight.Dec()
	}
	start := time.Now()
	defer func() {
		if p.m != nil {
			p.m.CallDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if err := p.Transmit(types.Envelope{Type: types.TypeSynchronousCall, Payload: payload}); err != nil {
		p.coordinator.Forget(serial)
		return nil, types.NewArmiError(types.KindIO, err)
	}

	select {
	case resp := <-slot:
		if resp.Err != nil {
			return nil, resp.Err
		}
		return resp.Value, nil
	case <-watchdogCtx.Done():
		p.coordinator.Forget(serial)
		// The coordinator delivers to the slot before cancelling the
		// watchdog, so a response already in flight when the context wakes
		// us is sitting in the buffered slot: take it over the
		// cancellation signal.
		select {
		case resp := <-slot:
			if resp.Err != nil {
				return nil, resp.Err
			}
			return resp.Value, nil
		default:
		}
		if watchdogCtx.Err() == context.Canceled {
			return nil, &types.ArmiError{Kind: types.KindIO, Message: "call interrupted waiting for response from " + p.hostPort}
		}
		if p.m != nil {
			p.m.CallTimeoutsTotal.Inc()
		}
		return nil, &types.ArmiError{Kind: types.KindTimeout, Message: "call timed out waiting for response from " + p.hostPort}
	}
}

// receiveLoop reads one envelope at a time and routes it by type. Any
// terminal read error (EOF, corruption, an unexpected I/O failure) ends
// the loop and tears the connection down.
func (p *PeerConnection) receiveLoop() {
	for {
		env, err := wire.DecodeEnvelope(p.br)
		if err != nil {
			reason := "peer closed connection"
			if err != io.EOF {
				reason = "protocol error: " + err.Error()
			}
			p.shutdown(reason)
			return
		}

		switch env.Type {
		case types.TypeSubscriberRemote:
			p.dispatcher.HandleSubscriberRemote(p, env.Payload)
		case types.TypeSynchronousCall:
			req, err := decodeCallRequest(env.Payload)
			if err != nil {
				p.log.WithError(err).Warn("dropping malformed SynchronousCall")
				continue
			}
			p.dispatcher.HandleCall(p, req)
		case types.TypeSynchronousResponse:
			resp, err := decodeCallResponse(env.Payload)
			if err != nil {
				p.log.WithError(err).Warn("dropping malformed SynchronousResponse")
				continue
			}
			p.coordinator.Complete(resp)
		case types.TypeArmiException:
			if v, err := types.DecodeValueFromBytes(env.Payload); err == nil {
				if ae, err := types.ArmiErrorFromValue(v); err == nil && ae != nil {
					p.log.WithField("kind", ae.Kind).Warnf("peer reported error: %s", ae.Message)
					continue
				}
			}
			p.log.Warn("dropping malformed ArmiException envelope")
		default:
			p.dispatcher.HandlePublish(env)
		}
	}
}

// Shutdown closes the socket, wakes every blocked caller with reason, and
// asks the dispatcher to evict subscribers bound to this connection.
// Idempotent: safe to call from both the receive loop and an explicit
// hub-initiated teardown.
func (p *PeerConnection) Shutdown(reason string) {
	p.shutdown(reason)
}

func (p *PeerConnection) shutdown(reason string) {
	p.closeOnce.Do(func() {
		close(p.closed)
		_ = p.conn.Close()
		if p.m != nil {
			p.m.PeerConnections.Dec()
		}
		p.coordinator.FailAll(&types.ArmiError{Kind: types.KindIO, Message: reason})
		p.dispatcher.RemoveConnection(p, reason)
		p.log.Infof("connection closed: %s", reason)
	})
}

// Done reports when this connection has been torn down, for callers that
// need to wait without polling.
func (p *PeerConnection) Done() <-chan struct{} { return p.closed }

func encodeCallRequest(r types.CallRequest) ([]byte, error) {
	return encodeWith(func(w *countingBuffer) error { return types.EncodeCallRequest(w, r) })
}

func decodeCallRequest(b []byte) (types.CallRequest, error) {
	return types.DecodeCallRequest(newByteReader(b))
}

func encodeCallResponse(r types.CallResponse) ([]byte, error) {
	return encodeWith(func(w *countingBuffer) error { return types.EncodeCallResponse(w, r) })
}

func decodeCallResponse(b []byte) (types.CallResponse, error) {
	return types.DecodeCallResponse(newByteReader(b))
}
