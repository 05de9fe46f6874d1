package core

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jabolina/armi/pkg/armi/metrics"
	"github.com/jabolina/armi/pkg/armi/types"
)

// RunInvocation is the invocation worker for one inbound call: look the
// service up, resolve and run the method, and transmit a
// SynchronousResponse back on the connection the call arrived on. It runs
// in its own goroutine, spawned by the dispatcher handling an inbound
// SynchronousCall, so a slow handler never stalls that connection's reads.
func RunInvocation(registry *ServiceRegistry, conn *PeerConnection, req types.CallRequest, log logrus.FieldLogger, m *metrics.Metrics) {
	resp := types.CallResponse{Serial: req.Serial}
	log.WithFields(logrus.Fields{"component": "invoker", "serial": req.Serial}).
		Debugf("dispatching %s.%s", req.Service, req.Method)

	defer func() {
		if r := recover(); r != nil {
			resp.Value = nil
			resp.Err = &types.ArmiError{
				Kind:    types.KindInvocation,
				Message: fmt.Sprintf("panic in %s.%s: %v", req.Service, req.Method, r),
			}
			log.WithFields(logrus.Fields{"service": req.Service, "method": req.Method}).
				Errorf("recovered panic in invocation worker: %v", r)
			if m != nil {
				m.CallErrorsTotal.Inc()
			}
		}
		if err := conn.respond(resp); err != nil {
			log.WithError(err).Warn("failed writing synchronous response, dropping silently")
		}
	}()

	descriptor, ok := registry.Resolve(req.Service)
	if !ok {
		resp.Err = &types.ArmiError{Kind: types.KindInvocation, Message: "Service not found: " + req.Service}
		if m != nil {
			m.CallErrorsTotal.Inc()
		}
		return
	}

	method, err := descriptor.Resolve(req.Method, len(req.Args))
	if err != nil {
		resp.Err = types.NewArmiError(types.KindInvocation, err)
		if m != nil {
			m.CallErrorsTotal.Inc()
		}
		return
	}

	value, err := method.Handler(context.Background(), req.Args)
	if err != nil {
		resp.Err = types.NewArmiError(types.KindInvocation, err)
		if m != nil {
			m.CallErrorsTotal.Inc()
		}
		return
	}
	resp.Value = value
}
