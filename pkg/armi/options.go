package armi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/jabolina/armi/pkg/armi/core"
	"github.com/jabolina/armi/pkg/armi/definition"
	"github.com/jabolina/armi/pkg/armi/metrics"
	"github.com/jabolina/armi/pkg/armi/types"
)

// DefaultPort, DefaultCallTimeout and DefaultConnectTimeout mirror the
// core package's constants at the public surface, so callers never need
// to import pkg/armi/core just to reference a default.
const (
	DefaultPort           = core.DefaultPort
	DefaultCallTimeout    = core.DefaultCallTimeout
	DefaultConnectTimeout = core.DefaultConnectTimeout
)

// config is the plain configuration struct a HubOption mutates. All
// configuration is programmatic; nothing is read from the environment.
type config struct {
	log            logrus.FieldLogger
	metrics        *metrics.Metrics
	callTimeout    time.Duration
	connectTimeout time.Duration
	accessControl  types.AccessControl
}

func defaultConfig() *config {
	return &config{
		log:            definition.NewDefaultLogger(),
		callTimeout:    DefaultCallTimeout,
		connectTimeout: DefaultConnectTimeout,
		accessControl:  definition.DefaultAccessControl,
	}
}

// HubOption customizes a Hub at construction time.
type HubOption func(*config)

// WithLogger replaces the hub's default logrus logger.
func WithLogger(log logrus.FieldLogger) HubOption {
	return func(c *config) { c.log = log }
}

// WithMetrics registers the hub's Prometheus collectors against reg under
// namespace (a nil reg means prometheus.DefaultRegisterer). A hub built
// without this option records no metrics. Passing this option more than
// once keeps the last value.
func WithMetrics(reg prometheus.Registerer, namespace string) HubOption {
	return func(c *config) { c.metrics = metrics.New(reg, namespace) }
}

// WithCallTimeout overrides the default 10s synchronous-call deadline.
func WithCallTimeout(d time.Duration) HubOption {
	return func(c *config) { c.callTimeout = d }
}

// WithConnectTimeout overrides the default 10s TCP dial deadline.
func WithConnectTimeout(d time.Duration) HubOption {
	return func(c *config) { c.connectTimeout = d }
}

// WithAccessControl installs the default access-control predicate applied
// to every inbound accept, used when AcceptRemoteClients is called without
// one of its own.
func WithAccessControl(ac types.AccessControl) HubOption {
	return func(c *config) { c.accessControl = ac }
}
