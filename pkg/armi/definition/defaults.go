// Package definition holds the default, swappable pieces a hub falls
// back to when the caller doesn't supply its own: logging and access
// control.
package definition

import (
	"net"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/jabolina/armi/pkg/armi/types"
)

// NewDefaultLogger builds the logrus.Logger a hub uses when none is
// supplied through an option. Debug output is off by default; toggle it
// with ToggleDebug the way the rest of the ecosystem's loggers expose a
// runtime verbosity switch.
func NewDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// ToggleDebug flips a logger between info and debug verbosity.
func ToggleDebug(l *logrus.Logger, debug bool) {
	if debug {
		l.SetLevel(logrus.DebugLevel)
		return
	}
	l.SetLevel(logrus.InfoLevel)
}

// DefaultAccessControl accepts every inbound connection. Hubs that need a
// caller-IP allowlist supply their own types.AccessControl instead.
func DefaultAccessControl(addr net.Addr) bool {
	return types.AllowAll(addr)
}
