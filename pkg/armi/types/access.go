package types

import "net"

// AccessControl is consulted once per accepted TCP connection, before the
// codec ever reads from the socket. A false return closes the connection
// immediately.
type AccessControl func(remote net.Addr) bool

// AllowAll is the default AccessControl used when a hub accepts remote
// clients without an explicit policy.
func AllowAll(net.Addr) bool { return true }
