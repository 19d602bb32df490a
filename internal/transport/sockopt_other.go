// internal/transport/sockopt_other.go
//go:build !unix

package transport

import "syscall"

// control is a no-op here; the runtime already enables broadcast on UDP sockets.
func control(network, address string, c syscall.RawConn) error {
	return nil
}
