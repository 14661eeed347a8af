//go:build windows

package feed

import (
	"fmt"
	"net"
	"time"
)

// Listen opens a loopback TCP listener. Windows has no dependable
// unix domain socket support, and loopback TCP is close enough for a
// local observer feed.
func Listen(socketPath string) (net.Listener, error) {
	listener, err := net.Listen("tcp", DefaultTCPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", DefaultTCPAddr, err)
	}
	return listener, nil
}

// Dial connects to the feed's loopback TCP port.
func Dial(socketPath string) (net.Conn, error) {
	return net.DialTimeout("tcp", DefaultTCPAddr, time.Second)
}

// Address returns the listen address for logging.
func Address(socketPath string) string {
	return DefaultTCPAddr + " (tcp loopback)"
}
