//go:build !windows

package feed

import (
	"fmt"
	"net"
	"os"
	"time"
)

// Listen opens the unix domain socket, replacing any stale file a
// crashed server left behind.
func Listen(socketPath string) (net.Listener, error) {
	if err := CleanupSocket(socketPath); err != nil {
		return nil, fmt.Errorf("cleanup socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix: %w", err)
	}

	// observers may run as a different local user
	if err := os.Chmod(socketPath, 0666); err != nil {
		listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return listener, nil
}

// Dial connects to the feed socket.
func Dial(socketPath string) (net.Conn, error) {
	return net.DialTimeout("unix", socketPath, time.Second)
}

// Address returns the listen address for logging.
func Address(socketPath string) string {
	return socketPath
}
