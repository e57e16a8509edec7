// Package sdnotify sends service state to systemd when running as a
// Type=notify unit.
package sdnotify

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// ErrNoSocket is returned when NOTIFY_SOCKET is unset.
var ErrNoSocket = errors.New("NOTIFY_SOCKET not set, skipping systemd notify")

// Notify writes the newline-joined assignments to the socket named by NOTIFY_SOCKET.
func Notify(assignments ...string) error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return ErrNoSocket
	}
	conn, err := net.Dial("unixgram", addr) //nolint:gosec,noctx // G704: addr is from NOTIFY_SOCKET set by systemd not user input, no context support in net package for unixgram sockets
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write([]byte(strings.Join(assignments, "\n"))); err != nil {
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	return nil
}

// Ready reports startup complete with a human-readable status line.
func Ready(status string) error {
	if status == "" {
		return Notify("READY=1")
	}
	return Notify("READY=1", "STATUS="+status)
}

// Stopping reports that shutdown has begun.
func Stopping() error {
	return Notify("STOPPING=1")
}
