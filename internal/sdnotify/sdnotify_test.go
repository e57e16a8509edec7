package sdnotify

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
)

func listen(t *testing.T) net.PacketConn {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "notify.sock")
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(context.Background(), "unixgram", sockPath)
	if err != nil {
		t.Fatalf("listen unixgram: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	t.Setenv("NOTIFY_SOCKET", sockPath)
	return conn
}

func read(t *testing.T, conn net.PacketConn) string {
	t.Helper()
	buf := make([]byte, 256)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read from socket: %v", err)
	}
	return string(buf[:n])
}

func TestNotify_NoSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	if err := Ready("serving"); !errors.Is(err, ErrNoSocket) {
		t.Fatalf("err = %v, want ErrNoSocket", err)
	}
}

func TestNotify_InvalidPath(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", filepath.Join(t.TempDir(), "nonexistent.sock"))

	err := Stopping()
	if err == nil {
		t.Fatal("expected error for nonexistent socket")
	}
	if !strings.Contains(err.Error(), "dial failed") {
		t.Errorf("error = %q, want substring %q", err, "dial failed")
	}
}

func TestReady(t *testing.T) {
	conn := listen(t)

	if err := Ready("triage api on :8080"); err != nil {
		t.Fatalf("Ready() = %v, want nil", err)
	}
	if got, want := read(t, conn), "READY=1\nSTATUS=triage api on :8080"; got != want {
		t.Errorf("payload = %q, want %q", got, want)
	}

	if err := Ready(""); err != nil {
		t.Fatalf("Ready(\"\") = %v, want nil", err)
	}
	if got := read(t, conn); got != "READY=1" {
		t.Errorf("payload = %q, want READY=1", got)
	}
}

func TestStopping(t *testing.T) {
	conn := listen(t)

	if err := Stopping(); err != nil {
		t.Fatalf("Stopping() = %v, want nil", err)
	}
	if got := read(t, conn); got != "STOPPING=1" {
		t.Errorf("payload = %q, want STOPPING=1", got)
	}
}
