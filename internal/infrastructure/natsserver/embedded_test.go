package natsserver

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/nats-io/nats.go"
)

func TestStartAcceptsClients(t *testing.T) {
	srv, err := Start(Options{Port: -1}, slog.Default())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Shutdown()

	if !strings.HasPrefix(srv.ClientURL(), "nats://127.0.0.1:") {
		t.Fatalf("unexpected client url %q", srv.ClientURL())
	}
	conn, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()
	if !conn.IsConnected() {
		t.Fatalf("expected connected client")
	}
}

func TestShutdownOnNilServer(t *testing.T) {
	var srv *EmbeddedServer
	srv.Shutdown()
	if srv.ClientURL() != "" {
		t.Fatalf("expected empty url")
	}
}
