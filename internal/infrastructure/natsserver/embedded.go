package natsserver

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer runs a NATS server in-process so the API and worker can share a broker
// on a single host without an external deployment.
type EmbeddedServer struct {
	ns  *server.Server
	log *slog.Logger
}

type Options struct {
	Host string
	// Port -1 picks a random free port.
	Port         int
	ReadyTimeout time.Duration
}

func Start(opts Options, log *slog.Logger) (*EmbeddedServer, error) {
	if log == nil {
		log = slog.Default()
	}
	host := opts.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.Port
	if port == 0 {
		port = 4222
	}
	readyTimeout := opts.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 5 * time.Second
	}

	ns, err := server.NewServer(&server.Options{
		Host:   host,
		Port:   port,
		NoSigs: true,
		NoLog:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats server failed to start within %s", readyTimeout)
	}

	log.Info("embedded_nats_started", "client_url", ns.ClientURL())
	return &EmbeddedServer{ns: ns, log: log}, nil
}

func (e *EmbeddedServer) ClientURL() string {
	if e == nil || e.ns == nil {
		return ""
	}
	return e.ns.ClientURL()
}

func (e *EmbeddedServer) Shutdown() {
	if e == nil || e.ns == nil {
		return
	}
	e.log.Info("embedded_nats_stopping")
	e.ns.Shutdown()
	e.ns.WaitForShutdown()
}
