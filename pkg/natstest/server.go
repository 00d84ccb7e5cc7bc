// Package natstest runs an in-process NATS server for tests.
package natstest

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Server is an embedded broker that can be stopped and restarted on the same port.
type Server struct {
	t    testing.TB
	port int
	srv  *server.Server
}

// Start runs a broker on a random loopback port and stops it when the test ends.
func Start(t testing.TB) *Server {
	t.Helper()
	s := &Server{t: t, port: -1}
	s.start()
	t.Cleanup(s.Shutdown)
	return s
}

func (s *Server) start() {
	s.t.Helper()
	opts := &server.Options{
		Host:   "127.0.0.1",
		Port:   s.port,
		NoLog:  true,
		NoSigs: true,
	}
	srv, err := server.NewServer(opts)
	if err != nil {
		s.t.Fatalf("failed to create nats server: %v", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		s.t.Fatalf("nats server not ready")
	}
	s.srv = srv
	s.port = srv.Addr().(*net.TCPAddr).Port
}

// URL returns the client URL of the broker.
func (s *Server) URL() string {
	return fmt.Sprintf("nats://127.0.0.1:%d", s.port)
}

// Port returns the TCP port the broker listens on.
func (s *Server) Port() int {
	return s.port
}

// Shutdown stops the broker; connected clients see their connection drop.
func (s *Server) Shutdown() {
	if s.srv != nil {
		s.srv.Shutdown()
		s.srv.WaitForShutdown()
		s.srv = nil
	}
}

// Restart brings the broker back on the same port.
func (s *Server) Restart() {
	s.t.Helper()
	s.Shutdown()
	s.start()
}

// NumSubscriptions reports the number of subscriptions the server holds.
func (s *Server) NumSubscriptions() int {
	if s.srv == nil {
		return 0
	}
	return int(s.srv.NumSubscriptions())
}

// Connect opens a plain client connection, closed when the test ends.
func (s *Server) Connect() *nats.Conn {
	s.t.Helper()
	nc, err := nats.Connect(s.URL())
	if err != nil {
		s.t.Fatalf("failed to connect to nats: %v", err)
	}
	s.t.Cleanup(nc.Close)
	return nc
}

// Publish sends raw on subject from a separate connection and flushes.
func (s *Server) Publish(subject string, raw []byte) {
	s.t.Helper()
	nc := s.Connect()
	if err := nc.Publish(subject, raw); err != nil {
		s.t.Fatalf("publish %s: %v", subject, err)
	}
	if err := nc.Flush(); err != nil {
		s.t.Fatalf("flush: %v", err)
	}
}

// Eventually polls cond until it holds or the timeout passes.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}
