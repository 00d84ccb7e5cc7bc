//go:build e2e

package e2e

import (
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mwangaben/nats-laravel-echo/pkg/client"
	"github.com/mwangaben/nats-laravel-echo/pkg/config"
	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
)

// NATSURL returns the broker under test, from NATS_URL.
func NATSURL() string {
	return os.Getenv("NATS_URL")
}

// SkipIfMissingBroker skips the test unless NATS_URL is set and reachable.
func SkipIfMissingBroker(t *testing.T) {
	t.Helper()
	url := NATSURL()
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	nc, err := nats.Connect(url, nats.Timeout(2*time.Second))
	if err != nil {
		t.Skipf("broker %s not reachable: %v", url, err)
	}
	nc.Close()
}

// NewEchoClient creates a client against NATS_URL, disconnected when the test ends.
func NewEchoClient(t *testing.T) *client.Client {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.NATS.Servers = []string{NATSURL()}
	cfg.Namespace = os.Getenv("ECHO_NAMESPACE")
	c, err := client.New(cfg, client.WithLogger(logging.NewNopLogger()))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(c.Disconnect)
	return c
}

// RawConn opens a plain broker connection for publishing test messages.
func RawConn(t *testing.T) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(NATSURL())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(nc.Close)
	return nc
}

// GenerateChannel returns a channel name unique to this run.
func GenerateChannel(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), rand.Intn(10000))
}

func namespacePrefix() string {
	return os.Getenv("ECHO_NAMESPACE")
}
