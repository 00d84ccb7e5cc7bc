package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwangaben/nats-laravel-echo/pkg/client"
	"github.com/mwangaben/nats-laravel-echo/pkg/config"
	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
	"github.com/mwangaben/nats-laravel-echo/pkg/natstest"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "echo-listen dev\n", out.String())
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("namespace: file\nnats:\n  host: broker.internal\n"), 0o600))

	g := &globalFlags{
		configPath: path,
		servers:    []string{"nats://127.0.0.1:4333"},
		namespace:  "flag",
		debug:      true,
	}
	cfg, err := g.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"nats://127.0.0.1:4333"}, cfg.NATS.Servers)
	assert.Equal(t, "broker.internal", cfg.NATS.Host)
	assert.Equal(t, "flag", cfg.Namespace)
	assert.True(t, cfg.NATS.Debug)
}

func TestWhisperCommand_RejectsInvalidJSON(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"whisper", "private-chat", "typing", "--data", "{"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestBind_PrintsEvents(t *testing.T) {
	srv := natstest.Start(t)
	cfg := config.DefaultConfig()
	cfg.NATS.Servers = []string{srv.URL()}
	c, err := client.New(cfg, client.WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	t.Cleanup(c.Disconnect)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch, err := c.Subscribe(ctx, "orders")
	require.NoError(t, err)

	var buf syncBuffer
	bind(ch, nil, &lineWriter{w: &buf})

	srv.Publish("orders", []byte(`{"event":"OrderShipped","data":{"id":1}}`))
	natstest.Eventually(t, 2*time.Second, func() bool { return strings.Contains(buf.String(), "OrderShipped") }, "printed line")

	var line struct {
		Channel string          `json:"channel"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "orders", line.Channel)
	assert.JSONEq(t, `{"event":"OrderShipped","data":{"id":1}}`, string(line.Data))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
