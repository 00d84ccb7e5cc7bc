package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mwangaben/nats-laravel-echo/pkg/client"
	"github.com/mwangaben/nats-laravel-echo/pkg/config"
	"github.com/mwangaben/nats-laravel-echo/pkg/gateway"
	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
	"github.com/mwangaben/nats-laravel-echo/pkg/pubsub"
)

type globalFlags struct {
	configPath string
	servers    []string
	namespace  string
	debug      bool
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "echo-listen",
		Short:         "Laravel Echo style channel client over NATS",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to a YAML config file (default ~/.nats-echo/echo.yaml when present)")
	root.PersistentFlags().StringSliceVar(&g.servers, "server", nil, "NATS server URL, repeatable; overrides the config")
	root.PersistentFlags().StringVar(&g.namespace, "namespace", "", "subject namespace")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 10*time.Second, "connect and subscribe timeout")

	root.AddCommand(newListenCmd(g))
	root.AddCommand(newWhisperCmd(g))
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig resolves the config file, applies the environment and the flags.
// Validation happens in client.New.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	path := g.configPath
	if path == "" {
		if p, err := config.DefaultPath("echo.yaml"); err == nil {
			if _, statErr := os.Stat(p); statErr == nil {
				path = p
			}
		}
	}

	var cfg *config.Config
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			return nil, err
		}
	}

	if len(g.servers) > 0 {
		cfg.NATS.Servers = g.servers
	}
	if g.namespace != "" {
		cfg.Namespace = g.namespace
	}
	if g.debug {
		cfg.NATS.Debug = true
	}
	return cfg, nil
}

func (g *globalFlags) newClient() (*client.Client, *logging.ColoredLogger, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	c, err := client.New(cfg, client.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return c, logger, nil
}

func newListenCmd(g *globalFlags) *cobra.Command {
	var (
		events   []string
		httpAddr string
	)
	cmd := &cobra.Command{
		Use:   "listen CHANNEL [CHANNEL...]",
		Short: "Subscribe to channels and print every event as a JSON line",
		Long: "Subscribe to channels and print every event as a JSON line.\n" +
			"Prefix a channel with private- or presence- to authorize it first.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := g.newClient()
			if err != nil {
				return err
			}
			defer c.Disconnect()

			ctx, cancel := signalContext()
			defer cancel()

			unregister := c.OnConnectionChange(func(connected bool, err error) {
				if err != nil {
					logger.ComponentWarn(logging.ComponentClient, "Connection state changed",
						zap.Bool("connected", connected),
						zap.Error(err),
					)
				}
			})
			defer unregister()

			out := &lineWriter{w: cmd.OutOrStdout()}
			for _, channel := range args {
				subCtx, subCancel := context.WithTimeout(ctx, g.timeout)
				ch, err := c.Subscribe(subCtx, channel)
				subCancel()
				if err != nil {
					return err
				}
				bind(ch, events, out)
			}

			if httpAddr != "" {
				gw := gateway.New(c, logger)
				go func() {
					if err := gw.ListenAndServe(ctx, httpAddr); err != nil {
						logger.ComponentError(logging.ComponentGeneral, "Status server failed", zap.Error(err))
						cancel()
					}
				}()
			}

			logger.ComponentInfo(logging.ComponentGeneral, "Listening",
				zap.Strings("channels", args),
				zap.String("socket_id", c.SocketID()),
			)
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&events, "event", "e", nil, "event to listen for, repeatable (default all events)")
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve /health, /status, /channels and /metrics on this address")
	return cmd
}

// bind registers the printing callbacks for ch.
func bind(ch *client.Channel, events []string, out *lineWriter) {
	if len(events) == 0 {
		ch.ListenToAll(func(data json.RawMessage) {
			out.write(ch.Name(), "", data)
		})
	}
	for _, event := range events {
		event := event
		ch.Listen(event, func(data json.RawMessage) {
			out.write(ch.Name(), event, data)
		})
	}
	if ch.Kind() == pubsub.KindPresence {
		ch.Here(func(data json.RawMessage) { out.write(ch.Name(), pubsub.EventHere, data) })
		ch.Joining(func(data json.RawMessage) { out.write(ch.Name(), pubsub.EventJoining, data) })
		ch.Leaving(func(data json.RawMessage) { out.write(ch.Name(), pubsub.EventLeaving, data) })
	}
}

// lineWriter serializes output from the per-channel consumer goroutines
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) write(channel, event string, data json.RawMessage) {
	line := struct {
		Time    time.Time       `json:"time"`
		Channel string          `json:"channel"`
		Event   string          `json:"event,omitempty"`
		Data    json.RawMessage `json:"data"`
	}{time.Now().UTC(), channel, event, data}

	raw, err := json.Marshal(line)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, string(raw))
}

func newWhisperCmd(g *globalFlags) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "whisper CHANNEL EVENT",
		Short: "Send one client event to a private or presence channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload interface{}
			if strings.TrimSpace(data) != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				payload = json.RawMessage(data)
			}

			c, _, err := g.newClient()
			if err != nil {
				return err
			}
			defer c.Disconnect()

			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			if _, err := c.Subscribe(ctx, args[0]); err != nil {
				return err
			}
			if err := c.Whisper(args[0], args[1], payload); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "whispered %s%s on %s\n", pubsub.WhisperPrefix, args[1], args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON payload")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "echo-listen %s", version)
			if commit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (commit %s)", commit)
			}
			if date != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " built %s", date)
			}
			fmt.Fprintln(cmd.OutOrStdout())
		},
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
