// Command deskthing-client keeps a persistent connection to a DeskThing
// server and exchanges application messages with it.
//
// Usage:
//
//	deskthing-client [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-address string       Server address: ws://, wss://, tcp://, tls:// or mdns://<instance>
//	-instance string      Discover the server by mDNS instance name
//	-codec string         Wire codec: deskthing, json, cbor
//	-log-level string     Log level: debug, info, warn, error
//	-log-file string      Also write JSON logs to this rotating file
//	-protocol-log string  Record protocol events to this .dtlog file
//	-journal-dsn string   Store inbound messages in this Postgres database
//	-interactive          Enable interactive command mode
//
// Flags override values from the configuration file.
//
// Examples:
//
//	# Connect to a known server and watch traffic
//	deskthing-client -address ws://192.168.7.1:8891 -interactive
//
//	# Find the server on the LAN and capture a protocol log
//	deskthing-client -instance "DeskThing Server" -protocol-log session.dtlog
//
// Interactive Commands:
//
//	connect                          - Connect (or restart the connection)
//	disconnect                       - Disconnect and stop reconnecting
//	status                           - Show connection status
//	send <app> <type> [json-payload] - Send an application message
//	subscribe [app]                  - Print inbound messages
//	unsubscribe <id>                 - Stop printing for a subscription
//	quit                             - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zanderp25/DeskThing-Client/cmd/deskthing-client/interactive"
	"github.com/zanderp25/DeskThing-Client/internal/config"
	"github.com/zanderp25/DeskThing-Client/internal/journal"
	"github.com/zanderp25/DeskThing-Client/pkg/connection"
	"github.com/zanderp25/DeskThing-Client/pkg/discovery"
	"github.com/zanderp25/DeskThing-Client/pkg/protolog"
	"github.com/zanderp25/DeskThing-Client/pkg/transport"
	"github.com/zanderp25/DeskThing-Client/pkg/wire"
)

// Flags holds command-line overrides.
type Flags struct {
	ConfigFile  string
	Address     string
	Instance    string
	Codec       string
	LogLevel    string
	LogFile     string
	ProtocolLog string
	JournalDSN  string
	Interactive bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&flags.Address, "address", "", "Server address: ws://, wss://, tcp://, tls:// or mdns://<instance>")
	flag.StringVar(&flags.Instance, "instance", "", "Discover the server by mDNS instance name")
	flag.StringVar(&flags.Codec, "codec", "", "Wire codec: deskthing, json, cbor")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.LogFile, "log-file", "", "Also write JSON logs to this rotating file")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "Record protocol events to this .dtlog file")
	flag.StringVar(&flags.JournalDSN, "journal-dsn", "", "Store inbound messages in this Postgres database")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Enable interactive command mode")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, flags.Interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(f Flags) (*config.Config, error) {
	cfg := config.Default()
	if f.ConfigFile != "" {
		loaded, err := config.LoadWithDefaults(f.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if f.Address != "" {
		cfg.Endpoint.Address = f.Address
	}
	if f.Instance != "" {
		cfg.Endpoint.Address = ""
		cfg.Endpoint.Discovery.Instance = f.Instance
	}
	if f.Codec != "" {
		cfg.Transport.Codec = f.Codec
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.ProtocolLog != "" {
		cfg.ProtocolLog.Path = f.ProtocolLog
	}
	if f.JournalDSN != "" {
		cfg.Journal.DSN = f.JournalDSN
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config, interactiveMode bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &switchWriter{w: os.Stderr}
	logger, logCloser, err := setupLogging(cfg.Log, out)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	// Protocol event capture
	protoLogger, protoCloser, err := setupProtocolLog(cfg, logger)
	if err != nil {
		return err
	}
	defer protoCloser.Close()

	// Transport: scheme mux, with mdns:// addresses resolved per dial
	mux := transport.NewDefaultMux(cfg.TransportConfig())
	resolver := discovery.NewResolver(discovery.ResolverConfig{
		Service: cfg.Endpoint.Discovery.Service,
		Timeout: cfg.Endpoint.Discovery.Timeout,
	}, logger)
	dialer := discovery.NewDialer(mux, resolver, cfg.Endpoint.Discovery.Scheme, logger)

	connCfg, err := cfg.ConnectionConfig()
	if err != nil {
		return err
	}
	client, err := connection.New(connCfg, dialer,
		connection.WithLogger(logger),
		connection.WithProtocolLogger(protoLogger),
	)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	// Optional message journal
	var (
		pool *pgxpool.Pool
		jnl  *journal.Journal
	)
	if cfg.Journal.DSN != "" {
		pool, jnl, err = startJournal(ctx, cfg.Journal, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		client.Subscribe(jnl.Record)
	}

	if interactiveMode {
		console, err := interactive.New(client)
		if err != nil {
			return err
		}
		// Redirect log output through readline to avoid interfering with input
		out.Set(console.Stdout())
		go console.Run(ctx, cancel)
	} else {
		client.Subscribe(func(env wire.Envelope) error {
			logger.Info("message received", "app", env.App, "type", env.Type, "request", env.Request)
			return nil
		})
	}

	logger.Info("deskthing client starting",
		"address", client.Address(),
		"codec", connCfg.Codec.Name(),
		"heartbeat_interval", connCfg.Heartbeat.Interval,
		"reconnect_delay", connCfg.ReconnectDelay,
	)
	if err := client.Connect(); err != nil {
		return err
	}

	// Wait for shutdown signal or context cancellation
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
		// Context was cancelled (e.g., by interactive quit command)
	}

	logger.Info("shutting down")
	cancel()

	if err := client.Close(); err != nil {
		logger.Warn("close client", "error", err)
	}

	if jnl != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := jnl.Stop(stopCtx); err != nil {
			logger.Warn("stop journal", "error", err)
		}
		stopCancel()
	}

	logger.Info("goodbye")
	return nil
}

// setupProtocolLog returns the protocol logger for the client. Events go to
// a .dtlog file when configured and to slog at debug level.
func setupProtocolLog(cfg *config.Config, logger *slog.Logger) (protolog.Logger, io.Closer, error) {
	var sinks []protolog.Logger
	var closer io.Closer = nopCloser{}

	if cfg.ProtocolLog.Path != "" {
		fl, err := protolog.NewFileLogger(cfg.ProtocolLog.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open protocol log: %w", err)
		}
		sinks = append(sinks, fl)
		closer = fl
		logger.Info("recording protocol events", "path", cfg.ProtocolLog.Path)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		sinks = append(sinks, protolog.NewSlogAdapter(logger))
	}

	switch len(sinks) {
	case 0:
		return protolog.NoopLogger{}, closer, nil
	case 1:
		return sinks[0], closer, nil
	default:
		return protolog.NewMultiLogger(sinks...), closer, nil
	}
}

func startJournal(ctx context.Context, cfg config.JournalConfig, logger *slog.Logger) (*pgxpool.Pool, *journal.Journal, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := journal.Connect(connectCtx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect journal: %w", err)
	}
	if err := journal.EnsureSchema(connectCtx, pool, cfg.Table); err != nil {
		pool.Close()
		return nil, nil, err
	}

	jnl := journal.New(journal.Config{
		Table:         cfg.Table,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		BufferSize:    cfg.BufferSize,
	}, pool, logger)
	if err := jnl.Start(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, jnl, nil
}
