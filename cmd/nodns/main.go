// Command nodns is the relay daemon entrypoint: it loads configuration,
// wires logging, the hosts file, metrics, and rate limiting, and runs the
// relay.Daemon event loop until signaled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nodns-go/nodns/internal/config"
	"github.com/nodns-go/nodns/internal/logging"
	"github.com/nodns-go/nodns/internal/metrics"
	"github.com/nodns-go/nodns/internal/ratelimit"
	"github.com/nodns-go/nodns/internal/relay"
)

// cliFlags holds parsed command-line flag values, layered over the config
// file per §6 ("-config", "-hosts", "-remote", "-port", "-log", "-debug").
type cliFlags struct {
	configPath string
	hostsPath  string
	remote     string
	port       int
	logPath    string
	debug      bool
	metricsBus string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to config file (or NODNS_CONFIG env var)")
	flag.StringVar(&f.hostsPath, "hosts", "", "Override hosts_path")
	flag.StringVar(&f.remote, "remote", "", "Override remote_host")
	flag.IntVar(&f.port, "port", 0, "Override client_port")
	flag.StringVar(&f.logPath, "log", "", "Override log_path")
	flag.BoolVar(&f.debug, "debug", false, "Force-enable debug logging (ORs into log_mask)")
	flag.StringVar(&f.metricsBus, "metrics-addr", "127.0.0.1:9153", "Address to serve /metrics on")
	flag.Parse()
	return f
}

func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.hostsPath != "" {
		cfg.HostsPath = f.hostsPath
	}
	if f.remote != "" {
		cfg.RemoteHost = f.remote
	}
	if f.port != 0 {
		cfg.ClientPort = f.port
	}
	if f.logPath != "" {
		cfg.LogPath = f.logPath
	}
	if f.debug {
		cfg.LogMask |= logging.MaskDebug
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := parseFlags()

	cfgPath := config.ResolveConfigPath(flags.configPath)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg, flags)

	logger, closer, err := logging.Configure(logging.Config{Mask: cfg.LogMask, Path: cfg.LogPath})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer closer.Close()

	logger.Info("nodns starting",
		"remote_host", cfg.RemoteHost,
		"client_port", cfg.ClientPort,
		"hosts_path", cfg.HostsPath,
	)

	entries, err := relay.LoadHosts(cfg.HostsPath)
	if err != nil {
		logging.Fatal(logger, "unreadable hosts file", "path", cfg.HostsPath, "err", err)
		return fmt.Errorf("load hosts file: %w", err)
	}

	rl := ratelimit.DefaultConfig()
	daemon, err := relay.New(relay.Config{
		DownstreamAddr: "0.0.0.0:53",
		UpstreamAddr:   fmt.Sprintf("0.0.0.0:%d", cfg.ClientPort),
		RemoteHost:     cfg.RemoteHost,
		RemotePort:     53,
		HostEntries:    entries,
		RateLimit:      &rl,
		Logger:         logger,
	})
	if err != nil {
		logging.Fatal(logger, "relay init failed", "err", err)
		return fmt.Errorf("construct relay: %w", err)
	}

	metricsSrv := &http.Server{Addr: flags.metricsBus, Handler: metrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "err", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runErr := daemon.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = metricsSrv.Shutdown(shutdownCtx)
	shutdownCancel()

	if runErr != nil {
		return fmt.Errorf("relay exited with error: %w", runErr)
	}
	logger.Info("nodns shut down cleanly")
	return nil
}
