package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/bankd/internal/cli/storage"
	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/internal/telemetry"
	"github.com/marmos91/bankd/pkg/adapter/teller"
	"github.com/marmos91/bankd/pkg/api"
	"github.com/marmos91/bankd/pkg/api/auth"
	"github.com/marmos91/bankd/pkg/banking"
	"github.com/marmos91/bankd/pkg/config"
	"github.com/marmos91/bankd/pkg/events"
	"github.com/marmos91/bankd/pkg/metrics"
	"github.com/marmos91/bankd/pkg/metrics/prometheus"
	"github.com/marmos91/bankd/pkg/session"
	"github.com/spf13/cobra"
)

var (
	foreground bool
	pidFile    string
	logFile    string
	autoSeed   bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bankd server",
	Long: `Start the bankd server with the specified configuration.

Before accepting clients the journal is replayed and any operation that was
interrupted by a crash is rolled back. The teller protocol, the admin API and
the metrics endpoint are then served until SIGINT or SIGTERM.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Examples:
  # Start in background (default)
  bankd start

  # Start in foreground
  bankd start --foreground

  # Start with custom config file
  bankd start --config /etc/bankd/config.yaml

  # Start with environment variable overrides
  BANKD_LOGGING_LEVEL=DEBUG bankd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/bankd/bankd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/bankd/bankd.log)")
	startCmd.Flags().BoolVar(&autoSeed, "seed", true, "Create the initial users and accounts when the tables are empty")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "bankd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "bankd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
	}()

	fmt.Println("bankd - multi-user banking server")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	// The registry must exist before any collector is built.
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	st, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("journal close error", logger.KeyError, err)
		}
	}()

	report, err := st.Recover(ctx)
	if err != nil {
		return err
	}
	logger.Info("Storage ready",
		logger.KeyPath, cfg.Storage.DataDir,
		"journal", cfg.Storage.Journal,
		"os_locks", cfg.Storage.UseOSLocks(),
		"rolled_back", report.RolledBack,
		"conflicts", report.Conflicts)

	svcOpts := []banking.Option{banking.WithMetrics(prometheus.NewBankingMetrics())}
	if cfg.Events.Enabled {
		pub, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:  cfg.Events.Brokers,
			Topic:    cfg.Events.Topic,
			Username: cfg.Events.Username,
			Password: cfg.Events.Password,
			TLS:      cfg.Events.TLS,
			Async:    cfg.Events.Async,
		})
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
		defer func() { _ = pub.Close() }()
		svcOpts = append(svcOpts, banking.WithPublisher(pub))
		logger.Info("Publishing events", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}
	svc := banking.New(st.Store, st.Journal, svcOpts...)

	if autoSeed {
		seeded, err := svc.Seed(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed store: %w", err)
		}
		if seeded != nil {
			printSeedReport(seeded)
		}
	}

	sessions := session.NewRegistry(cfg.Server.MaxSessions, prometheus.NewSessionMetrics())

	tellerCfg := teller.DefaultConfig()
	tellerCfg.BindAddress = cfg.Server.BindAddress
	tellerCfg.Port = cfg.Server.Port
	tellerCfg.MaxConnections = cfg.Server.MaxConnections
	tellerCfg.IdleTimeout = cfg.Server.IdleTimeout
	tellerCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tellerAdapter := teller.New(tellerCfg, svc, sessions,
		teller.WithMetrics(prometheus.NewConnectionMetrics(teller.Protocol)))

	var apiServer *api.Server
	if cfg.API.IsEnabled() {
		deps := api.Deps{Store: st.Store, Sessions: sessions}
		if cfg.API.JWTSecret != "" {
			jwtService, err := auth.NewJWTService(auth.JWTConfig{
				Secret:               cfg.API.JWTSecret,
				Issuer:               "bankd",
				AccessTokenDuration:  cfg.API.AccessTokenTTL,
				RefreshTokenDuration: cfg.API.RefreshTokenTTL,
			})
			if err != nil {
				return fmt.Errorf("failed to create JWT service: %w", err)
			}
			deps.Users = svc
			deps.JWT = jwtService
		} else {
			logger.Warn("API JWT secret not set, only health endpoints are served")
		}
		apiServer = api.NewServer(cfg.API, deps)
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tellerAdapter.Serve(gctx) })
	if apiServer != nil {
		g.Go(func() error { return apiServer.Start(gctx) })
	}
	if metricsServer != nil {
		g.Go(func() error { return metricsServer.Start(gctx) })
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- g.Wait() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.", "port", cfg.Server.Port)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
