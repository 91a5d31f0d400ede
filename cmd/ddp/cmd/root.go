package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tsarna/ddp/pkg/ddp/client"
	"github.com/tsarna/ddp/pkg/ddp/config"
	"github.com/tsarna/ddp/pkg/ddp/o11y"
	"github.com/tsarna/ddp/pkg/ddp/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

var (
	verbose    bool
	debug      bool
	logLevel   string
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ddp",
	Short: "DDP protocol client",
	Long: `ddp talks to servers speaking the Distributed Data Protocol over
WebSocket. It can call remote methods, follow subscriptions and decode
captured protocol frames.

Connection settings can be read from an HCL file (--config) and from
DDP_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "client configuration file")
}

// loadConfig reads the configuration file and environment. A non-empty url
// argument replaces the configured one.
func loadConfig(url string) (*config.ClientConfig, error) {
	cfg, err := config.Read(configPath)
	if err != nil {
		return nil, err
	}
	if url != "" {
		cfg.URL = url
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(cfg *config.ClientConfig) (*zap.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	// Flags win over the configured level
	if debug || (verbose && level == zapcore.InfoLevel) {
		level = zapcore.DebugLevel
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.Development = debug

	return zapConfig.Build()
}

// connect builds a client from cfg and connects it. Metrics and spans go to
// the global OpenTelemetry providers, which are no-ops unless an exporter
// has been installed.
func connect(cmd *cobra.Command, cfg *config.ClientConfig, logger *zap.Logger, opts ...func(*client.ClientBuilder)) (*client.Client, error) {
	obs := o11y.Config{ServiceName: "ddp", ServiceVersion: version}
	provider := otel.NewProvider(obs.ServiceName, obs.ServiceVersion)
	obs.MetricsProvider = provider
	obs.TracingProvider = provider

	builder := cfg.Apply(client.NewClient()).
		WithLogger(logger).
		WithObservability(obs)
	for _, opt := range opts {
		opt(builder)
	}

	c, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if err := c.Connect(cmd.Context()); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.URL, err)
	}

	logger.Info("Connected to DDP server",
		zap.String("url", cfg.URL),
		zap.String("session", c.Session()),
	)
	return c, nil
}
