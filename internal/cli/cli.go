// ============================================================================
// Queue Consumer CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: User-facing command line interface, based on the Cobra framework
//
// Command Structure:
//   queuectl                        # Root command
//   ├── run                         # Start a demo consumer
//   │   └── --config, -c           # Specify config file
//   ├── status                      # View static config / metrics endpoint
//   ├── --version                   # Display version information
//   └── --help                      # Display help information
//
// Configuration Management:
//   Uses YAML format config file (default: configs/default.yaml).
//   Configuration sections:
//   - queue: seed messages for the in-memory demo queue
//   - worker: fetcher/pool sizing
//   - supervisor: polling/stuck-detection tuning
//   - metrics: Prometheus server enable/port
//
// run Command:
//   Starts a demo consumer end to end:
//   1. Load config file
//   2. Build the demo Queue, bounded Pool, and Consumer
//   3. Start the metrics HTTP server (if enabled)
//   4. Start the consumer and its supervisor
//   5. Listen for SIGINT/SIGTERM and shut down gracefully
//
// ============================================================================

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coldforge/queue-consumer/internal/boundedpool"
	"github.com/coldforge/queue-consumer/internal/consumer"
	"github.com/coldforge/queue-consumer/internal/demoqueue"
	"github.com/coldforge/queue-consumer/internal/metrics"
	"github.com/coldforge/queue-consumer/internal/support"
)

// Config is the complete CLI configuration structure, mapped through YAML
// tags onto the config file (default: configs/default.yaml).
type Config struct {
	Queue struct {
		SeedMessages []string `yaml:"seed_messages"`
	} `yaml:"queue"`

	Worker struct {
		MaxWorkers        int           `yaml:"max_workers"`
		MaxHandlers       int           `yaml:"max_handlers"`
		MessagesBulkSize  int           `yaml:"messages_bulk_size"`
		WorkerPollingTime time.Duration `yaml:"worker_polling_time"`
	} `yaml:"worker"`

	Supervisor struct {
		PollingTime time.Duration `yaml:"polling_time"`
		StuckTime   time.Duration `yaml:"stuck_time"`
		StuckLimit  int           `yaml:"stuck_limit"`
	} `yaml:"supervisor"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

var configFile string

// BuildCLI constructs the root queuectl command tree.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "queuectl",
		Short: "queuectl: a demo runner for the concurrent queue consumer",
		Long: `queuectl drives a demo instance of the consumer package:
- in-memory Queue seeded from config
- goroutine-backed bounded pool
- Prometheus metrics
- graceful shutdown on SIGINT/SIGTERM`,
		Version: "0.1.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a demo consumer against the in-memory queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo()
		},
	}
	return cmd
}

func runDemo() error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sup := support.NewDefault()
	sup.Logger.Info("starting demo consumer", "config_file", configFile)

	if cfg.Metrics.Enabled {
		go func() {
			sup.Logger.Info("starting metrics server", "port", cfg.Metrics.Port)
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				sup.Logger.Error("metrics server exited", "error", err)
			}
		}()
	}

	queue := demoqueue.New[string](0)
	queue.Push(cfg.Queue.SeedMessages...)

	pool := boundedpool.New[string](boundedpool.Config{MaxHandlers: cfg.Worker.MaxHandlers})

	c, err := consumer.New(consumer.Config[string]{
		Queue:             queue,
		Pool:              pool,
		MaxWorkers:        cfg.Worker.MaxWorkers,
		MaxHandlers:       cfg.Worker.MaxHandlers,
		MessagesBulkSize:  cfg.Worker.MessagesBulkSize,
		WorkerPollingTime: cfg.Worker.WorkerPollingTime,
		Support:           sup,
		Handler:           demoHandler(sup.Logger),
	})
	if err != nil {
		return fmt.Errorf("failed to build consumer: %w", err)
	}

	c.Start()
	if err := c.Supervise(consumer.SuperviseOptions{
		Blocking:    false,
		PollingTime: cfg.Supervisor.PollingTime,
		StuckTime:   cfg.Supervisor.StuckTime,
		StuckLimit:  cfg.Supervisor.StuckLimit,
	}); err != nil {
		return fmt.Errorf("failed to start supervisor: %w", err)
	}

	sup.Logger.Info("demo consumer started, waiting for shutdown signal")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	sup.Logger.Info("shutdown signal received, draining")
	// Fetchers blocked in queue.Get return only once the queue is closed,
	// and Shutdown waits for every fetcher to return.
	queue.Close()
	c.Shutdown()
	pool.Wait()

	snap := sup.Metrics.Snapshot()
	sup.Logger.Info("demo consumer stopped",
		"received", snap.ReceivedMessages,
		"successful", snap.SuccessfulMessages,
		"failed", snap.FailedMessages,
		"revived_workers", snap.RevivedWorkers,
		"stuck_handlers", snap.StuckHandlers,
	)
	return nil
}

// demoHandler is a trivial handler used by the run command: it logs each
// message and succeeds. A real deployment supplies its own handler via
// consumer.Config.Handler.
func demoHandler(logger *slog.Logger) consumer.HandlerFunc[string] {
	return func(ctx context.Context, cursor *consumer.Cursor[string]) error {
		for {
			item, ok := cursor.Next()
			if !ok {
				return nil
			}
			logger.Debug("processed message", "message", item)
		}
	}
}

func buildStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the effective config for a would-be run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}
	return cmd
}

func showStatus() error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("Queue Consumer — effective configuration")
	fmt.Printf("  config file:        %s\n", configFile)
	fmt.Printf("  seed messages:      %d\n", len(cfg.Queue.SeedMessages))
	fmt.Printf("  max_workers:        %d\n", cfg.Worker.MaxWorkers)
	fmt.Printf("  max_handlers:       %d\n", cfg.Worker.MaxHandlers)
	fmt.Printf("  messages_bulk_size: %d\n", cfg.Worker.MessagesBulkSize)
	fmt.Printf("  worker_polling:     %s\n", cfg.Worker.WorkerPollingTime)
	fmt.Printf("  supervisor_polling: %s\n", cfg.Supervisor.PollingTime)
	fmt.Printf("  stuck_time:         %s\n", cfg.Supervisor.StuckTime)
	fmt.Printf("  stuck_limit:        %d\n", cfg.Supervisor.StuckLimit)
	if cfg.Metrics.Enabled {
		fmt.Printf("  metrics:            enabled on http://localhost:%d/metrics\n", cfg.Metrics.Port)
	} else {
		fmt.Println("  metrics:            disabled")
	}
	fmt.Println()
	fmt.Println("status only reports config; run 'queuectl run' to start a live instance")
	return nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if cfg.Worker.MaxWorkers <= 0 {
		cfg.Worker.MaxWorkers = 1
	}
	if cfg.Worker.MaxHandlers <= 0 {
		cfg.Worker.MaxHandlers = 1
	}
	if cfg.Worker.MessagesBulkSize <= 0 {
		cfg.Worker.MessagesBulkSize = 1
	}

	return &cfg, nil
}
