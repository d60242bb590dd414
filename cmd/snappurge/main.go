package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/lamnk/snappurge/internal/audit"
	"github.com/lamnk/snappurge/internal/config"
	"github.com/lamnk/snappurge/internal/purge"
	"github.com/lamnk/snappurge/internal/snapshot/storage"
	"github.com/lamnk/snappurge/shared/database"
	"github.com/lamnk/snappurge/shared/logger"
	"github.com/lamnk/snappurge/shared/rabbitmq"
)

type options struct {
	configPath    string
	reports       bool
	intervalDays  int
	retentionDays int
	batchSize     int
	schedule      string
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	opts := parseFlags()

	// Usage errors abort before any database interaction
	if err := opts.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "snappurge: %v\n\n", err)
		flag.Usage()
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() *options {
	defaultConfigPath := os.Getenv("SNAPPURGE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/snappurge/config.yaml"
	}

	opts := &options{}
	flag.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to configuration file")
	flag.BoolVar(&opts.reports, "reports", false, "Report on snapshot table sizes and age distribution (read-only)")
	flag.IntVar(&opts.intervalDays, "interval-older-than", 90, "Reporting bucket width in days")
	flag.IntVar(&opts.retentionDays, "delete-older-than", -1, "Delete snapshots older than the given number of days")
	flag.IntVar(&opts.batchSize, "batch-size", 1000, "Rows deleted per committed transaction")
	flag.StringVar(&opts.schedule, "schedule", "", "Optional cron expression; repeats the purge until interrupted")
	flag.Parse()

	return opts
}

func (o *options) validate() error {
	purgeMode := o.retentionDays >= 0

	if o.reports == purgeMode {
		return fmt.Errorf("exactly one of --reports or --delete-older-than must be supplied")
	}
	if purgeMode && o.batchSize <= 0 {
		return fmt.Errorf("--batch-size must be a positive integer, got %d", o.batchSize)
	}
	if o.schedule != "" && !purgeMode {
		return fmt.Errorf("--schedule requires --delete-older-than")
	}

	return nil
}

func run(opts *options) error {
	// Load configuration
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting snappurge",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Open the audit log before touching the database; an inaccessible log
	// aborts the run without performing a purge.
	auditLog, err := audit.Open(cfg.Audit.File, cfg.Audit.DefaultUser)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	// Initialize database client
	dbClient, err := initDatabase(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	store, err := storage.New(dbClient, appLogger.Logger)
	if err != nil {
		return err
	}

	// Initialize optional run-summary notifier
	var notifier purge.Notifier
	if cfg.Notify.Enabled {
		rabbitClient, err := initRabbitMQ(&cfg.Notify.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()
		notifier = rabbitClient
	}

	runner := purge.NewRunner(&purge.Config{
		Logger:   appLogger.Logger,
		Storage:  store,
		Audit:    auditLog,
		Notifier: notifier,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.reports {
		report, err := runner.Report(ctx, opts.intervalDays)
		if err != nil {
			return err
		}
		report.Render(os.Stdout)
		return nil
	}

	if opts.schedule != "" {
		return runScheduled(ctx, appLogger.Logger, runner, opts)
	}

	_, err = runner.Purge(ctx, opts.retentionDays, opts.batchSize)
	return err
}

// runScheduled repeats the purge on a cron schedule until interrupted.
// Each invocation is independent; a failed run is logged and the next
// scheduled run starts from the remaining count.
func runScheduled(ctx context.Context, log *slog.Logger, runner *purge.Runner, opts *options) error {
	c := cron.New()

	_, err := c.AddFunc(opts.schedule, func() {
		if _, err := runner.Purge(ctx, opts.retentionDays, opts.batchSize); err != nil {
			log.Error("Scheduled purge failed",
				slog.Any("error", err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", opts.schedule, err)
	}

	log.Info("Running purge on schedule",
		slog.String("schedule", opts.schedule),
		slog.Int("retention_days", opts.retentionDays),
		slog.Int("batch_size", opts.batchSize),
	)

	c.Start()
	<-ctx.Done()

	log.Info("Received signal, shutting down gracefully")
	<-c.Stop().Done()

	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initDatabase initializes the database client for the configured engine
func initDatabase(cfg *config.DatabaseConfig, logger *slog.Logger) (*database.Client, error) {
	dbConfig := &database.Config{
		Engine:          cfg.Engine,
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		Database:        cfg.Postgres.Database,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
		File:            cfg.SQLite.File,
	}

	return database.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the run-summary notifier
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Notifier, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		User:              cfg.User,
		Password:          cfg.Password,
		VHost:             cfg.VHost,
		Exchange:          cfg.Exchange,
		RoutingKey:        cfg.RoutingKey,
		RetryAttempts:     cfg.RetryAttempts,
		RetryInterval:     cfg.RetryInterval,
		Heartbeat:         cfg.Heartbeat,
		ConnectionTimeout: cfg.ConnectionTimeout,
	}

	return rabbitmq.NewNotifier(rabbitConfig, logger)
}
