package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ismaeeldev/nexa-server/config"
	"github.com/ismaeeldev/nexa-server/pkg/agents"
	"github.com/ismaeeldev/nexa-server/pkg/ai"
	"github.com/ismaeeldev/nexa-server/pkg/api"
	"github.com/ismaeeldev/nexa-server/pkg/db"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
	"github.com/ismaeeldev/nexa-server/pkg/meetings"
	"github.com/ismaeeldev/nexa-server/pkg/queues"
	"github.com/ismaeeldev/nexa-server/pkg/stream"
	"github.com/ismaeeldev/nexa-server/pkg/summary"
	"github.com/ismaeeldev/nexa-server/pkg/webhook"
	"github.com/ismaeeldev/nexa-server/pkg/workers"
)

// Serve command flags.
var (
	serveConfigFile     string
	serveAddress        string
	serveSkipMigrations bool
)

// poolHealth adapts the connection pool to the server's health check.
type poolHealth struct {
	pool *pgxpool.Pool
}

func (h poolHealth) Ping(ctx context.Context) error {
	return db.Ping(ctx, h.pool)
}

// NewServeCommand creates the 'serve' command: the full server process with
// the HTTP API, webhook orchestrator, and summary workers.
func NewServeCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the meeting server",
		Long: `Run the nexa meeting server.

Starts the HTTP API (agent and meeting CRUD, call tokens, the platform
webhook endpoint), the summary worker pool draining the Redis queue, and
the Prometheus metrics endpoint.

Examples:
  nexa-server serve
  nexa-server serve --config /etc/nexa/config.yaml
  nexa-server serve --address :9090 --skip-migrations`,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(serveConfigFile)
			if err != nil {
				return err
			}
			if serveAddress != "" {
				cfg.Server.Address = serveAddress
			}
			return runServe(c.Context(), cfg)
		},
	}

	c.Flags().StringVar(&serveConfigFile, "config", "", "config file path (YAML)")
	c.Flags().StringVar(&serveAddress, "address", "", "listen address override (e.g. :9090)")
	c.Flags().BoolVar(&serveSkipMigrations, "skip-migrations", false, "do not apply schema migrations at startup")

	return c
}

// runServe wires every component and blocks until the context is cancelled.
func runServe(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)
	logger.Info("Starting nexa-server", logging.F("address", cfg.Server.Address))

	pool, err := db.ConnectWithRetry(ctx, dbConfig(cfg), 5, 2*time.Second)
	if err != nil {
		return err
	}
	defer db.Close(pool)

	if !serveSkipMigrations {
		result, err := db.RunMigrations(ctx, pool)
		if err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		logger.Info("Migrations applied", logging.F("applied", len(result.Applied)))
	}

	registry := prometheus.NewRegistry()
	if _, err := db.RegisterPoolStatsCollector(pool, "nexa", "nexa-server", registry); err != nil {
		logger.Warn("Failed to register pool stats collector", logging.Err(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	queueCfg := queues.DefaultConfig(cfg.Workers.QueueName)
	if cfg.Workers.MaxAttempts > 0 {
		queueCfg.MaxRetries = cfg.Workers.MaxAttempts
	}
	queue := queues.NewRedisQueue(redisClient, queueCfg)
	defer queue.Close()

	streamClient := stream.NewClient(stream.Config{
		APIKey:    cfg.Stream.APIKey,
		APISecret: cfg.Stream.APISecret,
		BaseURL:   cfg.Stream.BaseURL,
	}, logger)

	connector := ai.NewConnector(streamClient, ai.Config{
		APIKey: cfg.OpenAI.APIKey,
		Model:  cfg.OpenAI.RealtimeModel,
		Voice:  cfg.OpenAI.Voice,
	}, logger)

	agentRepo := agents.NewRepository(pool, logger)
	meetingRepo := meetings.NewRepository(pool, logger)

	orchestrator := webhook.NewOrchestrator(
		meetingRepo,
		agentRepo,
		streamClient,
		connector,
		queues.Enqueuer{Queue: queue},
		webhook.Options{CompleteOnLastLeave: cfg.Webhook.CompleteOnLastLeave},
		webhook.NewMetrics(registry),
		logger,
	)
	webhookHandler := webhook.NewHandler(streamClient, orchestrator, logger)

	summaryHandler := summary.NewHandler(
		meetingRepo,
		summary.NewTranscriptFetcher(),
		summary.NewOpenAISummarizer(summary.OpenAIConfig{APIKey: cfg.OpenAI.APIKey}),
		logger,
	)

	workerCfg := workers.DefaultConfig()
	workerCfg.Count = cfg.Workers.Count
	workerPool := workers.NewPool(workerCfg, queue, summaryHandler, logger)
	workerPool.Start()
	defer workerPool.Stop()

	server := api.NewServer(api.ServerConfig{
		Address:       cfg.Server.Address,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		EnableCORS:    cfg.Server.EnableCORS,
		SessionSecret: cfg.Auth.SessionSecret,
	}, api.Deps{
		Agents:   api.NewAgentsHandler(agentRepo, logger),
		Meetings: api.NewMeetingsHandler(meetingRepo, agentRepo, streamClient, connector, cfg.Stream.TokenValidity, logger),
		Webhook:  webhookHandler,
		Health:   poolHealth{pool: pool},
		Registry: registry,
		Logger:   logger,
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", logging.Err(err))
	}

	return nil
}
