package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/attunelabs/attune/internal/agent"
	"github.com/attunelabs/attune/internal/config"
	"github.com/attunelabs/attune/internal/gateway"
	"github.com/attunelabs/attune/internal/memory"
	"github.com/attunelabs/attune/internal/normalizer"
	"github.com/attunelabs/attune/internal/observability"
	"github.com/attunelabs/attune/internal/providers"
	"github.com/attunelabs/attune/internal/storage"
	"github.com/attunelabs/attune/internal/tools"
	"github.com/attunelabs/attune/internal/tools/builtin"
	"github.com/attunelabs/attune/internal/training"
)

func newServeCommand() *cobra.Command {
	var configPath string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Attune server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, watch)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "attune.yaml", "path to the configuration file")
	cmd.Flags().BoolVar(&watch, "watch", false, "apply provider availability changes on config edits")
	return cmd
}

func runServe(ctx context.Context, configPath string, watch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.NewLogger(cfg.Logging)
	metrics := observability.NewMetrics()
	observer := observability.NewMetricsObserver(metrics, logger)

	repo, cleanup, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer cleanup()

	store := memory.NewStore(repo, logger, cfg.Memory.MaxGeneral, cfg.Memory.MaxAI)

	registry := tools.NewRegistry()
	searcher := builtin.NewHTTPSearcher(cfg.Tools.Search)
	if err := builtin.RegisterAll(registry, repo, store, searcher, logger); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	runner := tools.NewRunner(registry, observer, logger, cfg.Tools.PerToolTimeout)

	mux := providers.NewMultiplexer(logger, observer)
	for _, pc := range cfg.Providers {
		if err := mux.AddProvider(ctx, pc); err != nil {
			return fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		logger.Info(ctx, "provider registered", "name", pc.Name, "family", string(pc.Family()))
	}

	tracker := training.NewTracker(repo, store, logger)
	agentSvc := agent.NewService(cfg.Agent, repo, store, registry, runner, mux,
		normalizer.New(cfg.Normalizer), tracker, logger, observer)

	auth, err := gateway.NewAuthenticator(cfg.Auth, repo)
	if err != nil {
		return err
	}
	hub := gateway.NewHub(repo, logger)
	server := gateway.NewServer(cfg.Server, auth, hub, agentSvc, logger, metrics)
	server.SetUsageReporter(mux.Usage)

	if watch {
		go func() {
			err := config.Watch(ctx, configPath, logger, func(next *config.Config) {
				applyProviderAvailability(ctx, mux, next, logger)
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn(ctx, "config watcher stopped", "error", err)
			}
		}()
	}

	logger.Info(ctx, "server starting", "addr", cfg.Server.Addr)
	if err := server.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info(ctx, "server stopped")
	return nil
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (storage.Repository, func(), error) {
	nop := func() {}
	switch cfg.Driver {
	case "", "memory":
		return storage.NewMemoryRepository(), nop, nil
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, nop, err
		}
		return repo, func() { repo.Close() }, nil
	case "postgres":
		pg := storage.DefaultPostgresConfig()
		if cfg.MaxConnections > 0 {
			pg.MaxOpenConns = cfg.MaxConnections
		}
		if cfg.ConnMaxLifetime > 0 {
			pg.ConnMaxLifetime = cfg.ConnMaxLifetime
		}
		repo, err := storage.NewPostgresRepository(ctx, cfg.DSN, pg)
		if err != nil {
			return nil, nop, err
		}
		return repo, func() { repo.Close() }, nil
	default:
		return nil, nop, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// applyProviderAvailability folds availability flags from a reloaded config
// into the running multiplexer. Other fields need a restart.
func applyProviderAvailability(ctx context.Context, mux *providers.Multiplexer, next *config.Config, logger *observability.Logger) {
	for _, pc := range next.Providers {
		if _, ok := mux.Family(pc.Name); !ok {
			logger.Info(ctx, "new provider in config requires restart", "name", pc.Name)
			continue
		}
		var err error
		if pc.IsAvailable {
			err = mux.EnableProvider(pc.Name)
		} else {
			err = mux.DisableProvider(pc.Name)
		}
		if err != nil {
			logger.Warn(ctx, "provider availability not applied", "name", pc.Name, "error", err)
		}
	}
}
