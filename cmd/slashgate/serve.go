package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mattjoyce/slashgate/internal/command"
	"github.com/mattjoyce/slashgate/internal/config"
	"github.com/mattjoyce/slashgate/internal/followup"
	"github.com/mattjoyce/slashgate/internal/lock"
	"github.com/mattjoyce/slashgate/internal/log"
	"github.com/mattjoyce/slashgate/internal/metrics"
	"github.com/mattjoyce/slashgate/internal/signature"
	"github.com/mattjoyce/slashgate/internal/storage"
	"github.com/mattjoyce/slashgate/internal/store"
	"github.com/mattjoyce/slashgate/internal/webhook"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	path := config.Discover(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("slashgate starting",
		"version", version,
		"config", cfg.SourcePath,
		"config_fingerprint", cfg.Fingerprint,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.State.Path)

	docs, err := store.Open(ctx, store.Options{
		Driver: cfg.Store.Driver,
		SQLite: db,
		Redis: store.RedisOptions{
			Addr:      cfg.Store.Redis.Addr,
			Password:  cfg.Store.Redis.Password,
			DB:        cfg.Store.Redis.DB,
			KeyPrefix: cfg.Store.Redis.KeyPrefix,
			MaxLen:    cfg.Store.Redis.MaxLen,
		},
	})
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		return 1
	}
	defer docs.Close()
	logger.Info("store opened", "driver", cfg.Store.Driver)

	var m *metrics.Metrics
	if cfg.Server.Metrics {
		m = metrics.New()
	}

	queue := followup.NewQueue(db, followup.WithMaxAttempts(cfg.FollowUp.MaxAttempts))

	verifier, err := signature.NewVerifier(cfg.PublicKey, cfg.Server.MaxTimestampSkew)
	if err != nil {
		logger.Error("failed to build signature verifier", "error", err)
		return 1
	}

	router, err := command.NewRouter(log.WithComponent("command"), command.Builtins(command.Deps{
		Store:     docs,
		FollowUps: queue,
		Logger:    log.WithComponent("command"),
	})...)
	if err != nil {
		logger.Error("failed to build command router", "error", err)
		return 1
	}
	logger.Info("commands registered", "commands", router.Names())

	serverConfig, err := webhook.FromGlobalConfig(cfg)
	if err != nil {
		logger.Error("failed to configure interactions server", "error", err)
		return 1
	}
	server := webhook.New(serverConfig, verifier, router, m, log.WithComponent("webhook"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)
	// Deferred closes run after wg.Wait, so in-flight requests and
	// follow-ups finish against an open database.
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("webhook: %w", err)
		}
	}()

	lease, err := acquireDispatchLease(cfg.State.Path)
	switch {
	case err == nil:
		defer lease.Release()
		notifier := followup.NewWebhookNotifier(cfg.Discord.APIBase, &http.Client{Timeout: 10 * time.Second}, "slashgate/"+version)
		dispatcher := followup.NewDispatcher(queue, notifier, followup.DispatcherConfig{
			PollInterval:  cfg.FollowUp.PollInterval,
			BackoffBase:   cfg.FollowUp.BackoffBase,
			RatePerSecond: cfg.FollowUp.RatePerSecond,
			Burst:         cfg.FollowUp.Burst,
		}, m, log.WithComponent("followup"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dispatcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("followup: %w", err)
			}
		}()
	case errors.Is(err, lock.ErrHeld):
		logger.Warn("another process is delivering follow-ups for this database; this instance only enqueues",
			"lease", lock.PathFor(cfg.State.Path),
			"holder_pid", lock.Holder(lock.PathFor(cfg.State.Path)),
		)
	default:
		logger.Error("failed to acquire dispatch lease", "error", err)
		return 1
	}

	logger.Info("slashgate running", "listen", serverConfig.Listen, "path", serverConfig.Path)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		wg.Wait()
		return 1
	}

	wg.Wait()
	logger.Info("slashgate stopped")
	return 0
}

// acquireDispatchLease returns a nil lease for in-memory databases, which
// no other process can share.
func acquireDispatchLease(statePath string) (*lock.Lease, error) {
	if statePath == ":memory:" {
		return nil, nil
	}
	return lock.Acquire(lock.PathFor(statePath))
}
