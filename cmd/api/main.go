package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"coselect/config"
	"coselect/db"
	"coselect/dispute"
	"coselect/lead"
	"coselect/outbox"
	"coselect/payout"
	"coselect/profile"
	"coselect/session"
	"coselect/store"
)

func main() {
	cfgPath := flag.String("config", "configs/coselect.yaml", "Path to YAML config")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		slog.Error("coselect exited", "err", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	loader, err := config.NewLoader(cfgPath)
	if err != nil {
		return err
	}
	cfg := loader.Config()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)
	loader.WithLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("storage ready", "backend", cfg.Storage.Backend)

	publisher, closePublisher := openPublisher(cfg.Outbox, logger)
	defer closePublisher()

	profiles := profile.NewService(profile.NewRepository(backend))
	leads := lead.NewService(lead.NewRepository(backend), publisher).WithLogger(logger)
	payouts := payout.NewService(payout.NewRepository(backend), profiles, publisher).WithLogger(logger)
	disputes := dispute.NewService(dispute.NewRepository(backend), publisher).WithLogger(logger)
	sessions := session.NewService(backend,
		session.NewIssuer(cfg.Session.Secret, cfg.Session.TTL()),
		session.NewDevGate(cfg.Session.DevPassphraseHash))

	if err := applyPolicies(cfg, payouts, disputes); err != nil {
		return err
	}
	loader.OnChange(func(next *config.Config) {
		if err := applyPolicies(next, payouts, disputes); err != nil {
			logger.Warn("hot-reload skipped", "err", err)
			return
		}
		logger.Info("policies reloaded", "payout_minimum", payouts.MinimumThreshold().StringFixed(2))
	})

	server := &Server{
		sessions: sessions,
		leads:    leads,
		payouts:  payouts,
		disputes: disputes,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := loader.Watch(gctx); err != nil {
			logger.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.StorageConf) (store.Store, func(), error) {
	switch cfg.Backend {
	case "file":
		return store.NewFile(cfg.Dir), func() {}, nil
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap database pool: %w", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store.NewPostgres(pool), pool.Close, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return store.NewRedis(client, cfg.RedisPrefix), func() { _ = client.Close() }, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}

func openPublisher(cfg config.OutboxConf, logger *slog.Logger) (outbox.Publisher, func()) {
	if cfg.Backend == "kafka" {
		k := outbox.NewKafka(outbox.NewKafkaWriter(cfg.Brokers))
		return k, func() { closeQuietly(k, logger) }
	}
	return outbox.NewLog(logger), func() {}
}

func closeQuietly(c io.Closer, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "err", err)
	}
}

func applyPolicies(cfg *config.Config, payouts *payout.Service, disputes *dispute.Service) error {
	minimum, err := cfg.Payout.Minimum()
	if err != nil {
		return fmt.Errorf("payout minimum: %w", err)
	}
	payouts.SetMinimumThreshold(minimum)
	disputes.SetPolicy(disputePolicy(cfg.Dispute))
	return nil
}

func disputePolicy(d config.DisputeConf) dispute.Policy {
	return dispute.Policy{
		ResponseWindow:   time.Duration(d.ResponseWindowHours) * time.Hour,
		RequiredEvidence: d.RequiredEvidence,
		UrgentWithin:     time.Duration(d.UrgentWithinHours) * time.Hour,
		SoonWithin:       time.Duration(d.SoonWithinHours) * time.Hour,
		AutoReplyDelay:   time.Duration(d.AutoReplyDelayMs) * time.Millisecond,
		AutoReplyMessage: d.AutoReplyMessage,
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
