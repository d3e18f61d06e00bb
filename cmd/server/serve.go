package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatrelay/internal/logging"
	"github.com/Tyrowin/chatrelay/internal/mirror"
	"github.com/Tyrowin/chatrelay/internal/presence"
	"github.com/Tyrowin/chatrelay/internal/server"
	"github.com/Tyrowin/chatrelay/internal/store"
)

const dialTimeout = 10 * time.Second

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the relay (default command)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func loadConfig(opts *globalOptions) (server.Config, error) {
	cfg, err := server.LoadConfig(opts.envFile)
	if err != nil {
		return server.Config{}, err
	}
	if opts.port != "" {
		cfg.Port = opts.port
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

func runServe(ctx context.Context, opts *globalOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	observers, closeObservers, err := connectObservers(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeObservers()

	srv := server.New(cfg, log, server.Options{Observers: observers})
	srv.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case serveErr = <-errCh:
		log.Error("server stopped unexpectedly", zap.Error(serveErr))
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", zap.Error(err))
		if serveErr == nil {
			serveErr = err
		}
	}
	log.Info("server stopped")
	return serveErr
}

// connectObservers dials the configured status store and event mirror. The
// returned func releases them after the server has flushed its notifier.
func connectObservers(ctx context.Context, cfg server.Config, log *zap.Logger) ([]presence.Observer, func(), error) {
	var (
		observers []presence.Observer
		closers   []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	switch cfg.StatusStore {
	case store.KindRedis:
		rdb, err := store.DialRedis(dialCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		observers = append(observers, store.NewRedisStatusStore(rdb, 0))
		log.Info("presence status store enabled", zap.String("store", "redis"), zap.String("addr", cfg.RedisAddr))

	case store.KindMongo:
		client, err := store.DialMongo(dialCtx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
		coll := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
		observers = append(observers, store.NewMongoStatusStore(coll))
		log.Info("presence status store enabled",
			zap.String("store", "mongo"),
			zap.String("database", cfg.MongoDatabase),
			zap.String("collection", cfg.MongoCollection))
	}

	if cfg.NATSURL != "" {
		nc, err := mirror.Dial(cfg.NATSURL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = nc.Drain() })
		observers = append(observers, mirror.NewNATSPublisher(nc, cfg.NATSSubject))
		log.Info("presence mirror enabled", zap.String("subject", cfg.NATSSubject))
	}

	return observers, closeAll, nil
}
