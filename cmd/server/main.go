package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avl-svr/internal/config"
	"avl-svr/internal/dispatcher"
	"avl-svr/internal/grpcclient"
	"avl-svr/internal/link"
	"avl-svr/internal/observability"
	"avl-svr/internal/server"
	"avl-svr/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("avl-svr stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("Starting avl-svr...", "addr", cfg.TCPAddr(), "ingest", cfg.IngestMode, "fallback", cfg.FallbackDriver, "feed", cfg.LiveFeed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := observability.StartMetricsServer(ctx, cfg.MetricsPort); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	// Redis antes del server: estado de dispositivo y, si aplica, el feed
	var state store.DeviceState = store.Nop{}
	var rdb *store.Redis
	if cfg.RedisAddr != "" {
		rdb, err = store.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("redis init: %w", err)
		}
		defer rdb.Close()
		state = rdb
	}

	feed, err := openFeed(ctx, cfg, rdb, logger)
	if err != nil {
		return err
	}
	defer feed.Close()

	primary, closePrimary, err := openIngester(cfg)
	if err != nil {
		return err
	}
	defer closePrimary()

	fallback, closeFallback, err := openFallback(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFallback()

	disp := dispatcher.New(dispatcher.Options{
		Primary:     primary,
		PrimaryName: cfg.IngestMode,
		Fallback:    fallback,
		Feed:        feed,
		State:       state,
		Timeout:     cfg.RequestTimeout,
		Logger:      logger,
	})

	srv := server.New(disp, server.Options{
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		RequestTimeout: cfg.RequestTimeout,
		MaxPayload:     cfg.MaxPayload,
		HexDump:        cfg.HexDumpDebug,
		DumpDir:        cfg.DumpDir,
		State:          state,
		Feed:           feed,
		Logger:         logger,
	})
	if err := srv.ListenAndServe(ctx, cfg.TCPAddr()); err != nil {
		return fmt.Errorf("TCP server failed: %w", err)
	}
	logger.Info("avl-svr stopped")
	return nil
}

func openFeed(ctx context.Context, cfg config.Config, rdb *store.Redis, logger *slog.Logger) (link.Publisher, error) {
	switch cfg.LiveFeed {
	case config.FeedRedis:
		return link.NewRedis(rdb.Client(), cfg.RedisChannel), nil
	case config.FeedMQTT:
		return link.NewMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, logger)
	case config.FeedNDJSON:
		l := link.NewNDJSON(cfg.LinkAddr, logger)
		go l.Run(ctx)
		return l, nil
	default:
		return link.Nop{}, nil
	}
}

func openIngester(cfg config.Config) (dispatcher.Ingester, func(), error) {
	if cfg.IngestMode == config.IngestGRPC {
		c, err := grpcclient.NewGRPCClient(cfg.GRPCServer)
		if err != nil {
			return nil, nil, fmt.Errorf("grpc client %s: %w", cfg.GRPCServer, err)
		}
		return c, func() { _ = c.Close() }, nil
	}
	return dispatcher.NewHTTPIngester(cfg.IngestURL(), cfg.RequestTimeout), func() {}, nil
}

// openFallback returns a nil store for FallbackNone; an unreachable
// database is logged and the server runs without a fallback.
func openFallback(ctx context.Context, cfg config.Config, logger *slog.Logger) (dispatcher.FallbackStore, func(), error) {
	nop := func() {}
	c, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.FallbackDriver {
	case config.FallbackPostgres:
		db, err := store.OpenSQL(c, store.DriverPostgres, cfg.Postgres.DSN())
		if err != nil {
			logger.Error("postgres fallback unavailable", "error", err)
			return nil, nop, nil
		}
		return db, func() { _ = db.Close() }, nil
	case config.FallbackSQLite:
		db, err := store.OpenSQL(c, store.DriverSQLite, cfg.SQLitePath)
		if err != nil {
			return nil, nop, err
		}
		if err := db.EnsureSchema(c); err != nil {
			_ = db.Close()
			return nil, nop, err
		}
		return db, func() { _ = db.Close() }, nil
	case config.FallbackMongo:
		m, err := store.ConnectMongo(c, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Error("mongo fallback unavailable", "error", err)
			return nil, nop, nil
		}
		return m, func() {
			dc, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = m.Close(dc)
		}, nil
	case config.FallbackNone:
		return nil, nop, nil
	}
	return nil, nop, errors.New("unknown fallback driver " + cfg.FallbackDriver)
}
