package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"pathfinder/api"
	"pathfinder/config"
	"pathfinder/etcd"
	"pathfinder/graph"
	"pathfinder/health"
	"pathfinder/history"
	"pathfinder/synchronizer"
)

func setupLogging(cfg config.LogConfig, level log.Level) {
	os.MkdirAll(cfg.Dir, 0755)

	fileLogger := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, cfg.File),
		MaxSize:    cfg.MaxSize, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	}

	// Output to both file and stdout (for systemd)
	log.SetOutput(io.MultiWriter(os.Stdout, fileLogger))
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetLevel(level)

	log.Infof("Logging initialized: file=%s, stdout=enabled, level=%s", fileLogger.Filename, level)
}

func main() {
	configPath := flag.String("config", "pathfinder_config.toml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading configuration failed, err:%v", err)
	}
	setupLogging(cfg.Log, cfg.LogLevel())

	healthServer := health.NewServer(cfg.GRPC.ListenAddr)
	store := graph.New(cfg.GraphOptions()...)
	syncer := synchronizer.New(store,
		synchronizer.WithDefaultK(cfg.Search.DefaultK),
		synchronizer.WithMaxK(cfg.Search.MaxK),
		synchronizer.WithCacheSize(cfg.CacheSize()),
		synchronizer.WithTopologyListener(healthServer.TopologyLoaded),
	)

	// left nil when the store is disabled
	var (
		eventLog     history.EventLog
		eventReader  api.EventReader
		sampleStore  history.SampleStore
		sampleReader api.SampleReader
	)
	if cfg.History.MySQLDSN != "" {
		db, err := history.ConnectToDB(cfg.History.MySQLDSN)
		if err != nil {
			log.Fatalf("connecting audit database failed, err:%v", err)
		}
		audit := history.NewAuditLog(db)
		defer audit.Close()
		if err := audit.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("preparing audit table failed, err:%v", err)
		}
		eventLog, eventReader = audit, audit
	}
	if cfg.History.RedisAddr != "" {
		samples := history.NewLinkSamples(
			history.NewRedisPool(cfg.History.RedisAddr, cfg.History.RedisMaxIdle),
			cfg.History.SampleKeyPrefix,
			cfg.History.SampleDepth,
		)
		defer samples.Close()
		sampleStore, sampleReader = samples, samples
	}
	recorder := history.NewRecorder(syncer, eventLog, sampleStore, cfg.History.WriteTimeout)

	watcher, err := etcd.NewEventWatcher(etcd.EtcdConfig(cfg.Etcd), recorder)
	if err != nil {
		log.Fatalf("creating etcd watcher failed, err:%v", err)
	}
	defer watcher.Close()
	if err := watcher.InitPools(cfg.Events.Workers); err != nil {
		log.Fatalf("creating event pools failed, err:%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Start(ctx)
	})
	g.Go(func() error {
		return healthServer.Start(ctx)
	})
	g.Go(func() error {
		server := api.NewServer(cfg.API, api.NewHandlers(syncer).WithHistory(eventReader, sampleReader))
		return api.Run(ctx, server, cfg.API.ShutdownTimeout)
	})

	log.Infof("pathfinder init success, watcher %s", watcher.ID())
	if err := g.Wait(); err != nil {
		log.Errorf("pathfinder stopped with error: %v", err)
		watcher.Close()
		os.Exit(1)
	}
	log.Infof("received signal, shut down")
}
