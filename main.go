package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"track-tamper-detector/analytics"
	"track-tamper-detector/cache"
	"track-tamper-detector/config"
	"track-tamper-detector/handlers"
	"track-tamper-detector/mqtt"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	v, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("loaded config", zap.String("file", f))
	}

	store, err := newStore(v, logger)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer store.Close()

	nodes, err := config.LoadNodes(v)
	if err != nil {
		logger.Fatal("failed to load node registry", zap.Error(err))
	}

	detector := analytics.NewAnomalyDetector(logger)
	detector.OnTrain = handlers.RecordTraining
	if err := detector.Train(); err != nil {
		logger.Fatal("failed to train baseline model", zap.Error(err))
	}

	engine := analytics.NewAnalyticsEngine(analytics.EngineConfig{
		Workers:      v.GetInt("analytics.workers"),
		QueueSize:    v.GetInt("analytics.queue_size"),
		WindowSize:   v.GetInt("analytics.window_size"),
		RedThreshold: v.GetFloat64("analytics.red_threshold"),
	}, detector, store, nodes.Locate, handlers.RecordAnomaly, logger)

	mqttCfg := mqtt.DefaultConfig()
	if err := v.UnmarshalKey("mqtt", &mqttCfg); err != nil {
		logger.Fatal("invalid mqtt config", zap.Error(err))
	}
	subscriber := mqtt.NewSubscriber(mqttCfg, engine, logger)
	subscriber.Start()

	router := handlers.NewRouter(
		handlers.NewPredictHandler(detector, logger),
		handlers.NewAlertHandler(store, engine, logger),
	)

	addr := fmt.Sprintf("%s:%d", v.GetString("server.host"), v.GetInt("server.port"))
	srv := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    v.GetDuration("server.read_timeout"),
		WriteTimeout:   v.GetDuration("server.write_timeout"),
		IdleTimeout:    v.GetDuration("server.idle_timeout"),
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), v.GetDuration("server.shutdown_timeout"))
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	subscriber.Stop()
	engine.Close()

	logger.Info("server exited")
}

func newStore(v *viper.Viper, logger *zap.Logger) (cache.Store, error) {
	ttl := v.GetDuration("redis.reading_ttl")
	addr := v.GetString("redis.addr")
	if addr == "" {
		logger.Info("redis not configured, using in-memory store")
		return cache.NewMemoryStore(ttl), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := cache.NewRedisClient(ctx, addr, ttl)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to redis", zap.String("addr", addr))
	return client, nil
}
