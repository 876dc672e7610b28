package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/classifier"
	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/config"
	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/consumer"
	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/handler"
	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/history"
	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/service"
	pkgconfig "github.com/shamilramasanov/mellchat-sub003/pkg/config"
	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/pkg/pubsub"
)

func main() {
	if err := pkgconfig.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, continuing with system environment\n", err)
	}

	cfg, err := config.Load(pkgconfig.Path("config/config.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	l := log.L()

	provider, closeProvider, err := newHistoryProvider(cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to create history provider")
	}
	defer closeProvider()

	ps, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to create pubsub")
	}
	defer ps.Close()

	lex := classifier.DefaultLexicon().Extend(cfg.Classifier.ExtraStarters, cfg.Classifier.ExtraEmoji)
	classifyService := service.NewClassifyService(
		classifier.New(lex),
		provider,
		ps,
		cfg.History.Limit,
		cfg.History.Timeout,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerDone := make(chan struct{})
	if cfg.Kafka.Enabled {
		kc, err := consumer.NewConsumer(cfg.Kafka, classifyService)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to create kafka consumer")
		}
		go func() {
			defer close(consumerDone)
			if err := kc.Run(ctx); err != nil {
				l.Error().Err(err).Msg("kafka consumer stopped")
			}
			if err := kc.Close(); err != nil {
				l.Warn().Err(err).Msg("failed to close kafka consumer")
			}
		}()
	} else {
		close(consumerDone)
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(l))

	handler.NewHTTPHandler(classifyService).RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		l.Info().Str("addr", addr).Str("history", cfg.History.Driver).Msg("starting classifier-service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info().Msg("shutting down server")

	cancel()
	<-consumerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("server forced to shutdown")
	}

	l.Info().Msg("server exited")
}

func newHistoryProvider(cfg *config.Config) (history.Provider, func(), error) {
	switch cfg.History.Driver {
	case "http":
		return history.NewHTTPHistory(cfg.Store.URL, cfg.Store.Timeout), func() {}, nil
	case "redis", "":
		h, err := history.NewRedisHistory(history.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.History.Prefix,
			Size:     cfg.History.Limit,
			TTL:      cfg.History.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return h, func() { _ = h.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown history driver %q", cfg.History.Driver)
	}
}
