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

	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/cache"
	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/config"
	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/consumer"
	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/handler"
	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/idgen"
	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/repository"
	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/service"
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

	repo, err := newRepository(cfg)
	if err != nil {
		l.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to create message repository")
	}
	defer repo.Close()

	var pageCache cache.PageCache = cache.NewNoopPageCache()
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisPageCache(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to create redis cache")
		}
		pageCache = redisCache
	}
	defer pageCache.Close()

	archiveService := service.NewArchiveService(repo, pageCache, cfg.Cache.TTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subscriberDone := make(chan struct{})
	if cfg.Persist.Enabled {
		ps, err := pubsub.NewPubSub(cfg.PubSub)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to create pubsub")
		}
		defer ps.Close()

		persist := consumer.NewPersistSubscriber(ps, archiveService)
		go func() {
			defer close(subscriberDone)
			if err := persist.Run(ctx); err != nil {
				l.Error().Err(err).Msg("persist subscriber stopped")
			}
		}()
	} else {
		close(subscriberDone)
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(l))

	handler.NewHTTPHandler(archiveService).RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		l.Info().Str("addr", addr).Str("store", cfg.Store.Driver).Msg("starting archive-service")
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
	<-subscriberDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("server forced to shutdown")
	}

	l.Info().Msg("server exited")
}

func newRepository(cfg *config.Config) (repository.MessageRepository, error) {
	switch cfg.Store.Driver {
	case "cassandra":
		ids, err := idgen.NewSnowflake(cfg.IDGen.MachineID, cfg.IDGen.Epoch)
		if err != nil {
			return nil, err
		}
		return repository.NewCassandraMessageRepository(cfg.Cassandra, ids)
	case "sql", "":
		return repository.NewGormMessageRepository(&cfg.Database)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
