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

	pkgconfig "github.com/shamilramasanov/mellchat-sub003/pkg/config"
	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/pkg/pubsub"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/archive"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/client"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/config"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/handler"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/hub"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/resolver"
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

	store := client.NewStoreClient(cfg.Store.URL, cfg.Store.Timeout)
	flow := archive.NewFlow(store, cfg.Archive.ClearTimeout, cfg.Archive.FetchTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var liveHub *hub.Hub
	feedDone := make(chan struct{})
	if cfg.Live.Enabled {
		ps, err := pubsub.NewPubSub(cfg.PubSub)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to create pubsub")
		}
		defer ps.Close()

		liveHub = hub.NewHub(cfg.WebSocket)
		go liveHub.Run(ctx)
		go func() {
			defer close(feedDone)
			if err := liveHub.Feed(ctx, ps); err != nil {
				l.Error().Err(err).Msg("live feed stopped")
			}
		}()
	} else {
		close(feedDone)
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(l))

	handler.NewHTTPHandler(
		flow,
		resolver.NewDateResolver(store),
		resolver.NewIDResolver(store),
		liveHub,
		cfg.WebSocket,
	).RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		l.Info().Str("addr", addr).Str("store", cfg.Store.URL).Bool("live", cfg.Live.Enabled).Msg("starting viewer-service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("server forced to shutdown")
	}

	cancel()
	<-feedDone
	// Let pending archive clears reach the store.
	flow.Wait()

	l.Info().Msg("server exited")
}
