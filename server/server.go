package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"albumapi/cache"
	"albumapi/config"
	"albumapi/db"
	"albumapi/logger"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// NewLimiter builds the request limiter from cfg, nil when disabled.
func NewLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
}

// NewRouter wires the album and track resources. Every path also matches
// with a trailing slash.
func NewRouter(h *APIHandler, limiter *rate.Limiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware, accessLogMiddleware, corsMiddleware, rateLimitMiddleware(limiter))

	route := func(path string, f http.HandlerFunc, methods ...string) {
		router.HandleFunc(path, f).Methods(methods...)
		router.HandleFunc(path+"/", f).Methods(methods...)
	}

	route("/album", h.ListAlbumsHandler, http.MethodGet)
	route("/album", h.CreateAlbumHandler, http.MethodPost)
	route("/album/{id:[0-9]+}", h.GetAlbumHandler, http.MethodGet)
	route("/album/{id:[0-9]+}", h.UpdateAlbumHandler, http.MethodPut)
	route("/album/{id:[0-9]+}", h.PartialUpdateAlbumHandler, http.MethodPatch)
	route("/album/{id:[0-9]+}", h.DeleteAlbumHandler, http.MethodDelete)

	route("/track", h.ListTracksHandler, http.MethodGet)
	route("/track", h.CreateTrackHandler, http.MethodPost)
	route("/track/{id:[0-9]+}", h.GetTrackHandler, http.MethodGet)
	route("/track/{id:[0-9]+}", h.UpdateTrackHandler, http.MethodPut)
	route("/track/{id:[0-9]+}", h.PartialUpdateTrackHandler, http.MethodPatch)
	route("/track/{id:[0-9]+}", h.DeleteTrackHandler, http.MethodDelete)

	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)

	// 预检请求: answered by corsMiddleware, which only runs on a matched route
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return router
}

// Start connects the store (and Redis when enabled), migrates the schema and
// serves until SIGINT/SIGTERM or ctx is done.
func Start(ctx context.Context, cfg *config.Config) error {
	gdb, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}

	var albumCache cache.AlbumCache = cache.NopAlbumCache{}
	if cfg.RedisEnabled {
		client, err := db.NewRedisClient(cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		albumCache = cache.NewRedisAlbumCache(client, time.Duration(cfg.CacheTTL)*time.Second)
		logger.Info("Album cache enabled", logger.Int("ttlSeconds", cfg.CacheTTL))
	}

	apiHandler, err := NewAPIHandler(gdb, albumCache)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      NewRouter(apiHandler, NewLimiter(cfg)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", logger.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
