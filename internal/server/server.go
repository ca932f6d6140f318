package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"keyfetch/cache"
	"keyfetch/internal/config"
	"keyfetch/internal/upstream"
	"keyfetch/loader"
)

// Server owns the upstream fetcher, the loader and the HTTP front end
type Server struct {
	cfg        *config.Config
	fetcher    *upstream.Fetcher
	loader     *loader.Loader[string, json.RawMessage]
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates a new Server
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	fetcher := upstream.NewFetcher(cfg.Upstream, logger)

	resultCache, err := newCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	l := loader.New(fetcher.Fetch,
		loader.WithWait[string, json.RawMessage](cfg.GetBatchWaitDuration()),
		loader.WithMaxBatch[string, json.RawMessage](cfg.MaxBatchSize),
		loader.WithCache[string, json.RawMessage](resultCache),
		loader.WithLogger[string, json.RawMessage](logger),
	)

	return &Server{
		cfg:     cfg,
		fetcher: fetcher,
		loader:  l,
		logger:  logger,
	}, nil
}

// newCache builds the loader's result cache from config
func newCache(cfg *config.Config, logger zerolog.Logger) (cache.Cache[string, loader.Thunk[json.RawMessage]], error) {
	switch mode := cfg.CacheModeOrDefault(); mode {
	case config.CacheModeMemory:
		logger.Info().Msg("cache enabled (unbounded)")
		return cache.NewMemory[string, loader.Thunk[json.RawMessage]](), nil
	case config.CacheModeLRU:
		c, err := cache.NewLRU[string, loader.Thunk[json.RawMessage]](cfg.Cache.Size)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		logger.Info().Int("size", cfg.Cache.Size).Msg("cache enabled (lru)")
		return c, nil
	case config.CacheModeOff:
		logger.Info().Msg("cache disabled")
		return cache.NewNoop[string, loader.Thunk[json.RawMessage]](), nil
	default:
		return nil, fmt.Errorf("unknown cache mode: %s", mode)
	}
}

// Start connects the upstream and starts the HTTP server
func (s *Server) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.fetcher.Connect(ctx); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      NewHandler(s.loader, s.logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", addr).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server...")

	var httpErr error
	if s.httpServer != nil {
		httpErr = s.httpServer.Shutdown(ctx)
	}

	s.fetcher.Close()

	if httpErr != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", httpErr)
	}

	s.logger.Info().Msg("server stopped")
	return nil
}
