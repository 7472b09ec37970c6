// Package apihttp exposes the two synchronizer entry points over HTTP for
// the UI layer: /api/candles and /api/quotes, plus a health endpoint that
// reports circuit-breaker state.
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tickline/internal/guard"
	"tickline/internal/logger"
	"tickline/internal/market"

	"github.com/gin-gonic/gin"
)

// CandleAPI and QuoteAPI are the synchronizer contracts the transport needs.
type CandleAPI interface {
	GetCandles(ctx context.Context, symbol string, interval market.Interval, limit int) ([]market.Candle, error)
}

type QuoteAPI interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]market.Quote, error)
}

type ServerConfig struct {
	Addr     string
	Candles  CandleAPI
	Quotes   QuoteAPI
	Breaker  *guard.Breaker
	Location *time.Location
}

type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Candles == nil || cfg.Quotes == nil {
		return nil, errors.New("http server requires candle and quote synchronizers")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8086"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	h := &handlers{cfg: cfg}
	router.GET("/healthz", h.health)
	api := router.Group("/api")
	api.GET("/candles", h.candles)
	api.GET("/quotes", h.quotes)

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http server listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}
