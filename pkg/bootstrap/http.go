package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cardassist/internal/config"
	"cardassist/internal/logger"
	"cardassist/pkg/health"
	"cardassist/pkg/middleware"
	"cardassist/pkg/ratelimit"
	"cardassist/pkg/tracing"
)

// NewEngine builds the gin engine every service serves: tracing, recovery,
// request id and access log, plus per-client rate limiting when enabled.
// The limiter's cleanup loop runs until ctx is done.
func NewEngine(ctx context.Context, serviceName string, cfg *config.Config, log logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	if cfg.Tracing.Enabled {
		engine.Use(tracing.GinMiddleware(serviceName))
	}

	engine.Use(middleware.RecoveryMiddleware(log))
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.LoggerMiddleware(log, "/health", "/metrics"))

	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewLimiter(cfg.RateLimit)
		go limiter.Cleanup(ctx, time.Duration(cfg.RateLimit.CleanupInterval)*time.Second)
		engine.Use(limiter.Middleware())
		log.InfowCtx(ctx, "Rate limiting enabled", "rps", cfg.RateLimit.RPS, "burst", cfg.RateLimit.Burst)
	}

	return engine
}

// MountOps adds /health and /metrics.
func MountOps(engine *gin.Engine, registry *health.CheckerRegistry) {
	engine.GET("/health", health.Handler(registry))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}
	if cfg.ReadTimeoutSeconds > 0 {
		srv.ReadTimeout = cfg.ReadTimeoutSeconds * time.Second
	}
	if cfg.WriteTimeoutSeconds > 0 {
		srv.WriteTimeout = cfg.WriteTimeoutSeconds * time.Second
	}
	return srv
}

// Serve runs srv until ctx is done, then shuts it down within timeout.
func Serve(ctx context.Context, srv *http.Server, timeout time.Duration, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.InfowCtx(ctx, "Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}
