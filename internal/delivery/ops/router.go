// Package ops serves the operational listener: health and manual quote refresh.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"paperledger/internal/infra"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Warmer refreshes cached quotes on demand
type Warmer interface {
	RunNow(ctx context.Context) (infra.WarmResult, error)
}

// Config holds the ops listener dependencies. Cache and Warmer are nil when Redis is not configured.
type Config struct {
	Store  Pinger
	Cache  Pinger
	Warmer Warmer
	Logger *zap.Logger
}

// NewRouter builds the chi router for the ops listener
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", handleHealth(cfg))
	r.Post("/quotes/refresh", handleRefresh(cfg))

	return r
}

func handleHealth(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "healthy"
		code := http.StatusOK

		storeStatus := "healthy"
		if err := cfg.Store.Ping(ctx); err != nil {
			cfg.Logger.Warn("store health check failed", zap.Error(err))
			storeStatus = "unhealthy"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		cacheStatus := "disabled"
		if cfg.Cache != nil {
			cacheStatus = "healthy"
			if err := cfg.Cache.Ping(ctx); err != nil {
				cfg.Logger.Warn("cache health check failed", zap.Error(err))
				cacheStatus = "unhealthy"
				status = "degraded"
			}
		}

		writeJSON(w, code, map[string]interface{}{
			"status":    status,
			"service":   "paperledger-ops",
			"store":     storeStatus,
			"cache":     cacheStatus,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func handleRefresh(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Warmer == nil {
			writeJSON(w, http.StatusNotImplemented, map[string]string{
				"error": "quote cache is not configured",
			})
			return
		}

		cfg.Logger.Info("manual quote refresh triggered")
		result, err := cfg.Warmer.RunNow(r.Context())
		if err != nil {
			cfg.Logger.Error("manual quote refresh failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
