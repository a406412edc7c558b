package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paperledger/internal/infra"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type stubWarmer struct {
	result infra.WarmResult
	err    error
}

func (s stubWarmer) RunNow(ctx context.Context) (infra.WarmResult, error) {
	return s.result, s.err
}

var (
	healthy   = pingFunc(func(context.Context) error { return nil })
	unhealthy = pingFunc(func(context.Context) error { return errors.New("down") })
)

func serve(t *testing.T, cfg Config, method, path string) (int, map[string]interface{}) {
	t.Helper()
	cfg.Logger = zap.NewNop()

	rec := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       Config
		wantCode  int
		wantStore string
		wantCache string
	}{
		{"store only", Config{Store: healthy}, http.StatusOK, "healthy", "disabled"},
		{"store and cache", Config{Store: healthy, Cache: healthy}, http.StatusOK, "healthy", "healthy"},
		{"cache down", Config{Store: healthy, Cache: unhealthy}, http.StatusOK, "healthy", "unhealthy"},
		{"store down", Config{Store: unhealthy}, http.StatusServiceUnavailable, "unhealthy", "disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := serve(t, tt.cfg, http.MethodGet, "/health")
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStore, body["store"])
			assert.Equal(t, tt.wantCache, body["cache"])
		})
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	code, body := serve(t, Config{Store: healthy}, http.MethodPost, "/quotes/refresh")
	assert.Equal(t, http.StatusNotImplemented, code)
	assert.Contains(t, body, "error")

	code, body = serve(t, Config{
		Store:  healthy,
		Warmer: stubWarmer{result: infra.WarmResult{Symbols: 3, Refreshed: 2, Failed: 1}},
	}, http.MethodPost, "/quotes/refresh")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["symbols"])
	assert.EqualValues(t, 2, body["refreshed"])
	assert.EqualValues(t, 1, body["failed"])

	code, _ = serve(t, Config{Store: healthy, Warmer: stubWarmer{err: errors.New("boom")}}, http.MethodPost, "/quotes/refresh")
	assert.Equal(t, http.StatusInternalServerError, code)
}
