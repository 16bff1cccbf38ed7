package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/api/handlers"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/config"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/logger"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/redis"
)

func TestRouter(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"}, &buf)
	fh := handlers.NewForecastHandler([]contracts.PredictionJob{contracts.DefaultPredictionJob(307)},
		nil, nil, nil, redis.NewRateLimiter(redis.Disabled(), "stef"), 14, log)
	router := NewRouter(fh, nil, log)

	tests := []struct {
		method   string
		path     string
		expected int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/jobs", http.StatusOK},
		{http.MethodGet, "/api/jobs/307", http.StatusOK},
		{http.MethodGet, "/api/jobs/x", http.StatusBadRequest},
		{http.MethodDelete, "/api/jobs/307", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/jobs", http.StatusMethodNotAllowed},
		{http.MethodPut, "/api/forecast/307", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/scheduler/jobs", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"}, &buf)

	h := recoveryMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "Panic recovered")
}

func TestRouter_LogsRouteTemplate(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&config.Config{Env: "development", LogLevel: "debug", LogFormat: "json"}, &buf)
	fh := handlers.NewForecastHandler([]contracts.PredictionJob{contracts.DefaultPredictionJob(307)},
		nil, nil, nil, redis.NewRateLimiter(redis.Disabled(), "stef"), 14, log)
	router := NewRouter(fh, nil, log)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/999", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, buf.String(), `"route":"/api/jobs/{pid}"`)
	assert.Contains(t, buf.String(), `"status":404`)
}
