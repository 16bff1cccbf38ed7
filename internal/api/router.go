package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/api/handlers"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/metrics"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// schedulerHandler는 nil 가능 (스케줄러 없이 API만 실행)
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(forecastHandler *handlers.ForecastHandler, schedulerHandler *handlers.SchedulerHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// 메서드 불일치 → 405: /api 라우트는 subrouter 없이 루트에 등록

	// Prediction jobs (jobs.yaml)
	r.HandleFunc("/api/jobs", forecastHandler.ListJobs).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{pid}", forecastHandler.GetJob).Methods(http.MethodGet)

	// Forecasts
	r.HandleFunc("/api/forecast/{pid}", forecastHandler.GetForecast).Methods(http.MethodGet)
	r.HandleFunc("/api/forecast/{pid}", forecastHandler.CreateForecast).Methods(http.MethodPost)

	if schedulerHandler != nil {
		r.HandleFunc("/api/scheduler/jobs", schedulerHandler.GetStats).Methods(http.MethodGet)
		r.HandleFunc("/api/scheduler/jobs/{name}/run", schedulerHandler.RunJob).Methods(http.MethodPost)
	}

	r.Use(observeMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "stef-api",
	})
}

// statusRecorder 응답 코드 기록용
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// observeMiddleware logs each request and records its latency per route template.
// /metrics 자체는 집계하지 않음
func observeMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			duration := time.Since(start)
			if route != "/metrics" {
				metrics.ObserveHTTPRequest(route, r.Method, rec.status, duration)
			}

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"route":    route,
				"status":   rec.status,
				"duration": duration,
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware turns handler panics into a 500 JSON response
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"panic": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
