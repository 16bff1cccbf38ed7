package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/forecast"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/jobs"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/measurements"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/logger"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/redis"
)

// InputSource 예측 입력 조회
type InputSource interface {
	Input(ctx context.Context, pid int64, w measurements.Window) (*frame.Frame, error)
}

// Forecaster 예측 파이프라인
type Forecaster interface {
	Create(ctx context.Context, job contracts.PredictionJob, input *frame.Frame) (*contracts.Forecast, error)
}

// ForecastStore 예측 결과 저장/조회
type ForecastStore interface {
	Save(ctx context.Context, fc *contracts.Forecast) error
	Get(ctx context.Context, pid int64, from, to time.Time) (*contracts.Forecast, error)
}

// RateLimiter 분산 레이트 리밋
type RateLimiter interface {
	Allow(ctx context.Context, cfg redis.RateLimitConfig) (bool, int, error)
}

// ForecastHandler handles forecast API endpoints
// ⭐ SSOT: Forecast API 핸들러는 이 구조체에서만
type ForecastHandler struct {
	jobs        []contracts.PredictionJob
	input       InputSource
	pipeline    Forecaster
	store       ForecastStore
	limiter     RateLimiter
	historyDays int
	logger      *logger.Logger
	now         func() time.Time
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(
	predictionJobs []contracts.PredictionJob,
	input InputSource,
	pipeline Forecaster,
	store ForecastStore,
	limiter RateLimiter,
	historyDays int,
	log *logger.Logger,
) *ForecastHandler {
	return &ForecastHandler{
		jobs:        predictionJobs,
		input:       input,
		pipeline:    pipeline,
		store:       store,
		limiter:     limiter,
		historyDays: historyDays,
		logger:      log,
		now:         time.Now,
	}
}

// ForecastPoint 예측 1행 (NaN은 null)
type ForecastPoint struct {
	Time      time.Time          `json:"time"`
	Forecast  *float64           `json:"forecast"`
	Stdev     *float64           `json:"stdev,omitempty"`
	Quantiles map[string]float64 `json:"quantiles,omitempty"`
}

// ForecastResponse 예측 응답
type ForecastResponse struct {
	PID         int64           `json:"pid"`
	Customer    string          `json:"customer"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	AlgType     string          `json:"algtype"`
	Quality     string          `json:"quality"`
	Quantiles   []float64       `json:"quantiles"`
	Points      []ForecastPoint `json:"points"`
}

// CreateForecast runs the pipeline for one prediction job and stores the result
// POST /api/forecast/{pid}
func (h *ForecastHandler) CreateForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pid, ok := parsePID(w, r)
	if !ok {
		return
	}
	job, found := jobs.Find(h.jobs, pid)
	if !found {
		respondError(w, http.StatusNotFound, "unknown prediction job")
		return
	}

	allowed, remaining, err := h.limiter.Allow(ctx, redis.ForecastRateLimit(pid))
	if err != nil {
		// 레이트 리밋 실패는 요청을 막지 않음
		h.logger.WithJob(pid).WithError(err).Warn("Rate limit check failed")
	} else {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			respondError(w, http.StatusTooManyRequests, "too many forecast requests")
			return
		}
	}

	input, err := h.input.Input(ctx, pid, measurements.InputWindow(job, h.now(), h.historyDays))
	if err != nil {
		h.logger.WithJob(pid).WithError(err).Error("Failed to load input data")
		respondError(w, http.StatusInternalServerError, "failed to load input data")
		return
	}

	fc, err := h.pipeline.Create(ctx, job, input)
	if err != nil {
		h.logger.WithJob(pid).WithError(err).Warn("Forecast failed")
		respondPipelineError(w, err)
		return
	}

	if err := h.store.Save(ctx, fc); err != nil {
		h.logger.WithJob(pid).WithError(err).Error("Failed to store forecast")
		respondError(w, http.StatusInternalServerError, "failed to store forecast")
		return
	}

	respondJSON(w, http.StatusCreated, newForecastResponse(fc))
}

// GetForecast returns the stored forecast of a prediction job
// GET /api/forecast/{pid}?from=RFC3339&to=RFC3339
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	pid, ok := parsePID(w, r)
	if !ok {
		return
	}

	// 기본 구간: 최근 1일 ~ 향후 2일
	now := h.now()
	from, err := parseTime(r.URL.Query().Get("from"), now.Add(-24*time.Hour))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid from (RFC3339)")
		return
	}
	to, err := parseTime(r.URL.Query().Get("to"), now.Add(48*time.Hour))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid to (RFC3339)")
		return
	}
	if to.Before(from) {
		respondError(w, http.StatusBadRequest, "to is before from")
		return
	}

	fc, err := h.store.Get(r.Context(), pid, from, to)
	if errors.Is(err, forecast.ErrNoForecast) {
		respondError(w, http.StatusNotFound, "no forecast stored")
		return
	}
	if err != nil {
		h.logger.WithJob(pid).WithError(err).Error("Failed to get forecast")
		respondError(w, http.StatusInternalServerError, "failed to get forecast")
		return
	}

	respondJSON(w, http.StatusOK, newForecastResponse(fc))
}

// ListJobs returns the configured prediction jobs
// GET /api/jobs
func (h *ForecastHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  h.jobs,
		"count": len(h.jobs),
	})
}

// GetJob returns one prediction job
// GET /api/jobs/{pid}
func (h *ForecastHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	pid, ok := parsePID(w, r)
	if !ok {
		return
	}
	job, found := jobs.Find(h.jobs, pid)
	if !found {
		respondError(w, http.StatusNotFound, "unknown prediction job")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func parsePID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	pid, err := strconv.ParseInt(mux.Vars(r)["pid"], 10, 64)
	if err != nil || pid <= 0 {
		respondError(w, http.StatusBadRequest, "pid must be a positive integer")
		return 0, false
	}
	return pid, true
}

func parseTime(raw string, def time.Time) (time.Time, error) {
	if raw == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func newForecastResponse(fc *contracts.Forecast) ForecastResponse {
	rows := forecast.Rows(fc)
	points := make([]ForecastPoint, len(rows))
	for i, row := range rows {
		p := ForecastPoint{
			Time:     row.Time,
			Forecast: finite(row.Forecast),
			Stdev:    finite(row.Stdev),
		}
		if len(row.Quantiles) > 0 {
			p.Quantiles = row.Quantiles
		}
		points[i] = p
	}
	return ForecastResponse{
		PID:         fc.PID,
		Customer:    fc.Customer,
		Description: fc.Description,
		Type:        fc.Type,
		AlgType:     fc.AlgType,
		Quality:     fc.Quality,
		Quantiles:   fc.Quantiles,
		Points:      points,
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
