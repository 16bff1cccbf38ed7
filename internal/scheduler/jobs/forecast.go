package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/measurements"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/logger"
)

// InputSource 예측 입력 데이터 조회
type InputSource interface {
	Input(ctx context.Context, pid int64, w measurements.Window) (*frame.Frame, error)
}

// Forecaster 예측 파이프라인
type Forecaster interface {
	Create(ctx context.Context, job contracts.PredictionJob, input *frame.Frame) (*contracts.Forecast, error)
}

// ForecastStore 예측 결과 저장
type ForecastStore interface {
	Save(ctx context.Context, fc *contracts.Forecast) error
}

// ForecastConfig 예측 작업 설정
type ForecastConfig struct {
	Schedule    string
	Parallelism int
	JobTimeout  time.Duration
	HistoryDays int
}

// ForecastJob runs the forecast pipeline for every prediction job
// Schedule: 15분마다 (기본)
type ForecastJob struct {
	config   ForecastConfig
	jobs     []contracts.PredictionJob
	input    InputSource
	pipeline Forecaster
	store    ForecastStore
	logger   *logger.Logger
	now      func() time.Time
}

// NewForecastJob creates a new forecast job
func NewForecastJob(cfg ForecastConfig, jobs []contracts.PredictionJob, input InputSource,
	pipeline Forecaster, store ForecastStore, log *logger.Logger) *ForecastJob {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 */15 * * * *"
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.HistoryDays < 1 {
		cfg.HistoryDays = 14
	}
	return &ForecastJob{
		config:   cfg,
		jobs:     jobs,
		input:    input,
		pipeline: pipeline,
		store:    store,
		logger:   log,
		now:      time.Now,
	}
}

// Name returns the job name
func (j *ForecastJob) Name() string {
	return "forecast"
}

// Schedule returns the cron schedule
func (j *ForecastJob) Schedule() string {
	return j.config.Schedule
}

// Run executes the pipeline for all prediction jobs
// 작업 하나의 실패는 다른 작업을 중단하지 않음 (실패 목록을 모아 반환)
func (j *ForecastJob) Run(ctx context.Context) error {
	now := j.now()
	j.logger.WithField("jobs", len(j.jobs)).Info("Starting scheduled forecasts")

	var (
		mu       sync.Mutex
		failures []error
		created  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Parallelism)

	for _, job := range j.jobs {
		job := job
		g.Go(func() error {
			if err := j.forecastOne(gctx, job, now); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("pid %d: %w", job.ID, err))
				mu.Unlock()

				j.logger.WithJob(job.ID).WithError(err).Warn("Forecast failed")
				return nil
			}
			mu.Lock()
			created++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	j.logger.WithFields(map[string]interface{}{
		"created": created,
		"failed":  len(failures),
	}).Info("Scheduled forecasts completed")

	return errors.Join(failures...)
}

func (j *ForecastJob) forecastOne(ctx context.Context, job contracts.PredictionJob, now time.Time) error {
	if j.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.JobTimeout)
		defer cancel()
	}

	input, err := j.input.Input(ctx, job.ID, measurements.InputWindow(job, now, j.config.HistoryDays))
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}

	fc, err := j.pipeline.Create(ctx, job, input)
	if err != nil {
		return err
	}

	if err := j.store.Save(ctx, fc); err != nil {
		return fmt.Errorf("store forecast: %w", err)
	}
	return nil
}
