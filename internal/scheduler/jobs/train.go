package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/measurements"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/tuning"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/logger"
)

// Trainer 작업 단위 모델 학습
type Trainer interface {
	Train(ctx context.Context, job contracts.PredictionJob, history *frame.Frame) (*tuning.Result, error)
}

// TrainJob retrains the model of every prediction job
// Schedule: 매주 일요일 02:00 (기본)
// 튜닝 자체가 병렬이므로 작업은 순차 실행
type TrainJob struct {
	schedule    string
	historyDays int
	jobs        []contracts.PredictionJob
	input       InputSource
	trainer     Trainer
	logger      *logger.Logger
	now         func() time.Time
}

// NewTrainJob creates a new training job
func NewTrainJob(schedule string, historyDays int, jobs []contracts.PredictionJob,
	input InputSource, trainer Trainer, log *logger.Logger) *TrainJob {
	if schedule == "" {
		schedule = "0 0 2 * * 0"
	}
	if historyDays < 1 {
		historyDays = 90
	}
	return &TrainJob{
		schedule:    schedule,
		historyDays: historyDays,
		jobs:        jobs,
		input:       input,
		trainer:     trainer,
		logger:      log,
		now:         time.Now,
	}
}

// Name returns the job name
func (j *TrainJob) Name() string {
	return "train_models"
}

// Schedule returns the cron schedule
func (j *TrainJob) Schedule() string {
	return j.schedule
}

// Run trains all jobs; one failing job does not stop the others
func (j *TrainJob) Run(ctx context.Context) error {
	now := j.now()
	var failures []error

	for _, job := range j.jobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		// 학습은 측정 구간만 사용 (미래 구간 없음)
		w := measurements.InputWindow(job, now, j.historyDays)
		w.To = now.Truncate(w.Resolution)

		history, err := j.input.Input(ctx, job.ID, w)
		if err != nil {
			failures = append(failures, fmt.Errorf("pid %d: load history: %w", job.ID, err))
			continue
		}

		result, err := j.trainer.Train(ctx, job, history)
		if err != nil {
			j.logger.WithJob(job.ID).WithError(err).Warn("Training failed")
			failures = append(failures, fmt.Errorf("pid %d: %w", job.ID, err))
			continue
		}

		j.logger.WithJob(job.ID).WithFields(map[string]interface{}{
			"run_id": result.RunID,
			"score":  result.Best.Score,
			"pruned": result.Pruned,
		}).Info("Model retrained")
	}

	return errors.Join(failures...)
}
