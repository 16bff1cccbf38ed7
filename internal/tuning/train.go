package tuning

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/features"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/objective"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/registry"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/validation"
)

// Trainer 작업 단위 학습: 검증 → 학습 피처 → 탐색 → 레지스트리 저장
type Trainer struct {
	registry   registry.Registry
	applicator *features.Applicator
	validator  *validation.Validator
	objective  objective.Config
	opts       Options
	log        zerolog.Logger
}

// NewTrainer creates a trainer.
func NewTrainer(reg registry.Registry, applicator *features.Applicator, cfg objective.Config, opts Options, log zerolog.Logger) *Trainer {
	return &Trainer{
		registry:   reg,
		applicator: applicator,
		validator:  validation.NewValidator(log),
		objective:  cfg,
		opts:       opts,
		log:        log.With().Str("component", "tuning.trainer").Logger(),
	}
}

// Train tunes the job's model family on history and saves the best model.
func (t *Trainer) Train(ctx context.Context, job contracts.PredictionJob, history *frame.Frame) (*Result, error) {
	validated, err := t.validator.Validate(job.ID, history, validation.OptionsFor(job))
	if err != nil {
		return nil, err
	}

	data, err := t.applicator.ApplyTraining(validated, features.DefaultTrainingHorizons, nil)
	if err != nil {
		return nil, fmt.Errorf("training features pid %d: %w", job.ID, err)
	}
	if data.Len() == 0 {
		return nil, fmt.Errorf("pid %d: no rows with measured load", job.ID)
	}

	template, err := regressor.NewModel(regressor.ModelType(job.Model))
	if err != nil {
		return nil, err
	}
	obj, err := objective.New(template, data, t.objective, t.log)
	if err != nil {
		return nil, err
	}

	t.log.Info().
		Int64("pid", job.ID).
		Str("model", job.Model).
		Int("rows", data.Len()).
		Int("trials", t.opts.Trials).
		Msg("training started")

	study := NewStudy(obj, t.opts, t.log)
	result, err := study.Optimize(ctx)
	if err != nil {
		return nil, fmt.Errorf("tune pid %d: %w", job.ID, err)
	}
	if _, err := study.SaveBest(ctx, t.registry, job, result); err != nil {
		return nil, err
	}
	return result, nil
}
