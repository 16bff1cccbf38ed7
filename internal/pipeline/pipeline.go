package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/confidence"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/fallback"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/features"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/metrics"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/postprocess"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/registry"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/validation"
)

// ErrUnknownDataPrep job이 등록되지 않은 data prep을 참조
var ErrUnknownDataPrep = errors.New("unknown data prep")

// DataPrep 커스텀 피처 생성
// 반환 frame: load 첫 컬럼, horizon 마지막 컬럼, 예측 구간 행 포함
type DataPrep interface {
	PrepareForecastData(data *frame.Frame, job contracts.PredictionJob, spec contracts.ModelSpecification) (*frame.Frame, error)
}

// DataPrepFunc adapts a function to DataPrep.
type DataPrepFunc func(data *frame.Frame, job contracts.PredictionJob, spec contracts.ModelSpecification) (*frame.Frame, error)

// PrepareForecastData implements DataPrep.
func (f DataPrepFunc) PrepareForecastData(data *frame.Frame, job contracts.PredictionJob, spec contracts.ModelSpecification) (*frame.Frame, error) {
	return f(data, job, spec)
}

// Config 파이프라인 설정
type Config struct {
	// Features 기본 applicator에 추가되는 피처 함수 (휴일 등)
	Features features.Functions
	// Now 예측 생성 시각 (nil이면 time.Now)
	Now func() time.Time
}

// Pipeline 예측 파이프라인
// 호출 간 공유 가변 상태 없음 (data prep 레지스트리는 읽기 위주)
type Pipeline struct {
	config    Config
	registry  registry.Registry
	validator *validation.Validator
	log       zerolog.Logger

	mu        sync.RWMutex
	dataPreps map[string]DataPrep
}

// NewPipeline creates a pipeline with calendar features only.
func NewPipeline(reg registry.Registry, log zerolog.Logger) *Pipeline {
	return NewPipelineWithConfig(Config{}, reg, log)
}

// NewPipelineWithConfig creates a pipeline with a custom config.
func NewPipelineWithConfig(config Config, reg registry.Registry, log zerolog.Logger) *Pipeline {
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Pipeline{
		config:    config,
		registry:  reg,
		validator: validation.NewValidator(log),
		log:       log.With().Str("component", "pipeline").Logger(),
		dataPreps: make(map[string]DataPrep),
	}
}

// RegisterDataPrep makes a data prep available under the name jobs reference
// in data_prep_class.
func (p *Pipeline) RegisterDataPrep(name string, dp DataPrep) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dataPreps[name] = dp
}

func (p *Pipeline) dataPrep(name string) (DataPrep, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	dp, ok := p.dataPreps[name]
	return dp, ok
}

// Create loads the job's model from the registry and creates a forecast.
func (p *Pipeline) Create(ctx context.Context, job contracts.PredictionJob, input *frame.Frame) (*contracts.Forecast, error) {
	started := time.Now()

	model, spec, err := p.registry.Load(ctx, job.ExperimentName(), job.ModelRunID)
	if err != nil {
		metrics.ObserveForecast(time.Since(started), metrics.PathError)
		return nil, fmt.Errorf("%s pid %d: %w", contracts.StageLoad, job.ID, err)
	}
	return p.CreateCore(ctx, job, model, *spec, input)
}

// CreateCore creates a forecast with an already loaded model.
func (p *Pipeline) CreateCore(ctx context.Context, job contracts.PredictionJob, model *regressor.Model,
	spec contracts.ModelSpecification, input *frame.Frame) (*contracts.Forecast, error) {
	started := time.Now()
	fc, path, err := p.run(ctx, job, model, spec, input)
	if err != nil {
		metrics.ObserveForecast(time.Since(started), metrics.PathError)
		return nil, err
	}
	metrics.ObserveForecast(time.Since(started), path)

	p.log.Info().
		Int64("pid", job.ID).
		Str("path", path).
		Str("quality", fc.Quality).
		Int("rows", fc.Len()).
		Dur("duration", time.Since(started)).
		Msg("forecast created")
	return fc, nil
}

func (p *Pipeline) run(ctx context.Context, job contracts.PredictionJob, model *regressor.Model,
	spec contracts.ModelSpecification, input *frame.Frame) (*contracts.Forecast, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	now := p.config.Now()
	resolution := time.Duration(job.ResolutionMinutes) * time.Minute

	// 1. 검증 & 정리
	validated, err := p.validator.Validate(job.ID, input, validation.OptionsFor(job))
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", contracts.StageValidate, err)
	}

	// 2. 피처 생성
	prepared, err := p.prepare(validated, job, model, spec, resolution)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", contracts.StageDataPrep, err)
	}

	start, end, err := features.ForecastWindow(prepared)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", contracts.StageDataPrep, err)
	}
	forecastInput := prepared.Between(start, end).Drop(contracts.ColumnLoad)

	// 3. 충분성 검사 (피처 적용된 전체 데이터) → 폴백 또는 모델 추론
	sufficiency := validation.IsDataSufficient(prepared, job.CompletenessThreshold,
		job.MinimalTableLength, importanceWeights(model))

	var (
		fc   *contracts.Forecast
		path string
		// 폴백 예측에는 Gaussian 분위수만 사용
		quantileInput *frame.Frame
	)
	if !sufficiency.Sufficient {
		p.log.Warn().
			Int64("pid", job.ID).
			Str("fallback_strategy", string(job.FallbackStrategy.Resolve())).
			Float64("completeness", sufficiency.Completeness).
			Int("rows", sufficiency.Rows).
			Msg("using fallback forecast")

		// 평탄 구간 정리 전의 원본 load 사용
		fc, err = fallback.Generate(forecastInput.Index(), input, job.FallbackStrategy, fallback.Options{Now: now})
		if err != nil {
			return nil, "", fmt.Errorf("%s pid %d: %w", contracts.StageFallback, job.ID, err)
		}
		path = metrics.PathFallback
	} else {
		values, err := model.Predict(forecastInput)
		if err != nil {
			return nil, "", fmt.Errorf("%s pid %d: %w", contracts.StagePredict, job.ID, err)
		}
		f := frame.New(forecastInput.Index())
		if err := f.Set(contracts.ColumnForecast, values); err != nil {
			return nil, "", err
		}
		fc = contracts.NewForecast(f)
		path = metrics.PathModel
		quantileInput = forecastInput
	}

	// 4. 신뢰구간
	fc, err = confidence.NewApplicator(model, quantileInput).Apply(fc, job.Quantiles, now)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", contracts.StageConfidence, err)
	}

	// 5. 분위수 교차 제거
	fc, err = postprocess.SortQuantiles(fc)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", contracts.StageQuantileRepair, err)
	}

	// 6. 메타데이터
	return postprocess.AddJobProperties(fc, job, algorithmType(model)), path, nil
}

func (p *Pipeline) prepare(data *frame.Frame, job contracts.PredictionJob, model *regressor.Model,
	spec contracts.ModelSpecification, resolution time.Duration) (*frame.Frame, error) {
	if job.DataPrepClass != "" {
		dp, ok := p.dataPrep(job.DataPrepClass)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDataPrep, job.DataPrepClass)
		}
		return dp.PrepareForecastData(data, job, spec)
	}

	names := spec.FeatureNames
	if len(names) == 0 {
		names = model.FeatureNames()
	}
	return features.NewApplicator(p.config.Features, resolution, p.log).ApplyOperational(data, names)
}

// importanceWeights returns the model's feature importances, nil when it has none.
// algorithmType is the registry path of the model, or its family when it was
// not loaded from a registry.
func algorithmType(model *regressor.Model) string {
	if model.Path != "" {
		return model.Path
	}
	return string(model.Type)
}

func importanceWeights(model *regressor.Model) map[string]float64 {
	if model == nil || len(model.FeatureImportance) == 0 {
		return nil
	}
	weights := make(map[string]float64, len(model.FeatureImportance))
	total := 0.0
	for _, fi := range model.FeatureImportance {
		weights[fi.Feature] = fi.Importance
		total += fi.Importance
	}
	if total <= 0 {
		return nil
	}
	return weights
}
