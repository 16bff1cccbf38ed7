package objective

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/confidence"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/scoring"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/split"
)

var (
	// ErrTrialPruned trial이 pruning 콜백에 의해 중단됨
	ErrTrialPruned = errors.New("trial pruned")

	// ErrDuplicateTrial 동일 trial 번호 중복 기록
	ErrDuplicateTrial = errors.New("trial already recorded")
)

// UserAttrModel trial user attribute holding the fitted snapshot.
const UserAttrModel = "model"

// Config 튜닝 objective 설정
type Config struct {
	TestFraction       float64
	ValidationFraction float64
	// EvalMetric 평가 지표 이름 (기본 "mae")
	EvalMetric string
	// SplitFunc 기본값 split.TrainValidationTest
	SplitFunc split.Func
	// SplitOptions가 nil이면 StratificationMinMax/BackTest = true
	SplitOptions *split.Options
}

// DefaultConfig returns the standard tuning configuration.
func DefaultConfig() Config {
	return Config{
		TestFraction:       0.15,
		ValidationFraction: 0.15,
		EvalMetric:         scoring.DefaultMetric,
	}
}

// Objective 모델 패밀리 하나에 대한 trial 평가기
// 템플릿 모델은 변경하지 않으며 trial마다 새 스냅샷을 만든다.
type Objective struct {
	family     Family
	template   *regressor.Model
	input      *frame.Frame
	splitFunc  split.Func
	splitOpts  split.Options
	metricName string
	metric     scoring.Func
	log        zerolog.Logger

	once     sync.Once
	split    *split.DataSplit
	splitErr error
}

// New creates an objective for the template's model family.
func New(template *regressor.Model, input *frame.Frame, cfg Config, log zerolog.Logger) (*Objective, error) {
	family, err := FamilyFor(template.Type)
	if err != nil {
		return nil, err
	}
	if cfg.EvalMetric == "" {
		cfg.EvalMetric = scoring.DefaultMetric
	}
	metric, err := scoring.MetricFunc(cfg.EvalMetric)
	if err != nil {
		return nil, err
	}
	splitFunc := cfg.SplitFunc
	if splitFunc == nil {
		splitFunc = split.TrainValidationTest
	}
	opts := split.Options{
		TestFraction:         cfg.TestFraction,
		ValidationFraction:   cfg.ValidationFraction,
		StratificationMinMax: true,
		BackTest:             true,
	}
	if cfg.SplitOptions != nil {
		opts = *cfg.SplitOptions
	}

	return &Objective{
		family:     family,
		template:   template,
		input:      input,
		splitFunc:  splitFunc,
		splitOpts:  opts,
		metricName: cfg.EvalMetric,
		metric:     metric,
		log:        log.With().Str("component", "objective").Str("model", string(template.Type)).Logger(),
	}, nil
}

// Family returns the family the objective tunes.
func (o *Objective) Family() Family {
	return o.family
}

// Split returns the data split, computed once.
func (o *Objective) Split() (*split.DataSplit, error) {
	o.once.Do(func() {
		o.split, o.splitErr = o.splitFunc(o.input, o.splitOpts)
	})
	return o.split, o.splitErr
}

// Params requests the trial's hyperparameters: the common space restricted to the
// parameters the model accepts, extended with the family's own parameters.
func (o *Objective) Params(trial Trial) regressor.Params {
	accepted := o.template.Estimator.Params()
	params := intersect(defaultParamSpace(trial), accepted)
	return params.Merge(o.family.ParamSpace(trial))
}

// Evaluate runs one trial and returns its score (lower is better).
// The result is recorded in log; a column-order violation is fatal for the session.
func (o *Objective) Evaluate(ctx context.Context, trial Trial, log *TrialLog) (TrialResult, error) {
	result := TrialResult{Number: trial.Number()}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	// 1-2. 분할 + 컬럼 순서 검증 (위반 시 모델 호출 없이 중단)
	ds, err := o.Split()
	if err != nil {
		return result, fmt.Errorf("split input data: %w", err)
	}
	if err := ds.Validate(); err != nil {
		o.log.Error().Err(err).Int("trial", trial.Number()).Msg("column order violated, aborting tuning")
		return result, err
	}

	// 3-4. 피처/타겟 분리 + eval set
	trainX, trainY := split.XY(ds.Train)
	valX, valY := split.XY(ds.Validation)
	testX, testY := split.XY(ds.Test)
	evalSet := []regressor.EvalSet{
		{X: trainX, Y: trainY},
		{X: valX, Y: valY},
	}

	// 5. 하이퍼파라미터
	params := o.Params(trial)
	result.Params = params

	// 6. early stopping / pruning
	var callbacks []regressor.Callback
	if cb := o.family.EarlyStopping(o.metricName); cb != nil {
		callbacks = append(callbacks, cb)
	}
	if cb := o.family.Pruning(trial, o.metricName); cb != nil {
		callbacks = append(callbacks, cb)
	}

	// 7. 템플릿 복제 후 학습
	model := o.template.Clone()
	if err := model.Estimator.SetParams(params); err != nil {
		return result, fmt.Errorf("trial %d: set params: %w", trial.Number(), err)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	err = model.Estimator.Fit(trainX, trainY, regressor.FitOptions{
		EvalSet:    evalSet,
		EvalMetric: o.metricName,
		Callbacks:  callbacks,
	})
	if errors.Is(err, ErrTrialPruned) {
		result.Pruned = true
		o.log.Debug().Int("trial", trial.Number()).Msg("trial pruned")
		return result, err
	}
	if err != nil {
		return result, fmt.Errorf("trial %d: fit: %w", trial.Number(), err)
	}

	// 8. feature importance
	model.UpdateFeatureImportance()

	// 9. 검증 데이터 잔차 표준편차
	model, err = confidence.GenerateStandardDeviation(model, ds.Validation)
	if err != nil {
		return result, fmt.Errorf("trial %d: %w", trial.Number(), err)
	}

	// 10. 테스트 점수 (테스트셋이 비어 있으면 검증셋)
	scoreX, scoreY := testX, testY
	if ds.Test.Len() == 0 {
		scoreX, scoreY = valX, valY
	}
	pred, err := model.Predict(scoreX)
	if err != nil {
		return result, fmt.Errorf("trial %d: predict: %w", trial.Number(), err)
	}
	score := scoring.Finite(o.metric(scoreY, pred))

	if err := log.Append(trial.Number(), TrialRecord{Score: score, Params: params}); err != nil {
		return result, err
	}
	trial.SetUserAttr(UserAttrModel, model)

	result.Score = score
	result.Model = model

	o.log.Info().
		Int("trial", trial.Number()).
		Float64("score", score).
		Str("metric", o.metricName).
		Msg("trial evaluated")

	// 11.
	return result, nil
}

// Report scores a fitted model on every split of the objective's data.
func (o *Objective) Report(model *regressor.Model) (*scoring.Report, error) {
	ds, err := o.Split()
	if err != nil {
		return nil, err
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	score := func(f *frame.Frame) (scoring.SplitScore, error) {
		if f.Len() == 0 {
			return scoring.Score(nil, nil), nil
		}
		x, y := split.XY(f)
		pred, err := model.Predict(x)
		if err != nil {
			return scoring.SplitScore{}, err
		}
		return scoring.Score(y, pred), nil
	}

	var report scoring.Report
	if report.Train, err = score(ds.Train); err != nil {
		return nil, fmt.Errorf("report train: %w", err)
	}
	if report.Validation, err = score(ds.Validation); err != nil {
		return nil, fmt.Errorf("report validation: %w", err)
	}
	if report.Test, err = score(ds.Test); err != nil {
		return nil, fmt.Errorf("report test: %w", err)
	}
	return &report, nil
}
