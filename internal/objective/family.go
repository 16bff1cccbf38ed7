package objective

import (
	"fmt"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
)

// =============================================================================
// Model families
// ⭐ SSOT: 패밀리 선택은 regressor.ModelType enum으로만
// =============================================================================

const earlyStoppingRounds = 10

// Family 모델 패밀리별 튜닝 capability
type Family interface {
	Type() regressor.ModelType
	// ParamSpace suggests the family-specific parameters.
	ParamSpace(trial Trial) regressor.Params
	// EarlyStopping returns a fresh callback, or nil when the family has none.
	EarlyStopping(metric string) regressor.Callback
	// Pruning returns a pruning callback bound to trial, or nil.
	Pruning(trial Trial, metric string) regressor.Callback
	// DefaultValues returns neutral values for exactly the suggestable keys.
	DefaultValues() regressor.Params
}

// FamilyFor selects the family implementation for a model type.
func FamilyFor(t regressor.ModelType) (Family, error) {
	switch t {
	case regressor.ModelXGB:
		return xgbFamily{}, nil
	case regressor.ModelXGBQuantile:
		return xgbQuantileFamily{}, nil
	case regressor.ModelXGBMultiOutputQuantile:
		return xgbMultiOutputFamily{}, nil
	case regressor.ModelLGB:
		return lgbFamily{}, nil
	case regressor.ModelLinear:
		return linearFamily{}, nil
	case regressor.ModelARIMA:
		return arimaFamily{}, nil
	default:
		return nil, fmt.Errorf("no objective for model type %q", t)
	}
}

// defaultParamSpace 공통 기본 탐색 공간
func defaultParamSpace(trial Trial) regressor.Params {
	return regressor.Params{
		"learning_rate":    trial.SuggestFloat("learning_rate", 0.01, 0.5),
		"alpha":            trial.SuggestFloat("alpha", 0, 1),
		"lambda":           trial.SuggestLogFloat("lambda", 1e-8, 1),
		"subsample":        trial.SuggestFloat("subsample", 0.4, 1),
		"min_child_weight": trial.SuggestInt("min_child_weight", 1, 16),
		"max_depth":        trial.SuggestInt("max_depth", 3, 10),
		"colsample_bytree": trial.SuggestFloat("colsample_bytree", 0.5, 1),
		"max_delta_step":   trial.SuggestInt("max_delta_step", 0, 10),
	}
}

// defaultValues 공통 기본값 (defaultParamSpace와 동일한 key)
func defaultValues() regressor.Params {
	return regressor.Params{
		"learning_rate":    0.3,
		"alpha":            0.0,
		"lambda":           1.0,
		"subsample":        1.0,
		"min_child_weight": 1,
		"max_depth":        6,
		"colsample_bytree": 1.0,
		"max_delta_step":   0,
	}
}

// intersect keeps the keys of space that the model accepts.
func intersect(space, accepted regressor.Params) regressor.Params {
	out := make(regressor.Params, len(space))
	for k, v := range space {
		if _, ok := accepted[k]; ok {
			out[k] = v
		}
	}
	return out
}

// pruningCallback reports the monitored eval metric to the trial each iteration.
type pruningCallback struct {
	trial    Trial
	dataName string
	metric   string
}

// ObservationKey is the "<data>-<metric>" key the callback monitors.
func (p *pruningCallback) ObservationKey() string {
	return p.dataName + "-" + p.metric
}

// AfterIteration implements regressor.Callback.
func (p *pruningCallback) AfterIteration(iteration int, evals regressor.EvalResult) error {
	metrics, ok := evals[p.dataName]
	if !ok {
		return fmt.Errorf("pruning: no evaluation results for %q", p.ObservationKey())
	}
	v, ok := metrics[p.metric]
	if !ok {
		return fmt.Errorf("pruning: metric %q not reported", p.ObservationKey())
	}
	p.trial.Report(v, iteration)
	if p.trial.ShouldPrune() {
		return fmt.Errorf("%w: trial %d at iteration %d", ErrTrialPruned, p.trial.Number(), iteration)
	}
	return nil
}

// =============================================================================
// XGB (A)
// =============================================================================

const xgbValidationSet = "validation_1"

type xgbFamily struct{}

func (xgbFamily) Type() regressor.ModelType { return regressor.ModelXGB }

func (xgbFamily) ParamSpace(trial Trial) regressor.Params {
	return regressor.Params{
		"gamma":   trial.SuggestFloat("gamma", 0, 1),
		"booster": trial.SuggestCategorical("booster", []string{"gbtree", "dart"}),
	}
}

func (xgbFamily) EarlyStopping(metric string) regressor.Callback {
	return regressor.NewEarlyStopping(earlyStoppingRounds, metric, xgbValidationSet, true)
}

func (xgbFamily) Pruning(trial Trial, metric string) regressor.Callback {
	return &pruningCallback{trial: trial, dataName: xgbValidationSet, metric: metric}
}

func (xgbFamily) DefaultValues() regressor.Params {
	return defaultValues().Merge(regressor.Params{"gamma": 0.0, "booster": "gbtree"})
}

type xgbQuantileFamily struct{}

func (xgbQuantileFamily) Type() regressor.ModelType { return regressor.ModelXGBQuantile }

func (xgbQuantileFamily) ParamSpace(trial Trial) regressor.Params {
	return regressor.Params{"gamma": trial.SuggestLogFloat("gamma", 1e-8, 1)}
}

func (xgbQuantileFamily) EarlyStopping(string) regressor.Callback { return nil }

func (xgbQuantileFamily) Pruning(trial Trial, metric string) regressor.Callback {
	return &pruningCallback{trial: trial, dataName: xgbValidationSet, metric: metric}
}

func (xgbQuantileFamily) DefaultValues() regressor.Params {
	return defaultValues().Merge(regressor.Params{"gamma": 0.0})
}

type xgbMultiOutputFamily struct{}

func (xgbMultiOutputFamily) Type() regressor.ModelType {
	return regressor.ModelXGBMultiOutputQuantile
}

func (xgbMultiOutputFamily) ParamSpace(trial Trial) regressor.Params {
	return regressor.Params{
		"gamma":            trial.SuggestLogFloat("gamma", 1e-8, 1),
		"arctan_smoothing": trial.SuggestFloat("arctan_smoothing", 0.025, 0.15),
	}
}

func (xgbMultiOutputFamily) EarlyStopping(string) regressor.Callback { return nil }

func (xgbMultiOutputFamily) Pruning(trial Trial, metric string) regressor.Callback {
	return &pruningCallback{trial: trial, dataName: xgbValidationSet, metric: metric}
}

func (xgbMultiOutputFamily) DefaultValues() regressor.Params {
	return defaultValues().Merge(regressor.Params{"gamma": 0.0, "arctan_smoothing": 0.055})
}

// =============================================================================
// LGB (B)
// =============================================================================

const lgbValidationSet = "valid_1"

type lgbFamily struct{}

func (lgbFamily) Type() regressor.ModelType { return regressor.ModelLGB }

func (lgbFamily) ParamSpace(trial Trial) regressor.Params {
	return regressor.Params{
		"num_leaves":     trial.SuggestInt("num_leaves", 16, 62),
		"boosting_type":  trial.SuggestCategorical("boosting_type", []string{"gbdt", "dart", "rf"}),
		"tree_learner":   trial.SuggestCategorical("tree_learner", []string{"serial", "feature", "data", "voting"}),
		"n_estimators":   trial.SuggestInt("n_estimators", 50, 150),
		"min_split_gain": trial.SuggestLogFloat("min_split_gain", 1e-8, 1),
		"subsample_freq": trial.SuggestInt("subsample_freq", 1, 10),
	}
}

func (lgbFamily) EarlyStopping(metric string) regressor.Callback {
	return regressor.NewEarlyStopping(earlyStoppingRounds, regressor.LGBMetricName(metric), lgbValidationSet, true)
}

func (lgbFamily) Pruning(trial Trial, metric string) regressor.Callback {
	return &pruningCallback{trial: trial, dataName: lgbValidationSet, metric: regressor.LGBMetricName(metric)}
}

func (lgbFamily) DefaultValues() regressor.Params {
	lgb := intersect(defaultValues(), regressor.NewLGBRegressor().Params())
	return lgb.Merge(regressor.Params{
		"num_leaves":     31,
		"boosting_type":  "gbdt",
		"tree_learner":   "serial",
		"n_estimators":   100,
		"min_split_gain": 0.0,
		"subsample_freq": 1,
	})
}

// =============================================================================
// Linear / ARIMA (no hooks)
// =============================================================================

type linearFamily struct{}

func (linearFamily) Type() regressor.ModelType { return regressor.ModelLinear }

func (linearFamily) ParamSpace(trial Trial) regressor.Params {
	return regressor.Params{
		"imputation_strategy": trial.SuggestCategorical("imputation_strategy", []string{"mean", "median", "most_frequent"}),
	}
}

func (linearFamily) EarlyStopping(string) regressor.Callback  { return nil }
func (linearFamily) Pruning(Trial, string) regressor.Callback { return nil }

func (linearFamily) DefaultValues() regressor.Params {
	return regressor.Params{"imputation_strategy": "mean"}
}

type arimaFamily struct{}

func (arimaFamily) Type() regressor.ModelType { return regressor.ModelARIMA }

func (arimaFamily) ParamSpace(trial Trial) regressor.Params {
	return regressor.Params{"trend": trial.SuggestCategorical("trend", []string{"n", "c", "t", "ct"})}
}

func (arimaFamily) EarlyStopping(string) regressor.Callback  { return nil }
func (arimaFamily) Pruning(Trial, string) regressor.Callback { return nil }
func (arimaFamily) DefaultValues() regressor.Params          { return regressor.Params{"trend": "c"} }
