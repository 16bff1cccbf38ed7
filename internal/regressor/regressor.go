package regressor

import (
	"errors"
	"fmt"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

// ModelType 모델 패밀리 (closed enum)
// ⭐ SSOT: 패밀리 선택은 이 enum으로만 (런타임 타입 검사 금지)
type ModelType string

const (
	ModelXGB                    ModelType = "xgb"
	ModelXGBQuantile            ModelType = "xgb_quantile"
	ModelXGBMultiOutputQuantile ModelType = "xgb_multioutput_quantile"
	ModelLGB                    ModelType = "lgb"
	ModelLinear                 ModelType = "linear"
	ModelARIMA                  ModelType = "arima"
)

// AllModelTypes returns every supported model family.
func AllModelTypes() []ModelType {
	return []ModelType{
		ModelXGB,
		ModelXGBQuantile,
		ModelXGBMultiOutputQuantile,
		ModelLGB,
		ModelLinear,
		ModelARIMA,
	}
}

// DefaultQuantiles 분위수 모델 기본 분위수
var DefaultQuantiles = []float64{0.05, 0.1, 0.3, 0.5, 0.7, 0.9, 0.95}

var (
	// ErrStopTraining 콜백이 학습 중단을 요청 (early stopping)
	ErrStopTraining = errors.New("stop training")
	// ErrNotFitted 학습 전 predict 호출
	ErrNotFitted = errors.New("estimator is not fitted")
	// ErrUnknownParam 모델이 받지 않는 하이퍼파라미터
	ErrUnknownParam = errors.New("unknown parameter")
)

// Estimator 학습 가능한 회귀 모델
type Estimator interface {
	// Params returns the hyperparameters the estimator accepts, with current values.
	Params() Params
	// SetParams updates hyperparameters; unknown keys are rejected.
	SetParams(p Params) error
	Fit(x *frame.Frame, y []float64, opts FitOptions) error
	Predict(x *frame.Frame) ([]float64, error)
	FeatureNames() []string
	// FeatureImportance returns normalised importance per feature.
	FeatureImportance() map[string]float64
	Clone() Estimator
}

// QuantileEstimator is implemented by estimators holding one model per quantile.
type QuantileEstimator interface {
	Estimator
	Quantiles() []float64
	PredictQuantile(x *frame.Frame, q float64) ([]float64, error)
}

// EvalSet 학습 중 평가 데이터
type EvalSet struct {
	X *frame.Frame
	Y []float64
}

// EvalResult maps eval-set name → metric name → value for one iteration.
type EvalResult map[string]map[string]float64

// Callback is invoked after every boosting iteration.
// Returning ErrStopTraining ends training without error; any other error aborts Fit.
type Callback interface {
	AfterIteration(iteration int, evals EvalResult) error
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(iteration int, evals EvalResult) error

// AfterIteration implements Callback.
func (f CallbackFunc) AfterIteration(iteration int, evals EvalResult) error {
	return f(iteration, evals)
}

// FitOptions 학습 옵션
type FitOptions struct {
	EvalSet    []EvalSet
	EvalMetric string
	Callbacks  []Callback
}

// NewEstimator returns an unfitted estimator with default parameters.
func NewEstimator(t ModelType) (Estimator, error) {
	switch t {
	case ModelXGB:
		return NewXGBRegressor(), nil
	case ModelXGBQuantile:
		return NewXGBQuantileRegressor(DefaultQuantiles), nil
	case ModelXGBMultiOutputQuantile:
		return NewXGBMultiOutputQuantileRegressor(DefaultQuantiles), nil
	case ModelLGB:
		return NewLGBRegressor(), nil
	case ModelLinear:
		return NewLinearRegressor(), nil
	case ModelARIMA:
		return NewARIMARegressor(), nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", t)
	}
}

// featureColumns resolves the named columns of x, in order.
func featureColumns(x *frame.Frame, names []string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	for i, n := range names {
		col, ok := x.Column(n)
		if !ok {
			return nil, fmt.Errorf("feature %q missing from input", n)
		}
		cols[i] = col
	}
	return cols, nil
}
