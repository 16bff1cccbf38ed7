package regressor

import (
	"fmt"
	"math"
	"sort"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/scoring"
)

// =============================================================================
// XGB dialect
// eval set 이름: validation_0, validation_1, ... / 지표 이름은 요청한 그대로
// =============================================================================

// XGBParams XGB 하이퍼파라미터
type XGBParams struct {
	NEstimators     int     `json:"n_estimators"`
	LearningRate    float64 `json:"learning_rate"`
	Alpha           float64 `json:"alpha"`
	Lambda          float64 `json:"lambda"`
	Subsample       float64 `json:"subsample"`
	MinChildWeight  float64 `json:"min_child_weight"`
	MaxDepth        int     `json:"max_depth"`
	ColsampleByTree float64 `json:"colsample_bytree"`
	MaxDeltaStep    float64 `json:"max_delta_step"`
	Gamma           float64 `json:"gamma"`
	Booster         string  `json:"booster"`
	RateDrop        float64 `json:"rate_drop"`
	RandomState     int64   `json:"random_state"`
}

// DefaultXGBParams returns the XGB library defaults.
func DefaultXGBParams() XGBParams {
	return XGBParams{
		NEstimators:     100,
		LearningRate:    0.3,
		Alpha:           0,
		Lambda:          1,
		Subsample:       1,
		MinChildWeight:  1,
		MaxDepth:        6,
		ColsampleByTree: 1,
		MaxDeltaStep:    0,
		Gamma:           0,
		Booster:         "gbtree",
		RateDrop:        0.1,
	}
}

func (p XGBParams) toParams() Params {
	return Params{
		"n_estimators":     p.NEstimators,
		"learning_rate":    p.LearningRate,
		"alpha":            p.Alpha,
		"lambda":           p.Lambda,
		"subsample":        p.Subsample,
		"min_child_weight": p.MinChildWeight,
		"max_depth":        p.MaxDepth,
		"colsample_bytree": p.ColsampleByTree,
		"max_delta_step":   p.MaxDeltaStep,
		"gamma":            p.Gamma,
		"booster":          p.Booster,
		"rate_drop":        p.RateDrop,
		"random_state":     int(p.RandomState),
	}
}

func (p *XGBParams) apply(in Params) error {
	if err := checkKeys(in, p.toParams()); err != nil {
		return err
	}
	r := &paramReader{p: in}
	next := XGBParams{
		NEstimators:     r.int("n_estimators", p.NEstimators),
		LearningRate:    r.float("learning_rate", p.LearningRate),
		Alpha:           r.float("alpha", p.Alpha),
		Lambda:          r.float("lambda", p.Lambda),
		Subsample:       r.float("subsample", p.Subsample),
		MinChildWeight:  r.float("min_child_weight", p.MinChildWeight),
		MaxDepth:        r.int("max_depth", p.MaxDepth),
		ColsampleByTree: r.float("colsample_bytree", p.ColsampleByTree),
		MaxDeltaStep:    r.float("max_delta_step", p.MaxDeltaStep),
		Gamma:           r.float("gamma", p.Gamma),
		Booster:         r.str("booster", p.Booster, "gbtree", "dart"),
		RateDrop:        r.float("rate_drop", p.RateDrop),
		RandomState:     int64(r.int("random_state", int(p.RandomState))),
	}
	if r.err != nil {
		return r.err
	}
	*p = next
	return nil
}

func (p XGBParams) config(opts FitOptions) (boosterConfig, error) {
	metricName := opts.EvalMetric
	if metricName == "" {
		metricName = "rmse"
	}
	metric, err := scoring.MetricFunc(metricName)
	if err != nil {
		return boosterConfig{}, err
	}
	return boosterConfig{
		rounds: p.NEstimators,
		grow: growConfig{
			maxDepth:       p.MaxDepth,
			minChildWeight: p.MinChildWeight,
			lambda:         p.Lambda,
			alpha:          p.Alpha,
			gamma:          p.Gamma,
			maxDeltaStep:   p.MaxDeltaStep,
			eta:            p.LearningRate,
		},
		subsample:     p.Subsample,
		subsampleFreq: 1,
		colsample:     p.ColsampleByTree,
		dart:          p.Booster == "dart",
		dropRate:      p.RateDrop,
		seed:          p.RandomState,
		metricName:    metricName,
		metric:        metric,
	}, nil
}

// XGBRegressor 제곱 오차 부스팅 모델
type XGBRegressor struct {
	Config XGBParams `json:"params"`
	Model  *Booster  `json:"booster,omitempty"`
}

// NewXGBRegressor returns an unfitted XGB regressor.
func NewXGBRegressor() *XGBRegressor {
	return &XGBRegressor{Config: DefaultXGBParams()}
}

// Params implements Estimator.
func (m *XGBRegressor) Params() Params { return m.Config.toParams() }

// SetParams implements Estimator.
func (m *XGBRegressor) SetParams(p Params) error { return m.Config.apply(p) }

// Fit implements Estimator.
func (m *XGBRegressor) Fit(x *frame.Frame, y []float64, opts FitOptions) error {
	cfg, err := m.Config.config(opts)
	if err != nil {
		return err
	}
	b, err := trainBooster(x, y, squaredLoss{}, cfg, opts)
	if err != nil {
		return err
	}
	m.Model = b
	return nil
}

// Predict implements Estimator.
func (m *XGBRegressor) Predict(x *frame.Frame) ([]float64, error) {
	return m.Model.Predict(x)
}

// FeatureNames implements Estimator.
func (m *XGBRegressor) FeatureNames() []string {
	if m.Model == nil {
		return nil
	}
	return append([]string(nil), m.Model.Features...)
}

// FeatureImportance implements Estimator.
func (m *XGBRegressor) FeatureImportance() map[string]float64 { return m.Model.Importance() }

// Clone implements Estimator. The fitted booster is shared (read-only).
func (m *XGBRegressor) Clone() Estimator {
	c := *m
	return &c
}

// =============================================================================
// Quantile ensembles
// =============================================================================

// QuantileBooster 분위수 하나에 대한 모델
type QuantileBooster struct {
	Quantile float64  `json:"quantile"`
	Booster  *Booster `json:"booster"`
}

// quantileEnsemble 분위수별 booster 묶음 (0.5는 항상 포함)
type quantileEnsemble struct {
	QuantileList []float64         `json:"quantiles"`
	Models       []QuantileBooster `json:"models,omitempty"`
}

func newQuantileEnsemble(quantiles []float64) quantileEnsemble {
	qs := append([]float64(nil), quantiles...)
	hasMedian := false
	for _, q := range qs {
		if q == 0.5 {
			hasMedian = true
		}
	}
	if !hasMedian {
		qs = append(qs, 0.5)
	}
	sort.Float64s(qs)
	return quantileEnsemble{QuantileList: qs}
}

// fit trains one booster per quantile. Callbacks only observe the median model.
func (e *quantileEnsemble) fit(x *frame.Frame, y []float64, opts FitOptions, cfg boosterConfig, lossFor func(q float64) loss) error {
	models := make([]QuantileBooster, 0, len(e.QuantileList))
	for _, q := range e.QuantileList {
		o := FitOptions{EvalSet: opts.EvalSet, EvalMetric: opts.EvalMetric}
		if q == 0.5 {
			o.Callbacks = opts.Callbacks
		}
		b, err := trainBooster(x, y, lossFor(q), cfg, o)
		if err != nil {
			return fmt.Errorf("quantile %.2f: %w", q, err)
		}
		models = append(models, QuantileBooster{Quantile: q, Booster: b})
	}
	e.Models = models
	return nil
}

func (e *quantileEnsemble) predictQuantile(x *frame.Frame, q float64) ([]float64, error) {
	if len(e.Models) == 0 {
		return nil, ErrNotFitted
	}
	for _, m := range e.Models {
		if math.Abs(m.Quantile-q) < 1e-9 {
			return m.Booster.Predict(x)
		}
	}
	return nil, fmt.Errorf("no model for quantile %.3f", q)
}

func (e *quantileEnsemble) featureNames() []string {
	if len(e.Models) == 0 {
		return nil
	}
	return append([]string(nil), e.Models[0].Booster.Features...)
}

// importance of the median model.
func (e *quantileEnsemble) importance() map[string]float64 {
	for _, m := range e.Models {
		if m.Quantile == 0.5 {
			return m.Booster.Importance()
		}
	}
	return map[string]float64{}
}

// XGBQuantileRegressor pinball 손실 분위수 모델
type XGBQuantileRegressor struct {
	Config XGBParams `json:"params"`
	quantileEnsemble
}

// NewXGBQuantileRegressor returns an unfitted quantile regressor.
func NewXGBQuantileRegressor(quantiles []float64) *XGBQuantileRegressor {
	return &XGBQuantileRegressor{Config: DefaultXGBParams(), quantileEnsemble: newQuantileEnsemble(quantiles)}
}

// Params implements Estimator.
func (m *XGBQuantileRegressor) Params() Params { return m.Config.toParams() }

// SetParams implements Estimator.
func (m *XGBQuantileRegressor) SetParams(p Params) error { return m.Config.apply(p) }

// Fit implements Estimator.
func (m *XGBQuantileRegressor) Fit(x *frame.Frame, y []float64, opts FitOptions) error {
	cfg, err := m.Config.config(opts)
	if err != nil {
		return err
	}
	return m.fit(x, y, opts, cfg, func(q float64) loss { return pinballLoss{alpha: q} })
}

// Predict implements Estimator (median).
func (m *XGBQuantileRegressor) Predict(x *frame.Frame) ([]float64, error) {
	return m.predictQuantile(x, 0.5)
}

// PredictQuantile implements QuantileEstimator.
func (m *XGBQuantileRegressor) PredictQuantile(x *frame.Frame, q float64) ([]float64, error) {
	return m.predictQuantile(x, q)
}

// Quantiles implements QuantileEstimator.
func (m *XGBQuantileRegressor) Quantiles() []float64 { return append([]float64(nil), m.QuantileList...) }

// FeatureNames implements Estimator.
func (m *XGBQuantileRegressor) FeatureNames() []string { return m.featureNames() }

// FeatureImportance implements Estimator.
func (m *XGBQuantileRegressor) FeatureImportance() map[string]float64 { return m.importance() }

// Clone implements Estimator.
func (m *XGBQuantileRegressor) Clone() Estimator {
	c := *m
	c.QuantileList = append([]float64(nil), m.QuantileList...)
	c.Models = append([]QuantileBooster(nil), m.Models...)
	return &c
}

// XGBMultiOutputQuantileRegressor arctan 평활 분위수 손실 모델
type XGBMultiOutputQuantileRegressor struct {
	Config          XGBParams `json:"params"`
	ArctanSmoothing float64   `json:"arctan_smoothing"`
	quantileEnsemble
}

// NewXGBMultiOutputQuantileRegressor returns an unfitted multi-output quantile regressor.
func NewXGBMultiOutputQuantileRegressor(quantiles []float64) *XGBMultiOutputQuantileRegressor {
	return &XGBMultiOutputQuantileRegressor{
		Config:           DefaultXGBParams(),
		ArctanSmoothing:  0.055,
		quantileEnsemble: newQuantileEnsemble(quantiles),
	}
}

// Params implements Estimator.
func (m *XGBMultiOutputQuantileRegressor) Params() Params {
	p := m.Config.toParams()
	p["arctan_smoothing"] = m.ArctanSmoothing
	return p
}

// SetParams implements Estimator.
func (m *XGBMultiOutputQuantileRegressor) SetParams(p Params) error {
	if err := checkKeys(p, m.Params()); err != nil {
		return err
	}
	rest := p.Clone()
	smoothing, err := rest.Float("arctan_smoothing", m.ArctanSmoothing)
	if err != nil {
		return err
	}
	if smoothing <= 0 {
		return fmt.Errorf("parameter \"arctan_smoothing\": must be positive, got %v", smoothing)
	}
	delete(rest, "arctan_smoothing")
	if err := m.Config.apply(rest); err != nil {
		return err
	}
	m.ArctanSmoothing = smoothing
	return nil
}

// Fit implements Estimator.
func (m *XGBMultiOutputQuantileRegressor) Fit(x *frame.Frame, y []float64, opts FitOptions) error {
	cfg, err := m.Config.config(opts)
	if err != nil {
		return err
	}
	s := m.ArctanSmoothing
	return m.fit(x, y, opts, cfg, func(q float64) loss { return arctanLoss{alpha: q, smoothing: s} })
}

// Predict implements Estimator (median).
func (m *XGBMultiOutputQuantileRegressor) Predict(x *frame.Frame) ([]float64, error) {
	return m.predictQuantile(x, 0.5)
}

// PredictQuantile implements QuantileEstimator.
func (m *XGBMultiOutputQuantileRegressor) PredictQuantile(x *frame.Frame, q float64) ([]float64, error) {
	return m.predictQuantile(x, q)
}

// Quantiles implements QuantileEstimator.
func (m *XGBMultiOutputQuantileRegressor) Quantiles() []float64 {
	return append([]float64(nil), m.QuantileList...)
}

// FeatureNames implements Estimator.
func (m *XGBMultiOutputQuantileRegressor) FeatureNames() []string { return m.featureNames() }

// FeatureImportance implements Estimator.
func (m *XGBMultiOutputQuantileRegressor) FeatureImportance() map[string]float64 {
	return m.importance()
}

// Clone implements Estimator.
func (m *XGBMultiOutputQuantileRegressor) Clone() Estimator {
	c := *m
	c.QuantileList = append([]float64(nil), m.QuantileList...)
	c.Models = append([]QuantileBooster(nil), m.Models...)
	return &c
}
