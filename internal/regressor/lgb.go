package regressor

import (
	"fmt"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/scoring"
)

// =============================================================================
// LGB dialect
// eval set 이름: training, valid_1, valid_2, ... / mae → l1, mse → l2
// =============================================================================

// LGBParams LGB 하이퍼파라미터
type LGBParams struct {
	NEstimators     int     `json:"n_estimators"`
	LearningRate    float64 `json:"learning_rate"`
	NumLeaves       int     `json:"num_leaves"`
	MaxDepth        int     `json:"max_depth"`
	MinChildWeight  float64 `json:"min_child_weight"`
	MinSplitGain    float64 `json:"min_split_gain"`
	Subsample       float64 `json:"subsample"`
	SubsampleFreq   int     `json:"subsample_freq"`
	ColsampleByTree float64 `json:"colsample_bytree"`
	RegAlpha        float64 `json:"reg_alpha"`
	RegLambda       float64 `json:"reg_lambda"`
	BoostingType    string  `json:"boosting_type"`
	TreeLearner     string  `json:"tree_learner"`
	DropRate        float64 `json:"drop_rate"`
	RandomState     int64   `json:"random_state"`
}

// DefaultLGBParams returns the LGB library defaults.
func DefaultLGBParams() LGBParams {
	return LGBParams{
		NEstimators:     100,
		LearningRate:    0.1,
		NumLeaves:       31,
		MaxDepth:        -1,
		MinChildWeight:  1e-3,
		MinSplitGain:    0,
		Subsample:       1,
		SubsampleFreq:   0,
		ColsampleByTree: 1,
		RegAlpha:        0,
		RegLambda:       0,
		BoostingType:    "gbdt",
		TreeLearner:     "serial",
		DropRate:        0.1,
	}
}

func (p LGBParams) toParams() Params {
	return Params{
		"n_estimators":     p.NEstimators,
		"learning_rate":    p.LearningRate,
		"num_leaves":       p.NumLeaves,
		"max_depth":        p.MaxDepth,
		"min_child_weight": p.MinChildWeight,
		"min_split_gain":   p.MinSplitGain,
		"subsample":        p.Subsample,
		"subsample_freq":   p.SubsampleFreq,
		"colsample_bytree": p.ColsampleByTree,
		"reg_alpha":        p.RegAlpha,
		"reg_lambda":       p.RegLambda,
		"boosting_type":    p.BoostingType,
		"tree_learner":     p.TreeLearner,
		"drop_rate":        p.DropRate,
		"random_state":     int(p.RandomState),
	}
}

func (p *LGBParams) apply(in Params) error {
	if err := checkKeys(in, p.toParams()); err != nil {
		return err
	}
	r := &paramReader{p: in}
	next := LGBParams{
		NEstimators:     r.int("n_estimators", p.NEstimators),
		LearningRate:    r.float("learning_rate", p.LearningRate),
		NumLeaves:       r.int("num_leaves", p.NumLeaves),
		MaxDepth:        r.int("max_depth", p.MaxDepth),
		MinChildWeight:  r.float("min_child_weight", p.MinChildWeight),
		MinSplitGain:    r.float("min_split_gain", p.MinSplitGain),
		Subsample:       r.float("subsample", p.Subsample),
		SubsampleFreq:   r.int("subsample_freq", p.SubsampleFreq),
		ColsampleByTree: r.float("colsample_bytree", p.ColsampleByTree),
		RegAlpha:        r.float("reg_alpha", p.RegAlpha),
		RegLambda:       r.float("reg_lambda", p.RegLambda),
		BoostingType:    r.str("boosting_type", p.BoostingType, "gbdt", "dart", "rf"),
		TreeLearner:     r.str("tree_learner", p.TreeLearner, "serial", "feature", "data", "voting"),
		DropRate:        r.float("drop_rate", p.DropRate),
		RandomState:     int64(r.int("random_state", int(p.RandomState))),
	}
	if r.err != nil {
		return r.err
	}
	if next.NumLeaves < 2 {
		return fmt.Errorf("parameter \"num_leaves\": must be at least 2, got %d", next.NumLeaves)
	}
	*p = next
	return nil
}

// LGBMetricName maps metric aliases to the names the LGB dialect reports.
func LGBMetricName(name string) string {
	switch name {
	case "mae":
		return "l1"
	case "mse":
		return "l2"
	case "":
		return "l2"
	default:
		return name
	}
}

func lgbEvalNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		if i == 0 {
			names[i] = "training"
		} else {
			names[i] = fmt.Sprintf("valid_%d", i)
		}
	}
	return names
}

func (p LGBParams) config(opts FitOptions) (boosterConfig, error) {
	metricName := LGBMetricName(opts.EvalMetric)
	metric, err := scoring.MetricFunc(metricName)
	if err != nil {
		return boosterConfig{}, err
	}
	subsample := p.Subsample
	if p.SubsampleFreq <= 0 {
		subsample = 1
	}
	return boosterConfig{
		rounds: p.NEstimators,
		grow: growConfig{
			maxDepth:       p.MaxDepth,
			maxLeaves:      p.NumLeaves,
			minChildWeight: p.MinChildWeight,
			lambda:         p.RegLambda,
			alpha:          p.RegAlpha,
			gamma:          p.MinSplitGain,
			eta:            p.LearningRate,
		},
		subsample:     subsample,
		subsampleFreq: p.SubsampleFreq,
		colsample:     p.ColsampleByTree,
		dart:          p.BoostingType == "dart",
		dropRate:      p.DropRate,
		randomForest:  p.BoostingType == "rf",
		seed:          p.RandomState,
		evalNames:     lgbEvalNames(len(opts.EvalSet)),
		metricName:    metricName,
		metric:        metric,
	}, nil
}

// LGBRegressor leaf-wise 부스팅 모델
type LGBRegressor struct {
	Config LGBParams `json:"params"`
	Model  *Booster  `json:"booster,omitempty"`
}

// NewLGBRegressor returns an unfitted LGB regressor.
func NewLGBRegressor() *LGBRegressor {
	return &LGBRegressor{Config: DefaultLGBParams()}
}

// Params implements Estimator.
func (m *LGBRegressor) Params() Params { return m.Config.toParams() }

// SetParams implements Estimator.
func (m *LGBRegressor) SetParams(p Params) error { return m.Config.apply(p) }

// Fit implements Estimator.
func (m *LGBRegressor) Fit(x *frame.Frame, y []float64, opts FitOptions) error {
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
func (m *LGBRegressor) Predict(x *frame.Frame) ([]float64, error) {
	return m.Model.Predict(x)
}

// FeatureNames implements Estimator.
func (m *LGBRegressor) FeatureNames() []string {
	if m.Model == nil {
		return nil
	}
	return append([]string(nil), m.Model.Features...)
}

// FeatureImportance implements Estimator.
func (m *LGBRegressor) FeatureImportance() map[string]float64 { return m.Model.Importance() }

// Clone implements Estimator.
func (m *LGBRegressor) Clone() Estimator {
	c := *m
	return &c
}
