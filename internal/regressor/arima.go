package regressor

import (
	"errors"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

// ARIMARegressor 외생 변수 + 결정적 추세 회귀
// trend: n (없음), c (상수), t (선형), ct (상수 + 선형)
// 추세 t는 학습 시작 시점부터의 step 수로 계산한다.
type ARIMARegressor struct {
	Trend    string        `json:"trend"`
	Features []string      `json:"features,omitempty"`
	Origin   time.Time     `json:"origin"`
	Step     time.Duration `json:"step"`
	Const    float64       `json:"const"`
	Slope    float64       `json:"slope"`
	Coef     []float64     `json:"coef,omitempty"`
	Imputer  imputer       `json:"imputer"`
	Scale    []float64     `json:"scale,omitempty"`
}

// NewARIMARegressor returns an unfitted trend regressor.
func NewARIMARegressor() *ARIMARegressor {
	return &ARIMARegressor{Trend: "c"}
}

// Params implements Estimator.
func (m *ARIMARegressor) Params() Params {
	return Params{"trend": m.Trend}
}

// SetParams implements Estimator.
func (m *ARIMARegressor) SetParams(p Params) error {
	if err := checkKeys(p, m.Params()); err != nil {
		return err
	}
	r := &paramReader{p: p}
	t := r.str("trend", m.Trend, "n", "c", "t", "ct")
	if r.err != nil {
		return r.err
	}
	m.Trend = t
	return nil
}

func (m *ARIMARegressor) hasConst() bool { return m.Trend == "c" || m.Trend == "ct" }
func (m *ARIMARegressor) hasSlope() bool { return m.Trend == "t" || m.Trend == "ct" }

func (m *ARIMARegressor) steps(t time.Time) float64 {
	return float64(t.Sub(m.Origin)) / float64(m.Step)
}

// Fit implements Estimator.
func (m *ARIMARegressor) Fit(x *frame.Frame, y []float64, _ FitOptions) error {
	features := x.Columns()
	cols := make([][]float64, len(features))
	for i := range features {
		cols[i] = x.ColumnAt(i)
	}
	rows := validRows(y)
	if len(rows) == 0 {
		return errors.New("no rows with a target value")
	}

	index := x.Index()
	m.Origin, m.Step = timeOrigin(index, rows)

	im := imputer{Strategy: "mean"}
	im.fit(cols, rows)

	offset := 0
	if m.hasConst() {
		offset++
	}
	if m.hasSlope() {
		offset++
	}
	width := offset + len(features)
	if width == 0 {
		return errors.New("trend \"n\" without features has nothing to fit")
	}

	design := mat.NewDense(len(rows), width, nil)
	target := make([]float64, len(rows))
	for i, r := range rows {
		c := 0
		if m.hasConst() {
			design.Set(i, c, 1)
			c++
		}
		if m.hasSlope() {
			design.Set(i, c, m.steps(index[r]))
			c++
		}
		for f := range features {
			design.Set(i, c+f, im.value(f, cols[f][r]))
		}
		target[i] = y[r]
	}

	beta, err := solveLeastSquares(design, target)
	if err != nil {
		return err
	}

	m.Const, m.Slope = 0, 0
	c := 0
	if m.hasConst() {
		m.Const = beta[c]
		c++
	}
	if m.hasSlope() {
		m.Slope = beta[c]
		c++
	}
	m.Features = features
	m.Coef = beta[c:]
	m.Imputer = im
	m.Scale = make([]float64, len(features))
	for f := range features {
		m.Scale[f] = stat.StdDev(mat.Col(nil, c+f, design), nil)
	}
	return nil
}

// Predict implements Estimator.
func (m *ARIMARegressor) Predict(x *frame.Frame) ([]float64, error) {
	if m.Step == 0 {
		return nil, ErrNotFitted
	}
	cols, err := featureColumns(x, m.Features)
	if err != nil {
		return nil, err
	}
	index := x.Index()
	out := make([]float64, x.Len())
	for i := range out {
		v := m.Const
		if m.hasSlope() {
			v += m.Slope * m.steps(index[i])
		}
		for f, c := range m.Coef {
			v += c * m.Imputer.value(f, cols[f][i])
		}
		out[i] = v
	}
	return out, nil
}

// FeatureNames implements Estimator.
func (m *ARIMARegressor) FeatureNames() []string { return append([]string(nil), m.Features...) }

// FeatureImportance implements Estimator.
func (m *ARIMARegressor) FeatureImportance() map[string]float64 {
	return coefImportance(m.Features, m.Coef, m.Scale)
}

// Clone implements Estimator.
func (m *ARIMARegressor) Clone() Estimator {
	c := *m
	return &c
}

// timeOrigin returns the first timestamp and the median spacing of distinct timestamps.
func timeOrigin(index []time.Time, rows []int) (time.Time, time.Duration) {
	ts := make([]time.Time, 0, len(rows))
	for _, r := range rows {
		ts = append(ts, index[r])
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })

	var diffs []float64
	for i := 1; i < len(ts); i++ {
		if d := ts[i].Sub(ts[i-1]); d > 0 {
			diffs = append(diffs, float64(d))
		}
	}
	step := 15 * time.Minute
	if len(diffs) > 0 {
		sort.Float64s(diffs)
		step = time.Duration(stat.Quantile(0.5, stat.Empirical, diffs, nil))
	}
	if len(ts) == 0 {
		return time.Time{}, step
	}
	return ts[0], step
}
