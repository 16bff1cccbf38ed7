package regressor

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

// ridge 정규 방정식 안정화 항 (대각 평균 대비)
const ridge = 1e-10

// solveLeastSquares solves (XᵀX + εI)β = Xᵀy.
func solveLeastSquares(design *mat.Dense, y []float64) ([]float64, error) {
	_, p := design.Dims()
	var xtx mat.Dense
	xtx.Mul(design.T(), design)

	var trace float64
	for i := 0; i < p; i++ {
		trace += xtx.At(i, i)
	}
	eps := ridge*trace/float64(p) + 1e-12
	for i := 0; i < p; i++ {
		xtx.Set(i, i, xtx.At(i, i)+eps)
	}

	var xty mat.VecDense
	xty.MulVec(design.T(), mat.NewVecDense(len(y), y))

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		return nil, fmt.Errorf("least squares: %w", err)
	}
	return beta.RawVector().Data, nil
}

// imputer 결측값 대체
type imputer struct {
	Strategy string    `json:"strategy"`
	Fill     []float64 `json:"fill"`
}

func (im *imputer) fit(cols [][]float64, rows []int) {
	im.Fill = make([]float64, len(cols))
	for f, col := range cols {
		vals := make([]float64, 0, len(rows))
		for _, r := range rows {
			if !math.IsNaN(col[r]) {
				vals = append(vals, col[r])
			}
		}
		im.Fill[f] = imputeValue(im.Strategy, vals)
	}
}

func imputeValue(strategy string, vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	switch strategy {
	case "median":
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	case "most_frequent":
		counts := make(map[float64]int)
		best, bestN := vals[0], 0
		for _, v := range vals {
			counts[v]++
			if n := counts[v]; n > bestN || (n == bestN && v < best) {
				best, bestN = v, n
			}
		}
		return best
	case "constant":
		return 0
	default:
		return stat.Mean(vals, nil)
	}
}

func (im *imputer) value(f int, v float64) float64 {
	if math.IsNaN(v) {
		return im.Fill[f]
	}
	return v
}

// LinearRegressor 최소제곱 선형 모델 (결측값은 imputation)
type LinearRegressor struct {
	ImputationStrategy string    `json:"imputation_strategy"`
	Features           []string  `json:"features,omitempty"`
	Intercept          float64   `json:"intercept"`
	Coef               []float64 `json:"coef,omitempty"`
	Imputer            imputer   `json:"imputer"`
	Scale              []float64 `json:"scale,omitempty"`
}

// NewLinearRegressor returns an unfitted linear regressor.
func NewLinearRegressor() *LinearRegressor {
	return &LinearRegressor{ImputationStrategy: "mean"}
}

// Params implements Estimator.
func (m *LinearRegressor) Params() Params {
	return Params{"imputation_strategy": m.ImputationStrategy}
}

// SetParams implements Estimator.
func (m *LinearRegressor) SetParams(p Params) error {
	if err := checkKeys(p, m.Params()); err != nil {
		return err
	}
	r := &paramReader{p: p}
	s := r.str("imputation_strategy", m.ImputationStrategy, "mean", "median", "most_frequent", "constant")
	if r.err != nil {
		return r.err
	}
	m.ImputationStrategy = s
	return nil
}

// Fit implements Estimator. Eval sets and callbacks are not used.
func (m *LinearRegressor) Fit(x *frame.Frame, y []float64, _ FitOptions) error {
	features := x.Columns()
	cols := make([][]float64, len(features))
	for i := range features {
		cols[i] = x.ColumnAt(i)
	}
	rows := validRows(y)
	if len(rows) == 0 {
		return errors.New("no rows with a target value")
	}

	im := imputer{Strategy: m.ImputationStrategy}
	im.fit(cols, rows)

	design := mat.NewDense(len(rows), len(features)+1, nil)
	target := make([]float64, len(rows))
	for i, r := range rows {
		design.Set(i, 0, 1)
		for f := range features {
			design.Set(i, f+1, im.value(f, cols[f][r]))
		}
		target[i] = y[r]
	}
	beta, err := solveLeastSquares(design, target)
	if err != nil {
		return err
	}

	scale := make([]float64, len(features))
	for f := range features {
		scale[f] = stat.StdDev(mat.Col(nil, f+1, design), nil)
	}

	m.Features = features
	m.Intercept = beta[0]
	m.Coef = beta[1:]
	m.Imputer = im
	m.Scale = scale
	return nil
}

// Predict implements Estimator.
func (m *LinearRegressor) Predict(x *frame.Frame) ([]float64, error) {
	if m.Coef == nil {
		return nil, ErrNotFitted
	}
	cols, err := featureColumns(x, m.Features)
	if err != nil {
		return nil, err
	}
	out := make([]float64, x.Len())
	for i := range out {
		v := m.Intercept
		for f, c := range m.Coef {
			v += c * m.Imputer.value(f, cols[f][i])
		}
		out[i] = v
	}
	return out, nil
}

// FeatureNames implements Estimator.
func (m *LinearRegressor) FeatureNames() []string { return append([]string(nil), m.Features...) }

// FeatureImportance implements Estimator: |coef| × std(feature), normalised.
func (m *LinearRegressor) FeatureImportance() map[string]float64 {
	return coefImportance(m.Features, m.Coef, m.Scale)
}

// Clone implements Estimator.
func (m *LinearRegressor) Clone() Estimator {
	c := *m
	return &c
}

func coefImportance(features []string, coef, scale []float64) map[string]float64 {
	out := make(map[string]float64, len(features))
	var total float64
	raw := make([]float64, len(features))
	for i := range features {
		if i < len(coef) && i < len(scale) {
			raw[i] = math.Abs(coef[i]) * scale[i]
			total += raw[i]
		}
	}
	for i, f := range features {
		if total > 0 {
			out[f] = raw[i] / total
		} else {
			out[f] = 0
		}
	}
	return out
}

func validRows(y []float64) []int {
	rows := make([]int, 0, len(y))
	for i, v := range y {
		if !math.IsNaN(v) {
			rows = append(rows, i)
		}
	}
	return rows
}
