package confidence

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
)

var now = time.Date(2023, 3, 1, 23, 45, 0, 0, time.UTC)

func fittedLinear(t *testing.T) *regressor.Model {
	t.Helper()
	n := 96
	idx := make([]time.Time, n)
	a := make([]float64, n)
	y := make([]float64, n)
	for i := range idx {
		idx[i] = now.Add(-time.Duration(n-i) * 15 * time.Minute)
		a[i] = float64(i % 10)
		y[i] = 2 * a[i]
	}
	x, err := frame.FromColumns(idx, []string{"a"}, [][]float64{a})
	require.NoError(t, err)

	m, err := regressor.NewModel(regressor.ModelLinear)
	require.NoError(t, err)
	require.NoError(t, m.Estimator.Fit(x, y, regressor.FitOptions{}))
	return m
}

func TestGenerateStandardDeviation(t *testing.T) {
	model := fittedLinear(t)

	// 2일 × 2 horizon, 노이즈 ±1 교대
	var idx []time.Time
	var load, a, horizon []float64
	start := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	for _, h := range []float64{0.25, 47} {
		for i := 0; i < 2*96; i++ {
			idx = append(idx, start.Add(time.Duration(i)*15*time.Minute))
			av := float64(i % 10)
			noise := 1.0
			if i%2 == 1 {
				noise = -1
			}
			a = append(a, av)
			load = append(load, 2*av+noise)
			horizon = append(horizon, h)
		}
	}
	validation, err := frame.FromColumns(idx,
		[]string{contracts.ColumnLoad, "a", contracts.ColumnHorizon},
		[][]float64{load, a, horizon})
	require.NoError(t, err)

	out, err := GenerateStandardDeviation(model, validation)
	require.NoError(t, err)

	assert.Len(t, out.StandardDeviation, 24*2, "one row per hour and horizon")
	for _, row := range out.StandardDeviation {
		assert.InDelta(t, 1.069, row.Stdev, 1e-3)
	}
	assert.Empty(t, model.StandardDeviation, "input snapshot is not mutated")
}

func TestGenerateStandardDeviation_ColumnOrder(t *testing.T) {
	model := fittedLinear(t)
	bad, err := frame.FromColumns([]time.Time{now}, []string{"a", contracts.ColumnLoad}, [][]float64{{1}, {2}})
	require.NoError(t, err)

	_, err = GenerateStandardDeviation(model, bad)
	assert.Error(t, err)
}

func stdevModel() *regressor.Model {
	m := &regressor.Model{Type: regressor.ModelXGB}
	for h := 0; h < 24; h++ {
		m.StandardDeviation = append(m.StandardDeviation,
			regressor.StandardDeviation{Hour: h, Horizon: 0.25, Stdev: 1},
			regressor.StandardDeviation{Hour: h, Horizon: 47, Stdev: 3},
		)
	}
	return m
}

func pointForecast(t *testing.T, leads ...time.Duration) *contracts.Forecast {
	t.Helper()
	idx := make([]time.Time, len(leads))
	values := make([]float64, len(leads))
	for i, l := range leads {
		idx[i] = now.Add(l)
		values[i] = 100
	}
	f, err := frame.FromColumns(idx, []string{contracts.ColumnForecast}, [][]float64{values})
	require.NoError(t, err)
	return contracts.NewForecast(f)
}

func TestApplicator_StdevInterpolation(t *testing.T) {
	fc := pointForecast(t,
		15*time.Minute,
		23*time.Hour+37*time.Minute+30*time.Second,
		47*time.Hour,
		72*time.Hour,
	)

	out, err := NewApplicator(stdevModel(), nil).Apply(fc, []float64{0.5}, now)
	require.NoError(t, err)

	stdev, ok := out.Column(contracts.ColumnStdev)
	require.True(t, ok)
	assert.InDelta(t, 1.0, stdev[0], 1e-9, "near horizon")
	assert.InDelta(t, 2.0, stdev[1], 1e-9, "halfway")
	assert.InDelta(t, 3.0, stdev[2], 1e-9, "far horizon")
	assert.InDelta(t, 3.0, stdev[3], 1e-9, "clipped beyond far horizon")
	assert.False(t, fc.Has(contracts.ColumnStdev), "input forecast is not mutated")
}

func TestApplicator_GaussianQuantiles(t *testing.T) {
	fc := pointForecast(t, 15*time.Minute, 47*time.Hour)
	quantiles := []float64{0.1, 0.5, 0.9}

	out, err := NewApplicator(stdevModel(), nil).Apply(fc, quantiles, now)
	require.NoError(t, err)

	p50, ok := out.Column("quantile_P50")
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{100, 100}, p50, 1e-9)

	p90, _ := out.Column("quantile_P90")
	p10, _ := out.Column("quantile_P10")
	const z90 = 1.2815515655446004
	assert.InDelta(t, 100+1*z90, p90[0], 1e-6)
	assert.InDelta(t, 100+3*z90, p90[1], 1e-6)
	assert.InDelta(t, 100-3*z90, p10[1], 1e-6)
	assert.Equal(t, []string{"quantile_P10", "quantile_P50", "quantile_P90"}, out.QuantileColumns())
}

func TestApplicator_NoStdevTable(t *testing.T) {
	fc := pointForecast(t, time.Hour)
	out, err := NewApplicator(&regressor.Model{}, nil).Apply(fc, []float64{0.9}, now)
	require.NoError(t, err)

	p90, _ := out.Column("quantile_P90")
	assert.Equal(t, []float64{100}, p90)
}

func TestApplicator_QuantileModels(t *testing.T) {
	n := 200
	idx := make([]time.Time, n)
	a := make([]float64, n)
	y := make([]float64, n)
	rng := rand.New(rand.NewSource(2))
	for i := range idx {
		idx[i] = now.Add(time.Duration(i) * 15 * time.Minute)
		a[i] = rng.Float64() * 10
		y[i] = 2*a[i] + rng.NormFloat64()
	}
	x, err := frame.FromColumns(idx, []string{"a"}, [][]float64{a})
	require.NoError(t, err)

	est := regressor.NewXGBQuantileRegressor([]float64{0.1, 0.9})
	require.NoError(t, est.SetParams(regressor.Params{"n_estimators": 10}))
	require.NoError(t, est.Fit(x, y, regressor.FitOptions{}))
	model := &regressor.Model{Type: regressor.ModelXGBQuantile, Estimator: est}

	median, err := est.Predict(x)
	require.NoError(t, err)
	f, err := frame.FromColumns(idx, []string{contracts.ColumnForecast}, [][]float64{median})
	require.NoError(t, err)

	out, err := NewApplicator(model, x).Apply(contracts.NewForecast(f), []float64{0.1, 0.9}, now)
	require.NoError(t, err)

	want, err := est.PredictQuantile(x, 0.9)
	require.NoError(t, err)
	got, _ := out.Column("quantile_P90")
	assert.Equal(t, want, got)
}
