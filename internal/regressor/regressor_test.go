package regressor

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/scoring"
)

var t0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func testIndex(n int) []time.Time {
	idx := make([]time.Time, n)
	for i := range idx {
		idx[i] = t0.Add(time.Duration(i) * 15 * time.Minute)
	}
	return idx
}

// linearData y = 3 + 2a - b (+ noise)
func linearData(t *testing.T, n int, noise float64, seed int64) (*frame.Frame, []float64) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	a := make([]float64, n)
	b := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = rng.Float64() * 10
		b[i] = rng.Float64() * 5
		y[i] = 3 + 2*a[i] - b[i] + noise*rng.NormFloat64()
	}
	x, err := frame.FromColumns(testIndex(n), []string{"a", "b"}, [][]float64{a, b})
	require.NoError(t, err)
	return x, y
}

func TestXGBRegressor_FitPredict(t *testing.T) {
	x, y := linearData(t, 300, 0, 1)

	m := NewXGBRegressor()
	require.NoError(t, m.Fit(x, y, FitOptions{}))

	pred, err := m.Predict(x)
	require.NoError(t, err)
	assert.Len(t, pred, 300)
	assert.Less(t, scoring.MAE(y, pred), 1.0, "train MAE should be small")

	imp := m.FeatureImportance()
	assert.Greater(t, imp["a"], imp["b"], "a has the larger effect")
	assert.InDelta(t, 1.0, imp["a"]+imp["b"], 1e-9)
}

func TestXGBRegressor_NotFitted(t *testing.T) {
	x, _ := linearData(t, 10, 0, 1)
	_, err := NewXGBRegressor().Predict(x)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestXGBRegressor_MissingValues(t *testing.T) {
	x, y := linearData(t, 200, 0, 2)
	a := append([]float64(nil), x.ColumnAt(0)...)
	for i := 0; i < len(a); i += 7 {
		a[i] = math.NaN()
	}
	require.NoError(t, x.Set("a", a))

	m := NewXGBRegressor()
	require.NoError(t, m.Fit(x, y, FitOptions{}))
	pred, err := m.Predict(x)
	require.NoError(t, err)
	for i, v := range pred {
		assert.False(t, math.IsNaN(v), "row %d", i)
	}
}

func TestSetParams(t *testing.T) {
	tests := []struct {
		name    string
		est     Estimator
		params  Params
		wantErr error
	}{
		{"xgb known keys", NewXGBRegressor(), Params{"max_depth": 4, "learning_rate": 0.1}, nil},
		{"xgb lgb-only key", NewXGBRegressor(), Params{"num_leaves": 10}, ErrUnknownParam},
		{"lgb known keys", NewLGBRegressor(), Params{"num_leaves": 10, "reg_alpha": 0.5}, nil},
		{"lgb xgb-only key", NewLGBRegressor(), Params{"gamma": 1.0}, ErrUnknownParam},
		{"multioutput smoothing", NewXGBMultiOutputQuantileRegressor(DefaultQuantiles), Params{"arctan_smoothing": 0.1}, nil},
		{"linear strategy", NewLinearRegressor(), Params{"imputation_strategy": "median"}, nil},
		{"arima trend", NewARIMARegressor(), Params{"trend": "ct"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.est.SetParams(tt.params)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			got := tt.est.Params()
			for k, v := range tt.params {
				assert.Equal(t, v, got[k], k)
			}
		})
	}
}

func TestSetParams_InvalidCategory(t *testing.T) {
	err := NewLGBRegressor().SetParams(Params{"boosting_type": "goss"})
	assert.Error(t, err)
	err = NewXGBRegressor().SetParams(Params{"max_depth": "deep"})
	assert.Error(t, err)
}

func TestBooster_EvalNames(t *testing.T) {
	x, y := linearData(t, 100, 0.1, 3)
	vx, vy := linearData(t, 50, 0.1, 4)
	evalSet := []EvalSet{{X: x, Y: y}, {X: vx, Y: vy}}

	tests := []struct {
		name   string
		est    Estimator
		keys   []string
		metric string
	}{
		{"xgb", NewXGBRegressor(), []string{"validation_0", "validation_1"}, "mae"},
		{"lgb", NewLGBRegressor(), []string{"training", "valid_1"}, "l1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.est.SetParams(Params{"n_estimators": 5}))
			var seen []EvalResult
			cb := CallbackFunc(func(_ int, evals EvalResult) error {
				seen = append(seen, evals)
				return nil
			})
			require.NoError(t, tt.est.Fit(x, y, FitOptions{EvalSet: evalSet, EvalMetric: "mae", Callbacks: []Callback{cb}}))
			require.Len(t, seen, 5)
			for _, k := range tt.keys {
				require.Contains(t, seen[0], k)
				assert.Contains(t, seen[0][k], tt.metric)
			}
			// 학습셋 오차는 감소해야 함
			first := seen[0][tt.keys[0]][tt.metric]
			last := seen[4][tt.keys[0]][tt.metric]
			assert.Less(t, last, first)
		})
	}
}

func TestBooster_CallbackStopAndError(t *testing.T) {
	x, y := linearData(t, 100, 0, 5)

	t.Run("stop", func(t *testing.T) {
		m := NewXGBRegressor()
		stop := CallbackFunc(func(it int, _ EvalResult) error {
			if it == 4 {
				return ErrStopTraining
			}
			return nil
		})
		require.NoError(t, m.Fit(x, y, FitOptions{Callbacks: []Callback{stop}}))
		assert.Len(t, m.Model.Trees, 5)
	})

	t.Run("error aborts fit", func(t *testing.T) {
		errPruned := errors.New("pruned")
		m := NewXGBRegressor()
		fail := CallbackFunc(func(it int, _ EvalResult) error {
			if it == 2 {
				return errPruned
			}
			return nil
		})
		err := m.Fit(x, y, FitOptions{Callbacks: []Callback{fail}})
		assert.ErrorIs(t, err, errPruned)
		assert.Nil(t, m.Model)
	})
}

func TestEarlyStopping(t *testing.T) {
	es := NewEarlyStopping(3, "mae", "validation_1", true)
	values := []float64{5, 4, 3, 3.5, 3.2, 3.1}

	var stoppedAt = -1
	for i, v := range values {
		err := es.AfterIteration(i, EvalResult{"validation_1": {"mae": v}})
		if errors.Is(err, ErrStopTraining) {
			stoppedAt = i
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, 5, stoppedAt)

	best, ok := es.BestIteration()
	require.True(t, ok)
	assert.Equal(t, 2, best)
	score, _ := es.BestScore()
	assert.Equal(t, 3.0, score)

	err := es.AfterIteration(6, EvalResult{"validation_0": {"mae": 1}})
	assert.Error(t, err, "missing data name is reported")
}

func TestBooster_EarlyStoppingTruncates(t *testing.T) {
	x, y := linearData(t, 200, 1, 6)
	vx, vy := linearData(t, 60, 1, 7)

	m := NewXGBRegressor()
	require.NoError(t, m.SetParams(Params{"n_estimators": 200}))
	es := NewEarlyStopping(10, "mae", "validation_1", true)
	require.NoError(t, m.Fit(x, y, FitOptions{
		EvalSet:    []EvalSet{{X: x, Y: y}, {X: vx, Y: vy}},
		EvalMetric: "mae",
		Callbacks:  []Callback{es},
	}))

	best, ok := es.BestIteration()
	require.True(t, ok)
	assert.Len(t, m.Model.Trees, best+1)
	assert.Equal(t, best, m.Model.BestIteration)
}

func TestBooster_DartTruncationKeepsBestWeights(t *testing.T) {
	x, y := linearData(t, 200, 1, 6)
	vx, vy := linearData(t, 60, 1, 7)

	m := NewXGBRegressor()
	require.NoError(t, m.SetParams(Params{
		"n_estimators": 200,
		"booster":      "dart",
		"rate_drop":    0.3,
	}))
	es := NewEarlyStopping(10, "mae", "validation_1", true)
	require.NoError(t, m.Fit(x, y, FitOptions{
		EvalSet:    []EvalSet{{X: x, Y: y}, {X: vx, Y: vy}},
		EvalMetric: "mae",
		Callbacks:  []Callback{es},
	}))

	best, ok := es.BestIteration()
	require.True(t, ok)
	require.Len(t, m.Model.Weights, best+1)

	// 잘린 모델의 검증 오차 = best iteration 시점의 검증 오차
	pred, err := m.Predict(vx)
	require.NoError(t, err)
	score, _ := es.BestScore()
	assert.InDelta(t, score, scoring.MAE(vy, pred), 1e-9)
}

func TestLGBRegressor_Modes(t *testing.T) {
	x, y := linearData(t, 200, 0, 8)
	for _, mode := range []string{"gbdt", "dart", "rf"} {
		t.Run(mode, func(t *testing.T) {
			m := NewLGBRegressor()
			require.NoError(t, m.SetParams(Params{
				"boosting_type":  mode,
				"subsample":      0.8,
				"subsample_freq": 1,
				"n_estimators":   50,
			}))
			require.NoError(t, m.Fit(x, y, FitOptions{}))
			pred, err := m.Predict(x)
			require.NoError(t, err)
			baseline := scoring.MAE(y, constant(len(y), m.Model.BaseScore))
			assert.Less(t, scoring.MAE(y, pred), baseline)
		})
	}
}

func TestQuantileRegressors_Ordered(t *testing.T) {
	x, y := linearData(t, 300, 2, 9)

	for _, est := range []QuantileEstimator{
		NewXGBQuantileRegressor([]float64{0.1, 0.9}),
		NewXGBMultiOutputQuantileRegressor([]float64{0.1, 0.9}),
	} {
		require.NoError(t, est.SetParams(Params{"n_estimators": 100}))
		require.NoError(t, est.Fit(x, y, FitOptions{}))
		assert.Equal(t, []float64{0.1, 0.5, 0.9}, est.Quantiles(), "median is always added")

		lo, err := est.PredictQuantile(x, 0.1)
		require.NoError(t, err)
		hi, err := est.PredictQuantile(x, 0.9)
		require.NoError(t, err)

		var below, above int
		for i := range y {
			if y[i] < lo[i] {
				below++
			}
			if y[i] > hi[i] {
				above++
			}
		}
		assert.Less(t, below, len(y)/4)
		assert.Less(t, above, len(y)/4)

		_, err = est.PredictQuantile(x, 0.3)
		assert.Error(t, err)
	}
}

func TestLinearRegressor_RecoversCoefficients(t *testing.T) {
	x, y := linearData(t, 100, 0, 10)

	m := NewLinearRegressor()
	require.NoError(t, m.Fit(x, y, FitOptions{}))
	assert.InDelta(t, 3.0, m.Intercept, 1e-4)
	require.Len(t, m.Coef, 2)
	assert.InDelta(t, 2.0, m.Coef[0], 1e-4)
	assert.InDelta(t, -1.0, m.Coef[1], 1e-4)

	// 결측값은 학습 평균으로 대체
	a := append([]float64(nil), x.ColumnAt(0)...)
	a[0] = math.NaN()
	require.NoError(t, x.Set("a", a))
	pred, err := m.Predict(x)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(pred[0]))
}

func TestARIMARegressor_Trend(t *testing.T) {
	n := 96
	y := make([]float64, n)
	for i := range y {
		y[i] = 5 + 0.5*float64(i)
	}
	x := frame.New(testIndex(n))

	m := NewARIMARegressor()
	require.NoError(t, m.SetParams(Params{"trend": "ct"}))
	require.NoError(t, m.Fit(x, y, FitOptions{}))
	assert.Equal(t, 15*time.Minute, m.Step)
	assert.InDelta(t, 5.0, m.Const, 1e-3)
	assert.InDelta(t, 0.5, m.Slope, 1e-5)

	future := frame.New([]time.Time{t0.Add(time.Duration(n) * 15 * time.Minute)})
	pred, err := m.Predict(future)
	require.NoError(t, err)
	assert.InDelta(t, 5+0.5*float64(n), pred[0], 1e-2)
}

func TestModel_JSONRoundTrip(t *testing.T) {
	x, y := linearData(t, 120, 0.5, 11)

	for _, mt := range AllModelTypes() {
		t.Run(string(mt), func(t *testing.T) {
			m, err := NewModel(mt)
			require.NoError(t, err)
			if _, ok := m.Estimator.Params()["n_estimators"]; ok {
				require.NoError(t, m.Estimator.SetParams(Params{"n_estimators": 10}))
			}
			require.NoError(t, m.Estimator.Fit(x, y, FitOptions{}))
			m.UpdateFeatureImportance()
			m.StandardDeviation = []StandardDeviation{{Hour: 1, Horizon: 0.25, Stdev: 2}}

			data, err := json.Marshal(m)
			require.NoError(t, err)

			var loaded Model
			require.NoError(t, json.Unmarshal(data, &loaded))
			assert.Equal(t, mt, loaded.Type)
			assert.Equal(t, m.StandardDeviation, loaded.StandardDeviation)
			assert.Equal(t, m.FeatureNames(), loaded.FeatureNames())

			want, err := m.Predict(x)
			require.NoError(t, err)
			got, err := loaded.Predict(x)
			require.NoError(t, err)
			assert.InDeltaSlice(t, want, got, 1e-9)
		})
	}
}

func TestModel_QuantileModel(t *testing.T) {
	m, err := NewModel(ModelXGBQuantile)
	require.NoError(t, err)
	_, ok := m.QuantileModel([]float64{0.1, 0.9})
	assert.True(t, ok)
	_, ok = m.QuantileModel([]float64{0.2})
	assert.False(t, ok)

	point, err := NewModel(ModelXGB)
	require.NoError(t, err)
	_, ok = point.QuantileModel([]float64{0.5})
	assert.False(t, ok)
}
