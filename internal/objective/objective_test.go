package objective

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/split"
)

// fakeTrial 구간 중앙값을 제안하는 결정적 trial
type fakeTrial struct {
	number int
	prune  bool

	mu        sync.Mutex
	suggested map[string]any
	reports   []float64
	attrs     map[string]any
}

func newFakeTrial(number int) *fakeTrial {
	return &fakeTrial{number: number, suggested: map[string]any{}, attrs: map[string]any{}}
}

func (f *fakeTrial) Number() int { return f.number }

func (f *fakeTrial) SuggestFloat(name string, low, high float64) float64 {
	v := low + (high-low)/2
	f.record(name, v)
	return v
}

func (f *fakeTrial) SuggestLogFloat(name string, low, high float64) float64 {
	v := math.Sqrt(low * high)
	f.record(name, v)
	return v
}

func (f *fakeTrial) SuggestInt(name string, low, high int) int {
	v := low + (high-low)/2
	f.record(name, v)
	return v
}

func (f *fakeTrial) SuggestCategorical(name string, choices []string) string {
	f.record(name, choices[0])
	return choices[0]
}

func (f *fakeTrial) Report(value float64, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, value)
}

func (f *fakeTrial) ShouldPrune() bool { return f.prune }

func (f *fakeTrial) SetUserAttr(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attrs[key] = value
}

func (f *fakeTrial) record(name string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggested[name] = v
}

// countingEstimator Fit 호출 횟수만 기록
type countingEstimator struct {
	regressor.Estimator
	fits *int32
}

func (c countingEstimator) Fit(x *frame.Frame, y []float64, opts regressor.FitOptions) error {
	atomic.AddInt32(c.fits, 1)
	return c.Estimator.Fit(x, y, opts)
}

func (c countingEstimator) Clone() regressor.Estimator {
	return countingEstimator{Estimator: c.Estimator.Clone(), fits: c.fits}
}

func trainingData(t *testing.T, columns ...string) *frame.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	n := 10 * 96
	idx := make([]time.Time, n)
	load := make([]float64, n)
	a := make([]float64, n)
	hour := make([]float64, n)
	horizon := make([]float64, n)
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := range idx {
		idx[i] = start.Add(time.Duration(i) * 15 * time.Minute)
		hour[i] = float64(idx[i].Hour())
		a[i] = rng.Float64() * 4
		load[i] = 10 + 5*math.Sin(hour[i]/24*2*math.Pi) + a[i] + 0.2*rng.NormFloat64()
		horizon[i] = 0.25
	}
	values := map[string][]float64{
		contracts.ColumnLoad:    load,
		"a":                     a,
		"hour":                  hour,
		contracts.ColumnHorizon: horizon,
	}
	if len(columns) == 0 {
		columns = []string{contracts.ColumnLoad, "a", "hour", contracts.ColumnHorizon}
	}
	cols := make([][]float64, len(columns))
	for i, c := range columns {
		cols[i] = values[c]
	}
	f, err := frame.FromColumns(idx, columns, cols)
	require.NoError(t, err)
	return f
}

func TestEvaluate_ColumnOrderIsFatal(t *testing.T) {
	var fits int32
	template := &regressor.Model{
		Type:      regressor.ModelXGB,
		Estimator: countingEstimator{Estimator: regressor.NewXGBRegressor(), fits: &fits},
	}
	// horizon이 마지막 컬럼이 아님
	input := trainingData(t, contracts.ColumnLoad, "a", contracts.ColumnHorizon, "hour")

	obj, err := New(template, input, DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)

	log := NewTrialLog()
	_, err = obj.Evaluate(context.Background(), newFakeTrial(0), log)
	require.Error(t, err)
	assert.ErrorIs(t, err, split.ErrColumnOrder)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fits), "no model call after column-order violation")
	assert.Equal(t, 0, log.Len())
}

func TestDefaultValues_MatchParamSpace(t *testing.T) {
	input := trainingData(t)
	for _, mt := range regressor.AllModelTypes() {
		t.Run(string(mt), func(t *testing.T) {
			template, err := regressor.NewModel(mt)
			require.NoError(t, err)
			obj, err := New(template, input, DefaultConfig(), zerolog.Nop())
			require.NoError(t, err)

			suggested := obj.Params(newFakeTrial(0)).Keys()
			defaults := obj.Family().DefaultValues()
			assert.Equal(t, suggested, defaults.Keys())

			// 기본값은 모델이 그대로 받아들일 수 있어야 함
			require.NoError(t, template.Clone().Estimator.SetParams(defaults))
		})
	}
}

func TestParams_IntersectsDefaultSpace(t *testing.T) {
	input := trainingData(t)

	lgb, err := regressor.NewModel(regressor.ModelLGB)
	require.NoError(t, err)
	obj, err := New(lgb, input, DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	params := obj.Params(newFakeTrial(0))
	assert.NotContains(t, params, "alpha", "LGB names L1 reg_alpha")
	assert.NotContains(t, params, "max_delta_step")
	assert.Contains(t, params, "learning_rate")
	assert.Contains(t, params, "num_leaves")

	linear, err := regressor.NewModel(regressor.ModelLinear)
	require.NoError(t, err)
	obj, err = New(linear, input, DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"imputation_strategy"}, obj.Params(newFakeTrial(0)).Keys())
}

func TestEvaluate_XGB(t *testing.T) {
	template, err := regressor.NewModel(regressor.ModelXGB)
	require.NoError(t, err)
	obj, err := New(template, trainingData(t), DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)

	trial := newFakeTrial(3)
	log := NewTrialLog()
	result, err := obj.Evaluate(context.Background(), trial, log)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Number)
	assert.False(t, result.Pruned)
	assert.Greater(t, result.Score, 0.0)
	assert.Less(t, result.Score, 2.0)

	rec, ok := log.Get(3)
	require.True(t, ok)
	assert.Equal(t, result.Score, rec.Score)
	assert.Equal(t, "gbtree", rec.Params["booster"])

	require.NotNil(t, result.Model)
	assert.NotEmpty(t, result.Model.FeatureImportance)
	assert.NotEmpty(t, result.Model.StandardDeviation)
	assert.Same(t, result.Model, trial.attrs[UserAttrModel])
	assert.NotEmpty(t, trial.reports, "pruning callback reports validation_1-mae")

	assert.Empty(t, template.FeatureNames(), "template stays unfitted")

	report, err := obj.Report(result.Model)
	require.NoError(t, err)
	assert.Greater(t, report.Train.Rows, report.Test.Rows)
	assert.Less(t, report.Train.MAE, 2.0)
}

func TestEvaluate_Pruned(t *testing.T) {
	template, err := regressor.NewModel(regressor.ModelLGB)
	require.NoError(t, err)
	obj, err := New(template, trainingData(t), DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)

	trial := newFakeTrial(1)
	trial.prune = true
	log := NewTrialLog()
	result, err := obj.Evaluate(context.Background(), trial, log)
	assert.ErrorIs(t, err, ErrTrialPruned)
	assert.True(t, result.Pruned)
	assert.Equal(t, 0, log.Len(), "pruned trials are not recorded")
}

func TestEvaluate_ConcurrentTrials(t *testing.T) {
	var splits int32
	cfg := DefaultConfig()
	cfg.SplitFunc = func(data *frame.Frame, opts split.Options) (*split.DataSplit, error) {
		atomic.AddInt32(&splits, 1)
		return split.TrainValidationTest(data, opts)
	}
	template, err := regressor.NewModel(regressor.ModelLinear)
	require.NoError(t, err)
	obj, err := New(template, trainingData(t), cfg, zerolog.Nop())
	require.NoError(t, err)

	log := NewTrialLog()
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 4; i++ {
		n := i
		g.Go(func() error {
			_, err := obj.Evaluate(ctx, newFakeTrial(n), log)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), atomic.LoadInt32(&splits), "data is split once")
	assert.Equal(t, []int{0, 1, 2, 3}, log.Numbers())

	_, err = obj.Evaluate(context.Background(), newFakeTrial(2), log)
	assert.ErrorIs(t, err, ErrDuplicateTrial)
}

func TestEvaluate_Cancelled(t *testing.T) {
	template, err := regressor.NewModel(regressor.ModelLinear)
	require.NoError(t, err)
	obj, err := New(template, trainingData(t), DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = obj.Evaluate(ctx, newFakeTrial(0), NewTrialLog())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrialLog(t *testing.T) {
	log := NewTrialLog()
	require.NoError(t, log.Append(1, TrialRecord{Score: 2.5, Params: regressor.Params{"max_depth": 4}}))
	require.NoError(t, log.Append(0, TrialRecord{Score: 1.5, Params: regressor.Params{"max_depth": 6}}))

	err := log.Append(1, TrialRecord{Score: 0.1})
	assert.True(t, errors.Is(err, ErrDuplicateTrial))

	n, best, ok := log.Best()
	require.True(t, ok)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1.5, best.Score)

	data, err := json.Marshal(log)
	require.NoError(t, err)
	var decoded map[string]TrialRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	keys := make([]string, 0, len(decoded))
	for k := range decoded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{" trial: 0", " trial: 1"}, keys)
	assert.Equal(t, 2.5, decoded[" trial: 1"].Score)
}

func TestFamilyFor_Unknown(t *testing.T) {
	_, err := FamilyFor("prophet")
	assert.Error(t, err)
}
