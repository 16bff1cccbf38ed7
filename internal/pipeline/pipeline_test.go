package pipeline

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/fallback"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/features"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/postprocess"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/registry"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/validation"
)

const (
	measured = 3 * 96
	tail     = 8
)

var (
	start = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	now   = start.Add(measured * 15 * time.Minute)
)

func temperature(i int) float64 { return 10 + 5*math.Sin(float64(i)/10) }

func hourOf(t time.Time) float64 { return float64(t.Hour()) + float64(t.Minute())/60 }

func target(i int, t time.Time) float64 { return 2*temperature(i) + hourOf(t) + 10 }

// 3일 측정 + 2시간 예측 구간 (load NaN)
// withTemperature=false: 온도 피드 전체 누락
func input(t *testing.T, withTemperature bool) *frame.Frame {
	t.Helper()
	n := measured + tail
	idx := make([]time.Time, n)
	load := make([]float64, n)
	temp := make([]float64, n)
	for i := range idx {
		idx[i] = start.Add(time.Duration(i) * 15 * time.Minute)
		temp[i] = temperature(i)
		load[i] = target(i, idx[i])
		if i >= measured {
			load[i] = math.NaN()
		}
		if !withTemperature {
			temp[i] = math.NaN()
		}
	}
	f, err := frame.FromColumns(idx, []string{contracts.ColumnLoad, "temperature"}, [][]float64{load, temp})
	require.NoError(t, err)
	return f
}

func trainedModel(t *testing.T) (*regressor.Model, contracts.ModelSpecification) {
	t.Helper()
	data := input(t, true).Filter(func(i int) bool { return i < measured })
	app := features.NewApplicator(nil, 15*time.Minute, zerolog.Nop())
	train, err := app.ApplyOperational(data, []string{"temperature", features.FeatureHour})
	require.NoError(t, err)

	x, err := train.Select("temperature", features.FeatureHour)
	require.NoError(t, err)
	y, _ := train.Column(contracts.ColumnLoad)

	model, err := regressor.NewModel(regressor.ModelLinear)
	require.NoError(t, err)
	require.NoError(t, model.Estimator.Fit(x, y, regressor.FitOptions{}))
	model.UpdateFeatureImportance()

	return model, contracts.ModelSpecification{ID: "307", FeatureNames: model.FeatureNames()}
}

func job() contracts.PredictionJob {
	j := contracts.DefaultPredictionJob(307)
	j.Name = "Substation A"
	j.Model = string(regressor.ModelLinear)
	j.Quantiles = []float64{0.1, 0.5, 0.9}
	return j
}

// newPipeline returns a pipeline whose registry holds one run for pid 307.
func newPipeline(t *testing.T, buf *bytes.Buffer) (*Pipeline, string) {
	t.Helper()
	reg := registry.NewMemory()
	model, spec := trainedModel(t)
	runID, err := reg.Save(context.Background(), "307", model, spec)
	require.NoError(t, err)

	log := zerolog.Nop()
	if buf != nil {
		log = zerolog.New(buf)
	}
	p := NewPipelineWithConfig(Config{Now: func() time.Time { return now }}, reg, log)
	return p, runID
}

func TestCreate_ModelPath(t *testing.T) {
	p, runID := newPipeline(t, nil)

	// 기본 minimal_table_length(100): 예측 구간은 8행이지만 이력 포함 296행
	j := job()
	require.Equal(t, 100, j.MinimalTableLength)

	fc, err := p.Create(context.Background(), j, input(t, true))
	require.NoError(t, err)

	require.Equal(t, tail, fc.Len())
	assert.Equal(t, now, fc.Index()[0])
	assert.Equal(t, contracts.QualityActual, fc.Quality)
	assert.Equal(t, int64(307), fc.PID)
	assert.Equal(t, "Substation A", fc.Customer)
	assert.Equal(t, registry.ModelPath("307", runID), fc.AlgType)

	values, ok := fc.Column(contracts.ColumnForecast)
	require.True(t, ok)
	for i, ts := range fc.Index() {
		assert.InDelta(t, target(measured+i, ts), values[i], 1e-3)
	}

	assert.Equal(t, []string{"quantile_P10", "quantile_P50", "quantile_P90"}, fc.QuantileColumns())
	assert.True(t, fc.Has(contracts.ColumnStdev))
	assert.Zero(t, postprocess.CrossingRows(fc))
}

func TestCreate_FallbackOnLowCompleteness(t *testing.T) {
	var buf bytes.Buffer
	p, _ := newPipeline(t, &buf)

	j := job()
	j.CompletenessThreshold = 0.9
	data := input(t, false)

	fc, err := p.Create(context.Background(), j, data)
	require.NoError(t, err)

	assert.Equal(t, contracts.QualityNotRenewed, fc.Quality)
	assert.Contains(t, buf.String(), "using fallback forecast")
	assert.Contains(t, buf.String(), `"pid":307`)
	assert.Contains(t, buf.String(), `"fallback_strategy":"extreme_day"`)

	// 최대 부하일 프로파일
	want, err := fallback.Generate(fc.Index(), data, contracts.FallbackExtremeDay, fallback.Options{Now: now})
	require.NoError(t, err)
	got, _ := fc.Column(contracts.ColumnForecast)
	expected, _ := want.Column(contracts.ColumnForecast)
	assert.Equal(t, expected, got)
	assert.Zero(t, postprocess.CrossingRows(fc))
}

func TestCreate_FallbackOnShortHistory(t *testing.T) {
	p, _ := newPipeline(t, nil)

	// 측정 40행 + 예측 구간 8행 < 100
	data := input(t, true).Filter(func(i int) bool { return i >= measured-40 })

	fc, err := p.Create(context.Background(), job(), data)
	require.NoError(t, err)
	assert.Equal(t, contracts.QualityNotRenewed, fc.Quality)
	assert.Equal(t, tail, fc.Len())
}

func TestCreate_FallbackUsesRawLoad(t *testing.T) {
	p, _ := newPipeline(t, nil)

	// 둘째 날 00:00 ~ 셋째 날 02:00 일정값 500: 검증에서 NaN 처리되는 평탄 구간이자 최대 부하일
	data := input(t, false)
	load, _ := data.Column(contracts.ColumnLoad)
	raw := append([]float64(nil), load...)
	for i := 96; i <= 96+104; i++ {
		raw[i] = 500
	}
	require.NoError(t, data.Set(contracts.ColumnLoad, raw))

	j := job()
	j.CompletenessThreshold = 0.9
	j.DetectNonZeroFlatliner = true
	fc, err := p.Create(context.Background(), j, data)
	require.NoError(t, err)
	require.Equal(t, contracts.QualityNotRenewed, fc.Quality)

	values, _ := fc.Column(contracts.ColumnForecast)
	for _, v := range values {
		assert.Equal(t, 500.0, v)
	}
}

func TestCreateCore_AlgTypeWithoutRegistry(t *testing.T) {
	p, _ := newPipeline(t, nil)
	model, spec := trainedModel(t)

	fc, err := p.CreateCore(context.Background(), job(), model, spec, input(t, true))
	require.NoError(t, err)
	assert.Equal(t, "linear", fc.AlgType)
}

func TestCreate_FallbackRaiseError(t *testing.T) {
	p, _ := newPipeline(t, nil)

	j := job()
	j.CompletenessThreshold = 0.9
	j.FallbackStrategy = contracts.FallbackRaiseError

	_, err := p.Create(context.Background(), j, input(t, false))
	assert.ErrorIs(t, err, fallback.ErrFallbackSuppressed)
}

func TestCreate_ModelNotFound(t *testing.T) {
	p, _ := newPipeline(t, nil)

	j := job()
	j.ID = 999
	_, err := p.Create(context.Background(), j, input(t, true))
	assert.ErrorIs(t, err, registry.ErrModelNotFound)
}

func TestCreate_AlternativeModel(t *testing.T) {
	p, _ := newPipeline(t, nil)

	j := job()
	j.ID = 999
	alt := int64(307)
	j.AlternativeForecastModelPID = &alt

	fc, err := p.Create(context.Background(), j, input(t, true))
	require.NoError(t, err)
	assert.Equal(t, int64(999), fc.PID)
}

func TestCreate_OngoingFlatliner(t *testing.T) {
	p, _ := newPipeline(t, nil)

	data := input(t, true)
	load, _ := data.Column(contracts.ColumnLoad)
	flat := append([]float64(nil), load...)
	for i := measured - 2*96; i < measured; i++ {
		flat[i] = 0
	}
	require.NoError(t, data.Set(contracts.ColumnLoad, flat))

	_, err := p.Create(context.Background(), job(), data)
	assert.ErrorIs(t, err, validation.ErrOngoingFlatliner)
}

func TestCreate_CustomDataPrep(t *testing.T) {
	p, _ := newPipeline(t, nil)

	called := false
	p.RegisterDataPrep("custom", DataPrepFunc(func(data *frame.Frame, j contracts.PredictionJob, spec contracts.ModelSpecification) (*frame.Frame, error) {
		called = true
		return features.NewApplicator(nil, 15*time.Minute, zerolog.Nop()).ApplyOperational(data, spec.FeatureNames)
	}))

	j := job()
	j.DataPrepClass = "custom"
	_, err := p.Create(context.Background(), j, input(t, true))
	require.NoError(t, err)
	assert.True(t, called)

	j.DataPrepClass = "missing"
	_, err = p.Create(context.Background(), j, input(t, true))
	assert.ErrorIs(t, err, ErrUnknownDataPrep)
}

func TestCreate_Cancelled(t *testing.T) {
	p, _ := newPipeline(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model, spec := trainedModel(t)
	_, err := p.CreateCore(ctx, job(), model, spec, input(t, true))
	assert.ErrorIs(t, err, context.Canceled)
}
