package split

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

// testData 20일, 하루 4시점, 시점마다 horizon 0.25h / 24h 두 행
func testData(t *testing.T, days int) *frame.Frame {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var index []time.Time
	var load, feat, horizon []float64
	for d := 0; d < days; d++ {
		for h := 0; h < 24; h += 6 {
			ts := start.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour)
			for _, hz := range []float64{0.25, 24} {
				index = append(index, ts)
				load = append(load, 100+float64(d)+float64(h))
				feat = append(feat, float64(h))
				horizon = append(horizon, hz)
			}
		}
	}
	f, err := frame.FromColumns(index,
		[]string{contracts.ColumnLoad, "hour", contracts.ColumnHorizon},
		[][]float64{load, feat, horizon})
	require.NoError(t, err)
	return f
}

func days(f *frame.Frame) map[string]struct{} {
	out := make(map[string]struct{})
	for _, ts := range f.Index() {
		out[dayKey(ts)] = struct{}{}
	}
	return out
}

func TestTrainValidationTest_BackTest(t *testing.T) {
	data := testData(t, 20)

	ds, err := TrainValidationTest(data, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, ds.Validate())

	// 마지막 3일 (ceil(0.15*20)) 이 테스트
	testDays := days(ds.Test)
	assert.Len(t, testDays, 3)
	for _, d := range []string{"2024-03-18", "2024-03-19", "2024-03-20"} {
		assert.Contains(t, testDays, d)
	}

	assert.Len(t, days(ds.Validation), 3)
	assert.Equal(t, data.Len(),
		ds.Train.Len()+ds.Validation.Len()+ds.Test.Len()+ds.OperationalScore.Len())

	// 일 단위 서로소
	for d := range days(ds.Validation) {
		assert.NotContains(t, days(ds.Train), d)
		assert.NotContains(t, testDays, d)
	}

	// 운영 점수 데이터: 테스트 일자의 가장 짧은 horizon 행, 테스트셋과 겹치지 않음
	assert.Equal(t, ds.Test.Len(), ds.OperationalScore.Len())
	assert.Equal(t, testDays, days(ds.OperationalScore))
	h, _ := ds.OperationalScore.Column(contracts.ColumnHorizon)
	for _, v := range h {
		assert.Equal(t, 0.25, v)
	}
	h, _ = ds.Test.Column(contracts.ColumnHorizon)
	for _, v := range h {
		assert.Equal(t, 24.0, v)
	}
}

func TestTrainValidationTest_SingleHorizon(t *testing.T) {
	data := testData(t, 20)
	h, _ := data.Column(contracts.ColumnHorizon)
	single := data.Filter(func(i int) bool { return h[i] == 24 })

	ds, err := TrainValidationTest(single, DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, days(ds.Test), 3)
	assert.Zero(t, ds.OperationalScore.Len())
	assert.Equal(t, ds.Test.Columns(), ds.OperationalScore.Columns())
	assert.Equal(t, single.Len(), ds.Train.Len()+ds.Validation.Len()+ds.Test.Len())
}

func TestTrainValidationTest_Deterministic(t *testing.T) {
	data := testData(t, 20)
	opts := DefaultOptions()
	opts.Seed = 7

	a, err := TrainValidationTest(data, opts)
	require.NoError(t, err)
	b, err := TrainValidationTest(data, opts)
	require.NoError(t, err)

	assert.Equal(t, a.Validation.Index(), b.Validation.Index())
	assert.Equal(t, a.Train.Index(), b.Train.Index())
}

func TestTrainValidationTest_NoBackTest(t *testing.T) {
	data := testData(t, 10)
	opts := DefaultOptions()
	opts.BackTest = false
	opts.StratificationMinMax = false

	ds, err := TrainValidationTest(data, opts)
	require.NoError(t, err)
	assert.Zero(t, ds.Test.Len())
	assert.Len(t, days(ds.Validation), 2)
	assert.Equal(t, data.Len(), ds.Train.Len()+ds.Validation.Len())
}

func TestTrainValidationTest_Empty(t *testing.T) {
	_, err := TrainValidationTest(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrEmptyData)
}

func TestCheckColumnOrder(t *testing.T) {
	index := []time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	tests := []struct {
		name    string
		columns []string
		wantErr bool
	}{
		{"ok", []string{"load", "x", "horizon"}, false},
		{"horizon not last", []string{"load", "horizon", "x"}, true},
		{"load not first", []string{"x", "load", "horizon"}, true},
		{"too few", []string{"load"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckColumnOrder(frame.New(index, tt.columns...))
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrColumnOrder))
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.ErrorIs(t, CheckColumnOrder(nil), ErrColumnOrder)

	bad := &DataSplit{
		Train:      frame.New(index, "load", "x", "horizon"),
		Validation: frame.New(index, "x", "load", "horizon"),
		Test:       frame.New(index, "load", "x", "horizon"),
	}
	err := bad.Validate()
	assert.ErrorIs(t, err, ErrColumnOrder)
	assert.Contains(t, err.Error(), "validation data")
}

func TestXY(t *testing.T) {
	data := testData(t, 1)
	x, y := XY(data)
	assert.Equal(t, []string{"hour"}, x.Columns())
	assert.Equal(t, data.ColumnAt(0), y)
}
