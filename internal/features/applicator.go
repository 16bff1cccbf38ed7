package features

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

var (
	// ErrNoLoadColumn 입력에 load 컬럼이 없음
	ErrNoLoadColumn = errors.New("input has no load column")

	// ErrNoForecastWindow load 끝에 예측할 구간(결측 꼬리)이 없음
	ErrNoForecastWindow = errors.New("no forecast window after the last measured load")
)

// DefaultLags 피처 이름이 주어지지 않을 때 사용하는 lag 피처
var DefaultLags = []string{"T-15min", "T-30min", "T-60min", "T-1d", "T-2d", "T-7d"}

// DefaultTrainingHorizons 학습 데이터를 복제할 horizon (시간)
var DefaultTrainingHorizons = []float64{0.25, 47}

var lagPattern = regexp.MustCompile(`^T-(\d+)(min|d)$`)

// LagName returns the lag feature name for d, e.g. 15m -> "T-15min", 48h -> "T-2d".
func LagName(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		return fmt.Sprintf("T-%dd", int(d/(24*time.Hour)))
	}
	return fmt.Sprintf("T-%dmin", int(d/time.Minute))
}

// ParseLag returns the lag of a "T-<n>min" / "T-<n>d" feature name.
func ParseLag(name string) (time.Duration, bool) {
	m := lagPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	if m[2] == "d" {
		return time.Duration(n) * 24 * time.Hour, true
	}
	return time.Duration(n) * time.Minute, true
}

// Applicator 기본 data prep: lag + 달력 + 휴일 피처, load 첫 컬럼, horizon 마지막 컬럼
type Applicator struct {
	Functions  Functions
	Resolution time.Duration
	log        zerolog.Logger
}

// NewApplicator creates an applicator with calendar features plus extra functions.
func NewApplicator(extra Functions, resolution time.Duration, log zerolog.Logger) *Applicator {
	if resolution <= 0 {
		resolution = 15 * time.Minute
	}
	return &Applicator{
		Functions:  CalendarFunctions().Merge(extra),
		Resolution: resolution,
		log:        log.With().Str("component", "features.applicator").Logger(),
	}
}

// ApplyOperational adds features for inference. The horizon column is the lead time
// in hours from the last measured load.
func (a *Applicator) ApplyOperational(data *frame.Frame, featureNames []string) (*frame.Frame, error) {
	load, ok := data.Column(contracts.ColumnLoad)
	if !ok {
		return nil, ErrNoLoadColumn
	}
	index := data.Index()

	out, err := a.build(data, featureNames, nil)
	if err != nil {
		return nil, err
	}

	minLead := a.Resolution.Hours()
	horizon := make([]float64, len(index))
	last := frame.LastValid(load)
	for i, t := range index {
		lead := minLead
		if last >= 0 {
			if h := t.Sub(index[last]).Hours(); h > lead {
				lead = h
			}
		}
		horizon[i] = lead
	}
	if err := out.Set(contracts.ColumnHorizon, horizon); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyTraining builds training rows: the feature set is repeated per horizon, lag
// features shorter than the horizon are masked, and rows without a load are dropped.
func (a *Applicator) ApplyTraining(data *frame.Frame, horizons []float64, featureNames []string) (*frame.Frame, error) {
	if !data.Has(contracts.ColumnLoad) {
		return nil, ErrNoLoadColumn
	}
	if len(horizons) == 0 {
		horizons = DefaultTrainingHorizons
	}

	parts := make([]*frame.Frame, 0, len(horizons))
	for _, h := range horizons {
		hours := h
		part, err := a.build(data, featureNames, &hours)
		if err != nil {
			return nil, err
		}
		hcol := make([]float64, part.Len())
		for i := range hcol {
			hcol[i] = hours
		}
		if err := part.Set(contracts.ColumnHorizon, hcol); err != nil {
			return nil, err
		}
		load, _ := part.Column(contracts.ColumnLoad)
		parts = append(parts, part.Filter(func(i int) bool { return !math.IsNaN(load[i]) }))
	}

	out, err := frame.Concat(parts...)
	if err != nil {
		return nil, err
	}
	return out.SortByIndex(), nil
}

// build returns load plus the requested feature columns (no horizon yet).
// With maskBelow set, lag features shorter than that many hours are NaN.
func (a *Applicator) build(data *frame.Frame, featureNames []string, maskBelow *float64) (*frame.Frame, error) {
	load, _ := data.Column(contracts.ColumnLoad)
	index := data.Index()

	names := featureNames
	if len(names) == 0 {
		names = a.defaultFeatures(data)
	}

	out := frame.New(index)
	if err := out.Set(contracts.ColumnLoad, load); err != nil {
		return nil, err
	}

	rowAt := make(map[int64]int, len(index))
	for i, t := range index {
		if _, dup := rowAt[t.UnixNano()]; !dup {
			rowAt[t.UnixNano()] = i
		}
	}

	var missing []string
	for _, name := range names {
		if name == contracts.ColumnLoad || name == contracts.ColumnHorizon {
			continue
		}
		var values []float64
		switch lag, isLag := ParseLag(name); {
		case data.Has(name):
			values, _ = data.Column(name)
		case isLag:
			if maskBelow != nil && lag.Hours() < *maskBelow {
				values = frame.NaNs(len(index))
			} else {
				values = shift(index, load, rowAt, lag)
			}
		case a.Functions[name] != nil:
			values = a.Functions[name](index)
		default:
			missing = append(missing, name)
			values = frame.NaNs(len(index))
		}
		if err := out.Set(name, values); err != nil {
			return nil, err
		}
	}
	if len(missing) > 0 {
		a.log.Warn().Strs("features", missing).Msg("features not available, filled with NaN")
	}
	return out, nil
}

func (a *Applicator) defaultFeatures(data *frame.Frame) []string {
	var names []string
	for _, c := range data.Columns() {
		if c != contracts.ColumnLoad && c != contracts.ColumnHorizon {
			names = append(names, c)
		}
	}
	names = append(names, DefaultLags...)
	fnNames := a.Functions.Names()
	sort.Strings(fnNames)
	return append(names, fnNames...)
}

// shift returns load(t - lag) for every row, NaN when that timestamp is absent.
func shift(index []time.Time, load []float64, rowAt map[int64]int, lag time.Duration) []float64 {
	out := make([]float64, len(index))
	for i, t := range index {
		if r, ok := rowAt[t.Add(-lag).UnixNano()]; ok {
			out[i] = load[r]
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// ForecastWindow returns the rows to forecast: from the first timestamp after the
// last measured load up to the end of the data.
func ForecastWindow(data *frame.Frame) (time.Time, time.Time, error) {
	load, ok := data.Column(contracts.ColumnLoad)
	if !ok {
		return time.Time{}, time.Time{}, ErrNoLoadColumn
	}
	index := data.Index()
	if len(index) == 0 {
		return time.Time{}, time.Time{}, ErrNoForecastWindow
	}
	last := frame.LastValid(load)
	if last == len(index)-1 {
		return time.Time{}, time.Time{}, ErrNoForecastWindow
	}
	return index[last+1], index[len(index)-1], nil
}
