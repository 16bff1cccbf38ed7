package fallback

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/features"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

var (
	// ErrUnsupportedStrategy 알 수 없는 폴백 전략
	ErrUnsupportedStrategy = errors.New("unsupported fallback strategy")

	// ErrFallbackSuppressed RAISE_ERROR 전략: 폴백 예측 대신 실패
	ErrFallbackSuppressed = errors.New("fallback forecast suppressed by strategy")

	// ErrNoLoadData 폴백에 사용할 load 값이 없음
	ErrNoLoadData = errors.New("no load data available for fallback")
)

// Options 폴백 생성 옵션
type Options struct {
	// Now 예측 생성 시각. 이 날짜(미완성 일)는 극단일 후보에서 제외. zero면 제외 안함
	Now time.Time
}

// Supported reports whether the strategy is known.
func Supported(s contracts.FallbackStrategy) bool {
	switch s.Resolve() {
	case contracts.FallbackExtremeDay, contracts.FallbackRaiseError:
		return true
	}
	return false
}

// Generate creates a heuristic forecast over forecastIndex from historic load.
//
// Checks run in order: unknown strategy, missing load, RAISE_ERROR. EXTREME_DAY takes
// the day with the highest load and maps its profile onto the index by time of day.
func Generate(forecastIndex []time.Time, load *frame.Frame, strategy contracts.FallbackStrategy, opts Options) (*contracts.Forecast, error) {
	if !Supported(strategy) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, strategy)
	}

	var values []float64
	if load != nil {
		values, _ = load.Column(contracts.ColumnLoad)
	}
	if frame.CountValid(values) == 0 {
		return nil, ErrNoLoadData
	}

	if strategy.Resolve() == contracts.FallbackRaiseError {
		return nil, ErrFallbackSuppressed
	}

	profile := extremeDayProfile(load.Index(), values, opts.Now)

	forecast := make([]float64, len(forecastIndex))
	for i, t := range forecastIndex {
		v, ok := profile[timeOfDay(t)]
		if !ok {
			v = math.NaN()
		}
		forecast[i] = v
	}

	f := frame.New(forecastIndex)
	if err := f.Set(contracts.ColumnForecast, forecast); err != nil {
		return nil, err
	}
	fc := contracts.NewForecast(f)
	fc.Quality = contracts.QualityNotRenewed
	return fc, nil
}

// extremeDayProfile returns time-of-day → load of the day holding the maximum load.
// The day of now is skipped unless it is the only day with data.
func extremeDayProfile(index []time.Time, load []float64, now time.Time) map[time.Duration]float64 {
	best := pickExtreme(index, load, now, true)
	if best < 0 {
		best = pickExtreme(index, load, now, false)
	}
	day := features.DayOf(index[best])

	profile := make(map[time.Duration]float64)
	for i, t := range index {
		if math.IsNaN(load[i]) || features.DayOf(t) != day {
			continue
		}
		profile[timeOfDay(t)] = load[i]
	}
	return profile
}

func pickExtreme(index []time.Time, load []float64, now time.Time, skipToday bool) int {
	var today features.Day
	if skipToday && !now.IsZero() {
		today = features.DayOf(now.In(index[0].Location()))
	}
	best := -1
	for i, v := range load {
		if math.IsNaN(v) {
			continue
		}
		if today != (features.Day{}) && features.DayOf(index[i]) == today {
			continue
		}
		if best < 0 || v > load[best] {
			best = i
		}
	}
	return best
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}
