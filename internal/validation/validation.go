package validation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/features"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

// ErrOngoingFlatliner 최근 측정값 전체가 평탄 (센서/피드 장애), 학습/예측 불가
var ErrOngoingFlatliner = errors.New("all recent load measurements are constant")

const flatTolerance = 1e-6

// =============================================================================
// Validate & clean
// =============================================================================

// Options 입력 검증 설정 (PredictionJob에서 유도)
type Options struct {
	// FlatlinerThreshold 0이면 flatliner 검사 안함
	FlatlinerThreshold     time.Duration
	DetectNonZeroFlatliner bool
}

// OptionsFor derives the validation options of a job.
func OptionsFor(job contracts.PredictionJob) Options {
	return Options{
		FlatlinerThreshold:     time.Duration(job.FlatlinerThresholdMinutes) * time.Minute,
		DetectNonZeroFlatliner: job.DetectNonZeroFlatliner,
	}
}

// Period 평탄 구간 [Start, End]
type Period struct {
	Start time.Time
	End   time.Time
}

// Validator 입력 데이터 검증기
type Validator struct {
	log zerolog.Logger
}

// NewValidator creates a validator.
func NewValidator(log zerolog.Logger) *Validator {
	return &Validator{log: log.With().Str("component", "validation").Logger()}
}

// Validate returns a cleaned copy of data: flatliner periods in the load column are
// set to NaN. An ongoing flatliner fails with ErrOngoingFlatliner.
func (v *Validator) Validate(pid int64, data *frame.Frame, opts Options) (*frame.Frame, error) {
	out := data.Clone()
	if opts.FlatlinerThreshold <= 0 {
		return out, nil
	}
	load, ok := out.Column(contracts.ColumnLoad)
	if !ok {
		return nil, features.ErrNoLoadColumn
	}
	index := out.Index()

	if DetectOngoingFlatliner(index, load, opts.FlatlinerThreshold, opts.DetectNonZeroFlatliner) {
		v.log.Warn().
			Int64("pid", pid).
			Dur("threshold", opts.FlatlinerThreshold).
			Msg("ongoing flatliner detected")
		return nil, fmt.Errorf("pid %d: %w", pid, ErrOngoingFlatliner)
	}

	periods := FindFlatliners(index, load, opts.FlatlinerThreshold, opts.DetectNonZeroFlatliner)
	if len(periods) == 0 {
		return out, nil
	}

	cleaned := append([]float64(nil), load...)
	removed := 0
	for _, p := range periods {
		for i, t := range index {
			if !t.Before(p.Start) && !t.After(p.End) && !math.IsNaN(cleaned[i]) {
				cleaned[i] = math.NaN()
				removed++
			}
		}
	}
	if err := out.Set(contracts.ColumnLoad, cleaned); err != nil {
		return nil, err
	}

	v.log.Info().
		Int64("pid", pid).
		Int("periods", len(periods)).
		Int("removed", removed).
		Msg("flatliner periods removed from load")
	return out, nil
}

// DetectOngoingFlatliner reports whether every measurement in the last threshold
// window (ending at the latest measurement) is flat: zero, or constant when nonZero
// is set. The data must span at least the threshold.
func DetectOngoingFlatliner(index []time.Time, load []float64, threshold time.Duration, nonZero bool) bool {
	last := frame.LastValid(load)
	if last < 0 || threshold <= 0 {
		return false
	}
	latest := index[last]
	windowStart := latest.Add(-threshold)
	if index[0].After(windowStart) {
		return false
	}

	ref := 0.0
	if nonZero {
		ref = load[last]
	}
	for i := last; i >= 0 && !index[i].Before(windowStart); i-- {
		if math.IsNaN(load[i]) {
			continue
		}
		if math.Abs(load[i]-ref) > flatTolerance {
			return false
		}
	}
	return true
}

// FindFlatliners returns the runs of flat measurements lasting at least threshold.
// Without nonZero only runs of zeros count.
func FindFlatliners(index []time.Time, load []float64, threshold time.Duration, nonZero bool) []Period {
	var (
		out      []Period
		runStart = -1
		runEnd   = -1
		runValue float64
	)
	flush := func() {
		if runStart >= 0 && index[runEnd].Sub(index[runStart]) >= threshold {
			out = append(out, Period{Start: index[runStart], End: index[runEnd]})
		}
		runStart, runEnd = -1, -1
	}

	for i, v := range load {
		if math.IsNaN(v) {
			continue
		}
		flat := nonZero || math.Abs(v) <= flatTolerance
		switch {
		case !flat:
			flush()
		case runStart >= 0 && math.Abs(v-runValue) <= flatTolerance:
			runEnd = i
		default:
			flush()
			runStart, runEnd, runValue = i, i, v
		}
	}
	flush()
	return out
}

// =============================================================================
// Data sufficiency
// =============================================================================

// Sufficiency 데이터 충분성 검사 결과
type Sufficiency struct {
	Completeness float64
	Rows         int
	Sufficient   bool
}

// Completeness returns the importance-weighted share of available feature values.
//
// data is the feature frame including history. A lag feature T-<n> is only counted
// on rows whose lagged timestamp is at or before the last measured load: later
// values cannot be known yet. Columns without a weight get weight 1 when weights
// is empty and 0 otherwise. load and horizon are ignored.
func Completeness(data *frame.Frame, weights map[string]float64) float64 {
	if data == nil || data.Len() == 0 {
		return 0
	}
	index := data.Index()
	lastMeasured, measured := lastLoad(data)

	var sumW, sum float64
	for _, c := range data.Columns() {
		if c == contracts.ColumnLoad || c == contracts.ColumnHorizon {
			continue
		}
		w := 1.0
		if len(weights) > 0 {
			w = weights[c]
		}
		if w <= 0 {
			continue
		}

		values, _ := data.Column(c)
		lag, isLag := features.ParseLag(c)
		var known, valid int
		for i, v := range values {
			if isLag && measured && index[i].Add(-lag).After(lastMeasured) {
				continue
			}
			known++
			if !math.IsNaN(v) {
				valid++
			}
		}
		share := 1.0
		if known > 0 {
			share = float64(valid) / float64(known)
		}
		sum += w * share
		sumW += w
	}
	if sumW == 0 {
		return 1
	}
	return sum / sumW
}

// lastLoad returns the timestamp of the last measured load.
func lastLoad(data *frame.Frame) (time.Time, bool) {
	load, ok := data.Column(contracts.ColumnLoad)
	if !ok {
		return time.Time{}, false
	}
	index := data.Index()
	for i := len(load) - 1; i >= 0; i-- {
		if !math.IsNaN(load[i]) {
			return index[i], true
		}
	}
	return time.Time{}, false
}

// IsDataSufficient checks the completeness and length of the feature frame
// (history plus forecast window).
func IsDataSufficient(data *frame.Frame, completenessThreshold float64, minimalTableLength int,
	weights map[string]float64) Sufficiency {
	s := Sufficiency{
		Completeness: Completeness(data, weights),
		Rows:         data.Len(),
	}
	s.Sufficient = s.Rows >= minimalTableLength && s.Completeness >= completenessThreshold
	return s
}
