package features

import (
	"sort"
	"time"
)

// Func 피처 함수: timestamp 인덱스만으로 값을 계산 (순수 함수)
type Func func(index []time.Time) []float64

// Functions 피처 이름 → 함수
type Functions map[string]Func

// Names returns the feature names in sorted order.
func (f Functions) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Merge returns a new set with other's functions added (other wins on conflicts).
func (f Functions) Merge(other Functions) Functions {
	out := make(Functions, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// DayMask returns a function that is 1 on the given days and 0 elsewhere.
// The day set is copied at construction time.
func DayMask(days ...Day) Func {
	set := make(map[Day]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	return func(index []time.Time) []float64 {
		out := make([]float64, len(index))
		for i, t := range index {
			if _, ok := set[DayOf(t)]; ok {
				out[i] = 1
			}
		}
		return out
	}
}

// Calendar feature names
const (
	FeatureHour    = "hour"
	FeatureWeekday = "weekday"
	FeatureMonth   = "month"
)

// CalendarFunctions returns hour-of-day, weekday (Monday = 0) and month features.
func CalendarFunctions() Functions {
	return Functions{
		FeatureHour: func(index []time.Time) []float64 {
			out := make([]float64, len(index))
			for i, t := range index {
				out[i] = float64(t.Hour()) + float64(t.Minute())/60
			}
			return out
		},
		FeatureWeekday: func(index []time.Time) []float64 {
			out := make([]float64, len(index))
			for i, t := range index {
				out[i] = float64((int(t.Weekday()) + 6) % 7)
			}
			return out
		},
		FeatureMonth: func(index []time.Time) []float64 {
			out := make([]float64, len(index))
			for i, t := range index {
				out[i] = float64(t.Month())
			}
			return out
		},
	}
}
