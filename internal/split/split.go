package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

// =============================================================================
// Train / Validation / Test split
// =============================================================================

var (
	// ErrColumnOrder 컬럼 순서 위반 (치명적, 재시도 불가)
	// column 0 == "load", 마지막 컬럼 == "horizon" 이어야 학습 가능
	ErrColumnOrder = errors.New("column order in input data not as expected, could not train a model")

	// ErrEmptyData 분할할 데이터 없음
	ErrEmptyData = errors.New("no rows to split")
)

const (
	// 층화 추출을 위한 최소 일수
	minDaysForStratification = 4
	// 극단일 비율 (최대 피크 / 최소 저점 각각)
	extremeDayFraction = 0.15
)

// DataSplit 분할 결과 (네 개의 서로소 부분집합)
type DataSplit struct {
	Train            *frame.Frame
	Validation       *frame.Frame
	Test             *frame.Frame
	OperationalScore *frame.Frame
}

// Options 분할 옵션
type Options struct {
	TestFraction         float64
	ValidationFraction   float64
	StratificationMinMax bool
	BackTest             bool
	Seed                 int64
}

// DefaultOptions returns the split arguments used by the tuning objective.
func DefaultOptions() Options {
	return Options{
		TestFraction:         0.15,
		ValidationFraction:   0.15,
		StratificationMinMax: true,
		BackTest:             true,
	}
}

// Func splits a feature-augmented dataset.
type Func func(data *frame.Frame, opts Options) (*DataSplit, error)

// Validate checks the column contract on train, validation and test.
func (d *DataSplit) Validate() error {
	parts := []struct {
		name string
		f    *frame.Frame
	}{
		{"train", d.Train},
		{"validation", d.Validation},
		{"test", d.Test},
	}
	for _, p := range parts {
		if err := CheckColumnOrder(p.f); err != nil {
			return fmt.Errorf("%s data: %w", p.name, err)
		}
	}
	return nil
}

// CheckColumnOrder verifies column 0 is load and the final column is horizon.
func CheckColumnOrder(f *frame.Frame) error {
	if f == nil {
		return ErrColumnOrder
	}
	cols := f.Columns()
	if len(cols) < 2 || cols[0] != contracts.ColumnLoad || cols[len(cols)-1] != contracts.ColumnHorizon {
		return fmt.Errorf("%w (got %v)", ErrColumnOrder, cols)
	}
	return nil
}

// XY decomposes a split subset into features (columns 1..n-2) and target (column 0).
func XY(f *frame.Frame) (*frame.Frame, []float64) {
	n := len(f.Columns())
	return f.SliceColumns(1, n-1), f.ColumnAt(0)
}

// TrainValidationTest 일 단위 분할
// ⭐ SSOT: 결정적 (동일 입력 + Seed → 동일 결과)
func TrainValidationTest(data *frame.Frame, opts Options) (*DataSplit, error) {
	if data == nil || data.Len() == 0 {
		return nil, ErrEmptyData
	}

	days := uniqueDays(data.Index())
	nDays := len(days)

	// 1. 테스트 일수 (back test: 마지막 일자들)
	nTest := 0
	if opts.BackTest && nDays >= 3 {
		nTest = int(math.Ceil(opts.TestFraction * float64(nDays)))
		if nTest > nDays-2 {
			nTest = nDays - 2
		}
	}
	remaining := days[:nDays-nTest]
	testDays := toSet(days[nDays-nTest:])

	// 2. 검증 일수
	nVal := int(math.Round(opts.ValidationFraction * float64(nDays)))
	if nVal < 1 && len(remaining) >= 2 {
		nVal = 1
	}
	if nVal > len(remaining)-1 {
		nVal = len(remaining) - 1
	}
	if nVal < 0 {
		nVal = 0
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	var valDays map[string]struct{}
	if opts.StratificationMinMax && len(remaining) >= minDaysForStratification {
		valDays = stratifiedValidationDays(data, remaining, nVal, rng)
	} else {
		shuffled := append([]string(nil), remaining...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		valDays = toSet(shuffled[:nVal])
	}

	index := data.Index()
	train := data.Filter(func(i int) bool {
		d := dayKey(index[i])
		_, isTest := testDays[d]
		_, isVal := valDays[d]
		return !isTest && !isVal
	})
	validation := data.Filter(func(i int) bool {
		_, ok := valDays[dayKey(index[i])]
		return ok
	})
	test := data.Filter(func(i int) bool {
		_, ok := testDays[dayKey(index[i])]
		return ok
	})
	test, operational := operationalScoreData(test)

	return &DataSplit{
		Train:            train,
		Validation:       validation,
		Test:             test,
		OperationalScore: operational,
	}, nil
}

// stratifiedValidationDays 극단일(최대 피크/최소 저점)을 비율대로 검증셋에 배분
func stratifiedValidationDays(data *frame.Frame, candidates []string, nVal int, rng *rand.Rand) map[string]struct{} {
	peaks, troughs := dailyExtremes(data)

	nExtreme := int(math.Ceil(extremeDayFraction * float64(len(candidates))))

	byPeak := append([]string(nil), candidates...)
	sort.SliceStable(byPeak, func(i, j int) bool { return peaks[byPeak[i]] > peaks[byPeak[j]] })
	byTrough := append([]string(nil), candidates...)
	sort.SliceStable(byTrough, func(i, j int) bool { return troughs[byTrough[i]] < troughs[byTrough[j]] })

	extreme := toSet(byPeak[:nExtreme])
	for _, d := range byTrough[:nExtreme] {
		extreme[d] = struct{}{}
	}

	var ext, normal []string
	for _, d := range candidates {
		if _, ok := extreme[d]; ok {
			ext = append(ext, d)
		} else {
			normal = append(normal, d)
		}
	}
	rng.Shuffle(len(ext), func(i, j int) { ext[i], ext[j] = ext[j], ext[i] })
	rng.Shuffle(len(normal), func(i, j int) { normal[i], normal[j] = normal[j], normal[i] })

	ratio := float64(nVal) / float64(len(candidates))
	nValExt := int(math.Round(ratio * float64(len(ext))))
	if nValExt > nVal {
		nValExt = nVal
	}
	nValNormal := nVal - nValExt
	if nValNormal > len(normal) {
		nValExt += nValNormal - len(normal)
		nValNormal = len(normal)
	}

	val := toSet(ext[:nValExt])
	for _, d := range normal[:nValNormal] {
		val[d] = struct{}{}
	}
	return val
}

// dailyExtremes returns the per-day max and min of the load column.
func dailyExtremes(data *frame.Frame) (map[string]float64, map[string]float64) {
	load, ok := data.Column(contracts.ColumnLoad)
	if !ok {
		load = data.ColumnAt(0)
	}
	peaks := make(map[string]float64)
	troughs := make(map[string]float64)
	for i, t := range data.Index() {
		v := load[i]
		if math.IsNaN(v) {
			continue
		}
		d := dayKey(t)
		if p, seen := peaks[d]; !seen || v > p {
			peaks[d] = v
		}
		if tr, seen := troughs[d]; !seen || v < tr {
			troughs[d] = v
		}
	}
	return peaks, troughs
}

// operationalScoreData moves the test rows with the shortest horizon into their own
// subset. With a single horizon the test rows stay and the subset is empty.
func operationalScoreData(test *frame.Frame) (rest, operational *frame.Frame) {
	horizon, ok := test.Column(contracts.ColumnHorizon)
	if !ok || test.Len() == 0 {
		return test, test.Filter(func(int) bool { return false })
	}
	minH, maxH := math.Inf(1), math.Inf(-1)
	for _, h := range horizon {
		minH = math.Min(minH, h)
		maxH = math.Max(maxH, h)
	}
	if minH == maxH {
		return test, test.Filter(func(int) bool { return false })
	}
	rest = test.Filter(func(i int) bool { return horizon[i] != minH })
	operational = test.Filter(func(i int) bool { return horizon[i] == minH })
	return rest, operational
}

func uniqueDays(index []time.Time) []string {
	set := make(map[string]struct{})
	for _, t := range index {
		set[dayKey(t)] = struct{}{}
	}
	days := make([]string, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func toSet(days []string) map[string]struct{} {
	out := make(map[string]struct{}, len(days))
	for _, d := range days {
		out[d] = struct{}{}
	}
	return out
}
