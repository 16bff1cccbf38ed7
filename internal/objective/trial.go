package objective

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
)

// Trial 탐색 드라이버가 제공하는 trial 컨텍스트
// 탐색 알고리즘 자체는 드라이버 책임 (objective는 평가만 수행)
type Trial interface {
	Number() int
	SuggestFloat(name string, low, high float64) float64
	SuggestLogFloat(name string, low, high float64) float64
	SuggestInt(name string, low, high int) int
	SuggestCategorical(name string, choices []string) string
	// Report records an intermediate value at a training step.
	Report(value float64, step int)
	ShouldPrune() bool
	SetUserAttr(key string, value any)
}

// TrialResult 평가 결과 (trial이 소유하는 불변 스냅샷)
type TrialResult struct {
	Number int
	Params regressor.Params
	Score  float64
	Model  *regressor.Model
	Pruned bool
}

// TrialRecord 로그에 기록되는 값
type TrialRecord struct {
	Score  float64          `json:"score"`
	Params regressor.Params `json:"params"`
}

// TrialKey returns the log key of a trial.
func TrialKey(number int) string {
	return fmt.Sprintf(" trial: %d", number)
}

// TrialLog append-only trial 기록 (호출자 소유)
// ⭐ SSOT: 동일 trial 번호는 한 번만 기록 (single writer per key)
type TrialLog struct {
	mu      sync.Mutex
	records map[int]TrialRecord
}

// NewTrialLog creates an empty log.
func NewTrialLog() *TrialLog {
	return &TrialLog{records: make(map[int]TrialRecord)}
}

// Append records a finished trial. A second write for the same number fails.
func (l *TrialLog) Append(number int, rec TrialRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.records[number]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateTrial, number)
	}
	rec.Params = rec.Params.Clone()
	l.records[number] = rec
	return nil
}

// Get returns the record of one trial.
func (l *TrialLog) Get(number int) (TrialRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[number]
	return rec, ok
}

// Len returns the number of recorded trials.
func (l *TrialLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Numbers returns the recorded trial numbers in ascending order.
func (l *TrialLog) Numbers() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int, 0, len(l.records))
	for n := range l.records {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Best returns the trial with the lowest score.
func (l *TrialLog) Best() (int, TrialRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	best, found := 0, false
	var rec TrialRecord
	for n, r := range l.records {
		if !found || r.Score < rec.Score || (r.Score == rec.Score && n < best) {
			best, rec, found = n, r, true
		}
	}
	return best, rec, found
}

// MarshalJSON encodes the log as {" trial: N": {score, params}}.
func (l *TrialLog) MarshalJSON() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]TrialRecord, len(l.records))
	for n, r := range l.records {
		out[TrialKey(n)] = r
	}
	return json.Marshal(out)
}
