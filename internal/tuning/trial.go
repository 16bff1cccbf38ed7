package tuning

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/objective"
)

// RandomTrial 균등 랜덤 샘플링 trial
type RandomTrial struct {
	number int
	rng    *rand.Rand
	pruner *MedianPruner

	mu           sync.Mutex
	params       map[string]any
	intermediate map[int]float64
	lastStep     int
	attrs        map[string]any
}

var _ objective.Trial = (*RandomTrial)(nil)

func newRandomTrial(number int, seed int64, pruner *MedianPruner) *RandomTrial {
	return &RandomTrial{
		number:       number,
		rng:          rand.New(rand.NewSource(seed + int64(number))),
		pruner:       pruner,
		params:       make(map[string]any),
		intermediate: make(map[int]float64),
		lastStep:     -1,
		attrs:        make(map[string]any),
	}
}

// Number implements objective.Trial.
func (t *RandomTrial) Number() int { return t.number }

// SuggestFloat implements objective.Trial.
func (t *RandomTrial) SuggestFloat(name string, low, high float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.params[name].(float64); ok {
		return v
	}
	v := low + t.rng.Float64()*(high-low)
	t.params[name] = v
	return v
}

// SuggestLogFloat implements objective.Trial (log-uniform).
func (t *RandomTrial) SuggestLogFloat(name string, low, high float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.params[name].(float64); ok {
		return v
	}
	lo, hi := math.Log(low), math.Log(high)
	v := math.Exp(lo + t.rng.Float64()*(hi-lo))
	t.params[name] = v
	return v
}

// SuggestInt implements objective.Trial (inclusive bounds).
func (t *RandomTrial) SuggestInt(name string, low, high int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.params[name].(int); ok {
		return v
	}
	v := low + t.rng.Intn(high-low+1)
	t.params[name] = v
	return v
}

// SuggestCategorical implements objective.Trial.
func (t *RandomTrial) SuggestCategorical(name string, choices []string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.params[name].(string); ok {
		return v
	}
	v := choices[t.rng.Intn(len(choices))]
	t.params[name] = v
	return v
}

// Report implements objective.Trial.
func (t *RandomTrial) Report(value float64, step int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.intermediate[step] = value
	t.lastStep = step
}

// ShouldPrune implements objective.Trial.
func (t *RandomTrial) ShouldPrune() bool {
	t.mu.Lock()
	step := t.lastStep
	value, ok := t.intermediate[step]
	t.mu.Unlock()
	if !ok || t.pruner == nil {
		return false
	}
	return t.pruner.ShouldPrune(step, value)
}

// SetUserAttr implements objective.Trial.
func (t *RandomTrial) SetUserAttr(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attrs[key] = value
}

// UserAttr returns a user attribute set during evaluation.
func (t *RandomTrial) UserAttr(key string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.attrs[key]
	return v, ok
}

func (t *RandomTrial) intermediateValues() map[int]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int]float64, len(t.intermediate))
	for k, v := range t.intermediate {
		out[k] = v
	}
	return out
}

// MedianPruner 같은 step에서 완료된 trial들의 중앙값보다 나쁘면 중단
type MedianPruner struct {
	// StartupTrials 이 수만큼 trial이 완료되기 전에는 pruning 안함
	StartupTrials int
	// WarmupSteps 이 step 이전에는 pruning 안함
	WarmupSteps int

	mu        sync.Mutex
	completed int
	history   map[int][]float64
}

// NewMedianPruner creates a median pruner.
func NewMedianPruner(startupTrials, warmupSteps int) *MedianPruner {
	return &MedianPruner{
		StartupTrials: startupTrials,
		WarmupSteps:   warmupSteps,
		history:       make(map[int][]float64),
	}
}

// ShouldPrune reports whether value at step is worse than the median of completed trials.
func (p *MedianPruner) ShouldPrune(step int, value float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.completed < p.StartupTrials || step < p.WarmupSteps {
		return false
	}
	values := p.history[step]
	if len(values) == 0 {
		return false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var median float64
	if n := len(sorted); n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return value > median
}

// Complete adds the intermediate values of a finished trial.
func (p *MedianPruner) Complete(values map[int]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
	for step, v := range values {
		p.history[step] = append(p.history[step], v)
	}
}
