package regressor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/scoring"
)

// boosterConfig 부스팅 루프 설정 (dialect별 파라미터에서 변환)
type boosterConfig struct {
	rounds        int
	grow          growConfig
	subsample     float64
	subsampleFreq int
	colsample     float64
	dart          bool
	dropRate      float64
	randomForest  bool
	seed          int64

	// 평가 결과 이름 (dialect 규칙)
	evalNames  []string
	metricName string
	metric     scoring.Func
}

// Booster 학습된 트리 앙상블
type Booster struct {
	Features      []string  `json:"features"`
	BaseScore     float64   `json:"base_score"`
	Trees         []*Tree   `json:"trees"`
	Weights       []float64 `json:"weights"`
	Average       bool      `json:"average,omitempty"`
	Gain          []float64 `json:"gain"`
	BestIteration int       `json:"best_iteration"`
}

// bestIterationTracker is implemented by callbacks that choose the iteration to keep.
type bestIterationTracker interface {
	BestIteration() (int, bool)
}

// evalState 평가셋별 예측 누적
type evalState struct {
	name  string
	cols  [][]float64
	y     []float64
	n     int
	pred  []float64
	parts [][]float64
}

// trainBooster runs the boosting loop. Rows with a NaN target are ignored.
func trainBooster(x *frame.Frame, y []float64, lf loss, cfg boosterConfig, opts FitOptions) (*Booster, error) {
	if x.Len() != len(y) {
		return nil, fmt.Errorf("x has %d rows, y has %d", x.Len(), len(y))
	}
	features := x.Columns()
	if len(features) == 0 {
		return nil, errors.New("no feature columns")
	}
	cols := make([][]float64, len(features))
	for i := range features {
		cols[i] = x.ColumnAt(i)
	}

	rows := make([]int, 0, len(y))
	target := make([]float64, 0, len(y))
	for i, v := range y {
		if !math.IsNaN(v) {
			rows = append(rows, i)
			target = append(target, v)
		}
	}
	if len(rows) == 0 {
		return nil, errors.New("no rows with a target value")
	}

	rng := rand.New(rand.NewSource(cfg.seed))
	b := &Booster{
		Features:  features,
		BaseScore: lf.baseScore(target),
		Gain:      make([]float64, len(features)),
	}
	b.Average = cfg.randomForest

	builder := &treeBuilder{
		cfg:    cfg.grow,
		cols:   cols,
		sorted: presort(cols),
		grad:   make([]float64, len(y)),
		hess:   make([]float64, len(y)),
		inNode: make([]int, len(y)),
		gain:   b.Gain,
	}
	if cfg.randomForest {
		builder.cfg.eta = 1
	}

	pred := constant(len(y), b.BaseScore)
	var parts [][]float64
	// dart: 이후 dropout이 이전 트리 가중치를 바꾸므로 반복마다 가중치 보관
	var weightHistory [][]float64

	evals := make([]*evalState, 0, len(opts.EvalSet))
	for i, es := range opts.EvalSet {
		ecols, err := featureColumns(es.X, features)
		if err != nil {
			return nil, fmt.Errorf("eval set %d: %w", i, err)
		}
		name := fmt.Sprintf("validation_%d", i)
		if i < len(cfg.evalNames) {
			name = cfg.evalNames[i]
		}
		evals = append(evals, &evalState{
			name: name,
			cols: ecols,
			y:    es.Y,
			n:    es.X.Len(),
			pred: constant(es.X.Len(), b.BaseScore),
		})
	}

	sample := rows
	for it := 0; it < cfg.rounds; it++ {
		// row bagging
		if cfg.subsample < 1 {
			freq := cfg.subsampleFreq
			if freq < 1 {
				freq = 1
			}
			if it%freq == 0 {
				sample = sampleRows(rows, cfg.subsample, rng)
			}
		}
		builder.features = sampleFeatures(len(features), cfg.colsample, rng)

		// dart dropout
		var dropped []int
		base := pred
		if cfg.dart && len(b.Trees) > 0 {
			for k := range b.Trees {
				if rng.Float64() < cfg.dropRate {
					dropped = append(dropped, k)
				}
			}
			if len(dropped) > 0 {
				base = append([]float64(nil), pred...)
				for _, k := range dropped {
					for i := range base {
						base[i] -= b.Weights[k] * parts[k][i]
					}
				}
			}
		}

		for _, r := range sample {
			at := base[r]
			if cfg.randomForest {
				at = b.BaseScore
			}
			builder.grad[r], builder.hess[r] = lf.gradHess(y[r], at)
		}
		tree := builder.build(sample)

		contrib := make([]float64, len(y))
		for i := range contrib {
			contrib[i] = tree.predictRow(cols, i)
		}

		weight := 1.0
		b.Trees = append(b.Trees, tree)

		switch {
		case cfg.randomForest:
			b.Weights = append(b.Weights, weight)
			parts = append(parts, contrib)
			pred = averaged(b.BaseScore, parts, len(y))
		case len(dropped) > 0:
			k := float64(len(dropped))
			weight = 1 / (k + 1)
			for _, d := range dropped {
				b.Weights[d] *= k / (k + 1)
			}
			b.Weights = append(b.Weights, weight)
			parts = append(parts, contrib)
			pred = weighted(b.BaseScore, b.Weights, parts, len(y))
		default:
			b.Weights = append(b.Weights, weight)
			if cfg.dart {
				parts = append(parts, contrib)
			}
			for i := range pred {
				pred[i] += contrib[i]
			}
		}
		if cfg.dart {
			weightHistory = append(weightHistory, append([]float64(nil), b.Weights...))
		}

		result := make(EvalResult, len(evals))
		for _, e := range evals {
			e.update(tree, b, cfg, len(dropped) > 0)
			result[e.name] = map[string]float64{cfg.metricName: cfg.metric(e.y, e.pred)}
		}

		stop := false
		for _, cb := range opts.Callbacks {
			if err := cb.AfterIteration(it, result); err != nil {
				if errors.Is(err, ErrStopTraining) {
					stop = true
					continue
				}
				return nil, err
			}
		}
		if stop {
			break
		}
	}

	b.BestIteration = len(b.Trees) - 1
	for _, cb := range opts.Callbacks {
		t, ok := cb.(bestIterationTracker)
		if !ok {
			continue
		}
		if best, ok := t.BestIteration(); ok && best < len(b.Trees) {
			b.Trees = b.Trees[:best+1]
			b.Weights = b.Weights[:best+1]
			if best < len(weightHistory) {
				b.Weights = weightHistory[best]
			}
			b.BestIteration = best
		}
	}
	return b, nil
}

// update adds the newest tree to the eval-set predictions.
func (e *evalState) update(tree *Tree, b *Booster, cfg boosterConfig, reweighted bool) {
	contrib := make([]float64, e.n)
	for i := range contrib {
		contrib[i] = tree.predictRow(e.cols, i)
	}
	switch {
	case cfg.randomForest:
		e.parts = append(e.parts, contrib)
		e.pred = averaged(b.BaseScore, e.parts, e.n)
	case cfg.dart:
		e.parts = append(e.parts, contrib)
		if reweighted {
			e.pred = weighted(b.BaseScore, b.Weights, e.parts, e.n)
			return
		}
		for i := range e.pred {
			e.pred[i] += contrib[i]
		}
	default:
		for i := range e.pred {
			e.pred[i] += contrib[i]
		}
	}
}

// Predict evaluates the ensemble on x.
func (b *Booster) Predict(x *frame.Frame) ([]float64, error) {
	if b == nil || len(b.Trees) == 0 {
		return nil, ErrNotFitted
	}
	cols, err := featureColumns(x, b.Features)
	if err != nil {
		return nil, err
	}
	out := make([]float64, x.Len())
	for i := range out {
		var sum float64
		for k, t := range b.Trees {
			sum += b.Weights[k] * t.predictRow(cols, i)
		}
		if b.Average {
			sum /= float64(len(b.Trees))
		}
		out[i] = b.BaseScore + sum
	}
	return out, nil
}

// Importance returns total split gain per feature, normalised to sum 1.
func (b *Booster) Importance() map[string]float64 {
	if b == nil {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(b.Features))
	var total float64
	for _, g := range b.Gain {
		total += g
	}
	for i, f := range b.Features {
		if total > 0 {
			out[f] = b.Gain[i] / total
		} else {
			out[f] = 0
		}
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func weighted(base float64, weights []float64, parts [][]float64, n int) []float64 {
	out := constant(n, base)
	for k, p := range parts {
		for i := range out {
			out[i] += weights[k] * p[i]
		}
	}
	return out
}

func averaged(base float64, parts [][]float64, n int) []float64 {
	out := make([]float64, n)
	for _, p := range parts {
		for i := range out {
			out[i] += p[i]
		}
	}
	for i := range out {
		out[i] = base + out[i]/float64(len(parts))
	}
	return out
}

func sampleRows(rows []int, fraction float64, rng *rand.Rand) []int {
	n := int(math.Max(1, math.Round(fraction*float64(len(rows)))))
	perm := rng.Perm(len(rows))[:n]
	out := make([]int, n)
	for i, p := range perm {
		out[i] = rows[p]
	}
	return out
}

func sampleFeatures(n int, fraction float64, rng *rand.Rand) []int {
	if fraction >= 1 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	k := int(math.Max(1, math.Round(fraction*float64(n))))
	return rng.Perm(n)[:k]
}
