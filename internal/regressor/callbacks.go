package regressor

import (
	"fmt"
	"math"
)

// EarlyStopping 검증 지표가 Rounds 동안 개선되지 않으면 학습 중단
type EarlyStopping struct {
	Rounds   int
	Metric   string
	DataName string
	// SaveBest 학습 종료 후 best iteration 까지만 유지
	SaveBest bool

	best      float64
	bestIter  int
	seen      bool
	sinceBest int
}

// NewEarlyStopping creates an early-stopping callback.
func NewEarlyStopping(rounds int, metric, dataName string, saveBest bool) *EarlyStopping {
	return &EarlyStopping{Rounds: rounds, Metric: metric, DataName: dataName, SaveBest: saveBest}
}

// AfterIteration implements Callback.
func (e *EarlyStopping) AfterIteration(iteration int, evals EvalResult) error {
	metrics, ok := evals[e.DataName]
	if !ok {
		return fmt.Errorf("early stopping: no evaluation results for %q", e.DataName)
	}
	v, ok := metrics[e.Metric]
	if !ok {
		return fmt.Errorf("early stopping: metric %q not reported for %q", e.Metric, e.DataName)
	}
	if math.IsNaN(v) {
		e.sinceBest++
	} else if !e.seen || v < e.best {
		e.best = v
		e.bestIter = iteration
		e.seen = true
		e.sinceBest = 0
		return nil
	} else {
		e.sinceBest++
	}
	if e.Rounds > 0 && e.sinceBest >= e.Rounds {
		return ErrStopTraining
	}
	return nil
}

// BestIteration returns the best iteration when SaveBest is set.
func (e *EarlyStopping) BestIteration() (int, bool) {
	if !e.SaveBest || !e.seen {
		return 0, false
	}
	return e.bestIter, true
}

// BestScore returns the best observed metric value.
func (e *EarlyStopping) BestScore() (float64, bool) {
	return e.best, e.seen
}
