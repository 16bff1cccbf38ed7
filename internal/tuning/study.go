package tuning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/metrics"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/objective"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/registry"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/split"
)

// ErrNoCompletedTrials 모든 trial이 pruning 또는 실패
var ErrNoCompletedTrials = errors.New("no completed trials")

// Options 탐색 설정
type Options struct {
	Trials        int
	Parallelism   int
	Seed          int64
	StartupTrials int
	WarmupSteps   int
}

// DefaultOptions returns a small, sequential search.
func DefaultOptions() Options {
	return Options{
		Trials:        20,
		Parallelism:   1,
		Seed:          42,
		StartupTrials: 5,
		WarmupSteps:   10,
	}
}

// Result 탐색 결과
type Result struct {
	Best      objective.TrialResult
	Log       *objective.TrialLog
	Completed int
	Pruned    int
	Failed    int
	// RunID 레지스트리에 저장된 경우에만 설정
	RunID string
}

// Study 랜덤 탐색 + median pruning 드라이버
// objective 바깥에서 trial을 생성하고 결과를 모은다.
type Study struct {
	obj    *objective.Objective
	opts   Options
	pruner *MedianPruner
	log    zerolog.Logger
}

// NewStudy creates a study for an objective.
func NewStudy(obj *objective.Objective, opts Options, log zerolog.Logger) *Study {
	if opts.Trials < 1 {
		opts.Trials = 1
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Study{
		obj:    obj,
		opts:   opts,
		pruner: NewMedianPruner(opts.StartupTrials, opts.WarmupSteps),
		log:    log.With().Str("component", "tuning.study").Logger(),
	}
}

// Optimize runs all trials and returns the best completed one.
// A column-order violation aborts the whole study; other trial failures are counted.
func (s *Study) Optimize(ctx context.Context) (*Result, error) {
	result := &Result{Log: objective.NewTrialLog()}

	var (
		mu   sync.Mutex
		best *objective.TrialResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)

	for n := 0; n < s.opts.Trials; n++ {
		number := n
		g.Go(func() error {
			trial := newRandomTrial(number, s.opts.Seed, s.pruner)
			res, err := s.obj.Evaluate(gctx, trial, result.Log)

			switch {
			case errors.Is(err, split.ErrColumnOrder):
				metrics.ObserveTrial(metrics.TrialFailed)
				return err
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			case res.Pruned:
				metrics.ObserveTrial(metrics.TrialPruned)
				mu.Lock()
				result.Pruned++
				mu.Unlock()
				return nil
			case err != nil:
				metrics.ObserveTrial(metrics.TrialFailed)
				s.log.Warn().Err(err).Int("trial", number).Msg("trial failed")
				mu.Lock()
				result.Failed++
				mu.Unlock()
				return nil
			}

			metrics.ObserveTrial(metrics.TrialComplete)
			s.pruner.Complete(trial.intermediateValues())

			mu.Lock()
			defer mu.Unlock()
			result.Completed++
			if best == nil || res.Score < best.Score || (res.Score == best.Score && res.Number < best.Number) {
				r := res
				best = &r
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if best == nil {
		return nil, fmt.Errorf("%d trials (%d pruned, %d failed): %w",
			s.opts.Trials, result.Pruned, result.Failed, ErrNoCompletedTrials)
	}

	result.Best = *best
	s.log.Info().
		Int("best_trial", best.Number).
		Float64("best_score", best.Score).
		Int("completed", result.Completed).
		Int("pruned", result.Pruned).
		Int("failed", result.Failed).
		Msg("study finished")
	return result, nil
}

// SaveBest stores the best model in the registry under the job's experiment.
func (s *Study) SaveBest(ctx context.Context, reg registry.Registry, job contracts.PredictionJob, result *Result) (string, error) {
	if result == nil || result.Best.Model == nil {
		return "", ErrNoCompletedTrials
	}
	spec := Specification(job, result.Best.Model, result.Best.Params)
	runID, err := reg.Save(ctx, job.ExperimentName(), result.Best.Model, spec)
	if err != nil {
		return "", fmt.Errorf("save best trial %d: %w", result.Best.Number, err)
	}
	result.RunID = runID
	s.log.Info().Int64("pid", job.ID).Str("run_id", runID).Msg("best model saved")
	return runID, nil
}

// Specification builds the model specification stored alongside a tuned model.
func Specification(job contracts.PredictionJob, model *regressor.Model, params regressor.Params) contracts.ModelSpecification {
	hyper := make(map[string]any, len(params))
	for _, k := range params.Keys() {
		hyper[k] = params[k]
	}
	return contracts.ModelSpecification{
		ID:              strconv.FormatInt(job.ID, 10),
		FeatureNames:    model.FeatureNames(),
		Hyperparameters: hyper,
	}
}

// SortedScores returns the completed trial scores ordered by trial number.
func SortedScores(log *objective.TrialLog) []float64 {
	numbers := log.Numbers()
	sort.Ints(numbers)
	out := make([]float64, 0, len(numbers))
	for _, n := range numbers {
		rec, _ := log.Get(n)
		out = append(out, rec.Score)
	}
	return out
}
