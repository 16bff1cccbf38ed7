package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/measurements"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/tuning"
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "하이퍼파라미터 탐색 및 모델 학습",
	Long: `작업의 모델 패밀리에 대해 랜덤 탐색 + median pruning 으로
하이퍼파라미터를 찾고 최적 모델을 레지스트리에 저장합니다.

--input 이 없으면 DB에서 TRAIN_HISTORY_DAYS 만큼의 이력을 읽습니다.

Example:
  go run ./cmd/stef tune --pid 307
  go run ./cmd/stef tune --pid 307 --input history.csv --trials 50`,
	RunE: runTune,
}

var (
	tunePID    int64
	tuneInput  string
	tuneTrials int
)

func init() {
	rootCmd.AddCommand(tuneCmd)

	tuneCmd.Flags().Int64Var(&tunePID, "pid", 0, "prediction job id")
	tuneCmd.Flags().StringVar(&tuneInput, "input", "", "학습 이력 CSV")
	tuneCmd.Flags().IntVar(&tuneTrials, "trials", 0, "trial 수 (기본 TUNING_TRIALS)")
	_ = tuneCmd.MarkFlagRequired("pid")
}

func runTune(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if tuneTrials > 0 {
		a.cfg.Tuning.Trials = tuneTrials
	}

	selected, err := a.selectJobs([]int64{tunePID})
	if err != nil {
		return err
	}
	job := selected[0]

	var result *tuning.Result
	start := time.Now()

	if tuneInput != "" {
		history, err := readFrameFile(tuneInput)
		if err != nil {
			return err
		}
		result, err = a.trainer().Train(ctx, job, history)
		if err != nil {
			return err
		}
	} else {
		if err := a.requireDB(); err != nil {
			return err
		}
		w := measurements.InputWindow(job, time.Now(), a.cfg.Scheduler.TrainHistoryDays)
		w.To = time.Now().Truncate(w.Resolution)
		history, err := a.measurements.Input(ctx, job.ID, w)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		result, err = a.trainer().Train(ctx, job, history)
		if err != nil {
			return err
		}
	}

	PrintDoubleSeparator()
	fmt.Printf("  Tuning pid %d (%s)\n", job.ID, job.Model)
	PrintSeparator()
	printKeyValues(
		kv{"Completed", fmt.Sprintf("%d", result.Completed)},
		kv{"Pruned", fmt.Sprintf("%d", result.Pruned)},
		kv{"Failed", fmt.Sprintf("%d", result.Failed)},
		kv{"Best", fmt.Sprintf("trial #%d score %.4f", result.Best.Number, result.Best.Score)},
		kv{"Run ID", result.RunID},
		kv{"Duration", time.Since(start).Round(time.Millisecond).String()},
	)
	PrintSeparator()
	PrintSuccess("Model saved to registry")
	return nil
}
