package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/jobs"
	schedjobs "github.com/lf-energy-projects-renovation-state/openstef/internal/scheduler/jobs"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "예측 생성",
	Long: `예측 작업별로 모델을 로드하여 예측을 생성합니다.

--input 이 없으면 DB에서 입력을 읽고 결과를 DB에 저장합니다.
--input 이 있으면 CSV 입력 하나로 예측하여 CSV로 출력합니다.

CSV 형식: 첫 컬럼 RFC3339 시각, 이후 load 및 예측 변수 컬럼

Example:
  go run ./cmd/stef forecast
  go run ./cmd/stef forecast --pid 307 --pid 308
  go run ./cmd/stef forecast --pid 307 --input input.csv --output forecast.csv`,
	RunE: runForecast,
}

var (
	forecastPIDs   []int64
	forecastInput  string
	forecastOutput string
)

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().Int64SliceVar(&forecastPIDs, "pid", nil, "prediction job id (반복 가능, 기본 전체)")
	forecastCmd.Flags().StringVar(&forecastInput, "input", "", "입력 CSV (단일 pid)")
	forecastCmd.Flags().StringVar(&forecastOutput, "output", "", "출력 CSV (기본 stdout)")
}

func runForecast(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	selected, err := a.selectJobs(forecastPIDs)
	if err != nil {
		return err
	}

	if forecastInput != "" {
		if len(forecastPIDs) != 1 {
			return fmt.Errorf("--input requires exactly one --pid")
		}
		return forecastFromFile(ctx, a, selected[0])
	}

	if err := a.requireDB(); err != nil {
		return err
	}

	start := time.Now()
	job := schedjobs.NewForecastJob(schedjobs.ForecastConfig{
		Parallelism: a.cfg.Scheduler.Parallelism,
		JobTimeout:  a.cfg.Scheduler.JobTimeout,
		HistoryDays: a.cfg.Scheduler.HistoryDays,
	}, selected, a.measurements, a.pipeline(), a.forecasts, a.log)

	runErr := job.Run(ctx)

	PrintDoubleSeparator()
	printKeyValues(
		kv{"Jobs", fmt.Sprintf("%d", len(selected))},
		kv{"Duration", time.Since(start).Round(time.Millisecond).String()},
	)
	PrintSeparator()
	if runErr != nil {
		PrintError(runErr.Error())
		return runErr
	}
	PrintSuccess("Forecasts stored")
	return nil
}

func forecastFromFile(ctx context.Context, a *app, job contracts.PredictionJob) error {
	input, err := readFrameFile(forecastInput)
	if err != nil {
		return err
	}

	fc, err := a.pipeline().Create(ctx, job, input)
	if err != nil {
		return err
	}

	if forecastOutput != "" {
		PrintInfo(fmt.Sprintf("pid %d: %d rows, quality %s, algtype %s", fc.PID, fc.Len(), fc.Quality, fc.AlgType))
	}
	return writeFrameFile(forecastOutput, fc.Frame)
}

// jobsHash short fingerprint of the jobs file (변경 감지용)
func jobsHash(list []contracts.PredictionJob) string {
	h, err := jobs.Hash(list)
	if err != nil {
		return "unknown"
	}
	return h[:12]
}
