package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/scheduler"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/stef scheduler start
  go run ./cmd/stef scheduler list
  go run ./cmd/stef scheduler run forecast`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- forecast: 15분마다 (FORECAST_CRON) 전체 작업 예측
- train_models: 매주 일요일 02:00 (TRAIN_CRON) 재학습

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(out, "=== stef Scheduler ===")

	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start()
	PrintSuccess("Scheduler started")
	printKeyValues(kv{"Jobs file", fmt.Sprintf("%s (%s)", a.cfg.JobsFile, jobsHash(a.jobs))})
	fmt.Fprintln(out)
	printSchedule(sched)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Fprintln(out, "\nShutting down scheduler...")
	sched.Stop()
	PrintSuccess("Scheduler stopped")
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	printSchedule(sched)

	fmt.Fprintln(out)
	pj := newTable("PID", "NAME", "MODEL", "FALLBACK")
	for _, job := range a.jobs {
		pj.add(strconv.FormatInt(job.ID, 10), job.Name, string(job.Model), string(job.FallbackStrategy.Resolve()))
	}
	pj.print()
	return nil
}

// printSchedule prints each scheduled job with its next start, "-" when not started
func printSchedule(sched *scheduler.Scheduler) {
	t := newTable("JOB", "SCHEDULE", "NEXT RUN")
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		next := "-"
		if at, ok := sched.NextRun(name); ok {
			next = at.Format(time.RFC3339)
		}
		t.add(name, stats[name].Schedule, next)
	}
	t.print()
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Fprintf(out, "Running job: %s\n", jobName)
	result, err := sched.RunJobSync(jobName)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintSuccess(fmt.Sprintf("Job %s completed in %s (%d attempts)", jobName, result.Duration, result.Attempts))
	return nil
}

// initScheduler registers the forecast and training jobs
func initScheduler(a *app) (*scheduler.Scheduler, error) {
	if err := a.requireDB(); err != nil {
		return nil, err
	}

	sc := a.cfg.Scheduler
	sched := scheduler.NewWithRetry(a.log, sc.MaxRetries, sc.RetryDelay)

	forecastJob := jobs.NewForecastJob(jobs.ForecastConfig{
		Schedule:    sc.ForecastSpec,
		Parallelism: sc.Parallelism,
		JobTimeout:  sc.JobTimeout,
		HistoryDays: sc.HistoryDays,
	}, a.jobs, a.measurements, a.pipeline(), a.forecasts, a.log)
	if err := sched.AddJob(forecastJob); err != nil {
		return nil, err
	}

	trainJob := jobs.NewTrainJob(sc.TrainSpec, sc.TrainHistoryDays, a.jobs, a.measurements, a.trainer(), a.log)
	if err := sched.AddJob(trainJob); err != nil {
		return nil, err
	}

	return sched, nil
}
