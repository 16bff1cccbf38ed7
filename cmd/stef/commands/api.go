package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/api"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/api/handlers"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                         - Health check
  GET  /metrics                        - Prometheus metrics
  GET  /api/jobs                       - 예측 작업 목록
  GET  /api/jobs/{pid}                 - 예측 작업 조회
  GET  /api/forecast/{pid}             - 저장된 예측 조회 (?from=&to=)
  POST /api/forecast/{pid}             - 예측 생성 (작업당 분당 6회)
  GET  /api/scheduler/jobs             - 스케줄 작업 통계 (--with-scheduler)
  POST /api/scheduler/jobs/{name}/run  - 스케줄 작업 즉시 실행 (--with-scheduler)

Example:
  go run ./cmd/stef api
  go run ./cmd/stef api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본 PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "스케줄러를 같은 프로세스에서 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== stef API Server ===")

	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireDB(); err != nil {
		return err
	}

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	forecastHandler := handlers.NewForecastHandler(
		a.jobs,
		a.measurements,
		a.pipeline(),
		a.forecasts,
		redis.NewRateLimiter(a.redis, "stef"),
		a.cfg.Scheduler.HistoryDays,
		a.log,
	)

	var schedulerHandler *handlers.SchedulerHandler
	if apiWithScheduler {
		sched, err := initScheduler(a)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		schedulerHandler = handlers.NewSchedulerHandler(sched, a.log)
	}

	router := api.NewRouter(forecastHandler, schedulerHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	// Ctrl+C / SIGTERM 에서 graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	return server.ListenAndRun(ctx)
}
