package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/measurements"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/registry"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "데이터베이스 관리",
	Long: `PostgreSQL 스키마 생성, 연결 확인, 측정값 적재.

Subcommands:
  migrate  - stef 스키마 (측정값, 예측, 모델 레지스트리) 생성
  check    - 연결 및 풀 통계 확인
  import   - CSV 측정값을 작업(pid)에 적재

Example:
  go run ./cmd/stef db migrate
  go run ./cmd/stef db import --pid 307 measurements.csv`,
}

var (
	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "스키마 생성",
		RunE:  runMigrate,
	}

	dbCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "연결 확인",
		RunE:  runDBCheck,
	}

	dbImportCmd = &cobra.Command{
		Use:   "import [csv]",
		Short: "측정값 적재",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
)

var importPID int64

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbCheckCmd)
	dbCmd.AddCommand(dbImportCmd)

	dbImportCmd.Flags().Int64Var(&importPID, "pid", 0, "prediction job id")
	_ = dbImportCmd.MarkFlagRequired("pid")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireDB(); err != nil {
		return err
	}

	if err := a.measurements.Migrate(ctx); err != nil {
		return err
	}
	if err := a.forecasts.Migrate(ctx); err != nil {
		return err
	}
	if err := registry.NewPostgres(a.db.Pool).Migrate(ctx); err != nil {
		return err
	}

	PrintSuccess("Schema stef is up to date")
	return nil
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireDB(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := a.db.HealthCheck(ctx)
	if err != nil {
		PrintError(fmt.Sprintf("Health check failed: %v", err))
		return err
	}

	PrintSuccess("Health Check Results:")
	printKeyValues(
		kv{"Healthy", fmt.Sprintf("%v", status.Healthy)},
		kv{"Response Time", status.ResponseTime.String()},
		kv{"Max Connections", fmt.Sprintf("%d", status.Stats.MaxConns)},
		kv{"Total Connections", fmt.Sprintf("%d", status.Stats.TotalConns)},
		kv{"Idle Connections", fmt.Sprintf("%d", status.Stats.IdleConns)},
		kv{"Acquire Count", fmt.Sprintf("%d", status.Stats.AcquireCount)},
	)

	if missing := status.Missing(); len(missing) > 0 {
		PrintInfo(fmt.Sprintf("Missing tables: %s (run `stef db migrate`)", strings.Join(missing, ", ")))
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireDB(); err != nil {
		return err
	}

	data, err := readFrameFile(args[0])
	if err != nil {
		return err
	}

	load, predictors := measurements.ImportFrame(data)
	if err := a.measurements.SaveLoad(ctx, importPID, load); err != nil {
		return err
	}
	if err := a.measurements.SavePredictors(ctx, importPID, predictors); err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("pid %d: %d load points, %d predictor points", importPID, len(load), len(predictors)))
	return nil
}
