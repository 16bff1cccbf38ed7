package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	jobsFile string
	verbose  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stef",
	Short: "Short-term energy forecasting",
	Long: `stef - 단기 전력 부하 예측 CLI

예측 작업(prediction job)별로 모델을 학습하고
15분 단위 부하 예측과 분위수를 생성합니다.

Usage:
  go run ./cmd/stef [command]

Examples:
  go run ./cmd/stef forecast --pid 307
  go run ./cmd/stef tune --pid 307 --input history.csv
  go run ./cmd/stef scheduler start
  go run ./cmd/stef api --with-scheduler
  go run ./cmd/stef holidays configs/holidays_nl.csv`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&jobsFile, "jobs", "", "prediction jobs YAML (default JOBS_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
