package logger_test

import (
	"errors"

	"github.com/lf-energy-projects-renovation-state/openstef/pkg/config"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/logger"
)

// Example_components demonstrates injecting component loggers
func Example_components() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)
	log.Info("Service started")

	// 내부 패키지에는 zerolog.Logger를 주입
	pipelineLog := log.WithJob(307).Component("pipeline")
	pipelineLog.Warn().Str("strategy", "extreme_day").Msg("using fallback forecast")

	log.WithError(errors.New("connection refused")).Error("registry load failed")
}
