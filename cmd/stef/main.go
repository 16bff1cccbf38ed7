package main

import (
	"os"

	"github.com/lf-energy-projects-renovation-state/openstef/cmd/stef/commands"
)

// main is the entry point for the stef CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/stef [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
