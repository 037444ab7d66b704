package main

import (
	"os"

	"github.com/wonny/cortex/backend/cmd/cortex/commands"
)

// main is the entry point for the Cortex CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/cortex [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
