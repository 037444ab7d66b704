package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cortex",
	Short: "Cortex - 판정 엔진 모델 수명주기 컨트롤 플레인",
	Long: `Cortex Lifecycle CLI

룰 기반 판정 엔진의 보정 분류기 수명주기를 관리합니다.
재학습 가드, 데이터셋 동결, 학습/평가, 승격/롤백, 섀도 모니터링.

Usage:
  go run ./cmd/cortex [command]

Examples:
  go run ./cmd/cortex api
  go run ./cmd/cortex scheduler start
  go run ./cmd/cortex retrain 7d
  go run ./cmd/cortex status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
