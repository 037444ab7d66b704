package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/cortex/backend/internal/contracts"
)

// retrainCmd represents the retrain command
var retrainCmd = &cobra.Command{
	Use:   "retrain [horizon]",
	Short: "수동 재학습 실행",
	Long: `한 horizon에 대해 재학습 파이프라인을 동기적으로 실행합니다.

가드 체인 → 데이터셋 동결 → 학습 → 평가 → 판정 적용 순서.
가드가 차단하면 사유와 함께 종료합니다 (에러 아님).

Example:
  go run ./cmd/cortex retrain 7d
  go run ./cmd/cortex retrain 30d`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrain,
}

func init() {
	rootCmd.AddCommand(retrainCmd)
}

func runRetrain(cmd *cobra.Command, args []string) error {
	horizon, err := contracts.ParseHorizon(args[0])
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("=== Retrain %s ===\n\n", horizon)

	result, err := a.pipeline.Run(cmd.Context(), horizon)
	if err != nil {
		printJSON(result)
		return fmt.Errorf("retrain failed at stage %s: %w", result.Stage, err)
	}

	printJSON(result)

	if result.Blocked() {
		fmt.Println("\n⛔ Blocked by guard chain")
		return nil
	}

	fmt.Printf("\n✅ Finished with decision %s\n", result.Decision)
	return nil
}

// printJSON pretty-prints any result to stdout
func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(data))
}
