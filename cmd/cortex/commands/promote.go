package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/cortex/backend/internal/contracts"
)

// promoteCmd represents the promote command
var promoteCmd = &cobra.Command{
	Use:   "promote [model_id]",
	Short: "승인된 후보 모델 승격",
	Long: `APPROVED 상태의 모델을 해당 horizon의 ACTIVE로 승격합니다.

--force는 킬스위치/드리프트/쿨다운/월간 한도를 건너뜁니다.
차단 사유는 그대로 출력됩니다.

Example:
  go run ./cmd/cortex promote mv_7d_a1b2c3d4 --horizon 7d
  go run ./cmd/cortex promote mv_7d_a1b2c3d4 --horizon 7d --force`,
	Args: cobra.ExactArgs(1),
	RunE: runPromote,
}

var (
	promoteHorizon string
	promoteForce   bool
)

func init() {
	rootCmd.AddCommand(promoteCmd)

	promoteCmd.Flags().StringVar(&promoteHorizon, "horizon", "", "대상 horizon (7d|30d)")
	promoteCmd.Flags().BoolVar(&promoteForce, "force", false, "안전 점검 생략 (수동 오버라이드)")
	_ = promoteCmd.MarkFlagRequired("horizon")
}

func runPromote(cmd *cobra.Command, args []string) error {
	horizon, err := contracts.ParseHorizon(promoteHorizon)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.promoter.Promote(cmd.Context(), args[0], horizon, "cli", promoteForce)
	printJSON(result)

	if result.Decision != "PROMOTED" {
		fmt.Println("\n⛔ Promotion blocked")
		return nil
	}

	fmt.Println("\n✅ Model promoted")
	return nil
}

// rollbackCmd represents the rollback command
var rollbackCmd = &cobra.Command{
	Use:   "rollback [horizon]",
	Short: "이전 모델로 롤백",
	Long: `ACTIVE 모델을 내리고 직전 모델을 되살립니다.

멱등 연산: 롤백 대상이 없으면 no-op으로 종료합니다.

Example:
  go run ./cmd/cortex rollback 7d --reason "precision collapsed"`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

var rollbackReason string

func init() {
	rootCmd.AddCommand(rollbackCmd)

	rollbackCmd.Flags().StringVar(&rollbackReason, "reason", "", "롤백 사유")
	_ = rollbackCmd.MarkFlagRequired("reason")
}

func runRollback(cmd *cobra.Command, args []string) error {
	horizon, err := contracts.ParseHorizon(args[0])
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.promoter.Rollback(cmd.Context(), horizon, rollbackReason, "cli")
	printJSON(result)

	if !result.Success {
		fmt.Printf("\n⛔ Rollback not performed: %s\n", result.Reason)
		return nil
	}

	fmt.Println("\n✅ Rolled back")
	return nil
}
