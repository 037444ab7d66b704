package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/cortex/backend/internal/contracts"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "전체 horizon 상태 조회",
	Long: `모든 horizon의 서빙 포인터, 건강 상태, 재학습 가드 상태를 출력합니다.

Example:
  go run ./cmd/cortex status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	fmt.Println("=== Cortex Status ===")
	fmt.Printf("\nKill switch: %v\n", a.killSwitch.Enabled(ctx))

	for _, horizon := range contracts.AllHorizons() {
		fmt.Printf("\n--- %s ---\n", horizon)

		pointer, err := a.pointerRepo.Get(ctx, horizon)
		if err != nil {
			fmt.Printf("  pointer: error (%v)\n", err)
			continue
		}

		if pointer.HasActive() {
			fmt.Printf("  active model:  %s (health %s, rollbacks %d)\n",
				pointer.ActiveModelID, pointer.HealthStatus, pointer.RollbackCount)
			if pointer.HasPrevious() {
				fmt.Printf("  previous:      %s\n", pointer.PreviousModelID)
			}
		} else {
			fmt.Println("  active model:  none (rules only)")
		}

		snapshot := a.guard.CanRetrain(ctx, horizon)
		if snapshot.OverallPass {
			fmt.Println("  retrain guard: PASS")
		} else {
			fmt.Println("  retrain guard: BLOCKED")
			for _, reason := range snapshot.BlockReasons {
				fmt.Printf("    - %s\n", reason)
			}
		}
	}

	return nil
}

// killswitchCmd represents the killswitch command
var killswitchCmd = &cobra.Command{
	Use:   "killswitch [on|off]",
	Short: "킬스위치 토글",
	Long: `모든 horizon의 ML 개입을 한 번에 차단(on)하거나 해제(off)합니다.

켜져 있는 동안: 재학습 차단, 승격 차단, 블렌더는 룰 신뢰도 그대로 통과.

Example:
  go run ./cmd/cortex killswitch on --reason "incident #241"
  go run ./cmd/cortex killswitch off --reason "incident resolved"`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runKillSwitch,
}

var killswitchReason string

func init() {
	rootCmd.AddCommand(killswitchCmd)

	killswitchCmd.Flags().StringVar(&killswitchReason, "reason", "", "전환 사유")
	_ = killswitchCmd.MarkFlagRequired("reason")
}

func runKillSwitch(cmd *cobra.Command, args []string) error {
	var enabled bool
	switch args[0] {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return fmt.Errorf("argument must be on or off, got %q", args[0])
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.killSwitch.Set(cmd.Context(), enabled, "cli", killswitchReason); err != nil {
		return fmt.Errorf("set kill switch: %w", err)
	}

	fmt.Printf("✅ Kill switch %s\n", args[0])
	return nil
}
