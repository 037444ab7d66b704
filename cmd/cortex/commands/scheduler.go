package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/cortex/backend/internal/scheduler"
	"github.com/wonny/cortex/backend/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `수명주기 스케줄러를 시작하거나 작업을 관리합니다.

등록되는 작업:
- retrain_pipeline:    매일 03:00 (가드 → 동결 → 학습 → 평가)
- shadow_monitor:      매시간 (ACTIVE 모델 건강 체크)
- dataset_maintenance: 매일 04:30 (데이터셋 보존 기간 정리)

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/cortex scheduler start
  go run ./cmd/cortex scheduler run retrain_pipeline`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJobOnce,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// buildScheduler wires the scheduler with every lifecycle job
func buildScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log)

	jobList := []scheduler.Job{
		jobs.NewRetrainJob(a.pipeline, a.log),
		jobs.NewMonitorJob(a.monitor, a.log),
		jobs.NewMaintenanceJob(a.datasetRepo, a.recorder, &a.cfg.Lifecycle, a.log),
	}
	for _, job := range jobList {
		if err := sched.AddJob(job); err != nil {
			return nil, fmt.Errorf("add job %s: %w", job.Name(), err)
		}
	}

	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Cortex Scheduler ===")

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := buildScheduler(a)
	if err != nil {
		return err
	}

	sched.Start()

	if a.cfg.MetricsEnabled {
		go serveMetrics(a.cfg.MetricsPort)
	}

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := buildScheduler(a)
	if err != nil {
		return err
	}

	fmt.Println("Registered jobs:")
	for name, stat := range sched.GetJobStats() {
		fmt.Printf("  %-22s %s\n", name, stat.Schedule)
	}
	return nil
}

func runJobOnce(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	jobList := []scheduler.Job{
		jobs.NewRetrainJob(a.pipeline, a.log),
		jobs.NewMonitorJob(a.monitor, a.log),
		jobs.NewMaintenanceJob(a.datasetRepo, a.recorder, &a.cfg.Lifecycle, a.log),
	}

	jobName := args[0]
	for _, job := range jobList {
		if job.Name() != jobName {
			continue
		}

		fmt.Printf("Running job %s...\n", jobName)
		if err := job.Run(cmd.Context()); err != nil {
			return fmt.Errorf("job %s failed: %w", jobName, err)
		}
		fmt.Println("✅ Job completed")
		return nil
	}

	return fmt.Errorf("job %s not found", jobName)
}
