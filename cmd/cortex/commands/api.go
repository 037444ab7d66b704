package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/cortex/backend/internal/api"
	"github.com/wonny/cortex/backend/internal/api/handlers"
	"github.com/wonny/cortex/backend/pkg/metrics"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `수명주기 REST API 서버를 시작합니다.

Endpoints:
  GET  /health                    - Health check
  GET  /api/v1/status/{horizon}   - 가드/포인터/섀도 상태
  POST /api/v1/retrain/{horizon}  - 수동 재학습
  POST /api/v1/blend              - 신뢰도 블렌딩 (추론 경로)
  POST /api/v1/promote            - 후보 모델 승격
  POST /api/v1/rollback           - 이전 모델로 롤백
  GET  /api/v1/killswitch         - 킬스위치 상태
  POST /api/v1/killswitch         - 킬스위치 토글
  GET  /api/v1/audit/{horizon}    - 감사 로그 조회

Example:
  go run ./cmd/cortex api
  go run ./cmd/cortex api --port 8099`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT env)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Cortex API Server ===")

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	lifecycleHandler := handlers.NewLifecycleHandler(a.guard, a.pipeline, a.pointerRepo, a.shadowRepo, a.log)
	adminHandler := handlers.NewAdminHandler(a.promoter, a.killSwitch, a.auditRepo, a.log)
	blendHandler := handlers.NewBlendHandler(a.blendSvc, a.log)

	router := api.NewRouter(lifecycleHandler, adminHandler, blendHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	if a.cfg.MetricsEnabled {
		go serveMetrics(a.cfg.MetricsPort)
	}

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}

// serveMetrics exposes Prometheus metrics on a dedicated port
func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	_ = http.ListenAndServe(":"+port, mux)
}
