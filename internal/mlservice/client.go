package mlservice

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/cortex/backend/internal/contracts"
	"github.com/wonny/cortex/backend/pkg/config"
	"github.com/wonny/cortex/backend/pkg/httputil"
	"github.com/wonny/cortex/backend/pkg/logger"
	"github.com/wonny/cortex/backend/pkg/metrics"
	"github.com/wonny/cortex/backend/pkg/redis"
)

// =============================================================================
// Compute Service Client
// =============================================================================

// Client talks to the external model compute service
// ⭐ SSOT: /train /evaluate /predict 호출은 이 클라이언트에서만
//
// 세 엔드포인트는 타임아웃 성격이 전혀 다름:
//   - train:    분 단위, 재시도 없음 (재시도 정책은 스케줄러 소관)
//   - evaluate: 수십 초, 재시도 없음
//   - predict:  한 자리 초, 실패 시 호출자가 pSuccess=null로 강등
type Client struct {
	trainClient    *httputil.Client
	evaluateClient *httputil.Client
	predictClient  *httputil.Client
	predictLimiter *rate.Limiter
	baseURL        string
	logger         *logger.Logger
	metrics        *metrics.Recorder
}

// NewClient creates a compute service client from config
func NewClient(cfg *config.Config, log *logger.Logger, rec *metrics.Recorder) *Client {
	return &Client{
		trainClient:    httputil.NewWithTimeout(cfg, log, cfg.Compute.TrainTimeout).DisableRetry(),
		evaluateClient: httputil.NewWithTimeout(cfg, log, cfg.Compute.EvaluateTimeout).DisableRetry(),
		predictClient:  httputil.NewWithTimeout(cfg, log, cfg.Compute.PredictTimeout).DisableRetry(),
		predictLimiter: rate.NewLimiter(rate.Limit(cfg.Compute.PredictRPS), cfg.Compute.PredictRPS),
		baseURL:        cfg.Compute.BaseURL,
		logger:         log,
		metrics:        rec,
	}
}

// WithRateLimiter applies distributed rate limits to the train/evaluate paths.
// 수동 트리거와 스케줄 트리거가 겹쳐도 compute 서비스가 과부하되지 않도록 Redis 기준으로 제한
func (c *Client) WithRateLimiter(limiter *redis.RateLimiter) *Client {
	c.trainClient.WithRateLimiter(limiter, redis.ComputeTrainRateLimit)
	c.evaluateClient.WithRateLimiter(limiter, redis.ComputeEvaluateRateLimit)
	return c
}

// Train performs one synchronous training call
func (c *Client) Train(ctx context.Context, req contracts.TrainRequest) (*contracts.TrainResponse, error) {
	start := time.Now()

	resp, err := c.trainClient.PostJSON(ctx, c.baseURL+"/train", req)
	if err != nil {
		return nil, fmt.Errorf("train call failed: %w", err)
	}

	var result contracts.TrainResponse
	if err := httputil.DecodeJSON(resp, &result); err != nil {
		return nil, fmt.Errorf("train response invalid: %w", err)
	}

	c.observe("train", start)

	if result.ArtifactPath == "" {
		return nil, fmt.Errorf("train response missing artifact_path")
	}

	return &result, nil
}

// Evaluate scores a trained artifact on an eval split
func (c *Client) Evaluate(ctx context.Context, req contracts.EvaluateRequest) (*contracts.EvaluateResponse, error) {
	start := time.Now()

	resp, err := c.evaluateClient.PostJSON(ctx, c.baseURL+"/evaluate", req)
	if err != nil {
		return nil, fmt.Errorf("evaluate call failed: %w", err)
	}

	var result contracts.EvaluateResponse
	if err := httputil.DecodeJSON(resp, &result); err != nil {
		return nil, fmt.Errorf("evaluate response invalid: %w", err)
	}

	c.observe("evaluate", start)
	return &result, nil
}

// Predict returns p_success for feature rows. 추론 경로라 rate limit을 먼저 통과
func (c *Client) Predict(ctx context.Context, req contracts.PredictRequest) (*contracts.PredictResponse, error) {
	if err := c.predictLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("predict rate limit: %w", err)
	}

	start := time.Now()

	resp, err := c.predictClient.PostJSON(ctx, c.baseURL+"/predict", req)
	if err != nil {
		return nil, fmt.Errorf("predict call failed: %w", err)
	}

	var result contracts.PredictResponse
	if err := httputil.DecodeJSON(resp, &result); err != nil {
		return nil, fmt.Errorf("predict response invalid: %w", err)
	}

	if len(result.Predictions) != len(req.Features) {
		return nil, fmt.Errorf("predict returned %d rows for %d inputs",
			len(result.Predictions), len(req.Features))
	}

	c.observe("predict", start)
	return &result, nil
}

func (c *Client) observe(endpoint string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveComputeLatency(endpoint, time.Since(start).Seconds())
	}
}
