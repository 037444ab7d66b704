package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External compute service
	Compute ComputeConfig

	// Self-learning lifecycle
	Lifecycle LifecycleConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ComputeConfig holds the external model compute service configuration
// 학습/평가/추론 연산은 전부 이 서비스에 위임됨
type ComputeConfig struct {
	BaseURL         string
	TrainTimeout    time.Duration // 학습 호출 타임아웃 (분 단위 스케일)
	EvaluateTimeout time.Duration // 평가 호출 타임아웃 (수십 초)
	PredictTimeout  time.Duration // 추론 호출 타임아웃 (한 자리 초)
	PredictRPS      int           // 추론 경로 rate limit (req/sec)
	Algorithm       string        // 학습 알고리즘 식별자 (compute 서비스에 그대로 전달)
}

// LifecycleConfig holds retrain/promotion/monitoring tunables
// ⭐ SSOT: 가드/승격/모니터 임계값은 여기서만 정의
type LifecycleConfig struct {
	// Guard chain
	RetrainCooldown   time.Duration // 마지막 성공 재학습 이후 대기
	MinSamples        int           // 재학습 최소 표본 수
	MaxDriftLevel     string        // 허용 최대 드리프트 (LOW/MEDIUM/HIGH/CRITICAL)
	MinLiveShare      float64       // live 표본 최소 비율 (0-1)
	MinQualityScore   float64       // 평균 품질 점수 하한 (0-1)
	MaxBlockedWindows int           // 최근 수집 차단 윈도우 허용 개수

	// Dataset framing
	TrainSplitRatio  float64       // 시간순 train 비율 (기본 0.8)
	DatasetRetention time.Duration // FROZEN 유지 기간 (이후 EXPIRED)

	// Evaluation gate thresholds
	MinPrecisionLift  float64 // 룰 베이스라인 대비 precision lift 하한
	MaxCalibrationECE float64 // ECE 상한
	MinEvalSamples    int     // 평가 표본 하한 (미만이면 INCONCLUSIVE)

	// Promotion
	PromotionCooldown  time.Duration // 포인터 전환 간 최소 간격
	MaxPromotionsMonth int           // horizon별 월간 승격 상한

	// Shadow monitor
	MonitorWindow       time.Duration // 트레일링 윈도우 (기본 7일)
	MonitorMinSamples   int           // 미만이면 DEGRADED 강제
	ConsecutiveCritical int           // 자동 롤백 디바운스 횟수

	// Confidence blender
	MLModifierFloor float64 // mlModifier 하한 (0보다 커야 함)
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8099"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "cortex"),
			User:            getEnv("DB_USER", "cortex"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// External compute service
		Compute: ComputeConfig{
			BaseURL:         getEnv("COMPUTE_BASE_URL", "http://localhost:8501"),
			TrainTimeout:    getEnvAsDuration("COMPUTE_TRAIN_TIMEOUT", "10m"),
			EvaluateTimeout: getEnvAsDuration("COMPUTE_EVALUATE_TIMEOUT", "45s"),
			PredictTimeout:  getEnvAsDuration("COMPUTE_PREDICT_TIMEOUT", "3s"),
			PredictRPS:      getEnvAsInt("COMPUTE_PREDICT_RPS", 50),
			Algorithm:       getEnv("COMPUTE_ALGORITHM", "logistic_regression"),
		},

		// Lifecycle
		Lifecycle: LifecycleConfig{
			RetrainCooldown:     getEnvAsDuration("LC_RETRAIN_COOLDOWN", "168h"), // 7일
			MinSamples:          getEnvAsInt("LC_MIN_SAMPLES", 200),
			MaxDriftLevel:       getEnv("LC_MAX_DRIFT_LEVEL", "MEDIUM"),
			MinLiveShare:        getEnvAsFloat("LC_MIN_LIVE_SHARE", 0.20),
			MinQualityScore:     getEnvAsFloat("LC_MIN_QUALITY_SCORE", 0.60),
			MaxBlockedWindows:   getEnvAsInt("LC_MAX_BLOCKED_WINDOWS", 3),
			TrainSplitRatio:     getEnvAsFloat("LC_TRAIN_SPLIT_RATIO", 0.8),
			DatasetRetention:    getEnvAsDuration("LC_DATASET_RETENTION", "720h"), // 30일
			MinPrecisionLift:    getEnvAsFloat("LC_MIN_PRECISION_LIFT", 1.05),
			MaxCalibrationECE:   getEnvAsFloat("LC_MAX_CALIBRATION_ECE", 0.10),
			MinEvalSamples:      getEnvAsInt("LC_MIN_EVAL_SAMPLES", 30),
			PromotionCooldown:   getEnvAsDuration("LC_PROMOTION_COOLDOWN", "24h"),
			MaxPromotionsMonth:  getEnvAsInt("LC_MAX_PROMOTIONS_MONTH", 4),
			MonitorWindow:       getEnvAsDuration("LC_MONITOR_WINDOW", "168h"),
			MonitorMinSamples:   getEnvAsInt("LC_MONITOR_MIN_SAMPLES", 50),
			ConsecutiveCritical: getEnvAsInt("LC_CONSECUTIVE_CRITICAL", 3),
			MLModifierFloor:     getEnvAsFloat("LC_ML_MODIFIER_FLOOR", 0.5),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	lc := c.Lifecycle
	if lc.TrainSplitRatio <= 0 || lc.TrainSplitRatio >= 1 {
		return fmt.Errorf("LC_TRAIN_SPLIT_RATIO must be in (0, 1), got %.2f", lc.TrainSplitRatio)
	}
	if lc.MLModifierFloor <= 0 || lc.MLModifierFloor > 1 {
		// ML은 신뢰도를 낮출 수는 있지만 완전히 침묵시킬 수는 없음
		return fmt.Errorf("LC_ML_MODIFIER_FLOOR must be in (0, 1], got %.2f", lc.MLModifierFloor)
	}
	if lc.ConsecutiveCritical < 1 {
		return fmt.Errorf("LC_CONSECUTIVE_CRITICAL must be >= 1, got %d", lc.ConsecutiveCritical)
	}
	switch lc.MaxDriftLevel {
	case "LOW", "MEDIUM", "HIGH", "CRITICAL":
	default:
		return fmt.Errorf("LC_MAX_DRIFT_LEVEL must be one of: LOW, MEDIUM, HIGH, CRITICAL")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
