package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"fleet-alert-service/pkg/models"

	"github.com/go-redis/redis/v8"
	"github.com/minio/minio-go/v7"
)

type Config struct {
	Port             string
	Environment      string
	PostgresHost     string
	PostgresPort     string
	PostgresDatabase string
	PostgresUser     string
	PostgresPassword string

	PostgresMaxOpenConns int
	PostgresMaxIdleConns int
	ConnectTimeout       time.Duration

	RedisURL       string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	ExportBucket   string

	TelemetryAPIURL     string
	TelemetryTimeout    time.Duration
	NotifierURL         string
	NotifierMinSeverity string

	CycleInterval     time.Duration
	RetentionInterval time.Duration
	SpeedLimitKMH     float64
	DedupWindow       time.Duration
	MaxQueueSize      int
	DispatchWorkers   int
	DispatchQueueSize int

	Retention map[models.RetentionCategory]models.RetentionPolicy
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "5140"),
		Environment:      getEnv("GO_ENV", "development"),
		PostgresHost:     getEnv("POSTGRESQL_HOST", "postgres"),
		PostgresPort:     getEnv("POSTGRESQL_PORT", "5432"),
		PostgresDatabase: getEnv("POSTGRESQL_DATABASE", "fleet_db"),
		PostgresUser:     getEnv("POSTGRESQL_USER", "fleet"),
		PostgresPassword: getEnv("POSTGRESQL_PASSWORD", "fleet"),

		PostgresMaxOpenConns: getEnvInt("POSTGRESQL_MAX_OPEN_CONNS", 25),
		PostgresMaxIdleConns: getEnvInt("POSTGRESQL_MAX_IDLE_CONNS", 5),
		ConnectTimeout:       getEnvDuration("CONNECT_TIMEOUT", 10*time.Second),

		RedisURL:       getEnv("REDIS_URL", "redis://redis:6379"),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "minio:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinioUseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
		ExportBucket:   getEnv("EXPORT_BUCKET", "fleet-retention-exports"),

		TelemetryAPIURL:     getEnv("TELEMETRY_API_URL", "http://telemetry-gateway:7040/api/fleet/positions"),
		TelemetryTimeout:    getEnvDuration("TELEMETRY_TIMEOUT", 20*time.Second),
		NotifierURL:         getEnv("NOTIFIER_URL", "http://notifier:7050/api/notify"),
		NotifierMinSeverity: getEnv("NOTIFIER_MIN_SEVERITY", "low"),

		CycleInterval:     getEnvDuration("CYCLE_INTERVAL", 5*time.Minute),
		RetentionInterval: getEnvDuration("RETENTION_INTERVAL", 24*time.Hour),
		SpeedLimitKMH:     getEnvFloat("SPEED_LIMIT_KMH", 80),
		DedupWindow:       getEnvDuration("DEDUP_WINDOW", 5*time.Minute),
		MaxQueueSize:      getEnvInt("MAX_QUEUE_SIZE", 500),
		DispatchWorkers:   getEnvInt("DISPATCH_WORKERS", 5),
		DispatchQueueSize: getEnvInt("DISPATCH_QUEUE_SIZE", 256),

		Retention: map[models.RetentionCategory]models.RetentionPolicy{
			models.CategoryActiveHistory: {
				RetentionDays: getEnvInt("RETENTION_ACTIVE_DAYS", 30),
				MaxRecords:    getEnvInt("RETENTION_ACTIVE_MAX", 5000),
			},
			models.CategoryResolvedAlerts: {
				RetentionDays: getEnvInt("RETENTION_RESOLVED_DAYS", 7),
				MaxRecords:    getEnvInt("RETENTION_RESOLVED_MAX", 2000),
			},
			models.CategoryInspections: {
				RetentionDays: getEnvInt("RETENTION_INSPECTIONS_DAYS", 60),
				MaxRecords:    getEnvInt("RETENTION_INSPECTIONS_MAX", 10000),
			},
			models.CategoryCompletedPlans: {
				RetentionDays: getEnvInt("RETENTION_PLANS_DAYS", 7),
				MaxRecords:    getEnvInt("RETENTION_PLANS_MAX", 2000),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var missingVars []string

	if c.Port == "" {
		missingVars = append(missingVars, "PORT")
	}
	if c.PostgresHost == "" {
		missingVars = append(missingVars, "POSTGRESQL_HOST")
	}
	if c.PostgresDatabase == "" {
		missingVars = append(missingVars, "POSTGRESQL_DATABASE")
	}
	if c.PostgresUser == "" {
		missingVars = append(missingVars, "POSTGRESQL_USER")
	}
	if c.PostgresPassword == "" {
		missingVars = append(missingVars, "POSTGRESQL_PASSWORD")
	}
	if c.RedisURL == "" {
		missingVars = append(missingVars, "REDIS_URL")
	}
	if c.MinioEndpoint == "" {
		missingVars = append(missingVars, "MINIO_ENDPOINT")
	}
	if c.TelemetryAPIURL == "" {
		missingVars = append(missingVars, "TELEMETRY_API_URL")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	if _, err := url.Parse(c.RedisURL); err != nil {
		return fmt.Errorf("invalid REDIS_URL format: %w", err)
	}
	if _, err := url.Parse(c.TelemetryAPIURL); err != nil {
		return fmt.Errorf("invalid TELEMETRY_API_URL format: %w", err)
	}

	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("MAX_QUEUE_SIZE must be positive, got %d", c.MaxQueueSize)
	}
	if c.PostgresMaxOpenConns <= 0 || c.PostgresMaxIdleConns <= 0 {
		return fmt.Errorf("postgres pool sizes must be positive, got open=%d idle=%d",
			c.PostgresMaxOpenConns, c.PostgresMaxIdleConns)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("CONNECT_TIMEOUT must be positive, got %s", c.ConnectTimeout)
	}
	for category, policy := range c.Retention {
		if policy.RetentionDays <= 0 || policy.MaxRecords <= 0 {
			return fmt.Errorf("retention policy for %s must have positive days and max records", category)
		}
	}

	return nil
}

func (c *Config) ValidateConnections() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(opt)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	minioClient, err := minio.New(c.MinioEndpoint, &minio.Options{
		Secure: c.MinioUseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	if _, err := minioClient.ListBuckets(ctx); err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (c *Config) GetPostgresConnString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDatabase,
	)
}
