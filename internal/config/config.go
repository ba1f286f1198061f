package config

import (
	"fmt"
	"time"
)

type DatabaseConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	MaxConns int
	MaxIdle  int
	// AutoMigrate applies the embedded schema on startup.
	AutoMigrate bool
}

// DSN builds a go-sql-driver/mysql data source name. parseTime is required
// for DATE/DATETIME columns to scan into time.Time.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

type Config struct {
	Host string
	Port string

	Database DatabaseConfig
	Redis    RedisConfig
	Minio    MinioConfig

	RabbitMQURL string
	Exchange    string

	// RealtimeBackend is "redis" (multi-node) or "memory" (single process).
	RealtimeBackend string
	LocateTimeout   time.Duration
	// PublicRefresh is how often an open /track socket rechecks its order.
	PublicRefresh time.Duration
	// LifecycleTimeout bounds one RabbitMQ publish including its ack.
	LifecycleTimeout time.Duration
	// UnknownCategoryPolicy is "allow" or "reject"; see Gate.
	UnknownCategoryPolicy string
	PublicBaseURL         string
	Timezone              string
	// UploadDir backs photo storage when MinIO is not configured.
	UploadDir string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Host: GetEnv("APP_HOST", ""),
		Port: GetEnv("APP_PORT", "8080"),
		Database: DatabaseConfig{
			User:     GetEnv("DB_USER", "root"),
			Password: GetEnv("DB_PASSWORD", ""),
			Host:     GetEnv("DB_HOST", "127.0.0.1"),
			Port:     GetEnv("DB_PORT", "3306"),
			Name:     GetEnv("DB_NAME", "hvac_dispatch"),
			MaxConns: GetEnvInt("DB_MAX_CONNS", 25),
			MaxIdle:  GetEnvInt("DB_MAX_IDLE", 5),

			AutoMigrate: GetEnv("DB_AUTO_MIGRATE", "false") == "true",
		},
		Redis: RedisConfig{
			Addr:     GetEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvInt("REDIS_DB", 0),
		},
		Minio: MinioConfig{
			Endpoint:  GetEnv("MINIO_ENDPOINT", ""),
			AccessKey: GetEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: GetEnv("MINIO_SECRET_KEY", ""),
			Bucket:    GetEnv("MINIO_BUCKET", "service-photos"),
			UseSSL:    GetEnv("MINIO_USE_SSL", "false") == "true",
			PublicURL: GetEnv("MINIO_PUBLIC_URL", ""),
		},
		RabbitMQURL:           GetEnv("RABBITMQ_URL", ""),
		Exchange:              GetEnv("RABBITMQ_EXCHANGE", "orders_topic"),
		RealtimeBackend:       GetEnv("REALTIME_BACKEND", "redis"),
		LocateTimeout:         GetEnvDuration("LOCATE_TIMEOUT", 5*time.Second),
		PublicRefresh:         GetEnvDuration("PUBLIC_REFRESH", 5*time.Second),
		LifecycleTimeout:      GetEnvDuration("LIFECYCLE_TIMEOUT", 3*time.Second),
		UnknownCategoryPolicy: GetEnv("GATE_UNKNOWN_CATEGORY", "allow"),
		PublicBaseURL:         GetEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		Timezone:              GetEnv("TIMEZONE", "America/Sao_Paulo"),
		UploadDir:             GetEnv("UPLOAD_DIR", "./public/uploads"),
		LogLevel:              GetEnv("LOG_LEVEL", "info"),
		LogFormat:             GetEnv("LOG_FORMAT", "json"),
	}
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Location resolves Timezone, falling back to UTC. Certification expiry is
// compared against "today" in this location.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
