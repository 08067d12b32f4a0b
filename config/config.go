package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 汇总服务启动所需的全部参数，全部来自环境变量（可选 .env 文件）
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	MinIO    MinIOConfig
	MQ       MQConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Addr           string
	PublicBaseURL  string // 返回给浏览器的地址前缀，用于拼接图片 URL
	UploadTimeout  time.Duration
	MaxUploadBytes int64
	AuthRateLimit  int // 每个 IP 每分钟最多的 /auth 请求数
}

type DatabaseConfig struct {
	Driver          string // mysql | postgres | sqlite
	DSN             string
	ReplicaDSN      string // 可选从库，配置后启用读写分离
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string // 为空则不启用 Redis
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type MQConfig struct {
	URL string // 为空则图片清理同步执行
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

var ErrMissingSecret = errors.New("config: JWT_SECRET is required")

// Load 读取 .env（如果存在）和环境变量
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env 文件未找到，使用系统环境变量")
	}

	cfg := &Config{}

	cfg.Server.Addr = getEnv("SERVER_ADDR", ":8080")
	cfg.Server.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/")
	cfg.Server.UploadTimeout = getDuration("UPLOAD_TIMEOUT", 30*time.Second)
	cfg.Server.MaxUploadBytes = int64(getInt("UPLOAD_MAX_BYTES", 10<<20))
	cfg.Server.AuthRateLimit = getInt("AUTH_RATE_LIMIT", 20)

	cfg.Database.Driver = getEnv("DB_DRIVER", "mysql")
	cfg.Database.DSN = getEnv("DB_DSN", "")
	cfg.Database.ReplicaDSN = getEnv("DB_REPLICA_DSN", "")
	cfg.Database.MaxOpenConns = getInt("DB_MAX_OPEN_CONNS", 25)
	cfg.Database.MaxIdleConns = getInt("DB_MAX_IDLE_CONNS", 5)
	cfg.Database.ConnMaxLifetime = getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "blog.db"
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getInt("REDIS_DB", 0)

	cfg.MinIO.Endpoint = getEnv("MINIO_ENDPOINT", "")
	cfg.MinIO.AccessKey = getEnv("MINIO_ACCESS_KEY", "")
	cfg.MinIO.SecretKey = getEnv("MINIO_SECRET_KEY", "")
	cfg.MinIO.Bucket = getEnv("MINIO_BUCKET", "blog-images")
	cfg.MinIO.UseSSL = getEnv("MINIO_USE_SSL", "false") == "true"

	cfg.MQ.URL = getEnv("AMQP_URL", "")

	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.Auth.TokenTTL = getDuration("TOKEN_TTL", 7*24*time.Hour)

	if cfg.Auth.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.Database.DSN == "" {
		return nil, errors.New("config: DB_DSN is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("⚠️ %s=%q 不是整数，使用默认值 %d", key, raw, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("⚠️ %s=%q 不是合法时长，使用默认值 %s", key, raw, fallback)
		return fallback
	}
	return d
}
