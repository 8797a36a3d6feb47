package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config 人员服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig

	HTTP struct {
		Addr string
	}

	// 命令通道配置（Redis Streams）
	Channel struct {
		CommandStream  string        // 命令流名称
		ResponseStream string        // 响应流名称
		ConsumerGroup  string        // Worker 消费者组
		ConsumerName   string        // Worker 消费者名称（多实例部署时须唯一）
		BatchSize      int64         // 单次读取的消息数
		WaitTimeout    time.Duration // Gateway 等待响应的超时窗口
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置（带默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "person")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.Channel.CommandStream = getEnv("PERSON_COMMAND_STREAM", "person:commands")
	cfg.Channel.ResponseStream = getEnv("PERSON_RESPONSE_STREAM", "person:responses")
	cfg.Channel.ConsumerGroup = getEnv("PERSON_CONSUMER_GROUP", "person-workers")
	cfg.Channel.ConsumerName = getEnv("PERSON_CONSUMER_NAME", "person-worker-1")
	cfg.Channel.BatchSize = int64(getEnvInt("PERSON_BATCH_SIZE", 10))

	waitSec := getEnvInt("PERSON_WAIT_TIMEOUT", 10)
	if waitSec <= 0 {
		waitSec = 10
	}
	cfg.Channel.WaitTimeout = time.Duration(waitSec) * time.Second

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}
