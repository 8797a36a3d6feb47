package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 检查默认值
	if cfg.Database.Host != "localhost" {
		t.Errorf("Expected DB_HOST default 'localhost', got '%s'", cfg.Database.Host)
	}

	if cfg.Database.Port != 5432 {
		t.Errorf("Expected DB_PORT default 5432, got %d", cfg.Database.Port)
	}

	if cfg.Database.Database != "person" {
		t.Errorf("Expected DB_NAME default 'person', got '%s'", cfg.Database.Database)
	}

	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Expected REDIS_ADDR default 'localhost:6379', got '%s'", cfg.Redis.Addr)
	}

	if cfg.HTTP.Addr != ":8090" {
		t.Errorf("Expected HTTP_ADDR default ':8090', got '%s'", cfg.HTTP.Addr)
	}

	if cfg.Channel.CommandStream != "person:commands" {
		t.Errorf("Expected PERSON_COMMAND_STREAM default 'person:commands', got '%s'", cfg.Channel.CommandStream)
	}

	if cfg.Channel.ConsumerGroup != "person-workers" {
		t.Errorf("Expected PERSON_CONSUMER_GROUP default 'person-workers', got '%s'", cfg.Channel.ConsumerGroup)
	}

	if cfg.Channel.WaitTimeout != 10*time.Second {
		t.Errorf("Expected PERSON_WAIT_TIMEOUT default 10s, got %v", cfg.Channel.WaitTimeout)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected LOG_LEVEL default 'info', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// 设置环境变量
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_NAME", "test-db")
	os.Setenv("REDIS_ADDR", "redis:6380")
	os.Setenv("PERSON_COMMAND_STREAM", "test:commands")
	os.Setenv("PERSON_CONSUMER_NAME", "worker-42")
	os.Setenv("PERSON_WAIT_TIMEOUT", "3")
	os.Setenv("LOG_LEVEL", "debug")

	defer func() {
		os.Unsetenv("DB_HOST")
		os.Unsetenv("DB_NAME")
		os.Unsetenv("REDIS_ADDR")
		os.Unsetenv("PERSON_COMMAND_STREAM")
		os.Unsetenv("PERSON_CONSUMER_NAME")
		os.Unsetenv("PERSON_WAIT_TIMEOUT")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 检查环境变量值
	if cfg.Database.Host != "test-host" {
		t.Errorf("Expected DB_HOST 'test-host', got '%s'", cfg.Database.Host)
	}

	if cfg.Database.Database != "test-db" {
		t.Errorf("Expected DB_NAME 'test-db', got '%s'", cfg.Database.Database)
	}

	if cfg.Redis.Addr != "redis:6380" {
		t.Errorf("Expected REDIS_ADDR 'redis:6380', got '%s'", cfg.Redis.Addr)
	}

	if cfg.Channel.CommandStream != "test:commands" {
		t.Errorf("Expected PERSON_COMMAND_STREAM 'test:commands', got '%s'", cfg.Channel.CommandStream)
	}

	if cfg.Channel.ConsumerName != "worker-42" {
		t.Errorf("Expected PERSON_CONSUMER_NAME 'worker-42', got '%s'", cfg.Channel.ConsumerName)
	}

	if cfg.Channel.WaitTimeout != 3*time.Second {
		t.Errorf("Expected PERSON_WAIT_TIMEOUT 3s, got %v", cfg.Channel.WaitTimeout)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Expected LOG_LEVEL 'debug', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_InvalidWaitTimeoutFallsBack(t *testing.T) {
	os.Setenv("PERSON_WAIT_TIMEOUT", "-5")
	defer os.Unsetenv("PERSON_WAIT_TIMEOUT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Channel.WaitTimeout != 10*time.Second {
		t.Errorf("Expected fallback 10s, got %v", cfg.Channel.WaitTimeout)
	}
}

func TestGetDSN(t *testing.T) {
	c := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "u",
		Password: "p",
		Database: "person",
		SSLMode:  "disable",
	}
	want := "host=db port=5433 user=u password=p dbname=person sslmode=disable"
	if got := c.GetDSN(); got != want {
		t.Errorf("Expected DSN '%s', got '%s'", want, got)
	}
}

func TestGetEnv(t *testing.T) {
	// 测试环境变量存在
	os.Setenv("TEST_VAR", "test-value")
	defer os.Unsetenv("TEST_VAR")

	value := getEnv("TEST_VAR", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	// 测试环境变量不存在，使用默认值
	value = getEnv("NON_EXISTENT_VAR", "default-value")
	if value != "default-value" {
		t.Errorf("Expected 'default-value', got '%s'", value)
	}
}
