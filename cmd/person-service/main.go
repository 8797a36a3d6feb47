package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/titan/hive-person-service/internal/cache"
	"github.com/titan/hive-person-service/internal/config"
	"github.com/titan/hive-person-service/internal/database"
	httpapi "github.com/titan/hive-person-service/internal/http"
	"github.com/titan/hive-person-service/internal/logger"
	"github.com/titan/hive-person-service/internal/queue"
	"github.com/titan/hive-person-service/internal/repository"
	"github.com/titan/hive-person-service/internal/service"
	"github.com/titan/hive-person-service/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "person-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting person-service")

	// 数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Redis（缓存与命令通道共用一个客户端）
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// 存储层 / 缓存 / 调和引擎
	repo := repository.NewPostgresPersonsRepository(db, log)
	personCache := cache.NewPersonCache(redisClient, log)
	synchronizer := cache.NewSynchronizer(repo, personCache, log)

	w := worker.New(redisClient, repo, synchronizer, worker.Options{
		CommandStream:  cfg.Channel.CommandStream,
		ResponseStream: cfg.Channel.ResponseStream,
		ConsumerGroup:  cfg.Channel.ConsumerGroup,
		ConsumerName:   cfg.Channel.ConsumerName,
		BatchSize:      cfg.Channel.BatchSize,
	}, log)

	// 网关侧命令分发器
	dispatcher := queue.NewDispatcher(redisClient, cfg.Channel.CommandStream, cfg.Channel.ResponseStream, cfg.Channel.WaitTimeout, log)

	// HTTP 路由
	handler := httpapi.NewPersonHandler(dispatcher, personCache, log)
	router := httpapi.NewRouter(log)
	router.RegisterPersonRoutes(handler)

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 3)

	// Worker 消费循环
	go func() {
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("worker: %w", err)
		}
	}()

	// 响应分发循环
	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("dispatcher: %w", err)
		}
	}()

	// HTTP 服务
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	// 等待信号或错误
	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("Service error", zap.Error(err))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", zap.Error(err))
	}

	log.Info("Service stopped")
}
