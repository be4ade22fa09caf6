package main

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tavernchat/cmd/context-service/internal/conf"
	"tavernchat/cmd/context-service/internal/data"
	"tavernchat/cmd/context-service/internal/domain"
	"tavernchat/cmd/context-service/internal/server"
	"tavernchat/cmd/context-service/internal/service"
	"tavernchat/pkg/config"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

func main() {
	stdlog.Printf("Starting Context Service")

	// 加载本地配置文件（可选），环境变量优先级最高
	configPath := config.GetEnv("CONFIG_PATH", "./configs/context-service.yaml")
	cfgManager := config.NewManager()
	if err := cfgManager.LoadConfig(configPath); err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	pruningCfg, err := conf.LoadPruningConfig(cfgManager.Viper())
	if err != nil {
		stdlog.Fatalf("Failed to parse pruning config: %v", err)
	}

	logger := log.With(
		log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service", "context-service",
	)

	// 数据库
	dbConfig := &data.DBConfig{
		Host:     config.GetEnv("DB_HOST", "localhost"),
		Port:     config.GetEnvAsInt("DB_PORT", 5432),
		User:     config.GetEnv("DB_USER", "postgres"),
		Password: config.GetEnv("DB_PASSWORD", "postgres"),
		Database: config.GetEnv("DB_NAME", "tavernchat"),
	}
	db, err := data.NewDB(dbConfig, logger)
	if err != nil {
		stdlog.Fatalf("Failed to initialize database: %v", err)
	}

	messageRepo := data.NewMessageRepository(db)
	conversationRepo := data.NewConversationRepository(db)
	characterRepo := data.NewCharacterRepository(db)

	// Redis 结果缓存（可选，未配置时降级为无缓存直算）
	var resultCache *data.ResultCache
	if redisAddr := config.GetEnv("REDIS_ADDR", ""); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: config.GetEnv("REDIS_PASSWORD", ""),
			DB:       config.GetEnvAsInt("REDIS_DB", 0),
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			stdlog.Printf("Redis unavailable, result caching disabled: %v", err)
		} else {
			resultCache = data.NewResultCache(redisClient, logger)
			stdlog.Printf("Redis result cache enabled: %s", redisAddr)
		}
		cancel()
	}

	// 避免把 nil 具体指针装进接口
	var cache domain.ResultCache
	if resultCache != nil {
		cache = resultCache
	}
	svc := service.NewContextService(messageRepo, conversationRepo, characterRepo, cache, pruningCfg, logger)
	httpServer := server.NewHTTPServer(svc, logger)

	port := config.GetEnvAsInt("SERVICE_PORT", 8080)
	addr := fmt.Sprintf(":%d", port)

	errCh := make(chan error, 1)
	go func() {
		stdlog.Printf("HTTP server listening on %s", addr)
		errCh <- httpServer.Start(addr)
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			stdlog.Fatalf("HTTP server error: %v", err)
		}
	case sig := <-quit:
		stdlog.Printf("Received signal %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		stdlog.Printf("Server shutdown error: %v", err)
	}
	stdlog.Printf("Context Service stopped")
}
