package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"standup-formstack/common/database"
	logpkg "standup-formstack/common/logger"
	mqttcommon "standup-formstack/common/mqtt"
	rediscommon "standup-formstack/common/redis"
	"standup-formstack/internal/chat"
	"standup-formstack/internal/config"
	"standup-formstack/internal/events"
	httpapi "standup-formstack/internal/http"
	"standup-formstack/internal/service"
	"standup-formstack/internal/store"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "standup-bot")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting standup-bot service",
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("chat_transport", cfg.Chat.Transport),
	)
	if cfg.Formstack.Token == "" {
		log.Warn("FORMSTACK_TOKEN is not set, form commands will be refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 持久化后端
	kv, redisClient, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer closeStore()

	// 聊天传输
	platform, closeChat, err := openChat(cfg, log)
	if err != nil {
		log.Fatal("Failed to open chat transport", zap.Error(err))
	}
	defer closeChat()

	// 创建服务
	svc := service.NewStandupService(cfg, kv, platform, log)
	if redisClient != nil && cfg.Events.Stream != "" {
		svc.WithEvents(events.NewStreamPublisher(redisClient, cfg.Events.Stream, cfg.Events.MaxLen, log))
		log.Info("Recording room events", zap.String("stream", cfg.Events.Stream))
	}

	// 运维接口
	var srv *http.Server
	if cfg.HTTP.Addr != "" {
		handler := httpapi.NewHandler(svc.Rooms(), svc.Rooms().Registry(), svc.Scheduler(), kv, log)
		srv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpapi.NewRouter(handler),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("Ops HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Ops HTTP server failed", zap.Error(err))
			}
		}()
	}

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 启动服务（在 goroutine 中）
	errChan := make(chan error, 1)
	go func() {
		errChan <- svc.Start(ctx)
	}()

	// 等待信号或错误
	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			log.Error("Service error", zap.Error(err))
		} else {
			log.Info("Chat transport finished, shutting down")
		}
	}
	cancel()

	// 停止服务
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Error stopping ops HTTP server", zap.Error(err))
		}
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping service", zap.Error(err))
	}

	log.Info("Service stopped")
}

// openStore 按 STORE_BACKEND 连接 Redis 或 PostgreSQL，并等待其可用
// 使用 Redis 时同时返回客户端，供事件流复用
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.KV, *rediscommon.Client, func(), error) {
	readyCtx, cancel := context.WithTimeout(ctx, cfg.Store.ReadyTimeout)
	defer cancel()

	switch cfg.Store.Backend {
	case "redis":
		client := rediscommon.NewRedisClient(&cfg.Redis)
		kv := store.NewRedisKV(client)
		closeFn := func() {
			if err := rediscommon.Close(client); err != nil {
				log.Warn("Failed to close redis", zap.Error(err))
			}
		}
		if err := store.WaitReady(readyCtx, kv, time.Second, log); err != nil {
			closeFn()
			return nil, nil, nil, fmt.Errorf("redis %s not ready: %w", cfg.Redis.Addr, err)
		}
		return kv, client, closeFn, nil

	case "postgres":
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() { closeDB(db, log) }
		kv := store.NewPostgresKV(db)
		if err := store.WaitReady(readyCtx, kv, time.Second, log); err != nil {
			closeFn()
			return nil, nil, nil, fmt.Errorf("postgres %s not ready: %w", cfg.Database.Host, err)
		}
		if err := kv.EnsureSchema(readyCtx); err != nil {
			closeFn()
			return nil, nil, nil, fmt.Errorf("failed to create kv table: %w", err)
		}
		return kv, nil, closeFn, nil
	}
	return nil, nil, nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
}

func closeDB(db *sql.DB, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Warn("Failed to close database", zap.Error(err))
	}
}

// openChat 按 CHAT_TRANSPORT 创建 MQTT 或控制台传输
func openChat(cfg *config.Config, log *zap.Logger) (chat.Platform, func(), error) {
	switch cfg.Chat.Transport {
	case "mqtt":
		client, err := mqttcommon.NewClient(&cfg.MQTT, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Connected to MQTT broker",
			zap.String("broker", cfg.MQTT.Broker),
			zap.String("topic_prefix", cfg.Chat.TopicPrefix),
		)
		return chat.NewMQTTPlatform(client, cfg.Chat.TopicPrefix, client.QoS(), log), client.Disconnect, nil
	case "console":
		return chat.NewConsolePlatform(os.Stdin, os.Stdout, os.Getenv("USER")), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported chat transport: %s", cfg.Chat.Transport)
}
