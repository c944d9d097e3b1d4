package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// WaitReady 轮询 Ping 直到存储可用或 ctx 结束
func WaitReady(ctx context.Context, kv KV, interval time.Duration, logger *zap.Logger) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	attempt := 0
	for {
		attempt++
		err := kv.Ping(ctx)
		if err == nil {
			logger.Info("Store is ready", zap.Int("attempts", attempt))
			return nil
		}
		logger.Warn("Store not ready yet", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("store not ready: %w", err)
		case <-ticker.C:
		}
	}
}
