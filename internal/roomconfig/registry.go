package roomconfig

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"standup-formstack/internal/models"
	"standup-formstack/internal/store"

	"go.uber.org/zap"
)

// Registry 已绑定表单的房间集合，重启后据此恢复定时任务
type Registry struct {
	kv     store.KV
	logger *zap.Logger
	mu     sync.Mutex
}

func NewRegistry(kv store.KV, logger *zap.Logger) *Registry {
	return &Registry{kv: kv, logger: logger}
}

// List 返回排序后的房间 ID
func (r *Registry) List(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Add 加入房间（已存在则不写）
func (r *Registry) Add(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, id := range rooms {
		if id == roomID {
			return nil
		}
	}
	return r.save(ctx, append(rooms, roomID))
}

// Remove 移除房间
func (r *Registry) Remove(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, err := r.load(ctx)
	if err != nil {
		return err
	}
	kept := rooms[:0]
	for _, id := range rooms {
		if id != roomID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(rooms) {
		return nil
	}
	return r.save(ctx, kept)
}

// Replace 整体重写
func (r *Registry) Replace(ctx context.Context, rooms []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx, rooms)
}

func (r *Registry) load(ctx context.Context) ([]string, error) {
	raw, err := r.kv.Get(ctx, activeRoomsKey)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil, nil
		}
		return nil, &models.PersistenceError{Op: "get", Key: activeRoomsKey, Err: err}
	}
	var rooms []string
	if err := json.Unmarshal([]byte(raw), &rooms); err != nil {
		// 损坏的数据当作空集合，下次写入时覆盖
		r.logger.Warn("Active room registry is corrupt, ignoring", zap.Error(err))
		return nil, nil
	}
	return rooms, nil
}

func (r *Registry) save(ctx context.Context, rooms []string) error {
	uniq := make(map[string]struct{}, len(rooms))
	out := make([]string, 0, len(rooms))
	for _, id := range rooms {
		if _, ok := uniq[id]; ok || id == "" {
			continue
		}
		uniq[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)

	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, activeRoomsKey, string(raw), 0); err != nil {
		return &models.PersistenceError{Op: "set", Key: activeRoomsKey, Err: err}
	}
	return nil
}
