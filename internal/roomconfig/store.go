package roomconfig

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"standup-formstack/internal/models"
	"standup-formstack/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Store 房间表单配置缓存（KV 持久化 + 内存记录，按 roomID 隔离）
type Store struct {
	kv       store.KV
	client   FormClient
	registry *Registry
	resolver *Resolver
	logger   *zap.Logger

	mu    sync.RWMutex
	rooms map[string]*models.RoomFormConfig

	// 同一房间并发刷新只请求一次上游
	refresh singleflight.Group
}

// NewStore 创建配置存储，内部持有 Resolver 与 Registry
func NewStore(kv store.KV, client FormClient, defaultTZ string, logger *zap.Logger) *Store {
	s := &Store{
		kv:       kv,
		client:   client,
		registry: NewRegistry(kv, logger),
		logger:   logger,
		rooms:    make(map[string]*models.RoomFormConfig),
	}
	s.resolver = NewResolver(client, s, defaultTZ, logger)
	return s
}

func (s *Store) Resolver() *Resolver { return s.resolver }

func (s *Store) Registry() *Registry { return s.registry }

// Get 读取持久化字段到内存记录；未绑定表单时返回 ErrNotConfigured
func (s *Store) Get(ctx context.Context, roomID string) (*models.RoomFormConfig, error) {
	cfg, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if cfg.FormID == "" {
		s.evict(roomID)
		return nil, models.ErrNotConfigured
	}

	s.mu.Lock()
	s.rooms[roomID] = cfg
	s.mu.Unlock()
	return cfg.Clone(), nil
}

// EnsureFresh 配置完整时直接返回（不访问上游），否则用已存的表单 ID 重新解析
func (s *Store) EnsureFresh(ctx context.Context, roomID string) (*models.RoomFormConfig, error) {
	cfg, err := s.Get(ctx, roomID)
	var formID string
	switch {
	case err == nil:
		if cfg.Complete() {
			return cfg, nil
		}
		formID = cfg.FormID
		s.logger.Info("Room config incomplete, refreshing from Formstack",
			zap.String("room_id", roomID),
			zap.Any("missing", cfg.Fields.Missing()),
		)
	case isPersistence(err):
		// 读失败时退化为用内存中的表单 ID 重新解析
		cached := s.cached(roomID)
		if cached == nil {
			return nil, err
		}
		formID = cached.FormID
		s.logger.Warn("Store read failed, re-resolving from Formstack",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
	default:
		return nil, err
	}

	// 共享的解析不随发起者取消，由 HTTP 超时兜底；每个调用方只按自己的 ctx 放弃等待
	shared := context.WithoutCancel(ctx)
	ch := s.refresh.DoChan(roomID, func() (interface{}, error) {
		return s.resolver.Resolve(shared, roomID, formID)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Shared {
		s.logger.Debug("Joined in-flight refresh", zap.String("room_id", roomID))
	}
	resolved, _ := res.Val.(*models.RoomFormConfig)
	if err := res.Err; err != nil {
		if resolved != nil && isPersistence(err) {
			s.logger.Warn("Resolved form but could not persist it", zap.String("room_id", roomID), zap.Error(err))
			return resolved.Clone(), nil
		}
		return nil, err
	}
	return resolved.Clone(), nil
}

// SetRandomize 设置报告是否随机排序
func (s *Store) SetRandomize(ctx context.Context, roomID string, on bool) error {
	if err := s.set(ctx, roomKey(roomID, attrRandomize), strconv.FormatBool(on)); err != nil {
		return err
	}
	s.update(roomID, func(c *models.RoomFormConfig) { c.Randomize = on })
	return nil
}

// SetCrons 保存报告与提醒的 cron 表达式
func (s *Store) SetCrons(ctx context.Context, roomID, reportCron, reminderCron string) error {
	if err := s.setOrRemove(ctx, roomKey(roomID, attrReportCron), reportCron); err != nil {
		return err
	}
	if err := s.setOrRemove(ctx, roomKey(roomID, attrReminderCron), reminderCron); err != nil {
		return err
	}
	s.update(roomID, func(c *models.RoomFormConfig) {
		c.ReportCron = reportCron
		c.ReminderCron = reminderCron
	})
	return nil
}

// Remove 删除房间全部键、清除内存记录并移出活跃房间
// 只删除 roomKeys 列出的精确键，房间 ID 中的 ":" 或通配符不会波及其他房间
func (s *Store) Remove(ctx context.Context, roomID string) error {
	keys := roomKeys(roomID)
	s.evict(roomID)
	if err := s.kv.Remove(ctx, keys...); err != nil {
		return &models.PersistenceError{Op: "remove", Key: keyPrefix + roomID, Err: err}
	}
	if err := s.registry.Remove(ctx, roomID); err != nil {
		return err
	}
	s.logger.Info("Room config removed", zap.String("room_id", roomID), zap.Int("keys", len(keys)))
	return nil
}

// saveForm 写入表单相关字段（由 Resolver 调用），随机与 cron 设置保持不变
// 字段 ID 先写、form_id 最后写；中途失败会清掉字段键，下次读取时配置不完整从而重新解析
func (s *Store) saveForm(ctx context.Context, cfg *models.RoomFormConfig) (*models.RoomFormConfig, error) {
	roomID := cfg.RoomID
	var writes []struct{ key, value string }
	for _, role := range models.AllRoles {
		writes = append(writes, struct{ key, value string }{fieldKey(roomID, role), cfg.Fields[role]})
	}
	writes = append(writes, []struct{ key, value string }{
		{roomKey(roomID, attrFormURL), cfg.FormURL},
		{roomKey(roomID, attrAPIURL), cfg.APIBaseURL},
		{roomKey(roomID, attrTimezone), cfg.Timezone},
		{roomKey(roomID, attrFormID), cfg.FormID},
	}...)
	for _, w := range writes {
		if err := s.setOrRemove(ctx, w.key, w.value); err != nil {
			s.logger.Error("Failed to save room config", zap.String("room_id", roomID), zap.Error(err))
			s.evict(roomID)
			s.clearFields(ctx, roomID)
			return nil, err
		}
	}

	saved := cfg.Clone()
	if extras, err := s.load(ctx, roomID); err == nil {
		saved.Randomize = extras.Randomize
		saved.ReportCron = extras.ReportCron
		saved.ReminderCron = extras.ReminderCron
	}

	s.mu.Lock()
	s.rooms[roomID] = saved.Clone()
	s.mu.Unlock()

	if err := s.registry.Add(ctx, roomID); err != nil {
		return nil, err
	}
	return saved, nil
}

// load 逐键读取房间配置，缺失的键视为空值
func (s *Store) load(ctx context.Context, roomID string) (*models.RoomFormConfig, error) {
	cfg := &models.RoomFormConfig{RoomID: roomID, Fields: make(models.FieldMap)}

	get := func(key string) (string, error) {
		v, err := s.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrMiss) {
				return "", nil
			}
			return "", &models.PersistenceError{Op: "get", Key: key, Err: err}
		}
		return v, nil
	}

	targets := []struct {
		attr string
		dst  *string
	}{
		{attrFormID, &cfg.FormID},
		{attrFormURL, &cfg.FormURL},
		{attrAPIURL, &cfg.APIBaseURL},
		{attrTimezone, &cfg.Timezone},
		{attrReportCron, &cfg.ReportCron},
		{attrReminderCron, &cfg.ReminderCron},
	}
	for _, t := range targets {
		v, err := get(roomKey(roomID, t.attr))
		if err != nil {
			return nil, err
		}
		*t.dst = v
	}

	randomize, err := get(roomKey(roomID, attrRandomize))
	if err != nil {
		return nil, err
	}
	cfg.Randomize, _ = strconv.ParseBool(randomize)

	for _, role := range models.AllRoles {
		v, err := get(fieldKey(roomID, role))
		if err != nil {
			return nil, err
		}
		if v != "" {
			cfg.Fields[role] = v
		}
	}

	// api_url 可由表单 ID 推导
	if cfg.APIBaseURL == "" && cfg.FormID != "" {
		cfg.APIBaseURL = s.client.FormAPIURL(cfg.FormID)
	}
	return cfg, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	if err := s.kv.Set(ctx, key, value, 0); err != nil {
		return &models.PersistenceError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (s *Store) setOrRemove(ctx context.Context, key, value string) error {
	if value != "" {
		return s.set(ctx, key, value)
	}
	if err := s.kv.Remove(ctx, key); err != nil {
		return &models.PersistenceError{Op: "remove", Key: key, Err: err}
	}
	return nil
}

// clearFields 尽力删除字段键，避免新旧字段 ID 混用
func (s *Store) clearFields(ctx context.Context, roomID string) {
	keys := make([]string, 0, len(models.AllRoles))
	for _, role := range models.AllRoles {
		keys = append(keys, fieldKey(roomID, role))
	}
	if err := s.kv.Remove(ctx, keys...); err != nil {
		s.logger.Warn("Failed to clear field keys after partial save", zap.String("room_id", roomID), zap.Error(err))
	}
}

func (s *Store) cached(roomID string) *models.RoomFormConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.rooms[roomID]; ok {
		return c.Clone()
	}
	return nil
}

func (s *Store) update(roomID string, fn func(*models.RoomFormConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.rooms[roomID]; ok {
		fn(c)
	}
}

func (s *Store) evict(roomID string) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
}

func isPersistence(err error) bool {
	var pe *models.PersistenceError
	return errors.As(err, &pe)
}
