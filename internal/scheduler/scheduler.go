package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"standup-formstack/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobKind 任务类型
type JobKind string

const (
	KindReminder JobKind = "reminder"
	KindReport   JobKind = "report"
)

// JobState 任务状态
type JobState string

const (
	StateRunning JobState = "running"
	StateStopped JobState = "stopped"
)

const defaultTickTimeout = 2 * time.Minute

// Runner 定时触发时执行的动作
type Runner interface {
	RunReminder(ctx context.Context, roomID string) error
	RunReport(ctx context.Context, roomID string) error
}

// ConfigSource RestoreAll 读取房间配置
type ConfigSource interface {
	Get(ctx context.Context, roomID string) (*models.RoomFormConfig, error)
}

// RoomRegistry 活跃房间列表
type RoomRegistry interface {
	List(ctx context.Context) ([]string, error)
	Replace(ctx context.Context, rooms []string) error
}

// Job 单个定时任务的快照
type Job struct {
	RoomID   string    `json:"room_id"`
	Kind     JobKind   `json:"kind"`
	Spec     string    `json:"spec"`
	Timezone string    `json:"timezone"`
	State    JobState  `json:"state"`
	Next     time.Time `json:"next,omitempty"`

	entryID cron.EntryID
}

// Scheduler 按房间管理提醒与报告任务
type Scheduler struct {
	cron        *cron.Cron
	defaultTZ   string
	tickTimeout time.Duration
	logger      *zap.Logger

	mu      sync.Mutex
	rooms   map[string][]*Job
	runner  Runner
	baseCtx context.Context
}

// New defaultTZ 为房间未指定时区时使用的时区
func New(defaultTZ string, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithLogger(newCronLogger(logger))),
		defaultTZ:   defaultTZ,
		tickTimeout: defaultTickTimeout,
		logger:      logger,
		rooms:       make(map[string][]*Job),
		baseCtx:     context.Background(),
	}
}

// Start 启动调度；ctx 取消后新触发的任务立即失败
func (s *Scheduler) Start(ctx context.Context, runner Runner) {
	s.mu.Lock()
	s.runner = runner
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop 停止调度并等待执行中的任务
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out, jobs still running")
	}
}

// Schedule 替换房间已有任务；两个表达式都合法才生效
func (s *Scheduler) Schedule(roomID, reportCron, reminderCron, timezone string) error {
	if roomID == "" {
		return errors.New("schedule: empty room id")
	}
	tz := s.timezone(timezone)

	specs := []struct {
		kind JobKind
		spec string
	}{
		{KindReminder, reminderCron},
		{KindReport, reportCron},
	}

	parsed := make([]cron.Schedule, len(specs))
	for i, sp := range specs {
		if sp.spec == "" {
			return fmt.Errorf("schedule %s for room %s: empty cron", sp.kind, roomID)
		}
		sched, err := cron.ParseStandard("CRON_TZ=" + tz + " " + sp.spec)
		if err != nil {
			return fmt.Errorf("schedule %s for room %s: %w", sp.kind, roomID, err)
		}
		parsed[i] = sched
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(roomID)

	jobs := make([]*Job, len(specs))
	for i, sp := range specs {
		id := s.cron.Schedule(parsed[i], s.job(roomID, sp.kind))
		jobs[i] = &Job{
			RoomID:   roomID,
			Kind:     sp.kind,
			Spec:     sp.spec,
			Timezone: tz,
			State:    StateRunning,
			entryID:  id,
		}
	}
	s.rooms[roomID] = jobs

	s.logger.Info("Scheduled room jobs",
		zap.String("room_id", roomID),
		zap.String("report_cron", reportCron),
		zap.String("reminder_cron", reminderCron),
		zap.String("timezone", tz),
	)
	return nil
}

// Cancel 同步停止房间的全部任务，返回被停止的任务
func (s *Scheduler) Cancel(roomID string) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(roomID)
}

// Scheduled 房间是否有运行中的任务
func (s *Scheduler) Scheduled(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms[roomID]) > 0
}

// Jobs 全部运行中任务的快照，按房间与类型排序
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Job
	for _, jobs := range s.rooms {
		for _, j := range jobs {
			snap := *j
			snap.Next = s.cron.Entry(j.entryID).Next
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].RoomID != out[k].RoomID {
			return out[i].RoomID < out[k].RoomID
		}
		return out[i].Kind < out[k].Kind
	})
	return out
}

// RestoreAll 为注册表中已配置 cron 的房间恢复任务
// 未绑定表单、缺少 cron 或 cron 非法的房间会从注册表中移除；读取失败的房间保留待下次启动
func (s *Scheduler) RestoreAll(ctx context.Context, source ConfigSource, registry RoomRegistry) (int, error) {
	rooms, err := registry.List(ctx)
	if err != nil {
		return 0, err
	}

	kept := make([]string, 0, len(rooms))
	restored := 0
	for _, roomID := range rooms {
		cfg, err := source.Get(ctx, roomID)
		if err != nil {
			if errors.Is(err, models.ErrNotConfigured) {
				s.logger.Warn("Dropping room without form", zap.String("room_id", roomID))
				continue
			}
			s.logger.Error("Failed to load room config", zap.String("room_id", roomID), zap.Error(err))
			kept = append(kept, roomID)
			continue
		}
		if !cfg.HasSchedule() {
			s.logger.Warn("Dropping room without schedule",
				zap.String("room_id", roomID),
				zap.String("report_cron", cfg.ReportCron),
				zap.String("reminder_cron", cfg.ReminderCron),
			)
			continue
		}
		if err := s.Schedule(roomID, cfg.ReportCron, cfg.ReminderCron, cfg.Timezone); err != nil {
			s.logger.Error("Dropping room with invalid schedule", zap.String("room_id", roomID), zap.Error(err))
			continue
		}
		kept = append(kept, roomID)
		restored++
	}

	if len(kept) != len(rooms) {
		if err := registry.Replace(ctx, kept); err != nil {
			return restored, err
		}
	}
	s.logger.Info("Restored scheduled rooms", zap.Int("restored", restored), zap.Int("registered", len(kept)))
	return restored, nil
}

func (s *Scheduler) stopLocked(roomID string) []Job {
	jobs := s.rooms[roomID]
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		s.cron.Remove(j.entryID)
		j.State = StateStopped
		out = append(out, *j)
	}
	delete(s.rooms, roomID)
	s.logger.Info("Cancelled room jobs", zap.String("room_id", roomID), zap.Int("jobs", len(out)))
	return out
}

func (s *Scheduler) timezone(tz string) string {
	for _, candidate := range []string{tz, s.defaultTZ} {
		if candidate == "" {
			continue
		}
		if _, err := time.LoadLocation(candidate); err == nil {
			return candidate
		}
		s.logger.Warn("Unknown timezone, falling back", zap.String("timezone", candidate))
	}
	return "UTC"
}

func (s *Scheduler) job(roomID string, kind JobKind) cron.Job {
	return cron.FuncJob(func() { s.tick(roomID, kind) })
}

// tick 执行一次任务；错误与 panic 只记录，不影响后续触发
func (s *Scheduler) tick(roomID string, kind JobKind) {
	s.mu.Lock()
	runner, base := s.runner, s.baseCtx
	s.mu.Unlock()

	logger := s.logger.With(zap.String("room_id", roomID), zap.String("kind", string(kind)))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Scheduled job panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	if runner == nil {
		logger.Warn("Scheduler has no runner, skipping tick")
		return
	}

	ctx, cancel := context.WithTimeout(base, s.tickTimeout)
	defer cancel()

	start := time.Now()
	var err error
	switch kind {
	case KindReminder:
		err = runner.RunReminder(ctx, roomID)
	case KindReport:
		err = runner.RunReport(ctx, roomID)
	}
	if err != nil {
		logger.Error("Scheduled job failed", zap.Error(err))
		return
	}
	logger.Info("Scheduled job completed", zap.Duration("duration", time.Since(start)))
}
