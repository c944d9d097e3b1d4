package service

import (
	"context"
	"fmt"

	"standup-formstack/internal/chat"
	"standup-formstack/internal/config"
	"standup-formstack/internal/events"
	"standup-formstack/internal/formstack"
	"standup-formstack/internal/report"
	"standup-formstack/internal/roomconfig"
	"standup-formstack/internal/scheduler"
	"standup-formstack/internal/store"
	"standup-formstack/internal/submission"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StandupService 站会机器人：处理聊天命令、执行定时提醒与报告
type StandupService struct {
	config    *config.Config
	logger    *zap.Logger
	kv        store.KV
	platform  chat.Platform
	formstack *formstack.Client
	rooms     *roomconfig.Store
	fetcher   *submission.Fetcher
	engine    *report.Engine
	scheduler *scheduler.Scheduler
	parser    *Parser
	keyword   string
	events    events.Publisher
}

// NewStandupService 创建站会服务
func NewStandupService(cfg *config.Config, kv store.KV, platform chat.Platform, logger *zap.Logger) *StandupService {
	fs := cfg.Formstack
	client := formstack.NewClient(fs.APIBase, fs.Token, fs.HTTPTimeout, logger)
	keyword := cfg.CommandKeyword()

	return &StandupService{
		config:    cfg,
		logger:    logger,
		kv:        kv,
		platform:  platform,
		formstack: client,
		rooms:     roomconfig.NewStore(kv, client, fs.Timezone, logger),
		fetcher:   submission.NewFetcher(client, fs.LookbackDays, fs.Timezone, logger),
		engine:    report.NewEngine(cfg.BotName, fs.YesterdayLabel, nil),
		scheduler: scheduler.New(fs.Timezone, logger),
		parser:    NewParser(cfg.BotName, keyword, fs.Hear),
		keyword:   keyword,
		events:    events.Nop{},
	}
}

// WithEvents 记录房间活动事件
func (s *StandupService) WithEvents(p events.Publisher) *StandupService {
	s.events = p
	return s
}

// Rooms 房间配置存储
func (s *StandupService) Rooms() *roomconfig.Store { return s.rooms }

// Scheduler 定时任务管理
func (s *StandupService) Scheduler() *scheduler.Scheduler { return s.scheduler }

// Start 恢复定时任务、执行环境变量绑定，然后阻塞处理聊天消息
func (s *StandupService) Start(ctx context.Context) error {
	s.logger.Info("Starting standup service",
		zap.String("bot_name", s.config.BotName),
		zap.String("keyword", s.keyword),
		zap.Bool("hear", s.config.Formstack.Hear),
		zap.Bool("token_configured", s.formstack.HasToken()),
	)

	s.scheduler.Start(ctx, s)

	if _, err := s.scheduler.RestoreAll(ctx, s.rooms, s.rooms.Registry()); err != nil {
		s.logger.Error("Failed to restore scheduled jobs", zap.Error(err))
	}
	if err := s.Bootstrap(ctx); err != nil {
		s.logger.Error("Environment bootstrap failed", zap.Error(err))
	}

	if err := s.platform.Run(ctx, s.HandleMessage); err != nil {
		return fmt.Errorf("chat transport stopped: %w", err)
	}
	return nil
}

// Stop 停止定时任务，等待执行中的任务结束
func (s *StandupService) Stop(ctx context.Context) error {
	s.scheduler.Stop(ctx)
	s.logger.Info("Standup service stopped")
	return nil
}

// HandleMessage 处理一条聊天消息；错误与 panic 在此转为房间提示
func (s *StandupService) HandleMessage(ctx context.Context, msg chat.Message) {
	cmd, ok := s.parser.Parse(msg.Text)
	if !ok {
		return
	}

	requestID := uuid.NewString()
	ctx = context.WithValue(ctx, requestIDKey{}, requestID)
	logger := s.logger.With(
		zap.String("request_id", requestID),
		zap.String("room_id", msg.RoomID),
		zap.String("user", msg.User),
		zap.String("command", cmd.Kind.String()),
	)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Command panicked", zap.Any("panic", r), zap.Stack("stack"))
			s.post(ctx, msg.RoomID, msgStoreIssue)
		}
	}()

	logger.Info("Bot responding to command", zap.String("arg", cmd.Arg))
	if err := s.dispatch(ctx, msg.RoomID, cmd, logger); err != nil {
		logger.Error("Command failed", zap.Error(err))
		s.post(ctx, msg.RoomID, errorMessage(err))
	}
}

type requestIDKey struct{}

// emit 记录活动事件，命令触发时附带 request_id
func (s *StandupService) emit(ctx context.Context, e events.Event) {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		e.RequestID = id
	}
	s.events.Publish(ctx, e)
}

// post 发送失败只记录日志
func (s *StandupService) post(ctx context.Context, roomID string, texts ...string) {
	for _, text := range texts {
		if err := s.platform.PostMessage(ctx, roomID, text); err != nil {
			s.logger.Error("Failed to post message", zap.String("room_id", roomID), zap.Error(err))
		}
	}
}
