package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	commoncfg "standup-formstack/common/config"

	"github.com/google/uuid"
)

// Config standup-bot 配置
type Config struct {
	BotName string

	Formstack FormstackConfig

	// Store 持久化后端："redis" 或 "postgres"
	Store struct {
		Backend      string
		ReadyTimeout time.Duration
	}
	Redis    commoncfg.RedisConfig
	Database commoncfg.DatabaseConfig

	// Chat 聊天传输："mqtt" 或 "console"
	Chat struct {
		Transport   string
		TopicPrefix string
	}
	MQTT commoncfg.MQTTConfig

	// Events 活动事件写入的 Redis Stream（仅 redis 后端，空串关闭）
	Events struct {
		Stream string
		MaxLen int64
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// FormstackConfig Formstack 相关配置
type FormstackConfig struct {
	Token        string
	APIBase      string
	Prefix       string        // 命令前缀，非空时命令为 "{prefix}-standup"
	Hear         bool          // 是否被动监听（无需 @ 机器人）
	LookbackDays int           // 提交记录回溯天数
	Timezone     string        // 默认时区
	HTTPTimeout  time.Duration

	// 报告中 "Yesterday" 段的标题，表单用 "previous standup" 时可改
	YesterdayLabel string

	// 兼容旧版：通过环境变量绑定单个房间
	LegacyFormID       string
	LegacyRoom         string
	LegacyReminderCron string
	LegacyReportCron   string
}

const (
	DefaultTimezone     = "America/New_York"
	DefaultLookbackDays = 5
)

// Load 从环境变量加载配置
func Load() *Config {
	cfg := &Config{}
	cfg.BotName = getEnv("BOT_NAME", "hubot")

	cfg.Formstack.Token = getEnv("FORMSTACK_TOKEN", "")
	cfg.Formstack.APIBase = strings.TrimRight(getEnv("FORMSTACK_API_BASE", "https://www.formstack.com/api/v2"), "/")
	cfg.Formstack.Prefix = getEnv("FORMSTACK_PREFIX", "")
	cfg.Formstack.Hear = parseBool(getEnv("FORMSTACK_HEAR", "false"))
	cfg.Formstack.LookbackDays = parseInt(getEnv("FORMSTACK_SUBMISSIONS_LOOKBACK", "5"), DefaultLookbackDays)
	if cfg.Formstack.LookbackDays < 0 {
		cfg.Formstack.LookbackDays = DefaultLookbackDays
	}
	cfg.Formstack.Timezone = getEnv("FORMSTACK_TIMEZONE", DefaultTimezone)
	cfg.Formstack.HTTPTimeout = parseDuration(getEnv("FORMSTACK_HTTP_TIMEOUT", "10s"), 10*time.Second)
	cfg.Formstack.YesterdayLabel = getEnv("FORMSTACK_YESTERDAY_LABEL", "Yesterday")
	cfg.Formstack.LegacyFormID = getEnv("FORMSTACK_FORM_ID", "")
	cfg.Formstack.LegacyRoom = getEnv("FORMSTACK_CHAT_ROOM_NAME", "")
	cfg.Formstack.LegacyReminderCron = getEnv("FORMSTACK_REMINDER_CRON", "")
	cfg.Formstack.LegacyReportCron = getEnv("FORMSTACK_STANDUP_REPORT_CRON", "")

	cfg.Store.Backend = strings.ToLower(getEnv("STORE_BACKEND", "redis"))
	cfg.Store.ReadyTimeout = parseDuration(getEnv("STORE_READY_TIMEOUT", "60s"), time.Minute)

	cfg.Redis = commoncfg.DefaultRedisConfig()
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Database = commoncfg.DefaultDatabaseConfig("standup")
	cfg.Database.LoadFromEnv("DB")

	cfg.Chat.Transport = strings.ToLower(getEnv("CHAT_TRANSPORT", "mqtt"))
	cfg.Chat.TopicPrefix = strings.Trim(getEnv("MQTT_TOPIC_PREFIX", "standup"), "/")

	cfg.MQTT = commoncfg.DefaultMQTTConfig("standup-bot-" + uuid.NewString()[:8])
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Events.Stream = os.Getenv("EVENTS_STREAM")
	if _, set := os.LookupEnv("EVENTS_STREAM"); !set {
		cfg.Events.Stream = "standup:events"
	}
	cfg.Events.MaxLen = int64(parseInt(getEnv("EVENTS_STREAM_MAXLEN", "10000"), 10000))

	cfg.HTTP.Addr = os.Getenv("HTTP_ADDR")
	if _, set := os.LookupEnv("HTTP_ADDR"); !set {
		cfg.HTTP.Addr = ":8081"
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

// CommandKeyword 返回带前缀的命令关键字，如 "standup" 或 "team-standup"
func (c *Config) CommandKeyword() string {
	if c.Formstack.Prefix == "" {
		return "standup"
	}
	return c.Formstack.Prefix + "-standup"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && v
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
