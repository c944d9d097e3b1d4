package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RedisConfig Redis连接配置
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// DatabaseConfig PostgreSQL连接配置
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConns        int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

// MQTTConfig MQTT连接配置
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

// DefaultRedisConfig 本地开发默认值
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:        "localhost:6379",
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
	}
}

// DefaultDatabaseConfig 本地开发默认值
func DefaultDatabaseConfig(database string) DatabaseConfig {
	return DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		Database:        database,
		SSLMode:         "disable",
		MaxConns:        5,
		MaxIdle:         2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// DefaultMQTTConfig 本地开发默认值
func DefaultMQTTConfig(clientID string) MQTTConfig {
	return MQTTConfig{
		Broker:         "tcp://localhost:1883",
		ClientID:       clientID,
		QoS:            1,
		KeepAlive:      30 * time.Second,
		ConnectTimeout: 10 * time.Second,
	}
}

// GetDSN lib/pq key=value 形式的连接串，值中的空格和引号会被转义
func (c *DatabaseConfig) GetDSN() string {
	parts := []string{
		"host=" + quoteDSN(c.Host),
		fmt.Sprintf("port=%d", c.Port),
		"user=" + quoteDSN(c.User),
		"password=" + quoteDSN(c.Password),
		"dbname=" + quoteDSN(c.Database),
		"sslmode=" + quoteDSN(c.SSLMode),
	}
	return strings.Join(parts, " ")
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// LoadFromEnv 读取 {prefix}_ADDR / _PASSWORD / _DB / _POOL_SIZE / _DIAL_TIMEOUT，未设置的保持原值
func (c *RedisConfig) LoadFromEnv(prefix string) {
	e := envReader(prefix)
	e.str("ADDR", &c.Addr)
	e.str("PASSWORD", &c.Password)
	e.int("DB", &c.DB)
	e.int("POOL_SIZE", &c.PoolSize)
	e.duration("DIAL_TIMEOUT", &c.DialTimeout)
}

// LoadFromEnv 读取 {prefix}_HOST / _PORT / _USER / _PASSWORD / _NAME / _SSLMODE 以及连接池参数
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	e := envReader(prefix)
	e.str("HOST", &c.Host)
	e.int("PORT", &c.Port)
	e.str("USER", &c.User)
	e.str("PASSWORD", &c.Password)
	e.str("NAME", &c.Database)
	e.str("SSLMODE", &c.SSLMode)
	e.int("MAX_CONNS", &c.MaxConns)
	e.int("MAX_IDLE", &c.MaxIdle)
	e.duration("CONN_MAX_LIFETIME", &c.ConnMaxLifetime)
}

// LoadFromEnv 读取 {prefix}_BROKER / _CLIENT_ID / _USERNAME / _PASSWORD / _QOS 等
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	e := envReader(prefix)
	e.str("BROKER", &c.Broker)
	e.str("CLIENT_ID", &c.ClientID)
	e.str("USERNAME", &c.Username)
	e.str("PASSWORD", &c.Password)
	e.duration("KEEP_ALIVE", &c.KeepAlive)
	e.duration("CONNECT_TIMEOUT", &c.ConnectTimeout)

	qos := int(c.QoS)
	e.int("QOS", &qos)
	if qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
}

// envReader 按前缀读取环境变量；空值和无法解析的值都忽略
type envReader string

func (p envReader) lookup(name string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(string(p) + "_" + name))
	return v, v != ""
}

func (p envReader) str(name string, dst *string) {
	if v, ok := p.lookup(name); ok {
		*dst = v
	}
}

func (p envReader) int(name string, dst *int) {
	if v, ok := p.lookup(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (p envReader) duration(name string, dst *time.Duration) {
	if v, ok := p.lookup(name); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}
