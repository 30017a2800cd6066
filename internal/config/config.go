package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	NATS   NATSConfig
	Notify NotifyConfig
	Auth   AuthConfig
	Limits LimitsConfig
	Log    LogConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

// NotifyConfig points at the upstream Node API that forwards
// session-state events to connected clients.
type NotifyConfig struct {
	APIURL  string
	Timeout time.Duration
}

type AuthConfig struct {
	ServiceSecret string
}

// LimitsConfig holds session time caps (integer seconds) and the
// timing knobs for quota enforcement and transcript handoff.
type LimitsConfig struct {
	CallLifetimeSeconds      int64
	PracticeDailySeconds     int64
	RoleplayBasicSeconds     int64
	RoleplayProSeconds       int64
	SpeakingGoalSeconds      int64
	QuotaCheckInterval       time.Duration
	TranscriptWaitTimeout    time.Duration
	ReportRateLimitPerMinute int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		Notify: NotifyConfig{
			APIURL: k.String("notify.api.url"),
		},
		Auth: AuthConfig{
			ServiceSecret: k.String("auth.service.secret"),
		},
		Limits: LimitsConfig{
			CallLifetimeSeconds:      k.Int64("limits.call.lifetime.seconds"),
			PracticeDailySeconds:     k.Int64("limits.practice.daily.seconds"),
			RoleplayBasicSeconds:     k.Int64("limits.roleplay.basic.seconds"),
			RoleplayProSeconds:       k.Int64("limits.roleplay.pro.seconds"),
			SpeakingGoalSeconds:      k.Int64("limits.speaking.goal.seconds"),
			ReportRateLimitPerMinute: k.Int("limits.report.rate.per.minute"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "voicebridge"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "voicebridge"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Notify.APIURL == "" {
		cfg.Notify.APIURL = "http://localhost:8082"
	}
	if cfg.Limits.CallLifetimeSeconds == 0 {
		cfg.Limits.CallLifetimeSeconds = 300
	}
	if cfg.Limits.PracticeDailySeconds == 0 {
		cfg.Limits.PracticeDailySeconds = 300
	}
	if cfg.Limits.RoleplayBasicSeconds == 0 {
		cfg.Limits.RoleplayBasicSeconds = 300
	}
	if cfg.Limits.RoleplayProSeconds == 0 {
		cfg.Limits.RoleplayProSeconds = 600
	}
	if cfg.Limits.SpeakingGoalSeconds == 0 {
		cfg.Limits.SpeakingGoalSeconds = 300
	}
	if cfg.Limits.ReportRateLimitPerMinute == 0 {
		cfg.Limits.ReportRateLimitPerMinute = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if raw := k.String("server.cors.origins"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.CORSOrigins = append(cfg.Server.CORSOrigins, o)
			}
		}
	}

	// Parse durations
	notifyTimeoutStr := k.String("notify.timeout")
	if notifyTimeoutStr == "" {
		notifyTimeoutStr = "5s"
	}
	cfg.Notify.Timeout, err = time.ParseDuration(notifyTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing notify timeout: %w", err)
	}

	checkIntervalStr := k.String("limits.quota.check.interval")
	if checkIntervalStr == "" {
		checkIntervalStr = "10s"
	}
	cfg.Limits.QuotaCheckInterval, err = time.ParseDuration(checkIntervalStr)
	if err != nil {
		return nil, fmt.Errorf("parsing quota check interval: %w", err)
	}

	waitTimeoutStr := k.String("limits.transcript.wait.timeout")
	if waitTimeoutStr == "" {
		waitTimeoutStr = "120s"
	}
	cfg.Limits.TranscriptWaitTimeout, err = time.ParseDuration(waitTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing transcript wait timeout: %w", err)
	}

	return cfg, nil
}
