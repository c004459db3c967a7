package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type PollConfig struct {
	Admin  time.Duration
	HR     time.Duration
	SOC    time.Duration
	User   time.Duration
	Files  time.Duration
	Jitter time.Duration
}

type ReconcileConfig struct {
	IntentTTL time.Duration
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type AuthStateConfig struct {
	Backend string
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

type StorageConfig struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	BucketDownloads string
	UseSSL          bool
	Region          string
	LinkTTL         time.Duration
}

type JobsConfig struct {
	AuditCheck  string
	IntentGauge string
}

type AppConfig struct {
	Environment      string
	API              APIConfig
	Poll             PollConfig
	Reconcile        ReconcileConfig
	HTTP             HTTPConfig
	AuthState        AuthStateConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Jobs             JobsConfig
	AllowCORSOrigins []string
}

const (
	AuthStateMemory   = "memory"
	AuthStateRedis    = "redis"
	AuthStatePostgres = "postgres"
)

// Load reads config.yaml from the usual search paths, or the explicit file
// when path is set, then applies ZTCONSOLE_* environment overrides.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
	}

	v.SetEnvPrefix("ZTCONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.baseurl is required")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	intervals := map[string]time.Duration{
		"poll.admin": c.Poll.Admin,
		"poll.hr":    c.Poll.HR,
		"poll.soc":   c.Poll.SOC,
		"poll.user":  c.Poll.User,
		"poll.files": c.Poll.Files,
	}
	for key, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if c.Poll.Jitter < 0 {
		return errors.New("poll.jitter must not be negative")
	}
	if c.Reconcile.IntentTTL <= 0 {
		return errors.New("reconcile.intentttl must be positive")
	}
	switch c.AuthState.Backend {
	case AuthStateMemory, AuthStateRedis, AuthStatePostgres:
	default:
		return fmt.Errorf("unknown authstate.backend %q", c.AuthState.Backend)
	}
	if c.AuthState.Backend == AuthStatePostgres && c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required for the postgres authstate backend")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("api.baseurl", "http://localhost:8000")
	v.SetDefault("api.timeout", "8s")

	v.SetDefault("poll.admin", "2s")
	v.SetDefault("poll.hr", "3s")
	v.SetDefault("poll.soc", "5s")
	v.SetDefault("poll.user", "5s")
	v.SetDefault("poll.files", "3s")
	v.SetDefault("poll.jitter", "250ms")

	v.SetDefault("reconcile.intentttl", "10s")

	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 8090)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("authstate.backend", AuthStateMemory)

	v.SetDefault("postgres.maxopen", 4)
	v.SetDefault("postgres.maxidle", 1)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "ztconsole:auth")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.bucketdownloads", "ztconsole-downloads")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.linkttl", "15m")

	v.SetDefault("jobs.auditcheck", "*/30 * * * * *")
	v.SetDefault("jobs.intentgauge", "*/5 * * * * *")
}
