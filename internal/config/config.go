package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	// 采集与清理的 cron 表达式
	CronSpec          string
	RetentionCronSpec string
	RetentionDays     int

	FetchTimeout  time.Duration
	FetchMaxItems int

	// 可选的 YAML 数据源清单；为空时使用内置清单
	SourcesFile string

	// 采集触发与编辑接口的 Basic Auth，留空则不启用
	BasicAuthUser string
	BasicAuthPass string
}

func Load() *Config {
	cfg := &Config{
		AppPort:           getEnv("APP_PORT", "9000"),
		PostgresDSN:       getEnv("POSTGRES_DSN", "host=localhost user=kickoff password=kickoff dbname=kickoff port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		CronSpec:          getEnv("CRON_SPEC", "*/15 * * * *"),
		RetentionCronSpec: getEnv("RETENTION_CRON_SPEC", "30 3 * * *"),
		RetentionDays:     getEnvInt("RETENTION_DAYS", 30),
		FetchTimeout:      getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		FetchMaxItems:     getEnvInt("FETCH_MAX_ITEMS", 20),
		SourcesFile:       getEnv("SOURCES_FILE", ""),
		BasicAuthUser:     getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:     getEnv("APP_BASIC_PASS", ""),
	}

	slog.Info("config loaded", "port", cfg.AppPort, "cron", cfg.CronSpec, "retention_days", cfg.RetentionDays)
	return cfg
}

// RetentionWindow 文章保留时长
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Sources 返回数据源清单：配置了 SOURCES_FILE 则从 YAML 读取，否则返回内置清单
func (c *Config) Sources() ([]SourceConfig, error) {
	if c.SourcesFile == "" {
		return DefaultSources(), nil
	}
	return LoadSources(c.SourcesFile)
}

// LoadSources 通过 koanf 读取 YAML 数据源清单
//
//	sources:
//	  - code: bbc-football
//	    name: BBC Sport
//	    url: https://feeds.bbci.co.uk/sport/football/rss.xml
//	    tier: tier1
func LoadSources(path string) ([]SourceConfig, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: load sources file %s: %w", path, err)
	}

	var out []SourceConfig
	if err := k.Unmarshal("sources", &out); err != nil {
		return nil, fmt.Errorf("config: decode sources: %w", err)
	}

	valid := out[:0]
	for _, s := range out {
		if s.Code == "" || s.URL == "" {
			slog.Warn("config: skip source without code or url", "name", s.Name)
			continue
		}
		if s.Tier == "" {
			s.Tier = "tier3"
		}
		if s.Language == "" {
			s.Language = "en"
		}
		valid = append(valid, s)
	}
	return valid, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("config: invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("config: invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
