package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Calendar CalendarConfig
	SLA      SLAConfig
	Routing  RoutingConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LogConfig selects encoding, level and where log lines are written.
// Output is one of stdout, file or both; file output is rotated.
type LogConfig struct {
	Level      string
	Format     string
	Output     string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// CalendarConfig configures the bank holiday provider and its fallbacks.
type CalendarConfig struct {
	HolidaysURL     string
	Division        string
	CacheFile       string
	FetchTimeout    time.Duration
	RefreshInterval time.Duration
	FailOpen        bool
	RedisKey        string
	RedisTTL        time.Duration
}

// SLAConfig configures the daily SLA clock.
type SLAConfig struct {
	Timezone         string
	Location         *time.Location
	CutoffHour       int
	CutoffMinute     int
	RunHour          int
	RunMinute        int
	SchedulerEnabled bool
	MaxRetries       int
	RetryDelay       time.Duration
}

// RoutingConfig holds routing engine settings.
type RoutingConfig struct {
	SystemUserID string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:      v.GetString("LOG_LEVEL"),
		Format:     v.GetString("LOG_FORMAT"),
		Output:     strings.ToLower(v.GetString("LOG_OUTPUT")),
		FilePath:   v.GetString("LOG_FILE_PATH"),
		MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
		MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
		Compress:   v.GetBool("LOG_COMPRESS"),
	}

	cfg.Calendar = CalendarConfig{
		HolidaysURL:     v.GetString("CALENDAR_HOLIDAYS_URL"),
		Division:        v.GetString("CALENDAR_DIVISION"),
		CacheFile:       v.GetString("CALENDAR_CACHE_FILE"),
		FetchTimeout:    parseDuration(v.GetString("CALENDAR_FETCH_TIMEOUT"), 5*time.Second),
		RefreshInterval: parseDuration(v.GetString("CALENDAR_REFRESH_INTERVAL"), 24*time.Hour),
		FailOpen:        v.GetBool("CALENDAR_FAIL_OPEN"),
		RedisKey:        v.GetString("CALENDAR_REDIS_KEY"),
		RedisTTL:        parseDuration(v.GetString("CALENDAR_REDIS_TTL"), 7*24*time.Hour),
	}

	sla, err := loadSLA(v)
	if err != nil {
		return nil, err
	}
	cfg.SLA = sla

	cfg.Routing = RoutingConfig{
		SystemUserID: v.GetString("ROUTING_SYSTEM_USER_ID"),
	}

	return cfg, nil
}

func loadSLA(v *viper.Viper) (SLAConfig, error) {
	tz := v.GetString("SLA_TIMEZONE")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return SLAConfig{}, fmt.Errorf("load SLA timezone %q: %w", tz, err)
	}
	cutoffHour, cutoffMinute, err := ParseClock(v.GetString("SLA_CUTOFF_TIME"))
	if err != nil {
		return SLAConfig{}, fmt.Errorf("parse SLA_CUTOFF_TIME: %w", err)
	}
	runHour, runMinute, err := ParseClock(v.GetString("SLA_RUN_TIME"))
	if err != nil {
		return SLAConfig{}, fmt.Errorf("parse SLA_RUN_TIME: %w", err)
	}
	return SLAConfig{
		Timezone:         tz,
		Location:         loc,
		CutoffHour:       cutoffHour,
		CutoffMinute:     cutoffMinute,
		RunHour:          runHour,
		RunMinute:        runMinute,
		SchedulerEnabled: v.GetBool("ENABLE_SLA_SCHEDULER"),
		MaxRetries:       v.GetInt("SLA_MAX_RETRIES"),
		RetryDelay:       parseDuration(v.GetString("SLA_RETRY_DELAY"), 3*time.Minute),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "licensing")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("LOG_FILE_PATH", "./logs/case-routing.log")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 30)
	v.SetDefault("LOG_COMPRESS", true)

	v.SetDefault("CALENDAR_HOLIDAYS_URL", "https://www.gov.uk/bank-holidays.json")
	v.SetDefault("CALENDAR_DIVISION", "england-and-wales")
	v.SetDefault("CALENDAR_CACHE_FILE", "./bank-holidays.json")
	v.SetDefault("CALENDAR_FETCH_TIMEOUT", "5s")
	v.SetDefault("CALENDAR_REFRESH_INTERVAL", "24h")
	v.SetDefault("CALENDAR_FAIL_OPEN", true)
	v.SetDefault("CALENDAR_REDIS_KEY", "calendar:bank_holidays")
	v.SetDefault("CALENDAR_REDIS_TTL", "168h")

	v.SetDefault("SLA_TIMEZONE", "Europe/London")
	v.SetDefault("SLA_CUTOFF_TIME", "18:00")
	v.SetDefault("SLA_RUN_TIME", "22:30")
	v.SetDefault("ENABLE_SLA_SCHEDULER", false)
	v.SetDefault("SLA_MAX_RETRIES", 3)
	v.SetDefault("SLA_RETRY_DELAY", "3m")

	v.SetDefault("ROUTING_SYSTEM_USER_ID", "00000000-0000-0000-0000-000000000001")
}

// ParseClock parses an HH:MM wall clock value.
func ParseClock(raw string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
