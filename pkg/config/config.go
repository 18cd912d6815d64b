package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

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
	Booking  BookingConfig
	Notify   NotifyConfig
	Cache    CacheConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BookingConfig holds the admission-policy knobs: the local timezone the
// booking window is evaluated in, the next-day cutoff, capacity limits and
// per-teacher daily-cap overrides keyed by teacher name.
type BookingConfig struct {
	Timezone          string
	CutoffHour        int
	CutoffMinute      int
	SlotParallelCap   int
	DefaultDailyCap   int
	DailyCapOverrides map[string]int
	MaxAdvanceDays    int
}

// NotifyConfig governs the notification dispatcher and its transport.
type NotifyConfig struct {
	Enabled       bool
	Workers       int
	MaxRetries    int
	SendTimeout   time.Duration
	Provider      string
	FromName      string
	FromEmail     string
	AdminEmail    string
	TeacherEmails map[string]string
	SMTP          SMTPConfig
	SendGridKey   string
}

// SMTPConfig configures the plain-SMTP transport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
}

// CacheConfig tunes the display-layer read-through cache. The admission
// policy never consults this cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
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
		if !errors.As(err, &notFound) {
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Booking = BookingConfig{
		Timezone:          v.GetString("TIMEZONE"),
		CutoffHour:        v.GetInt("BOOKING_CUTOFF_HOUR"),
		CutoffMinute:      v.GetInt("BOOKING_CUTOFF_MINUTE"),
		SlotParallelCap:   v.GetInt("SLOT_PARALLEL_CAP"),
		DefaultDailyCap:   v.GetInt("TEACHER_DAILY_CAP_DEFAULT"),
		DailyCapOverrides: parseIntPairs(v.GetString("TEACHER_DAILY_CAPS")),
		MaxAdvanceDays:    v.GetInt("BOOKING_MAX_ADVANCE_DAYS"),
	}

	cfg.Notify = NotifyConfig{
		Enabled:       v.GetBool("NOTIFY_ENABLED"),
		Workers:       v.GetInt("NOTIFY_WORKERS"),
		MaxRetries:    v.GetInt("NOTIFY_MAX_RETRIES"),
		SendTimeout:   parseDuration(v.GetString("NOTIFY_SEND_TIMEOUT"), 8*time.Second),
		Provider:      v.GetString("EMAIL_PROVIDER"),
		FromName:      v.GetString("EMAIL_FROM_NAME"),
		FromEmail:     v.GetString("EMAIL_FROM"),
		AdminEmail:    v.GetString("ADMIN_EMAIL"),
		TeacherEmails: parsePairs(v.GetString("TEACHER_EMAILS")),
		SMTP: SMTPConfig{
			Host:     v.GetString("EMAIL_HOST"),
			Port:     v.GetInt("EMAIL_PORT"),
			Username: v.GetString("EMAIL_USER"),
			Password: v.GetString("EMAIL_PASS"),
			UseTLS:   v.GetBool("EMAIL_USE_TLS"),
		},
		SendGridKey: v.GetString("SENDGRID_API_KEY"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("BOOKING_CACHE_ENABLED"),
		TTL:     parseDuration(v.GetString("BOOKING_CACHE_TTL"), time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "classbook")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TIMEZONE", "Asia/Kolkata")
	v.SetDefault("BOOKING_CUTOFF_HOUR", 14)
	v.SetDefault("BOOKING_CUTOFF_MINUTE", 0)
	v.SetDefault("SLOT_PARALLEL_CAP", 3)
	v.SetDefault("TEACHER_DAILY_CAP_DEFAULT", 2)
	v.SetDefault("TEACHER_DAILY_CAPS", "")
	v.SetDefault("BOOKING_MAX_ADVANCE_DAYS", 60)

	v.SetDefault("NOTIFY_ENABLED", true)
	v.SetDefault("NOTIFY_WORKERS", 4)
	v.SetDefault("NOTIFY_MAX_RETRIES", 1)
	v.SetDefault("NOTIFY_SEND_TIMEOUT", "8s")
	v.SetDefault("EMAIL_PROVIDER", "console")
	v.SetDefault("EMAIL_FROM_NAME", "Classbook")
	v.SetDefault("EMAIL_FROM", "")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("TEACHER_EMAILS", "")
	v.SetDefault("EMAIL_HOST", "smtp.gmail.com")
	v.SetDefault("EMAIL_PORT", 587)
	v.SetDefault("EMAIL_USER", "")
	v.SetDefault("EMAIL_PASS", "")
	v.SetDefault("EMAIL_USE_TLS", true)
	v.SetDefault("SENDGRID_API_KEY", "")

	v.SetDefault("BOOKING_CACHE_ENABLED", true)
	v.SetDefault("BOOKING_CACHE_TTL", "60s")
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

// parsePairs reads comma-separated key=value pairs, e.g.
// "VIVEKSIR=vivek@example.com,MEGHA=megha@example.com".
func parsePairs(raw string) map[string]string {
	pairs := splitAndTrim(raw)
	if len(pairs) == 0 {
		return nil
	}

	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			continue
		}
		result[key] = value
	}
	if len(result) == 0 {
		return nil
	}

	return result
}

// parseIntPairs reads comma-separated key=int pairs, e.g. "Megha=1,Vivek Sir=3".
// Pairs with a non-numeric or non-positive value are skipped.
func parseIntPairs(raw string) map[string]int {
	pairs := parsePairs(raw)
	if len(pairs) == 0 {
		return nil
	}

	result := make(map[string]int, len(pairs))
	for key, value := range pairs {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			continue
		}
		result[key] = n
	}
	if len(result) == 0 {
		return nil
	}

	return result
}
