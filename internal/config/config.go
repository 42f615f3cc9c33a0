// Package config loads service configuration from a YAML file and
// FIELDCHECK_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StorageConfig selects the repository backend for officers, records,
// sessions and the query log.
type StorageConfig struct {
	Backend string `validate:"oneof=memory bbolt postgres"`
	Path    string // bbolt data directory
	DSN     string // postgres connection string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SessionConfig carries the per-channel TTL policy. The WhatsApp TTL
// slides on activity but never past MaxLifetime; the USSD TTL is fixed.
type SessionConfig struct {
	Backend        string        `validate:"oneof=repository redis"`
	USSDTTL        time.Duration `validate:"gt=0"`
	WhatsAppTTL    time.Duration `validate:"gt=0"`
	WhatsAppMaxTTL time.Duration `validate:"gt=0"`
}

type RateLimitConfig struct {
	DailyLimit int `validate:"gt=0"`
	ResetHour  int `validate:"gte=0,lte=23"`
}

type WhatsAppConfig struct {
	APIURL string
	Token  string
}

type USSDConfig struct {
	Shortcode string
}

type AdminConfig struct {
	Token string
}

type RetentionConfig struct {
	QueryLogDays int `validate:"gt=0"`
}

type AppConfig struct {
	Environment string
	HTTP        HTTPConfig
	Storage     StorageConfig
	Redis       RedisConfig
	Sessions    SessionConfig
	RateLimit   RateLimitConfig
	WhatsApp    WhatsAppConfig
	USSD        USSDConfig
	Admin       AdminConfig
	Retention   RetentionConfig
}

// Load reads config.yaml (working directory or ./config) merged with
// environment overrides, applies defaults, and validates the result.
func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("FIELDCHECK")
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

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("storage.backend", "bbolt")
	v.SetDefault("storage.path", "./data")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("sessions.backend", "repository")
	v.SetDefault("sessions.ussdttl", "180s")
	v.SetDefault("sessions.whatsappttl", "5m")
	v.SetDefault("sessions.whatsappmaxttl", "10m")

	v.SetDefault("ratelimit.dailylimit", 50)
	v.SetDefault("ratelimit.resethour", 0)

	v.SetDefault("ussd.shortcode", "*225#")

	v.SetDefault("retention.querylogdays", 90)
}
