package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the chat service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	JWTSecret         string
	SessionCookieName string
	ChannelBase       string
	ChatCacheTTL      time.Duration
	ChatSendBuffer    int
	ChatPingInterval  time.Duration
	ConnectRateLimit  int
	ConnectRateWindow time.Duration
	CORSAllowOrigins  string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CHAT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Bounty Chat")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("session.cookie_name", "session")
	v.SetDefault("chat.channel_base", "bounty:chat")
	v.SetDefault("chat.cache_ttl", "10m")
	v.SetDefault("chat.send_buffer", 32)
	v.SetDefault("chat.ping_interval", "30s")
	v.SetDefault("chat.connect_rate_limit", 30)
	v.SetDefault("chat.connect_rate_window", "1m")
	v.SetDefault("cors.allow_origins", "*")

	cacheTTL, err := parseDuration(v, "chat.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	pingInterval, err := parseDuration(v, "chat.ping_interval")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "chat.connect_rate_window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		SessionCookieName: v.GetString("session.cookie_name"),
		ChannelBase:       v.GetString("chat.channel_base"),
		ChatCacheTTL:      cacheTTL,
		ChatSendBuffer:    v.GetInt("chat.send_buffer"),
		ChatPingInterval:  pingInterval,
		ConnectRateLimit:  v.GetInt("chat.connect_rate_limit"),
		ConnectRateWindow: rateWindow,
		CORSAllowOrigins:  v.GetString("cors.allow_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.ChatSendBuffer <= 0 {
		cfg.ChatSendBuffer = 32
	}
	if cfg.ChatPingInterval <= 0 {
		cfg.ChatPingInterval = 30 * time.Second
	}
	if strings.TrimSpace(cfg.SessionCookieName) == "" {
		cfg.SessionCookieName = "session"
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
