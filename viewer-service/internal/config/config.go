package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/shamilramasanov/mellchat-sub003/pkg/config"
	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Live      LiveConfig      `mapstructure:"live"`
	PubSub    pubsub.Config   `mapstructure:"pubsub"`
	Log       log.Config      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StoreConfig points at the archive store HTTP API.
type StoreConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"-"` // store.timeout
}

type ArchiveConfig struct {
	ClearTimeout time.Duration `mapstructure:"-"` // archive.clear_timeout
	FetchTimeout time.Duration `mapstructure:"-"` // archive.fetch_timeout
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"-"` // websocket.ping_interval
	PongWait       time.Duration `mapstructure:"-"` // websocket.pong_wait
	WriteWait      time.Duration `mapstructure:"-"` // websocket.write_wait
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

// LiveConfig toggles the WebSocket feed of classified messages.
type LiveConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func Load(configPath string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8092)
	v.SetDefault("store.url", "http://localhost:8091")
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("archive.clear_timeout", "10s")
	v.SetDefault("archive.fetch_timeout", "5s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("live.enabled", true)
	v.SetDefault("pubsub.driver", "redis")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "viewer-service")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("pubsub.kafka.offset_reset", "latest")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "viewer-service")

	// Env overrides (for Docker)
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("store.url", "STORE_URL")
	_ = v.BindEnv("store.timeout", "STORE_TIMEOUT")
	_ = v.BindEnv("live.enabled", "LIVE_ENABLED")
	_ = v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	_ = v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("pubsub.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Timeout = pkgconfig.Duration(v, "store.timeout", 5*time.Second)
	cfg.Archive.ClearTimeout = pkgconfig.Duration(v, "archive.clear_timeout", 10*time.Second)
	cfg.Archive.FetchTimeout = pkgconfig.Duration(v, "archive.fetch_timeout", 5*time.Second)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)

	return &cfg, nil
}
