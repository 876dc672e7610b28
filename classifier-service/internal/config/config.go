package config

import (
	"fmt"
	"os"
	"time"

	pkgconfig "github.com/shamilramasanov/mellchat-sub003/pkg/config"
	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/pkg/pubsub"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	History    HistoryConfig    `mapstructure:"history"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Store      StoreConfig      `mapstructure:"store"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	PubSub     pubsub.Config    `mapstructure:"pubsub"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Log        log.Config       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// HistoryConfig selects where recent user history comes from: "redis"
// keeps its own capped lists, "http" asks the archive store.
type HistoryConfig struct {
	Driver  string        `mapstructure:"driver"`
	Limit   int           `mapstructure:"limit"`
	Timeout time.Duration `mapstructure:"-"` // history.timeout
	TTL     time.Duration `mapstructure:"-"` // history.ttl
	Prefix  string        `mapstructure:"prefix"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StoreConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"-"` // store.timeout
}

type KafkaConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	Brokers             string `mapstructure:"brokers"`
	Topic               string `mapstructure:"topic"`
	GroupID             string `mapstructure:"group_id"`
	AutoOffsetReset     string `mapstructure:"auto_offset_reset"`
	SessionTimeoutMs    int    `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMs int    `mapstructure:"heartbeat_interval_ms"`
}

// ClassifierConfig extends the built-in word lists.
type ClassifierConfig struct {
	ExtraStarters []string `mapstructure:"extra_starters"`
	ExtraEmoji    []string `mapstructure:"extra_emoji"`
}

func Load(configPath string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8093)
	v.SetDefault("history.driver", "redis")
	v.SetDefault("history.limit", 5)
	v.SetDefault("history.timeout", "500ms")
	v.SetDefault("history.ttl", "24h")
	v.SetDefault("history.prefix", "mellchat:history")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.url", "http://localhost:8091")
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "chat-raw-messages")
	v.SetDefault("kafka.group_id", "classifier-service")
	v.SetDefault("kafka.auto_offset_reset", "latest")
	v.SetDefault("kafka.session_timeout_ms", 30000)
	v.SetDefault("kafka.heartbeat_interval_ms", 3000)
	v.SetDefault("pubsub.driver", "redis")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "classifier-service")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "classifier-service")

	// Env overrides (for Docker)
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("history.driver", "HISTORY_DRIVER")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("store.url", "STORE_URL")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	_ = v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	_ = v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.History.Timeout = pkgconfig.Duration(v, "history.timeout", 500*time.Millisecond)
	cfg.History.TTL = pkgconfig.Duration(v, "history.ttl", 24*time.Hour)
	cfg.Store.Timeout = pkgconfig.Duration(v, "store.timeout", 5*time.Second)

	// CLASSIFIER_EXTRA_STARTERS: comma-separated, e.g. "warum,pourquoi"
	if s := os.Getenv("CLASSIFIER_EXTRA_STARTERS"); s != "" {
		cfg.Classifier.ExtraStarters = pkgconfig.SplitList(s)
	}

	return &cfg, nil
}
