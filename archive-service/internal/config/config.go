package config

import (
	"fmt"
	"os"
	"time"

	pkgconfig "github.com/shamilramasanov/mellchat-sub003/pkg/config"
	"github.com/shamilramasanov/mellchat-sub003/pkg/database"
	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  database.Config `mapstructure:"database"`
	Cassandra CassandraConfig `mapstructure:"cassandra"`
	IDGen     IDGenConfig     `mapstructure:"idgen"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	PubSub    pubsub.Config   `mapstructure:"pubsub"`
	Persist   PersistConfig   `mapstructure:"persist"`
	Log       log.Config      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StoreConfig selects the message backend: "sql" or "cassandra".
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type CassandraConfig struct {
	Hosts          []string      `mapstructure:"hosts"`
	Keyspace       string        `mapstructure:"keyspace"`
	Consistency    string        `mapstructure:"consistency"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	ConnectTimeout time.Duration `mapstructure:"-"` // cassandra.connect_timeout
	Timeout        time.Duration `mapstructure:"-"` // cassandra.timeout
}

type IDGenConfig struct {
	MachineID int64 `mapstructure:"machine_id"`
	Epoch     int64 `mapstructure:"epoch"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Prefix  string        `mapstructure:"prefix"`
	TTL     time.Duration `mapstructure:"-"` // cache.ttl
}

// PersistConfig controls the subscriber that stores classified messages.
type PersistConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func Load(configPath string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8091)
	v.SetDefault("store.driver", "sql")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "mellchat.db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("cassandra.hosts", []string{"localhost:9042"})
	v.SetDefault("cassandra.keyspace", "mellchat")
	v.SetDefault("cassandra.consistency", "LOCAL_ONE")
	v.SetDefault("cassandra.connect_timeout", "10s")
	v.SetDefault("cassandra.timeout", "5s")
	v.SetDefault("idgen.machine_id", 1)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.prefix", "mellchat:archive")
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("pubsub.driver", "redis")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "archive-service")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("pubsub.kafka.offset_reset", "earliest")
	v.SetDefault("persist.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "archive-service")

	// Env overrides (for Docker)
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("store.driver", "STORE_DRIVER")
	_ = v.BindEnv("database.driver", "DB_DRIVER")
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.dbname", "DB_NAME")
	_ = v.BindEnv("database.file_path", "DB_FILE_PATH")
	_ = v.BindEnv("cassandra.keyspace", "CASSANDRA_KEYSPACE")
	_ = v.BindEnv("idgen.machine_id", "MACHINE_ID")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	_ = v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	// Durations are parsed separately so a malformed value falls back to
	// its default instead of failing the whole load.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Cassandra.ConnectTimeout = pkgconfig.Duration(v, "cassandra.connect_timeout", 10*time.Second)
	cfg.Cassandra.Timeout = pkgconfig.Duration(v, "cassandra.timeout", 5*time.Second)
	cfg.Cache.TTL = pkgconfig.Duration(v, "cache.ttl", 30*time.Second)

	// CASSANDRA_HOSTS: comma-separated, e.g. "cassandra:9042" or "host1:9042,host2:9042"
	if hosts := os.Getenv("CASSANDRA_HOSTS"); hosts != "" {
		cfg.Cassandra.Hosts = pkgconfig.SplitList(hosts)
	}

	return &cfg, nil
}
