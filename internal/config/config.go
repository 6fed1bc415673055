package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	commoncfg "emmo-data/internal/common/config"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config emmo-data（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr           string `yaml:"addr"`
		UploadMaxBytes int64  `yaml:"upload_max_bytes"`
	} `yaml:"http"`
	Database commoncfg.DatabaseConfig `yaml:"database"`
	Redis    RedisConfig              `yaml:"redis"`
	Log      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Dashboard struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"dashboard"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	EventStream EventStreamConfig `yaml:"event_stream"`
	Storage     StorageConfig     `yaml:"storage"`
}

type RedisConfig struct {
	Enabled                bool `yaml:"enabled"`
	commoncfg.RedisConfig `yaml:",inline"`
}

// MQTTConfig 状态变更事件的MQTT发布配置
type MQTTConfig struct {
	Enabled               bool   `yaml:"enabled"`
	Topic                 string `yaml:"topic"` // events go to <topic>/<record_id>
	commoncfg.MQTTConfig `yaml:",inline"`
}

type WebhookConfig struct {
	URL string `yaml:"url"` // empty disables the webhook sink
}

// EventStreamConfig publishes events to a Redis stream; requires Redis.
type EventStreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

// StorageConfig S3兼容文档存储
type StorageConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.UploadMaxBytes = 20 << 20

	cfg.Database = commoncfg.DatabaseConfig{
		Driver:   commoncfg.DriverPostgres,
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "emmo",
		SSLMode:  "disable",
		Path:     "emmo.db",
		MaxConns: 10,
		MaxIdle:  5,
	}

	cfg.Redis.Addr = "localhost:6379"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Dashboard.CacheTTL = 30 * time.Second

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "emmo-data"
	cfg.MQTT.QoS = 1
	cfg.MQTT.Topic = "emmo/maintenance/status"

	cfg.EventStream.Name = "emmo:maintenance:events"
	cfg.Storage.Bucket = "emmo-documents"
	return cfg
}

// Load builds the configuration: defaults, then the YAML file (if configFile is set),
// then environment variables, then flags that were explicitly changed.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := defaults()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if flags != nil {
		if flags.Changed("addr") {
			cfg.HTTP.Addr, _ = flags.GetString("addr")
		}
		if flags.Changed("log-level") {
			cfg.Log.Level, _ = flags.GetString("log-level")
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromEnv() {
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.UploadMaxBytes = int64(parseInt(getEnv("UPLOAD_MAX_BYTES", ""), int(c.HTTP.UploadMaxBytes)))

	c.Database.LoadFromEnv("DB")
	c.Redis.Enabled = parseBool(getEnv("REDIS_ENABLED", ""), c.Redis.Enabled)
	c.Redis.RedisConfig.LoadFromEnv("REDIS")

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	if ttl := getEnv("DASHBOARD_CACHE_TTL", ""); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			c.Dashboard.CacheTTL = d
		}
	}

	c.MQTT.Enabled = parseBool(getEnv("MQTT_ENABLED", ""), c.MQTT.Enabled)
	c.MQTT.MQTTConfig.LoadFromEnv("MQTT")
	c.MQTT.Topic = getEnv("MQTT_TOPIC", c.MQTT.Topic)

	c.Webhook.URL = getEnv("WEBHOOK_URL", c.Webhook.URL)
	c.EventStream.Enabled = parseBool(getEnv("EVENT_STREAM_ENABLED", ""), c.EventStream.Enabled)
	c.EventStream.Name = getEnv("EVENT_STREAM_NAME", c.EventStream.Name)

	c.Storage.Enabled = parseBool(getEnv("STORAGE_ENABLED", ""), c.Storage.Enabled)
	c.Storage.Endpoint = getEnv("STORAGE_ENDPOINT", c.Storage.Endpoint)
	c.Storage.AccessKey = getEnv("STORAGE_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = getEnv("STORAGE_SECRET_KEY", c.Storage.SecretKey)
	c.Storage.Bucket = getEnv("STORAGE_BUCKET", c.Storage.Bucket)
	c.Storage.Secure = parseBool(getEnv("STORAGE_SECURE", ""), c.Storage.Secure)
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case commoncfg.DriverPostgres, commoncfg.DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.HTTP.UploadMaxBytes <= 0 {
		return fmt.Errorf("upload_max_bytes must be positive")
	}
	if c.EventStream.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("event stream requires redis to be enabled")
	}
	if c.Storage.Enabled && c.Storage.Endpoint == "" {
		return fmt.Errorf("storage endpoint is required when storage is enabled")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return def
}
