package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// 環境変数による上書き。
const (
	EnvDatabasePassword = "CONFIGDEPLOY_DATABASE_PASSWORD"
	EnvEncryptionKey    = "CONFIGDEPLOY_ENCRYPTION_KEY"
	EnvRedisPassword    = "CONFIGDEPLOY_REDIS_PASSWORD"
)

// Config はアプリケーションの設定を表す。
type Config struct {
	App           AppConfig           `yaml:"app"`
	Server        ServerConfig        `yaml:"server"`
	GRPC          GRPCConfig          `yaml:"grpc"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Messaging     MessagingConfig     `yaml:"messaging"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	NATS          NATSConfig          `yaml:"nats"`
	Encryption    EncryptionConfig    `yaml:"encryption"`
	Cache         CacheConfig         `yaml:"cache"`
	Lock          LockConfig          `yaml:"lock"`
	Deployment    DeploymentConfig    `yaml:"deployment"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// AppConfig はアプリケーション情報の設定。
type AppConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment" validate:"omitempty,oneof=development dev test staging production"`
	Tier        string `yaml:"tier"`
}

// ServerConfig は REST サーバーの設定。
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"gt=0,lt=65536"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// GRPCConfig は gRPC サーバーの設定。Port が 0 の場合は起動しない。
type GRPCConfig struct {
	Port int `yaml:"port" validate:"gte=0,lt=65536"`
}

// DatabaseConfig はデータベースの設定。Host が空の場合はメモリ上のリポジトリを使う。
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RedisConfig は Redis の設定。Addr が空の場合はキャッシュと分散ロックを無効にする。
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MessagingConfig はイベント配信先の設定。
type MessagingConfig struct {
	Backend string `yaml:"backend" validate:"omitempty,oneof=kafka nats none"`
}

// KafkaConfig は Kafka の設定。
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics は Kafka のトピック設定。
type KafkaTopics struct {
	Audit string `yaml:"audit"`
}

// NATSConfig は NATS の設定。
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// EncryptionConfig は暗号化エントリ用の鍵設定。
type EncryptionConfig struct {
	MasterKey string `yaml:"master_key"`
	Salt      string `yaml:"salt"`
}

// CacheConfig はフラグ定義キャッシュの設定。
type CacheConfig struct {
	FlagTTL   time.Duration `yaml:"flag_ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// LockConfig は key 単位の書き込みロックの設定。
type LockConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	WaitTimeout   time.Duration `yaml:"wait_timeout"`
}

// DeploymentConfig はデプロイメントの動作設定。
type DeploymentConfig struct {
	AllowFailedRollback bool `yaml:"allow_failed_rollback"`
}

// ObservabilityConfig はログ・トレースの設定。
type ObservabilityConfig struct {
	LogLevel      string  `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	TraceEndpoint string  `yaml:"trace_endpoint"`
	SampleRate    float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// Load は設定ファイルから Config を読み込み、環境変数の上書きと既定値を適用する。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDatabasePassword); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv(EnvEncryptionKey); v != "" {
		c.Encryption.MasterKey = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		c.Redis.Password = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Messaging.Backend == "" {
		c.Messaging.Backend = "none"
	}
	if c.Kafka.Topics.Audit == "" {
		c.Kafka.Topics.Audit = "k1s0.system.configdeploy.audit.v1"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "k1s0.system.configdeploy.audit"
	}
	if c.Cache.FlagTTL == 0 {
		c.Cache.FlagTTL = 30 * time.Second
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "configdeploy:"
	}
	if c.Lock.TTL == 0 {
		c.Lock.TTL = 10 * time.Second
	}
	if c.Lock.RetryInterval == 0 {
		c.Lock.RetryInterval = 50 * time.Millisecond
	}
	if c.Lock.WaitTimeout == 0 {
		c.Lock.WaitTimeout = 5 * time.Second
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
}

// Validate は設定値のバリデーションを行う。
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Messaging.Backend {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required when messaging.backend is kafka")
		}
	case "nats":
		if c.NATS.URL == "" {
			return fmt.Errorf("nats.url is required when messaging.backend is nats")
		}
	}
	if c.Encryption.MasterKey != "" && len(c.Encryption.MasterKey) < 16 {
		return fmt.Errorf("encryption.master_key must be at least 16 bytes")
	}
	return nil
}

// HasDatabase は PostgreSQL を使う設定かどうかを返す。
func (c *Config) HasDatabase() bool {
	return strings.TrimSpace(c.Database.Host) != ""
}

// HasRedis は Redis を使う設定かどうかを返す。
func (c *Config) HasRedis() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

// DSN はデータベース接続文字列を返す。
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
