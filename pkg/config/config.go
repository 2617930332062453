package config

import (
	"os"
	"time"

	"atelier/pkg/matching"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// Config global configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Redis        RedisConfig        `yaml:"redis"`
	MySQL        MySQLConfig        `yaml:"mysql"`
	Store        StoreConfig        `yaml:"store"`
	Queue        QueueConfig        `yaml:"queue"`
	Logger       LoggerConfig       `yaml:"logger"`
	Matching     MatchingConfig     `yaml:"matching"`
	Jobs         JobsConfig         `yaml:"jobs"`
	Notification NotificationConfig `yaml:"notification"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Port        int      `yaml:"port"`
	Mode        string   `yaml:"mode"`         // debug, release
	APIKey      string   `yaml:"api_key"`      // admin API key (optional, if empty and no jwt_secret, auth is disabled)
	JWTSecret   string   `yaml:"jwt_secret"`   // HMAC secret for actor tokens
	CORSOrigins []string `yaml:"cors_origins"` // allowed origins, empty means "*"
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis address is configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// MySQLConfig MySQL configuration
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver string `yaml:"driver"` // mysql, memory
}

// QueueConfig side-effect queue configuration
type QueueConfig struct {
	Concurrency int `yaml:"concurrency"` // consumer concurrency
	MaxRetry    int `yaml:"max_retry"`   // maximum delivery retry count
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MatchingConfig matching engine configuration
type MatchingConfig struct {
	Weights          matching.Weights   `yaml:"weights"`
	AcceptanceWindow time.Duration      `yaml:"acceptance_window"` // e.g. 30m
	TierBudgets      map[string]float64 `yaml:"tier_budgets"`      // price tier -> minimum budget hint
}

// JobsConfig background job configuration
type JobsConfig struct {
	ExpirySweepInterval time.Duration `yaml:"expiry_sweep_interval"`
	ExpiryBatchSize     int           `yaml:"expiry_batch_size"`
}

// NotificationConfig side-effect delivery targets
type NotificationConfig struct {
	FeishuWebhookURL       string `yaml:"feishu_webhook_url"`       // admin alerts
	CollaboratorWebhookURL string `yaml:"collaborator_webhook_url"` // chat/notification layer
}

const (
	DefaultPort                = 8080
	DefaultStoreDriver         = "mysql"
	DefaultQueueConcurrency    = 10
	DefaultQueueMaxRetry       = 3
	DefaultAcceptanceWindow    = 30 * time.Minute
	DefaultExpirySweepInterval = time.Minute
	DefaultExpiryBatchSize     = 100
	DefaultLogMaxSizeMB        = 100
	DefaultLogMaxBackups       = 7
	DefaultLogMaxAgeDays       = 30
)

// Init initializes configuration
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	cfg, err := Parse(data)
	if err != nil {
		return err
	}

	GlobalConfig = cfg
	return nil
}

// Parse decodes YAML and applies defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	validateAndApplyDefaults(&cfg)
	return &cfg, nil
}

// validateAndApplyDefaults replaces zero or invalid values with defaults
func validateAndApplyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}

	switch cfg.Store.Driver {
	case "mysql", "memory":
	default:
		cfg.Store.Driver = DefaultStoreDriver
	}

	if cfg.Queue.Concurrency <= 0 {
		cfg.Queue.Concurrency = DefaultQueueConcurrency
	}
	if cfg.Queue.MaxRetry < 0 {
		cfg.Queue.MaxRetry = DefaultQueueMaxRetry
	}

	if cfg.Logger.File.MaxSizeMB <= 0 {
		cfg.Logger.File.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if cfg.Logger.File.MaxBackups <= 0 {
		cfg.Logger.File.MaxBackups = DefaultLogMaxBackups
	}
	if cfg.Logger.File.MaxAgeDays <= 0 {
		cfg.Logger.File.MaxAgeDays = DefaultLogMaxAgeDays
	}

	if cfg.Matching.Weights.IsZero() || !validWeights(cfg.Matching.Weights) {
		cfg.Matching.Weights = matching.DefaultWeights()
	}
	if cfg.Matching.AcceptanceWindow <= 0 {
		cfg.Matching.AcceptanceWindow = DefaultAcceptanceWindow
	}

	if cfg.Jobs.ExpirySweepInterval <= 0 {
		cfg.Jobs.ExpirySweepInterval = DefaultExpirySweepInterval
	}
	if cfg.Jobs.ExpiryBatchSize <= 0 {
		cfg.Jobs.ExpiryBatchSize = DefaultExpiryBatchSize
	}
}

func validWeights(w matching.Weights) bool {
	return w.Skill >= 0 && w.Availability >= 0 && w.Rating >= 0 && w.Fairness >= 0 && w.BudgetFit >= 0
}
