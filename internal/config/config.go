// Package config loads application configuration and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Sync       SyncConfig       `yaml:"sync" mapstructure:"sync"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	SpecSvc    SpecSvcConfig    `yaml:"specsvc" mapstructure:"specsvc"`
	Mail       MailConfig       `yaml:"mail" mapstructure:"mail"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SourceConfig configures the inspection source database (read-only).
type SourceConfig struct {
	Driver  string `yaml:"driver" mapstructure:"driver"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
	Workers int    `yaml:"workers" mapstructure:"workers"`
}

// StoreConfig configures the destination Postgres database.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SyncConfig configures the incremental sync run loop.
type SyncConfig struct {
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	Interval  string `yaml:"interval" mapstructure:"interval"`
	// AdvanceOnFailure keeps the cursor moving past a batch whose persistence
	// failed. Turning it off makes the next run retry the failed batch at the
	// cost of repeated classifier calls.
	AdvanceOnFailure bool `yaml:"advance_on_failure" mapstructure:"advance_on_failure"`
}

// ClassifierConfig configures the AI classification service client.
type ClassifierConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	ImageFolder string  `yaml:"image_folder" mapstructure:"image_folder"`
}

// SpecSvcConfig configures the SOAP spec-value proxy used for AR lookups.
type SpecSvcConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MailConfig configures alert mail delivery.
type MailConfig struct {
	Host        string `yaml:"host" mapstructure:"host"`
	Port        int    `yaml:"port" mapstructure:"port"`
	SenderName  string `yaml:"sender_name" mapstructure:"sender_name"`
	SenderEmail string `yaml:"sender_email" mapstructure:"sender_email"`
	ResultHost  string `yaml:"result_host" mapstructure:"result_host"`
	ResultPort  int    `yaml:"result_port" mapstructure:"result_port"`
}

// ServerConfig configures the read-only status API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml and DRILLSYNC_* environment
// variables, applying defaults for everything optional.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DRILLSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("source.driver", "sqlserver")
	v.SetDefault("source.workers", 5)
	v.SetDefault("sync.batch_size", 500)
	v.SetDefault("sync.interval", "10m")
	v.SetDefault("sync.advance_on_failure", true)
	v.SetDefault("classifier.timeout_secs", 30)
	v.SetDefault("classifier.rate_per_sec", 0)
	v.SetDefault("specsvc.timeout_secs", 15)
	v.SetDefault("mail.port", 25)
	v.SetDefault("mail.sender_name", "PPM Highlight System Manager")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
