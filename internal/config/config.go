// Package config provides typed configuration management using Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all engine configuration.
type Config struct {
	Core      CoreConfig      `mapstructure:"core"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Grouping  GroupingConfig  `mapstructure:"grouping"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Notifiers NotifiersConfig `mapstructure:"notifiers"`
	Routes    []RouteConfig   `mapstructure:"routes"`
}

// CoreConfig holds process-wide settings.
type CoreConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	HTTPAddr  string `mapstructure:"http_addr"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path        string `mapstructure:"path"`
	BusyTimeout int    `mapstructure:"busy_timeout_ms"`
}

// GroupingConfig holds alert grouping settings.
type GroupingConfig struct {
	Window time.Duration `mapstructure:"window"`
}

// WorkersConfig holds the background queue settings.
type WorkersConfig struct {
	EscalationInterval   time.Duration `mapstructure:"escalation_interval"`
	NotificationInterval time.Duration `mapstructure:"notification_interval"`
	MaxAttempts          int           `mapstructure:"max_attempts"`
}

// NotifiersConfig holds channel adapter credentials. Channels without
// configuration are not registered.
type NotifiersConfig struct {
	SlackWebhookURL   string     `mapstructure:"slack_webhook_url"`
	DiscordWebhookURL string     `mapstructure:"discord_webhook_url"`
	TelegramBotToken  string     `mapstructure:"telegram_bot_token"`
	SMSProviderURL    string     `mapstructure:"sms_provider_url"`
	SMTP              SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// RouteConfig is one ordered routing rule: alerts whose labels contain every
// match pair go to the policy.
type RouteConfig struct {
	Match    map[string]string `mapstructure:"match"`
	PolicyID string            `mapstructure:"policy_id"`
}

// Load reads configuration from the optional config file and VIGIL_-prefixed
// environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VIGIL")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("vigil")
		v.SetConfigType("yaml")
		// The config file is optional when not named explicitly.
		_ = v.ReadInConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("core.data_dir", "./data")
	v.SetDefault("core.http_addr", ":8080")
	v.SetDefault("core.log_level", "info")
	v.SetDefault("core.log_format", "text")

	v.SetDefault("database.path", "")
	v.SetDefault("database.busy_timeout_ms", 5000)

	v.SetDefault("grouping.window", 30*time.Second)

	v.SetDefault("workers.escalation_interval", 5*time.Second)
	v.SetDefault("workers.notification_interval", 5*time.Second)
	v.SetDefault("workers.max_attempts", 10)
}
