package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const placeholderSecret = "change-me"

type Config struct {
	Server struct {
		Port        string `mapstructure:"port"`
		GinMode     string `mapstructure:"gin_mode"`
		FrontendURL string `mapstructure:"frontend_url"`
	} `mapstructure:"server"`

	Database struct {
		Driver string `mapstructure:"driver"` // postgres | mysql | sqlite
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Auth struct {
		JWTSecret string        `mapstructure:"jwt_secret"`
		TokenTTL  time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"auth"`

	Mail struct {
		SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
		From           string `mapstructure:"from"`
	} `mapstructure:"mail"`

	AI struct {
		OpenAIAPIKey string `mapstructure:"openai_api_key"`
	} `mapstructure:"ai"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logs"`

	Scheduler struct {
		Enabled          bool          `mapstructure:"enabled"`
		ExpiryInterval   time.Duration `mapstructure:"expiry_interval"`
		ReminderInterval time.Duration `mapstructure:"reminder_interval"`
		ReminderOffset   time.Duration `mapstructure:"reminder_offset"`
	} `mapstructure:"scheduler"`

	Invites struct {
		RequireEmailMatch bool `mapstructure:"require_email_match"`
	} `mapstructure:"invites"`
}

// Load reads configuration from the environment and an optional YAML file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.gin_mode", "debug")
	v.SetDefault("server.frontend_url", "http://localhost:5173")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=taskuser password=taskpassword dbname=task_management port=5432 sslmode=disable")

	v.SetDefault("auth.jwt_secret", placeholderSecret)
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("mail.sendgrid_api_key", "")
	v.SetDefault("mail.from", "no-reply@taskflow.local")

	v.SetDefault("ai.openai_api_key", "")

	v.SetDefault("logs.level", "info")
	v.SetDefault("logs.format", "text")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.expiry_interval", "1h")
	v.SetDefault("scheduler.reminder_interval", "1h")
	v.SetDefault("scheduler.reminder_offset", "30m")

	v.SetDefault("invites.require_email_match", false)
}

func validate(c *Config) error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn must not be empty")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth.jwt_secret must not be empty")
	}
	if c.Server.GinMode == "release" && c.Auth.JWTSecret == placeholderSecret {
		return errors.New("auth.jwt_secret must be changed in release mode")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Scheduler.ExpiryInterval <= 0 || c.Scheduler.ReminderInterval <= 0 {
		return errors.New("scheduler intervals must be positive")
	}
	return nil
}
