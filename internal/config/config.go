package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Vision  VisionConfig  `mapstructure:"vision"`
	Uploads UploadsConfig `mapstructure:"uploads"`
	Journal JournalConfig `mapstructure:"journal"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CORSOrigins splits the comma separated origin list.
func (s ServerConfig) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(s.CORSOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type VisionConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	BaseURL            string        `mapstructure:"base_url"`
	PrimaryModel       string        `mapstructure:"primary_model"`
	BackupModel        string        `mapstructure:"backup_model"`
	Timeout            time.Duration `mapstructure:"timeout"`
	TotalTimeout       time.Duration `mapstructure:"total_timeout"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	LoadingWait        time.Duration `mapstructure:"loading_wait"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff"`
	RateLimit          float64       `mapstructure:"rate_limit"`
	RequireCredentials bool          `mapstructure:"require_credentials"`
}

type UploadsConfig struct {
	Dir             string        `mapstructure:"dir"`
	MaxFileSize     int64         `mapstructure:"max_file_size"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type JournalConfig struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	Migrations string `mapstructure:"migrations"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// env vars kept for compatibility with existing deployments
var legacyEnv = map[string]string{
	"server.port":        "PORT",
	"server.cors_origin": "CORS_ORIGIN",
	"vision.api_key":     "HF_API_KEY",
	"journal.dsn":        "DATABASE_URL",
}

// Load reads .env (if present), config.yaml (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.cors_origin", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.base_url", "https://api-inference.huggingface.co/models")
	v.SetDefault("vision.primary_model", "Salesforce/blip-image-captioning-large")
	v.SetDefault("vision.backup_model", "nlpconnect/vit-gpt2-image-captioning")
	v.SetDefault("vision.timeout", "60s")
	v.SetDefault("vision.total_timeout", "2m")
	v.SetDefault("vision.max_attempts", 3)
	v.SetDefault("vision.loading_wait", "10s")
	v.SetDefault("vision.retry_backoff", "3s")
	v.SetDefault("vision.rate_limit", 5)
	v.SetDefault("vision.require_credentials", false)

	v.SetDefault("uploads.dir", "./uploads")
	v.SetDefault("uploads.max_file_size", 10<<20)
	v.SetDefault("uploads.retention", "24h")
	v.SetDefault("uploads.cleanup_interval", "1h")

	v.SetDefault("journal.driver", "")
	v.SetDefault("journal.dsn", "")
	v.SetDefault("journal.migrations", "migrations")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Vision.PrimaryModel) == "" {
		return errors.New("vision primary_model is required")
	}
	if c.Vision.TotalTimeout <= 0 {
		return fmt.Errorf("vision total_timeout must be positive, got %s", c.Vision.TotalTimeout)
	}
	// the fallback report has to reach the client before the write deadline
	if c.Server.WriteTimeout > 0 && c.Vision.TotalTimeout >= c.Server.WriteTimeout {
		return fmt.Errorf("vision total_timeout %s must be shorter than server write_timeout %s",
			c.Vision.TotalTimeout, c.Server.WriteTimeout)
	}
	if c.Vision.MaxAttempts < 1 {
		return fmt.Errorf("vision max_attempts must be at least 1, got %d", c.Vision.MaxAttempts)
	}
	if c.Uploads.MaxFileSize <= 0 {
		return fmt.Errorf("uploads max_file_size must be positive, got %d", c.Uploads.MaxFileSize)
	}
	if c.Uploads.Dir == "" {
		return errors.New("uploads dir is required")
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}
	switch c.Journal.Driver {
	case "":
	case "postgres", "sqlite":
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal dsn is required for driver %q", c.Journal.Driver)
		}
	default:
		return fmt.Errorf("unknown journal driver %q", c.Journal.Driver)
	}
	return nil
}
