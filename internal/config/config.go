package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port        string `yaml:"port" env:"SERVER_PORT"`
		Mode        string `yaml:"mode" env:"SERVER_MODE"`
		MaxUploadMB int    `yaml:"max_upload_mb" env:"MAX_CONTENT_LENGTH_MB"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path" env:"TRAINING_SYSTEM_DB_PATH"`
	} `yaml:"database"`

	Storage struct {
		// BaseDir is the root holding the students/ tree, templates and
		// the database directory by default.
		BaseDir     string `yaml:"base_dir" env:"TRAINING_SYSTEM_BASE_DIR"`
		TemplateDir string `yaml:"template_dir" env:"TRAINING_SYSTEM_TEMPLATE_DIR"`
	} `yaml:"storage"`

	Auth struct {
		AdminUser         string `yaml:"admin_user" env:"TRAINING_SYSTEM_ADMIN_USER"`
		AdminPassword     string `yaml:"admin_password" env:"TRAINING_SYSTEM_ADMIN_PASSWORD"`
		AdminPasswordHash string `yaml:"admin_password_hash" env:"TRAINING_SYSTEM_ADMIN_PASSWORD_HASH"`
		APIKey            string `yaml:"api_key" env:"TRAINING_SYSTEM_API_KEY"`
		SecretKey         string `yaml:"secret_key" env:"TRAINING_SYSTEM_SECRET_KEY"`
		SecureCookie      bool   `yaml:"secure_cookie" env:"TRAINING_SYSTEM_SECURE_COOKIE"`
		SessionHours      int    `yaml:"session_hours" env:"TRAINING_SYSTEM_SESSION_HOURS"`
	} `yaml:"auth"`

	Wechat struct {
		AppID        string `yaml:"appid" env:"WECHAT_MINI_APPID"`
		Secret       string `yaml:"secret" env:"WECHAT_MINI_SECRET"`
		AdminOpenids string `yaml:"admin_openids" env:"TRAINING_SYSTEM_ADMIN_OPENIDS"`
		TokenHours   int    `yaml:"token_hours" env:"TRAINING_SYSTEM_MINI_TOKEN_HOURS"`
	} `yaml:"wechat"`

	Imaging struct {
		// MattingURL points at the external background-segmentation
		// service; empty disables the matting stage.
		MattingURL  string `yaml:"matting_url" env:"TRAINING_SYSTEM_MATTING_URL"`
		CascadePath string `yaml:"cascade_path" env:"TRAINING_SYSTEM_CASCADE_PATH"`
	} `yaml:"imaging"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`
}

// LoadConfig loads configuration from an optional .env file, a YAML file
// and environment variables, in increasing priority.
func LoadConfig(configPath string) (*Config, error) {
	// Process env always wins over .env file contents.
	_ = godotenv.Load()

	config := &Config{}
	setDefaults(config)

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		err = yaml.Unmarshal(file, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := processStructFields(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Server.Port = "8080"
	config.Server.Mode = "development"
	config.Server.MaxUploadMB = 64

	config.Storage.BaseDir = "."
	config.Storage.TemplateDir = "templates"

	config.Auth.AdminUser = "admin"
	config.Auth.SessionHours = 12

	config.Wechat.TokenHours = 72

	config.Logging.Level = "info"
	config.Logging.Format = "json"
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if config.Auth.SecretKey == "" {
		return fmt.Errorf("auth secret key is required")
	}

	if config.Server.MaxUploadMB <= 0 {
		config.Server.MaxUploadMB = 64
	}
	if config.Auth.SessionHours < 1 {
		config.Auth.SessionHours = 12
	}
	if config.Wechat.TokenHours < 1 {
		config.Wechat.TokenHours = 72
	}

	return nil
}

// DatabasePath returns the SQLite file path, defaulting to
// <base_dir>/database/students.db.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Storage.BaseDir, "database", "students.db")
}

// StudentsDir returns the attachment store root.
func (c *Config) StudentsDir() string {
	return filepath.Join(c.Storage.BaseDir, "students")
}

// MaxUploadBytes returns the request body size limit.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) * 1024 * 1024
}

// AdminOpenids returns the configured admin openid allowlist.
func (c *Config) AdminOpenids() []string {
	raw := strings.TrimSpace(c.Wechat.AdminOpenids)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}
