package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds user preferences
type Config struct {
	ServerURL      string `yaml:"server_url" json:"server_url"`
	ConfirmRefresh bool   `yaml:"confirm_refresh" json:"confirm_refresh"` // Ask before invalidating the shown QR code

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging

	Storage StorageConfig `yaml:"storage" json:"storage"`
	Gateway GatewayConfig `yaml:"gateway" json:"gateway"`
	QR      QRConfig      `yaml:"qr" json:"qr"`
}

// StorageConfig selects the local state store driver.
type StorageConfig struct {
	Driver        string      `yaml:"driver" json:"driver"` // memory, sqlite, redis
	Path          string      `yaml:"path" json:"path"`
	PassphraseEnv string      `yaml:"passphrase_env" json:"passphrase_env"`
	Redis         RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig captures connection options for the redis driver.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// GatewayConfig drives the offline cache gateway.
type GatewayConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Listen      string   `yaml:"listen" json:"listen"`
	Version     string   `yaml:"version" json:"version"`
	Precache    []string `yaml:"precache" json:"precache"`
	APIPrefixes []string `yaml:"api_prefixes" json:"api_prefixes"`
	Persist     bool     `yaml:"persist" json:"persist"`
	SkipWaiting bool     `yaml:"skip_waiting" json:"skip_waiting"`
}

// QRConfig tunes the redemption screen.
type QRConfig struct {
	MaxTokenLength    int           `yaml:"max_token_length" json:"max_token_length"`
	RevealSeconds     int           `yaml:"reveal_seconds" json:"reveal_seconds"`
	ExpiryCheck       time.Duration `yaml:"expiry_check" json:"expiry_check"`
	DefaultDailyLimit int           `yaml:"default_daily_limit" json:"default_daily_limit"`
}

// Dir returns ~/.narod
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".narod"), nil
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	dir, _ := Dir()
	logPath := ""
	storePath := ""
	if dir != "" {
		logPath = filepath.Join(dir, "logs", "narod.log")
		storePath = filepath.Join(dir, "state.db")
	}

	return &Config{
		ServerURL:      getEnv("NAROD_SERVER_URL", "https://84.201.180.219:80/"),
		ConfirmRefresh: true,
		LogLevel:       getEnv("NAROD_LOG_LEVEL", "INFO"),
		LogFile:        getEnv("NAROD_LOG_FILE", logPath),
		LogConsole:     getEnv("NAROD_LOG_CONSOLE", "false") == "true",
		Storage: StorageConfig{
			Driver:        getEnv("NAROD_STORAGE_DRIVER", "sqlite"),
			Path:          storePath,
			PassphraseEnv: "NAROD_STORE_PASSPHRASE",
			Redis: RedisConfig{
				Addr:   getEnv("NAROD_REDIS_ADDR", ""),
				Prefix: "narod:state:",
			},
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Listen:  getEnv("NAROD_GATEWAY_LISTEN", "127.0.0.1:8787"),
			Version: "v1",
			Precache: []string{
				"/",
				"/index.html",
				"/manifest.json",
				"/icons/icon-192x192.png",
				"/icons/icon-512x512.png",
			},
			APIPrefixes: []string{"/api", "/auth", "/subscriptions", "/qr", "/qr-code"},
			Persist:     true,
			SkipWaiting: true,
		},
		QR: QRConfig{
			MaxTokenLength:    getEnvInt("NAROD_QR_MAX_TOKEN_LENGTH", 2000),
			RevealSeconds:     10,
			ExpiryCheck:       time.Minute,
			DefaultDailyLimit: 5,
		},
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// Load loads .env (if present) and then ~/.narod/config.yaml over the defaults.
func Load() (*Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFile(filepath.Join(dir, "config.yaml"))
}

// LoadFile reads a config file over the defaults. A missing file yields defaults.
func LoadFile(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save saves config to ~/.narod/config.yaml
func (c *Config) Save() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return c.SaveFile(filepath.Join(dir, "config.yaml"))
}

// SaveFile writes the config as YAML to configPath.
func (c *Config) SaveFile(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Passphrase returns the store sealing passphrase from the configured env var.
func (s StorageConfig) Passphrase() string {
	if s.PassphraseEnv == "" {
		return ""
	}
	return os.Getenv(s.PassphraseEnv)
}
