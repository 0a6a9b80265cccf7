package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the JDF backend
type Config struct {
	// Database
	DBDriver     string `yaml:"db_driver" validate:"oneof=sqlite postgres"`
	DatabasePath string `yaml:"sqlite_database" validate:"required_if=DBDriver sqlite"`
	DatabaseURL  string `yaml:"database_url" validate:"required_if=DBDriver postgres"`

	// HTTP
	Port           int      `yaml:"port" validate:"gt=0,lte=65535"`
	AllowedOrigins []string `yaml:"cors_allowed_origins" validate:"dive,required"`

	// Import
	TempDir      string `yaml:"temp_dir"`
	KeepTemp     bool   `yaml:"keep_temp"`
	AtomicImport bool   `yaml:"atomic_import"`
	StrictKeys   bool   `yaml:"strict_keys"`
	StopKey      string `yaml:"stop_key" validate:"oneof=name name_district name+district"`
	MaxUploadMB  int    `yaml:"max_upload_mb" validate:"gt=0"`
	MaxExtractMB int    `yaml:"max_extract_mb" validate:"gt=0"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		DBDriver:       "sqlite",
		DatabasePath:   "data/jdf.db",
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:5173"},
		TempDir:        os.TempDir(),
		AtomicImport:   true,
		StopKey:        "name",
		MaxUploadMB:    64,
		MaxExtractMB:   512,
	}
}

// Load builds the configuration. Values come from, in increasing priority:
// defaults, the optional YAML file at path, .env files and the environment.
func Load(path string) (*Config, error) {
	// Load base .env first, then .env.local (which overrides for local development)
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Database
	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", cfg.DBDriver))
	cfg.DatabasePath = getEnv("SQLITE_DATABASE", cfg.DatabasePath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	// HTTP
	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", cfg.AllowedOrigins)

	// Import
	cfg.TempDir = getEnv("JDF_TEMP_DIR", cfg.TempDir)
	cfg.KeepTemp = getEnvBool("JDF_KEEP_TEMP", cfg.KeepTemp)
	cfg.AtomicImport = getEnvBool("JDF_ATOMIC_IMPORT", cfg.AtomicImport)
	cfg.StrictKeys = getEnvBool("JDF_STRICT_KEYS", cfg.StrictKeys)
	cfg.StopKey = getEnv("JDF_STOP_KEY", cfg.StopKey)
	cfg.MaxUploadMB = getEnvInt("JDF_MAX_UPLOAD_MB", cfg.MaxUploadMB)
	cfg.MaxExtractMB = getEnvInt("JDF_MAX_EXTRACT_MB", cfg.MaxExtractMB)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DatabasePath
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// MaxExtractBytes caps the unpacked size of an uploaded archive.
func (c *Config) MaxExtractBytes() int64 {
	return int64(c.MaxExtractMB) << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
