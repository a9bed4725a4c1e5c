package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the AgriLens control plane.
type Config struct {
	Port      int
	Version   string
	Backend   BackendConfig
	Storage   StorageConfig
	Catalog   CatalogConfig
	Retention RetentionConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// BackendConfig locates the external diagnosis/chat service.
type BackendConfig struct {
	BaseURL        string
	Timeout        time.Duration
	HealthURL      string // empty = derived from BaseURL
	HealthInterval time.Duration
}

type StorageConfig struct {
	Driver     string // file | sqlite | memory
	DataDir    string
	SQLitePath string
	UploadDir  string
}

type CatalogConfig struct {
	OverridesFile string
}

type RetentionConfig struct {
	SessionIdleTTL time.Duration
	Interval       time.Duration
}

type HTTPConfig struct {
	AllowedOrigins []string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	dataDir := envStr("AGRILENS_DATA_DIR", defaultDataDir())

	return &Config{
		Port:    envInt("AGRILENS_PORT", 8080),
		Version: envStr("AGRILENS_VERSION", "0.1.0"),
		Backend: BackendConfig{
			BaseURL:        envStr("AGRILENS_API_BASE_URL", "http://localhost:8000/api/agri"),
			Timeout:        time.Duration(envInt("AGRILENS_API_TIMEOUT_MS", 30000)) * time.Millisecond,
			HealthURL:      envStr("AGRILENS_HEALTH_URL", ""),
			HealthInterval: envDuration("AGRILENS_HEALTH_INTERVAL", 30*time.Second),
		},
		Storage: StorageConfig{
			Driver:     envStr("AGRILENS_STORE_DRIVER", "file"),
			DataDir:    dataDir,
			SQLitePath: envStr("AGRILENS_SQLITE_PATH", filepath.Join(dataDir, "agrilens.db")),
			UploadDir:  envStr("AGRILENS_UPLOAD_DIR", filepath.Join(dataDir, "uploads")),
		},
		Catalog: CatalogConfig{
			OverridesFile: envStr("AGRILENS_CATALOG_FILE", ""),
		},
		Retention: RetentionConfig{
			SessionIdleTTL: envDuration("AGRILENS_SESSION_IDLE_TTL", 24*time.Hour),
			Interval:       envDuration("AGRILENS_JANITOR_INTERVAL", 10*time.Minute),
		},
		HTTP: HTTPConfig{
			AllowedOrigins: envList("AGRILENS_CORS_ORIGINS", []string{"*"}),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "agrilens-control-plane"),
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agrilens"
	}
	return filepath.Join(home, ".agrilens")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt reads a positive integer; anything else yields fallback.
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
