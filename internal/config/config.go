package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// AppConfig holds all application configuration for the control plane.
type AppConfig struct {
	// Control-plane gRPC peering
	ControlPlaneAddr string
	ControlPlanePort string

	// Observability Configuration
	JaegerEndpoint string
	PrometheusPort string

	// Health Check Ports
	ClusterdHealthPort     string
	ControlPlaneHealthPort string

	// Service Configuration
	ServiceName    string
	ServiceVersion string
	Environment    string
	LogLevel       string

	// Federation health-loop defaults
	HealthProbeIntervalMs int
	DegradedThreshold     int
	OfflineThreshold      int

	// TaskStore persistence root
	TaskStoreDir string

	// MessageBus durable-delivery mirror
	EnableDurableDelivery bool
	NATSURL               string
}

// Load loads configuration from environment variables with defaults.
func Load() *AppConfig {
	return &AppConfig{
		ControlPlaneAddr: getEnv("AGENTPLANE_ADDR", "localhost"),
		ControlPlanePort: getEnv("AGENTPLANE_PORT", "50051"),

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "127.0.0.1:4317"),
		PrometheusPort: getEnv("PROMETHEUS_PORT", "9090"),

		ClusterdHealthPort:     getEnv("CLUSTERD_HEALTH_PORT", "8080"),
		ControlPlaneHealthPort: getEnv("CONTROLPLANE_HEALTH_PORT", "8081"),

		ServiceName:    getEnv("SERVICE_NAME", "agentplane"),
		ServiceVersion: getEnv("SERVICE_VERSION", "1.0.0"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),

		HealthProbeIntervalMs: getEnvAsInt("HEALTH_PROBE_INTERVAL_MS", 5000),
		DegradedThreshold:     getEnvAsInt("HEALTH_DEGRADED_THRESHOLD", 3),
		OfflineThreshold:      getEnvAsInt("HEALTH_OFFLINE_THRESHOLD", 5),

		TaskStoreDir: getEnv("TASKSTORE_DIR", "./taskstore"),

		EnableDurableDelivery: getEnvAsBool("MAILBOX_DURABLE_DELIVERY", false),
		NATSURL:               getEnv("NATS_URL", "nats://127.0.0.1:4222"),
	}
}

// GetControlPlaneAddress returns the full control-plane peering address.
func (c *AppConfig) GetControlPlaneAddress() string {
	return c.ControlPlaneAddr + ":" + c.ControlPlanePort
}

// GetHealthPort returns the health port for a given service type.
func (c *AppConfig) GetHealthPort(serviceType string) string {
	switch serviceType {
	case "clusterd":
		return c.ClusterdHealthPort
	case "controlplane":
		return c.ControlPlaneHealthPort
	default:
		return "8080"
	}
}

// HealthProbeInterval returns the configured health-probe interval.
func (c *AppConfig) HealthProbeInterval() time.Duration {
	return time.Duration(c.HealthProbeIntervalMs) * time.Millisecond
}

// FederationDefaults is a structured overlay loaded from a TOML file: the
// seed cluster list and balancer policy knobs, which plain environment
// variables are awkward to express as structured data.
type FederationDefaults struct {
	LocalFloor              float64           `toml:"local_floor"`
	MaxSpawnAttempts        int               `toml:"max_spawn_attempts"`
	MaxConcurrentMigrations int               `toml:"max_concurrent_migrations"`
	SeedClusters            []SeedCluster     `toml:"clusters"`
	RoleCatalogPath         string            `toml:"role_catalog_path"`
	Tags                    map[string]string `toml:"tags"`
}

// SeedCluster is one federation member pre-registered at startup.
type SeedCluster struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Endpoint string `toml:"endpoint"`
	Region   string `toml:"region"`
}

// DefaultFederationDefaults returns conservative defaults used when no
// overlay file is present.
func DefaultFederationDefaults() FederationDefaults {
	return FederationDefaults{
		LocalFloor:              40,
		MaxSpawnAttempts:        3,
		MaxConcurrentMigrations: 4,
	}
}

// LoadFederationDefaults reads a TOML overlay file at path, falling back to
// DefaultFederationDefaults when the file does not exist.
func LoadFederationDefaults(path string) (FederationDefaults, error) {
	defaults := DefaultFederationDefaults()
	if path == "" {
		return defaults, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaults, nil
	}
	if _, err := toml.DecodeFile(path, &defaults); err != nil {
		return FederationDefaults{}, err
	}
	return defaults, nil
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer with a default fallback.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as boolean with a default fallback.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
