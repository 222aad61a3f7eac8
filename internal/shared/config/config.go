package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	KurrentDB KurrentDBConfig
	Auth      AuthConfig
	Gateway   GatewayConfig
	Storage   StorageConfig
	Kafka     KafkaConfig
	Registry  RegistryConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB),
// which backs the event bus and the append-only audit log.
type KurrentDBConfig struct {
	// Host is the KurrentDB server hostname
	Host string
	// Port is the gRPC port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTLHours int
	Issuer        string
}

// GatewayConfig configures the data gateway. Mode is fixed at startup:
// "static" serves the canned demo dataset, "live" forwards to the backend API.
type GatewayConfig struct {
	Mode    string
	BaseURL string
}

// StorageConfig holds S3 settings for document blob storage.
type StorageConfig struct {
	Bucket   string
	Region   string
	Endpoint string // non-empty for S3-compatible local stores (MinIO)
	Enabled  bool
}

// KafkaConfig holds settings for the notification publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// RegistryConfig holds settings for the legacy hospital registry adapter
// (hospital information system on SQL Server).
type RegistryConfig struct {
	DSN            string
	Enabled        bool
	RefreshMinutes int
}

func Load() (*Config, error) {
	// Best-effort .env load for local development; env vars win.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "telehealth"),
			Password: getEnv("DB_PASSWORD", "telehealth"),
			Database: getEnv("DB_NAME", "telehealth"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		KurrentDB: KurrentDBConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			TokenTTLHours: getEnvInt("JWT_TTL_HOURS", 8),
			Issuer:        getEnv("JWT_ISSUER", "telehealth"),
		},
		Gateway: GatewayConfig{
			Mode:    getEnv("GATEWAY_MODE", "live"),
			BaseURL: getEnv("GATEWAY_BASE_URL", "http://localhost:8080/api/v1"),
		},
		Storage: StorageConfig{
			Bucket:   getEnv("STORAGE_BUCKET", "telehealth-documents"),
			Region:   getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint: getEnv("STORAGE_ENDPOINT", ""),
			Enabled:  getEnvBool("STORAGE_ENABLED", false),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "telehealth.notifications"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
		},
		Registry: RegistryConfig{
			DSN:            getEnv("HOSPITAL_REGISTRY_DSN", ""),
			Enabled:        getEnvBool("HOSPITAL_REGISTRY_ENABLED", false),
			RefreshMinutes: getEnvInt("HOSPITAL_REGISTRY_REFRESH_MINUTES", 30),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, v := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
