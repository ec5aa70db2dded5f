package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Kafka    KafkaConfig
	Maps     MapsConfig
	Dispatch DispatchConfig
	Pricing  PricingConfig
	Push     PushConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// KafkaConfig holds the consumer settings for the driver position stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// MapsConfig holds the Google Maps API client configuration.
type MapsConfig struct {
	APIKey  string
	Timeout time.Duration
}

// DispatchConfig holds the driver search parameters. The search starts at
// StartRadiusKm and grows by StepKm every TickInterval until MaxRadiusKm;
// past that each customer-approved expansion adds ExpandIncrementKm, up to
// HardStopKm.
type DispatchConfig struct {
	StartRadiusKm     float64
	StepKm            float64
	MaxRadiusKm       float64
	ExpandIncrementKm float64
	HardStopKm        float64
	TickInterval      time.Duration
}

// PricingConfig holds fare parameters. Amounts are integer currency units.
type PricingConfig struct {
	MinFareRide       int64
	MinFareDelivery   int64
	PerKmRate         int64
	MultiplierEconomy float64
	MultiplierPremium float64
	MultiplierScooter float64
}

// PushConfig holds the FCM HTTP endpoint settings for driver and customer
// push notifications.
type PushConfig struct {
	Endpoint  string
	ServerKey string
	Timeout   time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "dropoff"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "dropoff-coordinator"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKER", "localhost:9092")},
			Topic:   getEnv("KAFKA_POSITIONS_TOPIC", "driver-positions"),
			GroupID: getEnv("KAFKA_GROUP_ID", "dropoff-locationd"),
		},
		Maps: MapsConfig{
			APIKey:  getEnv("MAPS_API_KEY", ""),
			Timeout: getDurationEnv("MAPS_TIMEOUT", 10*time.Second),
		},
		Dispatch: DispatchConfig{
			StartRadiusKm:     getFloatEnv("DISPATCH_START_RADIUS_KM", 2),
			StepKm:            getFloatEnv("DISPATCH_STEP_KM", 2),
			MaxRadiusKm:       getFloatEnv("DISPATCH_MAX_RADIUS_KM", 10),
			ExpandIncrementKm: getFloatEnv("DISPATCH_EXPAND_INCREMENT_KM", 20),
			HardStopKm:        getFloatEnv("DISPATCH_HARD_STOP_KM", 120),
			TickInterval:      getDurationEnv("DISPATCH_TICK_INTERVAL", 4*time.Second),
		},
		Pricing: PricingConfig{
			MinFareRide:       getInt64Env("minFareRide", 150),
			MinFareDelivery:   getInt64Env("minFareDelivery", 200),
			PerKmRate:         getInt64Env("perKmRate", 40),
			MultiplierEconomy: getFloatEnv("multiplierEconomy", 1.0),
			MultiplierPremium: getFloatEnv("multiplierPremium", 1.5),
			MultiplierScooter: getFloatEnv("multiplierScooter", 0.8),
		},
		Push: PushConfig{
			Endpoint:  getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com/fcm/send"),
			ServerKey: getEnv("FCM_SERVER_KEY", ""),
			Timeout:   getDurationEnv("FCM_TIMEOUT", 5*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
