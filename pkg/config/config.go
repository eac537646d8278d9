package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all scoring-core configuration
type Config struct {
	Environment string
	Thresholds  ThresholdConfig
	Ensemble    EnsembleConfig
	Reasons     ReasonConfig
	Models      ModelConfig
	Redis       RedisConfig
	Database    DatabaseConfig
}

// ThresholdConfig holds the decision thresholds.
// DelayThreshold must be strictly below BlockThreshold; both are inclusive
// on the higher-risk side.
type ThresholdConfig struct {
	DelayThreshold float64
	BlockThreshold float64
}

// EnsembleConfig holds per-model ensemble weights
type EnsembleConfig struct {
	AnomalyWeight float64
	ForestWeight  float64
	BoostWeight   float64
}

// ReasonConfig holds the tunable composite-score blend and the
// trusted-recipient discount
type ReasonConfig struct {
	CriticalBoost     float64
	HighPairBoost     float64
	RecipientDiscount float64
}

// ModelConfig holds classifier artifact loading configuration
type ModelConfig struct {
	Dir string
}

// RedisConfig holds Redis history-store configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// DatabaseConfig holds Postgres history-store configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Thresholds: ThresholdConfig{
			DelayThreshold: getEnvAsFloat("DELAY_THRESHOLD", 0.30),
			BlockThreshold: getEnvAsFloat("BLOCK_THRESHOLD", 0.60),
		},
		Ensemble: EnsembleConfig{
			AnomalyWeight: getEnvAsFloat("ENSEMBLE_ANOMALY_WEIGHT", 0.2),
			ForestWeight:  getEnvAsFloat("ENSEMBLE_FOREST_WEIGHT", 0.4),
			BoostWeight:   getEnvAsFloat("ENSEMBLE_BOOST_WEIGHT", 0.4),
		},
		Reasons: ReasonConfig{
			CriticalBoost:     getEnvAsFloat("REASON_CRITICAL_BOOST", 0.15),
			HighPairBoost:     getEnvAsFloat("REASON_HIGH_PAIR_BOOST", 0.05),
			RecipientDiscount: getEnvAsFloat("TRUSTED_RECIPIENT_DISCOUNT", 0.3),
		},
		Models: ModelConfig{
			Dir: getEnv("MODELS_DIR", "models"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "payments"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants that would invalidate every downstream
// prediction. A misconfigured core must fail at startup, never score.
func (c *Config) Validate() error {
	if c.Thresholds.BlockThreshold <= c.Thresholds.DelayThreshold {
		return fmt.Errorf("config: block threshold (%.4f) must be greater than delay threshold (%.4f)",
			c.Thresholds.BlockThreshold, c.Thresholds.DelayThreshold)
	}
	if c.Thresholds.DelayThreshold < 0 || c.Thresholds.BlockThreshold > 1 {
		return fmt.Errorf("config: thresholds must lie within [0,1]")
	}
	if c.Ensemble.AnomalyWeight < 0 || c.Ensemble.ForestWeight < 0 || c.Ensemble.BoostWeight < 0 {
		return fmt.Errorf("config: ensemble weights must be non-negative")
	}
	if c.Ensemble.AnomalyWeight+c.Ensemble.ForestWeight+c.Ensemble.BoostWeight == 0 {
		return fmt.Errorf("config: at least one ensemble weight must be positive")
	}
	if c.Reasons.RecipientDiscount <= 0 || c.Reasons.RecipientDiscount > 1 {
		return fmt.Errorf("config: trusted recipient discount must be in (0,1]")
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
