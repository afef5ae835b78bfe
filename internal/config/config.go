package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	Store                     StoreConfig
	Database                  DatabaseConfig
	Redis                     RedisConfig
	Log                       LogConfig
	Kafka                     KafkaConfig
	Profile                   ProfileAPIConfig
	SeedOnStart               bool
	LoginRatePerMinute        int
	HookBufferSize            int
}

// StoreConfig selects the key/value backend holding the collections
type StoreConfig struct {
	Backend string // memory, mysql, postgres or redis
	Timeout time.Duration
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// RedisConfig holds redis connection details
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type LogConfig struct {
	Level  string
	Format string // json or console
}

// KafkaConfig enables the appointment event publisher when Brokers is set
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ProfileAPIConfig points at the remote profile service; empty URL keeps profiles local
type ProfileAPIConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

var storeBackends = map[string]string{
	"memory":   "",
	"mysql":    "3306",
	"postgres": "5432",
	"redis":    "",
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	backend := strings.ToLower(getEnv("STORE_BACKEND", "memory"))
	defaultPort, ok := storeBackends[backend]
	if !ok {
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: want memory, mysql, postgres or redis", backend)
	}

	storeTimeout, err := getInt("STORE_TIMEOUT_MS", 2000)
	if err != nil {
		return nil, err
	}

	// Load database configuration
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", defaultPort),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "sacs"),
	}
	switch backend {
	case "mysql":
		dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	case "postgres":
		dbConfig.DSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			dbConfig.Host, dbConfig.Username, dbConfig.Password, dbConfig.Name, dbConfig.Port)
	}

	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	jwtExpMinutes, err := getInt("JWT_EXPIRATION_MINUTES", 15)
	if err != nil {
		return nil, err
	}

	jwtRefreshExpHours, err := getInt("JWT_REFRESH_EXPIRATION_HOURS", 168) // 7 days
	if err != nil {
		return nil, err
	}

	loginRate, err := getInt("LOGIN_RATE_PER_MINUTE", 10)
	if err != nil {
		return nil, err
	}

	hookBuffer, err := getInt("HOOK_BUFFER_SIZE", 256)
	if err != nil {
		return nil, err
	}

	profileTimeout, err := getInt("PROFILE_API_TIMEOUT_MS", 5000)
	if err != nil {
		return nil, err
	}

	seedOnStart, err := strconv.ParseBool(getEnv("SEED_ON_START", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEED_ON_START: %w", err)
	}

	return &Config{
		Port:                      getEnv("PORT", "3001"),
		Origin:                    getEnv("ORIGIN", "http://localhost:5173"),
		Environment:               getEnv("APP_ENV", "development"),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		Store: StoreConfig{
			Backend: backend,
			Timeout: time.Duration(storeTimeout) * time.Millisecond,
		},
		Database: dbConfig,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Prefix:   getEnv("REDIS_PREFIX", "sacs:"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "sacs.appointments"),
		},
		Profile: ProfileAPIConfig{
			URL:     getEnv("PROFILE_API_URL", ""),
			APIKey:  getEnv("PROFILE_API_KEY", ""),
			Timeout: time.Duration(profileTimeout) * time.Millisecond,
		},
		SeedOnStart:        seedOnStart,
		LoginRatePerMinute: loginRate,
		HookBufferSize:     hookBuffer,
	}, nil
}

// IsDevelopment reports whether the server runs in a local development setup
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
