package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Engine   EngineConfig
	Jobs     JobsConfig
	Logger   LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
	RefreshExp time.Duration
}

// EngineConfig tunes the recommendation engine's policy knobs.
type EngineConfig struct {
	DedupWindowDays  int
	MaxPerGeneration int
	LeaseTTL         time.Duration
}

// JobsConfig holds cron expressions for the scheduled jobs.
type JobsConfig struct {
	BatchGenerateSpec string
	ExpirySweepSpec   string
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables work for Docker/K8s.
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	refreshExp, _ := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	dedupWindow, _ := strconv.Atoi(getEnv("ENGINE_DEDUP_WINDOW_DAYS", "30"))
	maxPerGen, _ := strconv.Atoi(getEnv("ENGINE_MAX_PER_GENERATION", "5"))
	leaseTTL, _ := strconv.Atoi(getEnv("ENGINE_LEASE_TTL_SECONDS", "30"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "finadvisor"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
			RefreshExp: time.Duration(refreshExp) * time.Hour,
		},
		Engine: EngineConfig{
			DedupWindowDays:  dedupWindow,
			MaxPerGeneration: maxPerGen,
			LeaseTTL:         time.Duration(leaseTTL) * time.Second,
		},
		Jobs: JobsConfig{
			BatchGenerateSpec: getEnv("JOBS_BATCH_GENERATE_CRON", "0 6 * * *"),
			ExpirySweepSpec:   getEnv("JOBS_EXPIRY_SWEEP_CRON", "@hourly"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
