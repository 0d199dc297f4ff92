package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Environment          string
	ServerPort           int
	LogLevel             string
	CORSAllowedOrigins   []string
	JWTSecret            string
	TokenIssuer          string
	StoreBackend         string // memory | redis | postgres
	RedisURL             string
	DBHost               string
	DBPort               int
	DBUser               string
	DBPassword           string
	DBName               string
	DBSSLMode            string
	StaleTime            time.Duration
	CacheIdleTime        time.Duration
	SweepInterval        time.Duration
	ReadRetries          int
	MutationRetries      int
	StatsIntervalMinutes int
	PTOAllowanceHours    float64
	SickAllowanceHours   float64
	WeekStartDay         int
	HoursPerDay          float64
}

// Load reads configuration from the environment. A .env file in the
// working directory is folded in first when present, without
// overriding variables already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	staleMs, err := strconv.Atoi(getEnv("STALE_TIME_MS", "300000"))
	if err != nil {
		return nil, fmt.Errorf("invalid STALE_TIME_MS: %w", err)
	}

	idleMs, err := strconv.Atoi(getEnv("CACHE_IDLE_TIME_MS", "1800000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_IDLE_TIME_MS: %w", err)
	}

	sweepSec, err := strconv.Atoi(getEnv("CACHE_SWEEP_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_SWEEP_SECONDS: %w", err)
	}

	readRetries, err := strconv.Atoi(getEnv("READ_RETRIES", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid READ_RETRIES: %w", err)
	}

	mutationRetries, err := strconv.Atoi(getEnv("MUTATION_RETRIES", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid MUTATION_RETRIES: %w", err)
	}

	statsInterval, err := strconv.Atoi(getEnv("STATS_INTERVAL_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_INTERVAL_MINUTES: %w", err)
	}

	ptoAllowance, err := strconv.ParseFloat(getEnv("PTO_ALLOWANCE_HOURS", "120"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PTO_ALLOWANCE_HOURS: %w", err)
	}

	sickAllowance, err := strconv.ParseFloat(getEnv("SICK_ALLOWANCE_HOURS", "40"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SICK_ALLOWANCE_HOURS: %w", err)
	}

	weekStart, err := strconv.Atoi(getEnv("WEEK_START_DAY", "1"))
	if err != nil || weekStart < 0 || weekStart > 6 {
		return nil, fmt.Errorf("invalid WEEK_START_DAY: must be 0-6")
	}

	hoursPerDay, err := strconv.ParseFloat(getEnv("HOURS_PER_DAY", "8"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid HOURS_PER_DAY: %w", err)
	}

	backend := getEnv("STORE_BACKEND", "memory")
	switch backend {
	case "memory", "redis", "postgres":
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: must be memory, redis, or postgres", backend)
	}

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  port,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		TokenIssuer:          getEnv("TOKEN_ISSUER", "timetrack"),
		StoreBackend:         backend,
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               dbPort,
		DBUser:               getEnv("DB_USER", "timetrack"),
		DBPassword:           getEnv("DB_PASSWORD", "dev"),
		DBName:               getEnv("DB_NAME", "timetrack"),
		DBSSLMode:            getEnv("DB_SSLMODE", "disable"),
		StaleTime:            time.Duration(staleMs) * time.Millisecond,
		CacheIdleTime:        time.Duration(idleMs) * time.Millisecond,
		SweepInterval:        time.Duration(sweepSec) * time.Second,
		ReadRetries:          readRetries,
		MutationRetries:      mutationRetries,
		StatsIntervalMinutes: statsInterval,
		PTOAllowanceHours:    ptoAllowance,
		SickAllowanceHours:   sickAllowance,
		WeekStartDay:         weekStart,
		HoursPerDay:          hoursPerDay,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
