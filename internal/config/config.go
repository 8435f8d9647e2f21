package config

import (
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Port                 string
	AllowedOrigins       []string
	FrontendURL          string
	StoreDriver          string
	DatabaseURL          string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetimeMin int
	SQLitePath           string
	RedisURL             string
	RedisPassword        string
	CacheTTL             time.Duration
	GameRetention        time.Duration
	CleanupInterval      time.Duration
}

var AppConfig *Config

func LoadConfig() *Config {
	port := GetEnv("PORT", "8080")

	// Frontend & CORS
	frontendURL := GetEnv("FRONTEND_URL", "http://localhost:5173")
	allowedOriginsStr := GetEnv("ALLOWED_ORIGINS", "")

	// Build allowed origins list (Frontend URL + CSV values)
	allowedOrigins := []string{frontendURL}
	if allowedOriginsStr != "" {
		extras := strings.Split(allowedOriginsStr, ",")
		for _, origin := range extras {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" && trimmed != frontendURL {
				allowedOrigins = append(allowedOrigins, trimmed)
			}
		}
	}

	storeDriver := strings.ToLower(GetEnv("STORE_DRIVER", StoreDriverPostgres))
	switch storeDriver {
	case StoreDriverPostgres, StoreDriverSQLite, StoreDriverMemory:
	default:
		log.Printf("Unknown STORE_DRIVER %q, using default: %s", storeDriver, StoreDriverPostgres)
		storeDriver = StoreDriverPostgres
	}

	// Database Config
	// Append simple_protocol for PgBouncer compatibility (pgx driver)
	dbURL := GetEnv("DATABASE_URL", GetEnv("DATABASE_URI", ""))
	if dbURL != "" {
		if u, err := url.Parse(dbURL); err == nil {
			q := u.Query()
			if q.Get("default_query_exec_mode") == "" {
				q.Set("default_query_exec_mode", "simple_protocol")
				u.RawQuery = q.Encode()
				dbURL = u.String()
			}
		}
	}
	dbMaxOpenConns := GetEnvAsInt("DB_MAX_OPEN_CONNS", 25)
	dbMaxIdleConns := GetEnvAsInt("DB_MAX_IDLE_CONNS", 25)
	dbConnMaxLifetimeMin := GetEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5)

	sqlitePath := GetEnv("SQLITE_PATH", "connect4.db")

	// Cache, empty REDIS_URL disables it
	redisURL := os.Getenv("REDIS_URL")
	if _, set := os.LookupEnv("REDIS_URL"); !set {
		redisURL = "localhost:6379"
	}
	redisPassword := GetEnv("REDIS_PASSWORD", "")
	cacheTTLSec := GetEnvAsInt("CACHE_TTL_SECONDS", 300)

	// Retention, 0 days disables cleanup
	retentionDays := GetEnvAsInt("GAME_RETENTION_DAYS", 30)
	cleanupIntervalMin := GetEnvAsInt("CLEANUP_INTERVAL_MINUTES", 60)

	AppConfig = &Config{
		Port:                 port,
		AllowedOrigins:       allowedOrigins,
		FrontendURL:          frontendURL,
		StoreDriver:          storeDriver,
		DatabaseURL:          dbURL,
		DBMaxOpenConns:       dbMaxOpenConns,
		DBMaxIdleConns:       dbMaxIdleConns,
		DBConnMaxLifetimeMin: dbConnMaxLifetimeMin,
		SQLitePath:           sqlitePath,
		RedisURL:             redisURL,
		RedisPassword:        redisPassword,
		CacheTTL:             time.Duration(cacheTTLSec) * time.Second,
		GameRetention:        time.Duration(retentionDays) * 24 * time.Hour,
		CleanupInterval:      time.Duration(cleanupIntervalMin) * time.Minute,
	}

	return AppConfig
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
