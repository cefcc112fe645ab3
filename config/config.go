package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	PostgresDisable  bool

	DWVBaseURL  string
	DWVEmail    string
	DWVPassword string

	MaxRetries         int
	RateLimitMs        int
	RequestTimeoutSec  int
	SessionTTLSec      int
	ExtractionMinCount int
	MaxLinkFollows     int
	InsertBatchSize    int

	ServerPort    string
	ChromeBin     string
	CSVOutputPath string
	Verbose       bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "dwv_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresDisable:  getEnvBool("POSTGRES_DISABLE", false),

		DWVBaseURL:  getEnv("DWV_BASE_URL", "https://app.dwvapp.com.br"),
		DWVEmail:    getEnv("DWV_EMAIL", ""),
		DWVPassword: getEnv("DWV_PASSWORD", ""),

		MaxRetries:         getEnvInt("MAX_RETRIES", 3),
		RateLimitMs:        getEnvInt("RATE_LIMIT_MS", 1500),
		RequestTimeoutSec:  getEnvInt("REQUEST_TIMEOUT_SEC", 30),
		SessionTTLSec:      getEnvInt("SESSION_TTL_SEC", 1800),
		ExtractionMinCount: getEnvInt("EXTRACTION_MIN_COUNT", 5),
		MaxLinkFollows:     getEnvInt("MAX_LINK_FOLLOWS", 5),
		InsertBatchSize:    getEnvInt("INSERT_BATCH_SIZE", 50),

		ServerPort:    getEnv("SERVER_PORT", "8080"),
		ChromeBin:     getEnv("CHROME_BIN", ""),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/listings.csv"),
		Verbose:       getEnvBool("VERBOSE", false),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
