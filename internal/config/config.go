package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIURL      string
	Profile     string
	TokenFile   string
	HTTPTimeout time.Duration
	// Redis Configuration
	RedisURL string
	// Meilisearch mirror of the catalog, disabled when MeiliURL is empty
	MeiliURL       string
	MeiliMasterKey string
	// S3 compatible storage used for s3:// upload sources
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}
	return Config{
		APIURL:         strings.TrimRight(getenv("MEDIALIB_API_URL", "http://localhost:5000/api/v1"), "/"),
		Profile:        getenv("MEDIALIB_PROFILE", "default"),
		TokenFile:      getenv("MEDIALIB_TOKEN_FILE", defaultTokenFile()),
		HTTPTimeout:    time.Duration(getenvInt("MEDIALIB_HTTP_TIMEOUT_SECONDS", 20)) * time.Second,
		RedisURL:       getenv("REDIS_URL", ""),
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
		S3Endpoint:     getenv("S3_ENDPOINT", ""),
		S3AccessKey:    getenv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getenv("S3_SECRET_KEY", ""),
		S3UseSSL:       getenvBool("S3_USE_SSL", true),
	}
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".medialib", "token")
	}
	return filepath.Join(home, ".medialib", "token")
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
