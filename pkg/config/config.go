package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	FirebaseProject string
	StorageBucket   string
	Environment     string

	// Attachment upload policy.
	UploadTimeout  time.Duration
	UploadRetries  int
	MaxUploadBytes int64
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),
		StorageBucket:   getEnv("STORAGE_BUCKET", ""),
		Environment:     getEnv("ENVIRONMENT", "development"),
		UploadTimeout:   time.Duration(getEnvAsInt64("UPLOAD_TIMEOUT_SECONDS", 15)) * time.Second,
		UploadRetries:   int(getEnvAsInt64("UPLOAD_RETRIES", 3)),
		MaxUploadBytes:  getEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20), // 10 MB
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
