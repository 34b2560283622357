package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port          string
	MongoURI      string
	DBName        string
	JWTSecret     string
	S3Bucket      string
	S3Region      string
	S3AccessKeyID string
	S3SecretKey   string
	MaxUploadMB   int64
	LogLevel      string
	LogJSON       bool

	// NotificationEncKey is 32 bytes for AES-256-GCM, base64 in env.
	// Optional: without it SMTP settings cannot be saved.
	NotificationEncKey []byte
}

func Load() (*Config, error) {
	maxMB := int64(50)
	if v := getEnv("MAX_UPLOAD_MB", "50"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			maxMB = n
		}
	}
	var encKey []byte
	if k := getEnv("NOTIFICATION_ENCRYPTION_KEY", ""); k != "" {
		dec, err := base64.StdEncoding.DecodeString(k)
		if err != nil || len(dec) != 32 {
			return nil, fmt.Errorf("NOTIFICATION_ENCRYPTION_KEY must be 32 bytes base64 (generate with: openssl rand -base64 32)")
		}
		encKey = dec
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		MongoURI:           getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:             getEnv("MONGODB_DB", "elibrary"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		S3Bucket:           getEnv("AWS_S3_BUCKET", ""),
		S3Region:           getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:        getEnv("AWS_SECRET_ACCESS_KEY", ""),
		MaxUploadMB:        maxMB,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogJSON:            getEnv("LOG_JSON", "true") == "true",
		NotificationEncKey: encKey,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// RequiredEnvVars are checked at startup; the app exits if any are unset.
var RequiredEnvVars = []string{
	"MONGODB_URI",
	"MONGODB_DB",
	"JWT_SECRET",
}

// Validate checks that all required env vars are set.
func (c *Config) Validate() error {
	var missing []string
	for _, key := range RequiredEnvVars {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env: %s (set these in .env or environment)", strings.Join(missing, ", "))
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET must be set to a strong secret")
	}
	return nil
}
