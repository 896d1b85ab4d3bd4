package config

import (
	"log"
	"os"
	"strings"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds settings read from the environment
type Config struct {
	Port               string
	DatabaseURL        string
	JWTSecret          string
	CORSOrigins        []string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	FrontendURL        string
	ResendAPIKey       string
	EmailFrom          string
	LowStockAlertEmail string
	AdminEmail         string
	AdminPassword      string
}

// Load reads configuration from environment variables with defaults for local development
func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          getEnv("JWT_SECRET", defaultJWTSecret),
		CORSOrigins:        splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:3000"),
		ResendAPIKey:       os.Getenv("RESEND_API_KEY"),
		EmailFrom:          os.Getenv("EMAIL_FROM_ADDRESS"),
		LowStockAlertEmail: os.Getenv("LOW_STOCK_ALERT_EMAIL"),
		AdminEmail:         os.Getenv("ADMIN_EMAIL"),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
	}

	if cfg.JWTSecret == defaultJWTSecret {
		log.Println("[WARN] JWT_SECRET is not set, using the development default")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
