package config

import (
	"errors"
	"os"
	"strings"
)

type Config struct {
	MongoURI       string
	MongoDatabase  string
	RedisURI       string
	SessionSecret  string
	Port           string
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL
	Environment    string   // ENV: production, development, etc.
}

// Load reads configuration from the environment. MONGODB_URI and
// SESSION_SECRET are mandatory; missing either is a startup error, not
// something to limp along without.
func Load() (*Config, error) {
	mongoURI := getEnv("MONGODB_URI", getEnv("MONGO_URI", ""))
	if mongoURI == "" {
		return nil, errors.New("MONGODB_URI environment variable is required")
	}

	secret := os.Getenv("SESSION_SECRET")
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("SESSION_SECRET environment variable is required")
	}

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:3000"), getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}

	return &Config{
		MongoURI:       mongoURI,
		MongoDatabase:  getEnv("MONGODB_DATABASE", "taskbrew"),
		RedisURI:       getEnv("REDIS_URI", "redis://localhost:6379/0"),
		SessionSecret:  secret,
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: allowedOrigins,
		Environment:    strings.ToLower(strings.TrimSpace(getEnv("ENV", "development"))),
	}, nil
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
