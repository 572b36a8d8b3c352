package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds every runtime setting of the server. Values come from the
// process environment, optionally seeded from a .env file.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DBDriver    string
	SQLitePath  string
	DatabaseURL string

	EncryptionKey string

	UploadDir             string
	FirebaseStorageBucket string

	AMQPURL      string
	AMQPExchange string

	CORSAllowedOrigins []string
	AdminEmails        []string
	PublicBaseURL      string
	StaticDir          string
}

// Load reads the configuration. A missing .env file is not an error.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Could not load .env file")
	}

	cfg := &Config{
		Env:                   GetEnvOrDefault("APP_ENV", "development"),
		Port:                  GetEnvOrDefault("PORT", "8080"),
		LogLevel:              GetEnvOrDefault("LOG_LEVEL", "info"),
		DBDriver:              GetEnvOrDefault("DB_DRIVER", "sqlite3"),
		SQLitePath:            GetEnvOrDefault("SQLITE_PATH", defaultSQLitePath()),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		EncryptionKey:         os.Getenv("ENCRYPTION_KEY"),
		UploadDir:             GetEnvOrDefault("UPLOAD_DIR", "./uploads"),
		FirebaseStorageBucket: os.Getenv("FIREBASE_STORAGE_BUCKET"),
		AMQPURL:               os.Getenv("AMQP_URL"),
		AMQPExchange:          GetEnvOrDefault("AMQP_EXCHANGE", "coparent.ledger"),
		CORSAllowedOrigins:    splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AdminEmails:           splitList(os.Getenv("ADMIN_EMAILS")),
		PublicBaseURL:         strings.TrimRight(GetEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		StaticDir:             GetEnvOrDefault("STATIC_DIR", "./dist"),
	}

	// A DATABASE_URL on its own means postgres
	if cfg.DatabaseURL != "" && os.Getenv("DB_DRIVER") == "" {
		cfg.DBDriver = "postgres"
	}

	return cfg
}

// IsDevelopment reports whether the server runs outside production.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Env) {
	case "production", "prod":
		return false
	}
	return true
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c *Config) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// GetEnvOrDefault returns the value of key or defaultValue when unset.
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func defaultSQLitePath() string {
	if os.Getenv("FLY_APP_NAME") != "" {
		// Mounted volume on Fly.io
		return filepath.Join("/data", "coparent.db")
	}
	return "./coparent.db"
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
