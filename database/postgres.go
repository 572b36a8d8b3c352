package database

import (
	"database/sql"
	"fmt"
	"net/url"

	"coparent/backend/config"

	"github.com/rs/zerolog/log"
)

// PostgresConfig holds database connection parameters
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// GetPostgresConfigFromEnv reads PostgreSQL configuration from environment variables
func GetPostgresConfigFromEnv() PostgresConfig {
	return PostgresConfig{
		Host:     config.GetEnvOrDefault("DB_HOST", "localhost"),
		Port:     config.GetEnvOrDefault("DB_PORT", "5432"),
		User:     config.GetEnvOrDefault("DB_USER", "postgres"),
		Password: config.GetEnvOrDefault("DB_PASSWORD", "postgres"),
		DBName:   config.GetEnvOrDefault("DB_NAME", "coparent"),
		SSLMode:  config.GetEnvOrDefault("DB_SSL_MODE", "disable"),
	}
}

// ConnectionString builds a PostgreSQL connection URL
func (cfg PostgresConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String()
}

// CreatePostgresDB opens a PostgreSQL pool. An empty databaseURL falls back to
// the DB_* environment variables.
func CreatePostgresDB(databaseURL string) (*sql.DB, error) {
	connectionString := databaseURL
	if connectionString == "" {
		connectionString = GetPostgresConfigFromEnv().ConnectionString()
	}

	log.Info().Str("dsn", MaskPassword(connectionString)).Msg("Connecting to PostgreSQL")

	db, err := sql.Open(DriverPostgres, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	log.Info().Msg("Successfully connected to PostgreSQL")
	return db, nil
}

// MaskPassword hides the password of a connection URL for logging
func MaskPassword(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	return u.Redacted()
}
