package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Unterstützte Datenbank-Treiber.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	// TESTING=1 erzwingt den flüchtigen In-Memory-Store.
	Testing bool `envconfig:"TESTING" default:"false"`

	DBDriver       string `envconfig:"DB_DRIVER" default:"postgres"`
	DBHost         string `envconfig:"DB_HOST"`
	DBPort         int    `envconfig:"DB_PORT" default:"5432"`
	DBUser         string `envconfig:"DB_USER"`
	DBPassword     string `envconfig:"DB_PASSWORD"`
	DBName         string `envconfig:"DB_NAME" default:"cookbook"`
	DBSSLMode      string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	DBLogSQL       bool   `envconfig:"DB_LOG_SQL" default:"false"`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"recipes.db"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	// Katalog-Export nach S3, leerer Schedule deaktiviert den Job
	ExportSchedule string `envconfig:"EXPORT_SCHEDULE"`
	ExportPrefix   string `envconfig:"EXPORT_PREFIX" default:"exports"`

	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"eu-central-1"`
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3Bucket string `envconfig:"S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// Ephemeral meldet, ob der In-Memory-Store verwendet werden soll.
func (c *Config) Ephemeral() bool {
	return c.Testing
}

// ExportEnabled meldet, ob der geplante Katalog-Export aktiv ist.
func (c *Config) ExportEnabled() bool {
	return strings.TrimSpace(c.ExportSchedule) != ""
}

// Validate prüft Kombinationen, die envconfig allein nicht abdecken kann.
func (c *Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case DriverPostgres:
		if !c.Ephemeral() {
			if c.DBHost == "" {
				errs = append(errs, errors.New("DB_HOST is required for the postgres driver"))
			}
			if c.DBUser == "" {
				errs = append(errs, errors.New("DB_USER is required for the postgres driver"))
			}
		}
	case DriverSQLite:
		if !c.Ephemeral() && c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}

	if c.ExportEnabled() {
		if c.S3URL == "" || c.S3Bucket == "" || c.S3Key == "" || c.S3Secret == "" {
			errs = append(errs, errors.New("EXPORT_SCHEDULE requires S3_URL, S3_BUCKET, S3_KEY and S3_SECRET"))
		}
	}

	return errors.Join(errs...)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
