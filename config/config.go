package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4243"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	PubMedBaseURL        string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey         string `envconfig:"PUBMED_API_KEY"`
	PubMedRetMax         int    `envconfig:"PUBMED_RETMAX" default:"1000"`
	PubMedTimeoutSeconds int    `envconfig:"PUBMED_TIMEOUT_SECONDS" default:"5"`

	// REACH-Webservice für maschinelles Lesen (leer = Lesen deaktiviert)
	ReachURL     string `envconfig:"REACH_URL"`
	ReachVersion string `envconfig:"REACH_VERSION" default:"reach-1.6.1"`

	// Disambiguierungs-Service für Akronyme (leer = Disambiguierung deaktiviert)
	DisambigURL string `envconfig:"DISAMBIG_URL"`

	// Zeitplan für den inkrementellen Lese-Sweep
	ReadingCronSchedule string `envconfig:"READING_CRON_SCHEDULE" default:"0 2 * * *"`
	ReadingBatchSize    int    `envconfig:"READING_BATCH_SIZE" default:"100"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
