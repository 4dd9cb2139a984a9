// internal/config/config.go
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config carries everything the marketplace engine reads from the
// environment. A .env file is loaded when present; real deployments set the
// variables directly.
type Config struct {
	HTTPAddr     string
	DatabaseURL  string
	CatalogURL   string
	NotifierURL  string
	OTLPEndpoint string
	LogLevel     string

	// PurchaseRate and PurchaseBurst throttle the urgent sale purchase
	// path (requests per second, burst size).
	PurchaseRate  float64
	PurchaseBurst int
}

// Load reads the configuration, falling back to development defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("could not load .env file")
	}

	return Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		CatalogURL:    getEnv("CATALOG_URL", ""),
		NotifierURL:   getEnv("NOTIFIER_URL", ""),
		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PurchaseRate:  getEnvFloat("PURCHASE_RATE", 50),
		PurchaseBurst: getEnvInt("PURCHASE_BURST", 100),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid integer %q, using %d", v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid number %q, using %g", v, fallback)
		return fallback
	}
	return f
}
