// cmd/api/main.go
package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// The gateway fronts the marketplace engine and the external catalog service
// under one origin. Authentication sits in front of this process and injects
// the X-User-ID header the engine trusts.
func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})

	engineURL, err := url.Parse(getEnv("ENGINE_URL", "http://localhost:8080"))
	if err != nil {
		log.WithError(err).Fatal("invalid ENGINE_URL")
	}
	catalogURL, err := url.Parse(getEnv("CATALOG_URL", "http://localhost:8081"))
	if err != nil {
		log.WithError(err).Fatal("invalid CATALOG_URL")
	}

	engineProxy := httputil.NewSingleHostReverseProxy(engineURL)
	catalogProxy := httputil.NewSingleHostReverseProxy(catalogURL)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Mount("/api/v1/reservations", http.StripPrefix("/api/v1", engineProxy))
	r.Mount("/api/v1/transactions", http.StripPrefix("/api/v1", engineProxy))
	r.Mount("/api/v1/urgent-sales", http.StripPrefix("/api/v1", engineProxy))
	r.Mount("/api/v1/listings", http.StripPrefix("/api/v1", catalogProxy))

	addr := ":" + getEnv("PORT", "8090")
	log.WithField("addr", addr).Info("api gateway listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.WithError(err).Fatal("gateway failed")
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
