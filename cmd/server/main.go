//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"flag"
	"log"
	"strings"

	"copyscan/internal/config"
	"copyscan/pkg/copyscan/classifier"
	"copyscan/pkg/copyscan/oracle"
	"copyscan/pkg/copyscan/storage"
	"copyscan/pkg/logger"
)

var (
	port           int
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 0, "HTTP server port (overrides PORT env)")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func main() {
	flag.Parse()

	cfg := config.Load()
	if port != 0 {
		cfg.Port = port
	}

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	lg := logger.GetLogger()

	if cfg.ACRAccessKey == "" || cfg.ACRSecret == "" {
		log.Fatal("ACR_ACCESS_KEY and ACR_ACCESS_SECRET must be set")
	}
	oracleClient := oracle.NewClient(cfg.ACRAccessKey, cfg.ACRSecret, cfg.ACRHost)

	db, err := storage.NewDBClientWithPath(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Kick off the model load in the background; jobs await it with a
	// bounded timeout and degrade to the timeline fallback.
	loader := classifier.StartLoader(cfg.ModelPath, cfg.ClassMapPath)
	lg.Infof("Loading classifier from %s", cfg.ModelPath)

	server := NewServer(cfg, db, oracleClient, loader)
	if err := server.Start(origins); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
