package main

import (
	"log"
	"net/http"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/config"
	"github.com/AdamBeresnev/bracket-engine/internal/db"
	"github.com/AdamBeresnev/bracket-engine/internal/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logg.Sync()

	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		logg.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB); err != nil {
		logg.Fatal("Failed to run migrations", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(database, logg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logg.Info("Server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
	if err := server.ListenAndServe(); err != nil {
		logg.Fatal("Server stopped", zap.Error(err))
	}
}
