package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/unclebandit/koya-caller/internal/config"
	"github.com/unclebandit/koya-caller/internal/db"
	"github.com/unclebandit/koya-caller/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	conn, err := db.Connect(context.Background(), cfg.DSN(), log)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	defer conn.Close()

	if err := db.Migrate(conn, cfg.MigrationsDir); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("migrations applied", zap.String("dir", cfg.MigrationsDir))
}
