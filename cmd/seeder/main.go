//cmd/seeder/main.go
package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/unclebandit/koya-caller/internal/config"
	"github.com/unclebandit/koya-caller/internal/db"
	"github.com/unclebandit/koya-caller/internal/logger"
)

// seedFiles run in order; later files reference rows from earlier ones.
var seedFiles = []string{
	"seed/tenants.sql",
	"seed/contacts.sql",
	"seed/campaigns.sql",
	"seed/appointments.sql",
}

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

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatal("failed to read seed file", zap.String("file", file), zap.Error(err))
		}
		if _, err := conn.Exec(string(content)); err != nil {
			log.Fatal("failed to execute seed file", zap.String("file", file), zap.Error(err))
		}
		log.Info("seeded", zap.String("file", file))
	}

	log.Info("database seeding completed")
}
