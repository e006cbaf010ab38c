package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/repository"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/seed"
	"github.com/yehezkieldio/virtualqueue/pkg/config"
	"github.com/yehezkieldio/virtualqueue/pkg/database"
	"github.com/yehezkieldio/virtualqueue/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	users := flag.Int("users", seed.DefaultUserCount, "number of accounts to create")
	password := flag.String("password", seed.DefaultPassword, "password for every seeded account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.Log.Level,
		ServiceName: "seed",
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLog := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbCfg := database.DefaultPostgresConfig()
	dbCfg.DSN = cfg.Database.DSN()
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()

	created, err := seed.Run(ctx, repository.NewPostgresUserRepository(db.Pool()), seed.Config{
		Users:    *users,
		Password: *password,
	}, appLog)
	if err != nil {
		appLog.Fatal("Seeding failed", zap.Int("created", created), zap.Error(err))
	}
	appLog.Info("Database seeded", zap.Int("created", created))
}
