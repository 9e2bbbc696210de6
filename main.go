// main.go
package main

import (
	"log"
	"time"

	"telegram-auth/cmd"
	"telegram-auth/internal/data/repository"
	"telegram-auth/internal/data/repository/memory"
	"telegram-auth/internal/notifier"
	"telegram-auth/internal/wire"
	"telegram-auth/pkg/database"
	"telegram-auth/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(config.App.Name, config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.String("store", config.Database.Driver),
		zap.Bool("debug", config.App.Debug),
	)

	var repos *repository.Repository
	switch config.Database.Driver {
	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		repos = memory.NewStore().Repository()
	default:
		if config.Database.AutoMigrate {
			if err := database.Migrate(config.Database.DSN()); err != nil {
				logger.Fatal("Failed to run migrations", zap.Error(err))
			}
			logger.Info("Database migrations applied")
		}

		db, err := database.InitDB(config.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		logger.Info("Database connected successfully")
		repos = repository.NewRepository(db, logger)
	}

	notify := notifier.New(
		config.Telegram.BotToken,
		config.Telegram.APIEndpoint,
		time.Duration(config.Telegram.NotifyTimeoutSeconds)*time.Second,
		logger,
	)
	fallback := notifier.NewLogFallback(logger)

	app := wire.Wiring(repos, config, notify, fallback, logger)

	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	if err := cmd.APIServer(app.Router, config.App.Port, logger); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
