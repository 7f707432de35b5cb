package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"digimy/config"
	"digimy/database"
	"digimy/engine"
	"digimy/handler"
	"digimy/middleware"
	"digimy/repository"
	"digimy/router"
	"digimy/scheduler"
	"digimy/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

func main() {
	config.SetupEnvFile()
	config.SetupLogfile()

	if err := config.InitAuditLoggers(); err != nil {
		log.Fatalf("failed to init audit loggers: %v", err)
	}

	database.ConnectDB()
	database.SetupMongoDB()
	database.InitRedis()

	middleware.PrometheusInit()

	repo := repository.NewTransactionRepo(database.GetDB())
	fulfill := repository.NewFulfillmentRepo(database.GetDB())

	dispatcher := worker.NewDispatcher(repo, fulfill, database.RedisClient)
	authority := engine.NewAuthority(repo, dispatcher)
	sweeper := scheduler.NewSweeper(repo, authority)

	handler.Setup(authority, repo, fulfill, sweeper)

	dispatcher.Run()
	sweeper.Start()

	viewsEngine := html.New(filepath.Join("..", "views"), ".html")
	app := fiber.New(fiber.Config{
		Views: viewsEngine,
	})

	router.SetupRoutes(app)

	go func() {
		if err := app.Listen(":" + config.Config("PORT", "8080")); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")

	if err := app.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	sweeper.Stop()
	dispatcher.Stop()
	config.ShutdownAuditLoggers()
}
