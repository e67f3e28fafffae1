package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/diffuselab/sdqueue/config"
	"github.com/diffuselab/sdqueue/internal/app"
	"github.com/diffuselab/sdqueue/internal/constants"
	"github.com/diffuselab/sdqueue/internal/db"
	"github.com/diffuselab/sdqueue/internal/db/repos"
	"github.com/diffuselab/sdqueue/internal/events"
	"github.com/diffuselab/sdqueue/internal/logger"
	"github.com/diffuselab/sdqueue/internal/queue"
	"github.com/diffuselab/sdqueue/internal/services"
	"github.com/diffuselab/sdqueue/internal/shell"
)

func main() {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()
	logger.Initialize()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	dbPort, err := strconv.Atoi(config.GetEnv(constants.EnvDBPort, "5432"))
	if err != nil {
		logger.Fatalf("Invalid %s: %v", constants.EnvDBPort, err)
	}
	database, err := db.New(db.Options{
		Host:     config.GetEnv(constants.EnvDBHost, ""),
		User:     config.GetEnv(constants.EnvDBUser, ""),
		Password: config.GetEnv(constants.EnvDBPassword, ""),
		DBName:   config.GetEnv(constants.EnvDBName, ""),
		Port:     dbPort,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	eventsCtx, stopEvents := context.WithCancel(context.Background())
	defer stopEvents()
	events.Start(eventsCtx)
	events.Subscribe(events.EventJobFinished, func(_ context.Context, e events.Event) error {
		logger.InfoWithFields("Job reached terminal state", map[string]interface{}{
			"job_id":    e.JobID,
			"client_id": e.ClientID,
			"status":    e.Status.String(),
			"error":     e.Error,
		})
		return nil
	})

	jobRepo := repos.NewJobRepository(database)
	artifactRepo := repos.NewArtifactRepository(database)

	q := queue.New(cfg.WorkerCount)
	q.Start()

	svc := services.NewDiffusionService(jobRepo, artifactRepo, q, shell.NewRunner(), cfg)

	server := app.New(svc)

	// Graceful shutdown: stop accepting requests, then drain the queue
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("Shutting down...")
		if err := server.Shutdown(); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
	}()

	if err := server.Listen(":" + cfg.ServerPort); err != nil {
		logger.Errorf("Server stopped: %v", err)
	}
	q.Stop()
}
