// Command repair scans the task store for references to deleted users and
// reassigns them to an existing admin account. Tasks without a due date get
// one a day out. The run is idempotent and safe to repeat.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/taskops/taskboard/internal/config"
	"github.com/taskops/taskboard/internal/infrastructure/repository/mongodb"
	"github.com/taskops/taskboard/internal/maintenance"
)

const runTimeout = 5 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("repair failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoDB.URI))
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	if err = client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.MongoDB.Database)
	taskRepo := mongodb.NewMongoTaskRepository(
		db.Collection(mongodb.TasksCollection),
		mongodb.WithTaskRepoLogger(logger),
	)
	userRepo := mongodb.NewMongoUserRepository(
		db.Collection(mongodb.UsersCollection),
		mongodb.WithUserRepoLogger(logger),
	)

	repairer := maintenance.NewRepairer(maintenance.RepairerConfig{
		Tasks:  taskRepo,
		Users:  userRepo,
		Logger: logger,
	})

	report, err := repairer.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("repair complete",
		slog.Int("scanned", report.Scanned),
		slog.Int("tasks_fixed", report.TasksFixed),
		slog.Int("creators_reset", report.CreatorsReset),
		slog.Int("assignees_reset", report.AssigneesReset),
		slog.Int("due_dates_defaulted", report.DueDatesDefaulted),
	)
	return nil
}
