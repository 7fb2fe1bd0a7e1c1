package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"msgsort/internal/app"
	"msgsort/internal/worker"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background job worker",
	Long: `Starts the Asynq worker that categorizes and stores messages queued with
POST /api/v1/messages?async=true.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}

		if err := runWorker(appInstance); err != nil {
			log.WithError(err).Error("Worker exited with error")
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker initializes and runs the Asynq worker server.
func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config
	if err := cfg.ValidateRedis(); err != nil {
		return fmt.Errorf("invalid worker config: %w", err)
	}

	srv := asynq.NewServer(
		app.RedisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues:      cfg.Worker.Queues,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID, _ := asynq.GetTaskID(ctx)
				log.WithFields(log.Fields{
					"task_id": taskID,
					"type":    task.Type(),
				}).WithError(err).Error("Asynq task failed")
			}),
			Logger:   log.StandardLogger(),
			LogLevel: asynqLogLevel(),
		},
	)

	// --- Register Job Handlers ---
	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, worker.MessageDeps{Ingester: appInstance.MessageService})

	// --- Start Server & Handle Shutdown ---
	log.Infof("Starting Asynq worker server (Concurrency: %d, Queues: %v)...", cfg.Worker.Concurrency, cfg.Worker.Queues)
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start Asynq server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Info("Shutdown signal received. Initiating graceful shutdown...")
	srv.Stop()
	srv.Shutdown()

	log.Info("Worker shutdown complete.")
	return nil
}

func asynqLogLevel() asynq.LogLevel {
	switch log.GetLevel() {
	case log.DebugLevel, log.TraceLevel:
		return asynq.DebugLevel
	case log.WarnLevel:
		return asynq.WarnLevel
	case log.ErrorLevel:
		return asynq.ErrorLevel
	case log.FatalLevel, log.PanicLevel:
		return asynq.FatalLevel
	default:
		return asynq.InfoLevel
	}
}
