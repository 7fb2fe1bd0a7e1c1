// Package worker holds the asynq task handlers run by the worker command.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"msgsort/internal/models"
	"msgsort/internal/services"
	"msgsort/internal/tasks"
	"msgsort/pkg/categorizer"
)

// Ingester categorizes and stores one message.
type Ingester interface {
	Ingest(ctx context.Context, msg *models.Message) (categorizer.Result, error)
}

// MessageDeps are the dependencies of the categorize handler. Categories
// changed by other processes reach the worker through the Ingester, which
// reads them from the database.
type MessageDeps struct {
	Ingester Ingester
}

// RegisterHandlers registers every task handler on mux.
func RegisterHandlers(mux *asynq.ServeMux, deps MessageDeps) {
	log.Infof("Registering %s handler", tasks.TypeCategorizeMessage)
	mux.HandleFunc(tasks.TypeCategorizeMessage, HandleCategorizeMessage(deps))
}

// HandleCategorizeMessage returns the handler for TypeCategorizeMessage.
// Payload and validation failures are not retried.
func HandleCategorizeMessage(deps MessageDeps) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		msg, err := tasks.ParseCategorizeMessagePayload(t.Payload())
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		res, err := deps.Ingester.Ingest(ctx, msg)
		switch {
		case err == nil:
		case errors.Is(err, services.ErrNoCategories), errors.Is(err, models.ErrValidation):
			log.WithError(err).WithField("chat_id", msg.ChatID).Warn("Dropping message task")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		default:
			return err
		}

		log.WithFields(log.Fields{
			"message_id": msg.ID,
			"category":   res.Category,
			"confidence": res.Confidence,
		}).Debug("Categorize task done")
		return nil
	}
}
