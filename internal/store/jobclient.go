package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"msgsort/internal/models"
	"msgsort/internal/tasks"
)

// AsynqJobClient enqueues message categorization tasks on Redis.
var _ JobClient = (*AsynqJobClient)(nil)

type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(opt asynq.RedisClientOpt) (*AsynqJobClient, error) {
	if opt.Addr == "" {
		return nil, errors.New("redis address cannot be empty for AsynqJobClient")
	}
	return &AsynqJobClient{client: asynq.NewClient(opt)}, nil
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// Enqueue submits a task as-is.
func (jc *AsynqJobClient) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if jc.client == nil {
		return nil, fmt.Errorf("AsynqJobClient internal client is not initialized")
	}
	info, err := jc.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		log.WithError(err).Errorf("Failed to enqueue task type '%s'", task.Type())
		return nil, err
	}
	log.Debugf("Enqueued task type '%s' id=%s queue=%s", task.Type(), info.ID, info.Queue)
	return info, nil
}

// EnqueueCategorizeMessage queues msg for classification and returns the task
// ID. IDs are UUIDs so callers can correlate the request with worker logs.
func (jc *AsynqJobClient) EnqueueCategorizeMessage(ctx context.Context, msg *models.Message) (string, error) {
	id := uuid.NewString()
	task, err := tasks.NewCategorizeMessageTask(msg)
	if err != nil {
		return "", err
	}
	info, err := jc.Enqueue(ctx, task, asynq.Queue(tasks.QueueMessages), asynq.TaskID(id), asynq.MaxRetry(3))
	if err != nil {
		return "", fmt.Errorf("enqueue categorize task for chat %d: %w", msg.ChatID, err)
	}
	return info.ID, nil
}
