// Package mocks holds testify mocks of the store interfaces.
package mocks

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"msgsort/internal/models"
	"msgsort/internal/store"
)

var _ store.JobClient = (*JobClient)(nil)

type JobClient struct {
	mock.Mock
}

func (m *JobClient) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

func (m *JobClient) EnqueueCategorizeMessage(ctx context.Context, msg *models.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *JobClient) Close() error {
	return m.Called().Error(0)
}
