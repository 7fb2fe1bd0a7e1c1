package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"msgsort/internal/models"
)

// Defines constants for task types used in Asynq.

const (
	// TypeCategorizeMessage classifies and stores one inbound message.
	TypeCategorizeMessage = "message:categorize"

	// QueueMessages is the queue categorize tasks are routed to.
	QueueMessages = "messages"
)

// CategorizeMessagePayload carries the message fields a worker needs. The
// category is decided by the worker, against its own category snapshot.
type CategorizeMessagePayload struct {
	ChatID   int64   `json:"chat_id"`
	UserID   int64   `json:"user_id"`
	Username *string `json:"username,omitempty"`
	ChatType string  `json:"chat_type"`
	Text     string  `json:"text"`
}

func NewCategorizeMessageTask(msg *models.Message, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(CategorizeMessagePayload{
		ChatID:   msg.ChatID,
		UserID:   msg.UserID,
		Username: msg.Username,
		ChatType: msg.ChatType,
		Text:     msg.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", TypeCategorizeMessage, err)
	}
	return asynq.NewTask(TypeCategorizeMessage, payload, opts...), nil
}

// ParseCategorizeMessagePayload decodes a task payload back into a message.
func ParseCategorizeMessagePayload(data []byte) (*models.Message, error) {
	var p CategorizeMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", TypeCategorizeMessage, err)
	}
	return &models.Message{
		ChatID:   p.ChatID,
		UserID:   p.UserID,
		Username: p.Username,
		ChatType: p.ChatType,
		Text:     p.Text,
	}, nil
}
