package services

import (
	"context"
	"fmt"

	"msgsort/internal/models"
	"msgsort/internal/store"
)

type StatsService struct {
	store store.MessageStore
}

func NewStatsService(ms store.MessageStore) *StatsService {
	return &StatsService{store: ms}
}

// Stats returns the message total and the per-category breakdown, largest
// category first.
func (s *StatsService) Stats(ctx context.Context) (*models.MessageStats, error) {
	total, err := s.store.CountMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	rows, err := s.store.CategoryStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	if rows == nil {
		rows = []models.CategoryStat{}
	}
	return &models.MessageStats{Total: total, Categories: rows}, nil
}
