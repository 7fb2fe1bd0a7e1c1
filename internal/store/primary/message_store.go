package primary

import (
	"context"
	"fmt"
	"time"

	"msgsort/internal/models"
)

// --- Message Management ---

func (s *StoreImpl) CreateMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (telegram_chat_id, telegram_user_id, username, chat_type, message_text,
			category, confidence_score, matched_keyword, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	err := s.db.QueryRow(ctx, query,
		msg.ChatID, msg.UserID, msg.Username, msg.ChatType, msg.Text,
		msg.Category, msg.ConfidenceScore, msg.MatchedKeyword, msg.CreatedAt,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *StoreImpl) CountMessages(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return total, nil
}

func (s *StoreImpl) CategoryStats(ctx context.Context) ([]models.CategoryStat, error) {
	query := `
		SELECT category, COUNT(*), AVG(confidence_score)
		FROM messages
		GROUP BY category
		ORDER BY COUNT(*) DESC, category ASC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate messages: %w", err)
	}
	defer rows.Close()

	var stats []models.CategoryStat
	for rows.Next() {
		var st models.CategoryStat
		if err := rows.Scan(&st.Category, &st.Count, &st.AvgConfidence); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats = append(stats, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats rows: %w", err)
	}
	return stats, nil
}
