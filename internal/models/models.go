package models

import (
	"time"
)

// Category is the persisted form of a categorizer.Category.
type Category struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Keywords  []string  `db:"keywords" json:"keywords"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Message is an inbound chat message together with the category it was
// assigned.
type Message struct {
	ID              int64     `db:"id" json:"id"`
	ChatID          int64     `db:"telegram_chat_id" json:"chat_id"`
	UserID          int64     `db:"telegram_user_id" json:"user_id"`
	Username        *string   `db:"username" json:"username,omitempty"`
	ChatType        string    `db:"chat_type" json:"chat_type"`
	Text            string    `db:"message_text" json:"text"`
	Category        string    `db:"category" json:"category"`
	ConfidenceScore *float64  `db:"confidence_score" json:"confidence_score,omitempty"` // nullable
	MatchedKeyword  *string   `db:"matched_keyword" json:"matched_keyword,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// CategoryStat is one row of the per-category message aggregate.
type CategoryStat struct {
	Category      string   `json:"category"`
	Count         int64    `json:"count"`
	AvgConfidence *float64 `json:"avg_confidence,omitempty"` // nil when no scored rows
}

// MessageStats summarizes every stored message.
type MessageStats struct {
	Total      int64          `json:"total"`
	Categories []CategoryStat `json:"categories"`
}

// Chat types reported by the transport.
const (
	ChatTypePrivate    = "private"
	ChatTypeGroup      = "group"
	ChatTypeSupergroup = "supergroup"
	ChatTypeChannel    = "channel"
	ChatTypeAPI        = "api"
)
